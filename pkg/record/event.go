package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/telekom/regression-notifier/pkg/build"
)

// ErrNoConsoleLog is returned by EventRecord.ConsoleLog when the event did
// not reference a console log.
var ErrNoConsoleLog = errors.New("build event carries no console log path")

// ErrConsoleLogNotAllowed is returned when an event names a console log
// outside the configured console log root, or when no root is configured.
var ErrConsoleLogNotAllowed = errors.New("console log path not allowed")

// Event is a build-completion event as delivered over HTTP or Kafka.
type Event struct {
	ID     string `json:"id,omitempty"`
	Job    string `json:"job"`
	Number int    `json:"number"`
	URL    string `json:"url,omitempty"`
	Result string `json:"result"`
	// Tests is nil when no test framework reported. An empty list means
	// the framework ran but reported no cases.
	Tests          []Test   `json:"tests"`
	Changes        []Change `json:"changes,omitempty"`
	ConsoleLogPath string   `json:"consoleLogPath,omitempty"`
}

// Test is a single case carried by an Event with an already derived status.
type Test struct {
	ClassName    string `json:"className,omitempty"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	DurationMs   int64  `json:"durationMs,omitempty"`
	ErrorDetails string `json:"errorDetails,omitempty"`
}

// DecodeEvent parses a JSON build event and assigns an ID when missing.
func DecodeEvent(data []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(data, &ev); err != nil {
		return Event{}, fmt.Errorf("decoding build event: %w", err)
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	return ev, nil
}

// EventOptions controls how FromEvent turns an event into a record.
type EventOptions struct {
	// Sink receives build diagnostics. Defaults to io.Discard.
	Sink io.Writer
	// ConsoleLogRoot is the directory event console logs must live in.
	// Empty rejects every event that names a console log.
	ConsoleLogRoot string
}

// EventRecord is a build.Record backed by an Event.
type EventRecord struct {
	event   Event
	result  build.Outcome
	summary *build.Summary
	changes []build.ChangeEntry
	sink    io.Writer
	logRoot string
}

var _ build.Record = (*EventRecord)(nil)

// FromEvent validates ev and wraps it as a record.
func FromEvent(ev Event, opts EventOptions) (*EventRecord, error) {
	if ev.Job == "" {
		return nil, fmt.Errorf("build event %s: job is required", ev.ID)
	}
	result, err := build.ParseOutcome(ev.Result)
	if err != nil {
		return nil, fmt.Errorf("build event %s: %w", ev.ID, err)
	}

	var summary *build.Summary
	if ev.Tests != nil {
		summary = &build.Summary{Cases: make([]build.CaseResult, 0, len(ev.Tests))}
		for _, t := range ev.Tests {
			status, err := build.ParseCaseStatus(t.Status)
			if err != nil {
				return nil, fmt.Errorf("build event %s: test %s: %w", ev.ID, t.Name, err)
			}
			summary.Cases = append(summary.Cases, build.CaseResult{
				ClassName:    t.ClassName,
				Name:         t.Name,
				Status:       status,
				Duration:     time.Duration(t.DurationMs) * time.Millisecond,
				ErrorDetails: t.ErrorDetails,
			})
		}
	}

	if ev.ConsoleLogPath != "" {
		if _, err := confine(opts.ConsoleLogRoot, ev.ConsoleLogPath); err != nil {
			return nil, fmt.Errorf("build event %s: %w", ev.ID, err)
		}
	}

	changes := make([]build.ChangeEntry, 0, len(ev.Changes))
	for _, c := range ev.Changes {
		changes = append(changes, c.entry())
	}

	sink := opts.Sink
	if sink == nil {
		sink = io.Discard
	}
	return &EventRecord{
		event:   ev,
		result:  result,
		summary: summary,
		changes: changes,
		sink:    sink,
		logRoot: opts.ConsoleLogRoot,
	}, nil
}

// ID returns the event identifier.
func (r *EventRecord) ID() string { return r.event.ID }

func (r *EventRecord) Job() string           { return r.event.Job }
func (r *EventRecord) Number() int           { return r.event.Number }
func (r *EventRecord) URL() string           { return r.event.URL }
func (r *EventRecord) Result() build.Outcome { return r.result }
func (r *EventRecord) LogSink() io.Writer    { return r.sink }

func (r *EventRecord) TestResults() (*build.Summary, bool) {
	return r.summary, r.summary != nil
}

func (r *EventRecord) ChangeLog() []build.ChangeEntry {
	return append([]build.ChangeEntry(nil), r.changes...)
}

// ConsoleLog opens the event's console log. Symlinks are resolved before
// the path is checked against the console log root.
func (r *EventRecord) ConsoleLog() (io.ReadCloser, error) {
	if r.event.ConsoleLogPath == "" {
		return nil, ErrNoConsoleLog
	}
	path, err := confine(r.logRoot, r.event.ConsoleLogPath)
	if err != nil {
		return nil, err
	}
	root, err := filepath.EvalSymlinks(r.logRoot)
	if err != nil {
		return nil, fmt.Errorf("resolving console log root: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return nil, err
	}
	if _, err := confine(root, resolved); err != nil {
		return nil, err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// confine returns the cleaned absolute form of p, which must lie strictly
// inside root. Relative paths are taken relative to root.
func confine(root, p string) (string, error) {
	if root == "" {
		return "", fmt.Errorf("%w: no console log root configured", ErrConsoleLogNotAllowed)
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving console log root: %w", err)
	}
	full := p
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside %s", ErrConsoleLogNotAllowed, p, root)
	}
	return full, nil
}
