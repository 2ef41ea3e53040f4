package record

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"

	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/junit"
)

const (
	DefaultMetadataFile = "build.yaml"
	DefaultReportsDir   = "reports"
	DefaultConsoleLog   = "console.log"
)

// Metadata is the content of a build directory's build.yaml.
type Metadata struct {
	Job     string   `yaml:"job"`
	Number  int      `yaml:"number"`
	URL     string   `yaml:"url"`
	Result  string   `yaml:"result"`
	Changes []Change `yaml:"changes"`
}

// Change is one commit listed in build.yaml or in a build event.
type Change struct {
	Revision    string `yaml:"revision" json:"revision"`
	Author      string `yaml:"author" json:"author"`
	AuthorEmail string `yaml:"authorEmail" json:"authorEmail,omitempty"`
	Message     string `yaml:"message" json:"message,omitempty"`
}

func (c Change) entry() build.ChangeEntry {
	return build.ChangeEntry{
		Revision:    c.Revision,
		Author:      c.Author,
		AuthorEmail: c.AuthorEmail,
		Message:     c.Message,
	}
}

// DirOptions controls where LoadDir looks for the parts of a build.
// Relative paths are resolved against the build directory.
type DirOptions struct {
	MetadataFile string
	ReportsDir   string
	ConsoleLog   string
	// PreviousDir is the previous build's directory; its ReportsDir is
	// used to derive case status. Empty means there is no previous build.
	PreviousDir string
	// Sink receives build diagnostics. Defaults to io.Discard.
	Sink io.Writer
}

func (o DirOptions) withDefaults() DirOptions {
	if o.MetadataFile == "" {
		o.MetadataFile = DefaultMetadataFile
	}
	if o.ReportsDir == "" {
		o.ReportsDir = DefaultReportsDir
	}
	if o.ConsoleLog == "" {
		o.ConsoleLog = DefaultConsoleLog
	}
	if o.Sink == nil {
		o.Sink = io.Discard
	}
	return o
}

// DirRecord is a build.Record backed by a build directory.
type DirRecord struct {
	meta       Metadata
	result     build.Outcome
	summary    *build.Summary
	changes    []build.ChangeEntry
	consoleLog string
	sink       io.Writer
}

var _ build.Record = (*DirRecord)(nil)

// LoadDir reads a build directory: metadata from build.yaml, JUnit reports
// from the reports directory and the console log path. The console log is
// only opened when requested.
func LoadDir(dir string, opts DirOptions) (*DirRecord, error) {
	opts = opts.withDefaults()

	metaPath := resolve(dir, opts.MetadataFile)
	content, err := os.ReadFile(metaPath)
	if err != nil {
		return nil, fmt.Errorf("reading build metadata %s: %w", metaPath, err)
	}
	var meta Metadata
	if err := yaml.Unmarshal(content, &meta); err != nil {
		return nil, fmt.Errorf("error unmarshaling YAML %s: %w", metaPath, err)
	}
	if meta.Job == "" {
		meta.Job = filepath.Base(filepath.Clean(dir))
	}
	result, err := build.ParseOutcome(meta.Result)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", metaPath, err)
	}

	previousReports := ""
	if opts.PreviousDir != "" {
		previousReports = resolve(opts.PreviousDir, opts.ReportsDir)
	}
	summary, err := junit.Summarize(resolve(dir, opts.ReportsDir), previousReports)
	if err != nil {
		return nil, err
	}

	changes := make([]build.ChangeEntry, 0, len(meta.Changes))
	for _, c := range meta.Changes {
		changes = append(changes, c.entry())
	}

	return &DirRecord{
		meta:       meta,
		result:     result,
		summary:    summary,
		changes:    changes,
		consoleLog: resolve(dir, opts.ConsoleLog),
		sink:       opts.Sink,
	}, nil
}

func resolve(dir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(dir, p)
}

func (r *DirRecord) Job() string           { return r.meta.Job }
func (r *DirRecord) Number() int           { return r.meta.Number }
func (r *DirRecord) URL() string           { return r.meta.URL }
func (r *DirRecord) Result() build.Outcome { return r.result }
func (r *DirRecord) LogSink() io.Writer    { return r.sink }

func (r *DirRecord) TestResults() (*build.Summary, bool) {
	return r.summary, r.summary != nil
}

func (r *DirRecord) ChangeLog() []build.ChangeEntry {
	return append([]build.ChangeEntry(nil), r.changes...)
}

func (r *DirRecord) ConsoleLog() (io.ReadCloser, error) {
	f, err := os.Open(r.consoleLog)
	if err != nil {
		return nil, err
	}
	return f, nil
}
