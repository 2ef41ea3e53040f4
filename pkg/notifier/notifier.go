// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"fmt"
	"io"
	netmail "net/mail"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/exp/slices"

	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/mail"
	"github.com/telekom/regression-notifier/pkg/metrics"
)

// MailSender delivers a prepared message to recipients.
type MailSender interface {
	Send(msg mail.Message, recipients []string) error
}

// AddressResolver maps a committer identity to a notification address.
type AddressResolver interface {
	ResolveAddress(identity string) (string, bool)
}

// Outcome is the kind of decision Evaluate reached.
type Outcome int

const (
	// NoOp means there was nothing to notify about.
	NoOp Outcome = iota
	// Sent means a report was handed to the mail sender successfully.
	Sent
	// Failed means the report could not be delivered; Decision.Err is set.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NoOp:
		return "noop"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Reasons recorded on NoOp decisions.
const (
	ReasonNotCompleted  = "build has no result"
	ReasonNoTestResults = "no test results"
	ReasonNoRegressions = "no regressions"
	ReasonNoRecipients  = "no recipients"
)

// Decision is the result of evaluating one build.
type Decision struct {
	Outcome Outcome
	// Reason explains a NoOp decision.
	Reason      string
	Regressions []build.CaseResult
	Recipients  []string
	Message     *mail.Message
	// Err is a *NotificationError when Outcome is Failed.
	Err error
}

// Options configures a Notifier. They are fixed for its lifetime.
type Options struct {
	// AuthorAddress is notified on every regression. Empty disables it.
	AuthorAddress string
	// NotifyCulprits adds the authors of the build's changes.
	NotifyCulprits bool
	// AttachLog attaches the build's console log.
	AttachLog bool
	// SubjectTemplate is a text/template with sprig functions. Defaults to
	// mail.DefaultSubjectTemplate.
	SubjectTemplate string
	// LogFilename names the console log attachment. Defaults to
	// mail.DefaultLogFilename.
	LogFilename string
	// MaxLogBytes keeps only the tail of the console log when > 0.
	MaxLogBytes int64
}

// Notifier evaluates finished builds and reports regressions by mail.
// It holds no mutable state and is safe for concurrent use.
type Notifier struct {
	opts     Options
	subject  *mail.SubjectTemplate
	sender   MailSender
	resolver AddressResolver
	log      *zap.SugaredLogger
}

// New creates a Notifier. resolver may be nil, in which case culprits are
// only reachable through the email recorded on their commit.
func New(opts Options, sender MailSender, resolver AddressResolver, log *zap.SugaredLogger) (*Notifier, error) {
	if sender == nil {
		return nil, ErrNoMailSender
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	opts.AuthorAddress = strings.TrimSpace(opts.AuthorAddress)
	if opts.LogFilename == "" {
		opts.LogFilename = mail.DefaultLogFilename
	}
	subject, err := mail.ParseSubjectTemplate(opts.SubjectTemplate)
	if err != nil {
		return nil, err
	}
	return &Notifier{
		opts:     opts,
		subject:  subject,
		sender:   sender,
		resolver: resolver,
		log:      log.Named("notifier"),
	}, nil
}

// Evaluate decides whether rec regressed any test case and, if so, sends
// the report. It never modifies rec.
func (n *Notifier) Evaluate(rec build.Record) Decision {
	log := n.log.With("job", rec.Job(), "number", rec.Number())
	d := n.evaluate(rec, log)
	metrics.Evaluations.WithLabelValues(d.Outcome.String()).Inc()

	switch d.Outcome {
	case NoOp:
		log.Debugw("No regression report sent", "reason", d.Reason)
	case Sent:
		log.Infow("Regression report sent",
			"regressions", len(d.Regressions),
			"recipients", d.Recipients,
			"attachment", d.Message.HasAttachment())
	case Failed:
		log.Errorw("Failed to send regression report", "error", d.Err)
	}
	return d
}

func (n *Notifier) evaluate(rec build.Record, log *zap.SugaredLogger) Decision {
	if !rec.Result().Completed() {
		diagnose(rec, "build %s has no result yet, skipping regression check", build.DisplayName(rec))
		return Decision{Outcome: NoOp, Reason: ReasonNotCompleted}
	}

	summary, ok := rec.TestResults()
	if !ok || summary == nil {
		return Decision{Outcome: NoOp, Reason: ReasonNoTestResults}
	}

	regressions := summary.Regressions()
	if len(regressions) == 0 {
		return Decision{Outcome: NoOp, Reason: ReasonNoRegressions}
	}
	metrics.RegressionsDetected.Add(float64(len(regressions)))

	recipients := n.recipients(rec, log)
	if len(recipients) == 0 {
		return Decision{Outcome: NoOp, Reason: ReasonNoRecipients, Regressions: regressions}
	}

	msg, err := n.compose(reportParams(rec, summary, regressions))
	if err != nil {
		return Decision{
			Outcome:     Failed,
			Regressions: regressions,
			Recipients:  recipients,
			Err:         n.notificationError(rec, recipients, err),
		}
	}

	if n.opts.AttachLog {
		attachment, err := n.attachment(rec)
		if err != nil {
			metrics.AttachmentFailures.Inc()
			log.Warnw("Sending regression report without console log", "error", err)
			diagnose(rec, "could not attach console log to regression report: %v", err)
		} else {
			msg.Attachment = attachment
		}
	}

	d := Decision{
		Outcome:     Sent,
		Regressions: regressions,
		Recipients:  recipients,
		Message:     &msg,
	}
	if err := n.sender.Send(msg, recipients); err != nil {
		d.Outcome = Failed
		d.Err = n.notificationError(rec, recipients, err)
	}
	return d
}

// recipients returns the author address followed by distinct culprit
// addresses in change-log order.
func (n *Notifier) recipients(rec build.Record, log *zap.SugaredLogger) []string {
	var out []string
	if n.opts.AuthorAddress != "" {
		out = append(out, n.opts.AuthorAddress)
	}
	if !n.opts.NotifyCulprits {
		return out
	}
	for _, change := range rec.ChangeLog() {
		addr, ok := n.resolve(change)
		if !ok {
			metrics.UnresolvedCulprits.Inc()
			log.Debugw("Could not resolve culprit address", "author", change.Author, "revision", change.Revision)
			continue
		}
		if slices.ContainsFunc(out, func(existing string) bool { return strings.EqualFold(existing, addr) }) {
			continue
		}
		out = append(out, addr)
	}
	return out
}

func (n *Notifier) resolve(change build.ChangeEntry) (string, bool) {
	if n.resolver != nil {
		if addr, ok := n.resolver.ResolveAddress(change.Author); ok {
			return addr, true
		}
	}
	if change.AuthorEmail == "" {
		return "", false
	}
	parsed, err := netmail.ParseAddress(change.AuthorEmail)
	if err != nil {
		return "", false
	}
	return parsed.Address, true
}

func (n *Notifier) attachment(rec build.Record) (*mail.Attachment, error) {
	rc, err := rec.ConsoleLog()
	if err != nil {
		return nil, fmt.Errorf("opening console log: %w", err)
	}
	defer rc.Close()

	data, err := readTail(rc, n.opts.MaxLogBytes)
	if err != nil {
		return nil, fmt.Errorf("reading console log: %w", err)
	}
	return &mail.Attachment{
		Filename:    n.opts.LogFilename,
		ContentType: mail.LogContentType,
		Data:        data,
	}, nil
}

// readTail reads r fully and returns at most the last limit bytes. limit <= 0
// returns everything.
func readTail(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit > 0 && int64(len(data)) > limit {
		data = data[int64(len(data))-limit:]
	}
	return data, nil
}

func (n *Notifier) notificationError(rec build.Record, recipients []string, err error) *NotificationError {
	return &NotificationError{
		Job:        rec.Job(),
		Number:     rec.Number(),
		Recipients: recipients,
		Err:        err,
	}
}

// diagnose writes a line to the build's own log sink.
func diagnose(rec build.Record, format string, args ...any) {
	sink := rec.LogSink()
	if sink == nil {
		return
	}
	_, _ = fmt.Fprintf(sink, "[regression-notifier] "+format+"\n", args...)
}
