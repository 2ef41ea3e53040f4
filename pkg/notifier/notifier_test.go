// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/mail"
	"github.com/telekom/regression-notifier/pkg/system"
)

type fakeRecord struct {
	job     string
	number  int
	url     string
	result  build.Outcome
	summary *build.Summary
	changes []build.ChangeEntry
	log     string
	logErr  error
	sink    bytes.Buffer

	opened int
	closed int
}

func (r *fakeRecord) Job() string           { return r.job }
func (r *fakeRecord) Number() int           { return r.number }
func (r *fakeRecord) URL() string           { return r.url }
func (r *fakeRecord) Result() build.Outcome { return r.result }
func (r *fakeRecord) LogSink() io.Writer    { return &r.sink }

func (r *fakeRecord) TestResults() (*build.Summary, bool) {
	return r.summary, r.summary != nil
}

func (r *fakeRecord) ChangeLog() []build.ChangeEntry {
	return r.changes
}

func (r *fakeRecord) ConsoleLog() (io.ReadCloser, error) {
	if r.logErr != nil {
		return nil, r.logErr
	}
	r.opened++
	return &trackingReader{Reader: strings.NewReader(r.log), onClose: func() { r.closed++ }}, nil
}

type trackingReader struct {
	io.Reader
	onClose func()
}

func (t *trackingReader) Close() error {
	t.onClose()
	return nil
}

type recordingSender struct {
	calls      int
	message    mail.Message
	recipients []string
	err        error
}

func (s *recordingSender) Send(msg mail.Message, recipients []string) error {
	s.calls++
	s.message = msg
	s.recipients = recipients
	return s.err
}

type mapResolver map[string]string

func (m mapResolver) ResolveAddress(identity string) (string, bool) {
	addr, ok := m[identity]
	return addr, ok
}

// regressedBuild mirrors a failed build with one regressed case committed
// by "culprit".
func regressedBuild() *fakeRecord {
	return &fakeRecord{
		job:    "project",
		number: 42,
		url:    "https://ci.example.com/job/project/42/",
		result: build.OutcomeFailure,
		summary: &build.Summary{Cases: []build.CaseResult{
			{ClassName: "com.example.FooTest", Name: "testPasses", Status: build.StatusPassed},
			{ClassName: "com.example.FooTest", Name: "testBreaks", Status: build.StatusRegression, ErrorDetails: "expected 1 but was 2\n\tat FooTest"},
			{ClassName: "com.example.BarTest", Name: "testStillBroken", Status: build.StatusFailed},
		}},
		changes: []build.ChangeEntry{
			{Revision: "0123456789abcdef", Author: "culprit", Message: "Break FooTest\n\nlong description"},
		},
		log: "Started by user admin\nBUILD FAILED\n",
	}
}

func newNotifier(t *testing.T, opts Options, sender MailSender, resolver AddressResolver) *Notifier {
	t.Helper()
	n, err := New(opts, sender, resolver, system.NewTestLogger())
	require.NoError(t, err)
	return n
}

func TestEvaluateWithoutTestResults(t *testing.T) {
	rec := regressedBuild()
	rec.summary = nil
	sender := &recordingSender{}

	d := newNotifier(t, Options{AuthorAddress: "author@mail.com"}, sender, nil).Evaluate(rec)

	assert.Equal(t, NoOp, d.Outcome)
	assert.Equal(t, ReasonNoTestResults, d.Reason)
	assert.Zero(t, sender.calls)
	assert.Zero(t, rec.opened)
}

func TestEvaluateWithoutRegressions(t *testing.T) {
	tests := []struct {
		name  string
		cases []build.CaseResult
	}{
		{name: "empty summary", cases: nil},
		{name: "all passed", cases: []build.CaseResult{{Name: "a", Status: build.StatusPassed}}},
		{name: "only old failures", cases: []build.CaseResult{
			{Name: "a", Status: build.StatusFailed},
			{Name: "b", Status: build.StatusFixed},
			{Name: "c", Status: build.StatusSkipped},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := regressedBuild()
			rec.summary = &build.Summary{Cases: tt.cases}
			sender := &recordingSender{}

			d := newNotifier(t, Options{AuthorAddress: "author@mail.com", AttachLog: true}, sender, nil).Evaluate(rec)

			assert.Equal(t, NoOp, d.Outcome)
			assert.Equal(t, ReasonNoRegressions, d.Reason)
			assert.Zero(t, sender.calls)
			assert.Zero(t, rec.opened, "console log must not be opened")
		})
	}
}

func TestEvaluateBuildWithoutResult(t *testing.T) {
	rec := regressedBuild()
	rec.result = build.OutcomeUnknown
	sender := &recordingSender{}

	d := newNotifier(t, Options{AuthorAddress: "author@mail.com"}, sender, nil).Evaluate(rec)

	assert.Equal(t, NoOp, d.Outcome)
	assert.Equal(t, ReasonNotCompleted, d.Reason)
	assert.Zero(t, sender.calls)
	assert.Contains(t, rec.sink.String(), "has no result yet")
}

func TestEvaluateSendsToAuthor(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifier(t, Options{AuthorAddress: "author@mail.com"}, sender, mapResolver{"culprit": "culprit@mail.com"})

	d := n.Evaluate(regressedBuild())

	require.Equal(t, Sent, d.Outcome)
	require.NoError(t, d.Err)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, []string{"author@mail.com"}, sender.recipients)
	assert.Equal(t, []string{"author@mail.com"}, d.Recipients)
	require.Len(t, d.Regressions, 1)
	assert.Equal(t, "com.example.FooTest.testBreaks", d.Regressions[0].FullName())
	assert.False(t, sender.message.HasAttachment())
}

func TestEvaluateSendsToCulprits(t *testing.T) {
	sender := &recordingSender{}
	n := newNotifier(t, Options{AuthorAddress: "author@mail.com", NotifyCulprits: true}, sender, mapResolver{"culprit": "culprit@mail.com"})

	d := n.Evaluate(regressedBuild())

	require.Equal(t, Sent, d.Outcome)
	assert.Equal(t, []string{"author@mail.com", "culprit@mail.com"}, sender.recipients)
}

func TestEvaluateCulpritOrderingAndDeduplication(t *testing.T) {
	rec := regressedBuild()
	rec.changes = []build.ChangeEntry{
		{Revision: "1", Author: "bob"},
		{Revision: "2", Author: "unknown"},
		{Revision: "3", Author: "alice"},
		{Revision: "4", Author: "bob"},
		{Revision: "5", Author: "author"},
		{Revision: "6", Author: "carol", AuthorEmail: "Carol <carol@mail.com>"},
		{Revision: "7", Author: "dave", AuthorEmail: "not an address"},
	}
	resolver := mapResolver{
		"alice":  "alice@mail.com",
		"bob":    "bob@mail.com",
		"author": "AUTHOR@mail.com",
	}
	sender := &recordingSender{}

	d := newNotifier(t, Options{AuthorAddress: "author@mail.com", NotifyCulprits: true}, sender, resolver).Evaluate(rec)

	require.Equal(t, Sent, d.Outcome)
	assert.Equal(t, []string{"author@mail.com", "bob@mail.com", "alice@mail.com", "carol@mail.com"}, sender.recipients)
}

func TestEvaluateWithoutRecipients(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		resolver AddressResolver
	}{
		{name: "no author and culprits disabled", opts: Options{}},
		{name: "blank author", opts: Options{AuthorAddress: "   "}},
		{name: "culprits unresolvable", opts: Options{NotifyCulprits: true}, resolver: mapResolver{}},
		{name: "culprits without resolver", opts: Options{NotifyCulprits: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &recordingSender{}
			d := newNotifier(t, tt.opts, sender, tt.resolver).Evaluate(regressedBuild())

			assert.Equal(t, NoOp, d.Outcome)
			assert.Equal(t, ReasonNoRecipients, d.Reason)
			assert.NoError(t, d.Err)
			assert.Zero(t, sender.calls)
		})
	}
}

func TestEvaluateAttachesLog(t *testing.T) {
	rec := regressedBuild()
	sender := &recordingSender{}

	d := newNotifier(t, Options{AuthorAddress: "author@mail.com", AttachLog: true}, sender, nil).Evaluate(rec)

	require.Equal(t, Sent, d.Outcome)
	require.True(t, sender.message.HasAttachment())
	assert.Equal(t, mail.DefaultLogFilename, sender.message.Attachment.Filename)
	assert.Equal(t, rec.log, string(sender.message.Attachment.Data))
	assert.Equal(t, 1, rec.opened)
	assert.Equal(t, 1, rec.closed, "console log must be closed")
	assert.Empty(t, rec.sink.String())
}

func TestEvaluateAttachesLogTail(t *testing.T) {
	rec := regressedBuild()
	rec.log = "0123456789"
	sender := &recordingSender{}

	opts := Options{AuthorAddress: "author@mail.com", AttachLog: true, MaxLogBytes: 4, LogFilename: "console.txt"}
	d := newNotifier(t, opts, sender, nil).Evaluate(rec)

	require.Equal(t, Sent, d.Outcome)
	require.True(t, sender.message.HasAttachment())
	assert.Equal(t, "console.txt", sender.message.Attachment.Filename)
	assert.Equal(t, "6789", string(sender.message.Attachment.Data))
}

func TestEvaluateUnreadableLogSendsWithoutAttachment(t *testing.T) {
	rec := regressedBuild()
	rec.logErr = errors.New("permission denied")
	sender := &recordingSender{}

	logger, recorded := system.NewObservedLogger(zapcore.WarnLevel)
	n, err := New(Options{AuthorAddress: "author@mail.com", AttachLog: true}, sender, nil, logger)
	require.NoError(t, err)

	d := n.Evaluate(rec)

	require.Equal(t, Sent, d.Outcome)
	assert.Equal(t, 1, sender.calls)
	assert.False(t, sender.message.HasAttachment())
	assert.Contains(t, rec.sink.String(), "could not attach console log")
	assert.Contains(t, rec.sink.String(), "permission denied")
	assert.Equal(t, 1, recorded.FilterMessage("Sending regression report without console log").Len())
}

func TestEvaluateTransportFailure(t *testing.T) {
	transportErr := errors.New("dial tcp: connection refused")
	sender := &recordingSender{err: transportErr}

	d := newNotifier(t, Options{AuthorAddress: "author@mail.com"}, sender, nil).Evaluate(regressedBuild())

	require.Equal(t, Failed, d.Outcome)
	require.Error(t, d.Err)
	assert.ErrorIs(t, d.Err, transportErr)

	var notifyErr *NotificationError
	require.True(t, errors.As(d.Err, &notifyErr))
	assert.Equal(t, "project", notifyErr.Job)
	assert.Equal(t, 42, notifyErr.Number)
	assert.Equal(t, []string{"author@mail.com"}, notifyErr.Recipients)
	assert.Contains(t, notifyErr.Error(), "author@mail.com")
	assert.Equal(t, 1, sender.calls, "delivery must not be retried")
}

func TestEvaluateIsIdempotent(t *testing.T) {
	rec := regressedBuild()
	opts := Options{AuthorAddress: "author@mail.com", NotifyCulprits: true, AttachLog: true}
	resolver := mapResolver{"culprit": "culprit@mail.com"}

	first, second := &recordingSender{}, &recordingSender{}
	d1 := newNotifier(t, opts, first, resolver).Evaluate(rec)
	d2 := newNotifier(t, opts, second, resolver).Evaluate(rec)

	require.Equal(t, Sent, d1.Outcome)
	require.Equal(t, Sent, d2.Outcome)
	assert.Equal(t, first.recipients, second.recipients)
	assert.Equal(t, first.message.Subject, second.message.Subject)
	assert.Equal(t, first.message.Body, second.message.Body)
	assert.Equal(t, first.message.Attachment, second.message.Attachment)
	assert.Len(t, rec.changes, 1, "record must not be modified")
}

func TestEvaluateMessageContent(t *testing.T) {
	sender := &recordingSender{}
	d := newNotifier(t, Options{AuthorAddress: "author@mail.com"}, sender, nil).Evaluate(regressedBuild())
	require.Equal(t, Sent, d.Outcome)

	msg := sender.message
	assert.Equal(t, "Regression Report: project #42", msg.Subject)
	assert.Contains(t, msg.Body, "Build project #42 finished with result FAILURE.")
	assert.Contains(t, msg.Body, "https://ci.example.com/job/project/42/")
	assert.Contains(t, msg.Body, "1 of 3 test case(s) regressed")
	assert.Contains(t, msg.Body, "com.example.FooTest.testBreaks")
	assert.Contains(t, msg.Body, "expected 1 but was 2")
	assert.NotContains(t, msg.Body, "at FooTest")
	assert.NotContains(t, msg.Body, "testPasses")
	assert.Contains(t, msg.Body, "1 other test case(s) are still failing.")
	assert.Contains(t, msg.Body, "0123456789 culprit: Break FooTest")
	assert.NotContains(t, msg.Body, "long description")
}

func TestNewValidation(t *testing.T) {
	_, err := New(Options{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrNoMailSender)

	_, err = New(Options{SubjectTemplate: "{{ .Job "}, &recordingSender{}, nil, nil)
	assert.Error(t, err)

	_, err = New(Options{SubjectTemplate: "{{ .Missing }}"}, &recordingSender{}, nil, nil)
	assert.Error(t, err)

	n, err := New(Options{SubjectTemplate: "[CI] {{ .Job | upper }} {{ .Result }}"}, &recordingSender{}, nil, nil)
	require.NoError(t, err)

	sender := &recordingSender{}
	n.sender = sender
	n.opts.AuthorAddress = "author@mail.com"
	require.Equal(t, Sent, n.Evaluate(regressedBuild()).Outcome)
	assert.Equal(t, "[CI] PROJECT FAILURE", sender.message.Subject)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "noop", NoOp.String())
	assert.Equal(t, "sent", Sent.String())
	assert.Equal(t, "failed", Failed.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}
