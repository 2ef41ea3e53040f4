// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package build

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Outcome is the result assigned to a completed build.
type Outcome int

const (
	// OutcomeUnknown means the build has no result assigned yet.
	OutcomeUnknown Outcome = iota
	OutcomeSuccess
	OutcomeUnstable
	OutcomeFailure
	OutcomeAborted
	OutcomeNotBuilt
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeUnstable:
		return "UNSTABLE"
	case OutcomeFailure:
		return "FAILURE"
	case OutcomeAborted:
		return "ABORTED"
	case OutcomeNotBuilt:
		return "NOT_BUILT"
	default:
		return "UNKNOWN"
	}
}

// Completed reports whether a result has been assigned.
func (o Outcome) Completed() bool {
	return o != OutcomeUnknown
}

// ParseOutcome maps a result name (case-insensitive) to an Outcome.
// An empty string yields OutcomeUnknown without error.
func ParseOutcome(s string) (Outcome, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return OutcomeUnknown, nil
	case "SUCCESS":
		return OutcomeSuccess, nil
	case "UNSTABLE":
		return OutcomeUnstable, nil
	case "FAILURE", "FAILED":
		return OutcomeFailure, nil
	case "ABORTED":
		return OutcomeAborted, nil
	case "NOT_BUILT":
		return OutcomeNotBuilt, nil
	default:
		return OutcomeUnknown, fmt.Errorf("unknown build result %q", s)
	}
}

// CaseStatus is the status of a single test case relative to the previous build.
type CaseStatus int

const (
	StatusPassed CaseStatus = iota
	StatusFixed
	StatusRegression
	StatusFailed
	StatusSkipped
)

func (s CaseStatus) String() string {
	switch s {
	case StatusPassed:
		return "PASSED"
	case StatusFixed:
		return "FIXED"
	case StatusRegression:
		return "REGRESSION"
	case StatusFailed:
		return "FAILED"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return fmt.Sprintf("CaseStatus(%d)", int(s))
	}
}

// ParseCaseStatus maps a status name (case-insensitive) to a CaseStatus.
func ParseCaseStatus(s string) (CaseStatus, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PASSED", "PASS":
		return StatusPassed, nil
	case "FIXED":
		return StatusFixed, nil
	case "REGRESSION":
		return StatusRegression, nil
	case "FAILED", "FAILURE", "FAIL":
		return StatusFailed, nil
	case "SKIPPED", "SKIP":
		return StatusSkipped, nil
	default:
		return StatusPassed, fmt.Errorf("unknown test case status %q", s)
	}
}

// CaseResult is one executed test case.
type CaseResult struct {
	ClassName    string
	Name         string
	Status       CaseStatus
	Duration     time.Duration
	ErrorDetails string
}

// FullName returns the case name qualified with its class, if any.
func (c CaseResult) FullName() string {
	if c.ClassName == "" {
		return c.Name
	}
	return c.ClassName + "." + c.Name
}

// Summary is the test-result summary attached to a build.
type Summary struct {
	Cases []CaseResult
}

// Regressions returns the cases with StatusRegression in summary order.
func (s *Summary) Regressions() []CaseResult {
	if s == nil {
		return nil
	}
	var out []CaseResult
	for _, c := range s.Cases {
		if c.Status == StatusRegression {
			out = append(out, c)
		}
	}
	return out
}

// Count returns the number of cases with the given status.
func (s *Summary) Count(status CaseStatus) int {
	if s == nil {
		return 0
	}
	n := 0
	for _, c := range s.Cases {
		if c.Status == status {
			n++
		}
	}
	return n
}

// ChangeEntry is one commit contributing to a build.
type ChangeEntry struct {
	Revision string
	// Author is the committer identity as known to the SCM.
	Author string
	// AuthorEmail is the address recorded on the commit, if any.
	AuthorEmail string
	Message     string
}

// Record is a read-only view of a finished build.
type Record interface {
	Job() string
	Number() int
	URL() string
	Result() Outcome
	// TestResults returns the test summary and false when no test
	// framework reported for this build.
	TestResults() (*Summary, bool)
	ChangeLog() []ChangeEntry
	// ConsoleLog opens the console log. Callers must close the reader.
	ConsoleLog() (io.ReadCloser, error)
	// LogSink receives diagnostics meant for the build's own log.
	LogSink() io.Writer
}

// DisplayName renders "job #number" for a record.
func DisplayName(r Record) string {
	return fmt.Sprintf("%s #%d", r.Job(), r.Number())
}
