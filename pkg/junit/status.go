package junit

import (
	"github.com/telekom/regression-notifier/pkg/build"
)

// Derive assigns a status to every case of current by comparing it with the
// same case in previous. previous may be nil when there is no earlier run.
func Derive(current, previous []Case) []build.CaseResult {
	prev := make(map[string]Result, len(previous))
	for _, c := range previous {
		if c.Result == ResultSkipped {
			continue
		}
		// a case reported several times counts as failed if any report failed
		if r, ok := prev[c.Key()]; ok && r == ResultFailed {
			continue
		}
		prev[c.Key()] = c.Result
	}

	out := make([]build.CaseResult, 0, len(current))
	for _, c := range current {
		out = append(out, build.CaseResult{
			ClassName:    c.ClassName,
			Name:         c.Name,
			Status:       status(c.Result, prev, c.Key()),
			Duration:     c.Duration,
			ErrorDetails: c.Details,
		})
	}
	return out
}

func status(now Result, prev map[string]Result, key string) build.CaseStatus {
	if now == ResultSkipped {
		return build.StatusSkipped
	}
	passed := now == ResultPassed
	before, ok := prev[key]
	switch {
	case !ok && passed:
		return build.StatusPassed
	case !ok:
		return build.StatusFailed
	case before == ResultPassed && passed:
		return build.StatusPassed
	case before == ResultPassed:
		return build.StatusRegression
	case passed:
		return build.StatusFixed
	default:
		return build.StatusFailed
	}
}

// Summarize loads the reports under dir and derives statuses against the
// reports under previousDir. It returns nil when dir holds no reports.
// An empty previousDir means there is no earlier run.
func Summarize(dir, previousDir string) (*build.Summary, error) {
	current, err := LoadDir(dir)
	if err != nil {
		return nil, err
	}
	if current.Empty() {
		return nil, nil
	}

	var previous []Case
	if previousDir != "" {
		run, err := LoadDir(previousDir)
		if err != nil {
			return nil, err
		}
		previous = run.Cases
	}
	return &build.Summary{Cases: Derive(current.Cases, previous)}, nil
}
