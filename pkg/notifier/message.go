// SPDX-FileCopyrightText: 2026 Deutsche Telekom AG
// SPDX-License-Identifier: Apache-2.0

package notifier

import (
	"fmt"

	"github.com/telekom/regression-notifier/pkg/build"
	"github.com/telekom/regression-notifier/pkg/mail"
)

func reportParams(rec build.Record, summary *build.Summary, regressions []build.CaseResult) mail.ReportParams {
	return mail.ReportParams{
		Job:         rec.Job(),
		Number:      rec.Number(),
		URL:         rec.URL(),
		Result:      rec.Result().String(),
		Total:       len(summary.Cases),
		Failed:      summary.Count(build.StatusFailed),
		Regressions: regressions,
		Changes:     rec.ChangeLog(),
	}
}

func (n *Notifier) compose(p mail.ReportParams) (mail.Message, error) {
	subject, err := n.subject.Render(p)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering subject: %w", err)
	}
	body, err := mail.RenderRegressionReport(p)
	if err != nil {
		return mail.Message{}, fmt.Errorf("rendering body: %w", err)
	}
	return mail.Message{Subject: subject, Body: body}, nil
}
