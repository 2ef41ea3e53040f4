package mail

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/telekom/regression-notifier/pkg/build"
)

// DefaultSubjectTemplate is used when no subject template is configured.
const DefaultSubjectTemplate = "Regression Report: {{ .Job }} #{{ .Number }}"

// ReportParams is the data available to the report body and subject templates.
type ReportParams struct {
	Job         string
	Number      int
	URL         string
	Result      string
	Total       int // number of test cases in the summary
	Failed      int // cases that failed in this and the previous build
	Regressions []build.CaseResult
	Changes     []build.ChangeEntry
}

var (
	reportTemplate = template.New("regressionReport").Funcs(funcMap())

	//go:embed templates/regressionReport.txt
	reportTemplateRaw string
)

func init() {
	if _, err := reportTemplate.Parse(reportTemplateRaw); err != nil {
		panic(err)
	}
}

func funcMap() template.FuncMap {
	fm := sprig.TxtFuncMap()
	fm["firstLine"] = firstLine
	return fm
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i])
	}
	return s
}

func render(t *template.Template, p any) (string, error) {
	b := bytes.Buffer{}
	err := t.Execute(&b, p)
	return b.String(), err
}

// RenderRegressionReport renders the plain-text report body.
func RenderRegressionReport(p ReportParams) (string, error) {
	return render(reportTemplate, p)
}

// SubjectTemplate renders message subjects from ReportParams.
type SubjectTemplate struct {
	tmpl *template.Template
}

// ParseSubjectTemplate parses raw with sprig functions available. An empty
// raw uses DefaultSubjectTemplate. The template is executed once against
// empty params so unknown fields are reported here.
func ParseSubjectTemplate(raw string) (*SubjectTemplate, error) {
	if raw == "" {
		raw = DefaultSubjectTemplate
	}
	t, err := template.New("subject").Funcs(funcMap()).Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing subject template: %w", err)
	}
	if _, err := render(t, ReportParams{}); err != nil {
		return nil, fmt.Errorf("executing subject template: %w", err)
	}
	return &SubjectTemplate{tmpl: t}, nil
}

// Render returns the subject collapsed to a single line.
func (s *SubjectTemplate) Render(p ReportParams) (string, error) {
	out, err := render(s.tmpl, p)
	if err != nil {
		return "", err
	}
	return strings.Join(strings.Fields(out), " "), nil
}
