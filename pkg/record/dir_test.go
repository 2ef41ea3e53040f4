package record

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telekom/regression-notifier/pkg/build"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

const metadata = `job: payments-service
number: 42
url: https://ci.example.com/job/payments-service/42/
result: UNSTABLE
changes:
  - revision: a1b2c3d4
    author: alice
    authorEmail: alice@example.com
    message: Refactor refunds
`

func TestLoadDir(t *testing.T) {
	root := t.TempDir()
	current := filepath.Join(root, "42")
	previous := filepath.Join(root, "41")
	writeFile(t, filepath.Join(current, DefaultMetadataFile), metadata)
	writeFile(t, filepath.Join(current, DefaultConsoleLog), "console output\n")
	writeFile(t, filepath.Join(current, DefaultReportsDir, "TEST.xml"),
		`<testsuite name="s"><testcase classname="s" name="refund"><failure message="boom"/></testcase></testsuite>`)
	writeFile(t, filepath.Join(previous, DefaultReportsDir, "TEST.xml"),
		`<testsuite name="s"><testcase classname="s" name="refund"/></testsuite>`)

	var sink bytes.Buffer
	rec, err := LoadDir(current, DirOptions{PreviousDir: previous, Sink: &sink})
	require.NoError(t, err)

	assert.Equal(t, "payments-service", rec.Job())
	assert.Equal(t, 42, rec.Number())
	assert.Equal(t, "https://ci.example.com/job/payments-service/42/", rec.URL())
	assert.Equal(t, build.OutcomeUnstable, rec.Result())
	assert.Same(t, &sink, rec.LogSink().(*bytes.Buffer))

	summary, ok := rec.TestResults()
	require.True(t, ok)
	regressions := summary.Regressions()
	require.Len(t, regressions, 1)
	assert.Equal(t, "s.refund", regressions[0].FullName())

	assert.Equal(t, []build.ChangeEntry{{
		Revision:    "a1b2c3d4",
		Author:      "alice",
		AuthorEmail: "alice@example.com",
		Message:     "Refactor refunds",
	}}, rec.ChangeLog())

	log, err := rec.ConsoleLog()
	require.NoError(t, err)
	defer log.Close()
	data, err := io.ReadAll(log)
	require.NoError(t, err)
	assert.Equal(t, "console output\n", string(data))
}

func TestLoadDirDefaults(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nightly")
	writeFile(t, filepath.Join(dir, DefaultMetadataFile), "number: 7\nresult: SUCCESS\n")

	rec, err := LoadDir(dir, DirOptions{})
	require.NoError(t, err)

	assert.Equal(t, "nightly", rec.Job(), "job defaults to the directory name")
	assert.Equal(t, io.Discard, rec.LogSink())
	_, ok := rec.TestResults()
	assert.False(t, ok, "no reports means no test results")
	assert.Empty(t, rec.ChangeLog())

	_, err = rec.ConsoleLog()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadDirCustomLayout(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "meta.yml"), "job: custom\nresult: FAILURE\n")
	writeFile(t, filepath.Join(dir, "target", "surefire", "TEST.xml"), `<testsuite name="s"><testcase name="ok"/></testsuite>`)

	rec, err := LoadDir(dir, DirOptions{MetadataFile: "meta.yml", ReportsDir: "target/surefire"})
	require.NoError(t, err)

	summary, ok := rec.TestResults()
	require.True(t, ok)
	assert.Len(t, summary.Cases, 1)
}

func TestLoadDirErrors(t *testing.T) {
	tests := []struct {
		name     string
		metadata string
		report   string
	}{
		{name: "missing metadata"},
		{name: "invalid yaml", metadata: "job: [unterminated"},
		{name: "unknown result", metadata: "job: x\nresult: EXPLODED\n"},
		{name: "broken report", metadata: "job: x\nresult: FAILURE\n", report: "<testsuite name=\"s\">\n<testcase"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if tt.metadata != "" {
				writeFile(t, filepath.Join(dir, DefaultMetadataFile), tt.metadata)
			}
			if tt.report != "" {
				writeFile(t, filepath.Join(dir, DefaultReportsDir, "TEST.xml"), tt.report)
			}
			_, err := LoadDir(dir, DirOptions{})
			assert.Error(t, err)
		})
	}
}

func TestLoadDirChangeAuthorEmail(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, DefaultMetadataFile), `job: lib
result: FAILURE
changes:
  - revision: r1
    author: bob
    authorEmail: bob@example.com
  - revision: r2
    author: carol
`)

	rec, err := LoadDir(dir, DirOptions{})
	require.NoError(t, err)

	changes := rec.ChangeLog()
	require.Len(t, changes, 2)
	assert.Equal(t, "bob@example.com", changes[0].AuthorEmail)
	assert.Empty(t, changes[1].AuthorEmail)
}
