package junit

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// headerLines is how many lines of a candidate file are inspected for a
// <testsuite element before it is discarded as not being a JUnit report.
const headerLines = 10

// TestSuites is the <testsuites> root element.
type TestSuites struct {
	XMLName xml.Name    `xml:"testsuites"`
	Suites  []TestSuite `xml:"testsuite"`
}

// TestSuite is a <testsuite> element. Suites may nest.
type TestSuite struct {
	XMLName   xml.Name    `xml:"testsuite"`
	Name      string      `xml:"name,attr"`
	Tests     int         `xml:"tests,attr"`
	Failures  int         `xml:"failures,attr"`
	Errors    int         `xml:"errors,attr"`
	Skipped   int         `xml:"skipped,attr"`
	Time      float64     `xml:"time,attr"`
	Timestamp string      `xml:"timestamp,attr"`
	TestCases []TestCase  `xml:"testcase"`
	Suites    []TestSuite `xml:"testsuite"`
}

// TestCase is a <testcase> element.
type TestCase struct {
	Name      string   `xml:"name,attr"`
	ClassName string   `xml:"classname,attr"`
	Time      float64  `xml:"time,attr"`
	Failure   *Problem `xml:"failure"`
	Error     *Problem `xml:"error"`
	Skipped   *Problem `xml:"skipped"`
}

// Problem is the payload of a <failure>, <error> or <skipped> element.
type Problem struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Body    string `xml:",chardata"`
}

// Result is the raw outcome of one case within a single run.
type Result int

const (
	ResultPassed Result = iota
	ResultFailed
	ResultSkipped
)

// Case is a flattened test case from one run.
type Case struct {
	ClassName string
	Name      string
	Result    Result
	Duration  time.Duration
	Details   string
}

// Key identifies a case across runs.
func (c Case) Key() string {
	return c.ClassName + "." + c.Name
}

// Parse decodes a single report. Both <testsuites> and <testsuite> roots
// are accepted.
func Parse(r io.Reader) ([]TestSuite, error) {
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("no testsuite element found")
			}
			return nil, fmt.Errorf("reading junit report: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch start.Name.Local {
		case "testsuites":
			var suites TestSuites
			if err := dec.DecodeElement(&suites, &start); err != nil {
				return nil, fmt.Errorf("decoding testsuites: %w", err)
			}
			return suites.Suites, nil
		case "testsuite":
			var suite TestSuite
			if err := dec.DecodeElement(&suite, &start); err != nil {
				return nil, fmt.Errorf("decoding testsuite: %w", err)
			}
			return []TestSuite{suite}, nil
		default:
			return nil, fmt.Errorf("unexpected root element <%s>", start.Name.Local)
		}
	}
}

// Flatten returns every case of the suites, nested suites included.
func Flatten(suites []TestSuite) []Case {
	var out []Case
	for _, s := range suites {
		for _, tc := range s.TestCases {
			out = append(out, toCase(s.Name, tc))
		}
		out = append(out, Flatten(s.Suites)...)
	}
	return out
}

func toCase(suiteName string, tc TestCase) Case {
	c := Case{
		ClassName: tc.ClassName,
		Name:      tc.Name,
		Duration:  time.Duration(tc.Time * float64(time.Second)),
	}
	if c.ClassName == "" {
		c.ClassName = suiteName
	}
	switch {
	case tc.Skipped != nil:
		c.Result = ResultSkipped
	case tc.Failure != nil:
		c.Result = ResultFailed
		c.Details = tc.Failure.details()
	case tc.Error != nil:
		c.Result = ResultFailed
		c.Details = tc.Error.details()
	}
	return c
}

func (p *Problem) details() string {
	if p.Message != "" {
		return p.Message
	}
	return strings.TrimSpace(p.Body)
}

// ParseFile parses the report at path.
func ParseFile(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	suites, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return Flatten(suites), nil
}

// FindReports walks dir and returns the .xml files that look like JUnit
// reports, sorted by path. A missing dir yields no reports.
func FindReports(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".xml") {
			return nil
		}
		ok, err := isReport(path)
		if err != nil {
			return err
		}
		if ok {
			files = append(files, path)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func isReport(path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	reader := bufio.NewReader(f)
	for i := 0; i < headerLines; i++ {
		line, err := reader.ReadBytes('\n')
		if bytes.Contains(line, []byte("<testsuite")) {
			return true, nil
		}
		if err != nil {
			break
		}
	}
	return false, nil
}

// Run is the set of reports produced by one build.
type Run struct {
	Files []string
	Cases []Case
}

// Empty reports whether no report files were found.
func (r *Run) Empty() bool {
	return r == nil || len(r.Files) == 0
}

// LoadDir finds and parses every report under dir.
func LoadDir(dir string) (*Run, error) {
	files, err := FindReports(dir)
	if err != nil {
		return nil, fmt.Errorf("finding junit reports in %s: %w", dir, err)
	}
	run := &Run{Files: files}
	for _, f := range files {
		c, err := ParseFile(f)
		if err != nil {
			return nil, err
		}
		run.Cases = append(run.Cases, c...)
	}
	return run, nil
}
