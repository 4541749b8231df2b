package result

import (
	"encoding/xml"
	"fmt"
	"time"

	"huskycat/internal/hcerrors"
)

// JUnit document model: one <testsuite> per tool, one <testcase> per
// (tool, target). Failed maps to <failure>, skipped and unavailable to
// <skipped>, timeout to <error>.

type junitTestsuites struct {
	XMLName  xml.Name         `xml:"testsuites"`
	Name     string           `xml:"name,attr"`
	Tests    int              `xml:"tests,attr"`
	Failures int              `xml:"failures,attr"`
	Errors   int              `xml:"errors,attr"`
	Skipped  int              `xml:"skipped,attr"`
	Time     string           `xml:"time,attr"`
	Suites   []junitTestsuite `xml:"testsuite"`
}

type junitTestsuite struct {
	Name     string          `xml:"name,attr"`
	Tests    int             `xml:"tests,attr"`
	Failures int             `xml:"failures,attr"`
	Errors   int             `xml:"errors,attr"`
	Skipped  int             `xml:"skipped,attr"`
	Time     string          `xml:"time,attr"`
	Cases    []junitTestcase `xml:"testcase"`
}

type junitTestcase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Time      string        `xml:"time,attr"`
	Failure   *junitOutcome `xml:"failure,omitempty"`
	Error     *junitOutcome `xml:"error,omitempty"`
	Skipped   *junitOutcome `xml:"skipped,omitempty"`
	SystemOut string        `xml:"system-out,omitempty"`
}

type junitOutcome struct {
	Message string `xml:"message,attr"`
	Body    string `xml:",chardata"`
}

// SerializeJUnit renders the run as a JUnit XML artifact for CI ingestion.
func SerializeJUnit(run *Run) ([]byte, error) {
	byTool := make(map[string]*junitTestsuite)
	var order []string
	for _, res := range run.Results {
		suite, ok := byTool[res.Tool]
		if !ok {
			suite = &junitTestsuite{Name: res.Tool}
			byTool[res.Tool] = suite
			order = append(order, res.Tool)
		}

		tc := junitTestcase{
			Name:      res.Target,
			Classname: "huskycat." + res.Tool,
			Time:      junitSeconds(res.Duration),
		}
		suite.Tests++
		switch res.Status {
		case StatusFailed:
			suite.Failures++
			tc.Failure = &junitOutcome{
				Message: fmt.Sprintf("%d error(s), %d warning(s)", res.Errors, res.Warnings),
				Body:    res.Stdout + res.Stderr,
			}
		case StatusTimeout:
			suite.Errors++
			tc.Error = &junitOutcome{
				Message: "deadline exceeded",
				Body:    fmt.Sprintf("tool did not finish within %s", res.Duration.Round(time.Millisecond)),
			}
		case StatusSkipped, StatusUnavailable:
			suite.Skipped++
			tc.Skipped = &junitOutcome{Message: res.SkipReason}
		default:
			tc.SystemOut = res.Stdout
		}
		suite.Cases = append(suite.Cases, tc)
	}

	doc := junitTestsuites{
		Name: "huskycat validation " + run.ID,
		Time: junitSeconds(run.Summary.WallClock),
	}
	for _, name := range order {
		suite := byTool[name]
		var suiteTime time.Duration
		for _, res := range run.Results {
			if res.Tool == name {
				suiteTime += res.Duration
			}
		}
		suite.Time = junitSeconds(suiteTime)
		doc.Tests += suite.Tests
		doc.Failures += suite.Failures
		doc.Errors += suite.Errors
		doc.Skipped += suite.Skipped
		doc.Suites = append(doc.Suites, *suite)
	}

	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, hcerrors.Wrap(hcerrors.KindIO, err, "serialize junit report")
	}
	return append([]byte(xml.Header), data...), nil
}

func junitSeconds(d time.Duration) string {
	return fmt.Sprintf("%.3f", d.Seconds())
}
