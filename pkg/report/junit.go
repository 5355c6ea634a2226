package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// WriteJUnit renders the run as JUnit XML for CI systems.
func WriteJUnit(w io.Writer, run *Run) error {
	doc := buildJUnit(run)
	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write JUnit report: %w", err)
	}
	return nil
}

// SaveJUnit writes the JUnit report to path.
func SaveJUnit(path string, run *Run) error {
	doc := buildJUnit(run)
	doc.Indent(2)
	data, err := doc.WriteToBytes()
	if err != nil {
		return fmt.Errorf("failed to render JUnit report: %w", err)
	}
	return save(path, data)
}

func buildJUnit(run *Run) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("testsuites")
	root.CreateAttr("name", "specrun")
	root.CreateAttr("tests", strconv.Itoa(run.Totals.Tests))
	root.CreateAttr("failures", strconv.Itoa(run.Totals.Failed))
	root.CreateAttr("errors", strconv.Itoa(run.Totals.Errors))
	root.CreateAttr("skipped", strconv.Itoa(run.Totals.Skipped))
	root.CreateAttr("time", seconds(run.Duration))

	for _, suite := range run.Suites {
		ts := root.CreateElement("testsuite")
		ts.CreateAttr("name", suite.Name)

		var failures, errors, skipped int
		for _, test := range suite.Tests {
			switch test.Status {
			case StatusFailed:
				failures++
			case StatusError:
				errors++
			case StatusSkipped:
				skipped++
			}
		}
		ts.CreateAttr("tests", strconv.Itoa(len(suite.Tests)))
		ts.CreateAttr("failures", strconv.Itoa(failures))
		ts.CreateAttr("errors", strconv.Itoa(errors))
		ts.CreateAttr("skipped", strconv.Itoa(skipped))
		ts.CreateAttr("time", seconds(suite.Duration))
		ts.CreateAttr("timestamp", run.StartedAt.Format("2006-01-02T15:04:05"))

		for _, test := range suite.Tests {
			tc := ts.CreateElement("testcase")
			tc.CreateAttr("name", test.Name)
			tc.CreateAttr("classname", suite.Name)
			tc.CreateAttr("time", seconds(test.Duration))

			switch test.Status {
			case StatusSkipped:
				sk := tc.CreateElement("skipped")
				if test.SkipReason != "" {
					sk.CreateAttr("message", test.SkipReason)
				}
			case StatusFailed:
				appendProblem(tc, "failure", test.Failures)
			case StatusError:
				appendProblem(tc, "error", test.Failures)
			}
		}
	}

	return doc
}

func appendProblem(tc *etree.Element, tag string, failures []Failure) {
	el := tc.CreateElement(tag)
	if len(failures) == 0 {
		return
	}

	el.CreateAttr("message", failures[0].Message)
	el.CreateAttr("type", failures[0].Check)

	lines := make([]string, 0, len(failures))
	for _, f := range failures {
		if f.Path != "" {
			lines = append(lines, fmt.Sprintf("[%s] %s (at %s)", f.Check, f.Message, f.Path))
		} else {
			lines = append(lines, fmt.Sprintf("[%s] %s", f.Check, f.Message))
		}
	}
	el.SetText(strings.Join(lines, "\n"))
}

func seconds(m Millis) string {
	return strconv.FormatFloat(m.Duration().Seconds(), 'f', 3, 64)
}
