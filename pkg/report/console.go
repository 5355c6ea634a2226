package report

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxDetailWidth = 72

// WriteConsole renders a human-readable result table followed by a
// one-line summary.
func WriteConsole(w io.Writer, run *Run, colored bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"SUITE", "TEST", "STATUS", "TIME", "DETAIL"})

	for _, suite := range run.Suites {
		for _, test := range suite.Tests {
			t.AppendRow(table.Row{
				suite.Name,
				test.Name,
				statusCell(test.Status, colored),
				test.Duration.Duration().Round(time.Millisecond),
				detailCell(test),
			})
		}
	}
	t.Render()

	fmt.Fprintln(w, Summary(run, colored))
}

// Summary returns the one-line outcome, e.g.
// "FAIL: 12 total, 10 passed, 1 failed, 1 skipped in 2.3s".
func Summary(run *Run, colored bool) string {
	verdict := "PASS"
	paint := text.FgGreen
	if !run.Passed() {
		verdict = "FAIL"
		paint = text.FgRed
	}
	if colored {
		verdict = paint.Sprint(verdict)
	}

	s := fmt.Sprintf("%s: %d total, %d passed, %d failed",
		verdict, run.Totals.Tests, run.Totals.Passed, run.Totals.Failed)
	if run.Totals.Errors > 0 {
		s += fmt.Sprintf(", %d errors", run.Totals.Errors)
	}
	if run.Totals.Skipped > 0 {
		s += fmt.Sprintf(", %d skipped", run.Totals.Skipped)
	}
	return s + fmt.Sprintf(" in %s", run.Duration.Duration().Round(time.Millisecond))
}

func statusCell(status Status, colored bool) string {
	label := map[Status]string{
		StatusPassed:  "PASS",
		StatusFailed:  "FAIL",
		StatusSkipped: "SKIP",
		StatusError:   "ERROR",
	}[status]
	if label == "" {
		label = string(status)
	}
	if !colored {
		return label
	}

	switch status {
	case StatusPassed:
		return text.FgGreen.Sprint(label)
	case StatusFailed:
		return text.FgRed.Sprint(label)
	case StatusSkipped:
		return text.FgYellow.Sprint(label)
	case StatusError:
		return text.FgHiRed.Sprint(label)
	}
	return label
}

func detailCell(test TestResult) string {
	var detail string
	switch {
	case test.Status == StatusSkipped && test.SkipReason != "":
		detail = test.SkipReason
	case len(test.Failures) > 0:
		f := test.Failures[0]
		detail = fmt.Sprintf("[%s] %s", f.Check, f.Message)
	}
	if len(detail) > maxDetailWidth {
		detail = detail[:maxDetailWidth-3] + "..."
	}
	return detail
}
