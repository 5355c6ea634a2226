package runner

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/specrun/specrun/pkg/report"
)

// Reporter receives progress callbacks during a run. The Runner
// serializes calls, so implementations need no locking of their own.
type Reporter interface {
	TestStarted(suite, test string)
	TestFinished(suite string, result report.TestResult)
	SuiteFinished(result report.SuiteResult)
}

// NopReporter ignores all callbacks.
type NopReporter struct{}

func (NopReporter) TestStarted(string, string)             {}
func (NopReporter) TestFinished(string, report.TestResult) {}
func (NopReporter) SuiteFinished(report.SuiteResult)       {}

// ConsoleReporter prints one line per finished test.
type ConsoleReporter struct {
	w io.Writer
	// Verbose also announces started tests and suite summaries.
	Verbose bool
	// Colored enables ANSI colors on status labels.
	Colored bool
}

// NewConsoleReporter writes progress lines to w.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{w: w}
}

func (c *ConsoleReporter) TestStarted(suite, test string) {
	if !c.Verbose {
		return
	}
	fmt.Fprintf(c.w, "%s %s/%s\n", c.label("RUN", text.FgCyan), suite, test)
}

func (c *ConsoleReporter) TestFinished(suite string, result report.TestResult) {
	elapsed := result.Duration.Duration().Round(time.Millisecond)

	switch result.Status {
	case report.StatusPassed:
		fmt.Fprintf(c.w, "%s %s/%s (%s)\n", c.label("PASS", text.FgGreen), suite, result.Name, elapsed)
	case report.StatusFailed:
		fmt.Fprintf(c.w, "%s %s/%s (%s): %s\n", c.label("FAIL", text.FgRed), suite, result.Name, elapsed, firstFailure(result))
	case report.StatusSkipped:
		fmt.Fprintf(c.w, "%s %s/%s (%s)\n", c.label("SKIP", text.FgYellow), suite, result.Name, result.SkipReason)
	case report.StatusError:
		fmt.Fprintf(c.w, "%s %s/%s (%s): %s\n", c.label("ERROR", text.FgHiRed), suite, result.Name, elapsed, firstFailure(result))
	}
}

func (c *ConsoleReporter) SuiteFinished(result report.SuiteResult) {
	if !c.Verbose {
		return
	}
	fmt.Fprintf(c.w, "suite %s: %d tests in %s\n",
		result.Name, len(result.Tests), result.Duration.Duration().Round(time.Millisecond))
}

func (c *ConsoleReporter) label(s string, color text.Color) string {
	padded := fmt.Sprintf("%-5s", s)
	if !c.Colored {
		return padded
	}
	return color.Sprint(padded)
}

func firstFailure(result report.TestResult) string {
	if len(result.Failures) == 0 {
		return "unknown failure"
	}
	return result.Failures[0].Message
}
