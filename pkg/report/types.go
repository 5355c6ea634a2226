// Package report holds run results and renders them as JSON, JUnit XML,
// HTML, or a console summary.
package report

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status classifies the outcome of a single test.
type Status string

const (
	// StatusPassed means every expectation held.
	StatusPassed Status = "passed"
	// StatusFailed means at least one expectation did not hold.
	StatusFailed Status = "failed"
	// StatusSkipped means the test was not executed.
	StatusSkipped Status = "skipped"
	// StatusError means the request itself failed before any
	// expectation could be checked.
	StatusError Status = "error"
)

// Millis is a duration marshaled as integer milliseconds.
type Millis time.Duration

// Duration returns the value as a time.Duration.
func (m Millis) Duration() time.Duration {
	return time.Duration(m)
}

func (m Millis) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(m).Milliseconds())
}

func (m *Millis) UnmarshalJSON(data []byte) error {
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	*m = Millis(time.Duration(ms) * time.Millisecond)
	return nil
}

// Run is the result of one invocation across all loaded suites.
type Run struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  Millis        `json:"durationMs"`
	Suites    []SuiteResult `json:"suites"`
	Totals    Totals        `json:"totals"`
}

// SuiteResult is the result of one suite.
type SuiteResult struct {
	Name     string       `json:"name"`
	Source   string       `json:"source,omitempty"`
	BaseURL  string       `json:"baseUrl,omitempty"`
	Passed   bool         `json:"passed"`
	Duration Millis       `json:"durationMs"`
	Tests    []TestResult `json:"tests"`
}

// TestResult is the result of one test.
type TestResult struct {
	Name     string `json:"name"`
	Status   Status `json:"status"`
	Duration Millis `json:"durationMs"`
	// Attempts is 1 plus the number of retries used.
	Attempts int `json:"attempts,omitempty"`
	// SkipReason explains a skipped test.
	SkipReason string `json:"skipReason,omitempty"`
	// Failures lists every expectation that did not hold. A test in
	// fail-fast mode carries at most one entry.
	Failures []Failure `json:"failures,omitempty"`
}

// Failure describes one failed expectation.
type Failure struct {
	// Check names the expectation kind: "request", "status", "header",
	// "maxDuration", "schema", "body", "jsonPath" or "expr".
	Check string `json:"check"`
	// Path addresses the diverging location for body failures,
	// e.g. "items[0].sku".
	Path string `json:"path,omitempty"`
	// Message is the human-readable description.
	Message string `json:"message"`
}

// Totals aggregates test outcomes across the run.
type Totals struct {
	Tests   int `json:"tests"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// NewRun starts an empty run with a fresh ID.
func NewRun() *Run {
	return &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
}

// Finalize records the elapsed time and recomputes per-suite pass flags
// and run totals from the test results.
func (r *Run) Finalize(elapsed time.Duration) {
	r.Duration = Millis(elapsed)
	r.Totals = Totals{}

	for i := range r.Suites {
		suite := &r.Suites[i]
		suite.Passed = true
		for _, test := range suite.Tests {
			r.Totals.Tests++
			switch test.Status {
			case StatusPassed:
				r.Totals.Passed++
			case StatusFailed:
				r.Totals.Failed++
				suite.Passed = false
			case StatusSkipped:
				r.Totals.Skipped++
			case StatusError:
				r.Totals.Errors++
				suite.Passed = false
			}
		}
	}
}

// Passed reports whether the run had no failures and no errors.
func (r *Run) Passed() bool {
	return r.Totals.Failed == 0 && r.Totals.Errors == 0
}
