// Package runner executes loaded suites over HTTP and produces run
// results for reporting.
package runner

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/specrun/specrun/pkg/logging"
	"github.com/specrun/specrun/pkg/oauth"
	"github.com/specrun/specrun/pkg/report"
	"github.com/specrun/specrun/pkg/spec"
)

// Options configure a Runner.
type Options struct {
	// Parallel is the worker count for executing tests within a suite.
	// Values below 2 run tests sequentially.
	Parallel int
	// FailFast stops scheduling new tests after the first failure.
	// In-flight tests finish; unscheduled tests are reported as skipped.
	FailFast bool
	// Tags restricts the run to tests carrying at least one of the
	// given tags. Empty means every test runs.
	Tags []string
	// Insecure disables TLS certificate verification.
	Insecure bool
	// Timeout bounds each request when the suite sets no timeout of
	// its own. Zero means no limit.
	Timeout time.Duration
	// HTTPClient overrides the built-in client. Insecure is ignored
	// when set.
	HTTPClient *http.Client
	// Logger receives debug output. Nil discards it.
	Logger *slog.Logger
	// Reporter receives progress callbacks. Nil disables them.
	Reporter Reporter
}

// Runner executes suites. A Runner is safe for concurrent use.
type Runner struct {
	opts     Options
	client   *http.Client
	logger   *slog.Logger
	reporter Reporter

	reporterMu sync.Mutex
	programs   exprCache
}

// New builds a Runner from opts.
func New(opts Options) *Runner {
	client := opts.HTTPClient
	if client == nil {
		client = newHTTPClient(opts.Insecure)
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	reporter := opts.Reporter
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Runner{
		opts:     opts,
		client:   client,
		logger:   logger,
		reporter: reporter,
	}
}

func newHTTPClient(insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		if transport.TLSClientConfig == nil {
			transport.TLSClientConfig = &tls.Config{}
		}
		transport.TLSClientConfig.InsecureSkipVerify = true
	}
	return &http.Client{Transport: transport}
}

// Run executes the given suites in order and returns the aggregated run.
// With FailFast, suites after the first failing one are not executed.
// The returned run holds every result produced before the error, if any.
func (r *Runner) Run(ctx context.Context, suites []*spec.Suite) (*report.Run, error) {
	run := report.NewRun()
	start := time.Now()

	for _, suite := range suites {
		result, err := r.RunSuite(ctx, suite)
		if result != nil {
			run.Suites = append(run.Suites, *result)
		}
		if err != nil {
			run.Finalize(time.Since(start))
			return run, err
		}
		if r.opts.FailFast && !result.Passed {
			break
		}
	}

	run.Finalize(time.Since(start))
	return run, nil
}

// RunSuite executes one suite and returns its result. The only error
// condition is context cancellation; test-level problems are recorded in
// the result instead.
func (r *Runner) RunSuite(ctx context.Context, suite *spec.Suite) (*report.SuiteResult, error) {
	result := &report.SuiteResult{
		Name:    suite.Name,
		Source:  suite.Source,
		BaseURL: suite.BaseURL,
	}

	var tokens *oauth.Client
	if suite.Auth != nil && suite.Auth.Type == spec.AuthOAuth2 {
		tokens = oauth.NewClient(oauth.Config{
			TokenURL:     suite.Auth.TokenURL,
			ClientID:     suite.Auth.ClientID,
			ClientSecret: suite.Auth.ClientSecret,
			Scopes:       suite.Auth.Scopes,
			CacheFile:    suite.Auth.CacheFile,
		}, oauth.WithHTTPClient(r.client), oauth.WithLogger(r.logger))
	}

	r.logger.Debug("Running suite", "suite", suite.Name, "tests", len(suite.Tests))
	start := time.Now()

	results := make([]report.TestResult, len(suite.Tests))
	if r.opts.Parallel > 1 {
		r.runParallel(ctx, suite, tokens, results)
	} else {
		r.runSequential(ctx, suite, tokens, results)
	}

	result.Tests = results
	result.Duration = report.Millis(time.Since(start))
	result.Passed = true
	for _, test := range results {
		if test.Status == report.StatusFailed || test.Status == report.StatusError {
			result.Passed = false
			break
		}
	}

	r.reporterMu.Lock()
	r.reporter.SuiteFinished(*result)
	r.reporterMu.Unlock()

	return result, ctx.Err()
}

func (r *Runner) runSequential(ctx context.Context, suite *spec.Suite, tokens *oauth.Client, results []report.TestResult) {
	stopped := false
	for i := range suite.Tests {
		test := &suite.Tests[i]

		if reason, skip := r.skipReason(test); skip {
			results[i] = skippedResult(test.Name, reason)
			r.testFinished(suite.Name, results[i])
			continue
		}
		if stopped || ctx.Err() != nil {
			results[i] = skippedResult(test.Name, notRunReason(ctx, stopped))
			r.testFinished(suite.Name, results[i])
			continue
		}

		r.testStarted(suite.Name, test.Name)
		results[i] = r.runTest(ctx, suite, test, tokens)
		r.testFinished(suite.Name, results[i])

		if r.opts.FailFast && failed(results[i]) {
			stopped = true
		}
	}
}

// runParallel fans tests out to a fixed worker pool. Jobs carry the test
// index so results land in suite order.
func (r *Runner) runParallel(ctx context.Context, suite *spec.Suite, tokens *oauth.Client, results []report.TestResult) {
	jobs := make(chan int, len(suite.Tests))
	for i := range suite.Tests {
		jobs <- i
	}
	close(jobs)

	workers := r.opts.Parallel
	if workers > len(suite.Tests) {
		workers = len(suite.Tests)
	}

	var stop atomic.Bool
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				test := &suite.Tests[i]

				if reason, skip := r.skipReason(test); skip {
					results[i] = skippedResult(test.Name, reason)
					r.testFinished(suite.Name, results[i])
					continue
				}
				if stop.Load() || ctx.Err() != nil {
					results[i] = skippedResult(test.Name, notRunReason(ctx, stop.Load()))
					r.testFinished(suite.Name, results[i])
					continue
				}

				r.testStarted(suite.Name, test.Name)
				results[i] = r.runTest(ctx, suite, test, tokens)
				r.testFinished(suite.Name, results[i])

				if r.opts.FailFast && failed(results[i]) {
					stop.Store(true)
				}
			}
		}()
	}
	wg.Wait()
}

// runTest executes one test including its retry policy. Only the final
// attempt's failure is reported; the duration covers all attempts and
// backoff sleeps.
func (r *Runner) runTest(ctx context.Context, suite *spec.Suite, test *spec.Test, tokens *oauth.Client) report.TestResult {
	attempts := 1
	delay := time.Duration(0)
	multiplier := 1.0
	if retry := suite.EffectiveRetry(test); retry != nil {
		attempts += retry.Count
		delay = retry.Delay.Std()
		if retry.BackoffMultiplier > 0 {
			multiplier = retry.BackoffMultiplier
		}
	}

	start := time.Now()
	var status report.Status
	var failure *report.Failure

	executed := 0
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			r.logger.Debug("Retrying test",
				"test", test.Name, "attempt", attempt, "delay", delay)
			if err := sleep(ctx, delay); err != nil {
				break
			}
			delay = time.Duration(float64(delay) * multiplier)
		}

		status, failure = r.attempt(ctx, suite, test, tokens)
		executed++
		if status == report.StatusPassed {
			break
		}
		r.logger.Debug("Test attempt failed",
			"test", test.Name, "attempt", attempt, "status", string(status))
	}

	result := report.TestResult{
		Name:     test.Name,
		Status:   status,
		Duration: report.Millis(time.Since(start)),
		Attempts: executed,
	}
	if failure != nil {
		result.Failures = []report.Failure{*failure}
	}
	return result
}

func (r *Runner) skipReason(test *spec.Test) (string, bool) {
	if test.Skip {
		return "marked skip", true
	}
	if len(r.opts.Tags) == 0 {
		return "", false
	}
	for _, tag := range r.opts.Tags {
		if test.HasTag(tag) {
			return "", false
		}
	}
	return "does not match tag filter", true
}

func (r *Runner) testStarted(suite, test string) {
	r.reporterMu.Lock()
	r.reporter.TestStarted(suite, test)
	r.reporterMu.Unlock()
}

func (r *Runner) testFinished(suite string, result report.TestResult) {
	r.reporterMu.Lock()
	r.reporter.TestFinished(suite, result)
	r.reporterMu.Unlock()
}

func skippedResult(name, reason string) report.TestResult {
	return report.TestResult{
		Name:       name,
		Status:     report.StatusSkipped,
		SkipReason: reason,
	}
}

func notRunReason(ctx context.Context, stopped bool) string {
	if ctx.Err() != nil {
		return "run canceled"
	}
	if stopped {
		return "fail-fast"
	}
	return "not run"
}

func failed(result report.TestResult) bool {
	return result.Status == report.StatusFailed || result.Status == report.StatusError
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
