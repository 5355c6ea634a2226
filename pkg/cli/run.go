package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/specrun/specrun/pkg/cli/internal/output"
	"github.com/specrun/specrun/pkg/logging"
	"github.com/specrun/specrun/pkg/report"
	"github.com/specrun/specrun/pkg/runner"
	"github.com/specrun/specrun/pkg/spec"
)

var (
	runFiles    []string
	runBaseURL  string
	runParallel int
	runFailFast bool
	runTags     []string
	runInsecure bool
	runTimeout  time.Duration
	runOut      string
	runFormats  []string
	runWatch    bool
	runVerbose  bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run test suites against a live API",
	Long: `Run test suites against a live API.

Each test sends its request and checks the response: status, headers,
timing, and a structural comparison of the body against the expected
value. The command prints a result table and exits non-zero when any
test fails.`,
	Example: `  # Run the default suite file
  specrun run

  # Run all suites with four workers, stop at the first failure
  specrun run -f 'suites/*.yaml' --parallel 4 --fail-fast

  # Run only smoke tests against a staging host and keep reports
  specrun run -f api.yaml --tags smoke --base-url https://staging.example.com --out reports --format json,junit

  # Re-run automatically while editing suites
  specrun run -f api.yaml --watch`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		opts := runOpts{
			patterns: runFiles,
			baseURL:  runBaseURL,
			parallel: runParallel,
			failFast: runFailFast,
			tags:     runTags,
			insecure: runInsecure,
			timeout:  runTimeout,
			outDir:   runOut,
			formats:  runFormats,
			verbose:  runVerbose,
			spin:     !runVerbose && !jsonOutput,
			stdout:   os.Stdout,
		}

		if runWatch {
			return watchAndRun(ctx, opts)
		}

		run, err := executeRun(ctx, opts)
		if err != nil {
			return err
		}
		if !run.Passed() {
			return fmt.Errorf("%d of %d test(s) failed", run.Totals.Failed+run.Totals.Errors, run.Totals.Tests)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArrayVarP(&runFiles, "file", "f", []string{"specrun.yaml"}, "Suite file or glob (repeatable)")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "Override the base URL of every suite")
	runCmd.Flags().IntVar(&runParallel, "parallel", 1, "Tests run concurrently within a suite")
	runCmd.Flags().BoolVar(&runFailFast, "fail-fast", false, "Stop after the first failing test")
	runCmd.Flags().StringSliceVar(&runTags, "tags", nil, "Run only tests carrying one of these tags")
	runCmd.Flags().BoolVar(&runInsecure, "insecure", false, "Skip TLS certificate verification")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "Per-request timeout when the suite sets none")
	runCmd.Flags().StringVar(&runOut, "out", "", "Directory for report files and the run log (skipped when empty)")
	runCmd.Flags().StringSliceVar(&runFormats, "format", []string{"json"}, "Report formats to write: json, junit, html")
	runCmd.Flags().BoolVar(&runWatch, "watch", false, "Watch suite files and re-run on change")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print every test as it finishes")
}

type runOpts struct {
	patterns []string
	baseURL  string
	parallel int
	failFast bool
	tags     []string
	insecure bool
	timeout  time.Duration
	outDir   string
	formats  []string
	verbose  bool
	spin     bool
	stdout   io.Writer
}

// executeRun loads, runs, prints, and persists one complete run.
func executeRun(ctx context.Context, opts runOpts) (*report.Run, error) {
	suites, err := loadSuites(opts.patterns, opts.baseURL)
	if err != nil {
		return nil, err
	}

	// With a report directory, keep a debug-level log next to the reports.
	runLogger := logger
	if opts.outDir != "" {
		if err := os.MkdirAll(opts.outDir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create report directory: %w", err)
		}
		logFile, err := os.Create(filepath.Join(opts.outDir, "run.log"))
		if err != nil {
			return nil, fmt.Errorf("failed to create run log: %w", err)
		}
		defer logFile.Close()
		runLogger = logging.Tee(logging.Config{
			Level:  logging.ParseLevel(logLevel),
			Format: logging.ParseFormat(logFormat),
		}, logFile)
	}

	colored := !noColor
	var reporter runner.Reporter = runner.NopReporter{}
	var spin *spinnerReporter
	switch {
	case opts.verbose:
		console := runner.NewConsoleReporter(opts.stdout)
		console.Colored = colored
		reporter = console
	case opts.spin:
		spin = newSpinnerReporter()
		reporter = spin
		spin.Start()
	}

	r := runner.New(runner.Options{
		Parallel: opts.parallel,
		FailFast: opts.failFast,
		Tags:     opts.tags,
		Insecure: opts.insecure,
		Timeout:  opts.timeout,
		Logger:   runLogger,
		Reporter: reporter,
	})
	run, runErr := r.Run(ctx, suites)
	if spin != nil {
		spin.Stop()
	}
	if runErr != nil {
		return run, runErr
	}

	if jsonOutput {
		if err := output.JSON(run); err != nil {
			return run, err
		}
	} else {
		if !opts.verbose {
			report.WriteConsole(opts.stdout, run, colored)
		}
		fmt.Fprintln(opts.stdout, report.Summary(run, colored))
	}

	if opts.outDir != "" {
		if err := writeReports(opts.outDir, opts.formats, run); err != nil {
			return run, err
		}
	}
	return run, nil
}

// loadSuites expands the globs, applies the base URL override, expands
// placeholders, and validates every suite before anything runs.
func loadSuites(patterns []string, baseURL string) ([]*spec.Suite, error) {
	suites, err := spec.LoadGlob(patterns...)
	if err != nil {
		return nil, err
	}
	for _, suite := range suites {
		if baseURL != "" {
			suite.BaseURL = baseURL
		}
		if err := spec.Expand(suite, spec.ExpandOptions{}); err != nil {
			return nil, fmt.Errorf("%s: %w", suite.Source, err)
		}
		if result := spec.Validate(suite); !result.IsValid() {
			return nil, fmt.Errorf("%s: %w", suite.Source, result.Err())
		}
	}
	return suites, nil
}

func writeReports(dir string, formats []string, run *report.Run) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	for _, format := range formats {
		var path string
		var err error
		switch format {
		case "json":
			path = filepath.Join(dir, "report.json")
			err = report.SaveJSON(path, run)
		case "junit":
			path = filepath.Join(dir, "junit.xml")
			err = report.SaveJUnit(path, run)
		case "html":
			path = filepath.Join(dir, "report.html")
			err = report.SaveHTML(path, run)
		default:
			return fmt.Errorf("unknown report format %q (want json, junit, or html)", format)
		}
		if err != nil {
			return err
		}
		logger.Info("report written", "path", path, "format", format)
	}
	return nil
}

// watchAndRun runs once, then re-runs whenever a suite file changes.
// Failures do not end the loop; only ctx cancellation does.
func watchAndRun(ctx context.Context, opts runOpts) error {
	paths, err := spec.Files(opts.patterns...)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	defer watcher.Close()

	// Watch directories, not files: editors replace files on save, which
	// would silently drop a file-level watch.
	dirs := make(map[string]bool)
	for _, p := range paths {
		dirs[filepath.Dir(p)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	runOnce := func() {
		run, err := executeRun(ctx, opts)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		} else if run != nil && !run.Passed() {
			fmt.Fprintf(os.Stderr, "%d of %d test(s) failed\n",
				run.Totals.Failed+run.Totals.Errors, run.Totals.Tests)
		}
		fmt.Fprintln(opts.stdout, "Watching for changes... (Ctrl-C to quit)")
	}
	runOnce()

	debounce := time.NewTimer(0)
	if !debounce.Stop() {
		<-debounce.C
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !isSuitePath(event.Name) {
				continue
			}
			// Editors fire several events per save; collapse them.
			debounce.Reset(250 * time.Millisecond)
		case <-debounce.C:
			runOnce()
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			output.Warn("watch error: %v", werr)
		case <-ctx.Done():
			return nil
		}
	}
}

func isSuitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

// spinnerReporter animates a single status line while tests run. The
// label is handed to the spinner's render goroutine through an atomic
// value; PreUpdate runs under the spinner's own lock.
type spinnerReporter struct {
	spin  *spinner.Spinner
	label atomic.Value
}

func newSpinnerReporter() *spinnerReporter {
	r := &spinnerReporter{
		spin: spinner.New(spinner.CharSets[14], 100*time.Millisecond),
	}
	r.label.Store(" loading suites")
	r.spin.PreUpdate = func(s *spinner.Spinner) {
		s.Suffix = r.label.Load().(string)
	}
	return r
}

func (r *spinnerReporter) Start() { r.spin.Start() }
func (r *spinnerReporter) Stop()  { r.spin.Stop() }

func (r *spinnerReporter) TestStarted(suite, test string) {
	r.label.Store(fmt.Sprintf(" %s / %s", suite, test))
}

func (r *spinnerReporter) TestFinished(string, report.TestResult) {}
func (r *spinnerReporter) SuiteFinished(report.SuiteResult)      {}
