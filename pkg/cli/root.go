package cli

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/specrun/specrun/pkg/logging"
)

var (
	// Persistent flags available to all subcommands
	logLevel   string
	logFormat  string
	noColor    bool
	jsonOutput bool

	// logger is rebuilt from the persistent flags before any RunE runs.
	logger = logging.Nop()

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "specrun",
	Short: "specrun runs declarative API integration tests",
	Long: `specrun executes declarative test suites against live HTTP APIs.

Suites are JSON or YAML files describing requests and expected responses.
Response bodies are compared structurally: the expected body must be
contained in the actual one, extra fields are tolerated, and volatile
fields can be excluded by path. Suites can also be compiled into standard
Go test files or bootstrapped from an OpenAPI document.`,
	// No Run function here means 'specrun' with no args will print help text by default.
	SilenceUsage:  true,
	SilenceErrors: true, // We handle errors in Execute()
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger = logging.FromFlags(logLevel, logFormat)
		if noColor {
			text.DisableColors()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Define persistent flags that apply globally to all specrun commands
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
}
