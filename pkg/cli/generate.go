package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specrun/specrun/pkg/cli/internal/output"
	"github.com/specrun/specrun/pkg/generate"
	"github.com/specrun/specrun/pkg/spec"
)

var (
	generateFiles  []string
	generateOut    string
	generatePkg    string
	generateDelta  bool
	generateClean  bool
	generateDryRun bool
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate Go test files from suites",
	Long: `Generate standard Go test files from suites.

Each suite becomes one _test.go file in the output directory. The
generated tests use the check package and run under plain 'go test',
with the target URL taken from SPECRUN_BASE_URL at test run time.
Placeholders like {{uuid}} are kept verbatim so repeated generation is
reproducible.

Files are only rewritten when their content changes, and --clean removes
generated files whose suite has gone away. Only files carrying the
generated-code header are ever touched.`,
	Example: `  # Generate tests for every suite into ./apitest
  specrun generate -f 'suites/*.yaml' --out apitest

  # Regenerate only what changed, removing orphans
  specrun generate -f 'suites/*.yaml' --out apitest --delta --clean

  # See what would happen
  specrun generate -f 'suites/*.yaml' --out apitest --dry-run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		gen := &generate.Generator{
			OutDir:  generateOut,
			PkgName: generatePkg,
			Delta:   generateDelta,
			Clean:   generateClean,
			DryRun:  generateDryRun,
			Logger:  logger,
		}
		return runGenerate(generateFiles, gen, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().StringArrayVarP(&generateFiles, "file", "f", []string{"specrun.yaml"}, "Suite file or glob (repeatable)")
	generateCmd.Flags().StringVar(&generateOut, "out", "apitest", "Output directory for generated files")
	generateCmd.Flags().StringVar(&generatePkg, "pkg", "apitest", "Package name of generated files")
	generateCmd.Flags().BoolVar(&generateDelta, "delta", false, "Skip suites whose generated content is unchanged")
	generateCmd.Flags().BoolVar(&generateClean, "clean", false, "Remove generated files no longer backed by a suite")
	generateCmd.Flags().BoolVar(&generateDryRun, "dry-run", false, "Report planned actions without writing anything")
}

func runGenerate(patterns []string, gen *generate.Generator, stdout io.Writer) error {
	// No placeholder expansion here: {{uuid}} or {{now}} would yield
	// different file content on every invocation and defeat delta mode.
	suites, err := spec.LoadGlob(patterns...)
	if err != nil {
		return err
	}
	for _, suite := range suites {
		if result := spec.Validate(suite); !result.IsValid() {
			return fmt.Errorf("%s: %w", suite.Source, result.Err())
		}
	}

	summary, err := gen.Generate(suites)
	if err != nil {
		return err
	}

	if jsonOutput {
		return output.JSON(summary)
	}

	wrote, removed := "wrote", "removed"
	if gen.DryRun {
		wrote, removed = "would write", "would remove"
	}
	for _, name := range summary.Written {
		fmt.Fprintf(stdout, "%s %s\n", wrote, name)
	}
	for _, name := range summary.Removed {
		fmt.Fprintf(stdout, "%s %s\n", removed, name)
	}
	fmt.Fprintf(stdout, "%d suite(s): %s\n", len(suites), summary)
	return nil
}
