package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/specrun/specrun/pkg/cli/internal/output"
	"github.com/specrun/specrun/pkg/spec"
)

var validateFiles []string

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate suite files without running them",
	Long: `Validate suite files without sending any requests.

Each file is checked against the suite schema first, then for the
semantic rules the schema cannot express: unknown HTTP methods,
duplicate test names, malformed exclusion patterns, and broken auth or
retry settings. Errors are addressed by path into the document, e.g.
tests[2].expect.status.`,
	Example: `  # Validate the default suite file
  specrun validate

  # Validate everything under ./suites
  specrun validate -f 'suites/*.yaml'

  # Machine-readable results
  specrun validate -f api.yaml --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(validateFiles, os.Stdout, os.Stderr)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringArrayVarP(&validateFiles, "file", "f", []string{"specrun.yaml"}, "Suite file or glob (repeatable)")
}

// fileReport is one file's validation outcome, also the --json shape.
type fileReport struct {
	File   string                 `json:"file"`
	Valid  bool                   `json:"valid"`
	Errors []spec.ValidationError `json:"errors,omitempty"`
}

func runValidate(patterns []string, stdout, stderr io.Writer) error {
	paths, err := spec.Files(patterns...)
	if err != nil {
		return err
	}

	reports := make([]fileReport, 0, len(paths))
	invalid := 0
	for _, path := range paths {
		errs := validateFile(path)
		if len(errs) > 0 {
			invalid++
		}
		reports = append(reports, fileReport{File: path, Valid: len(errs) == 0, Errors: errs})
	}

	if jsonOutput {
		if err := output.JSON(reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			if r.Valid {
				fmt.Fprintf(stdout, "%s: ok\n", r.File)
				continue
			}
			fmt.Fprintf(stderr, "%s:\n", r.File)
			for _, e := range r.Errors {
				if e.Path == "" {
					fmt.Fprintf(stderr, "  %s\n", e.Message)
					continue
				}
				fmt.Fprintf(stderr, "  %s: %s\n", e.Path, e.Message)
			}
		}
	}

	if invalid > 0 {
		return fmt.Errorf("%d of %d suite file(s) invalid", invalid, len(paths))
	}
	return nil
}

// validateFile runs both validation passes over one file. Placeholders
// are left unexpanded: a suite referencing {{env API_TOKEN}} must
// validate on machines where the variable is not set.
func validateFile(path string) []spec.ValidationError {
	data, err := os.ReadFile(path)
	if err != nil {
		return []spec.ValidationError{{Message: err.Error()}}
	}

	if result := spec.ValidateDocument(data, path); !result.IsValid() {
		return result.Errors
	}

	suite, err := spec.Load(path)
	if err != nil {
		return []spec.ValidationError{{Message: err.Error()}}
	}
	return spec.Validate(suite).Errors
}
