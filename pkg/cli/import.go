package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/specrun/specrun/pkg/cli/internal/output"
	"github.com/specrun/specrun/pkg/openapi"
)

var (
	importOut     string
	importBaseURL string
)

var importCmd = &cobra.Command{
	Use:   "import <openapi-file>",
	Short: "Create starter suites from an OpenAPI document",
	Long: `Create starter suites from an OpenAPI 3 document.

Operations are grouped into one suite per tag, with request and expected
response bodies synthesized from the document's schemas and examples.
Server-generated fields (readOnly, timestamps) are pre-listed in each
test's exclude section so the suites pass against a live server without
editing. Existing files in the output directory are overwritten.`,
	Example: `  # Import a spec into ./suites
  specrun import api.yaml --out suites

  # Point the generated suites at a local server
  specrun import api.json --out suites --base-url http://localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(args[0], importOut, importBaseURL, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importOut, "out", "suites", "Output directory for suite files")
	importCmd.Flags().StringVar(&importBaseURL, "base-url", "", "Base URL override for the generated suites")
}

func runImport(docPath, outDir, baseURL string, stdout io.Writer) error {
	suites, err := openapi.Import(docPath, openapi.Options{BaseURL: baseURL})
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	written := make([]string, 0, len(suites))
	for _, suite := range suites {
		data, err := yaml.Marshal(suite)
		if err != nil {
			return fmt.Errorf("failed to render suite %s: %w", suite.Name, err)
		}
		path := filepath.Join(outDir, suiteFileName(suite.Name))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
	}

	if jsonOutput {
		return output.JSON(map[string]any{"source": docPath, "files": written})
	}
	for _, path := range written {
		fmt.Fprintf(stdout, "wrote %s\n", path)
	}
	fmt.Fprintf(stdout, "%d suite(s) imported from %s\n", len(written), docPath)
	return nil
}

// suiteFileName turns a tag into a safe file name: "User Accounts"
// becomes "user-accounts.yaml".
func suiteFileName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	s := strings.Trim(b.String(), "-")
	if s == "" {
		s = "suite"
	}
	return s + ".yaml"
}
