package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/specrun/specrun/pkg/spec"
)

var (
	initName    string
	initBaseURL string
	initAuth    string
	initPath    string
	initOutput  string
	initForce   bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a starter suite file",
	Long: `Create a starter suite file.

Without flags this runs an interactive prompt for the project name, the
base URL, the auth mode, and a first endpoint. Pass --name and
--base-url to skip the prompt, e.g. in scripts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Use an interactive form when the identifying flags were omitted
		// (e.g., just ran "specrun init").
		if !cmd.Flags().Changed("name") && !cmd.Flags().Changed("base-url") {
			var formName, formBaseURL, formAuth, formPath string

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Project name").
						Placeholder("my-api").
						Value(&formName).
						Validate(func(s string) error {
							if s == "" {
								return errors.New("name is required")
							}
							return nil
						}),
					huh.NewInput().
						Title("Base URL of the API under test").
						Placeholder("http://localhost:8080").
						Value(&formBaseURL),
					huh.NewSelect[string]().
						Title("How does the API authenticate?").
						Options(
							huh.NewOption("No authentication", spec.AuthNone),
							huh.NewOption("OAuth2 client credentials", spec.AuthOAuth2),
						).
						Value(&formAuth),
					huh.NewInput().
						Title("First endpoint to test").
						Placeholder("/healthz").
						Value(&formPath),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}
			if formName != "" {
				initName = formName
			}
			if formBaseURL != "" {
				initBaseURL = formBaseURL
			}
			if formAuth != "" {
				initAuth = formAuth
			}
			if formPath != "" {
				initPath = formPath
			}
		}
		return runInit(initName, initBaseURL, initAuth, initPath, initOutput, initForce, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initName, "name", "my-api", "Suite name")
	initCmd.Flags().StringVar(&initBaseURL, "base-url", "http://localhost:8080", "Base URL of the API under test")
	initCmd.Flags().StringVar(&initAuth, "auth", spec.AuthNone, "Auth mode: none or oauth2")
	initCmd.Flags().StringVar(&initPath, "path", "/healthz", "First endpoint to test")
	initCmd.Flags().StringVarP(&initOutput, "output", "o", "specrun.yaml", "Output filename")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing file")
}

func runInit(name, baseURL, auth, path, outFile string, force bool, stdout io.Writer) error {
	if auth != spec.AuthNone && auth != spec.AuthOAuth2 {
		return fmt.Errorf("unknown auth mode %q (want none or oauth2)", auth)
	}
	if !force {
		if _, err := os.Stat(outFile); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", outFile)
		}
	}

	suite := starterSuite(name, baseURL, auth, path)
	data, err := yaml.Marshal(suite)
	if err != nil {
		return fmt.Errorf("failed to render suite: %w", err)
	}
	if err := os.WriteFile(outFile, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", outFile, err)
	}

	fmt.Fprintf(stdout, "Created %s\n", outFile)
	fmt.Fprintf(stdout, "Run it with: specrun run -f %s\n", outFile)
	return nil
}

func starterSuite(name, baseURL, auth, path string) *spec.Suite {
	suite := &spec.Suite{
		Name:    name,
		Version: "0.1.0",
		BaseURL: baseURL,
		Tests: []spec.Test{{
			Name: "endpoint responds",
			Request: spec.Request{
				Method: "GET",
				Path:   path,
			},
			Expect: spec.Expect{Status: 200},
		}},
	}
	if auth == spec.AuthOAuth2 {
		// Credentials come from the environment so the suite file can be
		// committed as-is.
		suite.Auth = &spec.AuthConfig{
			Type:         spec.AuthOAuth2,
			TokenURL:     "{{env SPECRUN_TOKEN_URL}}",
			ClientID:     "{{env SPECRUN_CLIENT_ID}}",
			ClientSecret: "{{env SPECRUN_CLIENT_SECRET}}",
		}
	}
	return suite
}
