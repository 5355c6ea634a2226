// Package cli provides the command-line interface for specrun.
//
// The cli package implements all CLI commands for working with suites:
//   - run: Execute suites against a live API and report results
//   - validate: Check suite files without sending any requests
//   - generate: Compile suites into standard Go test files
//   - import: Bootstrap suites from an OpenAPI 3 document
//   - init: Create a starter suite, interactively or via flags
//   - version: Show specrun version
//
// Suites are JSON or YAML files; globs are accepted everywhere a file is,
// so `specrun run -f 'suites/*.yaml'` runs a whole directory. Response
// bodies are compared structurally: expected values must be present,
// extra fields are tolerated, and volatile fields are excluded by path.
//
// Usage:
//
//	specrun init
//	specrun validate -f 'suites/*.yaml'
//	specrun run -f 'suites/*.yaml' --parallel 4 --out reports
//	specrun run -f api.yaml --watch
//	specrun generate -f 'suites/*.yaml' --out apitest --delta
//	specrun import openapi.yaml --out suites
package cli
