package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/pkg/spec"
)

const goodSuite = `
name: demo
tests:
  - name: health
    request:
      method: GET
      path: /healthz
    expect:
      status: 200
      body:
        status: ok
`

const badSuite = `
name: broken
tests:
  - name: nope
    request:
      method: FETCH
      path: /x
    expect:
      status: 200
`

func writeSuiteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunValidateAllValid(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "a.yaml", goodSuite)

	var stdout, stderr bytes.Buffer
	err := runValidate([]string{filepath.Join(dir, "*.yaml")}, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "a.yaml: ok")
	assert.Empty(t, stderr.String())
}

func TestRunValidateReportsErrors(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "good.yaml", goodSuite)
	writeSuiteFile(t, dir, "bad.yaml", badSuite)

	var stdout, stderr bytes.Buffer
	err := runValidate([]string{filepath.Join(dir, "*.yaml")}, &stdout, &stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2")

	// Good files report to stdout, errors to stderr with their path into
	// the document.
	assert.Contains(t, stdout.String(), "good.yaml: ok")
	assert.Contains(t, stderr.String(), "bad.yaml")
	assert.Contains(t, stderr.String(), "tests[0].request.method")
}

func TestRunValidateNoMatches(t *testing.T) {
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	err := runValidate([]string{filepath.Join(dir, "*.yaml")}, &stdout, &stderr)
	require.Error(t, err)
	assert.True(t, errors.Is(err, spec.ErrNoSuites))
}

func TestValidateFileSemanticErrors(t *testing.T) {
	// Schema-clean documents still get the semantic pass: duplicate test
	// names are not expressible in JSON Schema.
	dir := t.TempDir()
	path := writeSuiteFile(t, dir, "dup.yaml", `
name: dup
tests:
  - name: same
    request:
      method: GET
      path: /a
    expect:
      status: 200
  - name: same
    request:
      method: GET
      path: /b
    expect:
      status: 200
`)

	errs := validateFile(path)
	require.Len(t, errs, 1)
	assert.Equal(t, "tests[1].name", errs[0].Path)
	assert.Contains(t, errs[0].Message, "duplicate")
}

func TestValidateFileUnreadable(t *testing.T) {
	errs := validateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Len(t, errs, 1)
	assert.NotEmpty(t, errs[0].Message)
}
