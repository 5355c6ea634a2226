package spec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Common errors for suite loading.
var (
	ErrFileNotFound     = errors.New("suite file not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidJSON      = errors.New("invalid JSON syntax")
	ErrInvalidYAML      = errors.New("invalid YAML syntax")
	ErrEmptyFile        = errors.New("suite file is empty")
	ErrNoSuites         = errors.New("no suite files matched")
)

// Load reads a Suite from a JSON or YAML file. The format is detected by
// file extension (.yaml/.yml for YAML, otherwise JSON), unknown fields
// are rejected, and untyped body/schema fields are normalized to plain
// JSON values (maps keyed by string, float64 numbers).
func Load(path string) (*Suite, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", path)
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, fmt.Errorf("%w: %s", ErrPermissionDenied, path)
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	var suite *Suite
	if isYAMLPath(path) {
		suite, err = ParseYAML(data)
	} else {
		suite, err = ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	suite.Source = path
	return suite, nil
}

// ParseJSON decodes a Suite from JSON. Unknown fields are rejected.
func ParseJSON(data []byte) (*Suite, error) {
	if !json.Valid(data) {
		return nil, ErrInvalidJSON
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var suite Suite
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if err := normalizeSuite(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// ParseYAML decodes a Suite from YAML. Unknown fields are rejected.
func ParseYAML(data []byte) (*Suite, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var suite Suite
	if err := dec.Decode(&suite); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}
	if err := normalizeSuite(&suite); err != nil {
		return nil, err
	}
	return &suite, nil
}

// LoadGlob loads every suite matched by the given patterns. Patterns
// support ** via doublestar; plain paths load directly. Matches are
// deduplicated and loaded in sorted order.
func LoadGlob(patterns ...string) ([]*Suite, error) {
	paths, err := Files(patterns...)
	if err != nil {
		return nil, err
	}

	suites := make([]*Suite, 0, len(paths))
	for _, p := range paths {
		suite, err := Load(p)
		if err != nil {
			return nil, err
		}
		suites = append(suites, suite)
	}
	return suites, nil
}

// Files expands the given patterns to suite file paths without loading
// them: deduplicated, sorted, restricted to .json/.yaml/.yml files.
func Files(patterns ...string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, pattern := range patterns {
		matches, err := expandGlob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if ext := strings.ToLower(filepath.Ext(m)); ext != ".json" && ext != ".yaml" && ext != ".yml" {
				continue
			}
			if !seen[m] {
				seen[m] = true
				paths = append(paths, m)
			}
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSuites, strings.Join(patterns, ", "))
	}
	return paths, nil
}

// expandGlob expands a glob pattern to file paths.
// Uses doublestar for ** support, falls back to filepath.Glob otherwise.
// A pattern with no glob characters is returned as-is so that missing
// explicit paths surface as load errors rather than empty matches.
func expandGlob(pattern string) ([]string, error) {
	if !strings.ContainsAny(pattern, "*?[") {
		return []string{pattern}, nil
	}
	if strings.Contains(pattern, "**") {
		return doublestar.FilepathGlob(pattern)
	}
	return filepath.Glob(pattern)
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// normalizeSuite forces every untyped field through a JSON round-trip so
// the rest of the system sees plain JSON values regardless of the input
// format (YAML decodes integers as int and timestamps as time.Time).
func normalizeSuite(s *Suite) error {
	for i := range s.Tests {
		t := &s.Tests[i]
		for _, field := range []*any{&t.Request.Body, &t.Expect.Body, &t.Expect.Schema} {
			normalized, err := normalizeAny(*field)
			if err != nil {
				return fmt.Errorf("test %q: %w", t.Name, err)
			}
			*field = normalized
		}
		for k, v := range t.Expect.JSONPath {
			normalized, err := normalizeAny(v)
			if err != nil {
				return fmt.Errorf("test %q: jsonPath %q: %w", t.Name, k, err)
			}
			t.Expect.JSONPath[k] = normalized
		}
	}
	return nil
}

func normalizeAny(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("value is not JSON-representable: %w", err)
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
