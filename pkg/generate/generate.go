// Package generate emits Go test files from loaded suites. Each suite
// becomes one _gen_test.go file whose tests exercise the suite's
// requests through the check package.
package generate

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/specrun/specrun/pkg/logging"
	"github.com/specrun/specrun/pkg/spec"
)

// CacheFileName is the delta-mode hash cache, kept in the output
// directory.
const CacheFileName = ".specrun-cache.json"

// Generator writes test files for suites.
type Generator struct {
	// OutDir receives the generated files. Created when missing.
	// Empty means the current directory.
	OutDir string
	// PkgName is the package clause of generated files. Defaults to
	// "apitest".
	PkgName string
	// Delta skips suites whose generated content is unchanged since
	// the last run.
	Delta bool
	// Clean removes generated files no longer backed by a suite. Only
	// files carrying the generated header are ever removed.
	Clean bool
	// DryRun reports planned actions without touching the filesystem.
	DryRun bool
	// Logger receives progress output. Nil discards it.
	Logger *slog.Logger
}

// Summary lists what a Generate call did, by file name.
type Summary struct {
	Written []string `json:"written"`
	Skipped []string `json:"skipped"`
	Removed []string `json:"removed"`
}

func (s *Summary) String() string {
	return fmt.Sprintf("%d written, %d skipped, %d removed",
		len(s.Written), len(s.Skipped), len(s.Removed))
}

type cacheData struct {
	Version int               `json:"version"`
	Hashes  map[string]string `json:"hashes"`
}

// Generate renders every suite and writes the files that changed.
func (g *Generator) Generate(suites []*spec.Suite) (*Summary, error) {
	logger := g.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	pkgName := g.PkgName
	if pkgName == "" {
		pkgName = "apitest"
	}
	if !validPkgName(pkgName) {
		return nil, fmt.Errorf("invalid package name %q", pkgName)
	}
	outDir := g.OutDir
	if outDir == "" {
		outDir = "."
	}

	if !g.DryRun {
		if err := os.MkdirAll(outDir, 0755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}

	cache := loadCache(outDir)
	summary := &Summary{}
	fileSuite := make(map[string]string, len(suites))

	for _, suite := range suites {
		name := snakeFrom(suite.Name) + "_gen_test.go"
		if prev, ok := fileSuite[name]; ok {
			return nil, fmt.Errorf("suites %q and %q both generate %s", prev, suite.Name, name)
		}
		fileSuite[name] = suite.Name

		content, err := emitSuite(suite, pkgName)
		if err != nil {
			return nil, fmt.Errorf("suite %q: %w", suite.Name, err)
		}
		sum := sha256.Sum256(content)
		hash := hex.EncodeToString(sum[:])
		path := filepath.Join(outDir, name)

		if g.Delta && cache.Hashes[name] == hash && fileExists(path) {
			logger.Debug("Suite unchanged, skipping", "suite", suite.Name, "file", name)
			summary.Skipped = append(summary.Skipped, name)
			continue
		}

		if g.DryRun {
			logger.Info("Would write", "file", path, "suite", suite.Name)
		} else {
			if err := writeFileAtomic(path, content); err != nil {
				return nil, fmt.Errorf("write %s: %w", path, err)
			}
			logger.Debug("Wrote generated tests", "file", path, "suite", suite.Name)
		}
		summary.Written = append(summary.Written, name)
		cache.Hashes[name] = hash
	}

	if g.Clean {
		removed, err := g.cleanStale(outDir, fileSuite, logger)
		if err != nil {
			return nil, err
		}
		summary.Removed = removed
		for _, name := range removed {
			delete(cache.Hashes, name)
		}
	}

	if g.Delta && !g.DryRun {
		if err := saveCache(outDir, cache); err != nil {
			return nil, fmt.Errorf("write hash cache: %w", err)
		}
	}

	return summary, nil
}

// cleanStale removes generated files in outDir that no current suite
// produced. Files without the generated header are never touched.
func (g *Generator) cleanStale(outDir string, current map[string]string, logger *slog.Logger) ([]string, error) {
	entries, err := os.ReadDir(outDir)
	if err != nil {
		if os.IsNotExist(err) && g.DryRun {
			return nil, nil
		}
		return nil, fmt.Errorf("scan output directory: %w", err)
	}

	var removed []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, "_gen_test.go") {
			continue
		}
		if _, ok := current[name]; ok {
			continue
		}
		path := filepath.Join(outDir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		if !bytes.HasPrefix(data, []byte(Header)) {
			continue
		}

		if g.DryRun {
			logger.Info("Would remove", "file", path)
		} else {
			if err := os.Remove(path); err != nil {
				return nil, fmt.Errorf("remove %s: %w", path, err)
			}
			logger.Debug("Removed stale generated file", "file", path)
		}
		removed = append(removed, name)
	}
	return removed, nil
}

func loadCache(outDir string) *cacheData {
	cache := &cacheData{Version: 1, Hashes: map[string]string{}}
	data, err := os.ReadFile(filepath.Join(outDir, CacheFileName))
	if err != nil {
		return cache
	}
	var loaded cacheData
	if err := json.Unmarshal(data, &loaded); err != nil || loaded.Hashes == nil {
		return cache
	}
	loaded.Version = 1
	return &loaded
}

func saveCache(outDir string, cache *cacheData) error {
	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(filepath.Join(outDir, CacheFileName), append(data, '\n'))
}

// writeFileAtomic writes to a temp file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpFile, path); err != nil {
		os.Remove(tmpFile)
		return err
	}
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func validPkgName(name string) bool {
	for i, r := range name {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return name != ""
}
