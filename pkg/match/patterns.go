package match

import (
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Exclusions marks paths whose subtrees are never inspected during a
// match. Patterns are tried in order; the first match wins. With Wildcard
// off, a pattern is a literal path that covers itself and its object
// descendants. With Wildcard on, each pattern is a glob ('*', '?' and
// character classes) matched against the full path.
type Exclusions struct {
	Patterns []string
	Wildcard bool
}

// Exclude builds a literal exclusion set from the given paths.
func Exclude(paths ...string) Exclusions {
	return Exclusions{Patterns: paths}
}

// ExcludeGlob builds a wildcard exclusion set from the given patterns.
func ExcludeGlob(patterns ...string) Exclusions {
	return Exclusions{Patterns: patterns, Wildcard: true}
}

// Matches reports whether path is excluded.
//
// A literal pattern covers itself and any object descendants: "data"
// excludes "data.email" but not "database". It does not cover sequence
// continuations: excluding "items" leaves "items[0]" checked; whole
// sequences need wildcard mode ("items*") or per-element paths.
func (e Exclusions) Matches(path string) bool {
	for _, pat := range e.Patterns {
		if e.Wildcard {
			if ok, err := doublestar.Match(expandIndexWildcards(pat), path); err == nil && ok {
				return true
			}
			continue
		}
		if path == pat || strings.HasPrefix(path, pat+".") {
			return true
		}
	}
	return false
}

// Validate checks that every pattern compiles in wildcard mode. Literal
// patterns are always valid.
func (e Exclusions) Validate() error {
	if !e.Wildcard {
		return nil
	}
	for _, pat := range e.Patterns {
		if !doublestar.ValidatePattern(expandIndexWildcards(pat)) {
			return &PatternError{Pattern: pat}
		}
	}
	return nil
}

// PatternError reports a wildcard pattern that does not compile.
type PatternError struct {
	Pattern string
}

func (e *PatternError) Error() string {
	return "match: invalid wildcard pattern " + strconv.Quote(e.Pattern)
}

// expandIndexWildcards rewrites the index forms "[*]" and "[?]" so their
// brackets match literally. Paths address sequence elements as "name[0]",
// and a bare character class would swallow the brackets: without the
// rewrite, "items[*].id" would match only a literal '*' character.
// All other bracket expressions keep their glob character-class meaning.
func expandIndexWildcards(pat string) string {
	if !strings.Contains(pat, "[") {
		return pat
	}
	pat = strings.ReplaceAll(pat, "[*]", `\[*\]`)
	pat = strings.ReplaceAll(pat, "[?]", `\[?\]`)
	return pat
}
