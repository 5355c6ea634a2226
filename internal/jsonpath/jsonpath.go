// Package jsonpath evaluates JSONPath expectations against decoded JSON
// documents.
package jsonpath

import (
	"fmt"

	"github.com/ohler55/ojg/jp"

	"github.com/specrun/specrun/pkg/match"
)

// Eval returns every node in doc matched by the JSONPath expression.
func Eval(doc any, expr string) ([]any, error) {
	x, err := jp.ParseString(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONPath expression %q: %w", expr, err)
	}
	return x.Get(doc), nil
}

// Check asserts a single JSONPath expectation against doc. An expected value
// of {"exists": true} or {"exists": false} asserts presence only; any other
// value is compared against the first result with partial-match semantics,
// honoring excl.
func Check(doc any, expr string, expected any, excl match.Exclusions) error {
	results, err := Eval(doc, expr)
	if err != nil {
		return err
	}

	if want, ok := existence(expected); ok {
		if want && len(results) == 0 {
			return fmt.Errorf("%s: expected a result, found none", expr)
		}
		if !want && len(results) > 0 {
			return fmt.Errorf("%s: expected no result, found %d", expr, len(results))
		}
		return nil
	}

	if len(results) == 0 {
		return fmt.Errorf("%s: no results", expr)
	}

	exp, err := match.FromJSON(expected)
	if err != nil {
		return fmt.Errorf("%s: expected value: %w", expr, err)
	}
	act, err := match.FromJSON(results[0])
	if err != nil {
		return fmt.Errorf("%s: result: %w", expr, err)
	}
	if err := match.Match(exp, act, excl); err != nil {
		return fmt.Errorf("%s: %w", expr, err)
	}
	return nil
}

// existence reports whether expected is the {"exists": bool} form and, if
// so, the requested presence. Only a single-key map qualifies so that an
// object which legitimately contains an "exists" field alongside others is
// still matched as a value.
func existence(expected any) (want, ok bool) {
	m, isMap := expected.(map[string]any)
	if !isMap || len(m) != 1 {
		return false, false
	}
	want, ok = m["exists"].(bool)
	return want, ok
}
