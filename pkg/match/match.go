// Package match compares nested JSON-like values partially. The expected
// value acts as a template: actual may carry extra object keys and extra
// sequence elements beyond what expected names, excluded paths are never
// inspected, and the first divergence is reported with a dotted/bracketed
// path and a typed reason. Matching is pure and safe for concurrent use.
package match

import (
	"fmt"
	"strconv"
)

// Reason classifies a divergence between expected and actual.
type Reason string

// Divergence reasons.
const (
	// TypeMismatch: the kinds at a path differ.
	TypeMismatch Reason = "type_mismatch"
	// MissingKey: an expected object key is absent from actual.
	MissingKey Reason = "missing_key"
	// LengthTooShort: the actual sequence has fewer elements than expected.
	LengthTooShort Reason = "length_too_short"
	// ValueMismatch: scalar values of the same kind differ.
	ValueMismatch Reason = "value_mismatch"
)

// Error describes a single divergence. Match returns the first one found;
// MatchAll returns every one. Expected and Actual hold string forms of the
// two sides at the failing path (kind names for TypeMismatch, element
// counts for LengthTooShort).
type Error struct {
	Path     string
	Reason   Reason
	Expected string
	Actual   string
}

func (e *Error) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "(root)"
	}
	switch e.Reason {
	case TypeMismatch:
		return fmt.Sprintf("%s: type mismatch: expected %s, got %s", loc, e.Expected, e.Actual)
	case MissingKey:
		return fmt.Sprintf("%s: missing key", loc)
	case LengthTooShort:
		return fmt.Sprintf("%s: sequence too short: expected at least %s elements, got %s", loc, e.Expected, e.Actual)
	default:
		return fmt.Sprintf("%s: value mismatch: expected %s, got %s", loc, e.Expected, e.Actual)
	}
}

// Match checks that actual satisfies expected, ignoring excluded paths.
// It returns nil on success and the first divergence as a *Error
// otherwise. Traversal is depth-first and expected-driven: object keys in
// sorted order, sequence indexes in increasing order, stopping at the
// first divergence, so repeated calls on the same inputs report the same
// failing path.
func Match(expected, actual Value, excl Exclusions) error {
	var first *Error
	walk(expected, actual, "", excl, func(e *Error) bool {
		first = e
		return false
	})
	if first != nil {
		return first
	}
	return nil
}

// MatchAll is Match in aggregate mode: it keeps walking after a
// divergence and returns every one found, in traversal order. After a
// type mismatch the subtree below it is not descended; after a length
// shortfall the shared prefix is still compared element by element.
func MatchAll(expected, actual Value, excl Exclusions) []error {
	var errs []error
	walk(expected, actual, "", excl, func(e *Error) bool {
		errs = append(errs, e)
		return true
	})
	return errs
}

// walk reports divergences between expected and actual at path to sink.
// sink returns false to stop the walk; walk returns false when stopped.
func walk(expected, actual Value, path string, excl Exclusions, sink func(*Error) bool) bool {
	if excl.Matches(path) {
		return true
	}
	switch expected.kind {
	case KindObject:
		return walkObject(expected, actual, path, excl, sink)
	case KindSequence:
		return walkSequence(expected, actual, path, excl, sink)
	default:
		return walkScalar(expected, actual, path, excl, sink)
	}
}

func walkObject(expected, actual Value, path string, excl Exclusions, sink func(*Error) bool) bool {
	keys := expected.sortedKeys()
	if actual.kind != KindObject {
		// When every child path is excluded nothing below this point
		// would be checked, so the exclusions win before the type of
		// actual is inspected.
		if len(keys) > 0 && allChildrenExcluded(keys, path, excl) {
			return true
		}
		return sink(typeMismatch(path, KindObject, actual))
	}
	for _, k := range keys {
		child := JoinKey(path, k)
		if excl.Matches(child) {
			continue
		}
		av, ok := actual.obj[k]
		if !ok {
			if !sink(&Error{Path: child, Reason: MissingKey, Expected: expected.obj[k].String()}) {
				return false
			}
			continue
		}
		if !walk(expected.obj[k], av, child, excl, sink) {
			return false
		}
	}
	return true
}

func walkSequence(expected, actual Value, path string, excl Exclusions, sink func(*Error) bool) bool {
	if actual.kind != KindSequence {
		return sink(typeMismatch(path, KindSequence, actual))
	}
	if len(actual.seq) < len(expected.seq) {
		e := &Error{
			Path:     path,
			Reason:   LengthTooShort,
			Expected: strconv.Itoa(len(expected.seq)),
			Actual:   strconv.Itoa(len(actual.seq)),
		}
		if !sink(e) {
			return false
		}
	}
	n := min(len(expected.seq), len(actual.seq))
	for i := 0; i < n; i++ {
		if !walk(expected.seq[i], actual.seq[i], JoinIndex(path, i), excl, sink) {
			return false
		}
	}
	return true
}

func walkScalar(expected, actual Value, path string, _ Exclusions, sink func(*Error) bool) bool {
	if expected.kind != actual.kind {
		return sink(typeMismatch(path, expected.kind, actual))
	}
	if !scalarEqual(expected, actual) {
		return sink(&Error{
			Path:     path,
			Reason:   ValueMismatch,
			Expected: expected.String(),
			Actual:   actual.String(),
		})
	}
	return true
}

// allChildrenExcluded reports whether every immediate child path of an
// expected object is excluded.
func allChildrenExcluded(keys []string, path string, excl Exclusions) bool {
	for _, k := range keys {
		if !excl.Matches(JoinKey(path, k)) {
			return false
		}
	}
	return true
}

// scalarEqual compares two scalars of the same kind exactly. No numeric
// coercion and no case folding.
func scalarEqual(a, b Value) bool {
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.boo == b.boo
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	default:
		return false
	}
}

func typeMismatch(path string, want Kind, actual Value) *Error {
	return &Error{
		Path:     path,
		Reason:   TypeMismatch,
		Expected: want.String(),
		Actual:   actual.kind.String(),
	}
}
