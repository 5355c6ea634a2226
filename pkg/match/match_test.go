package match

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch(t *testing.T) {
	tests := []struct {
		name       string
		expected   any
		actual     any
		exclude    []string
		wildcard   bool
		wantReason Reason
		wantPath   string
	}{
		// Superset tolerance: extra actual keys are never inspected.
		{
			name:     "identical objects",
			expected: map[string]any{"id": 1, "name": "alice"},
			actual:   map[string]any{"id": 1, "name": "alice"},
		},
		{
			name:     "actual has extra keys",
			expected: map[string]any{"id": 1},
			actual:   map[string]any{"id": 1, "created_at": "2024-01-01", "role": "admin"},
		},
		{
			name:     "nested actual has extra keys",
			expected: map[string]any{"user": map[string]any{"id": 7}},
			actual:   map[string]any{"user": map[string]any{"id": 7, "email": "a@b.c"}},
		},
		// Prefix tolerance: actual sequences may be longer, never shorter.
		{
			name:     "equal length sequences",
			expected: []any{1, 2, 3},
			actual:   []any{1, 2, 3},
		},
		{
			name:     "actual sequence longer",
			expected: []any{1, 2},
			actual:   []any{1, 2, 99, 100},
		},
		{
			name:       "actual sequence shorter",
			expected:   []any{1, 2, 3},
			actual:     []any{1, 2},
			wantReason: LengthTooShort,
			wantPath:   "",
		},
		{
			name:       "nested sequence shorter",
			expected:   map[string]any{"items": []any{1, 2}},
			actual:     map[string]any{"items": []any{1}},
			wantReason: LengthTooShort,
			wantPath:   "items",
		},
		{
			name:     "extra actual elements are not inspected",
			expected: []any{1},
			actual:   []any{1, map[string]any{"weird": true}},
		},
		// Exclusion short-circuit.
		{
			name:     "excluded leaf never compared",
			expected: map[string]any{"a": map[string]any{"b": 1}},
			actual:   map[string]any{"a": map[string]any{"b": 2}},
			exclude:  []string{"a.b"},
		},
		{
			name:     "exclusion wins before type check below it",
			expected: map[string]any{"a": map[string]any{"b": 1}},
			actual:   map[string]any{"a": "not-an-object"},
			exclude:  []string{"a.b"},
		},
		{
			name:       "no exclusion still fails",
			expected:   map[string]any{"a": 1},
			actual:     map[string]any{"a": 2},
			wantReason: ValueMismatch,
			wantPath:   "a",
		},
		{
			name:     "excluded missing key is not an error",
			expected: map[string]any{"id": 1, "token": "x"},
			actual:   map[string]any{"id": 1},
			exclude:  []string{"token"},
		},
		{
			name:     "excluded subtree with mismatched children",
			expected: map[string]any{"meta": map[string]any{"ts": 1, "rev": 2}},
			actual:   map[string]any{"meta": map[string]any{"ts": 9}},
			exclude:  []string{"meta"},
		},
		// Prefix-boundary: "data" covers "data.email" but not "database".
		{
			name:     "literal pattern excludes object descendants",
			expected: map[string]any{"data": map[string]any{"email": "x@y.z"}},
			actual:   map[string]any{"data": map[string]any{"email": "other"}},
			exclude:  []string{"data"},
		},
		{
			name:       "literal pattern does not bleed into longer names",
			expected:   map[string]any{"database": 1},
			actual:     map[string]any{"database": 2},
			exclude:    []string{"data"},
			wantReason: ValueMismatch,
			wantPath:   "database",
		},
		// Literal patterns do not cover sequence index children.
		{
			name:       "literal pattern leaves index children checked",
			expected:   map[string]any{"items": []any{1}},
			actual:     map[string]any{"items": []any{2}},
			exclude:    []string{"items"},
			wantReason: ValueMismatch,
			wantPath:   "items[0]",
		},
		{
			name:     "exact index path excludes one element",
			expected: map[string]any{"items": []any{1, 2}},
			actual:   map[string]any{"items": []any{9, 2}},
			exclude:  []string{"items[0]"},
		},
		// Wildcard mode.
		{
			name:     "wildcard index pattern",
			expected: map[string]any{"items": []any{map[string]any{"id": 1}}},
			actual:   map[string]any{"items": []any{map[string]any{"id": 2}}},
			exclude:  []string{"items[*].id"},
			wildcard: true,
		},
		{
			name:       "same pattern without wildcard mode fails",
			expected:   map[string]any{"items": []any{map[string]any{"id": 1}}},
			actual:     map[string]any{"items": []any{map[string]any{"id": 2}}},
			exclude:    []string{"items[*].id"},
			wantReason: ValueMismatch,
			wantPath:   "items[0].id",
		},
		{
			name:     "wildcard star spans path segments",
			expected: map[string]any{"user": map[string]any{"created_at": "2024"}},
			actual:   map[string]any{"user": map[string]any{"created_at": "2025"}},
			exclude:  []string{"*created_at"},
			wildcard: true,
		},
		{
			name:     "wildcard question mark",
			expected: map[string]any{"rev1": "a"},
			actual:   map[string]any{"rev1": "b"},
			exclude:  []string{"rev?"},
			wildcard: true,
		},
		{
			name:     "wildcard character class",
			expected: map[string]any{"f1": 1, "f2": 2},
			actual:   map[string]any{"f1": 9, "f2": 8},
			exclude:  []string{"f[12]"},
			wildcard: true,
		},
		{
			name:       "wildcard pattern that matches nothing",
			expected:   map[string]any{"id": 1},
			actual:     map[string]any{"id": 2},
			exclude:    []string{"name*"},
			wildcard:   true,
			wantReason: ValueMismatch,
			wantPath:   "id",
		},
		// Scalar exact equality.
		{
			name:     "equal numbers",
			expected: 1,
			actual:   1,
		},
		{
			name:     "equal nulls",
			expected: nil,
			actual:   nil,
		},
		{
			name:       "number vs string",
			expected:   1,
			actual:     "1",
			wantReason: TypeMismatch,
			wantPath:   "",
		},
		{
			name:       "bool vs number",
			expected:   true,
			actual:     1,
			wantReason: TypeMismatch,
			wantPath:   "",
		},
		{
			name:       "null vs string",
			expected:   nil,
			actual:     "null",
			wantReason: TypeMismatch,
			wantPath:   "",
		},
		{
			name:       "string case sensitive",
			expected:   "Alice",
			actual:     "alice",
			wantReason: ValueMismatch,
			wantPath:   "",
		},
		{
			name:       "scalar vs object",
			expected:   map[string]any{"v": 1},
			actual:     map[string]any{"v": map[string]any{"x": 1}},
			wantReason: TypeMismatch,
			wantPath:   "v",
		},
		// Type mismatches on containers.
		{
			name:       "object vs sequence",
			expected:   map[string]any{"a": 1},
			actual:     []any{1},
			wantReason: TypeMismatch,
			wantPath:   "",
		},
		{
			name:       "sequence vs object",
			expected:   []any{1},
			actual:     map[string]any{"0": 1},
			wantReason: TypeMismatch,
			wantPath:   "",
		},
		{
			name:       "empty expected object still type checks",
			expected:   map[string]any{},
			actual:     "scalar",
			wantReason: TypeMismatch,
			wantPath:   "",
		},
		{
			name:     "empty expected object accepts any object",
			expected: map[string]any{},
			actual:   map[string]any{"anything": 1},
		},
		{
			name:     "empty expected sequence accepts any sequence",
			expected: []any{},
			actual:   []any{1, 2, 3},
		},
		// Missing keys.
		{
			name:       "missing key reports child path",
			expected:   map[string]any{"x": 1, "y": 2},
			actual:     map[string]any{"x": 1},
			wantReason: MissingKey,
			wantPath:   "y",
		},
		{
			name:       "missing nested key",
			expected:   map[string]any{"user": map[string]any{"email": "a@b.c"}},
			actual:     map[string]any{"user": map[string]any{"id": 1}},
			wantReason: MissingKey,
			wantPath:   "user.email",
		},
		// Root exclusion.
		{
			name:     "empty literal pattern excludes the root",
			expected: map[string]any{"a": 1},
			actual:   "whatever",
			exclude:  []string{""},
		},
		// Deep nesting.
		{
			name: "deep path is reported",
			expected: map[string]any{
				"a": map[string]any{"b": []any{map[string]any{"c": []any{"x"}}}},
			},
			actual: map[string]any{
				"a": map[string]any{"b": []any{map[string]any{"c": []any{"y"}}}},
			},
			wantReason: ValueMismatch,
			wantPath:   "a.b[0].c[0]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			excl := Exclusions{Patterns: tt.exclude, Wildcard: tt.wildcard}
			err := Match(MustValue(tt.expected), MustValue(tt.actual), excl)

			if tt.wantReason == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var merr *Error
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, tt.wantReason, merr.Reason)
			assert.Equal(t, tt.wantPath, merr.Path)
		})
	}
}

func TestMatchFailFastDeterminism(t *testing.T) {
	// Several keys diverge; the reported one must be stable across runs.
	expected := MustValue(map[string]any{"a": 1, "b": 2, "c": 3})
	actual := MustValue(map[string]any{"a": 9, "b": 8, "c": 7})

	for i := 0; i < 50; i++ {
		err := Match(expected, actual, Exclusions{})
		require.Error(t, err)
		var merr *Error
		require.ErrorAs(t, err, &merr)
		assert.Equal(t, "a", merr.Path)
		assert.Equal(t, ValueMismatch, merr.Reason)
	}
}

func TestMatchErrorMessages(t *testing.T) {
	tests := []struct {
		name     string
		expected any
		actual   any
		want     string
	}{
		{
			name:     "value mismatch",
			expected: map[string]any{"id": 1},
			actual:   map[string]any{"id": 2},
			want:     `id: value mismatch: expected 1, got 2`,
		},
		{
			name:     "type mismatch",
			expected: map[string]any{"user": map[string]any{"id": 1}},
			actual:   map[string]any{"user": "nope"},
			want:     `user: type mismatch: expected object, got string`,
		},
		{
			name:     "missing key",
			expected: map[string]any{"token": "x"},
			actual:   map[string]any{},
			want:     `token: missing key`,
		},
		{
			name:     "length too short",
			expected: []any{1, 2, 3},
			actual:   []any{1},
			want:     `(root): sequence too short: expected at least 3 elements, got 1`,
		},
		{
			name:     "root value mismatch",
			expected: "a",
			actual:   "b",
			want:     `(root): value mismatch: expected "a", got "b"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Match(MustValue(tt.expected), MustValue(tt.actual), Exclusions{})
			require.Error(t, err)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestMatchDoesNotMutateInputs(t *testing.T) {
	raw := map[string]any{"a": map[string]any{"b": []any{1, 2}}}
	expected := MustValue(raw)
	actual := MustValue(map[string]any{"a": map[string]any{"b": []any{1, 2}}, "extra": true})

	require.NoError(t, Match(expected, actual, Exclusions{}))
	assert.Equal(t, map[string]any{"a": map[string]any{"b": []any{float64(1), float64(2)}}}, expected.Interface())
}

func TestMatchConcurrent(t *testing.T) {
	expected := MustValue(map[string]any{
		"user":  map[string]any{"id": 1, "name": "alice"},
		"items": []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
	})
	good := MustValue(map[string]any{
		"user":  map[string]any{"id": 1, "name": "alice", "role": "admin"},
		"items": []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}, map[string]any{"sku": "c"}},
	})
	bad := MustValue(map[string]any{
		"user":  map[string]any{"id": 2, "name": "alice"},
		"items": []any{map[string]any{"sku": "a"}, map[string]any{"sku": "b"}},
	})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				assert.NoError(t, Match(expected, good, Exclusions{}))
				return
			}
			err := Match(expected, bad, Exclusions{})
			var merr *Error
			if assert.ErrorAs(t, err, &merr) {
				assert.Equal(t, "user.id", merr.Path)
			}
		}()
	}
	wg.Wait()
}

func TestMatchAll(t *testing.T) {
	expected := MustValue(map[string]any{
		"a":     1,
		"b":     map[string]any{"c": "x"},
		"items": []any{1, 2, 3},
		"gone":  true,
	})
	actual := MustValue(map[string]any{
		"a":     2,
		"b":     "not-an-object",
		"items": []any{9, 2},
	})

	errs := MatchAll(expected, actual, Exclusions{})
	require.Len(t, errs, 5)

	paths := make([]string, 0, len(errs))
	reasons := make([]Reason, 0, len(errs))
	for _, err := range errs {
		var merr *Error
		require.True(t, errors.As(err, &merr))
		paths = append(paths, merr.Path)
		reasons = append(reasons, merr.Reason)
	}
	// Traversal order: sorted keys, then indexes.
	assert.Equal(t, []string{"a", "b", "gone", "items", "items[0]"}, paths)
	assert.Equal(t, []Reason{ValueMismatch, TypeMismatch, MissingKey, LengthTooShort, ValueMismatch}, reasons)
}

func TestMatchAllEmptyOnSuccess(t *testing.T) {
	expected := MustValue(map[string]any{"a": 1})
	actual := MustValue(map[string]any{"a": 1, "b": 2})
	assert.Empty(t, MatchAll(expected, actual, Exclusions{}))
}
