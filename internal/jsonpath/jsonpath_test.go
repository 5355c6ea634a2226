package jsonpath

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/specrun/specrun/pkg/match"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		t.Fatalf("bad test document: %v", err)
	}
	return doc
}

func TestCheck(t *testing.T) {
	doc := decode(t, `{
		"status": "active",
		"count": 3,
		"user": {"name": "John", "age": 30, "rev": 7},
		"items": [{"id": "a"}, {"id": "b"}]
	}`)

	tests := []struct {
		name     string
		expr     string
		expected any
		excl     match.Exclusions
		wantErr  string
	}{
		{
			name:     "scalar value match",
			expr:     "$.status",
			expected: "active",
		},
		{
			name:     "scalar value mismatch",
			expr:     "$.status",
			expected: "inactive",
			wantErr:  "value mismatch",
		},
		{
			name:     "number match",
			expr:     "$.count",
			expected: float64(3),
		},
		{
			name:     "partial object match",
			expr:     "$.user",
			expected: map[string]any{"name": "John"},
		},
		{
			name:     "partial object mismatch names the inner path",
			expr:     "$.user",
			expected: map[string]any{"name": "Jane"},
			wantErr:  "name: value mismatch",
		},
		{
			name:     "exclusions apply inside the result",
			expr:     "$.user",
			expected: map[string]any{"name": "John", "rev": float64(1)},
			excl:     match.Exclude("rev"),
		},
		{
			name:     "first result wins for wildcard paths",
			expr:     "$.items[*].id",
			expected: "a",
		},
		{
			name:     "first result mismatch for wildcard paths",
			expr:     "$.items[*].id",
			expected: "b",
			wantErr:  "value mismatch",
		},
		{
			name:     "exists true found",
			expr:     "$.user.name",
			expected: map[string]any{"exists": true},
		},
		{
			name:     "exists true missing",
			expr:     "$.user.email",
			expected: map[string]any{"exists": true},
			wantErr:  "expected a result, found none",
		},
		{
			name:     "exists false missing",
			expr:     "$.user.email",
			expected: map[string]any{"exists": false},
		},
		{
			name:     "exists false found",
			expr:     "$.user.name",
			expected: map[string]any{"exists": false},
			wantErr:  "expected no result, found 1",
		},
		{
			name:     "exists key with siblings is a value expectation",
			expr:     "$.user",
			expected: map[string]any{"exists": true, "name": "John"},
			wantErr:  "exists: missing key",
		},
		{
			name:     "no results for value expectation",
			expr:     "$.missing",
			expected: "anything",
			wantErr:  "no results",
		},
		{
			name:     "invalid expression",
			expr:     "$[",
			expected: "x",
			wantErr:  "invalid JSONPath expression",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(doc, tt.expr, tt.expected, tt.excl)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Check() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Check() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Check() error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestCheckErrorNamesExpression(t *testing.T) {
	doc := decode(t, `{"status": "active"}`)
	err := Check(doc, "$.status", "inactive", match.Exclusions{})
	if err == nil {
		t.Fatal("Check() error = nil, want mismatch")
	}
	if !strings.HasPrefix(err.Error(), "$.status: ") {
		t.Errorf("Check() error = %q, want it prefixed with the expression", err)
	}
}

func TestEval(t *testing.T) {
	doc := decode(t, `{"items": [{"id": "a"}, {"id": "b"}]}`)

	results, err := Eval(doc, "$.items[*].id")
	if err != nil {
		t.Fatalf("Eval() error = %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Eval() returned %d results, want 2", len(results))
	}
	if results[0] != "a" || results[1] != "b" {
		t.Errorf("Eval() results = %v, want [a b]", results)
	}

	if _, err := Eval(doc, "$["); err == nil {
		t.Error("Eval() with a broken expression did not error")
	}
}
