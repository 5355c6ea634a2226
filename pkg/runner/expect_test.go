package runner

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specrun/specrun/pkg/spec"
)

func jsonResponse(status int, body string) *response {
	return &response{
		status:  status,
		header:  http.Header{"Content-Type": []string{"application/json"}},
		body:    []byte(body),
		elapsed: 100 * time.Millisecond,
	}
}

func TestEvaluateStatusFirst(t *testing.T) {
	r := New(Options{})

	// Both the status and the body diverge; the status check runs first.
	test := &spec.Test{Expect: spec.Expect{
		Status: 201,
		Body:   map[string]any{"id": float64(1)},
	}}
	failure := r.evaluate(test, jsonResponse(200, `{"id": 2}`))

	require.NotNil(t, failure)
	assert.Equal(t, "status", failure.Check)
	assert.Contains(t, failure.Message, "expected status 201, got 200")
	assert.Contains(t, failure.Message, `{"id": 2}`)
}

func TestEvaluateMaxDuration(t *testing.T) {
	r := New(Options{})

	test := &spec.Test{Expect: spec.Expect{
		Status:      200,
		MaxDuration: spec.Duration(50 * time.Millisecond),
	}}
	failure := r.evaluate(test, jsonResponse(200, `{}`))

	require.NotNil(t, failure)
	assert.Equal(t, "maxDuration", failure.Check)
	assert.Equal(t, "response took 100ms, want at most 50ms", failure.Message)
}

func TestEvaluateHeaders(t *testing.T) {
	r := New(Options{})

	t.Run("missing", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status:  200,
			Headers: map[string]string{"X-Request-Id": "abc"},
		}}
		failure := r.evaluate(test, jsonResponse(200, `{}`))

		require.NotNil(t, failure)
		assert.Equal(t, "header", failure.Check)
		assert.Contains(t, failure.Message, `response does not have header "X-Request-Id"`)
	})

	t.Run("mismatch", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status:  200,
			Headers: map[string]string{"Content-Type": "text/plain"},
		}}
		failure := r.evaluate(test, jsonResponse(200, `{}`))

		require.NotNil(t, failure)
		assert.Equal(t, "header", failure.Check)
		assert.Contains(t, failure.Message, `header "Content-Type" value mismatch`)
	})

	t.Run("first in sorted order", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Headers: map[string]string{
				"X-Beta":  "b",
				"X-Alpha": "a",
			},
		}}
		failure := r.evaluate(test, jsonResponse(200, `{}`))

		require.NotNil(t, failure)
		assert.Contains(t, failure.Message, "X-Alpha")
	})
}

func TestEvaluateSchema(t *testing.T) {
	r := New(Options{})

	schema := map[string]any{
		"type":     "object",
		"required": []any{"id"},
		"properties": map[string]any{
			"id": map[string]any{"type": "integer"},
		},
	}

	t.Run("valid", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{Status: 200, Schema: schema}}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, `{"id": 7}`)))
	})

	t.Run("required missing", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{Status: 200, Schema: schema}}
		failure := r.evaluate(test, jsonResponse(200, `{"name": "x"}`))

		require.NotNil(t, failure)
		assert.Equal(t, "schema", failure.Check)
		assert.Contains(t, failure.Message, "does not validate against schema")
	})

	t.Run("broken schema", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Schema: map[string]any{"type": float64(12)},
		}}
		failure := r.evaluate(test, jsonResponse(200, `{}`))

		require.NotNil(t, failure)
		assert.Equal(t, "schema", failure.Check)
		assert.Contains(t, failure.Message, "invalid schema")
	})
}

func TestEvaluateBody(t *testing.T) {
	r := New(Options{})

	t.Run("partial match tolerates extras", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Body:   map[string]any{"name": "ada"},
		}}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, `{"name": "ada", "id": 7}`)))
	})

	t.Run("mismatch carries path", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Body:   map[string]any{"items": []any{map[string]any{"sku": "a"}}},
		}}
		failure := r.evaluate(test, jsonResponse(200, `{"items": [{"sku": "b"}]}`))

		require.NotNil(t, failure)
		assert.Equal(t, "body", failure.Check)
		assert.Equal(t, "items[0].sku", failure.Path)
		assert.Contains(t, failure.Message, "value mismatch")
	})

	t.Run("exclusions skip volatile paths", func(t *testing.T) {
		test := &spec.Test{
			Exclude: []string{"updatedAt"},
			Expect: spec.Expect{
				Status: 200,
				Body:   map[string]any{"name": "ada", "updatedAt": "never"},
			},
		}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, `{"name": "ada", "updatedAt": "2024-06-01"}`)))
	})

	t.Run("wildcard exclusions", func(t *testing.T) {
		test := &spec.Test{
			Exclude:  []string{"**.id"},
			Wildcard: true,
			Expect: spec.Expect{
				Status: 200,
				Body:   map[string]any{"items": []any{map[string]any{"id": float64(1), "sku": "a"}}},
			},
		}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, `{"items": [{"id": 99, "sku": "a"}]}`)))
	})

	t.Run("body not JSON", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Body:   map[string]any{"name": "ada"},
		}}
		failure := r.evaluate(test, jsonResponse(200, `not json`))

		require.NotNil(t, failure)
		assert.Equal(t, "body", failure.Check)
		assert.Contains(t, failure.Message, "not valid JSON")
	})
}

func TestEvaluateJSONPath(t *testing.T) {
	r := New(Options{})

	body := `{"total": 2, "items": [{"id": "a"}, {"id": "b"}]}`

	t.Run("match", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			JSONPath: map[string]any{
				"$.total":        float64(2),
				"$.items[0].id":  "a",
				"$.items[1]":     map[string]any{"exists": true},
				"$.missingField": map[string]any{"exists": false},
			},
		}}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, body)))
	})

	t.Run("mismatch", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status:   200,
			JSONPath: map[string]any{"$.total": float64(5)},
		}}
		failure := r.evaluate(test, jsonResponse(200, body))

		require.NotNil(t, failure)
		assert.Equal(t, "jsonPath", failure.Check)
		assert.Contains(t, failure.Message, "$.total")
	})

	t.Run("no results", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status:   200,
			JSONPath: map[string]any{"$.nope": "x"},
		}}
		failure := r.evaluate(test, jsonResponse(200, body))

		require.NotNil(t, failure)
		assert.Equal(t, "jsonPath", failure.Check)
		assert.Contains(t, failure.Message, "no results")
	})
}

func TestEvaluateExpr(t *testing.T) {
	r := New(Options{})

	body := `{"total": 2, "items": [{"id": "a"}, {"id": "b"}]}`

	t.Run("environment", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Expr: []string{
				"status == 200",
				"body.total == 2",
				"len(body.items) == 2",
				`headers["Content-Type"] == "application/json"`,
				"elapsed_ms < 1000",
			},
		}}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, body)))
	})

	t.Run("false", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Expr:   []string{"body.total > 10"},
		}}
		failure := r.evaluate(test, jsonResponse(200, body))

		require.NotNil(t, failure)
		assert.Equal(t, "expr", failure.Check)
		assert.Equal(t, `expression "body.total > 10" evaluated to false`, failure.Message)
	})

	t.Run("not a boolean", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Expr:   []string{"body.total"},
		}}
		failure := r.evaluate(test, jsonResponse(200, body))

		require.NotNil(t, failure)
		assert.Equal(t, "expr", failure.Check)
		assert.Contains(t, failure.Message, "did not evaluate to a boolean")
	})

	t.Run("broken expression", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Expr:   []string{"status =="},
		}}
		failure := r.evaluate(test, jsonResponse(200, body))

		require.NotNil(t, failure)
		assert.Equal(t, "expr", failure.Check)
		assert.Contains(t, failure.Message, "failed")
	})

	t.Run("runs without JSON body", func(t *testing.T) {
		test := &spec.Test{Expect: spec.Expect{
			Status: 200,
			Expr:   []string{"body == nil", "status == 200"},
		}}
		assert.Nil(t, r.evaluate(test, jsonResponse(200, `not json`)))
	})
}

func TestExprCacheReuse(t *testing.T) {
	var cache exprCache

	first, err := cache.compile("status == 200")
	require.NoError(t, err)
	second, err := cache.compile("status == 200")
	require.NoError(t, err)

	assert.Same(t, first, second)
}

func TestJoinURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		path    string
		want    string
		wantErr bool
	}{
		{name: "simple join", base: "http://api.test", path: "/users", want: "http://api.test/users"},
		{name: "trailing slash on base", base: "http://api.test/", path: "/users", want: "http://api.test/users"},
		{name: "no leading slash on path", base: "http://api.test", path: "users", want: "http://api.test/users"},
		{name: "base with prefix", base: "http://api.test/v2/", path: "users", want: "http://api.test/v2/users"},
		{name: "absolute path wins", base: "http://api.test", path: "https://other.test/health", want: "https://other.test/health"},
		{name: "no base", base: "", path: "/users", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := joinURL(tt.base, tt.path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuildRequest(t *testing.T) {
	r := New(Options{})
	suite := &spec.Suite{
		BaseURL: "http://api.test",
		Defaults: &spec.Defaults{
			Headers: map[string]string{
				"Accept":    "application/json",
				"X-Api-Key": "default-key",
			},
		},
	}

	t.Run("merges headers and query", func(t *testing.T) {
		test := &spec.Test{Request: spec.Request{
			Method:  "get",
			Path:    "/users",
			Headers: map[string]string{"X-Api-Key": "test-key"},
			Query:   map[string]string{"limit": "10", "cursor": "abc"},
		}}

		req, err := r.buildRequest(context.Background(), suite, test, nil)
		require.NoError(t, err)

		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "http://api.test/users?cursor=abc&limit=10", req.URL.String())
		assert.Equal(t, "application/json", req.Header.Get("Accept"))
		assert.Equal(t, "test-key", req.Header.Get("X-Api-Key"))
		assert.Empty(t, req.Header.Get("Authorization"))
	})

	t.Run("marshals body and defaults content type", func(t *testing.T) {
		test := &spec.Test{Request: spec.Request{
			Method: "POST",
			Path:   "/users",
			Body:   map[string]any{"name": "ada"},
		}}

		req, err := r.buildRequest(context.Background(), suite, test, nil)
		require.NoError(t, err)

		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		payload, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"name": "ada"}`, string(payload))
	})

	t.Run("explicit content type wins", func(t *testing.T) {
		test := &spec.Test{Request: spec.Request{
			Method:  "POST",
			Path:    "/users",
			Headers: map[string]string{"Content-Type": "application/vnd.api+json"},
			Body:    map[string]any{"name": "ada"},
		}}

		req, err := r.buildRequest(context.Background(), suite, test, nil)
		require.NoError(t, err)

		assert.Equal(t, "application/vnd.api+json", req.Header.Get("Content-Type"))
	})
}
