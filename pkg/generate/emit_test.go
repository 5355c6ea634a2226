package generate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/specrun/specrun/pkg/spec"
)

func TestIdentFrom(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{name: "users api", want: "UsersAPI"},
		{name: "list users", want: "ListUsers"},
		{name: "get user by id", want: "GetUserByID"},
		{name: "health-check", want: "HealthCheck"},
		{name: "orders v2", want: "OrdersV2"},
		{name: "UUID lookup", want: "UUIDLookup"},
		{name: "HTTP to JSON bridge", want: "HTTPToJSONBridge"},
		{name: "", want: "X"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, identFrom(tt.name))
		})
	}
}

func TestIdentFromLeadingDigit(t *testing.T) {
	ident := identFrom("42 things")
	assert.True(t, strings.HasPrefix(ident, "X"), "got %q", ident)
}

func TestSnakeFrom(t *testing.T) {
	assert.Equal(t, "users_api", snakeFrom("users api"))
	assert.Equal(t, "users_api_v2", snakeFrom("Users-API v2"))
	assert.Equal(t, "suite", snakeFrom("  "))
}

func TestDurationLit(t *testing.T) {
	assert.Equal(t, "2 * time.Second", durationLit(2*time.Second))
	assert.Equal(t, "500 * time.Millisecond", durationLit(500*time.Millisecond))
	assert.Equal(t, "1500 * time.Millisecond", durationLit(1500*time.Millisecond))
	assert.Equal(t, "time.Duration(100)", durationLit(100*time.Nanosecond))
}

func TestRawString(t *testing.T) {
	assert.Equal(t, "`{\"a\": 1}`", rawString(`{"a": 1}`))
	assert.Equal(t, "\"has a `backtick`\"", rawString("has a `backtick`"))
}

func TestGoLit(t *testing.T) {
	assert.Equal(t, "nil", goLit(nil))
	assert.Equal(t, "true", goLit(true))
	assert.Equal(t, `"ada"`, goLit("ada"))
	assert.Equal(t, "2", goLit(float64(2)))
	assert.Equal(t, "2.5", goLit(2.5))
	assert.Equal(t, "7", goLit(7))
	assert.Equal(t,
		`map[string]any{"exists": true}`,
		goLit(map[string]any{"exists": true}))
	assert.Equal(t,
		`map[string]any{"a": 1, "b": []any{"x", "y"}}`,
		goLit(map[string]any{"b": []any{"x", "y"}, "a": float64(1)}))
}

func TestMethodExpr(t *testing.T) {
	assert.Equal(t, "http.MethodGet", methodExpr("get"))
	assert.Equal(t, "http.MethodPost", methodExpr("POST"))
	assert.Equal(t, `"TRACE"`, methodExpr("trace"))
}

func TestOptionsExpr(t *testing.T) {
	assert.Empty(t, optionsExpr(&spec.Test{}))
	assert.Equal(t,
		`, check.Exclude("updatedAt", "items[0].id")`,
		optionsExpr(&spec.Test{Exclude: []string{"updatedAt", "items[0].id"}}))
	assert.Equal(t,
		`, check.ExcludeGlob("**.id")`,
		optionsExpr(&spec.Test{Exclude: []string{"**.id"}, Wildcard: true}))
}

func TestRequestURLExpr(t *testing.T) {
	t.Run("plain path", func(t *testing.T) {
		got, err := requestURLExpr(&spec.Test{
			Request: spec.Request{Path: "/users"},
		}, "usersAPIBaseURL")
		assert.NoError(t, err)
		assert.Equal(t, `usersAPIBaseURL()+"/users"`, got)
	})

	t.Run("query params encoded and sorted", func(t *testing.T) {
		got, err := requestURLExpr(&spec.Test{
			Request: spec.Request{
				Path:  "/users",
				Query: map[string]string{"limit": "10", "cursor": "a b"},
			},
		}, "usersAPIBaseURL")
		assert.NoError(t, err)
		assert.Equal(t, `usersAPIBaseURL()+"/users?cursor=a+b&limit=10"`, got)
	})

	t.Run("path with existing query", func(t *testing.T) {
		got, err := requestURLExpr(&spec.Test{
			Request: spec.Request{
				Path:  "/users?active=true",
				Query: map[string]string{"limit": "10"},
			},
		}, "usersAPIBaseURL")
		assert.NoError(t, err)
		assert.Equal(t, `usersAPIBaseURL()+"/users?active=true&limit=10"`, got)
	})

	t.Run("absolute URL bypasses base", func(t *testing.T) {
		got, err := requestURLExpr(&spec.Test{
			Request: spec.Request{Path: "https://other.test/health"},
		}, "usersAPIBaseURL")
		assert.NoError(t, err)
		assert.Equal(t, `"https://other.test/health"`, got)
	})
}
