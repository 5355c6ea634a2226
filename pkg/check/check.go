package check

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/expr-lang/expr"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/specrun/specrun/internal/jsonpath"
	"github.com/specrun/specrun/pkg/match"
)

// Response captures an HTTP exchange for assertions.
type Response struct {
	// StatusCode is the HTTP status code.
	StatusCode int
	// Header holds the response headers.
	Header http.Header
	// Body is the full response body.
	Body []byte
	// Elapsed is the wall-clock duration of the exchange.
	Elapsed time.Duration
}

// Do executes req with client and captures the response for assertions.
// The test fails immediately when the request cannot be completed. A nil
// client uses http.DefaultClient.
func Do(t testing.TB, client *http.Client, req *http.Request) *Response {
	t.Helper()

	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response body: %v", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		Elapsed:    time.Since(start),
	}
}

// Option adjusts how partial matching treats the response body.
type Option func(*match.Exclusions)

// Exclude skips the given literal paths during partial matching.
func Exclude(paths ...string) Option {
	return func(e *match.Exclusions) {
		e.Patterns = append(e.Patterns, paths...)
		e.Wildcard = false
	}
}

// ExcludeGlob skips paths matching the given glob patterns during partial
// matching. Modes do not mix; the last option determines how every pattern
// is interpreted.
func ExcludeGlob(patterns ...string) Option {
	return func(e *match.Exclusions) {
		e.Patterns = append(e.Patterns, patterns...)
		e.Wildcard = true
	}
}

func exclusions(opts []Option) match.Exclusions {
	var excl match.Exclusions
	for _, opt := range opts {
		opt(&excl)
	}
	return excl
}

// AssertStatus asserts the response status code.
func (r *Response) AssertStatus(t testing.TB, want int) {
	t.Helper()

	if r.StatusCode != want {
		t.Errorf("status code mismatch\nexpected: %d\nactual: %d\nbody: %s",
			want, r.StatusCode, truncate(r.Body, 1024))
	}
}

// AssertHeader asserts that the response has the header with the expected
// value. Header names are matched case-insensitively.
func (r *Response) AssertHeader(t testing.TB, key, expected string) {
	t.Helper()

	actual := r.Header.Get(key)
	if actual == "" {
		t.Errorf("response does not have header %q", key)
		return
	}
	if actual != expected {
		t.Errorf("header %q value mismatch\nexpected: %q\nactual: %q", key, expected, actual)
	}
}

// AssertHeaderContains asserts that the header value contains the substring.
func (r *Response) AssertHeaderContains(t testing.TB, key, substr string) {
	t.Helper()

	actual := r.Header.Get(key)
	if actual == "" {
		t.Errorf("response does not have header %q", key)
		return
	}
	if !strings.Contains(actual, substr) {
		t.Errorf("header %q value does not contain %q\nvalue: %q", key, substr, actual)
	}
}

// AssertMaxDuration asserts that the exchange completed within limit.
func (r *Response) AssertMaxDuration(t testing.TB, limit time.Duration) {
	t.Helper()

	if r.Elapsed > limit {
		t.Errorf("response took %s, want at most %s", r.Elapsed, limit)
	}
}

// JSON decodes the response body. The test fails immediately when the body
// is not valid JSON.
func (r *Response) JSON(t testing.TB) any {
	t.Helper()

	doc, ok := r.decodeJSON(t)
	if !ok {
		t.FailNow()
	}
	return doc
}

// AssertPartial asserts that the response body matches expected with
// partial semantics: objects may carry extra keys and sequences may carry
// extra trailing elements. Use Exclude or ExcludeGlob to skip volatile
// paths.
func (r *Response) AssertPartial(t testing.TB, expected any, opts ...Option) {
	t.Helper()

	actual, ok := r.decodeJSON(t)
	if !ok {
		return
	}
	partial(t, expected, actual, exclusions(opts))
}

// AssertPartialJSON is AssertPartial with the expected value given as a
// JSON document.
func (r *Response) AssertPartialJSON(t testing.TB, expected string, opts ...Option) {
	t.Helper()

	var expectedDoc any
	if err := json.Unmarshal([]byte(expected), &expectedDoc); err != nil {
		t.Errorf("failed to parse expected JSON: %v", err)
		return
	}
	r.AssertPartial(t, expectedDoc, opts...)
}

// AssertJSONPath asserts a JSONPath expectation against the response body.
// An expected value of {"exists": true} or {"exists": false} asserts
// presence only; any other value is matched against the first result with
// partial semantics.
func (r *Response) AssertJSONPath(t testing.TB, expr string, expected any, opts ...Option) {
	t.Helper()

	doc, ok := r.decodeJSON(t)
	if !ok {
		return
	}
	if err := jsonpath.Check(doc, expr, expected, exclusions(opts)); err != nil {
		t.Errorf("JSONPath expectation failed: %v", err)
	}
}

// AssertExpr asserts boolean expressions against the exchange. The
// environment exposes status, body (the decoded JSON document, nil when
// the body is not JSON), headers (first value per name), and elapsed_ms.
func (r *Response) AssertExpr(t testing.TB, expressions ...string) {
	t.Helper()

	var doc any
	// Expressions can still check status and headers on a non-JSON body.
	_ = json.Unmarshal(r.Body, &doc)

	headers := make(map[string]string, len(r.Header))
	for k, values := range r.Header {
		if len(values) > 0 {
			headers[k] = values[0]
		}
	}
	env := map[string]any{
		"status":     r.StatusCode,
		"body":       doc,
		"headers":    headers,
		"elapsed_ms": r.Elapsed.Milliseconds(),
	}

	for _, expression := range expressions {
		program, err := expr.Compile(expression, expr.AllowUndefinedVariables())
		if err != nil {
			t.Errorf("expression %q failed: compile: %v", expression, err)
			continue
		}
		result, err := expr.Run(program, env)
		if err != nil {
			t.Errorf("expression %q failed: eval: %v", expression, err)
			continue
		}
		ok, isBool := result.(bool)
		if !isBool {
			t.Errorf("expression %q did not evaluate to a boolean (got %T)", expression, result)
			continue
		}
		if !ok {
			t.Errorf("expression %q evaluated to false", expression)
		}
	}
}

// AssertSchema asserts that the response body validates against the given
// JSON Schema document.
func (r *Response) AssertSchema(t testing.TB, schema string) {
	t.Helper()

	doc, ok := r.decodeJSON(t)
	if !ok {
		return
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("response.schema.json", strings.NewReader(schema)); err != nil {
		t.Errorf("invalid schema: %v", err)
		return
	}
	compiled, err := compiler.Compile("response.schema.json")
	if err != nil {
		t.Errorf("invalid schema: %v", err)
		return
	}
	if err := compiled.Validate(doc); err != nil {
		t.Errorf("response body does not validate against schema: %v", err)
	}
}

// Partial asserts that actual matches expected with partial semantics. It
// is the value-level form of Response.AssertPartial for callers that have
// already decoded their documents.
func Partial(t testing.TB, expected, actual any, opts ...Option) {
	t.Helper()
	partial(t, expected, actual, exclusions(opts))
}

func partial(t testing.TB, expected, actual any, excl match.Exclusions) {
	t.Helper()

	exp, err := match.FromJSON(expected)
	if err != nil {
		t.Errorf("expected value is not JSON-representable: %v", err)
		return
	}
	act, err := match.FromJSON(actual)
	if err != nil {
		t.Errorf("actual value is not JSON-representable: %v", err)
		return
	}

	if err := match.Match(exp, act, excl); err != nil {
		expectedBytes, _ := json.MarshalIndent(expected, "", "  ")
		actualBytes, _ := json.MarshalIndent(actual, "", "  ")
		t.Errorf("body does not match: %v\nexpected:\n%s\nactual:\n%s",
			err, string(expectedBytes), string(actualBytes))
	}
}

func (r *Response) decodeJSON(t testing.TB) (any, bool) {
	t.Helper()

	var doc any
	if err := json.Unmarshal(r.Body, &doc); err != nil {
		t.Errorf("response body is not valid JSON: %v\nbody: %s", err, truncate(r.Body, 1024))
		return nil, false
	}
	return doc, true
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + fmt.Sprintf("... (%d bytes total)", len(b))
}
