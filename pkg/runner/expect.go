package runner

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/specrun/specrun/internal/jsonpath"
	"github.com/specrun/specrun/pkg/match"
	"github.com/specrun/specrun/pkg/report"
	"github.com/specrun/specrun/pkg/spec"
)

// evaluate runs the test's expectations against the response in a fixed
// order: status, max duration, headers, schema, body, JSONPath, expr.
// The first failing check stops the test and is returned; nil means every
// expectation held.
func (r *Runner) evaluate(test *spec.Test, resp *response) *report.Failure {
	expect := &test.Expect

	if resp.status != expect.Status {
		msg := fmt.Sprintf("expected status %d, got %d", expect.Status, resp.status)
		if len(resp.body) > 0 {
			msg += ": " + bodySnippet(resp.body)
		}
		return &report.Failure{Check: "status", Message: msg}
	}

	if expect.MaxDuration != 0 && resp.elapsed > expect.MaxDuration.Std() {
		return &report.Failure{
			Check: "maxDuration",
			Message: fmt.Sprintf("response took %s, want at most %s",
				resp.elapsed.Round(time.Millisecond), expect.MaxDuration),
		}
	}

	if failure := checkHeaders(expect.Headers, resp); failure != nil {
		return failure
	}

	// The remaining checks work on the decoded body. Expr still runs when
	// the body is not JSON; the document is just nil then.
	needsDoc := expect.Schema != nil || expect.Body != nil || len(expect.JSONPath) > 0
	var doc any
	if needsDoc || len(expect.Expr) > 0 {
		if err := json.Unmarshal(resp.body, &doc); err != nil && needsDoc {
			return &report.Failure{
				Check:   "body",
				Message: fmt.Sprintf("response body is not valid JSON: %v", err),
			}
		}
	}

	if expect.Schema != nil {
		if failure := checkSchema(expect.Schema, doc); failure != nil {
			return failure
		}
	}

	excl := match.Exclusions{Patterns: test.Exclude, Wildcard: test.Wildcard}

	if expect.Body != nil {
		if failure := checkBody(expect.Body, doc, excl); failure != nil {
			return failure
		}
	}

	if failure := checkJSONPath(expect.JSONPath, doc, excl); failure != nil {
		return failure
	}

	return r.checkExpr(expect.Expr, resp, doc)
}

func checkHeaders(expected map[string]string, resp *response) *report.Failure {
	if len(expected) == 0 {
		return nil
	}
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		got := resp.header.Get(k)
		if got == "" {
			return &report.Failure{
				Check:   "header",
				Message: fmt.Sprintf("response does not have header %q", k),
			}
		}
		if got != expected[k] {
			return &report.Failure{
				Check:   "header",
				Message: fmt.Sprintf("header %q value mismatch: expected %q, got %q", k, expected[k], got),
			}
		}
	}
	return nil
}

func checkSchema(schema, doc any) *report.Failure {
	raw, err := json.Marshal(schema)
	if err != nil {
		return &report.Failure{Check: "schema", Message: fmt.Sprintf("invalid schema: %v", err)}
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource("expect.schema.json", strings.NewReader(string(raw))); err != nil {
		return &report.Failure{Check: "schema", Message: fmt.Sprintf("invalid schema: %v", err)}
	}
	compiled, err := compiler.Compile("expect.schema.json")
	if err != nil {
		return &report.Failure{Check: "schema", Message: fmt.Sprintf("invalid schema: %v", err)}
	}
	if err := compiled.Validate(doc); err != nil {
		return &report.Failure{
			Check:   "schema",
			Message: fmt.Sprintf("response body does not validate against schema: %v", err),
		}
	}
	return nil
}

func checkBody(expected, doc any, excl match.Exclusions) *report.Failure {
	exp, err := match.FromJSON(expected)
	if err != nil {
		return &report.Failure{
			Check:   "body",
			Message: fmt.Sprintf("expected body is not JSON-representable: %v", err),
		}
	}
	act, err := match.FromJSON(doc)
	if err != nil {
		return &report.Failure{
			Check:   "body",
			Message: fmt.Sprintf("response body is not JSON-representable: %v", err),
		}
	}

	if err := match.Match(exp, act, excl); err != nil {
		failure := &report.Failure{Check: "body", Message: err.Error()}
		var matchErr *match.Error
		if errors.As(err, &matchErr) {
			failure.Path = matchErr.Path
		}
		return failure
	}
	return nil
}

func checkJSONPath(expected map[string]any, doc any, excl match.Exclusions) *report.Failure {
	if len(expected) == 0 {
		return nil
	}
	exprs := make([]string, 0, len(expected))
	for e := range expected {
		exprs = append(exprs, e)
	}
	sort.Strings(exprs)

	for _, e := range exprs {
		if err := jsonpath.Check(doc, e, expected[e], excl); err != nil {
			return &report.Failure{Check: "jsonPath", Message: err.Error()}
		}
	}
	return nil
}

// checkExpr evaluates each expression against the response environment.
// Every expression must evaluate to true.
func (r *Runner) checkExpr(exprs []string, resp *response, doc any) *report.Failure {
	if len(exprs) == 0 {
		return nil
	}

	env := map[string]any{
		"status":     resp.status,
		"body":       doc,
		"headers":    flattenHeader(resp.header),
		"elapsed_ms": resp.elapsed.Milliseconds(),
	}

	for _, expression := range exprs {
		result, err := r.programs.eval(expression, env)
		if err != nil {
			return &report.Failure{
				Check:   "expr",
				Message: fmt.Sprintf("expression %q failed: %v", expression, err),
			}
		}
		ok, isBool := result.(bool)
		if !isBool {
			return &report.Failure{
				Check:   "expr",
				Message: fmt.Sprintf("expression %q did not evaluate to a boolean (got %T)", expression, result),
			}
		}
		if !ok {
			return &report.Failure{
				Check:   "expr",
				Message: fmt.Sprintf("expression %q evaluated to false", expression),
			}
		}
	}
	return nil
}

// flattenHeader keeps the first value per header under its canonical name.
func flattenHeader(header map[string][]string) map[string]string {
	flat := make(map[string]string, len(header))
	for k, values := range header {
		if len(values) > 0 {
			flat[k] = values[0]
		}
	}
	return flat
}

func bodySnippet(body []byte) string {
	const limit = 256
	if len(body) <= limit {
		return string(body)
	}
	return fmt.Sprintf("%s... (%d bytes total)", body[:limit], len(body))
}
