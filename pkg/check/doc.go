// Package check provides response assertions for HTTP API tests.
//
// It is the support library for test files produced by specrun generate,
// and works just as well in hand-written tests. Assertions report through
// testing.TB, so failures carry the usual file/line context.
//
// # Basic Usage
//
// Execute a request and assert on the captured response:
//
//	func TestListUsers(t *testing.T) {
//	    req, _ := http.NewRequest("GET", baseURL+"/users", nil)
//	    resp := check.Do(t, nil, req)
//
//	    resp.AssertStatus(t, 200)
//	    resp.AssertHeader(t, "Content-Type", "application/json")
//	}
//
// # Partial Matching
//
// AssertPartial compares the response body against an expected document
// with partial semantics: objects in the response may carry keys the
// expected document does not mention, and arrays may carry extra trailing
// elements. Expected values that ARE present must match exactly.
//
//	resp.AssertPartialJSON(t, `{
//	    "items": [{"id": "u1"}, {"id": "u2"}],
//	    "total": 2
//	}`)
//
// Volatile fields such as timestamps or revision counters can be excluded
// by path:
//
//	resp.AssertPartialJSON(t, expected,
//	    check.Exclude("items[0].created_at", "rev"))
//
// or by glob pattern, matched against the full path:
//
//	resp.AssertPartialJSON(t, expected,
//	    check.ExcludeGlob("items[*].created_at", "*.rev"))
//
// # JSONPath
//
// AssertJSONPath checks a single location in the body. The expected value
// {"exists": true} or {"exists": false} asserts presence only; any other
// value is matched against the first result with the same partial
// semantics:
//
//	resp.AssertJSONPath(t, "$.items[0].id", "u1")
//	resp.AssertJSONPath(t, "$.items[0].password", map[string]any{"exists": false})
//
// # Schema Validation
//
// AssertSchema validates the body against a JSON Schema document:
//
//	resp.AssertSchema(t, `{
//	    "type": "object",
//	    "required": ["items", "total"]
//	}`)
package check
