package generate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"go/format"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/specrun/specrun/pkg/spec"
)

// Header marks generated files. Clean only ever removes files that
// carry it.
const Header = "// Code generated by specrun. DO NOT EDIT."

// initialisms keeps well-known abbreviations upper-case in identifiers.
var initialisms = map[string]string{
	"api":   "API",
	"http":  "HTTP",
	"https": "HTTPS",
	"id":    "ID",
	"json":  "JSON",
	"jwt":   "JWT",
	"sql":   "SQL",
	"tls":   "TLS",
	"uri":   "URI",
	"url":   "URL",
	"uuid":  "UUID",
	"xml":   "XML",
}

var titleCaser = cases.Title(language.English)

// emitSuite renders one suite as a gofmt-formatted Go test file.
func emitSuite(suite *spec.Suite, pkgName string) ([]byte, error) {
	suiteIdent := identFrom(suite.Name)
	baseURLFunc := lowerFirst(suiteIdent) + "BaseURL"
	hasAuth := suite.Auth != nil && suite.Auth.Type != spec.AuthNone

	needsStrings := false
	needsTime := false
	for i := range suite.Tests {
		if suite.Tests[i].Request.Body != nil {
			needsStrings = true
		}
		if suite.Tests[i].Expect.MaxDuration != 0 {
			needsTime = true
		}
	}

	var buf bytes.Buffer
	buf.WriteString(Header + "\n//\n")
	if suite.Source != "" {
		fmt.Fprintf(&buf, "// Suite %q from %s.\n", suite.Name, suite.Source)
	} else {
		fmt.Fprintf(&buf, "// Suite %q.\n", suite.Name)
	}
	fmt.Fprintf(&buf, "\npackage %s\n\n", pkgName)

	buf.WriteString("import (\n")
	buf.WriteString("\t\"net/http\"\n")
	buf.WriteString("\t\"os\"\n")
	if needsStrings {
		buf.WriteString("\t\"strings\"\n")
	}
	buf.WriteString("\t\"testing\"\n")
	if needsTime {
		buf.WriteString("\t\"time\"\n")
	}
	buf.WriteString("\n\t\"github.com/specrun/specrun/pkg/check\"\n)\n\n")

	fmt.Fprintf(&buf, "func %s() string {\n", baseURLFunc)
	buf.WriteString("\tif v := os.Getenv(\"SPECRUN_BASE_URL\"); v != \"\" {\n\t\treturn v\n\t}\n")
	fmt.Fprintf(&buf, "\treturn %q\n}\n\n", suite.BaseURL)

	taken := map[string]int{}
	for i := range suite.Tests {
		test := &suite.Tests[i]
		funcName := fmt.Sprintf("Test%s_%s", suiteIdent, identFrom(test.Name))
		if n := taken[funcName]; n > 0 {
			taken[funcName] = n + 1
			funcName = fmt.Sprintf("%s%d", funcName, n+1)
		} else {
			taken[funcName] = 1
		}
		if err := emitTest(&buf, suite, test, funcName, baseURLFunc, hasAuth); err != nil {
			return nil, fmt.Errorf("test %q: %w", test.Name, err)
		}
	}

	formatted, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("format generated code: %w", err)
	}
	return formatted, nil
}

func emitTest(buf *bytes.Buffer, suite *spec.Suite, test *spec.Test, funcName, baseURLFunc string, hasAuth bool) error {
	fmt.Fprintf(buf, "func %s(t *testing.T) {\n", funcName)
	if test.Skip {
		buf.WriteString("\tt.Skip(\"marked skip in suite file\")\n\n")
	}

	urlExpr, err := requestURLExpr(test, baseURLFunc)
	if err != nil {
		return err
	}

	if test.Request.Body != nil {
		payload, err := json.Marshal(test.Request.Body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		fmt.Fprintf(buf, "\treq, err := http.NewRequest(%s, %s, strings.NewReader(%s))\n",
			methodExpr(test.Request.Method), urlExpr, rawString(string(payload)))
	} else {
		fmt.Fprintf(buf, "\treq, err := http.NewRequest(%s, %s, nil)\n",
			methodExpr(test.Request.Method), urlExpr)
	}
	buf.WriteString("\tif err != nil {\n\t\tt.Fatal(err)\n\t}\n")

	headers := suite.EffectiveHeaders(test)
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "\treq.Header.Set(%q, %q)\n", k, headers[k])
	}
	if test.Request.Body != nil && headers["Content-Type"] == "" {
		fmt.Fprintf(buf, "\treq.Header.Set(%q, %q)\n", "Content-Type", "application/json")
	}
	if hasAuth {
		buf.WriteString("\tif auth := os.Getenv(\"SPECRUN_AUTH_HEADER\"); auth != \"\" {\n")
		buf.WriteString("\t\treq.Header.Set(\"Authorization\", auth)\n\t}\n")
	}

	buf.WriteString("\n\tresp := check.Do(t, nil, req)\n")

	expect := &test.Expect
	fmt.Fprintf(buf, "\tresp.AssertStatus(t, %d)\n", expect.Status)

	if expect.MaxDuration != 0 {
		fmt.Fprintf(buf, "\tresp.AssertMaxDuration(t, %s)\n", durationLit(expect.MaxDuration.Std()))
	}

	headerKeys := make([]string, 0, len(expect.Headers))
	for k := range expect.Headers {
		headerKeys = append(headerKeys, k)
	}
	sort.Strings(headerKeys)
	for _, k := range headerKeys {
		fmt.Fprintf(buf, "\tresp.AssertHeader(t, %q, %q)\n", k, expect.Headers[k])
	}

	if expect.Schema != nil {
		schema, err := json.Marshal(expect.Schema)
		if err != nil {
			return fmt.Errorf("marshal schema: %w", err)
		}
		fmt.Fprintf(buf, "\tresp.AssertSchema(t, %s)\n", rawString(string(schema)))
	}

	opts := optionsExpr(test)

	if expect.Body != nil {
		body, err := json.Marshal(expect.Body)
		if err != nil {
			return fmt.Errorf("marshal expected body: %w", err)
		}
		fmt.Fprintf(buf, "\tresp.AssertPartialJSON(t, %s%s)\n", rawString(string(body)), opts)
	}

	pathExprs := make([]string, 0, len(expect.JSONPath))
	for e := range expect.JSONPath {
		pathExprs = append(pathExprs, e)
	}
	sort.Strings(pathExprs)
	for _, e := range pathExprs {
		fmt.Fprintf(buf, "\tresp.AssertJSONPath(t, %q, %s%s)\n", e, goLit(expect.JSONPath[e]), opts)
	}

	if len(expect.Expr) > 0 {
		quoted := make([]string, 0, len(expect.Expr))
		for _, e := range expect.Expr {
			quoted = append(quoted, strconv.Quote(e))
		}
		fmt.Fprintf(buf, "\tresp.AssertExpr(t, %s)\n", strings.Join(quoted, ", "))
	}

	buf.WriteString("}\n\n")
	return nil
}

// requestURLExpr renders the Go expression producing the request URL.
// Absolute paths bypass the base URL helper.
func requestURLExpr(test *spec.Test, baseURLFunc string) (string, error) {
	target := test.Request.Path
	if len(test.Request.Query) > 0 {
		values := url.Values{}
		for k, v := range test.Request.Query {
			values.Set(k, v)
		}
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + values.Encode()
	}
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		return strconv.Quote(target), nil
	}
	return fmt.Sprintf("%s()+%q", baseURLFunc, target), nil
}

var methodConsts = map[string]string{
	http.MethodGet:     "http.MethodGet",
	http.MethodHead:    "http.MethodHead",
	http.MethodPost:    "http.MethodPost",
	http.MethodPut:     "http.MethodPut",
	http.MethodPatch:   "http.MethodPatch",
	http.MethodDelete:  "http.MethodDelete",
	http.MethodOptions: "http.MethodOptions",
}

func methodExpr(method string) string {
	upper := strings.ToUpper(method)
	if c, ok := methodConsts[upper]; ok {
		return c
	}
	return strconv.Quote(upper)
}

// optionsExpr renders the exclusion options shared by the body and
// JSONPath assertions, with a leading comma, or "" when there are none.
func optionsExpr(test *spec.Test) string {
	if len(test.Exclude) == 0 {
		return ""
	}
	quoted := make([]string, 0, len(test.Exclude))
	for _, p := range test.Exclude {
		quoted = append(quoted, strconv.Quote(p))
	}
	fn := "check.Exclude"
	if test.Wildcard {
		fn = "check.ExcludeGlob"
	}
	return fmt.Sprintf(", %s(%s)", fn, strings.Join(quoted, ", "))
}

// identFrom converts a free-form name to an exported Go identifier:
// "users api" becomes "UsersAPI", "list users" becomes "ListUsers".
func identFrom(name string) string {
	var b strings.Builder
	for _, word := range splitWords(name) {
		if upper, ok := initialisms[strings.ToLower(word)]; ok {
			b.WriteString(upper)
			continue
		}
		b.WriteString(titleCaser.String(strings.ToLower(word)))
	}
	ident := b.String()
	if ident == "" {
		return "X"
	}
	if ident[0] >= '0' && ident[0] <= '9' {
		ident = "X" + ident
	}
	return ident
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// snakeFrom derives the generated file's base name from a suite name.
func snakeFrom(name string) string {
	words := splitWords(strings.ToLower(name))
	if len(words) == 0 {
		return "suite"
	}
	return strings.Join(words, "_")
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// durationLit renders a duration as a readable Go expression.
func durationLit(d time.Duration) string {
	switch {
	case d%time.Second == 0:
		return fmt.Sprintf("%d * time.Second", d/time.Second)
	case d%time.Millisecond == 0:
		return fmt.Sprintf("%d * time.Millisecond", d/time.Millisecond)
	default:
		return fmt.Sprintf("time.Duration(%d)", int64(d))
	}
}

// rawString prefers a backquoted literal and falls back to a quoted one
// when the text itself contains a backquote.
func rawString(s string) string {
	if !strings.Contains(s, "`") {
		return "`" + s + "`"
	}
	return strconv.Quote(s)
}

// goLit renders a JSON-decoded value as a Go literal.
func goLit(v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(x)
	case string:
		return strconv.Quote(x)
	case int:
		return strconv.Itoa(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1e15 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'g', -1, 64)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%q: %s", k, goLit(x[k])))
		}
		return fmt.Sprintf("map[string]any{%s}", strings.Join(parts, ", "))
	case []any:
		parts := make([]string, 0, len(x))
		for _, item := range x {
			parts = append(parts, goLit(item))
		}
		return fmt.Sprintf("[]any{%s}", strings.Join(parts, ", "))
	default:
		return fmt.Sprintf("%#v", v)
	}
}
