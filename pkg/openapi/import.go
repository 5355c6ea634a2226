// Package openapi turns OpenAPI 3 documents into starter suites: one
// suite per tag, one test per operation, with request and response
// examples synthesized from the document's schemas.
package openapi

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/specrun/specrun/pkg/spec"
)

// DefaultTag groups operations that carry no tags.
const DefaultTag = "default"

// Options adjust an import.
type Options struct {
	// BaseURL overrides the document's first server URL.
	BaseURL string
}

// methodOrder fixes the order operations are visited within a path, so
// repeated imports of the same document produce identical suites.
var methodOrder = []string{
	http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch,
	http.MethodDelete, http.MethodHead, http.MethodOptions,
}

// Import loads and validates an OpenAPI 3 document from a file and
// converts it into suites.
func Import(path string, opts Options) ([]*spec.Suite, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document %s: %w", path, err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document %s: %w", path, err)
	}
	return FromDocument(doc, opts)
}

// ImportData converts an already-read OpenAPI 3 document.
func ImportData(data []byte, opts Options) ([]*spec.Suite, error) {
	loader := openapi3.NewLoader()
	loader.IsExternalRefsAllowed = true

	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load OpenAPI document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("invalid OpenAPI document: %w", err)
	}
	return FromDocument(doc, opts)
}

// FromDocument converts a loaded document into suites: one per first
// operation tag (operations without tags land in DefaultTag), tests in
// path order, suites sorted by name.
func FromDocument(doc *openapi3.T, opts Options) ([]*spec.Suite, error) {
	if doc.Paths == nil || len(doc.Paths.Map()) == 0 {
		return nil, fmt.Errorf("OpenAPI document has no paths")
	}

	baseURL := opts.BaseURL
	if baseURL == "" && len(doc.Servers) > 0 {
		baseURL = doc.Servers[0].URL
	}

	version := ""
	if doc.Info != nil {
		version = doc.Info.Version
	}

	pathItems := doc.Paths.Map()
	pathKeys := make([]string, 0, len(pathItems))
	for p := range pathItems {
		pathKeys = append(pathKeys, p)
	}
	sort.Strings(pathKeys)

	byTag := make(map[string]*spec.Suite)
	for _, p := range pathKeys {
		item := pathItems[p]
		if item == nil {
			continue
		}
		for _, method := range methodOrder {
			op := item.GetOperation(method)
			if op == nil {
				continue
			}

			test := buildTest(method, p, item, op)

			tag := DefaultTag
			if len(op.Tags) > 0 {
				tag = op.Tags[0]
			}
			suite, ok := byTag[tag]
			if !ok {
				suite = &spec.Suite{
					Name:    tag,
					Version: version,
					BaseURL: baseURL,
				}
				byTag[tag] = suite
			}
			suite.Tests = append(suite.Tests, test)
		}
	}

	suites := make([]*spec.Suite, 0, len(byTag))
	for _, suite := range byTag {
		suites = append(suites, suite)
	}
	sort.Slice(suites, func(i, j int) bool { return suites[i].Name < suites[j].Name })
	return suites, nil
}

// buildTest converts one operation into a test: path parameters filled
// from examples, required query parameters included, bodies synthesized
// from the JSON schemas, and volatile response fields excluded.
func buildTest(method, path string, item *openapi3.PathItem, op *openapi3.Operation) spec.Test {
	params := mergeParams(item.Parameters, op.Parameters)

	test := spec.Test{
		Name:        testName(method, path, op),
		Description: strings.TrimSpace(op.Summary),
		Request: spec.Request{
			Method: method,
			Path:   fillPathParams(path, params),
			Query:  queryParams(params),
		},
		Expect: spec.Expect{},
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		if mt := jsonContent(op.RequestBody.Value.Content); mt != nil {
			test.Request.Body = mediaExample(mt, modeRequest, nil)
		}
	}

	status, response := successResponse(op)
	test.Expect.Status = status
	if response != nil && response.Value != nil {
		if mt := jsonContent(response.Value.Content); mt != nil {
			var excluded []string
			test.Expect.Body = mediaExample(mt, modeResponse, &excluded)
			test.Exclude = excluded
		}
	}

	return test
}

func testName(method, path string, op *openapi3.Operation) string {
	if op.OperationID != "" {
		return op.OperationID
	}
	return strings.ToLower(method) + " " + path
}

// mergeParams combines path-level and operation-level parameters; the
// operation wins when both declare the same name and location.
func mergeParams(shared, own openapi3.Parameters) []*openapi3.Parameter {
	type key struct{ name, in string }
	index := make(map[key]int)
	var merged []*openapi3.Parameter

	for _, refs := range [][]*openapi3.ParameterRef{shared, own} {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			p := ref.Value
			k := key{p.Name, p.In}
			if i, ok := index[k]; ok {
				merged[i] = p
				continue
			}
			index[k] = len(merged)
			merged = append(merged, p)
		}
	}
	return merged
}

// fillPathParams substitutes {name} template segments with example
// values so the starter test addresses a concrete resource.
func fillPathParams(path string, params []*openapi3.Parameter) string {
	for _, p := range params {
		if p.In != openapi3.ParameterInPath {
			continue
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", paramValue(p))
	}
	return path
}

// queryParams returns the required query parameters with example
// values. Optional parameters are left for the user to opt into.
func queryParams(params []*openapi3.Parameter) map[string]string {
	var query map[string]string
	for _, p := range params {
		if p.In != openapi3.ParameterInQuery || !p.Required {
			continue
		}
		if query == nil {
			query = make(map[string]string)
		}
		query[p.Name] = paramValue(p)
	}
	return query
}

// paramValue renders a parameter's example as a string, synthesizing
// one from its schema when the document gives none.
func paramValue(p *openapi3.Parameter) string {
	if p.Example != nil {
		return fmt.Sprintf("%v", p.Example)
	}
	v := (&synthesizer{mode: modeRequest}).value(p.Schema, "", 0)
	if v == nil {
		return "1"
	}
	return fmt.Sprintf("%v", v)
}

// successResponse picks the operation's lowest 2xx response. Operations
// without one still get a 200 expectation so the generated test stays
// runnable.
func successResponse(op *openapi3.Operation) (int, *openapi3.ResponseRef) {
	if op.Responses == nil {
		return http.StatusOK, nil
	}

	responses := op.Responses.Map()
	best := 0
	var bestRef *openapi3.ResponseRef
	for code, ref := range responses {
		var status int
		if _, err := fmt.Sscanf(code, "%d", &status); err != nil {
			continue
		}
		if status < 200 || status > 299 {
			continue
		}
		if best == 0 || status < best {
			best = status
			bestRef = ref
		}
	}
	if best == 0 {
		return http.StatusOK, nil
	}
	return best, bestRef
}

// jsonContent picks the JSON media type from a content map, preferring
// the exact application/json entry.
func jsonContent(content openapi3.Content) *openapi3.MediaType {
	if mt, ok := content["application/json"]; ok {
		return mt
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.Contains(strings.ToLower(k), "json") {
			return content[k]
		}
	}
	return nil
}

// mediaExample produces an example value for a media type: the declared
// example wins, then the first named example, then a value synthesized
// from the schema. In response mode the synthesizer records exclusion
// paths for provider-generated fields into excluded.
func mediaExample(mt *openapi3.MediaType, mode synthMode, excluded *[]string) any {
	if mt.Example != nil {
		return mt.Example
	}
	if len(mt.Examples) > 0 {
		names := make([]string, 0, len(mt.Examples))
		for name := range mt.Examples {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			ref := mt.Examples[name]
			if ref != nil && ref.Value != nil && ref.Value.Value != nil {
				return ref.Value.Value
			}
		}
	}

	s := &synthesizer{mode: mode}
	v := s.value(mt.Schema, "", 0)
	if excluded != nil {
		*excluded = s.excluded
	}
	return v
}
