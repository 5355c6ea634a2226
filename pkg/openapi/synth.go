package openapi

import (
	"sort"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/specrun/specrun/pkg/match"
)

type synthMode int

const (
	// modeRequest synthesizes request bodies: readOnly properties are
	// dropped, nothing is excluded.
	modeRequest synthMode = iota
	// modeResponse synthesizes expected response bodies: writeOnly
	// properties are dropped and provider-generated fields are recorded
	// as exclusion paths.
	modeResponse
)

// maxDepth bounds schema recursion. Component schemas can reference
// each other cyclically; past this depth values degrade to nil.
const maxDepth = 6

// synthesizer builds example values from OpenAPI schemas. All output
// is deterministic: properties are visited in sorted order and
// fallback values are fixed, so importing the same document twice
// yields identical suites.
type synthesizer struct {
	mode     synthMode
	excluded []string
}

// value synthesizes an example for a schema. path is the value's
// address in the synthesized document, used for exclusion entries.
func (s *synthesizer) value(ref *openapi3.SchemaRef, path string, depth int) any {
	if ref == nil || ref.Value == nil || depth > maxDepth {
		return nil
	}
	schema := ref.Value

	if schema.Example != nil {
		return schema.Example
	}
	if schema.Default != nil {
		return schema.Default
	}
	if len(schema.Enum) > 0 {
		return schema.Enum[0]
	}

	if len(schema.AllOf) > 0 {
		merged := make(map[string]any)
		for _, sub := range schema.AllOf {
			if m, ok := s.value(sub, path, depth+1).(map[string]any); ok {
				for k, v := range m {
					merged[k] = v
				}
			}
		}
		return merged
	}
	if len(schema.OneOf) > 0 {
		return s.value(schema.OneOf[0], path, depth+1)
	}
	if len(schema.AnyOf) > 0 {
		return s.value(schema.AnyOf[0], path, depth+1)
	}

	switch schemaType(schema) {
	case "object":
		return s.object(schema, path, depth)
	case "array":
		return s.array(schema, path, depth)
	case "string":
		return fallbackString(schema)
	case "integer":
		return 1
	case "number":
		return 1.0
	case "boolean":
		return true
	default:
		return nil
	}
}

func (s *synthesizer) object(schema *openapi3.Schema, path string, depth int) map[string]any {
	result := make(map[string]any)

	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := schema.Properties[name]
		if prop == nil || prop.Value == nil {
			continue
		}
		if s.mode == modeRequest && prop.Value.ReadOnly {
			continue
		}
		if s.mode == modeResponse && prop.Value.WriteOnly {
			continue
		}

		childPath := match.JoinKey(path, name)
		if s.mode == modeResponse && volatile(prop.Value) {
			s.excluded = append(s.excluded, childPath)
			// The whole subtree is excluded with it; synthesize the
			// value for shape only, without nested exclusion entries.
			sub := &synthesizer{mode: s.mode}
			result[name] = sub.value(prop, childPath, depth+1)
			continue
		}
		result[name] = s.value(prop, childPath, depth+1)
	}
	return result
}

func (s *synthesizer) array(schema *openapi3.Schema, path string, depth int) []any {
	if schema.Items == nil || schema.Items.Value == nil {
		return []any{}
	}

	// One element is enough: sequence matching tolerates longer actuals.
	count := 1
	if schema.MinItems > 0 && uint64(count) < schema.MinItems {
		count = int(schema.MinItems)
	}
	if schema.MaxItems != nil && uint64(count) > *schema.MaxItems {
		count = int(*schema.MaxItems)
	}

	result := make([]any, count)
	for i := range result {
		result[i] = s.value(schema.Items, match.JoinIndex(path, i), depth+1)
	}
	return result
}

// volatile reports whether a response field carries a provider-generated
// value a test should not compare: server-assigned (readOnly) or a
// timestamp (format: date-time).
func volatile(schema *openapi3.Schema) bool {
	return schema.ReadOnly || schema.Format == "date-time"
}

// schemaType returns the schema's primary type, inferring object and
// array from the shape when the document omits an explicit type.
func schemaType(schema *openapi3.Schema) string {
	if types := schema.Type.Slice(); len(types) > 0 {
		return types[0]
	}
	if len(schema.Properties) > 0 {
		return "object"
	}
	if schema.Items != nil {
		return "array"
	}
	return "string"
}

// fallbackString produces a fixed format-appropriate sample value.
func fallbackString(schema *openapi3.Schema) string {
	switch schema.Format {
	case "email":
		return "user@example.com"
	case "uri", "url":
		return "https://example.com"
	case "uuid":
		return "123e4567-e89b-12d3-a456-426614174000"
	case "date":
		return "2025-01-02"
	case "date-time":
		return "2025-01-02T15:04:05Z"
	case "hostname":
		return "example.com"
	case "ipv4":
		return "192.168.1.1"
	case "ipv6":
		return "::1"
	default:
		return "string"
	}
}
