package openapi

import (
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaOf(typ string) *openapi3.Schema {
	types := openapi3.Types{typ}
	return &openapi3.Schema{Type: &types}
}

func ref(s *openapi3.Schema) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: s}
}

func TestSynthesizeScalars(t *testing.T) {
	s := &synthesizer{mode: modeRequest}

	assert.Equal(t, 1, s.value(ref(schemaOf("integer")), "", 0))
	assert.Equal(t, 1.0, s.value(ref(schemaOf("number")), "", 0))
	assert.Equal(t, true, s.value(ref(schemaOf("boolean")), "", 0))
	assert.Equal(t, "string", s.value(ref(schemaOf("string")), "", 0))
	assert.Nil(t, s.value(nil, "", 0))
}

func TestSynthesizeFormats(t *testing.T) {
	s := &synthesizer{mode: modeRequest}

	email := schemaOf("string")
	email.Format = "email"
	assert.Equal(t, "user@example.com", s.value(ref(email), "", 0))

	id := schemaOf("string")
	id.Format = "uuid"
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", s.value(ref(id), "", 0))

	ts := schemaOf("string")
	ts.Format = "date-time"
	assert.Equal(t, "2025-01-02T15:04:05Z", s.value(ref(ts), "", 0))
}

func TestSynthesizeExamplePrecedence(t *testing.T) {
	s := &synthesizer{mode: modeRequest}

	schema := schemaOf("string")
	schema.Example = "from-example"
	schema.Default = "from-default"
	schema.Enum = []any{"from-enum"}
	assert.Equal(t, "from-example", s.value(ref(schema), "", 0))

	schema.Example = nil
	assert.Equal(t, "from-default", s.value(ref(schema), "", 0))

	schema.Default = nil
	assert.Equal(t, "from-enum", s.value(ref(schema), "", 0))
}

func TestSynthesizeAllOf(t *testing.T) {
	base := schemaOf("object")
	base.Properties = openapi3.Schemas{"name": ref(schemaOf("string"))}
	extra := schemaOf("object")
	extra.Properties = openapi3.Schemas{"count": ref(schemaOf("integer"))}

	combined := &openapi3.Schema{AllOf: openapi3.SchemaRefs{ref(base), ref(extra)}}

	s := &synthesizer{mode: modeRequest}
	assert.Equal(t, map[string]any{"name": "string", "count": 1}, s.value(ref(combined), "", 0))
}

func TestSynthesizeMinItems(t *testing.T) {
	arr := schemaOf("array")
	arr.Items = ref(schemaOf("integer"))
	arr.MinItems = 3

	s := &synthesizer{mode: modeRequest}
	assert.Equal(t, []any{1, 1, 1}, s.value(ref(arr), "", 0))
}

func TestSynthesizeDepthBound(t *testing.T) {
	// A schema that references itself would recurse forever without the
	// depth bound.
	node := schemaOf("object")
	node.Properties = openapi3.Schemas{}
	node.Properties["child"] = ref(node)

	s := &synthesizer{mode: modeRequest}
	v := s.value(ref(node), "", 0)

	depth := 0
	for v != nil {
		m, ok := v.(map[string]any)
		require.True(t, ok)
		v = m["child"]
		depth++
	}
	assert.Equal(t, maxDepth+1, depth)
}

func TestSynthesizeResponseExclusions(t *testing.T) {
	audit := schemaOf("object")
	audit.ReadOnly = true
	auditAt := schemaOf("string")
	auditAt.Format = "date-time"
	audit.Properties = openapi3.Schemas{"at": ref(auditAt)}

	updatedAt := schemaOf("string")
	updatedAt.Format = "date-time"
	meta := schemaOf("object")
	meta.Properties = openapi3.Schemas{"updatedAt": ref(updatedAt)}

	id := schemaOf("integer")
	id.ReadOnly = true

	root := schemaOf("object")
	root.Properties = openapi3.Schemas{
		"audit": ref(audit),
		"id":    ref(id),
		"meta":  ref(meta),
		"name":  ref(schemaOf("string")),
	}

	s := &synthesizer{mode: modeResponse}
	v := s.value(ref(root), "", 0)

	assert.Equal(t, map[string]any{
		"audit": map[string]any{"at": "2025-01-02T15:04:05Z"},
		"id":    1,
		"meta":  map[string]any{"updatedAt": "2025-01-02T15:04:05Z"},
		"name":  "string",
	}, v)

	// audit is excluded as a whole, so audit.at gets no entry of its own.
	assert.Equal(t, []string{"audit", "id", "meta.updatedAt"}, s.excluded)
}

func TestSynthesizeModeFiltering(t *testing.T) {
	id := schemaOf("integer")
	id.ReadOnly = true
	secret := schemaOf("string")
	secret.WriteOnly = true

	root := schemaOf("object")
	root.Properties = openapi3.Schemas{
		"id":     ref(id),
		"name":   ref(schemaOf("string")),
		"secret": ref(secret),
	}

	req := &synthesizer{mode: modeRequest}
	assert.Equal(t, map[string]any{"name": "string", "secret": "string"},
		req.value(ref(root), "", 0), "readOnly dropped from requests")

	res := &synthesizer{mode: modeResponse}
	assert.Equal(t, map[string]any{"id": 1, "name": "string"},
		res.value(ref(root), "", 0), "writeOnly dropped from responses")
}

func TestSchemaTypeInference(t *testing.T) {
	obj := &openapi3.Schema{Properties: openapi3.Schemas{"a": ref(schemaOf("string"))}}
	assert.Equal(t, "object", schemaType(obj))

	arr := &openapi3.Schema{Items: ref(schemaOf("string"))}
	assert.Equal(t, "array", schemaType(arr))

	assert.Equal(t, "string", schemaType(&openapi3.Schema{}))
}
