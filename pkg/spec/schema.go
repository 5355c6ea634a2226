package spec

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed suite.schema.json
var suiteSchemaJSON []byte

var (
	suiteSchema     *jsonschema.Schema
	suiteSchemaErr  error
	suiteSchemaOnce sync.Once
)

func compiledSuiteSchema() (*jsonschema.Schema, error) {
	suiteSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		if err := compiler.AddResource("suite.schema.json", bytes.NewReader(suiteSchemaJSON)); err != nil {
			suiteSchemaErr = fmt.Errorf("failed to add schema resource: %w", err)
			return
		}
		suiteSchema, suiteSchemaErr = compiler.Compile("suite.schema.json")
	})
	return suiteSchema, suiteSchemaErr
}

// ValidateDocument validates raw suite bytes against the suite schema
// before any struct decoding, so malformed documents get addressable
// errors ("tests[0].expect.status: expected integer...") instead of a
// single decode failure. The format is chosen from the file name.
func ValidateDocument(data []byte, path string) *ValidationResult {
	result := &ValidationResult{}

	var doc any
	if isYAMLPath(path) {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			result.AddError("", fmt.Sprintf("invalid YAML: %v", err))
			return result
		}
		// The schema validator wants plain JSON values.
		normalized, err := normalizeAny(doc)
		if err != nil {
			result.AddError("", err.Error())
			return result
		}
		doc = normalized
	} else {
		if err := json.Unmarshal(data, &doc); err != nil {
			result.AddError("", fmt.Sprintf("invalid JSON: %v", err))
			return result
		}
	}

	schema, err := compiledSuiteSchema()
	if err != nil {
		result.AddError("", err.Error())
		return result
	}

	if err := schema.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			collectSchemaErrors(verr, result)
		} else {
			result.AddError("", err.Error())
		}
	}
	return result
}

// collectSchemaErrors flattens a jsonschema error tree into addressed
// entries, keeping only the leaf causes.
func collectSchemaErrors(err *jsonschema.ValidationError, result *ValidationResult) {
	if len(err.Causes) == 0 {
		result.AddError(pointerToPath(err.InstanceLocation), err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, result)
	}
}

// pointerToPath converts a JSON Pointer ("/tests/0/expect") into the
// bracket-dot form used everywhere else ("tests[0].expect").
func pointerToPath(pointer string) string {
	if pointer == "" || pointer == "/" {
		return ""
	}
	var b strings.Builder
	for _, seg := range strings.Split(strings.TrimPrefix(pointer, "/"), "/") {
		seg = strings.ReplaceAll(seg, "~1", "/")
		seg = strings.ReplaceAll(seg, "~0", "~")
		if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteString(".")
		}
		b.WriteString(seg)
	}
	return b.String()
}
