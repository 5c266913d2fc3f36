// Package validation checks the shape of JSON request bodies before they are
// decoded. Presence of business fields is checked by the services so their
// error messages stay specific.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Schema names.
const (
	Merge     = "merge"
	ApplySeal = "apply-seal"
	Rename    = "rename"
	Compare   = "compare"
	SealEdit  = "seal-update"
)

var numberish = map[string]any{
	"oneOf": []any{
		map[string]any{"type": "number"},
		map[string]any{"type": "string", "pattern": `^-?[0-9]+(\.[0-9]+)?$`},
	},
}

var schemas = map[string]map[string]any{
	Merge: {
		"type": "object",
		"properties": map[string]any{
			"mainFileId":    map[string]any{"type": "string"},
			"attachmentIds": map[string]any{"type": []any{"array", "null"}, "items": map[string]any{"type": "string"}},
		},
	},
	ApplySeal: {
		"type": "object",
		"properties": map[string]any{
			"fileId": map[string]any{"type": "string"},
			"sealConfig": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"sealId": map[string]any{"type": []any{"string", "integer"}},
					"page":   numberish,
					"x":      numberish,
					"y":      numberish,
				},
			},
			"contractInfo": map[string]any{
				"type": []any{"object", "null"},
				"properties": map[string]any{
					"contractNumber": map[string]any{"type": "string"},
					"counterparty":   map[string]any{"type": "string"},
					"contractName":   map[string]any{"type": "string"},
				},
			},
		},
	},
	Rename: {
		"type": "object",
		"properties": map[string]any{
			"filePath":       map[string]any{"type": "string"},
			"contractNumber": map[string]any{"type": "string"},
			"counterparty":   map[string]any{"type": "string"},
			"contractName":   map[string]any{"type": "string"},
		},
	},
	Compare: {
		"type": "object",
		"properties": map[string]any{
			"originalFileId": map[string]any{"type": "string"},
			"modifiedFileId": map[string]any{"type": "string"},
		},
	},
	SealEdit: {
		"type": "object",
		"properties": map[string]any{
			"name":   map[string]any{"type": "string"},
			"type":   map[string]any{"type": "string"},
			"status": map[string]any{"type": "string"},
		},
	},
}

// Validator holds the compiled request schemas.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

func New() (*Validator, error) {
	v := &Validator{compiled: make(map[string]*jsonschema.Schema, len(schemas))}
	for name, schema := range schemas {
		b, err := json.Marshal(schema)
		if err != nil {
			return nil, fmt.Errorf("marshal schema %s: %w", name, err)
		}
		compiler := jsonschema.NewCompiler()
		url := name + ".json"
		if err := compiler.AddResource(url, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
		s, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.compiled[name] = s
	}
	return v, nil
}

// Validate reports whether data is JSON matching the named schema.
func (v *Validator) Validate(name string, data []byte) error {
	s, ok := v.compiled[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return fmt.Errorf("request does not match schema: %w", err)
	}
	return nil
}
