// Package jsonschema implements [reconcile.Validator] on top of
// github.com/kaptinlin/jsonschema. The validator either derives a JSON
// Schema from a [reconcile.Schema] or compiles a user-supplied document.
package jsonschema

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fwojciec/reconcile"
	"github.com/kaptinlin/jsonschema"
)

// Interface compliance check.
var _ reconcile.Validator = (*Validator)(nil)

// ErrInvalid is returned (wrapped) when a payload does not satisfy the schema.
var ErrInvalid = errors.New("schema validation failed")

// Validator checks authoritative payloads against a compiled JSON Schema.
type Validator struct {
	schema *jsonschema.Schema
}

// New derives a JSON Schema from s: the collection is a non-empty array of
// objects that carry string name and content members. Other members are
// allowed.
func New(s reconcile.Schema) (*Validator, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	doc, err := json.Marshal(Document(s))
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	return Compile(doc)
}

// NewFromFile compiles the JSON Schema document at path.
func NewFromFile(path string) (*Validator, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	return Compile(data)
}

// Compile compiles a JSON Schema document.
func Compile(doc []byte) (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.AssertFormat = true
	schema, err := compiler.Compile(doc)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

// Validate implements [reconcile.Validator].
func (v *Validator) Validate(payload []byte) error {
	result := v.schema.ValidateJSON(payload)
	if result.IsValid() {
		return nil
	}
	keys := make([]string, 0, len(result.Errors))
	for k := range result.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %v", k, result.Errors[k]))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Document returns the JSON Schema derived from s as a generic value.
func Document(s reconcile.Schema) map[string]any {
	item := map[string]any{
		"type":     "object",
		"required": []any{s.NameKey, s.ContentKey},
		"properties": map[string]any{
			s.NameKey:    map[string]any{"type": "string"},
			s.ContentKey: map[string]any{"type": "string"},
		},
	}
	if s.IDKey != "" {
		item["properties"].(map[string]any)[s.IDKey] = map[string]any{"type": "string"}
	}
	node := map[string]any{
		"type":     "array",
		"minItems": 1,
		"items":    item,
	}
	segs := strings.Split(s.CollectionPath, ".")
	for i := len(segs) - 1; i >= 0; i-- {
		node = map[string]any{
			"type":       "object",
			"required":   []any{segs[i]},
			"properties": map[string]any{segs[i]: node},
		}
	}
	node["$schema"] = "https://json-schema.org/draft/2020-12/schema"
	return node
}
