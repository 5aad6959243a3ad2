package schema

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// FieldType constrains the JSON type of a declared field. The empty type
// only checks presence.
type FieldType string

const (
	TypeAny     FieldType = ""
	TypeString  FieldType = "string"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeObject  FieldType = "object"
	TypeArray   FieldType = "array"
)

// Field declares a required field of a source's events.
type Field struct {
	Name string    `json:"name" yaml:"name"`
	Type FieldType `json:"type,omitempty" yaml:"type,omitempty"`
}

// Schema is the contract a source declares for its events. Fields not
// declared here are preserved under the "extra" bucket rather than dropped,
// so producers can add fields before the schema catches up.
type Schema struct {
	Required []Field `json:"required,omitempty" yaml:"required,omitempty"`
}

// ValidationError reports the required fields a payload is missing or has
// the wrong type for. Fields keep declaration order.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "SchemaValidationError: " + strings.Join(e.Fields, ", ")
}

// extraKey is where Normalize collects undeclared payload fields. Declared
// fields may not use it, or the bucket would clobber a validated value.
const extraKey = "extra"

// Check verifies the schema itself is well formed.
func (s Schema) Check() error {
	seen := make(map[string]bool, len(s.Required))
	for _, f := range s.Required {
		if f.Name == "" {
			return fmt.Errorf("schema field with empty name")
		}
		if f.Name == extraKey {
			return fmt.Errorf("schema field name %q is reserved for undeclared fields", extraKey)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema field %q declared twice", f.Name)
		}
		seen[f.Name] = true
		switch f.Type {
		case TypeAny, TypeString, TypeNumber, TypeBoolean, TypeObject, TypeArray:
		default:
			return fmt.Errorf("schema field %q has unknown type %q", f.Name, f.Type)
		}
	}
	return nil
}

// Normalize validates data against the schema and returns the canonical
// payload: declared fields stay at the top level, undeclared fields move
// under "extra". Missing or mistyped required fields fail with a
// ValidationError naming every offending field.
func (s Schema) Normalize(data map[string]interface{}) (map[string]interface{}, error) {
	var bad []string
	declared := make(map[string]bool, len(s.Required))

	for _, f := range s.Required {
		declared[f.Name] = true
		v, ok := data[f.Name]
		if !ok {
			bad = append(bad, f.Name)
			continue
		}
		if !matches(f.Type, v) {
			bad = append(bad, f.Name)
		}
	}
	if len(bad) > 0 {
		return nil, &ValidationError{Fields: bad}
	}

	normalized := make(map[string]interface{}, len(data))
	var extra map[string]interface{}
	for k, v := range data {
		if declared[k] {
			normalized[k] = v
			continue
		}
		if extra == nil {
			extra = make(map[string]interface{})
		}
		extra[k] = v
	}
	if extra != nil {
		normalized[extraKey] = extra
	}
	return normalized, nil
}

// FieldNames returns the declared field names in sorted order.
func (s Schema) FieldNames() []string {
	names := make([]string, 0, len(s.Required))
	for _, f := range s.Required {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// ParseYAML reads a schema definition from YAML, as used by the CLI when
// registering sources from a file.
func ParseYAML(data []byte) (Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("parse schema: %w", err)
	}
	if err := s.Check(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

func matches(t FieldType, v interface{}) bool {
	switch t {
	case TypeAny:
		return true
	case TypeString:
		_, ok := v.(string)
		return ok
	case TypeNumber:
		switch v.(type) {
		case float64, float32, int, int32, int64, uint, uint32, uint64:
			return true
		}
		return false
	case TypeBoolean:
		_, ok := v.(bool)
		return ok
	case TypeObject:
		_, ok := v.(map[string]interface{})
		return ok
	case TypeArray:
		_, ok := v.([]interface{})
		return ok
	}
	return false
}
