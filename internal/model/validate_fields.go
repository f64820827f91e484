package model

import (
	"fmt"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
)

// ValidateFields checks the enabled fields of a working set against the
// schema: every required field of the incident type must be present and
// enabled, and every enabled value must have the shape its type expects.
// Returns a *ValidationError on failure, nil on success.
func ValidateFields(fields []MappedField, schema []FieldSchema, incidentType string) error {
	var ve ValidationError

	enabled := make(map[string]*MappedField, len(fields))
	for i := range fields {
		f := &fields[i]
		if f.Enabled && !f.Locked {
			enabled[f.ShortName] = f
		}
	}

	for _, s := range schema {
		if !s.Required || !s.AppliesTo(incidentType) || !s.Type.IsJSONMappable() {
			continue
		}
		if _, ok := enabled[s.ShortName]; !ok {
			ve.add(s.ShortName, "is required")
		}
	}

	defs := IndexSchema(schema)
	for _, f := range fields {
		if !f.Enabled || f.Locked || f.FieldType == FieldTypeAttachments {
			continue
		}
		if err := validateFieldValue(f.FieldType, f.Value); err != nil {
			ve.add(f.ShortName, "%s", err.Error())
			continue
		}
		if d, ok := defs[f.ShortName]; ok {
			if err := validateOptions(d, f.Value); err != nil {
				ve.add(f.ShortName, "%s", err.Error())
			}
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateFieldValue(t FieldType, v jsonval.Value) error {
	switch {
	case v.IsNull():
		// Null clears the field on the server.
		return nil
	case t.IsTextLike():
		if v.Kind() != jsonval.String {
			return fmt.Errorf("must be a string")
		}
	case t == FieldTypeSingleSelect:
		if v.Kind() != jsonval.String && v.Kind() != jsonval.Number {
			return fmt.Errorf("must be a string or number")
		}
	case t.IsListLike():
		if v.Kind() != jsonval.Array {
			return fmt.Errorf("must be an array")
		}
	case t == FieldTypeGrid:
		if v.Kind() != jsonval.Array {
			return fmt.Errorf("must be an array of rows")
		}
		for _, row := range v.Elems() {
			if row.Kind() != jsonval.Object {
				return fmt.Errorf("must be an array of rows")
			}
		}
	case t == FieldTypeNumber:
		if v.Kind() != jsonval.Number {
			return fmt.Errorf("must be a number")
		}
	case t == FieldTypeBoolean:
		if v.Kind() != jsonval.Bool {
			return fmt.Errorf("must be a boolean")
		}
	case t == FieldTypeDate:
		if v.Kind() != jsonval.String {
			return fmt.Errorf("must be an ISO-8601 timestamp string")
		}
	case t == FieldTypeInternal:
		// Any valid JSON value is accepted.
	default:
		return fmt.Errorf("unsupported field type %q", t)
	}
	return nil
}

func validateOptions(d FieldSchema, v jsonval.Value) error {
	if len(d.SelectOptions) == 0 {
		return nil
	}
	switch d.Type {
	case FieldTypeSingleSelect:
		if v.Kind() == jsonval.String && v.Str() != "" && !d.HasOption(v.Str()) {
			return fmt.Errorf("must be one of %v", d.SelectOptions)
		}
	case FieldTypeMultiSelect:
		for _, e := range v.Elems() {
			if e.Kind() == jsonval.String && !d.HasOption(e.Str()) {
				return fmt.Errorf("array element %q must be one of %v", e.Str(), d.SelectOptions)
			}
		}
	}
	return nil
}
