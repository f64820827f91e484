package model

import (
	"time"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
)

// FieldType is the semantic kind of an XSOAR incident field.
type FieldType string

const (
	FieldTypeShortText    FieldType = "shortText"
	FieldTypeLongText     FieldType = "longText"
	FieldTypeSingleSelect FieldType = "singleSelect"
	FieldTypeMultiSelect  FieldType = "multiSelect"
	FieldTypeGrid         FieldType = "grid"
	FieldTypeInternal     FieldType = "internal"
	FieldTypeNumber       FieldType = "number"
	FieldTypeDate         FieldType = "date"
	FieldTypeBoolean      FieldType = "boolean"
	FieldTypeURL          FieldType = "url"
	FieldTypeHTML         FieldType = "html"
	FieldTypeRole         FieldType = "role"
	FieldTypeAttachments  FieldType = "attachments"
	FieldTypeMarkdown     FieldType = "markdown"
	FieldTypeTagsSelect   FieldType = "tagsSelect"
	FieldTypeUser         FieldType = "user"
	FieldTypeUndefined    FieldType = "undefined"
)

// AllFieldTypes lists every known field type.
var AllFieldTypes = []FieldType{
	FieldTypeShortText, FieldTypeLongText, FieldTypeSingleSelect, FieldTypeMultiSelect,
	FieldTypeGrid, FieldTypeInternal, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean,
	FieldTypeURL, FieldTypeHTML, FieldTypeRole, FieldTypeAttachments, FieldTypeMarkdown,
	FieldTypeTagsSelect, FieldTypeUser, FieldTypeUndefined,
}

// ParseFieldType maps a server-reported type name to a FieldType. Unknown
// names become FieldTypeUndefined.
func ParseFieldType(s string) FieldType {
	t := FieldType(s)
	if t.IsValid() {
		return t
	}
	return FieldTypeUndefined
}

// String returns the string representation of the field type.
func (t FieldType) String() string {
	return string(t)
}

// IsValid reports whether t is one of the known field types.
func (t FieldType) IsValid() bool {
	for _, k := range AllFieldTypes {
		if k == t {
			return true
		}
	}
	return false
}

// IsSupported reports whether fields of this type can be mapped at all.
func (t FieldType) IsSupported() bool {
	return t.IsValid() && t != FieldTypeUndefined
}

// IsJSONMappable reports whether a value for this type may come from a JSON
// document. Attachment fields are only ever filled from the attachment store.
func (t FieldType) IsJSONMappable() bool {
	return t.IsSupported() && t != FieldTypeAttachments
}

// IsTextLike reports whether the type holds a single free-form string.
func (t FieldType) IsTextLike() bool {
	switch t {
	case FieldTypeShortText, FieldTypeLongText, FieldTypeURL, FieldTypeHTML,
		FieldTypeMarkdown, FieldTypeUser:
		return true
	}
	return false
}

// IsListLike reports whether the type holds a list of strings.
func (t FieldType) IsListLike() bool {
	switch t {
	case FieldTypeMultiSelect, FieldTypeTagsSelect, FieldTypeRole:
		return true
	}
	return false
}

// sourceKinds is the table of JSON shapes each type accepts as a mapping
// source. It drives both selection in the tree and coercion.
var sourceKinds = map[FieldType][]jsonval.Kind{
	FieldTypeShortText:    {jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeLongText:     {jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeURL:          {jsonval.String, jsonval.Null},
	FieldTypeHTML:         {jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeMarkdown:     {jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeUser:         {jsonval.String, jsonval.Null},
	FieldTypeSingleSelect: {jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeMultiSelect:  {jsonval.Array, jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeTagsSelect:   {jsonval.Array, jsonval.String, jsonval.Number, jsonval.Null},
	FieldTypeRole:         {jsonval.Array, jsonval.String, jsonval.Null},
	FieldTypeGrid:         {jsonval.Array, jsonval.Object, jsonval.Null},
	FieldTypeInternal:     {jsonval.Object, jsonval.Array, jsonval.String, jsonval.Number, jsonval.Bool, jsonval.Null},
	FieldTypeNumber:       {jsonval.Number, jsonval.String, jsonval.Null},
	FieldTypeDate:         {jsonval.Number, jsonval.String},
	FieldTypeBoolean:      {jsonval.Bool, jsonval.String, jsonval.Number},
}

// AcceptedSources returns the JSON shapes t accepts as a mapping source.
// Attachment and undefined fields accept none.
func AcceptedSources(t FieldType) []jsonval.Kind {
	return sourceKinds[t]
}

// Accepts reports whether a JSON node of kind k may be mapped onto t.
func Accepts(t FieldType, k jsonval.Kind) bool {
	for _, s := range sourceKinds[t] {
		if s == k {
			return true
		}
	}
	return false
}

// DateLayout is the ISO-8601 layout used for every date value sent to XSOAR.
const DateLayout = "2006-01-02T15:04:05.000Z"

// DefaultValue is the empty value a newly added field of type t starts with.
func DefaultValue(t FieldType, now time.Time) jsonval.Value {
	switch {
	case t.IsTextLike(), t == FieldTypeSingleSelect:
		return jsonval.StringValue("")
	case t.IsListLike(), t == FieldTypeGrid:
		return jsonval.ArrayValue()
	case t == FieldTypeInternal:
		return jsonval.ObjectValue()
	case t == FieldTypeNumber:
		return jsonval.NumberValue(0)
	case t == FieldTypeDate:
		return jsonval.StringValue(now.UTC().Format(DateLayout))
	case t == FieldTypeBoolean:
		return jsonval.BoolValue(true)
	}
	return jsonval.NullValue()
}

// compatClass groups types whose values are interchangeable, so a schema
// change between them is a relabel rather than a change of shape.
func compatClass(t FieldType) string {
	switch {
	case t.IsTextLike():
		return "text"
	case t == FieldTypeMultiSelect, t == FieldTypeTagsSelect:
		return "list"
	}
	return string(t)
}

// Compatible reports whether values of type a remain legal for type b.
func Compatible(a, b FieldType) bool {
	return compatClass(a) == compatClass(b)
}
