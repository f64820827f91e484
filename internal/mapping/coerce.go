// Package mapping turns a source document and a field schema into an
// incident payload: it coerces resolved values to field types, normalizes
// dates, tracks the per-field mapping state of a session and reconciles
// that state with refreshed schemas.
package mapping

import (
	"math"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// Coerced is the result of fitting a raw value to a field type. When
// Unresolvable is set, Value holds the best-effort value and Reason says
// why it does not fit.
type Coerced struct {
	Value        jsonval.Value
	Unresolvable bool
	Reason       string
}

func fits(v jsonval.Value) Coerced { return Coerced{Value: v} }

func unresolvable(v jsonval.Value, reason string) Coerced {
	return Coerced{Value: v, Unresolvable: true, Reason: reason}
}

// Coerce converts raw to the shape expected by fields of type t. It never
// fails: values that cannot be represented come back flagged Unresolvable.
// Date, attachment and undefined fields are not handled here.
func Coerce(raw jsonval.Value, t model.FieldType) Coerced {
	switch {
	case t.IsTextLike():
		return coerceText(raw, t)
	case t == model.FieldTypeSingleSelect:
		if raw.Kind() == jsonval.Number {
			return fits(raw)
		}
		return coerceText(raw, t)
	case t.IsListLike():
		return coerceList(raw, t)
	case t == model.FieldTypeNumber:
		return coerceNumber(raw)
	case t == model.FieldTypeBoolean:
		return coerceBool(raw)
	case t == model.FieldTypeGrid:
		return coerceGrid(raw)
	case t == model.FieldTypeInternal:
		return fits(raw)
	case t == model.FieldTypeDate:
		return unresolvable(raw, "date values are transformed, not coerced")
	case t == model.FieldTypeAttachments:
		return unresolvable(raw, "attachment fields cannot be mapped from JSON")
	}
	return unresolvable(raw, "unsupported field type "+strconv.Quote(string(t)))
}

func coerceText(raw jsonval.Value, t model.FieldType) Coerced {
	switch raw.Kind() {
	case jsonval.Null, jsonval.String:
		return fits(raw)
	case jsonval.Number, jsonval.Bool:
		return fits(jsonval.StringValue(raw.Text()))
	}
	return unresolvable(raw, raw.Kind().String()+" cannot be used as "+string(t))
}

func coerceList(raw jsonval.Value, t model.FieldType) Coerced {
	switch raw.Kind() {
	case jsonval.Null, jsonval.Array:
		return fits(raw)
	case jsonval.String, jsonval.Number, jsonval.Bool:
		return fits(jsonval.ArrayValue(raw))
	}
	return unresolvable(raw, "object cannot be used as "+string(t))
}

func coerceNumber(raw jsonval.Value) Coerced {
	switch raw.Kind() {
	case jsonval.Null, jsonval.Number:
		return fits(raw)
	case jsonval.String:
		s := strings.TrimSpace(raw.Str())
		n, err := strconv.ParseFloat(s, 64)
		if err == nil && !math.IsInf(n, 0) && !math.IsNaN(n) {
			return fits(jsonval.NumberValue(n))
		}
		return unresolvable(raw, strconv.Quote(raw.Str())+" is not a number")
	}
	return unresolvable(raw, raw.Kind().String()+" cannot be used as number")
}

func coerceBool(raw jsonval.Value) Coerced {
	switch raw.Kind() {
	case jsonval.Bool:
		return fits(raw)
	case jsonval.Number:
		return fits(jsonval.BoolValue(raw.Number() > 0))
	case jsonval.String:
		s := strings.TrimSpace(raw.Str())
		switch {
		case strings.EqualFold(s, "true"):
			return fits(jsonval.BoolValue(true))
		case strings.EqualFold(s, "false"):
			return fits(jsonval.BoolValue(false))
		}
		return unresolvable(raw, strconv.Quote(raw.Str())+" is not a boolean")
	}
	return unresolvable(raw, raw.Kind().String()+" cannot be used as boolean")
}

func coerceGrid(raw jsonval.Value) Coerced {
	switch raw.Kind() {
	case jsonval.Null, jsonval.Array:
		return fits(raw)
	case jsonval.Object:
		return fits(jsonval.ArrayValue(raw))
	}
	return unresolvable(raw, raw.Kind().String()+" cannot be used as grid")
}
