package mapping

import (
	"errors"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// CustomFieldsKey is the payload member that holds custom field values.
const CustomFieldsKey = "CustomFields"

// DiagnosticKind names a field-local problem found while assembling a payload.
type DiagnosticKind string

const (
	// DiagInvalidDate: the date could not be parsed; the field was omitted.
	DiagInvalidDate DiagnosticKind = "invalid_date"
	// DiagPathError: the path expression is malformed or failed to evaluate.
	DiagPathError DiagnosticKind = "path_error"
	// DiagUnresolvable: the value does not fit the field type.
	DiagUnresolvable DiagnosticKind = "unresolvable"
	// DiagOptionMismatch: the value is not one of the field's select options.
	DiagOptionMismatch DiagnosticKind = "option_mismatch"
	// DiagInvalid: schema validation failed, e.g. a required field is missing.
	DiagInvalid DiagnosticKind = "invalid"
)

// Diagnostic reports a problem with one field. Omitted is set when the
// field was left out of the payload.
type Diagnostic struct {
	Field   string         `json:"field"`
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message,omitempty"`
	Omitted bool           `json:"omitted,omitempty"`
}

// Payload is an incident document ready to submit, plus what went wrong
// building it.
type Payload struct {
	Document    jsonval.Value
	Diagnostics []Diagnostic
}

// Omitted returns the short names of fields left out of the document.
func (p Payload) Omitted() []string {
	var out []string
	for _, d := range p.Diagnostics {
		if d.Omitted {
			out = append(out, d.Field)
		}
	}
	return out
}

// AssemblePayload builds the incident document from the enabled, unlocked
// fields. System fields are top-level members; custom fields go under
// CustomFieldsKey. Failed dates are omitted; every other failure keeps its
// best-effort value. Attachment fields are never included; see
// AttachmentPlan.
func (s *Session) AssemblePayload() Payload {
	var (
		system []jsonval.Member
		custom []jsonval.Member
		diags  []Diagnostic
	)
	for _, f := range s.fields {
		if !f.Enabled || f.Locked || f.FieldType == model.FieldTypeAttachments {
			continue
		}
		if f.State.ResolveError != "" {
			diags = append(diags, Diagnostic{Field: f.ShortName, Kind: DiagPathError, Message: f.State.ResolveError})
		}
		if f.FieldType == model.FieldTypeDate && (f.State.InvalidDate || f.Value.Str() == InvalidDate) {
			diags = append(diags, Diagnostic{Field: f.ShortName, Kind: DiagInvalidDate, Message: "date could not be parsed", Omitted: true})
			continue
		}
		if f.State.Unresolvable {
			diags = append(diags, Diagnostic{Field: f.ShortName, Kind: DiagUnresolvable, Message: "value does not fit " + string(f.FieldType)})
		}
		if f.State.OptionMismatch {
			diags = append(diags, Diagnostic{Field: f.ShortName, Kind: DiagOptionMismatch, Message: "value is not a select option"})
		}
		m := jsonval.Member{Key: f.ShortName, Value: f.Value}
		if f.Custom {
			custom = append(custom, m)
		} else {
			system = append(system, m)
		}
	}
	if len(custom) > 0 {
		system = append(system, jsonval.Member{Key: CustomFieldsKey, Value: jsonval.ObjectValue(custom...)})
	}

	var ve *model.ValidationError
	if err := model.ValidateFields(s.fields, s.schema, s.incidentType); errors.As(err, &ve) {
		for _, fe := range ve.Errors {
			if hasDiagnostic(diags, fe.Field) {
				continue
			}
			diags = append(diags, Diagnostic{Field: fe.Field, Kind: DiagInvalid, Message: fe.Message})
		}
	}
	return Payload{Document: jsonval.ObjectValue(system...), Diagnostics: diags}
}

func hasDiagnostic(diags []Diagnostic, field string) bool {
	for _, d := range diags {
		if d.Field == field {
			return true
		}
	}
	return false
}
