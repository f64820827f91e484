package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
)

// validConfig returns a mapping config that passes all validation rules.
func validConfig() MappingConfig {
	return MappingConfig{
		Name:         "phishing",
		IncidentType: "Phishing",
		Fields: []MappedField{
			{ShortName: "name", FieldType: FieldTypeShortText, MappingMethod: MappingStatic, Value: jsonval.StringValue("x"), Enabled: true},
			{ShortName: "occurred", FieldType: FieldTypeDate, MappingMethod: MappingPath, Path: "ts", Enabled: true,
				DateConfig: &DateConfig{AutoParse: true, Precision: PrecisionSeconds}},
		},
	}
}

// fieldErrors extracts the []FieldError from a *ValidationError, failing the test if err is not one.
func fieldErrors(t *testing.T, err error) []FieldError {
	t.Helper()
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	return ve.Errors
}

// hasFieldError reports whether the error list contains an error for the given field.
func hasFieldError(errs []FieldError, field string) bool {
	for _, fe := range errs {
		if fe.Field == field {
			return true
		}
	}
	return false
}

func TestValidateMappingConfig_Valid(t *testing.T) {
	c := validConfig()
	if err := ValidateMappingConfig(&c); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateMappingConfig_NameRules(t *testing.T) {
	for _, name := range []string{"", "   ", " padded", "a:b", "a/b", strings.Repeat("x", 201)} {
		c := validConfig()
		c.Name = name
		errs := fieldErrors(t, ValidateMappingConfig(&c))
		if !hasFieldError(errs, "name") {
			t.Errorf("name %q: expected error on 'name'", name)
		}
	}
}

func TestValidateMappingConfig_DuplicateField(t *testing.T) {
	c := validConfig()
	c.Fields = append(c.Fields, c.Fields[0])
	errs := fieldErrors(t, ValidateMappingConfig(&c))
	if !hasFieldError(errs, "name") {
		t.Error("expected duplicate error on 'name'")
	}
}

func TestValidateMappingConfig_LockedEnabled(t *testing.T) {
	c := validConfig()
	c.Fields[0].Locked = true
	errs := fieldErrors(t, ValidateMappingConfig(&c))
	if !hasFieldError(errs, "name") {
		t.Error("expected error for locked+enabled field")
	}
}

func TestValidateMappingConfig_BadPrecision(t *testing.T) {
	c := validConfig()
	c.Fields[1].DateConfig.Precision = 10
	errs := fieldErrors(t, ValidateMappingConfig(&c))
	if !hasFieldError(errs, "occurred") {
		t.Error("expected error on 'occurred'")
	}
}

func TestValidateMappingConfig_AttachmentsOnWrongType(t *testing.T) {
	c := validConfig()
	c.Fields[0].AttachmentRefs = []AttachmentRef{{AttachmentID: "att-1"}}
	errs := fieldErrors(t, ValidateMappingConfig(&c))
	if !hasFieldError(errs, "name") {
		t.Error("expected error on 'name'")
	}
}

func TestValidateMappingConfig_LockedFieldMayKeepAttachments(t *testing.T) {
	c := validConfig()
	c.Fields = append(c.Fields, MappedField{
		ShortName:      "evidence",
		FieldType:      FieldTypeUndefined,
		MappingMethod:  MappingStatic,
		Locked:         true,
		LockedReason:   LockedRemoved,
		AttachmentRefs: []AttachmentRef{{AttachmentID: "att-1"}},
	})
	if err := ValidateMappingConfig(&c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateMappingConfig_InvalidEnums(t *testing.T) {
	c := validConfig()
	c.Fields[0].FieldType = "bogus"
	c.Fields[1].MappingMethod = "magic"
	errs := fieldErrors(t, ValidateMappingConfig(&c))
	if !hasFieldError(errs, "name") || !hasFieldError(errs, "occurred") {
		t.Errorf("expected errors on both fields, got %v", errs)
	}
}

func TestValidateJSONConfig(t *testing.T) {
	ok := JSONConfig{Name: "alert", Document: json.RawMessage(`{"a":1}`)}
	if err := ValidateJSONConfig(&ok); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	bad := JSONConfig{Name: "alert", Document: json.RawMessage(`{"a":`)}
	if !hasFieldError(fieldErrors(t, ValidateJSONConfig(&bad)), "document") {
		t.Error("expected error on 'document'")
	}
	empty := JSONConfig{Name: "alert"}
	if !hasFieldError(fieldErrors(t, ValidateJSONConfig(&empty)), "document") {
		t.Error("expected error on missing document")
	}
}

func TestValidateAttachment(t *testing.T) {
	a := Attachment{ID: "att-1", Filename: "report.pdf", Size: 10}
	if err := ValidateAttachment(&a); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
	a = Attachment{Size: -1}
	errs := fieldErrors(t, ValidateAttachment(&a))
	for _, f := range []string{"id", "filename", "size"} {
		if !hasFieldError(errs, f) {
			t.Errorf("expected error on %q", f)
		}
	}
}

func TestValidationError_Format(t *testing.T) {
	ve := &ValidationError{Errors: []FieldError{
		{Field: "name", Message: "is required"},
		{Field: "severity", Message: "must be a number"},
	}}
	want := "validation failed: name: is required; severity: must be a number"
	if got := ve.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
