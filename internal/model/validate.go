package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a named field.
type FieldError struct {
	Field   string
	Message string
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// ValidateName checks a config name used as the second half of a store key.
func ValidateName(name string) error {
	var ve ValidationError
	validateName(&ve, name)
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

func validateName(ve *ValidationError, name string) {
	n := strings.TrimSpace(name)
	switch {
	case n == "":
		ve.add("name", "is required")
	case n != name:
		ve.add("name", "must not have leading or trailing spaces")
	case len([]rune(n)) > 200:
		ve.add("name", "must be 200 characters or fewer")
	case strings.ContainsAny(n, ":/"):
		ve.add("name", "must not contain ':' or '/'")
	}
}

// ValidateMappingConfig checks a MappingConfig for constraint violations.
// It returns a *ValidationError if any rules fail, or nil if the config is valid.
func ValidateMappingConfig(c *MappingConfig) error {
	var ve ValidationError
	validateName(&ve, c.Name)

	seen := make(map[string]bool, len(c.Fields))
	for i, f := range c.Fields {
		label := f.ShortName
		if label == "" {
			label = fmt.Sprintf("fields[%d]", i)
			ve.add(label, "short name is required")
			continue
		}
		if seen[f.ShortName] {
			ve.add(label, "duplicate field")
		}
		seen[f.ShortName] = true

		if !f.FieldType.IsValid() {
			ve.add(label, "invalid field type %q", f.FieldType)
		}
		if !f.MappingMethod.IsValid() {
			ve.add(label, "invalid mapping method %q", f.MappingMethod)
		}
		// A locked field can never be enabled.
		if f.Locked && f.Enabled {
			ve.add(label, "locked field cannot be enabled")
		}
		if f.DateConfig != nil && !ValidPrecision(f.DateConfig.Precision) {
			ve.add(label, "invalid date precision %d", f.DateConfig.Precision)
		}
		if len(f.AttachmentRefs) > 0 && f.FieldType != FieldTypeAttachments && !f.Locked {
			ve.add(label, "attachments are only allowed on attachments fields")
		}
		for _, r := range f.AttachmentRefs {
			if r.AttachmentID == "" {
				ve.add(label, "attachment reference without id")
			}
		}
	}

	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateJSONConfig checks that a saved document has a usable name and
// holds well-formed JSON.
func ValidateJSONConfig(c *JSONConfig) error {
	var ve ValidationError
	validateName(&ve, c.Name)
	if len(c.Document) == 0 {
		ve.add("document", "is required")
	} else if !json.Valid(c.Document) {
		ve.add("document", "contains invalid JSON")
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}

// ValidateAttachment checks attachment metadata before it is stored.
func ValidateAttachment(a *Attachment) error {
	var ve ValidationError
	if strings.TrimSpace(a.ID) == "" {
		ve.add("id", "is required")
	}
	if strings.TrimSpace(a.Filename) == "" {
		ve.add("filename", "is required")
	}
	if a.Size < 0 {
		ve.add("size", "must not be negative, got %d", a.Size)
	}
	if ve.HasErrors() {
		return &ve
	}
	return nil
}
