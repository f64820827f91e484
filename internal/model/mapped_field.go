package model

import "github.com/alfredjeanlab/feeder/internal/jsonval"

// MappingMethod selects where a mapped field takes its value from.
type MappingMethod string

const (
	MappingStatic MappingMethod = "static"
	MappingPath   MappingMethod = "path"
)

// IsValid checks whether the mapping method is a known value.
func (m MappingMethod) IsValid() bool {
	return m == MappingStatic || m == MappingPath
}

// Reasons recorded on a locked field.
const (
	LockedRemoved         = "removed"
	LockedUnsupportedType = "unsupported type"
	LockedTypeChanged     = "type changed"
)

// Epoch precisions accepted by DateConfig.Precision, in units per second.
const (
	PrecisionSeconds      = 1
	PrecisionMilliseconds = 1_000
	PrecisionMicroseconds = 1_000_000
	PrecisionNanoseconds  = 1_000_000_000
)

// DateConfig controls how a date field's resolved value is parsed.
type DateConfig struct {
	AutoParse        bool    `json:"autoParse"`
	Formatter        string  `json:"formatter,omitempty"`
	Precision        int64   `json:"precision"`
	UTCOffsetEnabled bool    `json:"utcOffsetEnabled"`
	UTCOffset        float64 `json:"utcOffset"`
}

// DefaultDateConfig parses strings automatically and treats numbers as
// epoch seconds.
func DefaultDateConfig() DateConfig {
	return DateConfig{AutoParse: true, Precision: PrecisionSeconds}
}

// ValidPrecision reports whether p is one of the supported epoch units.
func ValidPrecision(p int64) bool {
	switch p {
	case PrecisionSeconds, PrecisionMilliseconds, PrecisionMicroseconds, PrecisionNanoseconds:
		return true
	}
	return false
}

// AttachmentRef points a field at a stored attachment, optionally
// overriding the attachment's stored metadata for this use.
type AttachmentRef struct {
	AttachmentID      string `json:"attachmentId"`
	Filename          string `json:"filename"`
	MediaFile         bool   `json:"mediaFile"`
	Comment           string `json:"comment"`
	OverrideFilename  bool   `json:"overrideFilename"`
	OverrideMediaFile bool   `json:"overrideMediaFile"`
	OverrideComment   bool   `json:"overrideComment"`
}

// Effective returns the metadata to upload with, taking per-use overrides
// over the stored attachment.
func (r AttachmentRef) Effective(a Attachment) (filename string, mediaFile bool, comment string) {
	filename, mediaFile, comment = a.Filename, a.MediaFile, a.Comment
	if r.OverrideFilename {
		filename = r.Filename
	}
	if r.OverrideMediaFile {
		mediaFile = r.MediaFile
	}
	if r.OverrideComment {
		comment = r.Comment
	}
	return filename, mediaFile, comment
}

// FieldState carries the outcome of the last resolution of a field. It is
// derived data and is not persisted.
type FieldState struct {
	ResolveError   string `json:"-"`
	Unresolvable   bool   `json:"-"`
	InvalidDate    bool   `json:"-"`
	OptionMismatch bool   `json:"-"`
}

// MappedField is one schema field chosen for the output document.
//
// When MappingMethod is MappingPath, Value is the result of resolving Path
// against the current document and coercing it to FieldType. A locked field
// is never enabled.
type MappedField struct {
	ShortName      string          `json:"shortName"`
	LongName       string          `json:"longName,omitempty"`
	FieldType      FieldType       `json:"fieldType"`
	Custom         bool            `json:"custom"`
	MappingMethod  MappingMethod   `json:"mappingMethod"`
	Value          jsonval.Value   `json:"value"`
	OriginalValue  jsonval.Value   `json:"originalValue"`
	Path           string          `json:"path,omitempty"`
	Enabled        bool            `json:"enabled"`
	Locked         bool            `json:"locked"`
	LockedReason   string          `json:"lockedReason,omitempty"`
	DateConfig     *DateConfig     `json:"dateConfig,omitempty"`
	AttachmentRefs []AttachmentRef `json:"attachmentRefs,omitempty"`

	State FieldState `json:"-"`
}

// Clone returns a copy that shares no slices with f.
func (f MappedField) Clone() MappedField {
	out := f
	if f.DateConfig != nil {
		dc := *f.DateConfig
		out.DateConfig = &dc
	}
	if f.AttachmentRefs != nil {
		out.AttachmentRefs = append([]AttachmentRef(nil), f.AttachmentRefs...)
	}
	return out
}

// Lock locks the field for the given reason and disables it.
func (f *MappedField) Lock(reason string) {
	f.Locked = true
	f.LockedReason = reason
	f.Enabled = false
}
