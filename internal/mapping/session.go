package mapping

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alfredjeanlab/feeder/internal/jsontree"
	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

var (
	// ErrUnknownField is returned for a short name the schema does not define.
	ErrUnknownField = errors.New("field not in schema")
	// ErrFieldNotMapped is returned for a short name with no mapped field.
	ErrFieldNotMapped = errors.New("field not mapped")
	// ErrDuplicateField is returned when adding a field that is already mapped.
	ErrDuplicateField = errors.New("field already mapped")
	// ErrUnsupportedType is returned when adding a field whose type cannot be mapped.
	ErrUnsupportedType = errors.New("field type not supported")
	// ErrNotJSONMappable is returned for JSON edits on an attachment field,
	// and for attachment edits on any other field.
	ErrNotJSONMappable = errors.New("operation does not apply to this field type")
)

// DefaultFields are mapped automatically when a session starts.
var DefaultFields = []string{"name", "type", "severity", "owner", "details"}

// Options configure a Session.
type Options struct {
	// IncidentType scopes required-field checks. Empty means every field.
	IncidentType string
	// DefaultFields overrides DefaultFields when non-nil.
	DefaultFields []string
	// LastFlag selects how AttachmentPlan marks the final upload.
	LastFlag LastFlagPolicy
	// Now is the clock used for default date values.
	Now func() time.Time
}

// Session is the mapping state of one incident being built: the source
// document, the schema of the target server and the mapped fields. A
// Session is not safe for concurrent use.
type Session struct {
	schema       []model.FieldSchema
	defs         map[string]model.FieldSchema
	fields       []model.MappedField
	doc          jsonval.Value
	hasDoc       bool
	incidentType string
	defaults     []string
	lastFlag     LastFlagPolicy
	now          func() time.Time
	attachments  map[string]model.Attachment
}

// NewSession starts a session against schema with the default fields
// mapped.
func NewSession(schema []model.FieldSchema, opts Options) *Session {
	s := &Session{
		incidentType: opts.IncidentType,
		defaults:     opts.DefaultFields,
		lastFlag:     opts.LastFlag,
		now:          opts.Now,
	}
	if s.defaults == nil {
		s.defaults = DefaultFields
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.setSchema(schema)
	s.ResetDefaults()
	return s
}

func (s *Session) setSchema(schema []model.FieldSchema) {
	s.schema = append([]model.FieldSchema(nil), schema...)
	s.defs = model.IndexSchema(s.schema)
}

// Schema returns the schema the session maps against.
func (s *Session) Schema() []model.FieldSchema {
	return append([]model.FieldSchema(nil), s.schema...)
}

// IncidentType returns the incident type required-field checks are scoped to.
func (s *Session) IncidentType() string { return s.incidentType }

// SetIncidentType changes the incident type.
func (s *Session) SetIncidentType(t string) { s.incidentType = t }

// ResetDefaults drops every mapped field and maps the default fields again.
func (s *Session) ResetDefaults() {
	s.fields = nil
	for _, name := range s.defaults {
		def, ok := s.defs[name]
		if !ok || !def.Type.IsJSONMappable() {
			continue
		}
		s.fields = append(s.fields, s.newField(def))
	}
}

func (s *Session) newField(def model.FieldSchema) model.MappedField {
	f := model.MappedField{
		ShortName:     def.ShortName,
		LongName:      def.LongName,
		FieldType:     def.Type,
		Custom:        def.Custom,
		MappingMethod: model.MappingStatic,
		Value:         model.DefaultValue(def.Type, s.now()),
		Enabled:       true,
	}
	if def.Type == model.FieldTypeDate {
		dc := model.DefaultDateConfig()
		f.DateConfig = &dc
	}
	f.OriginalValue = f.Value
	return f
}

// Fields returns a copy of the mapped fields in the order they were added.
func (s *Session) Fields() []model.MappedField {
	out := make([]model.MappedField, len(s.fields))
	for i, f := range s.fields {
		out[i] = f.Clone()
	}
	return out
}

// Field returns a copy of the mapped field with the given short name.
func (s *Session) Field(shortName string) (model.MappedField, bool) {
	if f := s.field(shortName); f != nil {
		return f.Clone(), true
	}
	return model.MappedField{}, false
}

func (s *Session) field(shortName string) *model.MappedField {
	for i := range s.fields {
		if s.fields[i].ShortName == shortName {
			return &s.fields[i]
		}
	}
	return nil
}

func (s *Session) mapped(shortName string) (*model.MappedField, error) {
	f := s.field(shortName)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrFieldNotMapped, shortName)
	}
	return f, nil
}

// AddField maps the schema field shortName with its default value.
func (s *Session) AddField(shortName string) error {
	def, ok := s.defs[shortName]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, shortName)
	}
	if !def.Type.IsSupported() {
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedType, shortName, def.Type)
	}
	if s.field(shortName) != nil {
		return fmt.Errorf("%w: %s", ErrDuplicateField, shortName)
	}
	s.fields = append(s.fields, s.newField(def))
	return nil
}

// RemoveField drops a mapped field. It reports whether the field was mapped.
func (s *Session) RemoveField(shortName string) bool {
	for i := range s.fields {
		if s.fields[i].ShortName == shortName {
			s.fields = append(s.fields[:i], s.fields[i+1:]...)
			return true
		}
	}
	return false
}

// ResetField replaces a mapped field with a fresh one built from the
// current schema. It is the way out of a LockedTypeChanged lock. The new
// field starts disabled if the old one was locked.
func (s *Session) ResetField(shortName string) error {
	f, err := s.mapped(shortName)
	if err != nil {
		return err
	}
	def, ok := s.defs[shortName]
	if !ok || !def.Type.IsSupported() {
		return nil
	}
	fresh := s.newField(def)
	fresh.Enabled = f.Enabled && !f.Locked
	*f = fresh
	return nil
}

// Document returns the current source document and whether one is loaded.
func (s *Session) Document() (jsonval.Value, bool) { return s.doc, s.hasDoc }

// SetDocument replaces the source document and re-resolves every
// path-mapped field. Static fields are untouched.
func (s *Session) SetDocument(doc jsonval.Value) {
	s.doc = doc
	s.hasDoc = true
	s.resolveAll()
}

// ClearDocument drops the source document. Path-mapped fields keep their
// last resolved values.
func (s *Session) ClearDocument() {
	s.doc = jsonval.Value{}
	s.hasDoc = false
}

// SetPath maps the field to a path expression and resolves it. Edits to a
// locked field are ignored.
func (s *Session) SetPath(shortName, path string) error {
	f, err := s.editable(shortName)
	if f == nil || err != nil {
		return err
	}
	f.MappingMethod = model.MappingPath
	f.Path = path
	s.resolve(f)
	return nil
}

// SetStatic maps the field to a fixed value, coerced to the field's type.
// Edits to a locked field are ignored.
func (s *Session) SetStatic(shortName string, v jsonval.Value) error {
	f, err := s.editable(shortName)
	if f == nil || err != nil {
		return err
	}
	f.MappingMethod = model.MappingStatic
	f.OriginalValue = v
	f.State = model.FieldState{}
	s.assign(f, jsontree.Resolution{Value: v}, model.DefaultDateConfig())
	return nil
}

// SetMappingMethod switches between static and path mapping. Switching to
// path re-resolves the stored path; switching to static keeps the current
// value.
func (s *Session) SetMappingMethod(shortName string, m model.MappingMethod) error {
	if !m.IsValid() {
		return fmt.Errorf("invalid mapping method %q", m)
	}
	f, err := s.editable(shortName)
	if f == nil || err != nil {
		return err
	}
	f.MappingMethod = m
	if m == model.MappingPath {
		s.resolve(f)
	} else {
		f.State.ResolveError = ""
	}
	return nil
}

// SetDateConfig changes how a date field parses its source and
// re-resolves it.
func (s *Session) SetDateConfig(shortName string, cfg model.DateConfig) error {
	if !model.ValidPrecision(cfg.Precision) {
		return fmt.Errorf("invalid date precision %d", cfg.Precision)
	}
	f, err := s.editable(shortName)
	if f == nil || err != nil {
		return err
	}
	if f.FieldType != model.FieldTypeDate {
		return fmt.Errorf("%w: %s is %s, not date", ErrNotJSONMappable, shortName, f.FieldType)
	}
	f.DateConfig = &cfg
	s.resolve(f)
	return nil
}

// editable returns the field if it may be edited with a JSON value. A
// locked field yields nil and no error.
func (s *Session) editable(shortName string) (*model.MappedField, error) {
	f, err := s.mapped(shortName)
	if err != nil {
		return nil, err
	}
	if f.Locked {
		return nil, nil
	}
	if f.FieldType == model.FieldTypeAttachments {
		return nil, fmt.Errorf("%w: %s holds attachments", ErrNotJSONMappable, shortName)
	}
	return f, nil
}

// Enable includes the field in the payload. Enabling a locked field does
// nothing.
func (s *Session) Enable(shortName string) error {
	f, err := s.mapped(shortName)
	if err != nil {
		return err
	}
	if !f.Locked {
		f.Enabled = true
	}
	return nil
}

// Disable excludes the field from the payload.
func (s *Session) Disable(shortName string) error {
	f, err := s.mapped(shortName)
	if err != nil {
		return err
	}
	f.Enabled = false
	return nil
}

func (s *Session) resolveAll() {
	for i := range s.fields {
		s.resolve(&s.fields[i])
	}
}

// resolve recomputes a path-mapped field from the current document.
func (s *Session) resolve(f *model.MappedField) {
	if f.Locked || f.MappingMethod != model.MappingPath || !s.hasDoc {
		return
	}
	if strings.TrimSpace(f.Path) == "" {
		f.State.ResolveError = ""
		return
	}
	res, err := jsontree.Resolve(s.doc, f.Path)
	f.State = model.FieldState{}
	if err != nil {
		f.State.ResolveError = err.Error()
		f.Value = jsonval.NullValue()
		f.OriginalValue = jsonval.NullValue()
		if f.FieldType == model.FieldTypeDate {
			f.Value = jsonval.StringValue(InvalidDate)
			f.State.InvalidDate = true
		}
		return
	}
	f.OriginalValue = res.Value
	cfg := model.DefaultDateConfig()
	if f.DateConfig != nil {
		cfg = *f.DateConfig
	}
	s.assign(f, res, cfg)
}

// assign coerces a resolved value into f and records the outcome.
func (s *Session) assign(f *model.MappedField, res jsontree.Resolution, cfg model.DateConfig) {
	if f.FieldType == model.FieldTypeDate {
		r := TransformDate(res, cfg, f.Value.Str())
		f.Value = jsonval.StringValue(r.Value)
		f.State.InvalidDate = !r.Valid
		return
	}
	c := Coerce(res.Value, f.FieldType)
	f.Value = c.Value
	f.State.Unresolvable = c.Unresolvable
	f.State.OptionMismatch = s.optionMismatch(f)
}

func (s *Session) optionMismatch(f *model.MappedField) bool {
	def, ok := s.defs[f.ShortName]
	if !ok || len(def.SelectOptions) == 0 {
		return false
	}
	switch f.FieldType {
	case model.FieldTypeSingleSelect:
		v := f.Value
		if v.IsNull() || (v.Kind() == jsonval.String && v.Str() == "") {
			return false
		}
		return !def.HasOption(v.Text())
	case model.FieldTypeMultiSelect:
		for _, e := range f.Value.Elems() {
			if !def.HasOption(e.Text()) {
				return true
			}
		}
	}
	return false
}

// refresh recomputes derived state after fields were replaced wholesale.
// Path fields are re-resolved; static values are re-coerced when their
// type no longer fits them.
func (s *Session) refresh() {
	for i := range s.fields {
		f := &s.fields[i]
		f.State = model.FieldState{}
		if f.Locked || f.FieldType == model.FieldTypeAttachments {
			continue
		}
		if f.MappingMethod == model.MappingPath && s.hasDoc {
			s.resolve(f)
			continue
		}
		if f.FieldType == model.FieldTypeDate {
			if f.Value.Kind() == jsonval.String && f.Value.Str() == InvalidDate {
				f.State.InvalidDate = true
				continue
			}
			r := NormalizeDate(f.Value)
			f.Value = jsonval.StringValue(r.Value)
			f.State.InvalidDate = !r.Valid
			continue
		}
		s.assign(f, jsontree.Resolution{Value: f.Value}, model.DefaultDateConfig())
	}
}

// MergeKeepCurrent switches the session to a new schema, keeping current
// values and enabled flags wherever they are still legal.
func (s *Session) MergeKeepCurrent(schema []model.FieldSchema) {
	s.fields = MergeSchema(s.fields, schema)
	s.setSchema(schema)
	s.refresh()
}

// MergeFromSaved switches the session to a new schema and replaces the
// mapped fields with those of a saved config, reconciled with the schema.
func (s *Session) MergeFromSaved(saved model.MappingConfig, schema []model.FieldSchema) {
	s.fields = MergeSchema(saved.Fields, schema)
	s.setSchema(schema)
	if saved.IncidentType != "" {
		s.incidentType = saved.IncidentType
	}
	s.pruneAttachmentRefs()
	s.refresh()
}

// LoadConfig replaces the mapped fields with a saved config reconciled
// with the current schema.
func (s *Session) LoadConfig(saved model.MappingConfig) {
	s.MergeFromSaved(saved, s.schema)
}

// Snapshot returns the session's fields as a mapping config named name.
func (s *Session) Snapshot(name string) model.MappingConfig {
	return model.MappingConfig{
		Name:         name,
		IncidentType: s.incidentType,
		Fields:       s.Fields(),
	}
}
