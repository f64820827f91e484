package mapping

import "github.com/alfredjeanlab/feeder/internal/model"

// MergeSchema reconciles mapped fields with a freshly fetched schema. Each
// field is judged on its own, in priority order: removed, unsupported,
// newly available, changed. The input slice is not modified.
//
// A field whose type changes shape (e.g. singleSelect to multiSelect) is
// locked with LockedTypeChanged and keeps its old type until the caller
// resets it. Compatible relabels keep Enabled.
func MergeSchema(current []model.MappedField, schema []model.FieldSchema) []model.MappedField {
	defs := model.IndexSchema(schema)
	out := make([]model.MappedField, 0, len(current))
	for _, f := range current {
		s, ok := defs[f.ShortName]
		out = append(out, mergeField(f.Clone(), s, ok))
	}
	return out
}

func mergeField(f model.MappedField, s model.FieldSchema, present bool) model.MappedField {
	switch {
	case !present:
		f.Lock(model.LockedRemoved)
		f.FieldType = model.FieldTypeUndefined
		f.LongName = ""
		return f

	case s.Type == model.FieldTypeAttachments && f.FieldType != model.FieldTypeAttachments:
		f.Lock(model.LockedUnsupportedType)
		f.LongName = s.LongName
		return f

	case !s.Type.IsSupported():
		f.Lock(model.LockedUnsupportedType)
		f.FieldType = s.Type
		f.LongName = s.LongName
		return f

	case f.Locked:
		if f.LockedReason == model.LockedTypeChanged && !model.Compatible(f.FieldType, s.Type) {
			f.LongName = s.LongName
			f.Enabled = false
			return f
		}
		f.Locked = false
		f.LockedReason = ""
		f.Enabled = false
		adopt(&f, s)
		return f

	case f.FieldType != s.Type && !model.Compatible(f.FieldType, s.Type):
		f.Lock(model.LockedTypeChanged)
		f.LongName = s.LongName
		return f

	case f.FieldType != s.Type || f.LongName != s.LongName || f.Custom != s.Custom:
		adopt(&f, s)
		return f
	}
	return f
}

func adopt(f *model.MappedField, s model.FieldSchema) {
	f.FieldType = s.Type
	f.LongName = s.LongName
	f.Custom = s.Custom
	if s.Type == model.FieldTypeDate && f.DateConfig == nil {
		dc := model.DefaultDateConfig()
		f.DateConfig = &dc
	}
	if s.Type != model.FieldTypeAttachments {
		f.AttachmentRefs = nil
	}
}
