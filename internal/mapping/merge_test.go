package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

func mappedField(name string, typ model.FieldType, enabled bool) model.MappedField {
	return model.MappedField{
		ShortName:     name,
		LongName:      "Label " + name,
		FieldType:     typ,
		MappingMethod: model.MappingStatic,
		Value:         jsonval.StringValue("v"),
		Enabled:       enabled,
	}
}

func schemaField(name string, typ model.FieldType) model.FieldSchema {
	return model.FieldSchema{ShortName: name, LongName: "Label " + name, Type: typ}
}

func TestMergeSchema_Removed(t *testing.T) {
	current := []model.MappedField{mappedField("oldfield", model.FieldTypeShortText, true)}
	got := MergeSchema(current, nil)
	require.Len(t, got, 1)
	f := got[0]
	assert.True(t, f.Locked)
	assert.False(t, f.Enabled)
	assert.Equal(t, model.LockedRemoved, f.LockedReason)
	assert.Equal(t, model.FieldTypeUndefined, f.FieldType)
	assert.Empty(t, f.LongName)
	assert.True(t, current[0].Enabled, "input must not be modified")
}

func TestMergeSchema_BecomesAttachments(t *testing.T) {
	current := []model.MappedField{mappedField("evidence", model.FieldTypeShortText, true)}
	got := MergeSchema(current, []model.FieldSchema{schemaField("evidence", model.FieldTypeAttachments)})
	f := got[0]
	assert.True(t, f.Locked)
	assert.False(t, f.Enabled)
	assert.Equal(t, model.LockedUnsupportedType, f.LockedReason)

	// Merging again keeps it locked.
	again := MergeSchema(got, []model.FieldSchema{schemaField("evidence", model.FieldTypeAttachments)})
	assert.True(t, again[0].Locked)
}

func TestMergeSchema_AttachmentCarrierStaysUnlocked(t *testing.T) {
	carrier := mappedField("evidence", model.FieldTypeAttachments, true)
	carrier.AttachmentRefs = []model.AttachmentRef{{AttachmentID: "att-1"}}
	got := MergeSchema([]model.MappedField{carrier}, []model.FieldSchema{schemaField("evidence", model.FieldTypeAttachments)})
	assert.False(t, got[0].Locked)
	assert.True(t, got[0].Enabled)
	assert.Len(t, got[0].AttachmentRefs, 1)
}

func TestMergeSchema_Unsupported(t *testing.T) {
	current := []model.MappedField{mappedField("legacy", model.FieldTypeShortText, true)}
	got := MergeSchema(current, []model.FieldSchema{schemaField("legacy", model.FieldTypeUndefined)})
	assert.True(t, got[0].Locked)
	assert.False(t, got[0].Enabled)
	assert.Equal(t, model.LockedUnsupportedType, got[0].LockedReason)
}

func TestMergeSchema_NewlyAvailableStaysDisabled(t *testing.T) {
	removed := MergeSchema([]model.MappedField{mappedField("f", model.FieldTypeShortText, true)}, nil)
	back := MergeSchema(removed, []model.FieldSchema{{ShortName: "f", LongName: "Back", Type: model.FieldTypeNumber, Custom: true}})
	f := back[0]
	assert.False(t, f.Locked)
	assert.Empty(t, f.LockedReason)
	assert.False(t, f.Enabled)
	assert.Equal(t, model.FieldTypeNumber, f.FieldType)
	assert.Equal(t, "Back", f.LongName)
	assert.True(t, f.Custom)
}

func TestMergeSchema_CompatibleRelabelKeepsEnabled(t *testing.T) {
	current := []model.MappedField{mappedField("note", model.FieldTypeShortText, true)}
	got := MergeSchema(current, []model.FieldSchema{{ShortName: "note", LongName: "Renamed", Type: model.FieldTypeLongText}})
	f := got[0]
	assert.False(t, f.Locked)
	assert.True(t, f.Enabled)
	assert.Equal(t, model.FieldTypeLongText, f.FieldType)
	assert.Equal(t, "Renamed", f.LongName)
	assert.Equal(t, "v", f.Value.Str())
}

func TestMergeSchema_IncompatibleTypeChangeLocks(t *testing.T) {
	current := []model.MappedField{mappedField("category", model.FieldTypeSingleSelect, true)}
	next := []model.FieldSchema{schemaField("category", model.FieldTypeMultiSelect)}
	got := MergeSchema(current, next)
	f := got[0]
	assert.True(t, f.Locked)
	assert.False(t, f.Enabled)
	assert.Equal(t, model.LockedTypeChanged, f.LockedReason)
	assert.Equal(t, model.FieldTypeSingleSelect, f.FieldType, "old type kept until reset")

	// Still incompatible on the next refresh.
	again := MergeSchema(got, next)
	assert.True(t, again[0].Locked)

	// Reverting the server type unlocks it, disabled.
	reverted := MergeSchema(got, []model.FieldSchema{schemaField("category", model.FieldTypeSingleSelect)})
	assert.False(t, reverted[0].Locked)
	assert.False(t, reverted[0].Enabled)
}

func TestMergeSchema_UnchangedIsUntouched(t *testing.T) {
	f := mappedField("name", model.FieldTypeShortText, true)
	got := MergeSchema([]model.MappedField{f}, []model.FieldSchema{schemaField("name", model.FieldTypeShortText)})
	assert.Equal(t, f, got[0])
}

func TestMergeSchema_FieldsAreIndependent(t *testing.T) {
	current := []model.MappedField{
		mappedField("gone", model.FieldTypeShortText, true),
		mappedField("kept", model.FieldTypeShortText, true),
		mappedField("changed", model.FieldTypeNumber, true),
	}
	got := MergeSchema(current, []model.FieldSchema{
		schemaField("kept", model.FieldTypeShortText),
		schemaField("changed", model.FieldTypeBoolean),
	})
	require.Len(t, got, 3)
	assert.Equal(t, model.LockedRemoved, got[0].LockedReason)
	assert.False(t, got[1].Locked)
	assert.True(t, got[1].Enabled)
	assert.Equal(t, model.LockedTypeChanged, got[2].LockedReason)
}

func TestMergeSchema_DateGetsConfig(t *testing.T) {
	removed := MergeSchema([]model.MappedField{mappedField("when", model.FieldTypeShortText, false)}, nil)
	got := MergeSchema(removed, []model.FieldSchema{schemaField("when", model.FieldTypeDate)})
	require.NotNil(t, got[0].DateConfig)
	assert.Equal(t, model.DefaultDateConfig(), *got[0].DateConfig)
}
