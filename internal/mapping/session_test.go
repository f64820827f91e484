package mapping

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

var fixedNow = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func testSchema() []model.FieldSchema {
	return []model.FieldSchema{
		{ShortName: "name", LongName: "Name", Type: model.FieldTypeShortText, AssociatedToAll: true, Required: true},
		{ShortName: "type", LongName: "Type", Type: model.FieldTypeShortText, AssociatedToAll: true},
		{ShortName: "severity", LongName: "Severity", Type: model.FieldTypeSingleSelect, AssociatedToAll: true},
		{ShortName: "owner", LongName: "Owner", Type: model.FieldTypeUser, AssociatedToAll: true},
		{ShortName: "details", LongName: "Details", Type: model.FieldTypeLongText, AssociatedToAll: true},
		{ShortName: "occurred", LongName: "Occurred", Type: model.FieldTypeDate, AssociatedToAll: true},
		{ShortName: "oldfield", LongName: "Old Field", Type: model.FieldTypeShortText, Custom: true},
		{ShortName: "hostcount", LongName: "Host Count", Type: model.FieldTypeNumber, Custom: true},
		{ShortName: "evidence", LongName: "Evidence", Type: model.FieldTypeAttachments, Custom: true},
		{ShortName: "screens", LongName: "Screens", Type: model.FieldTypeAttachments, Custom: true},
		{ShortName: "category", LongName: "Category", Type: model.FieldTypeSingleSelect, Custom: true, SelectOptions: []string{"phishing", "malware"}},
		{ShortName: "labels", LongName: "Labels", Type: model.FieldTypeMultiSelect, Custom: true},
		{ShortName: "legacy", LongName: "Legacy", Type: model.FieldTypeUndefined},
	}
}

func newTestSession(t *testing.T, opts Options) *Session {
	t.Helper()
	opts.Now = func() time.Time { return fixedNow }
	return NewSession(testSchema(), opts)
}

func fieldNames(fields []model.MappedField) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = f.ShortName
	}
	return out
}

func member(t *testing.T, doc jsonval.Value, key string) jsonval.Value {
	t.Helper()
	v, ok := doc.Get(key)
	require.True(t, ok, "payload has no %q: %s", key, doc.Text())
	return v
}

func TestNewSession_DefaultFields(t *testing.T) {
	s := newTestSession(t, Options{})
	assert.Equal(t, []string{"name", "type", "severity", "owner", "details"}, fieldNames(s.Fields()))
	for _, f := range s.Fields() {
		assert.True(t, f.Enabled, f.ShortName)
		assert.Equal(t, model.MappingStatic, f.MappingMethod)
		assert.Equal(t, "", f.Value.Str(), f.ShortName)
	}

	custom := NewSession(testSchema(), Options{DefaultFields: []string{"hostcount", "missing", "legacy"}})
	assert.Equal(t, []string{"hostcount"}, fieldNames(custom.Fields()))
}

func TestAddField(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("occurred"))
	f, ok := s.Field("occurred")
	require.True(t, ok)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", f.Value.Str())
	require.NotNil(t, f.DateConfig)

	assert.ErrorIs(t, s.AddField("occurred"), ErrDuplicateField)
	assert.ErrorIs(t, s.AddField("nope"), ErrUnknownField)
	assert.ErrorIs(t, s.AddField("legacy"), ErrUnsupportedType)

	require.NoError(t, s.AddField("hostcount"))
	f, _ = s.Field("hostcount")
	assert.Equal(t, jsonval.Number, f.Value.Kind())

	assert.True(t, s.RemoveField("hostcount"))
	assert.False(t, s.RemoveField("hostcount"))
}

func TestSetPath_ResolvesAndCoerces(t *testing.T) {
	s := newTestSession(t, Options{})
	s.SetDocument(jsonval.MustDecode(`{"alert":{"title":"Bad login","sev":2,"hosts":"3"}}`))

	require.NoError(t, s.SetPath("name", "alert.title"))
	require.NoError(t, s.SetPath("severity", "alert.sev"))
	require.NoError(t, s.AddField("hostcount"))
	require.NoError(t, s.SetPath("hostcount", "alert.hosts"))

	name, _ := s.Field("name")
	assert.Equal(t, "Bad login", name.Value.Str())
	sev, _ := s.Field("severity")
	assert.True(t, jsonval.Equal(jsonval.NumberValue(2), sev.Value), "singleSelect keeps the number")
	hosts, _ := s.Field("hostcount")
	assert.Equal(t, 3.0, hosts.Value.Number())
	assert.Equal(t, "3", hosts.OriginalValue.Str())
}

func TestSetDocument_ReResolvesOnlyPathFields(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.SetStatic("type", jsonval.StringValue("Phishing")))
	s.SetDocument(jsonval.MustDecode(`{"t":"first"}`))
	require.NoError(t, s.SetPath("name", "t"))

	s.SetDocument(jsonval.MustDecode(`{"t":"second","type":"ignored"}`))
	name, _ := s.Field("name")
	typ, _ := s.Field("type")
	assert.Equal(t, "second", name.Value.Str())
	assert.Equal(t, "Phishing", typ.Value.Str())

	s.SetDocument(jsonval.MustDecode(`{}`))
	name, _ = s.Field("name")
	assert.True(t, name.Value.IsNull(), "missing branch resolves to null")
	assert.Empty(t, name.State.ResolveError)
}

func TestSetPath_ParseErrorIsFieldLocal(t *testing.T) {
	s := newTestSession(t, Options{})
	s.SetDocument(jsonval.MustDecode(`{"a":"x"}`))
	require.NoError(t, s.SetPath("name", "a.["))
	require.NoError(t, s.SetPath("details", "a"))

	name, _ := s.Field("name")
	assert.NotEmpty(t, name.State.ResolveError)

	p := s.AssemblePayload()
	assert.True(t, member(t, p.Document, "name").IsNull())
	assert.Equal(t, "x", member(t, p.Document, "details").Str())
	assert.Contains(t, p.Diagnostics, Diagnostic{Field: "name", Kind: DiagPathError, Message: name.State.ResolveError})
}

func TestSetPath_BlankKeepsValue(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.SetStatic("name", jsonval.StringValue("kept")))
	s.SetDocument(jsonval.MustDecode(`{"a":1}`))
	require.NoError(t, s.SetPath("name", "  "))
	name, _ := s.Field("name")
	assert.Equal(t, model.MappingPath, name.MappingMethod)
	assert.Equal(t, "kept", name.Value.Str())
}

func TestSetMappingMethod(t *testing.T) {
	s := newTestSession(t, Options{})
	s.SetDocument(jsonval.MustDecode(`{"who":"alice"}`))
	require.NoError(t, s.SetPath("owner", "who"))
	require.NoError(t, s.SetMappingMethod("owner", model.MappingStatic))

	s.SetDocument(jsonval.MustDecode(`{"who":"bob"}`))
	owner, _ := s.Field("owner")
	assert.Equal(t, "alice", owner.Value.Str(), "static fields ignore document changes")

	require.NoError(t, s.SetMappingMethod("owner", model.MappingPath))
	owner, _ = s.Field("owner")
	assert.Equal(t, "bob", owner.Value.Str())

	assert.Error(t, s.SetMappingMethod("owner", "magic"))
}

func TestDateField_InvalidIsOmitted(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("occurred"))
	s.SetDocument(jsonval.MustDecode(`{"ts":1700000000,"bad":"bogus"}`))

	require.NoError(t, s.SetPath("occurred", "ts"))
	p := s.AssemblePayload()
	assert.Equal(t, "2023-11-14T22:13:20.000Z", member(t, p.Document, "occurred").Str())

	require.NoError(t, s.SetPath("occurred", "bad"))
	p = s.AssemblePayload()
	_, present := p.Document.Get("occurred")
	assert.False(t, present)
	assert.Equal(t, []string{"occurred"}, p.Omitted())
	assert.Contains(t, p.Diagnostics, Diagnostic{Field: "occurred", Kind: DiagInvalidDate, Message: "date could not be parsed", Omitted: true})
}

func TestSetDateConfig(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("occurred"))
	s.SetDocument(jsonval.MustDecode(`{"ms":1700000000123}`))
	require.NoError(t, s.SetPath("occurred", "ms"))
	require.NoError(t, s.SetDateConfig("occurred", model.DateConfig{Precision: model.PrecisionMilliseconds}))

	f, _ := s.Field("occurred")
	assert.Equal(t, "2023-11-14T22:13:20.123Z", f.Value.Str())

	assert.Error(t, s.SetDateConfig("occurred", model.DateConfig{Precision: 7}))
	assert.ErrorIs(t, s.SetDateConfig("name", model.DefaultDateConfig()), ErrNotJSONMappable)
}

func TestSetStatic_DateIsNormalized(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("occurred"))
	require.NoError(t, s.SetStatic("occurred", jsonval.StringValue("2024-05-06 07:08:09")))
	f, _ := s.Field("occurred")
	assert.Equal(t, "2024-05-06T07:08:09.000Z", f.Value.Str())
}

func TestAssemblePayload_CustomFields(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("hostcount"))
	require.NoError(t, s.SetStatic("hostcount", jsonval.NumberValue(4)))
	require.NoError(t, s.AddField("labels"))
	require.NoError(t, s.SetStatic("labels", jsonval.StringValue("vip")))
	require.NoError(t, s.SetStatic("name", jsonval.StringValue("Incident")))
	require.NoError(t, s.Disable("details"))

	p := s.AssemblePayload()
	assert.Equal(t,
		`{"name":"Incident","type":"","severity":"","owner":"","CustomFields":{"hostcount":4,"labels":["vip"]}}`,
		p.Document.Text())
	assert.Empty(t, p.Diagnostics)
}

func TestAssemblePayload_BestEffortValues(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("hostcount"))
	require.NoError(t, s.AddField("category"))
	s.SetDocument(jsonval.MustDecode(`{"n":"many","c":"spam"}`))
	require.NoError(t, s.SetPath("hostcount", "n"))
	require.NoError(t, s.SetPath("category", "c"))

	p := s.AssemblePayload()
	custom := member(t, p.Document, CustomFieldsKey)
	hc, _ := custom.Get("hostcount")
	assert.Equal(t, "many", hc.Str(), "unresolvable value is still sent")
	cat, _ := custom.Get("category")
	assert.Equal(t, "spam", cat.Str())

	kinds := map[string]DiagnosticKind{}
	for _, d := range p.Diagnostics {
		kinds[d.Field] = d.Kind
		assert.False(t, d.Omitted)
	}
	assert.Equal(t, DiagUnresolvable, kinds["hostcount"])
	assert.Equal(t, DiagOptionMismatch, kinds["category"])
}

func TestAssemblePayload_RequiredField(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.Disable("name"))
	p := s.AssemblePayload()
	assert.Contains(t, p.Diagnostics, Diagnostic{Field: "name", Kind: DiagInvalid, Message: "is required"})
}

// TestMergeKeepCurrent_RemovedField covers a schema refresh that drops a
// field the user had enabled.
func TestMergeKeepCurrent_RemovedField(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("oldfield"))
	require.NoError(t, s.SetStatic("oldfield", jsonval.StringValue("legacy value")))
	require.NoError(t, s.SetStatic("name", jsonval.StringValue("keep me")))

	var next []model.FieldSchema
	for _, d := range testSchema() {
		if d.ShortName != "oldfield" {
			next = append(next, d)
		}
	}
	s.MergeKeepCurrent(next)

	old, ok := s.Field("oldfield")
	require.True(t, ok)
	assert.True(t, old.Locked)
	assert.False(t, old.Enabled)
	assert.Equal(t, model.LockedRemoved, old.LockedReason)

	require.NoError(t, s.Enable("oldfield"))
	old, _ = s.Field("oldfield")
	assert.False(t, old.Enabled, "enabling a locked field is a no-op")
	require.NoError(t, s.SetStatic("oldfield", jsonval.StringValue("edited")))
	old, _ = s.Field("oldfield")
	assert.Equal(t, "legacy value", old.Value.Str(), "edits to a locked field are ignored")

	p := s.AssemblePayload()
	assert.NotContains(t, p.Document.Text(), "oldfield")
	assert.Equal(t, "keep me", member(t, p.Document, "name").Str())
}

func TestMergeFromSaved(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.SetStatic("name", jsonval.StringValue("current")))

	saved := model.MappingConfig{
		Name:         "saved",
		IncidentType: "Phishing",
		Fields: []model.MappedField{
			{ShortName: "name", FieldType: model.FieldTypeShortText, MappingMethod: model.MappingPath, Path: "subject", Enabled: true},
			{ShortName: "gone", FieldType: model.FieldTypeShortText, MappingMethod: model.MappingStatic, Value: jsonval.StringValue("x"), Enabled: true},
		},
	}
	s.SetDocument(jsonval.MustDecode(`{"subject":"from document"}`))
	s.MergeFromSaved(saved, testSchema())

	assert.Equal(t, []string{"name", "gone"}, fieldNames(s.Fields()))
	assert.Equal(t, "Phishing", s.IncidentType())
	name, _ := s.Field("name")
	assert.Equal(t, "from document", name.Value.Str())
	assert.Equal(t, "Name", name.LongName)
	gone, _ := s.Field("gone")
	assert.True(t, gone.Locked)
	assert.False(t, gone.Enabled)
}

func TestResetField_RecoversFromTypeChange(t *testing.T) {
	s := newTestSession(t, Options{})
	require.NoError(t, s.AddField("category"))
	next := testSchema()
	for i := range next {
		if next[i].ShortName == "category" {
			next[i].Type = model.FieldTypeMultiSelect
		}
	}
	s.MergeKeepCurrent(next)
	f, _ := s.Field("category")
	require.True(t, f.Locked)
	assert.Equal(t, model.LockedTypeChanged, f.LockedReason)

	require.NoError(t, s.ResetField("category"))
	f, _ = s.Field("category")
	assert.False(t, f.Locked)
	assert.False(t, f.Enabled)
	assert.Equal(t, model.FieldTypeMultiSelect, f.FieldType)
	assert.Equal(t, jsonval.Array, f.Value.Kind())
}

func TestAttachments(t *testing.T) {
	s := newTestSession(t, Options{})
	s.SetAttachmentCatalog([]model.Attachment{{ID: "att-1"}, {ID: "att-2"}, {ID: "att-3"}})
	require.NoError(t, s.AddField("evidence"))
	require.NoError(t, s.AddField("screens"))

	require.NoError(t, s.AddAttachments("evidence", model.AttachmentRef{AttachmentID: "att-1"}, model.AttachmentRef{AttachmentID: "att-2"}))
	require.NoError(t, s.AddAttachments("evidence", model.AttachmentRef{AttachmentID: "att-1"}))
	require.NoError(t, s.AddAttachments("screens", model.AttachmentRef{AttachmentID: "att-3"}))
	assert.Error(t, s.AddAttachments("screens", model.AttachmentRef{AttachmentID: "att-9"}))
	assert.ErrorIs(t, s.AddAttachments("name", model.AttachmentRef{AttachmentID: "att-1"}), ErrNotJSONMappable)
	assert.ErrorIs(t, s.SetStatic("evidence", jsonval.StringValue("x")), ErrNotJSONMappable)

	plan := s.AttachmentPlan()
	require.Len(t, plan, 3)
	assert.Equal(t, "evidence", plan[0].Field)
	assert.Equal(t, "att-1", plan[0].Ref.AttachmentID)
	assert.Equal(t, "att-2", plan[1].Ref.AttachmentID)
	assert.Equal(t, []bool{false, false, true}, []bool{plan[0].Last, plan[1].Last, plan[2].Last})

	_, inPayload := s.AssemblePayload().Document.Get("CustomFields")
	assert.False(t, inPayload, "attachment fields never reach the payload")

	assert.True(t, s.RemoveAttachment("evidence", "att-1"))
	assert.False(t, s.RemoveAttachment("evidence", "att-1"))
	assert.Len(t, s.AttachmentPlan(), 2)
}

func TestAttachmentPlan_PerFieldPolicy(t *testing.T) {
	s := newTestSession(t, Options{LastFlag: LastPerField})
	require.NoError(t, s.AddField("evidence"))
	require.NoError(t, s.AddField("screens"))
	require.NoError(t, s.AddAttachments("evidence", model.AttachmentRef{AttachmentID: "a"}, model.AttachmentRef{AttachmentID: "b"}))
	require.NoError(t, s.AddAttachments("screens", model.AttachmentRef{AttachmentID: "c"}))
	require.NoError(t, s.Disable("screens"))

	plan := s.AttachmentPlan()
	require.Len(t, plan, 2)
	assert.False(t, plan[0].Last)
	assert.True(t, plan[1].Last)
}

func TestLoadConfig_PrunesDeletedAttachments(t *testing.T) {
	s := newTestSession(t, Options{})
	s.SetAttachmentCatalog([]model.Attachment{{ID: "att-1"}})
	s.LoadConfig(model.MappingConfig{
		Name: "with files",
		Fields: []model.MappedField{{
			ShortName:     "evidence",
			FieldType:     model.FieldTypeAttachments,
			MappingMethod: model.MappingStatic,
			Enabled:       true,
			AttachmentRefs: []model.AttachmentRef{
				{AttachmentID: "att-1"}, {AttachmentID: "att-deleted"},
			},
		}},
	})
	f, ok := s.Field("evidence")
	require.True(t, ok)
	require.Len(t, f.AttachmentRefs, 1)
	assert.Equal(t, "att-1", f.AttachmentRefs[0].AttachmentID)
}

func TestStripAttachment(t *testing.T) {
	cfg := model.MappingConfig{Fields: []model.MappedField{
		{ShortName: "a", AttachmentRefs: []model.AttachmentRef{{AttachmentID: "x"}, {AttachmentID: "y"}}},
		{ShortName: "b", AttachmentRefs: []model.AttachmentRef{{AttachmentID: "y"}}},
		{ShortName: "c", Value: jsonval.StringValue("untouched")},
	}}
	assert.True(t, StripAttachment(&cfg, "y"))
	assert.Len(t, cfg.Fields[0].AttachmentRefs, 1)
	assert.Nil(t, cfg.Fields[1].AttachmentRefs)
	assert.Equal(t, "untouched", cfg.Fields[2].Value.Str())
	assert.False(t, StripAttachment(&cfg, "y"))
}

func TestSnapshot(t *testing.T) {
	s := newTestSession(t, Options{IncidentType: "Malware"})
	snap := s.Snapshot("mine")
	assert.Equal(t, "mine", snap.Name)
	assert.Equal(t, "Malware", snap.IncidentType)
	assert.Len(t, snap.Fields, 5)

	snap.Fields[0].Enabled = false
	name, _ := s.Field("name")
	assert.True(t, name.Enabled, "snapshot does not alias session state")
}

func TestUnknownFieldOps(t *testing.T) {
	s := newTestSession(t, Options{})
	assert.True(t, errors.Is(s.Enable("nope"), ErrFieldNotMapped))
	assert.True(t, errors.Is(s.SetPath("nope", "a"), ErrFieldNotMapped))
	assert.True(t, errors.Is(s.ResetField("nope"), ErrFieldNotMapped))
}

// TestLockedInvariant drives random operation sequences and checks that no
// field ever ends up locked and enabled.
func TestLockedInvariant(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	names := []string{"name", "type", "severity", "occurred", "oldfield", "hostcount", "evidence", "category", "labels", "legacy"}
	types := []model.FieldType{model.FieldTypeShortText, model.FieldTypeNumber, model.FieldTypeAttachments, model.FieldTypeUndefined, model.FieldTypeMultiSelect, model.FieldTypeDate}

	randomSchema := func() []model.FieldSchema {
		var out []model.FieldSchema
		for _, n := range names {
			if rng.Intn(4) == 0 {
				continue
			}
			out = append(out, model.FieldSchema{ShortName: n, Type: types[rng.Intn(len(types))], Custom: rng.Intn(2) == 0})
		}
		return out
	}

	for run := 0; run < 50; run++ {
		s := NewSession(randomSchema(), Options{Now: func() time.Time { return fixedNow }})
		for step := 0; step < 60; step++ {
			n := names[rng.Intn(len(names))]
			switch rng.Intn(10) {
			case 0:
				_ = s.AddField(n)
			case 1, 2:
				_ = s.Enable(n)
			case 3:
				_ = s.Disable(n)
			case 4:
				s.MergeKeepCurrent(randomSchema())
			case 5:
				s.MergeFromSaved(s.Snapshot("x"), randomSchema())
			case 6:
				_ = s.SetPath(n, "a")
				s.SetDocument(jsonval.MustDecode(`{"a":"1"}`))
			case 7:
				_ = s.ResetField(n)
			case 8:
				_ = s.SetStatic(n, jsonval.NumberValue(1))
			case 9:
				s.RemoveField(n)
			}
			for _, f := range s.Fields() {
				require.False(t, f.Locked && f.Enabled, "run %d step %d: %s locked and enabled", run, step, f.ShortName)
			}
			p := s.AssemblePayload()
			for _, f := range s.Fields() {
				if f.Locked {
					_, top := p.Document.Get(f.ShortName)
					assert.False(t, top, "locked field %s in payload", f.ShortName)
				}
			}
		}
	}
}
