package mapping

import (
	"fmt"

	"github.com/alfredjeanlab/feeder/internal/model"
)

// LastFlagPolicy decides which uploads of a submission carry the "last"
// flag that tells XSOAR the attachment batch is complete.
type LastFlagPolicy int

const (
	// LastOverall flags only the final upload of the whole submission.
	LastOverall LastFlagPolicy = iota
	// LastPerField flags the final upload of each field.
	LastPerField
)

// String returns the policy name used in configuration.
func (p LastFlagPolicy) String() string {
	if p == LastPerField {
		return "per-field"
	}
	return "overall"
}

// ParseLastFlagPolicy parses "overall" or "per-field".
func ParseLastFlagPolicy(s string) (LastFlagPolicy, error) {
	switch s {
	case "", "overall":
		return LastOverall, nil
	case "per-field":
		return LastPerField, nil
	}
	return LastOverall, fmt.Errorf("unknown last flag policy %q", s)
}

// AttachmentUpload is one file to push after the incident is created.
type AttachmentUpload struct {
	Field string
	Ref   model.AttachmentRef
	Last  bool
}

// SetAttachmentCatalog tells the session which attachments exist. Refs to
// other attachments are dropped now and rejected by AddAttachments. A nil
// catalog disables the check.
func (s *Session) SetAttachmentCatalog(atts []model.Attachment) {
	if atts == nil {
		s.attachments = nil
		return
	}
	s.attachments = make(map[string]model.Attachment, len(atts))
	for _, a := range atts {
		s.attachments[a.ID] = a
	}
	s.pruneAttachmentRefs()
}

// Attachment looks up an attachment in the catalog.
func (s *Session) Attachment(id string) (model.Attachment, bool) {
	a, ok := s.attachments[id]
	return a, ok
}

// AddAttachments appends refs to an attachment field. Refs already on the
// field are skipped. Edits to a locked field are ignored.
func (s *Session) AddAttachments(shortName string, refs ...model.AttachmentRef) error {
	f, err := s.mapped(shortName)
	if err != nil {
		return err
	}
	if f.Locked {
		return nil
	}
	if f.FieldType != model.FieldTypeAttachments {
		return fmt.Errorf("%w: %s is %s", ErrNotJSONMappable, shortName, f.FieldType)
	}
	for _, r := range refs {
		if s.attachments != nil {
			if _, ok := s.attachments[r.AttachmentID]; !ok {
				return fmt.Errorf("attachment %s not found", r.AttachmentID)
			}
		}
		if hasRef(f.AttachmentRefs, r.AttachmentID) {
			continue
		}
		f.AttachmentRefs = append(f.AttachmentRefs, r)
	}
	return nil
}

// RemoveAttachment drops a ref from an attachment field and reports
// whether it was there.
func (s *Session) RemoveAttachment(shortName, attachmentID string) bool {
	f := s.field(shortName)
	if f == nil || f.Locked {
		return false
	}
	var removed bool
	f.AttachmentRefs, removed = removeRef(f.AttachmentRefs, attachmentID)
	return removed
}

func (s *Session) pruneAttachmentRefs() {
	if s.attachments == nil {
		return
	}
	for i := range s.fields {
		f := &s.fields[i]
		kept := f.AttachmentRefs[:0]
		for _, r := range f.AttachmentRefs {
			if _, ok := s.attachments[r.AttachmentID]; ok {
				kept = append(kept, r)
			}
		}
		if len(kept) == 0 {
			kept = nil
		}
		f.AttachmentRefs = kept
	}
}

// AttachmentPlan lists the uploads for enabled, unlocked attachment fields
// in field order and, within a field, in the order refs were added.
func (s *Session) AttachmentPlan() []AttachmentUpload {
	var plan []AttachmentUpload
	for _, f := range s.fields {
		if !f.Enabled || f.Locked || f.FieldType != model.FieldTypeAttachments {
			continue
		}
		for i, r := range f.AttachmentRefs {
			plan = append(plan, AttachmentUpload{
				Field: f.ShortName,
				Ref:   r,
				Last:  s.lastFlag == LastPerField && i == len(f.AttachmentRefs)-1,
			})
		}
	}
	if s.lastFlag == LastOverall && len(plan) > 0 {
		plan[len(plan)-1].Last = true
	}
	return plan
}

// StripAttachment removes every ref to attachmentID from a mapping config
// and reports whether anything changed.
func StripAttachment(cfg *model.MappingConfig, attachmentID string) bool {
	changed := false
	for i := range cfg.Fields {
		var removed bool
		cfg.Fields[i].AttachmentRefs, removed = removeRef(cfg.Fields[i].AttachmentRefs, attachmentID)
		changed = changed || removed
	}
	return changed
}

func hasRef(refs []model.AttachmentRef, id string) bool {
	for _, r := range refs {
		if r.AttachmentID == id {
			return true
		}
	}
	return false
}

func removeRef(refs []model.AttachmentRef, id string) ([]model.AttachmentRef, bool) {
	if !hasRef(refs, id) {
		return refs, false
	}
	out := make([]model.AttachmentRef, 0, len(refs)-1)
	for _, r := range refs {
		if r.AttachmentID != id {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		out = nil
	}
	return out, true
}
