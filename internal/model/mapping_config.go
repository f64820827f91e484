package model

import (
	"encoding/json"
	"time"
)

// MappingConfig is a saved incident mapping: the working set of mapped
// fields plus the options used when submitting it.
type MappingConfig struct {
	Name                string        `json:"name"`
	IncidentType        string        `json:"incidentType,omitempty"`
	Fields              []MappedField `json:"fields"`
	DefaultJSONConfig   string        `json:"defaultJsonConfig,omitempty"`
	CreateInvestigation bool          `json:"createInvestigation"`
	UpdatedAt           time.Time     `json:"updatedAt,omitzero"`
}

// Field returns the mapped field with the given short name.
func (c *MappingConfig) Field(shortName string) (*MappedField, bool) {
	for i := range c.Fields {
		if c.Fields[i].ShortName == shortName {
			return &c.Fields[i], true
		}
	}
	return nil, false
}

// JSONConfig is a saved source document that mappings resolve against.
type JSONConfig struct {
	Name      string          `json:"name"`
	Document  json.RawMessage `json:"document"`
	UpdatedAt time.Time       `json:"updatedAt,omitzero"`
}

// JSONGroup is a named set of JSON configs submitted together.
type JSONGroup struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

// Remove drops name from the group's members and reports whether it was there.
func (g *JSONGroup) Remove(name string) bool {
	out := g.Members[:0]
	removed := false
	for _, m := range g.Members {
		if m == name {
			removed = true
			continue
		}
		out = append(out, m)
	}
	g.Members = out
	return removed
}

// Attachment is the stored metadata of an uploaded file. The content lives
// in the blob store under ID.
type Attachment struct {
	ID          string    `json:"id"`
	Filename    string    `json:"filename"`
	MediaFile   bool      `json:"mediaFile"`
	Comment     string    `json:"comment,omitempty"`
	ContentType string    `json:"contentType,omitempty"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt,omitzero"`
}
