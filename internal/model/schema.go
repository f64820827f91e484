package model

// FieldSchema describes one incident field as reported by an XSOAR server.
// Schemas are replaced wholesale on refresh and never edited in place.
type FieldSchema struct {
	ShortName               string    `json:"shortName"`
	LongName                string    `json:"longName"`
	Type                    FieldType `json:"type"`
	Custom                  bool      `json:"custom"`
	Required                bool      `json:"required,omitempty"`
	SelectOptions           []string  `json:"selectOptions,omitempty"`
	AssociatedIncidentTypes []string  `json:"associatedIncidentTypes,omitempty"`
	AssociatedToAll         bool      `json:"associatedToAll"`
}

// AppliesTo reports whether the field is associated with the incident type.
// An empty incident type matches every field.
func (s FieldSchema) AppliesTo(incidentType string) bool {
	if incidentType == "" || s.AssociatedToAll {
		return true
	}
	for _, t := range s.AssociatedIncidentTypes {
		if t == incidentType {
			return true
		}
	}
	return false
}

// HasOption reports whether v is one of the field's select options. Fields
// without options accept anything.
func (s FieldSchema) HasOption(v string) bool {
	if len(s.SelectOptions) == 0 {
		return true
	}
	for _, o := range s.SelectOptions {
		if o == v {
			return true
		}
	}
	return false
}

// IndexSchema builds a lookup of schemas by short name.
func IndexSchema(schema []FieldSchema) map[string]FieldSchema {
	idx := make(map[string]FieldSchema, len(schema))
	for _, s := range schema {
		idx[s.ShortName] = s
	}
	return idx
}

// IncidentType is an XSOAR incident type as listed by the server.
type IncidentType struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Disabled   bool   `json:"disabled,omitempty"`
	PlaybookID string `json:"playbookId,omitempty"`
}
