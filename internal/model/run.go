package model

import "time"

// PairResult is the outcome of submitting one mapping config to one server.
type PairResult struct {
	Config      string    `json:"config"`
	Server      string    `json:"server"`
	IncidentID  string    `json:"incidentId,omitempty"`
	Success     bool      `json:"success"`
	StatusCode  int       `json:"statusCode,omitempty"`
	Error       string    `json:"error,omitempty"`
	Attachments int       `json:"attachments,omitempty"`
	Omitted     []string  `json:"omitted,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// Run is one bulk submission: every selected config against every
// selected server.
type Run struct {
	ID         string       `json:"id"`
	StartedAt  time.Time    `json:"startedAt"`
	FinishedAt time.Time    `json:"finishedAt"`
	Results    []PairResult `json:"results"`
}

// Failed counts the pairs that did not succeed.
func (r *Run) Failed() int {
	n := 0
	for _, res := range r.Results {
		if !res.Success {
			n++
		}
	}
	return n
}
