// Package events publishes submission progress to an event bus so other
// processes (dashboards, a second operator's "feeder watch") can follow it.
package events

import (
	"context"

	"github.com/alfredjeanlab/feeder/internal/model"
)

// Event topic constants
const (
	TopicIncidentCreated     = "feeder.incident.created"
	TopicIncidentFailed      = "feeder.incident.failed"
	TopicAttachmentUploaded  = "feeder.attachment.uploaded"
	TopicInvestigationOpened = "feeder.investigation.opened"

	// Bulk run lifecycle
	TopicRunStarted  = "feeder.run.started"
	TopicRunFinished = "feeder.run.finished"
)

// TopicAll matches every feeder topic.
const TopicAll = "feeder.>"

// Event types

type IncidentCreated struct {
	Config     string   `json:"config,omitempty"`
	Server     string   `json:"server"`
	IncidentID string   `json:"incident_id"`
	Omitted    []string `json:"omitted,omitempty"`
	RunID      string   `json:"run_id,omitempty"`
}

type IncidentFailed struct {
	Config     string `json:"config,omitempty"`
	Server     string `json:"server"`
	StatusCode int    `json:"status_code,omitempty"`
	Error      string `json:"error"`
	RunID      string `json:"run_id,omitempty"`
}

type AttachmentUploaded struct {
	Server       string `json:"server"`
	IncidentID   string `json:"incident_id"`
	Field        string `json:"field"`
	AttachmentID string `json:"attachment_id"`
	Last         bool   `json:"last"`
}

type InvestigationOpened struct {
	Server     string `json:"server"`
	IncidentID string `json:"incident_id"`
}

type RunStarted struct {
	RunID   string   `json:"run_id"`
	Configs []string `json:"configs"`
	Servers []string `json:"servers"`
}

type RunFinished struct {
	Run *model.Run `json:"run"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
