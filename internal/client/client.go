// Package client talks to the XSOAR REST API: field and incident type
// discovery, incident creation, attachment upload and investigation start.
package client

import (
	"context"
	"encoding/json"

	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// XSOARClient is what the submitter and the CLI need from a server. It is
// implemented by HTTPClient.
type XSOARClient interface {
	// Discovery
	TestConnection(ctx context.Context) (*About, error)
	FetchFieldDefinitions(ctx context.Context) ([]model.FieldSchema, error)
	FetchIncidentTypes(ctx context.Context) ([]model.IncidentType, error)

	// Submission. Failures, transport errors included, are reported in the
	// Result rather than returned.
	CreateIncident(ctx context.Context, payload jsonval.Value) Result
	CreateFromRawJSON(ctx context.Context, doc json.RawMessage) Result
	UploadAttachment(ctx context.Context, req *UploadRequest) Result
	CreateInvestigation(ctx context.Context, incidentID string, version int) Result
}

// Result is the outcome of one submission call.
type Result struct {
	ID         string `json:"id,omitempty"`
	Version    int    `json:"version,omitempty"`
	Success    bool   `json:"success"`
	StatusCode int    `json:"statusCode,omitempty"`
	Error      string `json:"error,omitempty"`
}

// UploadRequest is one file attached to an incident field.
type UploadRequest struct {
	IncidentID string
	Field      string
	Filename   string
	Comment    string
	MediaFile  bool
	// Last marks the final upload to Field; the server finalizes the
	// field's attachment list on it.
	Last    bool
	Content []byte
}

// About is the server's /about response.
type About struct {
	Version        string `json:"demistoVersion"`
	BuildNumber    string `json:"buildNumber,omitempty"`
	DeploymentMode string `json:"deploymentMode,omitempty"`
}
