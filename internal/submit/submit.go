// Package submit sends mapped incidents to XSOAR servers: create the
// incident, upload its attachments in plan order, then optionally open an
// investigation. Bulk runs fan out one goroutine per (config, server) pair.
package submit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/feeder/internal/client"
	"github.com/alfredjeanlab/feeder/internal/events"
	"github.com/alfredjeanlab/feeder/internal/jsonval"
	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// Library is the saved state a Submitter reads and writes.
type Library interface {
	LoadDocument(ctx context.Context, name string) (jsonval.Value, error)
	ListAttachments(ctx context.Context) ([]*model.Attachment, error)
	AttachmentContent(ctx context.Context, id string) (*model.Attachment, []byte, error)
	SaveRun(ctx context.Context, run *model.Run) error
}

// Target is a named server to submit to.
type Target struct {
	Name   string
	Client client.XSOARClient
}

// Submission is one incident ready to send.
type Submission struct {
	Config      string
	Payload     mapping.Payload
	Uploads     []mapping.AttachmentUpload
	Investigate bool
}

// Options configure a Submitter.
type Options struct {
	Publisher events.Publisher
	Logger    *slog.Logger
	// LastFlag is the attachment last-flag policy of prepared sessions.
	LastFlag mapping.LastFlagPolicy
	Now      func() time.Time
}

// Submitter sends incidents. It holds no per-submission state and is safe
// for concurrent use.
type Submitter struct {
	lib       Library
	publisher events.Publisher
	logger    *slog.Logger
	lastFlag  mapping.LastFlagPolicy
	now       func() time.Time
}

// New creates a Submitter reading saved state from lib.
func New(lib Library, opts Options) *Submitter {
	s := &Submitter{
		lib:       lib,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		lastFlag:  opts.LastFlag,
		now:       opts.Now,
	}
	if s.publisher == nil {
		s.publisher = &events.NoopPublisher{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Prepare builds a Submission from a saved config against the target's
// current schema. The config's default JSON document, if any, is the
// source document.
func (s *Submitter) Prepare(ctx context.Context, cfg *model.MappingConfig, t Target) (*Submission, error) {
	schema, err := t.Client.FetchFieldDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("server %s: %w", t.Name, err)
	}
	atts, err := s.lib.ListAttachments(ctx)
	if err != nil {
		return nil, err
	}
	catalog := make([]model.Attachment, len(atts))
	for i, a := range atts {
		catalog[i] = *a
	}

	sess := mapping.NewSession(schema, mapping.Options{
		IncidentType:  cfg.IncidentType,
		DefaultFields: []string{},
		LastFlag:      s.lastFlag,
		Now:           s.now,
	})
	sess.SetAttachmentCatalog(catalog)
	sess.LoadConfig(*cfg)
	if cfg.DefaultJSONConfig != "" {
		doc, err := s.lib.LoadDocument(ctx, cfg.DefaultJSONConfig)
		if err != nil {
			return nil, err
		}
		sess.SetDocument(doc)
	}
	return FromSession(cfg.Name, sess, cfg.CreateInvestigation), nil
}

// FromSession captures a session's payload and attachment plan.
func FromSession(config string, sess *mapping.Session, investigate bool) *Submission {
	return &Submission{
		Config:      config,
		Payload:     sess.AssemblePayload(),
		Uploads:     sess.AttachmentPlan(),
		Investigate: investigate,
	}
}

// Submit sends one incident to one server. The result is never nil; a
// failed attachment upload or investigation fails the pair but keeps the
// created incident's ID.
func (s *Submitter) Submit(ctx context.Context, t Target, sub *Submission) *model.PairResult {
	return s.submit(ctx, t, sub, "")
}

func (s *Submitter) submit(ctx context.Context, t Target, sub *Submission, runID string) *model.PairResult {
	pr := &model.PairResult{
		Config:    sub.Config,
		Server:    t.Name,
		Omitted:   sub.Payload.Omitted(),
		StartedAt: s.now().UTC(),
	}
	for _, d := range sub.Payload.Diagnostics {
		s.logger.Debug("field diagnostic", "server", t.Name, "config", sub.Config,
			"field", d.Field, "kind", d.Kind, "omitted", d.Omitted, "message", d.Message)
	}

	res := t.Client.CreateIncident(ctx, sub.Payload.Document)
	pr.StatusCode = res.StatusCode
	if !res.Success {
		return s.fail(ctx, pr, runID, res.Error)
	}
	pr.IncidentID = res.ID
	version := res.Version

	for _, up := range sub.Uploads {
		att, data, err := s.lib.AttachmentContent(ctx, up.Ref.AttachmentID)
		if err != nil {
			return s.fail(ctx, pr, runID, fmt.Sprintf("attachment %s: %v", up.Ref.AttachmentID, err))
		}
		filename, media, comment := up.Ref.Effective(*att)
		ur := t.Client.UploadAttachment(ctx, &client.UploadRequest{
			IncidentID: pr.IncidentID,
			Field:      up.Field,
			Filename:   filename,
			Comment:    comment,
			MediaFile:  media,
			Last:       up.Last,
			Content:    data,
		})
		if !ur.Success {
			pr.StatusCode = ur.StatusCode
			return s.fail(ctx, pr, runID, fmt.Sprintf("upload %s to %s: %s", filename, up.Field, ur.Error))
		}
		if ur.Version > 0 {
			version = ur.Version
		}
		pr.Attachments++
		s.publish(ctx, events.TopicAttachmentUploaded, events.AttachmentUploaded{
			Server: t.Name, IncidentID: pr.IncidentID, Field: up.Field,
			AttachmentID: up.Ref.AttachmentID, Last: up.Last,
		})
	}

	if sub.Investigate {
		ir := t.Client.CreateInvestigation(ctx, pr.IncidentID, version)
		if !ir.Success {
			pr.StatusCode = ir.StatusCode
			return s.fail(ctx, pr, runID, "create investigation: "+ir.Error)
		}
		s.publish(ctx, events.TopicInvestigationOpened, events.InvestigationOpened{
			Server: t.Name, IncidentID: pr.IncidentID,
		})
	}

	pr.Success = true
	pr.FinishedAt = s.now().UTC()
	s.logger.Info("incident created", "server", t.Name, "config", sub.Config,
		"incident", pr.IncidentID, "attachments", pr.Attachments, "omitted", len(pr.Omitted))
	s.publish(ctx, events.TopicIncidentCreated, events.IncidentCreated{
		Config: sub.Config, Server: t.Name, IncidentID: pr.IncidentID,
		Omitted: pr.Omitted, RunID: runID,
	})
	return pr
}

// SubmitRaw sends a JSON document to the server's own mapping, bypassing
// the field mapping engine. name labels the result.
func (s *Submitter) SubmitRaw(ctx context.Context, t Target, name string, doc json.RawMessage) *model.PairResult {
	return s.submitRaw(ctx, t, name, doc, "")
}

func (s *Submitter) submitRaw(ctx context.Context, t Target, name string, doc json.RawMessage, runID string) *model.PairResult {
	pr := &model.PairResult{Config: name, Server: t.Name, StartedAt: s.now().UTC()}
	res := t.Client.CreateFromRawJSON(ctx, doc)
	pr.StatusCode = res.StatusCode
	if !res.Success {
		return s.fail(ctx, pr, runID, res.Error)
	}
	pr.IncidentID = res.ID
	pr.Success = true
	pr.FinishedAt = s.now().UTC()
	s.logger.Info("incident created from raw JSON", "server", t.Name, "document", name, "incident", pr.IncidentID)
	s.publish(ctx, events.TopicIncidentCreated, events.IncidentCreated{
		Config: name, Server: t.Name, IncidentID: pr.IncidentID, RunID: runID,
	})
	return pr
}

func (s *Submitter) fail(ctx context.Context, pr *model.PairResult, runID, msg string) *model.PairResult {
	pr.Success = false
	pr.Error = msg
	pr.FinishedAt = s.now().UTC()
	s.logger.Warn("submission failed", "server", pr.Server, "config", pr.Config,
		"incident", pr.IncidentID, "status", pr.StatusCode, "err", msg)
	s.publish(ctx, events.TopicIncidentFailed, events.IncidentFailed{
		Config: pr.Config, Server: pr.Server, StatusCode: pr.StatusCode, Error: msg, RunID: runID,
	})
	return pr
}

func (s *Submitter) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("publishing event", "topic", topic, "err", err)
	}
}
