package submit

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"

	"github.com/alfredjeanlab/feeder/internal/events"
	"github.com/alfredjeanlab/feeder/internal/model"
)

// RawDocument is a named JSON document for raw bulk submission.
type RawDocument struct {
	Name     string
	Document json.RawMessage
}

// Bulk submits every config to every target. Each pair is prepared and
// submitted in its own goroutine against its own session; one pair's
// failure does not affect the others. Results are ordered config-major.
// The run is recorded in the library; a failure to record it is logged.
func (s *Submitter) Bulk(ctx context.Context, configs []*model.MappingConfig, targets []Target) *model.Run {
	names := make([]string, len(configs))
	for i, c := range configs {
		names[i] = c.Name
	}
	return s.run(ctx, names, targets, func(ctx context.Context, i int, t Target, runID string) *model.PairResult {
		cfg := configs[i]
		sub, err := s.Prepare(ctx, cfg, t)
		if err != nil {
			pr := &model.PairResult{Config: cfg.Name, Server: t.Name, StartedAt: s.now().UTC()}
			return s.fail(ctx, pr, runID, err.Error())
		}
		return s.submit(ctx, t, sub, runID)
	})
}

// BulkRaw submits every document to every target through the server's
// own mapping.
func (s *Submitter) BulkRaw(ctx context.Context, docs []RawDocument, targets []Target) *model.Run {
	names := make([]string, len(docs))
	for i, d := range docs {
		names[i] = d.Name
	}
	return s.run(ctx, names, targets, func(ctx context.Context, i int, t Target, runID string) *model.PairResult {
		return s.submitRaw(ctx, t, docs[i].Name, docs[i].Document, runID)
	})
}

type pairFunc func(ctx context.Context, item int, t Target, runID string) *model.PairResult

func (s *Submitter) run(ctx context.Context, items []string, targets []Target, fn pairFunc) *model.Run {
	run := &model.Run{ID: uuid.NewString(), StartedAt: s.now().UTC()}
	serverNames := make([]string, len(targets))
	for i, t := range targets {
		serverNames[i] = t.Name
	}
	s.publish(ctx, events.TopicRunStarted, events.RunStarted{
		RunID: run.ID, Configs: items, Servers: serverNames,
	})
	s.logger.Info("bulk run started", "run", run.ID, "configs", len(items), "servers", len(targets))

	results := make([]model.PairResult, len(items)*len(targets))
	var wg sync.WaitGroup
	for i := range items {
		for j, t := range targets {
			wg.Add(1)
			go func(slot, item int, t Target) {
				defer wg.Done()
				results[slot] = *fn(ctx, item, t, run.ID)
			}(i*len(targets)+j, i, t)
		}
	}
	wg.Wait()

	run.Results = results
	run.FinishedAt = s.now().UTC()
	s.logger.Info("bulk run finished", "run", run.ID, "pairs", len(results), "failed", run.Failed())
	if err := s.lib.SaveRun(ctx, run); err != nil {
		s.logger.Warn("recording run", "run", run.ID, "err", err)
	}
	s.publish(ctx, events.TopicRunFinished, events.RunFinished{Run: run})
	return run
}
