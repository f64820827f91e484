package library

import (
	"context"
	"sort"

	"github.com/alfredjeanlab/feeder/internal/model"
)

// SaveRun records the outcome of a bulk submission.
func (l *Library) SaveRun(ctx context.Context, run *model.Run) error {
	return putJSON(ctx, l.store, key(NamespaceRun, run.ID), run)
}

// LoadRun returns a recorded run.
func (l *Library) LoadRun(ctx context.Context, id string) (*model.Run, error) {
	var r model.Run
	if err := getJSON(ctx, l.store, key(NamespaceRun, id), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns recorded runs, newest first.
func (l *Library) ListRuns(ctx context.Context) ([]*model.Run, error) {
	runs, err := listJSON[model.Run](ctx, l.store, NamespaceRun)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	return runs, nil
}
