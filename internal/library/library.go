// Package library is typed access to everything an operator saves:
// mapping configs, JSON documents, JSON groups, attachments and bulk run
// history. Records live in a store.Store under namespaced keys; deletes
// run the referential-integrity passes that keep other records consistent.
package library

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/feeder/internal/blob"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// Key namespaces.
const (
	NamespaceIncident   = "incident"
	NamespaceJSON       = "json"
	NamespaceGroup      = "group"
	NamespaceAttachment = "attachment"
	NamespaceRun        = "run"
)

// ErrNotFound is returned when a named record does not exist.
var ErrNotFound = errors.New("not found")

// Library wraps a config store and a blob store.
type Library struct {
	store  store.Store
	blobs  blob.Store
	logger *slog.Logger
	now    func() time.Time
}

// New returns a Library over s. blobs may be nil if attachments are not
// used.
func New(s store.Store, blobs blob.Store, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	return &Library{store: s, blobs: blobs, logger: logger, now: time.Now}
}

// Store returns the underlying config store.
func (l *Library) Store() store.Store { return l.store }

func key(namespace, name string) string {
	return namespace + ":" + name
}

func getJSON(ctx context.Context, s store.Store, k string, v any) error {
	c, err := s.GetConfig(ctx, k)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", k, err)
	}
	if err := json.Unmarshal(c.Value, v); err != nil {
		return fmt.Errorf("decode %s: %w", k, err)
	}
	return nil
}

func putJSON(ctx context.Context, s store.Store, k string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", k, err)
	}
	if err := s.SetConfig(ctx, &model.Config{Key: k, Value: data}); err != nil {
		return fmt.Errorf("put %s: %w", k, err)
	}
	return nil
}

func deleteKey(ctx context.Context, s store.Store, k string) error {
	err := s.DeleteConfig(ctx, k)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrNotFound, k)
	}
	if err != nil {
		return fmt.Errorf("delete %s: %w", k, err)
	}
	return nil
}

func exists(ctx context.Context, s store.Store, k string) (bool, error) {
	_, err := s.GetConfig(ctx, k)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", k, err)
	}
	return true, nil
}

// listJSON decodes every record of a namespace.
func listJSON[T any](ctx context.Context, s store.Store, namespace string) ([]*T, error) {
	configs, err := s.ListConfigs(ctx, namespace)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", namespace, err)
	}
	out := make([]*T, 0, len(configs))
	for _, c := range configs {
		var v T
		if err := json.Unmarshal(c.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.Key, err)
		}
		out = append(out, &v)
	}
	return out, nil
}
