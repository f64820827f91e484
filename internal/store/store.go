// Package store defines the persistence interface for saved feeder state:
// mapping configs, JSON documents, groups, attachment metadata and run
// history, all kept as namespaced JSON records.
package store

import (
	"context"

	"github.com/alfredjeanlab/feeder/internal/model"
)

// Store is a key-value store of JSON records. Keys use the format
// "{namespace}:{name}". Writes are last-write-wins.
type Store interface {
	// SetConfig inserts or replaces the record at config.Key and fills in
	// its timestamps.
	SetConfig(ctx context.Context, config *model.Config) error
	// GetConfig returns sql.ErrNoRows when the key does not exist.
	GetConfig(ctx context.Context, key string) (*model.Config, error)
	// ListConfigs returns the records of one namespace ordered by key.
	ListConfigs(ctx context.Context, namespace string) ([]*model.Config, error)
	ListAllConfigs(ctx context.Context) ([]*model.Config, error)
	// DeleteConfig returns sql.ErrNoRows when the key does not exist.
	DeleteConfig(ctx context.Context, key string) error

	// Transaction support
	RunInTransaction(ctx context.Context, fn func(tx Store) error) error

	// Lifecycle
	Close() error
}
