// Package blob stores attachment content. Metadata lives in the config
// store; this package only moves bytes.
package blob

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored content.
var ErrNotFound = errors.New("blob not found")

// Store is a flat key to bytes store.
type Store interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Get returns ErrNotFound for a missing key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
}
