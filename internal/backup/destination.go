package backup

import (
	"context"
	"fmt"

	"github.com/alfredjeanlab/feeder/internal/blob"
)

// BlobDestination writes the export as one object of a blob store.
type BlobDestination struct {
	store blob.Store
	key   string
}

// NewBlobDestination writes exports to key in store.
func NewBlobDestination(store blob.Store, key string) *BlobDestination {
	return &BlobDestination{store: store, key: key}
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*BlobDestination, error) {
	s, err := blob.NewS3Store(ctx, bucket, "", region, endpoint)
	if err != nil {
		return nil, err
	}
	return NewBlobDestination(s, key), nil
}

// Write replaces the object with data.
func (d *BlobDestination) Write(ctx context.Context, data []byte) error {
	if err := d.store.Put(ctx, d.key, data, "application/x-ndjson"); err != nil {
		return fmt.Errorf("write backup %s: %w", d.key, err)
	}
	return nil
}
