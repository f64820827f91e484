package library

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/alfredjeanlab/feeder/internal/idgen"
	"github.com/alfredjeanlab/feeder/internal/mapping"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// ErrNoBlobStore is returned by attachment operations on a library built
// without a blob store.
var ErrNoBlobStore = errors.New("no attachment storage configured")

// AttachmentOptions carry the metadata stored with a new attachment.
type AttachmentOptions struct {
	MediaFile   bool
	Comment     string
	ContentType string
}

// AddAttachment stores file content and its metadata under a new ID.
func (l *Library) AddAttachment(ctx context.Context, filename string, data []byte, opts AttachmentOptions) (*model.Attachment, error) {
	if l.blobs == nil {
		return nil, ErrNoBlobStore
	}
	id, err := idgen.Generate()
	if err != nil {
		return nil, err
	}
	contentType := opts.ContentType
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	a := &model.Attachment{
		ID:          id,
		Filename:    filename,
		MediaFile:   opts.MediaFile,
		Comment:     opts.Comment,
		ContentType: contentType,
		Size:        int64(len(data)),
		CreatedAt:   l.now().UTC(),
	}
	if err := model.ValidateAttachment(a); err != nil {
		return nil, err
	}
	if err := l.blobs.Put(ctx, id, data, contentType); err != nil {
		return nil, fmt.Errorf("store attachment content: %w", err)
	}
	if err := putJSON(ctx, l.store, key(NamespaceAttachment, id), a); err != nil {
		if derr := l.blobs.Delete(ctx, id); derr != nil {
			l.logger.Warn("orphaned attachment blob", "id", id, "err", derr)
		}
		return nil, err
	}
	return a, nil
}

// GetAttachment returns attachment metadata.
func (l *Library) GetAttachment(ctx context.Context, id string) (*model.Attachment, error) {
	var a model.Attachment
	if err := getJSON(ctx, l.store, key(NamespaceAttachment, id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// AttachmentContent returns attachment metadata and content.
func (l *Library) AttachmentContent(ctx context.Context, id string) (*model.Attachment, []byte, error) {
	if l.blobs == nil {
		return nil, nil, ErrNoBlobStore
	}
	a, err := l.GetAttachment(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := l.blobs.Get(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("read attachment %s: %w", id, err)
	}
	return a, data, nil
}

// ListAttachments returns the metadata of every attachment ordered by ID.
func (l *Library) ListAttachments(ctx context.Context) ([]*model.Attachment, error) {
	return listJSON[model.Attachment](ctx, l.store, NamespaceAttachment)
}

// DeleteAttachment removes an attachment and strips every reference to it
// from saved mapping configs, in one transaction. The content is deleted
// after the transaction commits.
func (l *Library) DeleteAttachment(ctx context.Context, id string) error {
	var stripped int
	err := l.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := deleteKey(ctx, tx, key(NamespaceAttachment, id)); err != nil {
			return err
		}
		n, err := stripAttachmentRefs(ctx, tx, id)
		stripped = n
		return err
	})
	if err != nil {
		return err
	}
	l.logger.Debug("attachment deleted", "id", id, "configs_updated", stripped)
	if l.blobs != nil {
		if err := l.blobs.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete attachment content: %w", err)
		}
	}
	return nil
}

// stripAttachmentRefs removes id from every mapping config and returns how
// many configs changed.
func stripAttachmentRefs(ctx context.Context, tx store.Store, id string) (int, error) {
	configs, err := listJSON[model.MappingConfig](ctx, tx, NamespaceIncident)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range configs {
		if !mapping.StripAttachment(c, id) {
			continue
		}
		if err := putJSON(ctx, tx, key(NamespaceIncident, c.Name), c); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
