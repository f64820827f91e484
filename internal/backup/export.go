// Package backup exports the store as JSONL, restores it, and pushes
// periodic exports to S3 or a git repository.
package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/alfredjeanlab/feeder/internal/blob"
	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

const formatVersion = "1"

// attachmentPrefix is the store key prefix of attachment metadata; its
// content is exported as blob records.
const attachmentPrefix = "attachment:"

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	ConfigCount int       `json:"config_count"`
	BlobCount   int       `json:"blob_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// blobRecord is attachment content; Data is base64 in JSON.
type blobRecord struct {
	Key  string `json:"key"`
	Data []byte `json:"data"`
}

// ExportJSONL writes every store record, ordered by key, as JSONL to w.
// When blobs is non-nil the content of each attachment follows as a blob
// record.
func ExportJSONL(ctx context.Context, s store.Store, blobs blob.Store, w io.Writer) error {
	configs, err := s.ListAllConfigs(ctx)
	if err != nil {
		return fmt.Errorf("list configs: %w", err)
	}

	var blobRecs []blobRecord
	if blobs != nil {
		for _, c := range configs {
			id, ok := strings.CutPrefix(c.Key, attachmentPrefix)
			if !ok {
				continue
			}
			data, err := blobs.Get(ctx, id)
			if errors.Is(err, blob.ErrNotFound) {
				continue
			}
			if err != nil {
				return fmt.Errorf("read attachment %s: %w", id, err)
			}
			blobRecs = append(blobRecs, blobRecord{Key: id, Data: data})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     formatVersion,
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		ConfigCount: len(configs),
		BlobCount:   len(blobRecs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, c := range configs {
		if err := encodeRecord(enc, "config", c); err != nil {
			return fmt.Errorf("encode config %s: %w", c.Key, err)
		}
	}
	for _, b := range blobRecs {
		if err := encodeRecord(enc, "blob", b); err != nil {
			return fmt.Errorf("encode blob %s: %w", b.Key, err)
		}
	}
	return nil
}

func encodeRecord(enc *json.Encoder, typ string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return enc.Encode(record{Type: typ, Data: data})
}

// ImportResult counts what ImportJSONL restored.
type ImportResult struct {
	Configs int
	Blobs   int
}

// ImportJSONL restores an export. Config records are written in one
// transaction, replacing records with the same key; blob records are
// written to blobs, or skipped when blobs is nil.
func ImportJSONL(ctx context.Context, s store.Store, blobs blob.Store, r io.Reader) (ImportResult, error) {
	var res ImportResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 256*1024*1024)

	var (
		configs []*model.Config
		blobRec []blobRecord
		seenHdr bool
		line    int
	)
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		if !seenHdr {
			var h header
			if err := json.Unmarshal([]byte(text), &h); err != nil || h.Type != "header" {
				return res, fmt.Errorf("line %d: missing export header", line)
			}
			if h.Version != formatVersion {
				return res, fmt.Errorf("unsupported export version %q", h.Version)
			}
			seenHdr = true
			continue
		}
		var rec record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return res, fmt.Errorf("line %d: %w", line, err)
		}
		switch rec.Type {
		case "config":
			var c model.Config
			if err := json.Unmarshal(rec.Data, &c); err != nil {
				return res, fmt.Errorf("line %d: config: %w", line, err)
			}
			if c.Key == "" {
				return res, fmt.Errorf("line %d: config without key", line)
			}
			configs = append(configs, &c)
		case "blob":
			var b blobRecord
			if err := json.Unmarshal(rec.Data, &b); err != nil {
				return res, fmt.Errorf("line %d: blob: %w", line, err)
			}
			blobRec = append(blobRec, b)
		default:
			return res, fmt.Errorf("line %d: unknown record type %q", line, rec.Type)
		}
	}
	if err := sc.Err(); err != nil {
		return res, fmt.Errorf("reading export: %w", err)
	}
	if !seenHdr {
		return res, errors.New("empty export")
	}

	if blobs != nil {
		for _, b := range blobRec {
			if err := blobs.Put(ctx, b.Key, b.Data, ""); err != nil {
				return res, fmt.Errorf("restore attachment %s: %w", b.Key, err)
			}
			res.Blobs++
		}
	}
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		for _, c := range configs {
			if err := tx.SetConfig(ctx, &model.Config{Key: c.Key, Value: c.Value}); err != nil {
				return fmt.Errorf("restore %s: %w", c.Key, err)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}
	res.Configs = len(configs)
	return res, nil
}
