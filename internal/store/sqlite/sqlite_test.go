package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alfredjeanlab/feeder/internal/model"
	"github.com/alfredjeanlab/feeder/internal/store"
)

// newTestStore creates an in-memory SQLiteStore with all migrations applied.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})
	return s
}

func put(t *testing.T, s store.Store, key, value string) *model.Config {
	t.Helper()
	c := &model.Config{Key: key, Value: json.RawMessage(value)}
	if err := s.SetConfig(context.Background(), c); err != nil {
		t.Fatalf("SetConfig(%s): %v", key, err)
	}
	return c
}

func TestSetGetConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := put(t, s, "incident:phishing", `{"name":"phishing"}`)
	if c.CreatedAt.IsZero() || c.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}

	got, err := s.GetConfig(ctx, "incident:phishing")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if string(got.Value) != `{"name":"phishing"}` {
		t.Errorf("value = %s", got.Value)
	}

	// Last write wins, created_at is kept.
	again := put(t, s, "incident:phishing", `{"name":"phishing","v":2}`)
	if !again.CreatedAt.Equal(c.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", c.CreatedAt, again.CreatedAt)
	}
	got, _ = s.GetConfig(ctx, "incident:phishing")
	if string(got.Value) != `{"name":"phishing","v":2}` {
		t.Errorf("value after update = %s", got.Value)
	}
}

func TestGetConfig_NotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.GetConfig(context.Background(), "incident:nope"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestListConfigs_ByNamespace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "incident:b", `{}`)
	put(t, s, "incident:a", `{}`)
	put(t, s, "incidents:x", `{}`)
	put(t, s, "Incident:upper", `{}`)
	put(t, s, "json:doc", `{}`)

	got, err := s.ListConfigs(ctx, "incident")
	if err != nil {
		t.Fatalf("ListConfigs: %v", err)
	}
	if len(got) != 2 || got[0].Key != "incident:a" || got[1].Key != "incident:b" {
		t.Fatalf("unexpected configs: %+v", got)
	}

	all, err := s.ListAllConfigs(ctx)
	if err != nil {
		t.Fatalf("ListAllConfigs: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("expected 5 configs, got %d", len(all))
	}
}

func TestDeleteConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "group:nightly", `{"members":[]}`)

	if err := s.DeleteConfig(ctx, "group:nightly"); err != nil {
		t.Fatalf("DeleteConfig: %v", err)
	}
	if err := s.DeleteConfig(ctx, "group:nightly"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestRunInTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	put(t, s, "attachment:att-1", `{}`)

	boom := errors.New("boom")
	err := s.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteConfig(ctx, "attachment:att-1"); err != nil {
			return err
		}
		put(t, tx, "incident:new", `{}`)
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.GetConfig(ctx, "attachment:att-1"); err != nil {
		t.Fatalf("rolled back delete should leave the record: %v", err)
	}
	if _, err := s.GetConfig(ctx, "incident:new"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("rolled back insert should be gone, got %v", err)
	}

	err = s.RunInTransaction(ctx, func(tx store.Store) error {
		return tx.RunInTransaction(ctx, func(inner store.Store) error {
			return inner.DeleteConfig(ctx, "attachment:att-1")
		})
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if _, err := s.GetConfig(ctx, "attachment:att-1"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("committed delete should remove the record, got %v", err)
	}
}

func TestNew_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feeder.db")
	s, err := New(path)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	put(t, s, "json:sample", `{"a":1}`)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s, err = New(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	got, err := s.GetConfig(context.Background(), "json:sample")
	if err != nil {
		t.Fatalf("GetConfig after reopen: %v", err)
	}
	if string(got.Value) != `{"a":1}` {
		t.Errorf("value = %s", got.Value)
	}
}
