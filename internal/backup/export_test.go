package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/feeder/internal/blob"
	"github.com/alfredjeanlab/feeder/internal/model"
)

func nonEmptyLines(s string) []string {
	var out []string
	for _, l := range strings.Split(s, "\n") {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func seedStore() *mockStore {
	ms := newMockStore()
	now := time.Now().UTC()
	ms.configs["incident:phishing"] = &model.Config{Key: "incident:phishing", Value: json.RawMessage(`{"name":"phishing"}`), CreatedAt: now, UpdatedAt: now}
	ms.configs["attachment:att-1"] = &model.Config{Key: "attachment:att-1", Value: json.RawMessage(`{"id":"att-1","filename":"a.txt"}`), CreatedAt: now, UpdatedAt: now}
	ms.configs["json:alert"] = &model.Config{Key: "json:alert", Value: json.RawMessage(`{"name":"alert"}`), CreatedAt: now, UpdatedAt: now}
	return ms
}

func TestExportJSONL_ConfigsOnly(t *testing.T) {
	ms := seedStore()
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, nil, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}

	lines := nonEmptyLines(buf.String())
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d", len(lines))
	}

	var h header
	if err := json.Unmarshal([]byte(lines[0]), &h); err != nil {
		t.Fatalf("unmarshal header: %v", err)
	}
	if h.Type != "header" || h.Version != "1" || h.ConfigCount != 3 || h.BlobCount != 0 {
		t.Fatalf("unexpected header: %+v", h)
	}

	// Records are ordered by key.
	var rec record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("unmarshal record: %v", err)
	}
	var c model.Config
	if err := json.Unmarshal(rec.Data, &c); err != nil {
		t.Fatalf("unmarshal config: %v", err)
	}
	if rec.Type != "config" || c.Key != "attachment:att-1" {
		t.Fatalf("first record = %s %s, want config attachment:att-1", rec.Type, c.Key)
	}
}

func TestExportImport_RoundTripWithBlobs(t *testing.T) {
	ctx := context.Background()
	src := seedStore()
	srcBlobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	if err := srcBlobs.Put(ctx, "att-1", []byte("hello"), "text/plain"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var buf bytes.Buffer
	if err := ExportJSONL(ctx, src, srcBlobs, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if n := len(nonEmptyLines(buf.String())); n != 5 {
		t.Fatalf("expected 5 lines, got %d", n)
	}

	dst := newMockStore()
	dstBlobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	res, err := ImportJSONL(ctx, dst, dstBlobs, &buf)
	if err != nil {
		t.Fatalf("ImportJSONL: %v", err)
	}
	if res.Configs != 3 || res.Blobs != 1 {
		t.Fatalf("result = %+v, want 3 configs and 1 blob", res)
	}

	got, err := dst.GetConfig(ctx, "incident:phishing")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if string(got.Value) != `{"name":"phishing"}` {
		t.Errorf("value = %s", got.Value)
	}
	data, err := dstBlobs.Get(ctx, "att-1")
	if err != nil {
		t.Fatalf("Get blob: %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("blob = %q, want hello", data)
	}
}

func TestExportJSONL_SkipsMissingBlobs(t *testing.T) {
	ms := seedStore()
	blobs, err := blob.NewFSStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFSStore: %v", err)
	}
	var buf bytes.Buffer
	if err := ExportJSONL(context.Background(), ms, blobs, &buf); err != nil {
		t.Fatalf("ExportJSONL: %v", err)
	}
	if n := len(nonEmptyLines(buf.String())); n != 4 {
		t.Fatalf("expected 4 lines, got %d", n)
	}
}

func TestImportJSONL_Rejects(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"no header", `{"type":"config","data":{"key":"a:b","value":{}}}` + "\n"},
		{"bad version", `{"version":"9","type":"header"}` + "\n"},
		{"unknown record", `{"version":"1","type":"header"}` + "\n" + `{"type":"widget","data":{}}` + "\n"},
		{"missing key", `{"version":"1","type":"header"}` + "\n" + `{"type":"config","data":{"value":{}}}` + "\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ms := newMockStore()
			if _, err := ImportJSONL(context.Background(), ms, nil, strings.NewReader(tc.input)); err == nil {
				t.Fatal("expected error")
			}
			if len(ms.configs) != 0 {
				t.Errorf("store modified: %d configs", len(ms.configs))
			}
		})
	}
}

func TestImportJSONL_TransactionError(t *testing.T) {
	ms := newMockStore()
	ms.failTx = errors.New("boom")
	input := `{"version":"1","type":"header"}` + "\n" + `{"type":"config","data":{"key":"json:a","value":{}}}` + "\n"
	res, err := ImportJSONL(context.Background(), ms, nil, strings.NewReader(input))
	if err == nil {
		t.Fatal("expected error")
	}
	if res.Configs != 0 {
		t.Errorf("configs = %d, want 0", res.Configs)
	}
}
