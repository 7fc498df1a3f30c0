package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/theirongolddev/fuelcheck/internal/model"
	"github.com/theirongolddev/fuelcheck/internal/provider"
)

func openTemp(t *testing.T) (*Cache, string) {
	t.Helper()
	path := DefaultPath(t.TempDir())
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, path
}

func TestCacheRoundTrip(t *testing.T) {
	c, _ := openTemp(t)
	ts := time.Date(2025, 9, 11, 18, 25, 40, 123456789, time.UTC)
	records := []model.SessionRecord{
		{SessionID: "2025/09/11/a", SessionFile: "a", Directory: "2025/09/11", Timestamp: ts, Model: "gpt-5",
			InputTokens: 1200, CachedInputTokens: 200, OutputTokens: 500, ReasoningOutputTokens: 64, TotalTokens: 1700},
		{SessionID: "2025/09/11/a", SessionFile: "a", Timestamp: ts.Add(time.Minute), Model: "gpt-5", IsFallbackModel: true,
			InputTokens: 1, OutputTokens: 1, TotalTokens: 2, CacheWrite5mTokens: 3, CacheWrite1hTokens: 4},
	}
	info := FileInfo{MtimeNs: 42, SizeBytes: 1024}
	if err := c.SaveFile(provider.Codex, "/s/a.jsonl", info, records, 0); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	tracked, err := c.TrackedFiles(provider.Codex)
	if err != nil {
		t.Fatalf("TrackedFiles: %v", err)
	}
	if tracked["/s/a.jsonl"] != info {
		t.Errorf("tracked = %+v, want %+v", tracked["/s/a.jsonl"], info)
	}

	got, err := c.LoadRecords(provider.Codex)
	if err != nil {
		t.Fatalf("LoadRecords: %v", err)
	}
	rs := got["/s/a.jsonl"]
	if len(rs) != 2 {
		t.Fatalf("got %d records, want 2", len(rs))
	}
	if rs[0] != records[0] || rs[1] != records[1] {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", rs, records)
	}

	other, err := c.LoadRecords(provider.Claude)
	if err != nil || len(other) != 0 {
		t.Errorf("claude records = %v, %v; want none", other, err)
	}
}

func TestCacheSaveReplaces(t *testing.T) {
	c, _ := openTemp(t)
	ts := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	first := []model.SessionRecord{
		{SessionID: "s", Timestamp: ts, Model: "m"},
		{SessionID: "s", Timestamp: ts, Model: "m"},
	}
	if err := c.SaveFile(provider.Claude, "/p/s.jsonl", FileInfo{MtimeNs: 1, SizeBytes: 1}, first, 0); err != nil {
		t.Fatal(err)
	}
	second := []model.SessionRecord{{SessionID: "s", Timestamp: ts, Model: "m2"}}
	if err := c.SaveFile(provider.Claude, "/p/s.jsonl", FileInfo{MtimeNs: 2, SizeBytes: 2}, second, 1); err != nil {
		t.Fatal(err)
	}

	n, err := c.RecordCount(provider.Claude)
	if err != nil || n != 1 {
		t.Fatalf("RecordCount = %d, %v; want 1", n, err)
	}

	if err := c.DeleteFile("/p/s.jsonl"); err != nil {
		t.Fatal(err)
	}
	if n, _ := c.RecordCount(provider.Claude); n != 0 {
		t.Errorf("records survive file deletion: %d", n)
	}
}

func TestCacheReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "records.db")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	rec := model.SessionRecord{SessionID: "s", Timestamp: time.Unix(1700000000, 0).UTC(), Model: "gpt-5"}
	if err := c.SaveFile(provider.Codex, "/x.jsonl", FileInfo{MtimeNs: 5, SizeBytes: 6}, []model.SessionRecord{rec}, 0); err != nil {
		t.Fatal(err)
	}
	_ = c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = c.Close() }()
	if n, _ := c.RecordCount(provider.Codex); n != 1 {
		t.Errorf("RecordCount after reopen = %d, want 1", n)
	}
}
