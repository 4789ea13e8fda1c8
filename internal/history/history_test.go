package history

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_RecordAndList(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	first := Entry{
		JobID:       "job-1",
		Filename:    "a.pdf",
		ContentHash: "abc",
		OutputDir:   "out/job-1",
		Success:     true,
		Message:     "Successfully processed a.pdf",
		OutputFiles: []string{"out/job-1/a.json", "out/job-1/a.md"},
		TableCount:  2,
		PageCount:   4,
		ProcessedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	id, err := s.Record(ctx, first)
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if id <= 0 {
		t.Errorf("expected positive id, got %d", id)
	}
	if _, err := s.Record(ctx, Entry{JobID: "job-2", Filename: "b.txt", OutputDir: "out/job-2", Message: "Error processing b.txt: boom"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := s.List(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].JobID != "job-2" {
		t.Errorf("expected newest first, got %q", entries[0].JobID)
	}
	if entries[0].OutputFiles == nil || len(entries[0].OutputFiles) != 0 {
		t.Errorf("expected empty output file list, got %v", entries[0].OutputFiles)
	}

	got := entries[1]
	if !got.Success || got.TableCount != 2 || got.PageCount != 4 {
		t.Errorf("unexpected entry %+v", got)
	}
	if len(got.OutputFiles) != 2 || got.OutputFiles[1] != "out/job-1/a.md" {
		t.Errorf("expected output files in order, got %v", got.OutputFiles)
	}
	if !got.ProcessedAt.Equal(first.ProcessedAt) {
		t.Errorf("expected processed_at %v, got %v", first.ProcessedAt, got.ProcessedAt)
	}

	limited, err := s.List(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestStore_Lookups(t *testing.T) {
	s := openTest(t)
	ctx := context.Background()

	if _, err := s.ByJob(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	_, _ = s.Record(ctx, Entry{JobID: "j", Filename: "x.md", ContentHash: "h1", OutputDir: "o", Message: "failed"})
	_, _ = s.Record(ctx, Entry{JobID: "k", Filename: "x.md", ContentHash: "h1", OutputDir: "o", Success: true, Message: "ok"})

	e, err := s.ByJob(ctx, "j")
	if err != nil {
		t.Fatalf("by job: %v", err)
	}
	if e.Success {
		t.Error("expected the failed run for job j")
	}

	e, err = s.LastSuccessByHash(ctx, "h1")
	if err != nil {
		t.Fatalf("by hash: %v", err)
	}
	if e.JobID != "k" {
		t.Errorf("expected job k, got %q", e.JobID)
	}
	if _, err := s.LastSuccessByHash(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	if IsBusy(errors.New("plain")) {
		t.Error("expected plain error not to be busy")
	}
	if IsBusy(nil) {
		t.Error("expected nil not to be busy")
	}
}
