package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dgallion1/docextract/internal/config"
	"github.com/dgallion1/docextract/internal/convert"
	"github.com/dgallion1/docextract/internal/document"
	"github.com/dgallion1/docextract/internal/history"
)

type memLedger struct {
	mu      sync.Mutex
	entries []history.Entry
	fail    error
}

func (l *memLedger) Record(ctx context.Context, e history.Entry) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return 0, l.fail
	}
	l.entries = append(l.entries, e)
	return int64(len(l.entries)), nil
}

func (l *memLedger) all() []history.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]history.Entry(nil), l.entries...)
}

func TestWorker_ProcessRecordsHistory(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "upload", "memo.txt")
	if err := os.MkdirAll(filepath.Dir(input), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, []byte("Total: 1500"), 0o644); err != nil {
		t.Fatal(err)
	}

	ledger := &memLedger{}
	w := NewWorker(func() convert.Converter { return convert.New(convert.Options{}) }, ledger, nil)
	job := NewJob("memo.txt", input, filepath.Join(dir, "out"), DefaultExportOptions())
	job.RemoveInputWhenDone()

	w.Process(context.Background(), job)

	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed, got %q (%s)", snap.Status, snap.Stage)
	}
	if snap.Result == nil || snap.Result.ValueCount != 1 {
		t.Errorf("expected one extracted value, got %+v", snap.Result)
	}
	if sum := sha256.Sum256([]byte("Total: 1500")); snap.ContentHash != hex.EncodeToString(sum[:]) {
		t.Errorf("unexpected content hash %q", snap.ContentHash)
	}

	entries := ledger.all()
	if len(entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(entries))
	}
	if entries[0].JobID != job.ID || !entries[0].Success || entries[0].ValueCount != 1 {
		t.Errorf("unexpected ledger entry %+v", entries[0])
	}
	if _, err := os.Stat(filepath.Dir(input)); !os.IsNotExist(err) {
		t.Error("expected upload folder to be removed")
	}
}

func TestWorker_LedgerFailureDoesNotFailJob(t *testing.T) {
	doc := &document.Document{Sections: []*document.Section{{Text: "x"}}}
	ledger := &memLedger{fail: errors.New("disk full")}
	w := NewWorker(func() convert.Converter { return &fakeConverter{doc: doc} }, ledger, nil)
	job := NewJob("a.txt", filepath.Join(t.TempDir(), "a.txt"), t.TempDir(), DefaultExportOptions())

	w.Process(context.Background(), job)
	if job.Snapshot().Status != StatusCompleted {
		t.Errorf("expected completed, got %q", job.Snapshot().Status)
	}
}

func testConfig() config.Config {
	return config.Config{
		WorkerCount:  1,
		MaxQueueSize: 1,
		JobTTL:       time.Hour,
	}
}

func waitFor(t *testing.T, job *Job) JobSnapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap := job.Snapshot()
		if snap.Status == StatusCompleted || snap.Status == StatusFailed {
			return snap
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", job.ID)
	return JobSnapshot{}
}

func TestOrchestrator_SubmitAndComplete(t *testing.T) {
	ledger := &memLedger{}
	o := NewOrchestrator(testConfig(), ledger, nil)
	o.newConverter = func() convert.Converter {
		return &fakeConverter{doc: &document.Document{Tables: []document.Table{document.GridTable{{"a"}}}}}
	}
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("t.csv", "t.csv", t.TempDir(), DefaultExportOptions())
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if o.GetJob(job.ID) != job {
		t.Error("expected job to be registered")
	}

	snap := waitFor(t, job)
	if snap.Status != StatusCompleted || snap.Result.TableCount != 1 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestOrchestrator_ConversionFailure(t *testing.T) {
	o := NewOrchestrator(testConfig(), nil, nil)
	o.newConverter = func() convert.Converter { return &fakeConverter{err: errors.New("bad file")} }
	o.Start(context.Background())
	defer o.Stop()

	job := NewJob("x.pdf", "x.pdf", t.TempDir(), DefaultExportOptions())
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	snap := waitFor(t, job)
	if snap.Status != StatusFailed {
		t.Errorf("expected failed, got %q", snap.Status)
	}
	if snap.Result.Message != "Error processing x.pdf: bad file" {
		t.Errorf("unexpected message %q", snap.Result.Message)
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	o := NewOrchestrator(testConfig(), nil, nil)
	// Not started: nothing drains the queue.
	if err := o.Submit(NewJob("a.txt", "a.txt", t.TempDir(), DefaultExportOptions())); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	job := NewJob("b.txt", "b.txt", t.TempDir(), DefaultExportOptions())
	if err := o.Submit(job); err == nil {
		t.Fatal("expected queue full error")
	}
	if job.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", job.Snapshot().Status)
	}
	if o.QueueDepth() != 1 {
		t.Errorf("expected depth 1, got %d", o.QueueDepth())
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.Config{ExportJSON: true, ExportExcel: true, ExtractValues: true}
	opts := OptionsFromConfig(cfg)
	want := ExportOptions{JSON: true, Excel: true, ExtractValues: true}
	if opts != want {
		t.Errorf("expected %+v, got %+v", want, opts)
	}
}

func TestWorker_OnProgress(t *testing.T) {
	w := NewWorker(func() convert.Converter {
		return &fakeConverter{doc: &document.Document{Tables: []document.Table{document.GridTable{{"a"}}}}}
	}, nil, nil)
	var seen progressLog
	w.OnProgress(seen.record)

	job := NewJob("t.csv", "t.csv", t.TempDir(), DefaultExportOptions())
	w.Process(context.Background(), job)

	if len(seen.percents) == 0 || seen.percents[len(seen.percents)-1] != PercentComplete {
		t.Errorf("unexpected observed progress %v", seen.percents)
	}
	if job.Snapshot().Percent != 100 {
		t.Errorf("expected job percent 100, got %d", job.Snapshot().Percent)
	}
}

func TestOrchestrator_StopFailsQueuedJobs(t *testing.T) {
	o := NewOrchestrator(testConfig(), nil, nil)
	upload := filepath.Join(t.TempDir(), "uploads", "a")
	input := filepath.Join(upload, "a.txt")
	if err := os.MkdirAll(upload, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(input, []byte("Total: 1500"), 0o644); err != nil {
		t.Fatal(err)
	}
	// Not started: the job stays queued until Stop.
	job := NewJob("a.txt", input, t.TempDir(), DefaultExportOptions())
	job.RemoveInputWhenDone()
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}
	o.Stop()
	o.Stop()

	snap := job.Snapshot()
	if snap.Status != StatusFailed || snap.Stage != "shutdown" {
		t.Errorf("expected failed/shutdown, got %s/%s", snap.Status, snap.Stage)
	}
	if _, err := os.Stat(upload); !os.IsNotExist(err) {
		t.Error("expected upload folder of the dropped job to be removed")
	}

	late := NewJob("b.txt", "b.txt", t.TempDir(), DefaultExportOptions())
	if err := o.Submit(late); !errors.Is(err, ErrStopped) {
		t.Errorf("expected ErrStopped, got %v", err)
	}
	if o.GetJob(late.ID) == nil {
		t.Error("expected rejected job to stay visible")
	}
}
