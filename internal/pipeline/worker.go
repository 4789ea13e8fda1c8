package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dgallion1/docextract/internal/convert"
	"github.com/dgallion1/docextract/internal/history"
)

// Ledger records finished documents.
type Ledger interface {
	Record(ctx context.Context, e history.Entry) (int64, error)
}

// ConverterFactory creates the converter a single job owns.
type ConverterFactory func() convert.Converter

// Worker processes a single document job.
type Worker struct {
	newConverter ConverterFactory
	ledger       Ledger
	log          *slog.Logger
	onProgress   ProgressFunc
}

// NewWorker creates a Worker. A nil ledger skips recording.
func NewWorker(newConverter ConverterFactory, ledger Ledger, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.Default()
	}
	return &Worker{
		newConverter: newConverter,
		ledger:       ledger,
		log:          log,
	}
}

// OnProgress registers fn to observe progress notifications alongside the
// job's own state.
func (w *Worker) OnProgress(fn ProgressFunc) {
	w.onProgress = fn
}

// Process runs the export pipeline for a job and records the outcome.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)
	input := job.InputPath()

	job.mu.Lock()
	removeInput := job.removeInput
	job.mu.Unlock()
	if removeInput {
		defer func() {
			if err := os.RemoveAll(filepath.Dir(input)); err != nil {
				log.Warn("remove upload", "error", err)
			}
		}()
	}

	job.SetStatus(StatusProcessing, "starting")
	if h, err := FileHash(input); err != nil {
		log.Warn("hash input", "error", err)
	} else {
		job.SetContentHash(h)
	}

	start := time.Now()
	progress := job.SetProgress
	if w.onProgress != nil {
		progress = func(message string, percent int) {
			job.SetProgress(message, percent)
			w.onProgress(message, percent)
		}
	}

	proc := NewProcessor(w.newConverter(), log)
	res := proc.Process(ctx, input, job.OutputDir(), job.Options, progress)
	job.Finish(res)
	log.Info("job finished",
		"success", res.Success,
		"outputs", len(res.OutputFiles),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)

	if w.ledger == nil {
		return
	}
	snap := job.Snapshot()
	entry := history.Entry{
		JobID:        snap.ID,
		Filename:     snap.Filename,
		ContentHash:  snap.ContentHash,
		OutputDir:    job.OutputDir(),
		Success:      res.Success,
		Message:      res.Message,
		OutputFiles:  res.OutputFiles,
		TableCount:   res.TableCount,
		PageCount:    res.PageCount,
		PictureCount: res.PictureCount,
		ValueCount:   res.ValueCount,
	}
	if err := w.record(context.WithoutCancel(ctx), entry); err != nil {
		log.Error("record history failed", "error", err)
	}
}

// record writes the ledger row, retrying on lock contention.
func (w *Worker) record(ctx context.Context, e history.Entry) error {
	var lastErr error
	for attempt := range MaxRetries {
		_, lastErr = w.ledger.Record(ctx, e)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		w.log.Warn("retryable history error", "attempt", attempt, "error", lastErr)
		select {
		case <-time.After(Backoff(attempt)):
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		}
	}
	return fmt.Errorf("after %d attempts: %w", MaxRetries, lastErr)
}
