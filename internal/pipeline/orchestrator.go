package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dgallion1/docextract/internal/config"
	"github.com/dgallion1/docextract/internal/convert"
)

// Orchestrator is the batch driver: a bounded queue of jobs drained by a
// fixed worker pool. With one worker, documents run strictly one at a time.
type Orchestrator struct {
	jobs   *JobStore
	queue  chan *Job
	ledger Ledger
	log    *slog.Logger
	cfg    config.Config

	newConverter ConverterFactory

	mu     sync.Mutex
	closed bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ErrStopped is returned by Submit after Stop.
var ErrStopped = errors.New("pipeline is stopped")

// NewOrchestrator creates the pipeline. Call Start to launch workers.
func NewOrchestrator(cfg config.Config, ledger Ledger, log *slog.Logger) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	convOpts := convert.Options{
		FallbackPdftotext: cfg.PDFFallbackPdftotext,
		MaxFileSize:       cfg.MaxUploadBytes,
	}
	return &Orchestrator{
		jobs:   NewJobStore(cfg.JobTTL),
		queue:  make(chan *Job, cfg.MaxQueueSize),
		ledger: ledger,
		log:    log,
		cfg:    cfg,
		newConverter: func() convert.Converter {
			return convert.New(convOpts)
		},
	}
}

// OptionsFromConfig builds the default per-document export options.
func OptionsFromConfig(cfg config.Config) ExportOptions {
	return ExportOptions{
		JSON:          cfg.ExportJSON,
		Markdown:      cfg.ExportMarkdown,
		CSV:           cfg.ExportCSV,
		Excel:         cfg.ExportExcel,
		HTML:          cfg.ExportHTML,
		Images:        cfg.ExportImages,
		ExtractValues: cfg.ExtractValues,
	}
}

// Start launches the workers and the job store janitor.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	workers := max(o.cfg.WorkerCount, 1)
	for id := range workers {
		o.wg.Add(1)
		go o.runWorker(workerCtx, id)
	}
	o.log.Info("pipeline started", "workers", workers, "queue_size", cap(o.queue))

	o.wg.Add(1)
	go o.janitor(workerCtx)
}

func (o *Orchestrator) runWorker(ctx context.Context, id int) {
	defer o.wg.Done()
	w := NewWorker(o.newConverter, o.ledger, o.log.With("worker", id))
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-o.queue:
			if !ok {
				return
			}
			w.Process(ctx, job)
		}
	}
}

// janitor evicts finished jobs older than the TTL.
func (o *Orchestrator) janitor(ctx context.Context) {
	defer o.wg.Done()
	interval := min(max(o.cfg.JobTTL/2, time.Second), 5*time.Minute)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.jobs.Cleanup()
		}
	}
}

// Stop cancels the workers, waits for the in-flight documents to return and
// fails every job still waiting in the queue.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	close(o.queue)
	o.mu.Unlock()

	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()

	dropped := 0
	for job := range o.queue {
		job.SetStatus(StatusFailed, "shutdown")
		job.mu.Lock()
		upload := ""
		if job.removeInput {
			upload = filepath.Dir(job.inputPath)
		}
		job.mu.Unlock()
		if upload != "" {
			if err := os.RemoveAll(upload); err != nil {
				o.log.Warn("remove upload", "job_id", job.ID, "error", err)
			}
		}
		dropped++
	}
	if dropped > 0 {
		o.log.Warn("pipeline stopped with queued jobs", "dropped", dropped)
	}
}

// Submit registers the job and queues it. A full or stopped queue fails the
// job immediately.
func (o *Orchestrator) Submit(job *Job) error {
	o.jobs.Put(job)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		job.SetStatus(StatusFailed, "shutdown")
		return ErrStopped
	}
	select {
	case o.queue <- job:
		return nil
	default:
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", cap(o.queue))
	}
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}
