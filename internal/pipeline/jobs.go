package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dgallion1/docextract/internal/history"
	"github.com/oklog/ulid/v2"
)

// JobStatus represents the state of a processing job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// Job tracks one document handed to the batch driver.
type Job struct {
	mu sync.Mutex

	ID       string `json:"job_id"`
	Filename string `json:"filename"`

	Status  JobStatus `json:"status"`
	Stage   string    `json:"stage"`
	Percent int       `json:"percent"`

	Options ExportOptions     `json:"options"`
	Result  *ProcessingResult `json:"result,omitempty"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	inputPath   string
	outputDir   string
	removeInput bool
}

// NewJob creates a queued job for the file at inputPath. Artifacts go to outputDir.
func NewJob(filename, inputPath, outputDir string, opts ExportOptions) *Job {
	return NewJobWithID(NewJobID(), filename, inputPath, outputDir, opts)
}

// NewJobID returns a fresh sortable job identifier.
func NewJobID() string {
	return ulid.Make().String()
}

// NewJobWithID is NewJob with a caller-chosen ID, for callers that lay out
// per-job folders before submitting.
func NewJobWithID(id, filename, inputPath, outputDir string, opts ExportOptions) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Filename:  filename,
		Status:    StatusQueued,
		Stage:     "queued",
		Options:   opts,
		CreatedAt: now,
		UpdatedAt: now,
		inputPath: inputPath,
		outputDir: outputDir,
	}
}

// RemoveInputWhenDone marks the input file as a temporary upload owned by the job.
func (j *Job) RemoveInputWhenDone() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.removeInput = true
}

// InputPath returns the file being processed.
func (j *Job) InputPath() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.inputPath
}

// OutputDir returns the artifact folder.
func (j *Job) OutputDir() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.outputDir
}

// JobStore is a thread-safe in-memory job registry with TTL eviction.
type JobStore struct {
	mu   sync.Mutex
	jobs map[string]*Job
	ttl  time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs: make(map[string]*Job),
		ttl:  ttl,
	}
}

func (s *JobStore) Put(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// Cleanup removes expired jobs.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		job.mu.Lock()
		updated := job.UpdatedAt
		job.mu.Unlock()
		if now.Sub(updated) > s.ttl {
			delete(s.jobs, id)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, stage string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Stage = stage
	j.UpdatedAt = time.Now()
}

// SetProgress records a pipeline progress notification. Percent never moves backwards.
func (j *Job) SetProgress(stage string, percent int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Stage = stage
	j.Percent = max(j.Percent, min(percent, 100))
	j.UpdatedAt = time.Now()
}

// SetContentHash records the input's SHA-256.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// Finish stores the result and moves the job to its terminal status.
func (j *Job) Finish(res ProcessingResult) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Result = &res
	if res.Success {
		j.Status = StatusCompleted
		j.Percent = 100
	} else {
		j.Status = StatusFailed
	}
	j.Stage = res.Message
	j.UpdatedAt = time.Now()
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string            `json:"job_id"`
	Filename    string            `json:"filename"`
	Status      JobStatus         `json:"status"`
	Stage       string            `json:"stage"`
	Percent     int               `json:"percent"`
	Options     ExportOptions     `json:"options"`
	ContentHash string            `json:"content_hash,omitempty"`
	Result      *ProcessingResult `json:"result,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	var res *ProcessingResult
	if j.Result != nil {
		cp := *j.Result
		cp.OutputFiles = append([]string{}, j.Result.OutputFiles...)
		res = &cp
	}
	return JobSnapshot{
		ID:          j.ID,
		Filename:    j.Filename,
		Status:      j.Status,
		Stage:       j.Stage,
		Percent:     j.Percent,
		Options:     j.Options,
		ContentHash: j.ContentHash,
		Result:      res,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// SnapshotFromEntry rebuilds a finished job's snapshot from its ledger row,
// for jobs that have aged out of the in-memory store. Options are not
// recorded in the ledger and come back zero.
func SnapshotFromEntry(e history.Entry) JobSnapshot {
	status, percent := StatusFailed, 0
	if e.Success {
		status, percent = StatusCompleted, 100
	}
	files := append([]string{}, e.OutputFiles...)
	return JobSnapshot{
		ID:          e.JobID,
		Filename:    e.Filename,
		Status:      status,
		Stage:       e.Message,
		Percent:     percent,
		ContentHash: e.ContentHash,
		Result: &ProcessingResult{
			Success:      e.Success,
			Message:      e.Message,
			OutputFiles:  files,
			TableCount:   e.TableCount,
			PageCount:    e.PageCount,
			PictureCount: e.PictureCount,
			ValueCount:   e.ValueCount,
		},
		CreatedAt: e.ProcessedAt,
		UpdatedAt: e.ProcessedAt,
	}
}

// FileHash streams the file at path through SHA-256 and returns the hex digest.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
