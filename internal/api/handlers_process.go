package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dgallion1/docextract/internal/convert"
	"github.com/dgallion1/docextract/internal/history"
	"github.com/dgallion1/docextract/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

// optionFields maps multipart form fields to per-document export switches.
var optionFields = []struct {
	name string
	set  func(*pipeline.ExportOptions, bool)
}{
	{"json", func(o *pipeline.ExportOptions, v bool) { o.JSON = v }},
	{"markdown", func(o *pipeline.ExportOptions, v bool) { o.Markdown = v }},
	{"csv", func(o *pipeline.ExportOptions, v bool) { o.CSV = v }},
	{"excel", func(o *pipeline.ExportOptions, v bool) { o.Excel = v }},
	{"html", func(o *pipeline.ExportOptions, v bool) { o.HTML = v }},
	{"images", func(o *pipeline.ExportOptions, v bool) { o.Images = v }},
	{"extract_values", func(o *pipeline.ExportOptions, v bool) { o.ExtractValues = v }},
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.parseOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !convert.IsSupportedExtension(filename) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)), http.StatusBadRequest)
		return
	}

	job, status, err := s.enqueue(file, filename, opts)
	if err != nil {
		jsonError(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{
		"job_id":   job.ID,
		"status":   job.Snapshot().Status,
		"poll_url": pollURL(job.ID),
	})
}

func (s *Server) handleBatchProcess(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	opts, err := s.parseOptions(r)
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	var results []map[string]any
	for _, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		if !convert.IsSupportedExtension(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}
		job, _, err := s.enqueue(f, filename, opts)
		f.Close()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename": filename,
			"job_id":   job.ID,
			"status":   job.Snapshot().Status,
			"poll_url": pollURL(job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

// enqueue stores the upload under OutputRoot/uploads/<job>/ and submits a job
// whose artifacts land in OutputRoot/<job>/. On failure it returns the HTTP
// status to report.
func (s *Server) enqueue(src multipart.File, filename string, opts pipeline.ExportOptions) (*pipeline.Job, int, error) {
	id := pipeline.NewJobID()
	uploadDir := filepath.Join(s.cfg.OutputRoot, "uploads", id)
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		s.log.Error("create upload dir", "error", err)
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to store upload")
	}
	inputPath := filepath.Join(uploadDir, filename)

	n, err := saveUpload(inputPath, src, s.cfg.MaxUploadBytes)
	if err != nil {
		os.RemoveAll(uploadDir)
		s.log.Error("store upload", "filename", filename, "error", err)
		return nil, http.StatusInternalServerError, fmt.Errorf("failed to store upload")
	}
	if n > s.cfg.MaxUploadBytes {
		os.RemoveAll(uploadDir)
		return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)
	}

	job := pipeline.NewJobWithID(id, filename, inputPath, filepath.Join(s.cfg.OutputRoot, id), opts)
	job.RemoveInputWhenDone()
	if err := s.orchestrator.Submit(job); err != nil {
		os.RemoveAll(uploadDir)
		return nil, http.StatusServiceUnavailable, err
	}
	return job, http.StatusAccepted, nil
}

// saveUpload copies at most limit+1 bytes so callers can detect oversize input.
func saveUpload(path string, src io.Reader, limit int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, io.LimitReader(src, limit+1))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// parseOptions starts from the configured defaults and applies any boolean
// overrides present in the form.
func (s *Server) parseOptions(r *http.Request) (pipeline.ExportOptions, error) {
	opts := pipeline.OptionsFromConfig(s.cfg)
	for _, f := range optionFields {
		v := r.FormValue(f.name)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("invalid value for %s: %q", f.name, v)
		}
		f.set(&opts, b)
	}
	return opts, nil
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	snap, _, err := s.lookupJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.lookupError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

// handleJobFile serves one artifact listed in a finished job's result.
func (s *Server) handleJobFile(w http.ResponseWriter, r *http.Request) {
	snap, outDir, err := s.lookupJob(r.Context(), chi.URLParam(r, "jobID"))
	if err != nil {
		s.lookupError(w, err)
		return
	}
	if snap.Result == nil {
		jsonError(w, "job has not finished", http.StatusConflict)
		return
	}

	want := filepath.Clean(filepath.FromSlash(chi.URLParam(r, "*")))
	for _, p := range snap.Result.OutputFiles {
		rel, err := filepath.Rel(outDir, p)
		if err != nil || rel != want {
			continue
		}
		http.ServeFile(w, r, p)
		return
	}
	jsonError(w, "file not found", http.StatusNotFound)
}

// lookupJob finds a job in memory, falling back to the ledger once the job
// has expired from the store. It returns the snapshot and the job's output
// directory.
func (s *Server) lookupJob(ctx context.Context, jobID string) (pipeline.JobSnapshot, string, error) {
	if job := s.orchestrator.GetJob(jobID); job != nil {
		return job.Snapshot(), job.OutputDir(), nil
	}
	if s.history == nil {
		return pipeline.JobSnapshot{}, "", history.ErrNotFound
	}
	e, err := s.history.ByJob(ctx, jobID)
	if err != nil {
		return pipeline.JobSnapshot{}, "", err
	}
	return pipeline.SnapshotFromEntry(e), e.OutputDir, nil
}

func (s *Server) lookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrNotFound) {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	s.log.Error("history lookup", "error", err)
	jsonError(w, "history unavailable", http.StatusInternalServerError)
}

func pollURL(jobID string) string {
	return fmt.Sprintf("/api/jobs/%s", jobID)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
