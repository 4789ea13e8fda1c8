// Package history is the SQLite ledger of processed documents.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrNotFound is returned when no ledger row matches.
var ErrNotFound = errors.New("history entry not found")

// Entry is one processed document.
type Entry struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	Filename     string    `json:"filename"`
	ContentHash  string    `json:"content_hash,omitempty"`
	OutputDir    string    `json:"output_dir"`
	Success      bool      `json:"success"`
	Message      string    `json:"message"`
	OutputFiles  []string  `json:"output_files"`
	TableCount   int       `json:"table_count"`
	PageCount    int       `json:"page_count"`
	PictureCount int       `json:"picture_count"`
	ValueCount   int       `json:"value_count"`
	ProcessedAt  time.Time `json:"processed_at"`
}

// Store persists entries in SQLite.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path with WAL mode enabled.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	// One connection keeps the per-connection pragmas in effect for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	job_id TEXT NOT NULL,
	filename TEXT NOT NULL,
	content_hash TEXT,
	output_dir TEXT NOT NULL,
	success INTEGER NOT NULL,
	message TEXT NOT NULL,
	output_files TEXT NOT NULL,
	table_count INTEGER NOT NULL DEFAULT 0,
	page_count INTEGER NOT NULL DEFAULT 0,
	picture_count INTEGER NOT NULL DEFAULT 0,
	value_count INTEGER NOT NULL DEFAULT 0,
	processed_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_job ON runs(job_id);
CREATE INDEX IF NOT EXISTS idx_runs_hash ON runs(content_hash);
`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init history schema: %w", err)
	}
	return nil
}

// Record inserts an entry and returns its row id. A zero ProcessedAt is
// stamped with the current time.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	if e.ProcessedAt.IsZero() {
		e.ProcessedAt = time.Now().UTC()
	}
	files := e.OutputFiles
	if files == nil {
		files = []string{}
	}
	filesJSON, err := json.Marshal(files)
	if err != nil {
		return 0, fmt.Errorf("encode output files: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
INSERT INTO runs (job_id, filename, content_hash, output_dir, success, message, output_files,
	table_count, page_count, picture_count, value_count, processed_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.JobID, e.Filename, e.ContentHash, e.OutputDir, e.Success, e.Message, string(filesJSON),
		e.TableCount, e.PageCount, e.PictureCount, e.ValueCount, e.ProcessedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("insert history: %w", err)
	}
	return res.LastInsertId()
}

const selectColumns = `id, job_id, filename, COALESCE(content_hash, ''), output_dir, success, message,
	output_files, table_count, page_count, picture_count, value_count, processed_at`

// List returns up to limit entries, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ByJob returns the latest entry for a job.
func (s *Store) ByJob(ctx context.Context, jobID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM runs WHERE job_id = ? ORDER BY id DESC LIMIT 1`, jobID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// LastSuccessByHash returns the latest successful entry for input content,
// used to report re-runs of an already processed file.
func (s *Store) LastSuccessByHash(ctx context.Context, hash string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM runs WHERE content_hash = ? AND success = 1 ORDER BY id DESC LIMIT 1`, hash)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (Entry, error) {
	var (
		e         Entry
		files     string
		processed string
	)
	err := sc.Scan(&e.ID, &e.JobID, &e.Filename, &e.ContentHash, &e.OutputDir, &e.Success, &e.Message,
		&files, &e.TableCount, &e.PageCount, &e.PictureCount, &e.ValueCount, &processed)
	if err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(files), &e.OutputFiles); err != nil {
		return Entry{}, fmt.Errorf("decode output files: %w", err)
	}
	if e.ProcessedAt, err = time.Parse(time.RFC3339Nano, processed); err != nil {
		return Entry{}, fmt.Errorf("decode processed_at: %w", err)
	}
	return e, nil
}

// IsBusy reports SQLite lock contention, which is worth retrying.
func IsBusy(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code() & 0xff
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
