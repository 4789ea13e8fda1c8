package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// Storage
	OutputRoot string
	HistoryDB  string

	// Worker pool
	WorkerCount  int
	MaxQueueSize int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// Artifacts
	ExportJSON     bool
	ExportMarkdown bool
	ExportCSV      bool
	ExportExcel    bool
	ExportHTML     bool
	ExportImages   bool
	ExtractValues  bool

	// PDF
	PDFFallbackPdftotext bool
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("DOCEXTRACT_API_KEY"),

		OutputRoot: envOr("OUTPUT_ROOT", "./output"),
		HistoryDB:  envOr("HISTORY_DB", "./docextract.db"),

		WorkerCount:  envInt("WORKER_COUNT", 1),
		MaxQueueSize: envInt("MAX_QUEUE_SIZE", 100),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		ExportJSON:     envBool("EXPORT_JSON", true),
		ExportMarkdown: envBool("EXPORT_MARKDOWN", true),
		ExportCSV:      envBool("EXPORT_CSV", true),
		ExportExcel:    envBool("EXPORT_EXCEL", true),
		ExportHTML:     envBool("EXPORT_HTML", true),
		ExportImages:   envBool("EXPORT_IMAGES", true),
		ExtractValues:  envBool("EXTRACT_VALUES", true),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("DOCEXTRACT_API_KEY is required")
	}
	if c.OutputRoot == "" {
		return fmt.Errorf("OUTPUT_ROOT is required")
	}
	if c.HistoryDB == "" {
		return fmt.Errorf("HISTORY_DB is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
