package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgallion1/docextract/internal/api"
	"github.com/dgallion1/docextract/internal/config"
	"github.com/dgallion1/docextract/internal/history"
	"github.com/dgallion1/docextract/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := os.MkdirAll(cfg.OutputRoot, 0o755); err != nil {
		log.Error("create output root", "dir", cfg.OutputRoot, "error", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.HistoryDB), 0o755); err != nil {
		log.Error("create history dir", "error", err)
		os.Exit(1)
	}

	// Initialize the processing ledger.
	hist, err := history.Open(ctx, cfg.HistoryDB)
	if err != nil {
		log.Error("open history", "path", cfg.HistoryDB, "error", err)
		os.Exit(1)
	}

	// Initialize pipeline.
	orch := pipeline.NewOrchestrator(cfg, hist, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, hist, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		hist.Close()
	}()

	log.Info("starting docextract", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	<-done
}
