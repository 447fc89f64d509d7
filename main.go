package main

import (
	"context"
	"errors"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rxguard/interactions-api/config"
	"github.com/rxguard/interactions-api/data"
	"github.com/rxguard/interactions-api/ledger"
	"github.com/rxguard/interactions-api/logging"
	"github.com/rxguard/interactions-api/referencedata"
	"github.com/rxguard/interactions-api/scheduler"
	"github.com/rxguard/interactions-api/server"
)

func main() {
	// Read the env variables; fall back to the executable directory so the
	// service starts the same way under systemd
	if err := godotenv.Load(); err != nil {
		ex, exErr := os.Executable()
		if exErr == nil {
			_ = os.Chdir(filepath.Dir(ex))
			_ = godotenv.Load()
		}
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.InitLoggerWithOptions("logs", logging.Options{
		Level:          cfg.LogLevel,
		RetentionWeeks: cfg.LogRetentionWeeks,
		MaxFileSize:    cfg.MaxLogFileSize,
	})

	dataContainer := data.NewDataContainer()
	loader := referencedata.NewLoader()

	// Initial load is fatal on failure: the engine must never serve checks
	// without complete reference data
	sched := scheduler.NewScheduler(dataContainer, loader, cfg.DataDir, cfg.ReloadTimes())
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start with reference data", "error", err)
		os.Exit(1)
	}
	defer sched.Stop()

	var sink ledger.AuditSink
	if cfg.AuditDBURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		pgSink, err := ledger.NewPostgresSink(ctx, cfg.AuditDBURL)
		cancel()
		if err != nil {
			logging.Error("Failed to connect to audit database", "error", err)
			os.Exit(1)
		}
		defer pgSink.Close()
		sink = pgSink
		logging.Info("Audit sink: postgres")
	} else {
		sink = ledger.NewMemorySink()
		logging.Warn("AUDIT_DB_URL not set, override records are kept in memory only")
	}

	srv := server.NewServer(cfg, dataContainer, sink)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Shutdown error", "error", err)
	}
}
