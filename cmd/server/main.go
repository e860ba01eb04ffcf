/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the payroll and leave engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (.env, environment, then flags)
  2. Build the structured logger
  3. Initialize SQLite store
  4. Create API handler and the auto-credit scheduler
  5. Configure HTTP router
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS (override the environment):
  -addr    HTTP listen address (APP_ADDR, default :8080)
  -db      SQLite database path (DB_PATH, default payroll.db)
           Use ":memory:" for an in-memory database

ENVIRONMENT:
  See config/config.go for the full list (APP_TIMEZONE, LOG_LEVEL,
  CORS_ORIGINS, AUTO_CREDIT_*, COMPOFF_LOOKBACK_DAYS, RULE_MERGE_MODE).

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the auto-credit scheduler (an in-flight batch is canceled
     between employees and recorded as canceled)
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  # Run with file database
  ./server -db="./data/payroll.db"

  # Daily auto-credit in IST
  AUTO_CREDIT_ENABLED=true APP_TIMEZONE=Asia/Kolkata ./server

SEE ALSO:
  - config/config.go: Configuration
  - api/server.go: Router configuration
  - api/scheduler.go: Auto-credit scheduler
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httplog/v3"
	"github.com/warp/payroll-engine/api"
	"github.com/warp/payroll-engine/config"
	"github.com/warp/payroll-engine/store/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Flags
	addr := flag.String("addr", cfg.App.Addr, "HTTP listen address")
	dbPath := flag.String("db", cfg.Database.Path, "SQLite database path")
	flag.Parse()

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	logFormat := httplog.SchemaECS.Concise(false)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(slog.String("app", "payroll-engine"))
	slog.SetDefault(logger)

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(store, api.Options{
		Location:           loc,
		Logger:             logger,
		LookbackDays:       cfg.Rules.CompOffLookbackDays,
		Merge:              cfg.Rules.MergeMode,
		AutoCreditEnabled:  cfg.AutoCredit.Enabled,
		AutoCreditInterval: cfg.AutoCredit.Interval,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		Logger:      logger,
		CORSOrigins: cfg.App.CORSOrigins,
	})

	handler.Scheduler.Start()
	defer handler.Scheduler.Stop()

	server := &http.Server{
		Addr:         *addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", *addr),
			slog.String("db", *dbPath),
			slog.String("timezone", loc.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")
	handler.Scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
