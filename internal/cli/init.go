// Package cli provides common CLI initialization utilities shared by
// cmd/tracker and cmd/tracker-worker.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"tracker/internal/amqp"
	"tracker/internal/config"
	applog "tracker/internal/log"
	"tracker/internal/services"
	"tracker/internal/sheets"
	gsheet "tracker/internal/sheets/google"
	"tracker/internal/sheets/memory"
	"tracker/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadConfig reads the environment and validates the result.
func LoadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SetupLogger builds the process logger for component and installs it as
// the slog default. A nil out writes to stdout.
func SetupLogger(cfg *config.Config, component string, out io.Writer) *applog.Logger {
	lc := cfg.LoggerConfig(component)
	if out != nil {
		lc.Output = out
	}
	logger := applog.New(lc)
	applog.SetDefault(logger)
	return logger
}

// OpenRepository opens (and migrates) the SQLite database.
func OpenRepository(logger *applog.Logger, dbPath string) (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite repository at %s: %w", dbPath, err)
	}
	logger.Debug("SQLite repository ready", "path", dbPath)
	return repo, nil
}

// NewPublisher connects the AMQP change feed. It returns a nil publisher
// when the feed is disabled, or when the broker is unreachable: writes
// must keep working without it.
func NewPublisher(logger *applog.Logger, cfg *config.Config) services.EventPublisher {
	if !cfg.AMQPEnabled() {
		logger.Debug("AMQP change feed disabled")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Warn("AMQP broker unavailable, change events will not be published",
			"error", err, "exchange", cfg.AMQPExchange)
		return nil
	}
	logger.Info("AMQP change feed connected", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// NewService opens storage and the optional change feed and wires the
// expense service. Close the service to release both.
func NewService(logger *applog.Logger, cfg *config.Config) (*services.ExpenseService, error) {
	repo, err := OpenRepository(logger, cfg.SQLiteDBPath)
	if err != nil {
		return nil, err
	}
	return services.NewExpenseService(repo, NewPublisher(logger, cfg)), nil
}

// NewExporter returns the Google Sheets exporter when a spreadsheet is
// configured, and an in-memory one otherwise.
func NewExporter(ctx context.Context, logger *applog.Logger, cfg *config.Config) (sheets.ExpenseExporter, error) {
	if !cfg.SheetsEnabled() {
		logger.Info("Google Sheets disabled, exporting to memory")
		return memory.New(), nil
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize google sheets exporter: %w", err)
	}
	return client, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

// Server is what RunServer drives; *http.Server satisfies it.
type Server interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// RunServer serves until ctx is cancelled, then shuts srv down within
// timeout. It returns the first serve or shutdown error.
func RunServer(ctx context.Context, logger *applog.Logger, srv Server, timeout time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		start := time.Now()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.LogError(shutdownCtx, "Server shutdown error", err, applog.OpShutdown, applog.NewFields())
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("Server stopped gracefully", applog.FieldDurationHuman, time.Since(start).String())
		return nil
	})

	return g.Wait()
}
