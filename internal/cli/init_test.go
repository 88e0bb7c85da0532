package cli

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tracker/internal/config"
	applog "tracker/internal/log"
	"tracker/internal/sheets/memory"
)

func testLogger(buf *bytes.Buffer) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = buf
	return applog.New(cfg)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "x.db"))
	t.Setenv("AMQP_URL", "")
	t.Setenv("GOOGLE_SPREADSHEET_ID", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.AMQPEnabled() || cfg.SheetsEnabled() {
		t.Error("optional integrations should be off by default")
	}
}

func TestNewPublisher_Disabled(t *testing.T) {
	var buf bytes.Buffer
	if p := NewPublisher(testLogger(&buf), &config.Config{}); p != nil {
		t.Errorf("expected nil publisher, got %T", p)
	}
}

func TestNewExporter_MemoryWhenSheetsDisabled(t *testing.T) {
	var buf bytes.Buffer
	exp, err := NewExporter(context.Background(), testLogger(&buf), &config.Config{})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := exp.(*memory.Store); !ok {
		t.Errorf("exporter = %T, want *memory.Store", exp)
	}
}

func TestNewExporter_SheetsWithoutCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	var buf bytes.Buffer
	_, err := NewExporter(context.Background(), testLogger(&buf), &config.Config{GoogleSpreadsheetID: "sheet"})
	if err == nil || !strings.Contains(err.Error(), "google sheets exporter") {
		t.Errorf("err = %v", err)
	}
}

func TestNewService_OpensDatabase(t *testing.T) {
	var buf bytes.Buffer
	cfg := &config.Config{SQLiteDBPath: filepath.Join(t.TempDir(), "nested", "expenses.db")}
	svc, err := NewService(testLogger(&buf), cfg)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	defer svc.Close()

	if err := svc.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

type fakeServer struct {
	stop        chan struct{}
	serveErr    error
	shutdownErr error
	shutdowns   int
}

func (f *fakeServer) ListenAndServe() error {
	if f.serveErr != nil {
		return f.serveErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns++
	if f.stop != nil {
		close(f.stop)
	}
	return f.shutdownErr
}

func TestRunServer_StopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	srv := &fakeServer{stop: make(chan struct{})}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- RunServer(ctx, testLogger(&buf), srv, time.Second) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("RunServer: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("RunServer did not return")
	}
	if srv.shutdowns != 1 {
		t.Errorf("shutdowns = %d, want 1", srv.shutdowns)
	}
}

func TestRunServer_ServeError(t *testing.T) {
	var buf bytes.Buffer
	srv := &fakeServer{serveErr: errors.New("address already in use")}

	err := RunServer(context.Background(), testLogger(&buf), srv, time.Second)
	if err == nil || !strings.Contains(err.Error(), "address already in use") {
		t.Errorf("err = %v", err)
	}
}
