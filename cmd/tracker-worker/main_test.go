package main

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"tracker/internal/config"
	applog "tracker/internal/log"
)

type countingResyncer struct {
	calls  int32
	err    error
	cancel context.CancelFunc
	stopAt int32
}

func (c *countingResyncer) Resync(context.Context) error {
	n := atomic.AddInt32(&c.calls, 1)
	if n >= c.stopAt && c.cancel != nil {
		c.cancel()
	}
	return c.err
}

func testLogger(buf *bytes.Buffer) *applog.Logger {
	cfg := applog.DefaultConfig()
	cfg.Output = buf
	return applog.New(cfg)
}

func TestResyncLoop_RunsImmediatelyAndOnTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &countingResyncer{cancel: cancel, stopAt: 3}
	var buf bytes.Buffer

	err := resyncLoop(ctx, testLogger(&buf), r, 10*time.Millisecond)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := atomic.LoadInt32(&r.calls); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestResyncLoop_LogsFailuresAndContinues(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := &countingResyncer{cancel: cancel, stopAt: 2, err: errors.New("sheets quota exceeded")}
	var buf bytes.Buffer

	_ = resyncLoop(ctx, testLogger(&buf), r, 10*time.Millisecond)

	if got := atomic.LoadInt32(&r.calls); got < 1 {
		t.Fatalf("calls = %d", got)
	}
	if !strings.Contains(buf.String(), "Resync failed") {
		t.Errorf("expected failure log, got %q", buf.String())
	}
}

func TestRun_MemoryExporterWithoutAMQP(t *testing.T) {
	cfg := &config.Config{
		SQLiteDBPath:   filepath.Join(t.TempDir(), "expenses.db"),
		ResyncInterval: time.Hour,
	}
	var buf bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	if err := run(ctx, testLogger(&buf), cfg); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(buf.String(), "Resync completed") && !strings.Contains(buf.String(), "exporting to memory") {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}
