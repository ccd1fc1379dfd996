package eventstore

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/scribelabs/scribed/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeral(t *testing.T) {
	cfg := config.EventStoreConfig{RetentionMode: "ephemeral"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	if err := es.BeginCycle(context.Background(), "cycle-1"); err != nil {
		t.Fatalf("begin cycle: %v", err)
	}
	cycles, err := es.ListRecentCycles(context.Background(), 10)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if cycles != nil {
		t.Fatal("ephemeral store must not persist cycles")
	}
}

func TestCycleLifecycle(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "cycles.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	if err := es.BeginCycle(ctx, "cycle-123"); err != nil {
		t.Fatalf("begin cycle: %v", err)
	}
	if err := es.AppendEvent(ctx, CycleEvent{CycleID: "cycle-123", Type: "state", Detail: "processing"}); err != nil {
		t.Fatalf("append event: %v", err)
	}
	if err := es.FinishCycle(ctx, "cycle-123", "completed", 0.5, ""); err != nil {
		t.Fatalf("finish cycle: %v", err)
	}

	cycles, err := es.ListRecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %d", len(cycles))
	}
	if cycles[0].Status != "completed" || cycles[0].DurationMinutes != 0.5 {
		t.Fatalf("unexpected cycle row: %+v", cycles[0])
	}

	events, err := es.ListCycleEvents(ctx, "cycle-123", 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 || events[0].Detail != "processing" {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestFailedCycleKeepsErrorKind(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "cycles.db"), RetentionMode: "persistent"}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	if err := es.BeginCycle(ctx, "cycle-err"); err != nil {
		t.Fatalf("begin cycle: %v", err)
	}
	if err := es.FinishCycle(ctx, "cycle-err", "failed", 0, "service"); err != nil {
		t.Fatalf("finish cycle: %v", err)
	}

	cycles, err := es.ListRecentCycles(ctx, 1)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if cycles[0].Status != "failed" || cycles[0].ErrorKind != "service" {
		t.Fatalf("unexpected cycle row: %+v", cycles[0])
	}
}

func TestPruneByDaysAndCount(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.EventStoreConfig{Path: filepath.Join(tmp, "cycles.db"), RetentionMode: "persistent", RetentionDays: 1, MaxCycles: 1}
	es, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open event store: %v", err)
	}
	t.Cleanup(func() { _ = es.Close() })

	ctx := context.Background()
	es.clock = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := es.BeginCycle(ctx, "old-cycle"); err != nil {
		t.Fatalf("begin old cycle: %v", err)
	}

	es.clock = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := es.BeginCycle(ctx, "new-cycle"); err != nil {
		t.Fatalf("begin new cycle: %v", err)
	}
	if err := es.Prune(ctx); err != nil {
		t.Fatalf("prune: %v", err)
	}

	cycles, err := es.ListRecentCycles(ctx, 10)
	if err != nil {
		t.Fatalf("list cycles: %v", err)
	}
	if len(cycles) != 1 || cycles[0].CycleID != "new-cycle" {
		t.Fatalf("expected only the new cycle, got %+v", cycles)
	}
}
