package eventstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/scribelabs/scribed/internal/config"
	_ "modernc.org/sqlite"
)

// CycleRecord is one recording cycle on the audit timeline.
type CycleRecord struct {
	ID              int64
	CycleID         string
	Status          string
	DurationMinutes float64
	ErrorKind       string
	CreatedAt       time.Time
}

// CycleEvent is one transition within a cycle.
type CycleEvent struct {
	ID        int64
	CycleID   string
	Type      string
	Detail    string
	CreatedAt time.Time
}

// Store keeps a SQLite-backed timeline of recording cycles. It is an
// operator-facing audit log; the JSON ledger remains the source of truth.
type Store struct {
	db    *sql.DB
	cfg   config.EventStoreConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the store according to config. Ephemeral mode returns
// a store whose writes are no-ops.
func Open(ctx context.Context, cfg config.EventStoreConfig, log *slog.Logger) (*Store, error) {
	if cfg.RetentionMode == "ephemeral" {
		return &Store{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &Store{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("event store vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := s.Prune(ctx); err != nil {
		log.Warn("event store prune on start failed", slog.String("error", err.Error()))
	}

	return s, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	ddl := `
CREATE TABLE IF NOT EXISTS cycles (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL,
    duration_minutes REAL NOT NULL DEFAULT 0,
    error_kind TEXT,
    created_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS cycle_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    cycle_id TEXT NOT NULL,
    event_type TEXT NOT NULL,
    detail TEXT,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY(cycle_id) REFERENCES cycles(cycle_id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_cycle_events_cycle_created ON cycle_events(cycle_id, created_at);
`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginCycle records a new cycle row in status "recording".
func (s *Store) BeginCycle(ctx context.Context, cycleID string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycles(cycle_id, status, created_at) VALUES(?, ?, ?)
		 ON CONFLICT(cycle_id) DO NOTHING`,
		cycleID, "recording", s.clock().UTC())
	return err
}

// FinishCycle marks the cycle terminal: status "completed" or "failed",
// with the measured duration and, on failure, the fault kind.
func (s *Store) FinishCycle(ctx context.Context, cycleID, status string, durationMinutes float64, errorKind string) error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE cycles SET status = ?, duration_minutes = ?, error_kind = ? WHERE cycle_id = ?`,
		status, durationMinutes, errorKind, cycleID)
	return err
}

// AppendEvent records one transition within a cycle.
func (s *Store) AppendEvent(ctx context.Context, evt CycleEvent) error {
	if s.db == nil {
		return nil
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = s.clock().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cycle_events(cycle_id, event_type, detail, created_at) VALUES(?, ?, ?, ?)`,
		evt.CycleID, evt.Type, evt.Detail, evt.CreatedAt)
	return err
}

// ListCycleEvents retrieves up to limit events for a cycle ordered
// ascending by time.
func (s *Store) ListCycleEvents(ctx context.Context, cycleID string, limit int) ([]CycleEvent, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cycle_id, event_type, detail, created_at
		 FROM cycle_events WHERE cycle_id = ? ORDER BY created_at ASC LIMIT ?`, cycleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []CycleEvent
	for rows.Next() {
		var e CycleEvent
		var created string
		if err := rows.Scan(&e.ID, &e.CycleID, &e.Type, &e.Detail, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListRecentCycles retrieves up to limit cycle rows, most recent first.
func (s *Store) ListRecentCycles(ctx context.Context, limit int) ([]CycleRecord, error) {
	if s.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, cycle_id, status, duration_minutes, COALESCE(error_kind, ''), created_at
		 FROM cycles ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cycles []CycleRecord
	for rows.Next() {
		var c CycleRecord
		var created string
		if err := rows.Scan(&c.ID, &c.CycleID, &c.Status, &c.DurationMinutes, &c.ErrorKind, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			c.CreatedAt = ts
		}
		cycles = append(cycles, c)
	}
	return cycles, rows.Err()
}

// Prune applies configured retention by age and cycle count.
func (s *Store) Prune(ctx context.Context) error {
	if s.db == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if s.cfg.RetentionDays > 0 {
		cutoff := s.clock().Add(-time.Duration(s.cfg.RetentionDays) * 24 * time.Hour)
		if _, err = tx.ExecContext(ctx, `DELETE FROM cycles WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if s.cfg.MaxCycles > 0 {
		_, err = tx.ExecContext(ctx, `DELETE FROM cycles WHERE cycle_id IN (
			SELECT cycle_id FROM cycles ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, s.cfg.MaxCycles)
		if err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}
