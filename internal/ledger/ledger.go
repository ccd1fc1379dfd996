package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/scribelabs/scribed/internal/config"
	"github.com/scribelabs/scribed/internal/fault"
)

// TimestampLayout matches the history files written by earlier versions
// of this tool, so existing ledgers keep loading.
const TimestampLayout = "2006-01-02 15:04:05"

// HistoryEntry is one completed transcription. Duration is a pointer
// because entries written by the oldest schema have none.
type HistoryEntry struct {
	Timestamp       string   `json:"timestamp"`
	DurationMinutes *float64 `json:"duration,omitempty"`
	Transcription   string   `json:"transcription"`
}

// DurationLabel renders the duration for display, "unknown" for entries
// predating the duration field.
func (e HistoryEntry) DurationLabel() string {
	if e.DurationMinutes == nil {
		return "unknown"
	}
	return fmt.Sprintf("%.2f min", *e.DurationMinutes)
}

// TransactionEntry is the cost side of the same transcription.
type TransactionEntry struct {
	Timestamp       string  `json:"timestamp"`
	DurationMinutes float64 `json:"duration"`
	Cost            float64 `json:"cost"`
}

// Totals is the fold over all transactions.
type Totals struct {
	TotalMinutes float64 `json:"total_minutes"`
	TotalCost    float64 `json:"total_cost"`
}

// Ledger persists the history and transaction collections as two JSON
// documents, each rewritten wholesale on append.
type Ledger struct {
	historyPath      string
	transactionsPath string
	costPerMinute    float64
	clock            func() time.Time
	mu               sync.Mutex
}

func New(cfg config.LedgerConfig, costPerMinute float64) (*Ledger, error) {
	if cfg.Dir != "." && cfg.Dir != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}
	return &Ledger{
		historyPath:      filepath.Join(cfg.Dir, cfg.HistoryFile),
		transactionsPath: filepath.Join(cfg.Dir, cfg.TransactionsFile),
		costPerMinute:    costPerMinute,
		clock:            time.Now,
	}, nil
}

// LoadHistory returns all history entries in insertion (chronological)
// order. A missing file is an empty ledger; a malformed one is a
// corrupt-ledger fault.
func (l *Ledger) LoadHistory() ([]HistoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return loadCollection[HistoryEntry](l.historyPath)
}

// LoadTransactions returns all transaction entries in insertion order.
func (l *Ledger) LoadTransactions() ([]TransactionEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return loadCollection[TransactionEntry](l.transactionsPath)
}

// RecordCycle appends the matched history/transaction pair for one
// completed transcription. The history write lands first; a crash in
// between leaves a history entry with no transaction, which the next
// totals refresh simply ignores.
func (l *Ledger) RecordCycle(transcription string, durationMinutes float64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	timestamp := l.clock().Format(TimestampLayout)
	d := durationMinutes

	history, err := loadCollection[HistoryEntry](l.historyPath)
	if err != nil {
		return err
	}
	history = append(history, HistoryEntry{
		Timestamp:       timestamp,
		DurationMinutes: &d,
		Transcription:   transcription,
	})
	if err := writeCollection(l.historyPath, history); err != nil {
		return err
	}

	transactions, err := loadCollection[TransactionEntry](l.transactionsPath)
	if err != nil {
		return err
	}
	transactions = append(transactions, TransactionEntry{
		Timestamp:       timestamp,
		DurationMinutes: durationMinutes,
		Cost:            durationMinutes * l.costPerMinute,
	})
	return writeCollection(l.transactionsPath, transactions)
}

// Totals recomputes running totals from the full transaction set, so the
// figures always agree with the on-disk state.
func (l *Ledger) Totals() (Totals, error) {
	transactions, err := l.LoadTransactions()
	if err != nil {
		return Totals{}, err
	}
	var t Totals
	for _, tx := range transactions {
		t.TotalMinutes += tx.DurationMinutes
		t.TotalCost += tx.Cost
	}
	return t, nil
}

// Recent returns history entries most recent first, the order
// presentation layers display them in.
func (l *Ledger) Recent() ([]HistoryEntry, error) {
	history, err := l.LoadHistory()
	if err != nil {
		return nil, err
	}
	out := make([]HistoryEntry, len(history))
	for i, e := range history {
		out[len(history)-1-i] = e
	}
	return out, nil
}

func loadCollection[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, fault.Wrap(fault.KindCorruptLedger, fmt.Errorf("read %s: %w", path, err))
	}
	var entries []T
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fault.Wrap(fault.KindCorruptLedger, fmt.Errorf("parse %s: %w", path, err))
	}
	return entries, nil
}

// writeCollection rewrites the whole document through a temp file and
// rename, so a crash never leaves a truncated ledger behind.
func writeCollection[T any](path string, entries []T) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp ledger file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp ledger file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
