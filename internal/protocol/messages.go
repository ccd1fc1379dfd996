package protocol

import "time"

// StateChange announces a controller state transition.
type StateChange struct {
	State     string    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptReady carries the text of a completed cycle.
type TranscriptReady struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TotalsChanged carries the recomputed ledger totals.
type TotalsChanged struct {
	TotalMinutes float64   `json:"total_minutes"`
	TotalCost    float64   `json:"total_cost"`
	Timestamp    time.Time `json:"timestamp"`
}

// CycleError reports a per-cycle failure.
type CycleError struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectState      = "scribe.state"
	SubjectTranscript = "scribe.transcript"
	SubjectTotals     = "scribe.totals"
	SubjectError      = "scribe.error"
)
