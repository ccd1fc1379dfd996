package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/scribelabs/scribed/internal/fault"
	"github.com/scribelabs/scribed/internal/ledger"
	"github.com/scribelabs/scribed/internal/session"
)

// api is the JSON presentation adapter over the controller and ledger.
// It forwards intents and renders output; it holds no lifecycle state of
// its own.
type api struct {
	controller *session.Controller
	ledger     *ledger.Ledger
	log        *slog.Logger
}

func (a *api) register(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/state", a.handleState)
	mux.HandleFunc("GET /v1/history", a.handleHistory)
	mux.HandleFunc("GET /v1/transactions", a.handleTransactions)
	mux.HandleFunc("GET /v1/totals", a.handleTotals)
	mux.HandleFunc("POST /v1/record/start", a.handleStart)
	mux.HandleFunc("POST /v1/record/stop", a.handleStop)
}

func (a *api) handleState(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.controller.Snapshot())
}

type historyItem struct {
	Timestamp     string `json:"timestamp"`
	Duration      string `json:"duration"`
	Transcription string `json:"transcription"`
}

func (a *api) handleHistory(w http.ResponseWriter, _ *http.Request) {
	entries, err := a.ledger.Recent()
	if err != nil {
		a.writeError(w, err)
		return
	}
	items := make([]historyItem, len(entries))
	for i, e := range entries {
		items[i] = historyItem{
			Timestamp:     e.Timestamp,
			Duration:      e.DurationLabel(),
			Transcription: e.Transcription,
		}
	}
	a.writeJSON(w, http.StatusOK, items)
}

func (a *api) handleTransactions(w http.ResponseWriter, _ *http.Request) {
	entries, err := a.ledger.LoadTransactions()
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, entries)
}

func (a *api) handleTotals(w http.ResponseWriter, _ *http.Request) {
	totals, err := a.ledger.Totals()
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, totals)
}

func (a *api) handleStart(w http.ResponseWriter, _ *http.Request) {
	a.controller.StartIntent()
	a.writeJSON(w, http.StatusAccepted, a.controller.Snapshot())
}

func (a *api) handleStop(w http.ResponseWriter, _ *http.Request) {
	a.controller.StopIntent()
	a.writeJSON(w, http.StatusAccepted, a.controller.Snapshot())
}

func (a *api) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.log.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

type errorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (a *api) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var fe *fault.Error
	if errors.As(err, &fe) && fe.Kind == fault.KindCorruptLedger {
		status = http.StatusConflict
	}
	a.writeJSON(w, status, errorResponse{Kind: string(fault.Classify(err)), Message: err.Error()})
}
