package runtime

import (
	"log/slog"
	"time"

	"github.com/atotto/clipboard"

	"github.com/scribelabs/scribed/internal/bus"
	"github.com/scribelabs/scribed/internal/fault"
	"github.com/scribelabs/scribed/internal/ledger"
	"github.com/scribelabs/scribed/internal/protocol"
	"github.com/scribelabs/scribed/internal/session"
)

// busPublisher forwards controller output onto the NATS feed so detached
// front ends can follow a session without polling.
type busPublisher struct {
	client *bus.Client
	log    *slog.Logger
}

func newBusPublisher(client *bus.Client, log *slog.Logger) *busPublisher {
	return &busPublisher{client: client, log: log.With(slog.String("component", "bus-publisher"))}
}

func (b *busPublisher) OnStateChanged(state session.State) {
	msg := protocol.StateChange{State: string(state), Timestamp: time.Now().UTC()}
	if err := b.client.PublishJSON(protocol.SubjectState, msg); err != nil {
		b.log.Warn("failed to publish state change", slog.String("error", err.Error()))
	}
}

func (b *busPublisher) OnTranscriptionReady(text string) {
	msg := protocol.TranscriptReady{Text: text, Timestamp: time.Now().UTC()}
	if err := b.client.PublishJSON(protocol.SubjectTranscript, msg); err != nil {
		b.log.Warn("failed to publish transcript", slog.String("error", err.Error()))
	}
}

func (b *busPublisher) OnError(kind fault.Kind, message string) {
	msg := protocol.CycleError{Kind: string(kind), Message: message, Timestamp: time.Now().UTC()}
	if err := b.client.PublishJSON(protocol.SubjectError, msg); err != nil {
		b.log.Warn("failed to publish cycle error", slog.String("error", err.Error()))
	}
}

func (b *busPublisher) OnTotalsChanged(totals ledger.Totals) {
	msg := protocol.TotalsChanged{
		TotalMinutes: totals.TotalMinutes,
		TotalCost:    totals.TotalCost,
		Timestamp:    time.Now().UTC(),
	}
	if err := b.client.PublishJSON(protocol.SubjectTotals, msg); err != nil {
		b.log.Warn("failed to publish totals", slog.String("error", err.Error()))
	}
}

// clipboardMirror copies each finished transcript to the system
// clipboard, so the text is ready to paste the moment the cycle ends.
type clipboardMirror struct {
	log *slog.Logger
}

func newClipboardMirror(log *slog.Logger) *clipboardMirror {
	return &clipboardMirror{log: log.With(slog.String("component", "clipboard"))}
}

func (c *clipboardMirror) OnStateChanged(session.State) {}

func (c *clipboardMirror) OnTranscriptionReady(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		c.log.Warn("failed to copy transcript to clipboard", slog.String("error", err.Error()))
	}
}

func (c *clipboardMirror) OnError(fault.Kind, string) {}

func (c *clipboardMirror) OnTotalsChanged(ledger.Totals) {}
