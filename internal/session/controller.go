package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/scribelabs/scribed/internal/capture"
	"github.com/scribelabs/scribed/internal/config"
	"github.com/scribelabs/scribed/internal/eventstore"
	"github.com/scribelabs/scribed/internal/fault"
	"github.com/scribelabs/scribed/internal/ledger"
	"github.com/scribelabs/scribed/internal/transcribe"
)

// State is the controller's position in the recording lifecycle. Failed
// is momentary: it is published to observers and immediately followed by
// a return to ready.
type State string

const (
	StateReady      State = "ready"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateFailed     State = "failed"
)

// Observer receives lifecycle output. Callbacks are invoked
// synchronously from whichever goroutine advances the lifecycle, the
// intent caller or the cycle worker, and must not block; presentation
// adapters hand the values off to their own event loops.
type Observer interface {
	OnStateChanged(state State)
	OnTranscriptionReady(text string)
	OnError(kind fault.Kind, message string)
	OnTotalsChanged(totals ledger.Totals)
}

// Snapshot is the controller's externally visible state at one moment.
type Snapshot struct {
	State             State      `json:"state"`
	CycleID           string     `json:"cycle_id,omitempty"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	LastTranscription string     `json:"last_transcription,omitempty"`
}

// Controller drives one capture/transcription cycle at a time through
// ready, recording, processing, and back to ready, with failed as a
// reporting state on the way back. Intents arriving in any other state
// are ignored, which doubles as debounce for duplicate rapid triggers.
type Controller struct {
	cfg         config.Config
	logger      *slog.Logger
	recorder    *capture.Recorder
	transcriber transcribe.Transcriber
	ledger      *ledger.Ledger
	events      *eventstore.Store

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	state     State
	starting  bool
	cycleID   string
	startedAt time.Time
	lastText  string
	observers []Observer

	clock func() time.Time

	cyclesCompleted metric.Int64Counter
	cyclesFailed    metric.Int64Counter
}

// NewController wires the cycle dependencies. The event store may be nil
// when auditing is disabled.
func NewController(parent context.Context, cfg config.Config, recorder *capture.Recorder, transcriber transcribe.Transcriber, led *ledger.Ledger, events *eventstore.Store, log *slog.Logger) *Controller {
	ctx, cancel := context.WithCancel(parent)
	c := &Controller{
		cfg:         cfg,
		logger:      log.With(slog.String("component", "session")),
		recorder:    recorder,
		transcriber: transcriber,
		ledger:      led,
		events:      events,
		ctx:         ctx,
		cancel:      cancel,
		state:       StateReady,
		clock:       time.Now,
	}

	meter := otel.Meter("github.com/scribelabs/scribed/internal/session")
	var err error
	if c.cyclesCompleted, err = meter.Int64Counter("scribed.cycles.completed"); err != nil {
		c.logger.Warn("failed to create completed counter", slog.String("error", err.Error()))
	}
	if c.cyclesFailed, err = meter.Int64Counter("scribed.cycles.failed"); err != nil {
		c.logger.Warn("failed to create failed counter", slog.String("error", err.Error()))
	}
	return c
}

// AddObserver registers an observer. Not safe once intents are flowing.
func (c *Controller) AddObserver(o Observer) {
	c.observers = append(c.observers, o)
}

// Snapshot reports the current state for presentation layers that poll.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{State: c.state, LastTranscription: c.lastText}
	if c.state != StateReady {
		snap.CycleID = c.cycleID
		started := c.startedAt
		snap.StartedAt = &started
	}
	return snap
}

// StartIntent begins a new cycle. Ignored unless the controller is
// ready; a device failure is reported and leaves the controller ready.
// The recording state is entered only after the capture device is open,
// so a stop racing a slow device open finds the controller still ready
// and is ignored instead of running against a closed recorder.
func (c *Controller) StartIntent() {
	c.mu.Lock()
	if c.state != StateReady || c.starting {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("start intent ignored", slog.String("state", string(state)))
		return
	}
	c.starting = true
	c.mu.Unlock()

	err := c.recorder.Start()

	c.mu.Lock()
	c.starting = false
	if err != nil {
		c.mu.Unlock()
		c.logger.Warn("failed to start capture", slog.String("error", err.Error()))
		c.notifyError(fault.Classify(err), err.Error())
		return
	}
	c.state = StateRecording
	c.cycleID = uuid.NewString()
	c.startedAt = c.clock()
	cycleID := c.cycleID
	c.mu.Unlock()

	if c.events != nil {
		if err := c.events.BeginCycle(c.ctx, cycleID); err != nil {
			c.logger.Warn("failed to record cycle start", slog.String("error", err.Error()))
		}
	}
	c.logger.Info("recording started", slog.String("cycle_id", cycleID))
	c.notifyState(StateRecording)
}

// StopIntent ends the recording and hands the blocking work (encode,
// transcribe, ledger append) to a background goroutine. Ignored unless
// recording, so a double stop produces exactly one cycle.
func (c *Controller) StopIntent() {
	c.mu.Lock()
	if c.state != StateRecording {
		state := c.state
		c.mu.Unlock()
		c.logger.Debug("stop intent ignored", slog.String("state", string(state)))
		return
	}
	c.state = StateProcessing
	cycleID := c.cycleID
	c.mu.Unlock()

	c.notifyState(StateProcessing)
	c.appendCycleEvent(cycleID, "state", string(StateProcessing))

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runCycle(cycleID)
	}()
}

// Close waits for any in-flight cycle and releases the capture device.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
	c.mu.Lock()
	recording := c.state == StateRecording
	c.mu.Unlock()
	if recording {
		if _, err := c.recorder.Stop(); err != nil {
			c.logger.Debug("capture stop on close", slog.String("error", err.Error()))
		}
	}
}

// runCycle performs the blocking half of a cycle: stop capture, encode
// the take, transcribe it, append the ledger pair. Each step happens
// before the next by construction; the state guard keeps at most one
// runCycle in flight.
func (c *Controller) runCycle(cycleID string) {
	waveform, err := c.recorder.Stop()
	if err != nil {
		c.failCycle(cycleID, 0, err)
		return
	}
	durationMinutes := waveform.DurationMinutes()

	if err := capture.EncodeFile(c.cfg.Capture.AudioPath, waveform); err != nil {
		c.failCycle(cycleID, durationMinutes, err)
		return
	}
	c.appendCycleEvent(cycleID, "encoded", c.cfg.Capture.AudioPath)

	ctx, cancel := context.WithTimeout(c.ctx, time.Duration(c.cfg.Transcriber.TimeoutS)*time.Second)
	defer cancel()

	result, err := c.transcriber.Transcribe(ctx, c.cfg.Capture.AudioPath)
	if err != nil {
		c.failCycle(cycleID, durationMinutes, err)
		return
	}

	if err := c.ledger.RecordCycle(result.Text, durationMinutes); err != nil {
		c.failCycle(cycleID, durationMinutes, err)
		return
	}
	totals, totalsErr := c.ledger.Totals()
	if totalsErr != nil {
		c.logger.Warn("failed to recompute totals", slog.String("error", totalsErr.Error()))
	}

	c.mu.Lock()
	c.lastText = result.Text
	c.mu.Unlock()

	if c.events != nil {
		if ferr := c.events.FinishCycle(c.ctx, cycleID, "completed", durationMinutes, ""); ferr != nil {
			c.logger.Warn("failed to record cycle finish", slog.String("error", ferr.Error()))
		}
	}
	if c.cyclesCompleted != nil {
		c.cyclesCompleted.Add(c.ctx, 1)
	}
	c.logger.Info("cycle completed",
		slog.String("cycle_id", cycleID),
		slog.Float64("duration_minutes", durationMinutes))

	c.notifyTranscription(result.Text)
	if totalsErr == nil {
		c.notifyTotals(totals)
	}

	c.mu.Lock()
	c.state = StateReady
	c.mu.Unlock()
	c.notifyState(StateReady)
}

// failCycle reports the error, passes through failed, and returns the
// controller to ready. The previous transcript is never cleared.
func (c *Controller) failCycle(cycleID string, durationMinutes float64, err error) {
	kind := fault.Classify(err)
	c.logger.Warn("cycle failed",
		slog.String("cycle_id", cycleID),
		slog.String("kind", string(kind)),
		slog.String("error", err.Error()))

	if c.events != nil {
		if ferr := c.events.FinishCycle(c.ctx, cycleID, "failed", durationMinutes, string(kind)); ferr != nil {
			c.logger.Warn("failed to record cycle failure", slog.String("error", ferr.Error()))
		}
	}
	if c.cyclesFailed != nil {
		c.cyclesFailed.Add(c.ctx, 1)
	}

	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
	c.notifyState(StateFailed)
	c.notifyError(kind, err.Error())

	c.mu.Lock()
	c.state = StateReady
	c.mu.Unlock()
	c.notifyState(StateReady)
}

func (c *Controller) appendCycleEvent(cycleID, eventType, detail string) {
	if c.events == nil {
		return
	}
	evt := eventstore.CycleEvent{CycleID: cycleID, Type: eventType, Detail: detail}
	if err := c.events.AppendEvent(c.ctx, evt); err != nil {
		c.logger.Warn("failed to append cycle event", slog.String("error", err.Error()))
	}
}

func (c *Controller) notifyState(state State) {
	for _, o := range c.observers {
		o.OnStateChanged(state)
	}
}

func (c *Controller) notifyTranscription(text string) {
	for _, o := range c.observers {
		o.OnTranscriptionReady(text)
	}
}

func (c *Controller) notifyError(kind fault.Kind, message string) {
	for _, o := range c.observers {
		o.OnError(kind, message)
	}
}

func (c *Controller) notifyTotals(totals ledger.Totals) {
	for _, o := range c.observers {
		o.OnTotalsChanged(totals)
	}
}
