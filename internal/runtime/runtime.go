package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scribelabs/scribed/internal/bus"
	"github.com/scribelabs/scribed/internal/capture"
	"github.com/scribelabs/scribed/internal/config"
	"github.com/scribelabs/scribed/internal/eventstore"
	"github.com/scribelabs/scribed/internal/ledger"
	"github.com/scribelabs/scribed/internal/natsserver"
	"github.com/scribelabs/scribed/internal/session"
	"github.com/scribelabs/scribed/internal/transcribe"
)

// Runtime owns component construction, the HTTP surface, and shutdown
// ordering.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start brings the daemon up and blocks until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	led, err := ledger.New(r.cfg.Ledger, r.cfg.Transcriber.CostPerMinute)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	events, err := eventstore.Open(ctx, r.cfg.EventStore, r.logger)
	if err != nil {
		return fmt.Errorf("open event store: %w", err)
	}
	defer events.Close()

	transcriber, err := buildTranscriber(r.cfg.Transcriber)
	if err != nil {
		return fmt.Errorf("build transcriber: %w", err)
	}

	recorder := capture.NewRecorder(r.cfg.Capture, buildSource(r.cfg.Capture))

	controller := session.NewController(ctx, r.cfg, recorder, transcriber, led, events, r.logger)
	defer controller.Close()

	var embedded *natsserver.EmbeddedServer
	var busClient *bus.Client
	if r.cfg.Bus.Enabled {
		embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
		if err != nil {
			return fmt.Errorf("start embedded bus: %w", err)
		}
		defer embedded.Shutdown()

		busCfg := r.cfg.Bus
		if busCfg.Embedded {
			busCfg.Servers = []string{embedded.ClientURL()}
		}
		busClient, err = bus.Connect(busCfg, r.logger)
		if err != nil {
			return fmt.Errorf("connect to bus: %w", err)
		}
		defer busClient.Close()

		controller.AddObserver(newBusPublisher(busClient, r.logger))
	}

	if r.cfg.Clipboard.Enabled {
		controller.AddObserver(newClipboardMirror(r.logger))
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("/metrics", metricHandler)
	}
	(&api{controller: controller, ledger: led, log: r.logger}).register(mux)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("capture_mode", r.cfg.Capture.Mode),
		slog.String("transcriber_mode", r.cfg.Transcriber.Mode))

	<-ctx.Done()
	r.ready.Store(false)
	r.logger.Info("runtime stopping")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func buildTranscriber(cfg config.TranscriberConfig) (transcribe.Transcriber, error) {
	switch cfg.Mode {
	case "openai":
		return transcribe.NewOpenAITranscriber(cfg), nil
	case "exec":
		return transcribe.NewExecTranscriber(cfg)
	case "mock":
		return transcribe.NewMockTranscriber(), nil
	default:
		return nil, fmt.Errorf("unknown transcriber mode %q", cfg.Mode)
	}
}

func buildSource(cfg config.CaptureConfig) capture.Source {
	if cfg.Mode == "mock" {
		return capture.NewMockSource()
	}
	return capture.NewPortAudioSource(cfg)
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
