package capture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/scribelabs/scribed/internal/config"
	"github.com/scribelabs/scribed/internal/fault"
)

var (
	// ErrEmptyCapture is returned by Stop when no samples arrived.
	ErrEmptyCapture = errors.New("no audio captured")
	// ErrAlreadyActive is returned by Start while a capture is running.
	ErrAlreadyActive = errors.New("capture already active")
	// ErrNotActive is returned by Stop without a matching Start.
	ErrNotActive = errors.New("capture not active")
)

// Source delivers microphone sample blocks. Open begins delivery to the
// given callback; the callback runs on the source's audio thread and must
// return quickly.
type Source interface {
	Open(onBlock func(block []float32)) error
	Close() error
}

// Waveform is one recorded take: mono float32 samples at a fixed rate.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// DurationMinutes reports the take length in minutes.
func (w Waveform) DurationMinutes() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate) / 60.0
}

// Recorder buffers sample blocks from a Source between Start and Stop.
// It is not safe for concurrent Start/Stop from multiple goroutines; the
// session controller serializes access.
type Recorder struct {
	cfg    config.CaptureConfig
	source Source

	mu     sync.Mutex
	blocks [][]float32
	total  int
	active bool
}

func NewRecorder(cfg config.CaptureConfig, source Source) *Recorder {
	return &Recorder{cfg: cfg, source: source}
}

// Start clears any previous buffer and begins appending incoming blocks.
// A device that cannot be opened surfaces as a device fault.
func (r *Recorder) Start() error {
	r.mu.Lock()
	if r.active {
		r.mu.Unlock()
		return fault.Wrap(fault.KindDevice, ErrAlreadyActive)
	}
	r.blocks = nil
	r.total = 0
	r.active = true
	r.mu.Unlock()

	if err := r.source.Open(r.push); err != nil {
		r.mu.Lock()
		r.active = false
		r.mu.Unlock()
		return fault.Wrap(fault.KindDevice, fmt.Errorf("open input stream: %w", err))
	}
	return nil
}

// push runs on the audio thread: copy the block and append, nothing else.
func (r *Recorder) push(block []float32) {
	buf := make([]float32, len(block))
	copy(buf, block)
	r.mu.Lock()
	if r.active {
		r.blocks = append(r.blocks, buf)
		r.total += len(buf)
	}
	r.mu.Unlock()
}

// Stop halts the stream, releases the device, and returns the concatenated
// waveform. A capture with zero samples is an empty-capture fault.
func (r *Recorder) Stop() (Waveform, error) {
	r.mu.Lock()
	if !r.active {
		r.mu.Unlock()
		return Waveform{}, fault.Wrap(fault.KindEmptyCapture, ErrNotActive)
	}
	r.active = false
	r.mu.Unlock()

	closeErr := r.source.Close()

	r.mu.Lock()
	blocks := r.blocks
	total := r.total
	r.blocks = nil
	r.total = 0
	r.mu.Unlock()

	if closeErr != nil {
		return Waveform{}, fault.Wrap(fault.KindDevice, fmt.Errorf("close input stream: %w", closeErr))
	}
	if total == 0 {
		return Waveform{}, fault.Wrap(fault.KindEmptyCapture, ErrEmptyCapture)
	}

	samples := make([]float32, 0, total)
	for _, b := range blocks {
		samples = append(samples, b...)
	}
	return Waveform{Samples: samples, SampleRate: r.cfg.SampleRate}, nil
}
