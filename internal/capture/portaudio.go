package capture

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/scribelabs/scribed/internal/config"
)

// PortAudioSource opens the default mono input device through PortAudio.
// The library is initialized lazily on first Open and stays initialized
// for the life of the process.
type PortAudioSource struct {
	cfg config.CaptureConfig

	mu     sync.Mutex
	stream *portaudio.Stream
}

var paInitOnce sync.Once

func NewPortAudioSource(cfg config.CaptureConfig) *PortAudioSource {
	return &PortAudioSource{cfg: cfg}
}

func (s *PortAudioSource) Open(onBlock func(block []float32)) error {
	var initErr error
	paInitOnce.Do(func() {
		initErr = portaudio.Initialize()
	})
	if initErr != nil {
		return fmt.Errorf("initialize portaudio: %w", initErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return ErrAlreadyActive
	}

	stream, err := portaudio.OpenDefaultStream(
		s.cfg.Channels, 0, float64(s.cfg.SampleRate), s.cfg.BlockSize,
		func(in []float32) {
			onBlock(in)
		},
	)
	if err != nil {
		return fmt.Errorf("open default input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}
	s.stream = stream
	return nil
}

func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream == nil {
		return nil
	}
	stream := s.stream
	s.stream = nil
	if err := stream.Stop(); err != nil {
		stream.Close()
		return fmt.Errorf("stop input stream: %w", err)
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("close input stream: %w", err)
	}
	return nil
}
