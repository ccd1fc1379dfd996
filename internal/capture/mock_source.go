package capture

import "sync"

// MockSource is an in-memory Source for tests and capture mode "mock".
// Blocks fed through Feed are delivered to the open callback; Feed after
// Close is dropped.
type MockSource struct {
	// OpenErr, when set, is returned by Open to simulate a missing or
	// busy device.
	OpenErr error

	mu      sync.Mutex
	onBlock func([]float32)
}

func NewMockSource() *MockSource {
	return &MockSource{}
}

func (s *MockSource) Open(onBlock func(block []float32)) error {
	if s.OpenErr != nil {
		return s.OpenErr
	}
	s.mu.Lock()
	s.onBlock = onBlock
	s.mu.Unlock()
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	s.onBlock = nil
	s.mu.Unlock()
	return nil
}

// Feed delivers one block as if it arrived from the device.
func (s *MockSource) Feed(block []float32) {
	s.mu.Lock()
	cb := s.onBlock
	s.mu.Unlock()
	if cb != nil {
		cb(block)
	}
}

// FeedSilence delivers n zero samples in blockSize chunks.
func (s *MockSource) FeedSilence(n, blockSize int) {
	for n > 0 {
		size := blockSize
		if n < size {
			size = n
		}
		s.Feed(make([]float32, size))
		n -= size
	}
}
