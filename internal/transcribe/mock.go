package transcribe

import "context"

// MockTranscriber returns a fixed result, for tests and mode "mock".
type MockTranscriber struct {
	Text string
	Err  error
}

func NewMockTranscriber() *MockTranscriber {
	return &MockTranscriber{Text: "[mock transcript]"}
}

func (m *MockTranscriber) Transcribe(_ context.Context, _ string) (Result, error) {
	if m.Err != nil {
		return Result{}, m.Err
	}
	return Result{Text: m.Text}, nil
}
