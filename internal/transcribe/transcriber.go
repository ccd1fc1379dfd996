package transcribe

import "context"

// Result captures transcriber output.
type Result struct {
	Text string
}

// Transcriber turns a recorded WAV file into text. Implementations are
// slow, may fail, and are never retried by the caller.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (Result, error)
}
