package capture

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Quantize converts a float sample in [-1, 1] to 16-bit PCM. Values are
// clamped, then truncated toward zero, matching int16(x * 32767).
func Quantize(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767)
}

// EncodeFile writes the waveform as a 16-bit PCM mono WAV file,
// overwriting whatever take was there before.
func EncodeFile(path string, w Waveform) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create audio dir: %w", err)
		}
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav file: %w", err)
	}
	defer file.Close()

	buffer := &audio.IntBuffer{
		Format: &audio.Format{NumChannels: 1, SampleRate: w.SampleRate},
		Data:   make([]int, len(w.Samples)),
	}
	for i, s := range w.Samples {
		buffer.Data[i] = int(Quantize(s))
	}

	enc := wav.NewEncoder(file, w.SampleRate, 16, 1, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
