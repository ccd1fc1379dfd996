package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.SampleRate != 44100 {
		t.Fatalf("expected default sample rate, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Transcriber.CostPerMinute != 0.006 {
		t.Fatalf("expected default cost per minute, got %f", cfg.Transcriber.CostPerMinute)
	}
	if cfg.Transcriber.APIKey != "sk-test" {
		t.Fatal("expected api key from OPENAI_API_KEY")
	}
}

func TestMissingAPIKeyIsFatal(t *testing.T) {
	// Whitespace-only values are ignored by the override helpers, so this
	// masks any key present in the test environment.
	t.Setenv("SCRIBED_TRANSCRIBER_API_KEY", " ")
	t.Setenv("OPENAI_API_KEY", " ")
	_, err := Load("")
	if err == nil {
		t.Fatal("expected validation error without api key")
	}
	if !strings.Contains(err.Error(), "api key") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMockModeNeedsNoKey(t *testing.T) {
	t.Setenv("SCRIBED_TRANSCRIBER_MODE", "mock")
	if _, err := Load(""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("SCRIBED_TRANSCRIBER_MODE", "mock")
	t.Setenv("SCRIBED_CAPTURE_SAMPLE_RATE", "16000")
	t.Setenv("SCRIBED_CAPTURE_AUDIO_PATH", "/tmp/take.wav")
	t.Setenv("SCRIBED_TRANSCRIBER_COST_PER_MINUTE", "0.012")
	t.Setenv("SCRIBED_LEDGER_DIR", "/tmp/ledger")
	t.Setenv("SCRIBED_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("SCRIBED_EVENT_STORE_RETENTION_MODE", "ephemeral")
	t.Setenv("SCRIBED_CLIPBOARD_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.SampleRate != 16000 {
		t.Fatalf("expected sample rate override, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Capture.AudioPath != "/tmp/take.wav" {
		t.Fatal("expected audio path override")
	}
	if cfg.Transcriber.CostPerMinute != 0.012 {
		t.Fatalf("expected cost override, got %f", cfg.Transcriber.CostPerMinute)
	}
	if cfg.Ledger.Dir != "/tmp/ledger" {
		t.Fatal("expected ledger dir override")
	}
	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.EventStore.RetentionMode != "ephemeral" {
		t.Fatal("expected retention mode override")
	}
	if cfg.Clipboard.Enabled {
		t.Fatal("expected clipboard disabled")
	}
}

func TestLoadYAMLFile(t *testing.T) {
	t.Setenv("SCRIBED_TRANSCRIBER_MODE", "mock")
	dir := t.TempDir()
	path := filepath.Join(dir, "scribed.yaml")
	doc := `
runtime_name: scribed-test
capture:
  mode: mock
  sample_rate: 22050
transcriber:
  mode: mock
  cost_per_minute: 0.003
`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RuntimeName != "scribed-test" {
		t.Fatalf("expected runtime name from file, got %s", cfg.RuntimeName)
	}
	if cfg.Capture.SampleRate != 22050 {
		t.Fatalf("expected sample rate from file, got %d", cfg.Capture.SampleRate)
	}
	if cfg.Transcriber.CostPerMinute != 0.003 {
		t.Fatalf("expected cost from file, got %f", cfg.Transcriber.CostPerMinute)
	}
}

func TestInvalidCaptureMode(t *testing.T) {
	t.Setenv("SCRIBED_TRANSCRIBER_MODE", "mock")
	t.Setenv("SCRIBED_CAPTURE_MODE", "alsa")
	if _, err := Load(""); err == nil {
		t.Fatal("expected validation error for capture mode")
	}
}
