package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scribelabs/scribed/internal/config"
	"github.com/scribelabs/scribed/internal/fault"
)

func writeFakeWav(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "take.wav")
	if err := os.WriteFile(path, []byte("RIFF fake"), 0o644); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	return path
}

func transcriberConfig(endpoint string) config.TranscriberConfig {
	return config.TranscriberConfig{
		Mode:     "openai",
		Endpoint: endpoint,
		Model:    "whisper-1",
		APIKey:   "sk-test",
		TimeoutS: 5,
	}
}

func TestTranscribeSuccess(t *testing.T) {
	var gotAuth, gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if model := r.FormValue("model"); model != "whisper-1" {
			t.Errorf("unexpected model field: %q", model)
		}
		w.Write([]byte(`{"text":"hello world"}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(transcriberConfig(srv.URL))
	res, err := tr.Transcribe(context.Background(), writeFakeWav(t))
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if res.Text != "hello world" {
		t.Fatalf("unexpected text: %q", res.Text)
	}
	if gotAuth != "Bearer sk-test" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if !strings.HasPrefix(gotContentType, "multipart/form-data") {
		t.Fatalf("unexpected content type: %q", gotContentType)
	}
}

func TestTranscribeAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key"}}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(transcriberConfig(srv.URL))
	_, err := tr.Transcribe(context.Background(), writeFakeWav(t))
	if err == nil {
		t.Fatal("expected error")
	}
	if fault.Classify(err) != fault.KindAuth {
		t.Fatalf("expected auth kind, got %s", fault.Classify(err))
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected remote message in error, got %v", err)
	}
}

func TestTranscribeServiceFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	}))
	defer srv.Close()

	tr := NewOpenAITranscriber(transcriberConfig(srv.URL))
	_, err := tr.Transcribe(context.Background(), writeFakeWav(t))
	if fault.Classify(err) != fault.KindService {
		t.Fatalf("expected service kind, got %v", err)
	}
}

func TestTranscribeNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // connection refused from here on

	tr := NewOpenAITranscriber(transcriberConfig(srv.URL))
	_, err := tr.Transcribe(context.Background(), writeFakeWav(t))
	if fault.Classify(err) != fault.KindNetwork {
		t.Fatalf("expected network kind, got %v", err)
	}
}
