package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/scribelabs/scribed/internal/config"
	"github.com/scribelabs/scribed/internal/fault"
)

// OpenAITranscriber uploads the take to the hosted audio/transcriptions
// endpoint as a multipart form and returns the plain-text result.
type OpenAITranscriber struct {
	cfg    config.TranscriberConfig
	client *http.Client
}

type openAIResponse struct {
	Text string `json:"text"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func NewOpenAITranscriber(cfg config.TranscriberConfig) *OpenAITranscriber {
	// Timeouts are owned by the per-cycle context, not the client.
	return &OpenAITranscriber{cfg: cfg, client: &http.Client{}}
}

func (t *OpenAITranscriber) Transcribe(ctx context.Context, audioPath string) (Result, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return Result{}, fault.Wrap(fault.KindService, fmt.Errorf("open audio file: %w", err))
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if err := mw.WriteField("model", t.cfg.Model); err != nil {
		return Result{}, fault.Wrap(fault.KindService, err)
	}
	if t.cfg.Language != "" {
		if err := mw.WriteField("language", t.cfg.Language); err != nil {
			return Result{}, fault.Wrap(fault.KindService, err)
		}
	}
	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return Result{}, fault.Wrap(fault.KindService, err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Result{}, fault.Wrap(fault.KindService, err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, fault.Wrap(fault.KindService, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.Endpoint, &body)
	if err != nil {
		return Result{}, fault.Wrap(fault.KindService, err)
	}
	req.Header.Set("Authorization", "Bearer "+t.cfg.APIKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		return Result{}, fault.Wrap(fault.KindNetwork, fmt.Errorf("transcription request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := remoteErrorMessage(raw)
		kind := fault.KindService
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
			kind = fault.KindAuth
		}
		return Result{}, fault.Newf(kind, "transcription service http %d: %s", resp.StatusCode, msg)
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fault.Wrap(fault.KindService, fmt.Errorf("decode transcription response: %w", err))
	}
	return Result{Text: out.Text}, nil
}

func remoteErrorMessage(raw []byte) string {
	var parsed openAIErrorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return string(raw)
}
