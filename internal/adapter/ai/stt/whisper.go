package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/drivethru-voice/internal/ports"
	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

// Whisper calls a whisper.cpp style inference server that accepts a
// multipart "file" field and answers {"text": "..."}.
type Whisper struct {
	endpoint string
	model    string
	client   *circuitbreaker.HTTPClient
	log      *zap.Logger
}

var _ ports.SpeechToText = (*Whisper)(nil)

func NewWhisper(endpoint, model string, client *circuitbreaker.HTTPClient, log *zap.Logger) *Whisper {
	return &Whisper{endpoint: endpoint, model: model, client: client, log: log}
}

type whisperResp struct {
	Text       string   `json:"text"`
	Language   string   `json:"language,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

func (w *Whisper) Transcribe(ctx context.Context, samples []float32, sampleRate int, language domain.Language) (*domain.Transcription, error) {
	start := time.Now()

	wav := audio.WrapPCMAsWAV(audio.EncodePCM16(samples), sampleRate, 1, 16)

	var b bytes.Buffer
	mw := multipart.NewWriter(&b)
	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(wav); err != nil {
		return nil, fmt.Errorf("write audio to form: %w", err)
	}
	if w.model != "" {
		if err := mw.WriteField("model", w.model); err != nil {
			return nil, fmt.Errorf("write model field: %w", err)
		}
	}
	if language.Valid() {
		if err := mw.WriteField("language", string(language)); err != nil {
			return nil, fmt.Errorf("write language field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return nil, fmt.Errorf("write response_format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &b)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to whisper server: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("whisper server returned status %d: %s", resp.StatusCode, string(body))
	}

	var wr whisperResp
	if err := json.Unmarshal(body, &wr); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	// Servers that don't score transcripts get full confidence.
	confidence := 1.0
	if wr.Confidence != nil {
		confidence = *wr.Confidence
	}

	tr := &domain.Transcription{
		Text:       wr.Text,
		Confidence: confidence,
		Language:   domain.ParseLanguage(wr.Language, language),
		Duration:   time.Since(start),
	}
	w.log.Debug("Audio transcribed",
		zap.Int("samples", len(samples)),
		zap.Int("text_length", len(tr.Text)),
		zap.Duration("latency", tr.Duration),
	)
	return tr, nil
}
