package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/infrastructure/circuitbreaker"
	"github.com/seu-repo/drivethru-voice/internal/ports"
	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

// Piper posts text to a Piper HTTP server and returns the WAV it streams
// back.
type Piper struct {
	endpoint string
	voice    string
	client   *circuitbreaker.HTTPClient
	log      *zap.Logger
}

var _ ports.TextToSpeech = (*Piper)(nil)

func NewPiper(endpoint, voice string, client *circuitbreaker.HTTPClient, log *zap.Logger) *Piper {
	return &Piper{endpoint: endpoint, voice: voice, client: client, log: log}
}

type ttsRequest struct {
	Text        string         `json:"text"`
	Language    string         `json:"language"`
	Voice       string         `json:"voice,omitempty"`
	VoiceConfig map[string]any `json:"voice_config,omitempty"`
}

func (p *Piper) Synthesize(ctx context.Context, r domain.SpeechRequest) (*domain.Speech, error) {
	voice := p.voice
	if v, ok := r.VoiceConfig["voice"].(string); ok && v != "" {
		voice = v
	}

	b, err := json.Marshal(ttsRequest{
		Text:        r.Text,
		Language:    string(r.Language),
		Voice:       voice,
		VoiceConfig: r.VoiceConfig,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal tts request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/wav")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post to piper tts: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read tts response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("piper tts bad status %d: %s", resp.StatusCode, string(body))
	}

	wav, err := audio.ParseWAV(body)
	if err != nil {
		return nil, fmt.Errorf("parse tts audio: %w", err)
	}

	speech := &domain.Speech{
		Audio:      body,
		Duration:   wav.Duration().Seconds(),
		SampleRate: wav.SampleRate,
		Format:     "wav",
	}
	p.log.Debug("Speech generated",
		zap.Int("text_length", len(r.Text)),
		zap.String("language", string(r.Language)),
		zap.Float64("duration", speech.Duration),
	)
	return speech, nil
}
