package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

// MockSpeechToText is a mock implementation of ports.SpeechToText
type MockSpeechToText struct {
	TranscribeFunc func(ctx context.Context, samples []float32, sampleRate int, language domain.Language) (*domain.Transcription, error)
}

func (m *MockSpeechToText) Transcribe(ctx context.Context, samples []float32, sampleRate int, language domain.Language) (*domain.Transcription, error) {
	if m.TranscribeFunc != nil {
		return m.TranscribeFunc(ctx, samples, sampleRate, language)
	}
	return &domain.Transcription{}, nil
}

// MockTextToSpeech is a mock implementation of ports.TextToSpeech
type MockTextToSpeech struct {
	SynthesizeFunc func(ctx context.Context, req domain.SpeechRequest) (*domain.Speech, error)
}

func (m *MockTextToSpeech) Synthesize(ctx context.Context, req domain.SpeechRequest) (*domain.Speech, error) {
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, req)
	}
	return &domain.Speech{Audio: []byte{0, 0}, Duration: 0.1, SampleRate: 22050, Format: "wav"}, nil
}

// MockLanguageModel is a mock implementation of ports.LanguageModel. It
// records every prompt it receives.
type MockLanguageModel struct {
	mu           sync.Mutex
	Prompts      []string
	CompleteFunc func(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error)
}

func (m *MockLanguageModel) Complete(ctx context.Context, prompt string, opts ports.CompletionOptions) (string, error) {
	m.mu.Lock()
	m.Prompts = append(m.Prompts, prompt)
	m.mu.Unlock()
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, prompt, opts)
	}
	return "", nil
}

// PromptCount returns how many prompts were sent
func (m *MockLanguageModel) PromptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Prompts)
}
