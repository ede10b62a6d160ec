package ports

import (
	"context"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

// SpeechToText transcribes mono PCM samples in [-1, 1].
type SpeechToText interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language domain.Language) (*domain.Transcription, error)
}

// TextToSpeech synthesizes reply audio.
type TextToSpeech interface {
	Synthesize(ctx context.Context, req domain.SpeechRequest) (*domain.Speech, error)
}

type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
	Stop        []string
}

// LanguageModel turns a prompt into a completion.
type LanguageModel interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
}

// VoiceActivityDetector classifies fixed-size PCM frames as speech or not.
type VoiceActivityDetector interface {
	// FrameSize is the frame length in bytes expected at sampleRate.
	FrameSize(sampleRate int) int
	IsSpeech(frame []byte, sampleRate int) (bool, error)
}
