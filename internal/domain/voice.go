package domain

import "time"

type InterruptionKind string

const (
	InterruptionSpeech  InterruptionKind = "speech"
	InterruptionNoise   InterruptionKind = "noise"
	InterruptionSilence InterruptionKind = "silence"
)

// InterruptionEvent is raised when the user speaks over an assistant reply.
type InterruptionEvent struct {
	DetectedAt time.Time        `json:"detected_at"`
	Confidence float64          `json:"confidence"`
	AudioLevel float64          `json:"audio_level"`
	Kind       InterruptionKind `json:"type"`
}

// Transcription is the speech-to-text output for one audio frame.
type Transcription struct {
	Text       string        `json:"text"`
	Confidence float64       `json:"confidence"`
	Language   Language      `json:"language,omitempty"`
	Duration   time.Duration `json:"-"`
}

// SpeechRequest asks the synthesis backend for audio.
type SpeechRequest struct {
	Text        string         `json:"text"`
	Language    Language       `json:"language"`
	VoiceConfig map[string]any `json:"voice_config,omitempty"`
}

// Speech is synthesized audio.
type Speech struct {
	Audio      []byte  `json:"-"`
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Format     string  `json:"format"`
}
