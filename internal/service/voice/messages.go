package voice

import (
	"encoding/json"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

// Frame opcodes, matching RFC 6455 text and binary frames.
const (
	TextMessage   = 1
	BinaryMessage = 2
)

// Inbound control message types.
const (
	TypeTTSRequest = "tts_request"
	TypeConfig     = "config"
	TypeStop       = "stop"
)

// Outbound message types.
const (
	TypeTranscription = "transcription"
	TypeNLU           = "nlu"
	TypeInterruption  = "interruption"
	TypeTTSComplete   = "tts_complete"
	TypeConfigAck     = "config_ack"
	TypeStopAck       = "stop_ack"
	TypeError         = "error"
)

type controlMessage struct {
	Type        string          `json:"type"`
	Text        string          `json:"text,omitempty"`
	Language    string          `json:"language,omitempty"`
	VoiceConfig map[string]any  `json:"voice_config,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Message is the envelope for every outbound text frame.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type TranscriptionData struct {
	Text              string          `json:"text"`
	Confidence        float64         `json:"confidence"`
	Language          domain.Language `json:"language"`
	IsCodeSwitching   bool            `json:"is_code_switching"`
	SecondaryLanguage domain.Language `json:"secondary_language,omitempty"`
}

type InterruptionData struct {
	DetectedAt string  `json:"detected_at"`
	Confidence float64 `json:"confidence"`
	AudioLevel float64 `json:"audio_level"`
}

type TTSCompleteData struct {
	Duration   float64 `json:"duration"`
	SampleRate int     `json:"sample_rate"`
	Format     string  `json:"format"`
}

type StatusData struct {
	Status string `json:"status"`
}

type ErrorData struct {
	Message string `json:"message"`
}
