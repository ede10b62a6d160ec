package handlers

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/ports"
	"github.com/seu-repo/drivethru-voice/internal/service/voice"
	"github.com/seu-repo/drivethru-voice/pkg/audio"
)

// LanguageDetector labels text with a language.
type LanguageDetector interface {
	Detect(text, context string) domain.LanguageDetection
}

// VoiceHandler exposes the speech backends over plain HTTP.
type VoiceHandler struct {
	stt       ports.SpeechToText
	tts       ports.TextToSpeech
	languages LanguageDetector
	pool      *voice.InferencePool
	log       *zap.Logger
}

func NewVoiceHandler(stt ports.SpeechToText, tts ports.TextToSpeech, languages LanguageDetector, pool *voice.InferencePool, log *zap.Logger) *VoiceHandler {
	if pool == nil {
		pool = voice.NewInferencePool(4)
	}
	return &VoiceHandler{
		stt:       stt,
		tts:       tts,
		languages: languages,
		pool:      pool,
		log:       log,
	}
}

type TTSRequest struct {
	Text        string         `json:"text"`
	Language    string         `json:"language"`
	VoiceConfig map[string]any `json:"voice_config,omitempty"`
}

// Transcribe handles POST /api/v1/voice/stt/transcribe with a multipart
// "audio" WAV file and an optional "language" hint.
func (h *VoiceHandler) Transcribe(c *fiber.Ctx) error {
	if h.stt == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Speech-to-text is not configured"})
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Audio file is required"})
	}
	f, err := fh.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid audio file"})
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid audio file"})
	}
	wav, err := audio.ParseWAV(data)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	samples, err := wav.Mono16()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	hint := c.FormValue("language")
	lang := domain.ParseLanguage(hint, "")

	var tr *domain.Transcription
	err = h.pool.Do(c.UserContext(), func(ctx context.Context) error {
		var err error
		tr, err = h.stt.Transcribe(ctx, samples, wav.SampleRate, lang)
		return err
	})
	if err != nil || tr == nil {
		h.log.Error("Transcription failed", zap.String("filename", fh.Filename), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Transcription failed"})
	}

	if !lang.Valid() && h.languages != nil {
		tr.Language = h.languages.Detect(tr.Text, "").Language
	} else if lang.Valid() {
		tr.Language = lang
	}

	h.log.Info("Audio transcribed",
		zap.String("filename", fh.Filename),
		zap.Int("text_length", len(tr.Text)),
		zap.String("language", string(tr.Language)),
	)

	return c.JSON(fiber.Map{
		"text":       tr.Text,
		"confidence": tr.Confidence,
		"language":   tr.Language,
		"duration":   wav.Duration().Seconds(),
	})
}

// Synthesize handles POST /api/v1/voice/tts/generate and answers with WAV.
func (h *VoiceHandler) Synthesize(c *fiber.Ctx) error {
	if h.tts == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Text-to-speech is not configured"})
	}

	var req TTSRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": voice.ErrEmptyTTSText.Error()})
	}
	lang := domain.ParseLanguage(req.Language, "")
	if !lang.Valid() {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Language must be ar or en"})
	}

	var speech *domain.Speech
	err := h.pool.Do(c.UserContext(), func(ctx context.Context) error {
		var err error
		speech, err = h.tts.Synthesize(ctx, domain.SpeechRequest{Text: req.Text, Language: lang, VoiceConfig: req.VoiceConfig})
		return err
	})
	if err == nil && speech == nil {
		err = errors.New("empty synthesis result")
	}
	if err != nil {
		h.log.Error("Speech generation failed", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Speech generation failed"})
	}

	c.Set(fiber.HeaderContentType, "audio/wav")
	c.Set(fiber.HeaderContentDisposition, "attachment; filename=speech.wav")
	c.Set("X-Audio-Duration", strconv.FormatFloat(speech.Duration, 'f', 3, 64))
	c.Set("X-Sample-Rate", strconv.Itoa(speech.SampleRate))
	return c.Send(speech.Audio)
}
