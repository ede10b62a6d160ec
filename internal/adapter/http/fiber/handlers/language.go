package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/service/language"
)

type LanguageHandler struct {
	detector LanguageDetector
	log      *zap.Logger
}

func NewLanguageHandler(detector LanguageDetector, log *zap.Logger) *LanguageHandler {
	return &LanguageHandler{detector: detector, log: log}
}

type DetectRequest struct {
	Text    string `json:"text"`
	Context string `json:"context,omitempty"`
}

type DetectResponse struct {
	domain.LanguageDetection
	Prompt string `json:"prompt,omitempty"`
}

// Detect handles POST /api/v1/language/detect
func (h *LanguageHandler) Detect(c *fiber.Ctx) error {
	var req DetectRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result := h.detector.Detect(req.Text, req.Context)
	return c.JSON(DetectResponse{
		LanguageDetection: result,
		Prompt:            language.LanguagePrompt(result.Language),
	})
}
