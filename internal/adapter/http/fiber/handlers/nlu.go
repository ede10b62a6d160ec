package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/service/grounding"
	"github.com/seu-repo/drivethru-voice/internal/service/nlu"
)

// Engine is the NLU surface the handler needs.
type Engine interface {
	Process(ctx context.Context, req nlu.Request) *domain.NLUResult
	Health() nlu.Health
}

// KeywordMatcher grounds text against a branch catalog.
type KeywordMatcher interface {
	Match(ctx context.Context, text string, lang domain.Language, branchID int64, limit int) ([]domain.KeywordMatch, error)
}

// KeywordWriter adds catalog keywords.
type KeywordWriter interface {
	AddKeyword(ctx context.Context, kw *domain.Keyword) error
}

type NLUHandler struct {
	engine   Engine
	matcher  KeywordMatcher
	keywords KeywordWriter
	defLang  domain.Language
	log      *zap.Logger
}

func NewNLUHandler(engine Engine, matcher KeywordMatcher, keywords KeywordWriter, defLang domain.Language, log *zap.Logger) *NLUHandler {
	return &NLUHandler{
		engine:   engine,
		matcher:  matcher,
		keywords: keywords,
		defLang:  defLang,
		log:      log,
	}
}

type NLURequest struct {
	Text     string         `json:"text"`
	Language string         `json:"language"`
	Context  map[string]any `json:"context,omitempty"`
	BranchID *int64         `json:"branch_id,omitempty"`
}

type KeywordMatchRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	BranchID int64  `json:"branch_id"`
	Limit    int    `json:"limit"`
}

type AddKeywordRequest struct {
	BranchID  int64   `json:"branch_id"`
	ItemID    int64   `json:"item_id"`
	KeywordAR string  `json:"keyword_ar"`
	KeywordEN string  `json:"keyword_en"`
	Weight    float64 `json:"weight"`
}

// Process handles POST /api/v1/nlu/process
func (h *NLUHandler) Process(c *fiber.Ctx) error {
	var req NLURequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Text is required"})
	}

	result := h.engine.Process(c.UserContext(), nlu.Request{
		Text:     req.Text,
		Language: domain.ParseLanguage(req.Language, h.defLang),
		Context:  nlu.Context(req.Context),
		BranchID: req.BranchID,
	})

	return c.JSON(result)
}

// MatchKeywords handles POST /api/v1/nlu/keywords/match
func (h *NLUHandler) MatchKeywords(c *fiber.Ctx) error {
	if h.matcher == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Keyword matching is disabled"})
	}

	var req KeywordMatchRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if strings.TrimSpace(req.Text) == "" || req.BranchID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Text and branch_id are required"})
	}

	lang := domain.ParseLanguage(req.Language, h.defLang)
	matches, err := h.matcher.Match(c.UserContext(), req.Text, lang, req.BranchID, req.Limit)
	if err != nil {
		h.log.Error("Keyword matching failed", zap.Int64("branch_id", req.BranchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Keyword matching failed"})
	}
	if matches == nil {
		matches = []domain.KeywordMatch{}
	}

	return c.JSON(fiber.Map{
		"matches":  matches,
		"count":    len(matches),
		"language": lang,
	})
}

// AddKeyword handles POST /api/v1/nlu/keywords
func (h *NLUHandler) AddKeyword(c *fiber.Ctx) error {
	if h.keywords == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "Keyword catalog is not configured"})
	}

	var req AddKeywordRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	if req.BranchID <= 0 || req.ItemID <= 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "branch_id and item_id are required"})
	}

	kw := &domain.Keyword{
		BranchID:  req.BranchID,
		ItemID:    req.ItemID,
		KeywordAR: req.KeywordAR,
		KeywordEN: req.KeywordEN,
		Weight:    req.Weight,
	}
	if err := h.keywords.AddKeyword(c.UserContext(), kw); err != nil {
		if errors.Is(err, grounding.ErrInvalidKeyword) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		h.log.Error("Failed to add keyword", zap.Int64("branch_id", req.BranchID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to add keyword"})
	}

	return c.Status(fiber.StatusCreated).JSON(kw)
}

// Health handles GET /api/v1/nlu/health
func (h *NLUHandler) Health(c *fiber.Ctx) error {
	return c.JSON(h.engine.Health())
}
