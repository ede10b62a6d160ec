package nlu

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

// SlotExtractor pulls structured values out of an utterance.
type SlotExtractor interface {
	Extract(ctx context.Context, text string, lang domain.Language, intent domain.IntentType) []domain.Slot
}

var quantityPattern = regexp.MustCompile(`\b(\d+)\b`)

type sizeWord struct {
	word, size string
}

// First match wins, in this order.
var sizeWords = map[domain.Language][]sizeWord{
	domain.LanguageArabic: {
		{"صغير", "small"},
		{"وسط", "medium"},
		{"كبير", "large"},
	},
	domain.LanguageEnglish: {
		{"small", "small"},
		{"medium", "medium"},
		{"large", "large"},
	},
}

// arabicDigits maps Arabic-Indic and Eastern Arabic-Indic digits to ASCII.
func arabicDigits(r rune) rune {
	switch {
	case r >= '٠' && r <= '٩':
		return '0' + (r - '٠')
	case r >= '۰' && r <= '۹':
		return '0' + (r - '۰')
	}
	return r
}

type ruleSlotExtractor struct{}

func (ruleSlotExtractor) Extract(_ context.Context, text string, lang domain.Language, _ domain.IntentType) []domain.Slot {
	var slots []domain.Slot

	normalized := strings.Map(arabicDigits, text)
	if m := quantityPattern.FindStringSubmatch(normalized); m != nil {
		slots = append(slots, domain.Slot{Type: domain.SlotQuantity, Value: m[1], Confidence: 0.95})
	}

	lowered := strings.ToLower(text)
	for _, sw := range sizeWords[lang] {
		if strings.Contains(lowered, sw.word) {
			slots = append(slots, domain.Slot{Type: domain.SlotSize, Value: sw.size, Confidence: 0.90})
			break
		}
	}

	return slots
}

// modelSlotExtractor prompts the language model for order and modify
// intents. Everything else, and every model failure, goes to rules.
type modelSlotExtractor struct {
	model    ports.LanguageModel
	fallback SlotExtractor
	opts     ports.CompletionOptions
	log      *zap.Logger
}

func (e *modelSlotExtractor) Extract(ctx context.Context, text string, lang domain.Language, intent domain.IntentType) []domain.Slot {
	if intent != domain.IntentOrderItem && intent != domain.IntentModifyOrder {
		return e.fallback.Extract(ctx, text, lang, intent)
	}

	completion, err := e.model.Complete(ctx, slotPrompt(text, lang, intent), e.opts)
	if err != nil {
		e.log.Warn("Slot model failed, using rules", zap.Error(fmt.Errorf("%w: %v", ErrBackendUnavailable, err)))
		return e.fallback.Extract(ctx, text, lang, intent)
	}
	return parseSlots(completion)
}

// entities converts slots into typed values. Later slots of the same type
// overwrite earlier ones.
func entities(slots []domain.Slot) map[string]any {
	out := make(map[string]any)
	for _, s := range slots {
		switch s.Type {
		case domain.SlotQuantity:
			if n, err := strconv.Atoi(strings.Map(arabicDigits, s.Value)); err == nil {
				out[string(domain.SlotQuantity)] = n
			}
		case domain.SlotSize, domain.SlotItemName:
			out[string(s.Type)] = s.Value
		}
	}
	return out
}
