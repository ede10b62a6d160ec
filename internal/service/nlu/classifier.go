package nlu

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

// Classifier assigns an intent to an utterance that carried no trigger word.
type Classifier interface {
	Classify(ctx context.Context, text string, lang domain.Language, turn Context) (domain.Intent, string)
}

const (
	sourceRules = "rules"
	sourceModel = "model"
)

type intentRule struct {
	intent     domain.IntentType
	confidence float64
	phrases    map[domain.Language][]string
}

func both(phrases ...string) map[domain.Language][]string {
	return map[domain.Language][]string{
		domain.LanguageArabic:  phrases,
		domain.LanguageEnglish: phrases,
	}
}

// Checked in order; the first rule with a phrase in the text wins.
var intentRules = []intentRule{
	{
		intent:     domain.IntentGreeting,
		confidence: 0.95,
		phrases: map[domain.Language][]string{
			domain.LanguageArabic:  {"مرحبا", "السلام عليكم", "أهلا", "اهلا", "صباح الخير", "مساء الخير"},
			domain.LanguageEnglish: {"hello", "hi", "hey", "good morning", "good evening"},
		},
	},
	{
		intent:     domain.IntentOrderItem,
		confidence: 0.85,
		phrases: map[domain.Language][]string{
			domain.LanguageArabic:  {"أريد", "اريد", "أطلب", "أحب", "ممكن", "أعطني"},
			domain.LanguageEnglish: {"want", "order", "like", "get", "give me", "i'll have"},
		},
	},
	{
		intent:     domain.IntentQueryPrice,
		confidence: 0.90,
		phrases:    both("كم", "سعر", "price", "cost", "how much"),
	},
	{
		intent:     domain.IntentQueryAvailability,
		confidence: 0.85,
		phrases:    both("عندكم", "متوفر", "موجود", "available", "do you have"),
	},
	{
		intent:     domain.IntentOrderItem,
		confidence: 0.70,
		phrases:    both("burger", "برجر", "drink", "مشروب", "meal", "وجبة", "combo", "كومبو"),
	},
}

// ruleClassifier is the keyword heuristic used when no model is loaded and
// as the fallback when the model fails.
type ruleClassifier struct{}

func (ruleClassifier) Classify(_ context.Context, text string, lang domain.Language, _ Context) (domain.Intent, string) {
	for _, rule := range intentRules {
		if containsAny(text, rule.phrases[lang], lang) {
			return domain.Intent{Type: rule.intent, Confidence: rule.confidence}, sourceRules
		}
	}
	return domain.Intent{Type: domain.IntentUnknown, Confidence: 0.5}, sourceRules
}

// modelClassifier prompts the language model and falls back to rules on any
// backend or parse failure.
type modelClassifier struct {
	model    ports.LanguageModel
	fallback Classifier
	opts     ports.CompletionOptions
	log      *zap.Logger
}

func (c *modelClassifier) Classify(ctx context.Context, text string, lang domain.Language, turn Context) (domain.Intent, string) {
	completion, err := c.model.Complete(ctx, intentPrompt(text, lang, turn), c.opts)
	if err != nil {
		c.log.Warn("Intent model failed, using rules", zap.Error(fmt.Errorf("%w: %v", ErrBackendUnavailable, err)))
		return c.fallback.Classify(ctx, text, lang, turn)
	}

	intent, err := parseIntent(completion)
	if err != nil {
		c.log.Warn("Unparseable intent completion, using rules",
			zap.String("completion", completion),
			zap.Error(err),
		)
		return c.fallback.Classify(ctx, text, lang, turn)
	}
	return intent, sourceModel
}
