package nlu

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

// ErrBackendUnavailable marks language model failures that triggered the
// rule-based fallback.
var ErrBackendUnavailable = errors.New("nlu backend unavailable")

var clarificationText = map[domain.Language]string{
	domain.LanguageArabic:  "عفواً، لم أفهم طلبك بوضوح. هل يمكنك إعادة الصياغة؟",
	domain.LanguageEnglish: "Sorry, I didn't quite understand. Could you rephrase that?",
}

var failureText = map[domain.Language]string{
	domain.LanguageArabic:  "عفواً، لم أفهم. هل يمكنك إعادة الطلب؟",
	domain.LanguageEnglish: "Sorry, I didn't understand. Can you repeat?",
}

// Context carries conversation state into a single Process call.
type Context map[string]any

const previousTextKey = "previous_text"

func (c Context) PreviousText() string {
	if c == nil {
		return ""
	}
	s, _ := c[previousTextKey].(string)
	return s
}

// WithPreviousText returns a copy of c with the prior utterance set.
func (c Context) WithPreviousText(text string) Context {
	out := make(Context, len(c)+1)
	for k, v := range c {
		out[k] = v
	}
	out[previousTextKey] = text
	return out
}

// KeywordSource grounds text against a branch catalog.
type KeywordSource interface {
	Match(ctx context.Context, text string, lang domain.Language, branchID int64, limit int) ([]domain.KeywordMatch, error)
}

type Request struct {
	Text     string
	Language domain.Language
	Context  Context
	BranchID *int64
}

type Config struct {
	DefaultLanguage        domain.Language
	ClarificationThreshold float64
	LatencyTarget          time.Duration
	IntentMaxTokens        int
	SlotMaxTokens          int
	Temperature            float64
	GroundingLimit         int
}

func DefaultConfig() Config {
	return Config{
		DefaultLanguage:        domain.LanguageArabic,
		ClarificationThreshold: 0.7,
		LatencyTarget:          200 * time.Millisecond,
		IntentMaxTokens:        50,
		SlotMaxTokens:          100,
		Temperature:            0.1,
		GroundingLimit:         5,
	}
}

type Health struct {
	Service           string `json:"service"`
	Status            string `json:"status"`
	ModelLoaded       bool   `json:"model_loaded"`
	FallbackAvailable bool   `json:"fallback_available"`
}

// Engine turns an utterance into intent, slots and entities. Process never
// returns an error; failures degrade to an unknown intent with a
// clarification prompt.
type Engine struct {
	cfg        Config
	classifier Classifier
	slots      SlotExtractor
	keywords   KeywordSource
	modelReady bool
	log        *zap.Logger
}

type Option func(*Engine)

// WithKeywordSource enables grounding for requests that carry a branch id.
func WithKeywordSource(src KeywordSource) Option {
	return func(e *Engine) { e.keywords = src }
}

// NewEngine selects the model-backed strategies when model is non-nil and
// the rule-based ones otherwise.
func NewEngine(cfg Config, model ports.LanguageModel, log *zap.Logger, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = defaults.DefaultLanguage
	}
	if cfg.ClarificationThreshold <= 0 {
		cfg.ClarificationThreshold = defaults.ClarificationThreshold
	}
	if cfg.LatencyTarget <= 0 {
		cfg.LatencyTarget = defaults.LatencyTarget
	}
	if cfg.IntentMaxTokens <= 0 {
		cfg.IntentMaxTokens = defaults.IntentMaxTokens
	}
	if cfg.SlotMaxTokens <= 0 {
		cfg.SlotMaxTokens = defaults.SlotMaxTokens
	}
	if cfg.GroundingLimit <= 0 {
		cfg.GroundingLimit = defaults.GroundingLimit
	}

	e := &Engine{cfg: cfg, log: log}

	rules := ruleClassifier{}
	ruleSlots := ruleSlotExtractor{}
	if model != nil {
		e.modelReady = true
		e.classifier = &modelClassifier{
			model:    model,
			fallback: rules,
			opts: ports.CompletionOptions{
				MaxTokens:   cfg.IntentMaxTokens,
				Temperature: cfg.Temperature,
				Stop:        []string{"</intent>"},
			},
			log: log,
		}
		e.slots = &modelSlotExtractor{
			model:    model,
			fallback: ruleSlots,
			opts: ports.CompletionOptions{
				MaxTokens:   cfg.SlotMaxTokens,
				Temperature: cfg.Temperature,
				Stop:        []string{"</slots>"},
			},
			log: log,
		}
		log.Info("NLU engine using language model")
	} else {
		e.classifier = rules
		e.slots = ruleSlots
		log.Info("NLU engine using rule-based classification")
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Health() Health {
	return Health{
		Service:           "nlu",
		Status:            "ready",
		ModelLoaded:       e.modelReady,
		FallbackAvailable: true,
	}
}

func (e *Engine) Process(ctx context.Context, req Request) (result *domain.NLUResult) {
	start := time.Now()
	lang := req.Language
	if !lang.Valid() {
		lang = e.cfg.DefaultLanguage
	}

	ctx, span := telemetry.Tracer().Start(ctx, "nlu.process")
	span.SetAttributes(attribute.String("language", string(lang)))

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("NLU pipeline panicked", zap.Any("panic", r), zap.String("text", req.Text))
			result = &domain.NLUResult{
				Text:                  req.Text,
				Language:              lang,
				Intent:                domain.Intent{Type: domain.IntentUnknown, Confidence: 0},
				Slots:                 []domain.Slot{},
				Entities:              map[string]any{},
				MatchedKeywords:       []string{},
				NeedsClarification:    true,
				ClarificationQuestion: failureText[lang],
			}
		}

		elapsed := time.Since(start)
		result.ProcessingTimeMS = float64(elapsed.Microseconds()) / 1000
		telemetry.NLULatency.Observe(elapsed.Seconds())
		if elapsed > e.cfg.LatencyTarget {
			telemetry.LatencyBreachesTotal.WithLabelValues("nlu").Inc()
			e.log.Warn("NLU processing exceeded latency target",
				zap.Duration("elapsed", elapsed),
				zap.Duration("target", e.cfg.LatencyTarget),
			)
		}
		span.SetAttributes(
			attribute.String("intent", string(result.Intent.Type)),
			attribute.Float64("confidence", result.Intent.Confidence),
		)
		span.End()
	}()

	result = &domain.NLUResult{
		Text:            req.Text,
		Language:        lang,
		Slots:           []domain.Slot{},
		Entities:        map[string]any{},
		MatchedKeywords: []string{},
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		result.Intent = domain.Intent{Type: domain.IntentUnknown, Confidence: 0}
		result.NeedsClarification = true
		result.ClarificationQuestion = clarificationText[lang]
		return result
	}

	source := "trigger"
	if action, phrase, ok := detectTrigger(text, lang); ok {
		result.Intent = domain.Intent{Type: triggerIntent[action], Confidence: 1.0}
		result.Trigger = phrase
	} else {
		result.Intent, source = e.classifier.Classify(ctx, text, lang, req.Context)
	}
	telemetry.IntentsTotal.WithLabelValues(string(result.Intent.Type), source).Inc()

	// triggers skip classification only
	result.Slots = e.slots.Extract(ctx, text, lang, result.Intent.Type)
	if result.Slots == nil {
		result.Slots = []domain.Slot{}
	}
	result.Entities = entities(result.Slots)

	if req.BranchID != nil && e.keywords != nil {
		matches, err := e.keywords.Match(ctx, text, lang, *req.BranchID, e.cfg.GroundingLimit)
		if err != nil {
			e.log.Warn("Keyword grounding failed", zap.Int64("branch_id", *req.BranchID), zap.Error(err))
		}
		result.Matches = matches
		for _, m := range matches {
			name := m.ItemNameEN
			if name == "" {
				name = m.Keyword
			}
			result.MatchedKeywords = append(result.MatchedKeywords, fmt.Sprintf("%s (%.2f)", name, m.Confidence))
		}
	}

	if result.Intent.Confidence < e.cfg.ClarificationThreshold || result.Intent.Type == domain.IntentUnknown {
		result.NeedsClarification = true
		result.ClarificationQuestion = clarificationText[lang]
	}

	return result
}
