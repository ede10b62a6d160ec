package language

import (
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
)

const (
	MethodEmpty       = "empty"
	MethodScript      = "script"
	MethodContext     = "context"
	MethodMixed       = "mixed"
	MethodStatistical = "statistical"
	MethodFallback    = "fallback"
)

const (
	// code-switch is flagged when both estimates clear this floor
	codeSwitchFloor = 0.2
	// statistical fallback confidence when nothing clears the threshold
	fallbackFloor = 0.5
	// confidence required to switch a session that has barely started
	earlySwitchConfidence = 0.9
	earlyTurns            = 2
	mixedConfidence       = 0.85
	loanWordConfidence    = 0.8
)

// English words common in Gulf drive-thru speech. An Arabic speaker using a
// handful of these stays in Arabic when the context is Arabic.
var loanWords = map[string]struct{}{
	"okay": {}, "ok": {}, "yes": {}, "no": {}, "hello": {}, "hi": {}, "bye": {},
	"burger": {}, "pizza": {}, "coffee": {}, "tea": {}, "combo": {}, "deal": {},
	"large": {}, "medium": {}, "small": {}, "extra": {}, "double": {},
}

// Estimator returns per-language probabilities for a text.
type Estimator interface {
	Estimate(text string) (map[domain.Language]float64, error)
}

type Config struct {
	DefaultLanguage      domain.Language
	Threshold            float64
	CodeSwitchingEnabled bool
}

// Detector classifies short utterances as Arabic or English. It holds no
// per-call state and is safe for concurrent use.
type Detector struct {
	cfg       Config
	estimator Estimator
	log       *zap.Logger
}

// NewDetector builds a detector. A nil estimator makes the statistical step
// return the default language.
func NewDetector(cfg Config, estimator Estimator, log *zap.Logger) *Detector {
	if !cfg.DefaultLanguage.Valid() {
		cfg.DefaultLanguage = domain.LanguageArabic
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.8
	}
	return &Detector{cfg: cfg, estimator: estimator, log: log}
}

func (d *Detector) DefaultLanguage() domain.Language {
	return d.cfg.DefaultLanguage
}

// Detect never fails: any internal error yields the default language with
// confidence 0.5.
func (d *Detector) Detect(text, context string) (result domain.LanguageDetection) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Language detection panicked", zap.Any("panic", r))
			result = domain.LanguageDetection{
				Language:   d.cfg.DefaultLanguage,
				Confidence: fallbackFloor,
				Method:     MethodFallback,
			}
		}
		elapsed := time.Since(start)
		telemetry.LanguageDetectionLatency.Observe(elapsed.Seconds())
		telemetry.LanguageDetectionsTotal.WithLabelValues(string(result.Language), result.Method).Inc()
		if result.Metadata == nil {
			result.Metadata = map[string]float64{}
		}
		result.Metadata["processing_time_ms"] = float64(elapsed.Microseconds()) / 1000
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return domain.LanguageDetection{
			Language:   d.cfg.DefaultLanguage,
			Confidence: 1.0,
			Method:     MethodEmpty,
		}
	}

	arabic, latin := scriptCounts(trimmed)

	if arabic > 0 && latin == 0 {
		return domain.LanguageDetection{Language: domain.LanguageArabic, Confidence: 1.0, Method: MethodScript}
	}

	if latin > 0 && arabic == 0 {
		if isArabicContext(context) && mostlyLoanWords(trimmed) {
			return domain.LanguageDetection{
				Language:          domain.LanguageArabic,
				Confidence:        loanWordConfidence,
				CodeSwitching:     true,
				SecondaryLanguage: domain.LanguageEnglish,
				Method:            MethodContext,
			}
		}
		// pure Latin outside an Arabic context is left to the estimator
	}

	if arabic > 0 && latin > 0 {
		primary := domain.LanguageEnglish
		if arabic > latin {
			primary = domain.LanguageArabic
		}
		return domain.LanguageDetection{
			Language:          primary,
			Confidence:        mixedConfidence,
			CodeSwitching:     true,
			SecondaryLanguage: primary.Other(),
			Method:            MethodMixed,
			Metadata: map[string]float64{
				"arabic_chars":  float64(arabic),
				"english_chars": float64(latin),
			},
		}
	}

	return d.statistical(trimmed)
}

func (d *Detector) statistical(text string) domain.LanguageDetection {
	if d.estimator == nil {
		return domain.LanguageDetection{
			Language:   d.cfg.DefaultLanguage,
			Confidence: fallbackFloor,
			Method:     MethodFallback,
		}
	}

	probs, err := d.estimator.Estimate(text)
	if err != nil {
		d.log.Warn("Language estimator failed", zap.Error(err))
		return domain.LanguageDetection{
			Language:   d.cfg.DefaultLanguage,
			Confidence: fallbackFloor,
			Method:     MethodFallback,
		}
	}

	ar := probs[domain.LanguageArabic]
	en := probs[domain.LanguageEnglish]

	result := domain.LanguageDetection{
		Method: MethodStatistical,
		Metadata: map[string]float64{
			"ar_prob": ar,
			"en_prob": en,
		},
	}

	switch {
	case ar > en && ar > d.cfg.Threshold:
		result.Language, result.Confidence = domain.LanguageArabic, ar
	case en > ar && en > d.cfg.Threshold:
		result.Language, result.Confidence = domain.LanguageEnglish, en
	default:
		result.Language = d.cfg.DefaultLanguage
		result.Confidence = max(ar, en, fallbackFloor)
	}

	if d.cfg.CodeSwitchingEnabled && ar > codeSwitchFloor && en > codeSwitchFloor {
		result.CodeSwitching = true
		result.SecondaryLanguage = result.Language.Other()
	}

	return result
}

// ShouldSwitch reports whether a session should move from current to
// detected. Early in a conversation a switch needs very high confidence.
func (d *Detector) ShouldSwitch(current, detected domain.Language, confidence float64, turns int) bool {
	if confidence < d.cfg.Threshold || current == detected {
		return false
	}
	if turns < earlyTurns {
		return confidence > earlySwitchConfidence
	}
	return true
}

// LanguagePrompt returns the bilingual preference question to play when an
// English speaker is detected, or "" when no prompt is needed.
func LanguagePrompt(detected domain.Language) string {
	if detected == domain.LanguageEnglish {
		return "هل تفضل العربية أم الإنجليزية؟ / Do you prefer Arabic or English?"
	}
	return ""
}

func isArabicRune(r rune) bool {
	return r >= 0x0600 && r <= 0x06FF
}

func isLatinLetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func scriptCounts(text string) (arabic, latin int) {
	for _, r := range text {
		switch {
		case isArabicRune(r):
			arabic++
		case isLatinLetter(r):
			latin++
		}
	}
	return arabic, latin
}

// isArabicContext is true when more than half the context characters are
// Arabic script.
func isArabicContext(context string) bool {
	context = strings.TrimSpace(context)
	if context == "" {
		return false
	}
	total, arabic := 0, 0
	for _, r := range context {
		total++
		if isArabicRune(r) {
			arabic++
		}
	}
	return float64(arabic)/float64(total) > 0.5
}

// mostlyLoanWords is true for utterances of at most three words, or when
// more than half the words are known loan words.
func mostlyLoanWords(text string) bool {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if len(words) <= 3 {
		return true
	}
	common := 0
	for _, w := range words {
		if _, ok := loanWords[w]; ok {
			common++
		}
	}
	return float64(common) > float64(len(words))*0.5
}
