package language

import (
	"github.com/pemistahl/lingua-go"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

// LinguaEstimator is the statistical estimator backed by lingua-go, limited
// to Arabic and English so probabilities are comparable.
type LinguaEstimator struct {
	detector lingua.LanguageDetector
}

func NewLinguaEstimator() *LinguaEstimator {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.Arabic, lingua.English).
		Build()
	return &LinguaEstimator{detector: detector}
}

func (e *LinguaEstimator) Estimate(text string) (map[domain.Language]float64, error) {
	probs := map[domain.Language]float64{
		domain.LanguageArabic:  0,
		domain.LanguageEnglish: 0,
	}
	for _, cv := range e.detector.ComputeLanguageConfidenceValues(text) {
		switch cv.Language() {
		case lingua.Arabic:
			probs[domain.LanguageArabic] = cv.Value()
		case lingua.English:
			probs[domain.LanguageEnglish] = cv.Value()
		}
	}
	return probs, nil
}
