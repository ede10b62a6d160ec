package domain

import "time"

// Language is an ISO-639-1 code. Only Arabic and English are supported.
type Language string

const (
	LanguageArabic  Language = "ar"
	LanguageEnglish Language = "en"
)

func (l Language) Valid() bool {
	return l == LanguageArabic || l == LanguageEnglish
}

// Other returns the opposite supported language.
func (l Language) Other() Language {
	if l == LanguageArabic {
		return LanguageEnglish
	}
	return LanguageArabic
}

// Name is the English display name used in model prompts.
func (l Language) Name() string {
	if l == LanguageArabic {
		return "Arabic"
	}
	return "English"
}

// ParseLanguage returns the language for code, falling back to def when the
// code is empty or unsupported.
func ParseLanguage(code string, def Language) Language {
	l := Language(code)
	if l.Valid() {
		return l
	}
	return def
}

// LanguageDetection is the outcome of a single detection.
type LanguageDetection struct {
	Language          Language           `json:"language"`
	Confidence        float64            `json:"confidence"`
	CodeSwitching     bool               `json:"is_code_switching"`
	SecondaryLanguage Language           `json:"secondary_language,omitempty"`
	Method            string             `json:"method,omitempty"`
	Metadata          map[string]float64 `json:"metadata,omitempty"`
}

// Utterance is one user turn after transcription and language detection.
type Utterance struct {
	Text              string    `json:"text"`
	Language          Language  `json:"language"`
	Confidence        float64   `json:"confidence"`
	SecondaryLanguage Language  `json:"secondary_language,omitempty"`
	ReceivedAt        time.Time `json:"received_at"`
}
