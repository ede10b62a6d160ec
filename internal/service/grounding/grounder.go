package grounding

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
)

const (
	DefaultFuzzyThreshold = 0.85
	DefaultLimit          = 5
)

type Config struct {
	FuzzyThreshold float64
	Limit          int
}

// Grounder maps utterance text onto catalog items. It is stateless; the
// catalog is passed per call.
type Grounder struct {
	cfg Config
	log *zap.Logger
}

func NewGrounder(cfg Config, log *zap.Logger) *Grounder {
	if cfg.FuzzyThreshold <= 0 {
		cfg.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultLimit
	}
	return &Grounder{cfg: cfg, log: log}
}

// Match returns at most limit matches, one per item, ordered by descending
// confidence. A limit of zero or less uses the configured default.
func (g *Grounder) Match(text string, lang domain.Language, catalog []domain.CatalogKeyword, limit int) []domain.KeywordMatch {
	if limit <= 0 {
		limit = g.cfg.Limit
	}
	lowered := strings.ToLower(text)
	tokens := tokenize(lowered)

	best := make(map[int64]domain.KeywordMatch)
	consider := func(m domain.KeywordMatch) {
		if cur, ok := best[m.ItemID]; !ok || m.Confidence > cur.Confidence {
			best[m.ItemID] = m
		}
	}

	for _, entry := range catalog {
		keyword := strings.ToLower(strings.TrimSpace(entry.For(lang)))
		if keyword == "" {
			continue
		}

		if strings.Contains(lowered, keyword) {
			consider(newMatch(entry, keyword, keyword, entry.Weight, domain.MatchExact))
			continue
		}

		for _, tok := range tokens {
			ratio := Similarity(keyword, tok)
			if ratio >= g.cfg.FuzzyThreshold {
				consider(newMatch(entry, keyword, tok, ratio*entry.Weight, domain.MatchFuzzy))
			}
		}
	}

	matches := make([]domain.KeywordMatch, 0, len(best))
	for _, m := range best {
		matches = append(matches, m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		return matches[i].ItemID < matches[j].ItemID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	for _, m := range matches {
		telemetry.GroundingMatchesTotal.WithLabelValues(string(m.MatchType)).Inc()
	}
	g.log.Debug("Keyword grounding",
		zap.String("language", string(lang)),
		zap.Int("catalog_size", len(catalog)),
		zap.Int("matches", len(matches)),
	)

	return matches
}

// Similarity is the normalized edit-distance ratio of two strings, 1.0 for
// identical input.
func Similarity(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

func newMatch(entry domain.CatalogKeyword, keyword, matched string, confidence float64, kind domain.MatchType) domain.KeywordMatch {
	return domain.KeywordMatch{
		Keyword:     keyword,
		MatchedText: matched,
		ItemID:      entry.ItemID,
		ItemNameAR:  entry.ItemNameAR,
		ItemNameEN:  entry.ItemNameEN,
		Confidence:  confidence,
		MatchType:   kind,
	}
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}
