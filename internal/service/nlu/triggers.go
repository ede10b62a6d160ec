package nlu

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

type triggerAction string

const (
	actionCancel  triggerAction = "cancel"
	actionRepeat  triggerAction = "repeat"
	actionModify  triggerAction = "modify"
	actionHelp    triggerAction = "help"
	actionConfirm triggerAction = "confirm"
	actionReject  triggerAction = "reject"
)

// Scan order decides ties: a phrase that both cancels and rejects cancels.
var triggerOrder = []triggerAction{
	actionCancel,
	actionRepeat,
	actionModify,
	actionHelp,
	actionConfirm,
	actionReject,
}

var triggerIntent = map[triggerAction]domain.IntentType{
	actionCancel:  domain.IntentCancelOrder,
	actionRepeat:  domain.IntentRepeat,
	actionModify:  domain.IntentModifyOrder,
	actionHelp:    domain.IntentHelp,
	actionConfirm: domain.IntentConfirm,
	actionReject:  domain.IntentReject,
}

var triggerWords = map[domain.Language]map[triggerAction][]string{
	domain.LanguageArabic: {
		actionCancel:  {"إلغاء", "ألغي", "أوقف", "لا أريد"},
		actionRepeat:  {"كرر", "أعد", "مرة أخرى", "ماذا قلت"},
		actionModify:  {"غير", "عدل", "بدل"},
		actionHelp:    {"مساعدة", "ساعدني", "لا أفهم"},
		actionConfirm: {"نعم", "تمام", "صحيح", "موافق"},
		actionReject:  {"لا", "خطأ", "ليس صحيح"},
	},
	domain.LanguageEnglish: {
		actionCancel:  {"cancel", "stop", "nevermind", "never mind", "forget it"},
		actionRepeat:  {"repeat", "again", "pardon", "what did you say"},
		actionModify:  {"change", "modify", "edit", "update"},
		actionHelp:    {"help", "assist", "don't understand"},
		actionConfirm: {"yes", "yeah", "correct", "right", "okay", "ok"},
		actionReject:  {"no", "nope", "wrong", "incorrect"},
	},
}

// detectTrigger returns the first action whose phrase occurs in text on word
// boundaries, so "لا" does not fire inside "السلام".
func detectTrigger(text string, lang domain.Language) (triggerAction, string, bool) {
	words := triggerWords[lang]
	if words == nil {
		return "", "", false
	}
	tokens := tokens(text)
	for _, action := range triggerOrder {
		for _, phrase := range words[action] {
			if containsPhrase(tokens, tokenize(phrase)) {
				return action, phrase, true
			}
		}
	}
	return "", "", false
}

func tokens(text string) []string {
	return tokenize(strings.ToLower(text))
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		// apostrophes stay inside words like "don't"
		if r == '\'' || r == '’' {
			return false
		}
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
}

func containsPhrase(tokens, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(tokens) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(tokens); i++ {
		for j, p := range phrase {
			if tokens[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}

// containsAny reports whether any phrase occurs in text on word boundaries.
// Arabic tokens also match after their attached prefixes are peeled, so
// "البرجر" and "بالسعر" carry "برجر" and "سعر".
func containsAny(text string, phrases []string, lang domain.Language) bool {
	toks := tokens(text)
	forms := make([][]string, len(toks))
	for i, tok := range toks {
		if lang == domain.LanguageArabic {
			forms[i] = arabicForms(tok)
		} else {
			forms[i] = []string{tok}
		}
	}

	for _, p := range phrases {
		if containsForms(forms, tokenize(p)) {
			return true
		}
	}
	return false
}

func containsForms(forms [][]string, phrase []string) bool {
	if len(phrase) == 0 || len(phrase) > len(forms) {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(forms); i++ {
		for j, p := range phrase {
			if !slices.Contains(forms[i+j], p) {
				continue outer
			}
		}
		return true
	}
	return false
}

// arabicForms returns tok and what is left after stripping, in order, a
// conjunction (و ف), a preposition (لل ب ل ك) and the article (ال).
// A stem shorter than two letters is not stripped.
func arabicForms(tok string) []string {
	forms := []string{tok}
	rest := tok
	strip := func(prefixes ...string) {
		for _, p := range prefixes {
			stem, ok := strings.CutPrefix(rest, p)
			if ok && utf8.RuneCountInString(stem) >= 2 {
				rest = stem
				forms = append(forms, rest)
				return
			}
		}
	}
	strip("و", "ف")
	strip("لل", "ب", "ل", "ك")
	strip("ال")
	return forms
}
