package nlu

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

const defaultModelConfidence = 0.8

var errEmptyCompletion = errors.New("empty completion")

func intentPrompt(text string, lang domain.Language, turn Context) string {
	names := make([]string, len(domain.IntentTypes))
	for i, it := range domain.IntentTypes {
		names[i] = string(it)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Classify the intent of this %s text for a drive-thru restaurant.\n\n", lang.Name())
	fmt.Fprintf(&b, "Text: %q\n\n", text)
	if prev := turn.PreviousText(); prev != "" {
		fmt.Fprintf(&b, "Previous customer utterance: %q\n\n", prev)
	}
	fmt.Fprintf(&b, "Available intents: %s\n\n", strings.Join(names, ", "))
	b.WriteString("Response format: <intent>intent_type confidence</intent>\n\n<intent>")
	return b.String()
}

func slotPrompt(text string, lang domain.Language, intent domain.IntentType) string {
	names := make([]string, len(domain.SlotTypes))
	for i, st := range domain.SlotTypes {
		names[i] = string(st)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Extract slots from this %s text for intent: %s\n\n", lang.Name(), intent)
	fmt.Fprintf(&b, "Text: %q\n\n", text)
	fmt.Fprintf(&b, "Available slots: %s\n\n", strings.Join(names, ", "))
	b.WriteString("Response format: <slots>slot_type:value confidence; slot_type:value confidence</slots>\n\n<slots>")
	return b.String()
}

func stripTags(s, tag string) string {
	s = strings.ReplaceAll(s, "<"+tag+">", "")
	s = strings.ReplaceAll(s, "</"+tag+">", "")
	return strings.TrimSpace(s)
}

// parseIntent reads "intent_type confidence". A missing confidence defaults
// to 0.8; an unknown intent name is a parse failure.
func parseIntent(completion string) (domain.Intent, error) {
	fields := strings.Fields(stripTags(completion, "intent"))
	if len(fields) == 0 {
		return domain.Intent{}, errEmptyCompletion
	}

	it, ok := domain.ParseIntentType(strings.ToLower(fields[0]))
	if !ok {
		return domain.Intent{}, fmt.Errorf("unknown intent %q", fields[0])
	}

	confidence := defaultModelConfidence
	if len(fields) > 1 {
		if v, err := strconv.ParseFloat(fields[1], 64); err == nil {
			confidence = clamp01(v)
		}
	}
	return domain.Intent{Type: it, Confidence: confidence}, nil
}

// parseSlots reads "type:value confidence; ..." entries, skipping unknown
// slot types and malformed entries.
func parseSlots(completion string) []domain.Slot {
	body := stripTags(completion, "slots")
	if body == "" {
		return nil
	}

	var slots []domain.Slot
	for _, entry := range strings.Split(body, ";") {
		entry = strings.TrimSpace(entry)
		name, rest, ok := strings.Cut(entry, ":")
		if !ok {
			continue
		}
		st, ok := domain.ParseSlotType(strings.TrimSpace(name))
		if !ok {
			continue
		}

		rest = strings.TrimSpace(rest)
		value, confidence := rest, defaultModelConfidence
		if i := strings.LastIndex(rest, " "); i > 0 {
			if v, err := strconv.ParseFloat(rest[i+1:], 64); err == nil {
				value, confidence = strings.TrimSpace(rest[:i]), clamp01(v)
			}
		}
		if value == "" {
			continue
		}
		slots = append(slots, domain.Slot{Type: st, Value: value, Confidence: confidence})
	}
	return slots
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
