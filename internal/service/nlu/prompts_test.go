package nlu

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

func TestIntentPrompt(t *testing.T) {
	prompt := intentPrompt("أريد برجر", domain.LanguageArabic, nil)

	assert.True(t, strings.HasPrefix(prompt, "Classify the intent of this Arabic text for a drive-thru restaurant."))
	assert.Contains(t, prompt, `Text: "أريد برجر"`)
	assert.Contains(t, prompt, "query_availability")
	assert.True(t, strings.HasSuffix(prompt, "<intent>"))
}

func TestSlotPrompt(t *testing.T) {
	prompt := slotPrompt("two cokes", domain.LanguageEnglish, domain.IntentOrderItem)

	assert.Contains(t, prompt, "Extract slots from this English text for intent: order_item")
	assert.Contains(t, prompt, "item_name, quantity, size, temperature, addon, category")
	assert.True(t, strings.HasSuffix(prompt, "<slots>"))
}

func TestParseIntent(t *testing.T) {
	intent, err := parseIntent("greeting 0.97</intent>")
	require.NoError(t, err)
	assert.Equal(t, domain.Intent{Type: domain.IntentGreeting, Confidence: 0.97}, intent)

	intent, err = parseIntent(" help ")
	require.NoError(t, err)
	assert.Equal(t, 0.8, intent.Confidence)

	intent, err = parseIntent("confirm 7")
	require.NoError(t, err)
	assert.Equal(t, 1.0, intent.Confidence)

	_, err = parseIntent("")
	assert.Error(t, err)

	_, err = parseIntent("order_pizza 0.9")
	assert.Error(t, err)
}

func TestParseSlots(t *testing.T) {
	slots := parseSlots("item_name:cheese burger 0.9; size:large; garbage; temperature:iced 0.7</slots>")

	require.Len(t, slots, 3)
	assert.Equal(t, domain.Slot{Type: domain.SlotItemName, Value: "cheese burger", Confidence: 0.9}, slots[0])
	assert.Equal(t, domain.Slot{Type: domain.SlotSize, Value: "large", Confidence: 0.8}, slots[1])
	assert.Equal(t, domain.SlotTemperature, slots[2].Type)

	assert.Empty(t, parseSlots(""))
	assert.Empty(t, parseSlots("<slots></slots>"))
}
