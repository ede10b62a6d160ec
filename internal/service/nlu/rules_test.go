package nlu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

func TestDetectTrigger(t *testing.T) {
	tests := []struct {
		text   string
		lang   domain.Language
		action triggerAction
		ok     bool
	}{
		{"لا أريد هذا", domain.LanguageArabic, actionCancel, true},
		{"كرر من فضلك", domain.LanguageArabic, actionRepeat, true},
		{"نعم", domain.LanguageArabic, actionConfirm, true},
		{"لا", domain.LanguageArabic, actionReject, true},
		{"Forget it!", domain.LanguageEnglish, actionCancel, true},
		{"I don't understand", domain.LanguageEnglish, actionHelp, true},
		{"Nope.", domain.LanguageEnglish, actionReject, true},
		{"this is a hit", domain.LanguageEnglish, "", false},
		{"السلام عليكم", domain.LanguageArabic, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			action, _, ok := detectTrigger(tt.text, tt.lang)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.action, action)
		})
	}
}

func TestArabicForms(t *testing.T) {
	tests := []struct {
		tok  string
		want []string
	}{
		{"البرجر", []string{"البرجر", "برجر"}},
		{"بالسعر", []string{"بالسعر", "السعر", "سعر"}},
		{"وللوجبة", []string{"وللوجبة", "للوجبة", "وجبة"}},
		{"كم", []string{"كم"}},
	}

	for _, tt := range tests {
		t.Run(tt.tok, func(t *testing.T) {
			assert.Equal(t, tt.want, arabicForms(tt.tok))
		})
	}
}

func TestContainsAny(t *testing.T) {
	assert.True(t, containsAny("البرجر الكبير", []string{"برجر"}, domain.LanguageArabic))
	assert.True(t, containsAny("السلام عليكم", []string{"السلام عليكم"}, domain.LanguageArabic))
	assert.False(t, containsAny("وعليكم السلام", []string{"كم"}, domain.LanguageArabic))
	// English stays on whole words
	assert.False(t, containsAny("a chicken wrap", []string{"hi"}, domain.LanguageEnglish))
	assert.True(t, containsAny("Hi there", []string{"hi"}, domain.LanguageEnglish))
}

func TestRuleSlotExtractor(t *testing.T) {
	ex := ruleSlotExtractor{}

	slots := ex.Extract(context.Background(), "أريد 3 برجر كبير", domain.LanguageArabic, domain.IntentOrderItem)
	assert.Contains(t, slots, domain.Slot{Type: domain.SlotQuantity, Value: "3", Confidence: 0.95})
	assert.Contains(t, slots, domain.Slot{Type: domain.SlotSize, Value: "large", Confidence: 0.90})

	slots = ex.Extract(context.Background(), "أريد ٢ كولا صغير", domain.LanguageArabic, domain.IntentOrderItem)
	assert.Contains(t, slots, domain.Slot{Type: domain.SlotQuantity, Value: "2", Confidence: 0.95})
	assert.Contains(t, slots, domain.Slot{Type: domain.SlotSize, Value: "small", Confidence: 0.90})

	slots = ex.Extract(context.Background(), "A Medium fries", domain.LanguageEnglish, domain.IntentOrderItem)
	assert.Equal(t, []domain.Slot{{Type: domain.SlotSize, Value: "medium", Confidence: 0.90}}, slots)
}

func TestEntities(t *testing.T) {
	got := entities([]domain.Slot{
		{Type: domain.SlotQuantity, Value: "2"},
		{Type: domain.SlotQuantity, Value: "4"},
		{Type: domain.SlotSize, Value: "large"},
		{Type: domain.SlotTemperature, Value: "hot"},
		{Type: domain.SlotQuantity, Value: "many"},
	})

	assert.Equal(t, map[string]any{"quantity": 4, "size": "large"}, got)
}
