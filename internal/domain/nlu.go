package domain

type IntentType string

const (
	IntentGreeting          IntentType = "greeting"
	IntentOrderItem         IntentType = "order_item"
	IntentModifyOrder       IntentType = "modify_order"
	IntentCancelOrder       IntentType = "cancel_order"
	IntentConfirm           IntentType = "confirm"
	IntentReject            IntentType = "reject"
	IntentRepeat            IntentType = "repeat"
	IntentHelp              IntentType = "help"
	IntentQueryPrice        IntentType = "query_price"
	IntentQueryAvailability IntentType = "query_availability"
	IntentUnknown           IntentType = "unknown"
)

// IntentTypes lists every intent in the order offered to the language model.
var IntentTypes = []IntentType{
	IntentGreeting,
	IntentOrderItem,
	IntentModifyOrder,
	IntentCancelOrder,
	IntentConfirm,
	IntentReject,
	IntentRepeat,
	IntentHelp,
	IntentQueryPrice,
	IntentQueryAvailability,
	IntentUnknown,
}

func ParseIntentType(s string) (IntentType, bool) {
	for _, it := range IntentTypes {
		if string(it) == s {
			return it, true
		}
	}
	return IntentUnknown, false
}

type SlotType string

const (
	SlotItemName    SlotType = "item_name"
	SlotQuantity    SlotType = "quantity"
	SlotSize        SlotType = "size"
	SlotTemperature SlotType = "temperature"
	SlotAddon       SlotType = "addon"
	SlotCategory    SlotType = "category"
)

var SlotTypes = []SlotType{
	SlotItemName,
	SlotQuantity,
	SlotSize,
	SlotTemperature,
	SlotAddon,
	SlotCategory,
}

func ParseSlotType(s string) (SlotType, bool) {
	for _, st := range SlotTypes {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

type Intent struct {
	Type       IntentType `json:"intent_type"`
	Confidence float64    `json:"confidence"`
}

type Slot struct {
	Type       SlotType `json:"slot_type"`
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
}

// NLUResult is the structured understanding of one utterance.
type NLUResult struct {
	Text                  string         `json:"text"`
	Language              Language       `json:"language"`
	Intent                Intent         `json:"intent"`
	Slots                 []Slot         `json:"slots"`
	Entities              map[string]any `json:"entities"`
	MatchedKeywords       []string       `json:"matched_keywords"`
	Matches               []KeywordMatch `json:"-"`
	Trigger               string         `json:"trigger,omitempty"`
	ProcessingTimeMS      float64        `json:"processing_time_ms"`
	NeedsClarification    bool           `json:"needs_clarification"`
	ClarificationQuestion string         `json:"clarification_question,omitempty"`
}
