package domain

import "time"

// MenuItem is a product a branch can sell.
type MenuItem struct {
	ID         int64     `json:"id" gorm:"primaryKey"`
	CategoryID int64     `json:"category_id" gorm:"index"`
	NameAR     string    `json:"name_ar" gorm:"size:255;not null"`
	NameEN     string    `json:"name_en" gorm:"size:255;not null"`
	BasePrice  float64   `json:"base_price"`
	Available  bool      `json:"available" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (MenuItem) TableName() string { return "items" }

// Keyword maps a spoken phrase to a menu item for one branch.
type Keyword struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	BranchID  int64     `json:"branch_id" gorm:"index;not null"`
	ItemID    int64     `json:"item_id" gorm:"index;not null"`
	KeywordAR string    `json:"keyword_ar,omitempty" gorm:"size:255"`
	KeywordEN string    `json:"keyword_en,omitempty" gorm:"size:255"`
	Weight    float64   `json:"weight" gorm:"default:1"`
	Item      MenuItem  `json:"-" gorm:"foreignKey:ItemID"`
	CreatedAt time.Time `json:"created_at"`
}

func (Keyword) TableName() string { return "keywords" }

// CatalogKeyword is the flattened keyword row the grounder works on.
type CatalogKeyword struct {
	ItemID     int64   `json:"item_id"`
	ItemNameAR string  `json:"item_name_ar"`
	ItemNameEN string  `json:"item_name_en"`
	KeywordAR  string  `json:"keyword_ar,omitempty"`
	KeywordEN  string  `json:"keyword_en,omitempty"`
	Weight     float64 `json:"weight"`
}

// For returns the keyword text in the given language.
func (k CatalogKeyword) For(lang Language) string {
	if lang == LanguageArabic {
		return k.KeywordAR
	}
	return k.KeywordEN
}

type MatchType string

const (
	MatchExact MatchType = "exact"
	MatchFuzzy MatchType = "fuzzy"
)

// KeywordMatch is one catalog item grounded in an utterance.
type KeywordMatch struct {
	Keyword     string    `json:"keyword"`
	MatchedText string    `json:"matched_text"`
	ItemID      int64     `json:"item_id"`
	ItemNameAR  string    `json:"item_name_ar"`
	ItemNameEN  string    `json:"item_name_en"`
	Confidence  float64   `json:"confidence"`
	MatchType   MatchType `json:"match_type"`
}
