package postgres

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

type KeywordRepository struct {
	db  *gorm.DB
	log *zap.Logger
}

var _ ports.KeywordRepository = (*KeywordRepository)(nil)

func NewKeywordRepository(db *gorm.DB, log *zap.Logger) *KeywordRepository {
	return &KeywordRepository{
		db:  db,
		log: log,
	}
}

// FindByBranch returns the branch's keywords joined with their item names.
// Keywords pointing at unavailable items are left out.
func (r *KeywordRepository) FindByBranch(ctx context.Context, branchID int64) ([]domain.CatalogKeyword, error) {
	var rows []domain.Keyword
	result := r.db.WithContext(ctx).
		Joins("Item").
		Where("keywords.branch_id = ?", branchID).
		Where(`"Item".available = ?`, true).
		Order("keywords.id").
		Find(&rows)
	if result.Error != nil {
		r.log.Error("Failed to load keywords", zap.Int64("branch_id", branchID), zap.Error(result.Error))
		return nil, fmt.Errorf("failed to query keywords: %w", result.Error)
	}

	keywords := make([]domain.CatalogKeyword, 0, len(rows))
	for _, kw := range rows {
		keywords = append(keywords, domain.CatalogKeyword{
			ItemID:     kw.ItemID,
			ItemNameAR: kw.Item.NameAR,
			ItemNameEN: kw.Item.NameEN,
			KeywordAR:  kw.KeywordAR,
			KeywordEN:  kw.KeywordEN,
			Weight:     kw.Weight,
		})
	}
	return keywords, nil
}

func (r *KeywordRepository) Create(ctx context.Context, keyword *domain.Keyword) error {
	// Omit the association so an empty Item is not upserted
	result := r.db.WithContext(ctx).Omit("Item").Create(keyword)
	if result.Error != nil {
		r.log.Error("Failed to save keyword", zap.Int64("item_id", keyword.ItemID), zap.Error(result.Error))
		return result.Error
	}
	return nil
}

func (r *KeywordRepository) CreateItem(ctx context.Context, item *domain.MenuItem) error {
	result := r.db.WithContext(ctx).Create(item)
	if result.Error != nil {
		r.log.Error("Failed to save menu item", zap.String("name_en", item.NameEN), zap.Error(result.Error))
		return result.Error
	}
	return nil
}
