package ports

import (
	"context"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

type KeywordRepository interface {
	FindByBranch(ctx context.Context, branchID int64) ([]domain.CatalogKeyword, error)
	Create(ctx context.Context, keyword *domain.Keyword) error
	CreateItem(ctx context.Context, item *domain.MenuItem) error
}
