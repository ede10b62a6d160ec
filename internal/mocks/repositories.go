package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/drivethru-voice/internal/domain"
)

// MockKeywordRepository is a mock implementation of ports.KeywordRepository
type MockKeywordRepository struct {
	mu               sync.Mutex
	Calls            int
	Keywords         map[int64][]domain.CatalogKeyword
	FindByBranchFunc func(ctx context.Context, branchID int64) ([]domain.CatalogKeyword, error)
	CreateFunc       func(ctx context.Context, keyword *domain.Keyword) error
	CreateItemFunc   func(ctx context.Context, item *domain.MenuItem) error
}

func NewMockKeywordRepository() *MockKeywordRepository {
	return &MockKeywordRepository{Keywords: make(map[int64][]domain.CatalogKeyword)}
}

func (m *MockKeywordRepository) FindByBranch(ctx context.Context, branchID int64) ([]domain.CatalogKeyword, error) {
	m.mu.Lock()
	m.Calls++
	m.mu.Unlock()
	if m.FindByBranchFunc != nil {
		return m.FindByBranchFunc(ctx, branchID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Keywords[branchID], nil
}

func (m *MockKeywordRepository) Create(ctx context.Context, keyword *domain.Keyword) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, keyword)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Keywords[keyword.BranchID] = append(m.Keywords[keyword.BranchID], domain.CatalogKeyword{
		ItemID:    keyword.ItemID,
		KeywordAR: keyword.KeywordAR,
		KeywordEN: keyword.KeywordEN,
		Weight:    keyword.Weight,
	})
	return nil
}

func (m *MockKeywordRepository) CreateItem(ctx context.Context, item *domain.MenuItem) error {
	if m.CreateItemFunc != nil {
		return m.CreateItemFunc(ctx, item)
	}
	return nil
}

// CallCount returns how many times FindByBranch ran
func (m *MockKeywordRepository) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}
