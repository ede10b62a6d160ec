//go:build integration

package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/pkg/config"
)

func databaseURL(t *testing.T) string {
	t.Helper()
	// Use an external database when one is provided
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("drivethru_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}
	return url
}

func TestKeywordRepository_Integration(t *testing.T) {
	// Arrange
	db, err := NewConnection(config.DatabaseConfig{URL: databaseURL(t)}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { Close(db) })
	require.NoError(t, RunMigrations(db))

	repo := NewKeywordRepository(db, zap.NewNop())
	ctx := context.Background()

	coffee := &domain.MenuItem{NameAR: "قهوة", NameEN: "Coffee", BasePrice: 12, Available: true}
	require.NoError(t, repo.CreateItem(ctx, coffee))
	tea := &domain.MenuItem{NameAR: "شاي", NameEN: "Tea", BasePrice: 8, Available: true}
	require.NoError(t, repo.CreateItem(ctx, tea))
	require.NoError(t, db.Model(tea).Update("available", false).Error)

	require.NoError(t, repo.Create(ctx, &domain.Keyword{BranchID: 7, ItemID: coffee.ID, KeywordAR: "قهوة", KeywordEN: "coffee", Weight: 1}))
	require.NoError(t, repo.Create(ctx, &domain.Keyword{BranchID: 7, ItemID: tea.ID, KeywordEN: "tea", Weight: 1}))
	require.NoError(t, repo.Create(ctx, &domain.Keyword{BranchID: 8, ItemID: coffee.ID, KeywordEN: "latte", Weight: 0.8}))

	// Act
	keywords, err := repo.FindByBranch(ctx, 7)

	// Assert
	require.NoError(t, err)
	require.Len(t, keywords, 1)
	assert.Equal(t, coffee.ID, keywords[0].ItemID)
	assert.Equal(t, "Coffee", keywords[0].ItemNameEN)
	assert.Equal(t, "قهوة", keywords[0].ItemNameAR)
	assert.Equal(t, "coffee", keywords[0].KeywordEN)

	empty, err := repo.FindByBranch(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
