//go:build integration

package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/ports"
)

func redisURL(t *testing.T) string {
	t.Helper()
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}

	ctx := context.Background()
	container, err := tcredis.Run(ctx, "redis:7-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForLog("Ready to accept connections").
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start redis container: %v", err)
	}
	t.Cleanup(func() { container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("Failed to get redis connection string: %v", err)
	}
	return url
}

func TestRedisCache_Integration(t *testing.T) {
	c, err := NewRedisCache(redisURL(t), zap.NewNop())
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	t.Run("SetGet", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "test:key", "قهوة", time.Minute))

		val, err := c.Get(ctx, "test:key")
		require.NoError(t, err)
		assert.Equal(t, "قهوة", val)
	})

	t.Run("Expiration", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "test:expiring", "value", 100*time.Millisecond))
		time.Sleep(300 * time.Millisecond)

		_, err := c.Get(ctx, "test:expiring")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "test:delete", "value", time.Minute))
		require.NoError(t, c.Delete(ctx, "test:delete"))

		_, err := c.Get(ctx, "test:delete")
		assert.ErrorIs(t, err, ports.ErrNotFound)
	})
}
