package grounding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/seu-repo/drivethru-voice/internal/domain"
	"github.com/seu-repo/drivethru-voice/internal/observability/telemetry"
	"github.com/seu-repo/drivethru-voice/internal/ports"
)

const DefaultCacheTTL = time.Hour

func cacheKey(branchID int64) string {
	return fmt.Sprintf("menu:keywords:%d", branchID)
}

// Catalog loads per-branch keyword catalogs from the repository with a
// cache-aside layer in front.
type Catalog struct {
	repo  ports.KeywordRepository
	cache ports.Cache
	ttl   time.Duration
	log   *zap.Logger
}

// NewCatalog builds a catalog. cache may be nil.
func NewCatalog(repo ports.KeywordRepository, cache ports.Cache, ttl time.Duration, log *zap.Logger) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Catalog{repo: repo, cache: cache, ttl: ttl, log: log}
}

func (c *Catalog) Keywords(ctx context.Context, branchID int64) ([]domain.CatalogKeyword, error) {
	key := cacheKey(branchID)

	if c.cache != nil {
		if raw, err := c.cache.Get(ctx, key); err == nil && raw != "" {
			var keywords []domain.CatalogKeyword
			if err := json.Unmarshal([]byte(raw), &keywords); err == nil {
				telemetry.CatalogCacheTotal.WithLabelValues("hit").Inc()
				return keywords, nil
			}
			c.log.Warn("Discarding corrupt catalog cache entry", zap.String("key", key))
		} else if err != nil && !errors.Is(err, ports.ErrNotFound) {
			c.log.Warn("Catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
		telemetry.CatalogCacheTotal.WithLabelValues("miss").Inc()
	}

	if c.repo == nil {
		return nil, nil
	}

	keywords, err := c.repo.FindByBranch(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load keywords for branch %d: %w", branchID, err)
	}

	if c.cache != nil {
		data, err := json.Marshal(keywords)
		if err == nil {
			if err := c.cache.Set(ctx, key, string(data), c.ttl); err != nil {
				c.log.Warn("Catalog cache write failed", zap.String("key", key), zap.Error(err))
			}
		}
	}

	return keywords, nil
}

// Invalidate drops the cached catalog for a branch.
func (c *Catalog) Invalidate(ctx context.Context, branchID int64) error {
	if c.cache == nil {
		return nil
	}
	return c.cache.Delete(ctx, cacheKey(branchID))
}

// ErrInvalidKeyword rejects keywords with neither language form.
var ErrInvalidKeyword = errors.New("keyword needs an arabic or english form")

// AddKeyword stores a keyword and invalidates the branch cache.
func (c *Catalog) AddKeyword(ctx context.Context, kw *domain.Keyword) error {
	if kw.KeywordAR == "" && kw.KeywordEN == "" {
		return ErrInvalidKeyword
	}
	if c.repo == nil {
		return errors.New("keyword catalog has no repository")
	}
	if kw.Weight == 0 {
		kw.Weight = 1.0
	}
	if err := c.repo.Create(ctx, kw); err != nil {
		return fmt.Errorf("failed to save keyword: %w", err)
	}
	if err := c.Invalidate(ctx, kw.BranchID); err != nil {
		c.log.Warn("Catalog cache invalidation failed", zap.Int64("branch_id", kw.BranchID), zap.Error(err))
	}
	return nil
}

// Service grounds text against a branch catalog.
type Service struct {
	catalog  *Catalog
	grounder *Grounder
}

func NewService(catalog *Catalog, grounder *Grounder) *Service {
	return &Service{catalog: catalog, grounder: grounder}
}

func (s *Service) Match(ctx context.Context, text string, lang domain.Language, branchID int64, limit int) ([]domain.KeywordMatch, error) {
	keywords, err := s.catalog.Keywords(ctx, branchID)
	if err != nil {
		return nil, err
	}
	return s.grounder.Match(text, lang, keywords, limit), nil
}
