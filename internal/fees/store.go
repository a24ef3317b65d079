package fees

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/tradewell/exchange-core/pkg/models"
)

const cacheTTL = 5 * time.Minute

// ConfigStore reads per-asset fee schedules from the database with an
// optional redis read-through cache. Fee config rows are read-mostly,
// so caching them is safe; balance state is never cached.
type ConfigStore struct {
	db     *gorm.DB
	cache  *redis.Client
	logger *zap.Logger
}

// NewConfigStore creates a fee config store. The redis client is
// optional; pass nil to read straight from the database.
func NewConfigStore(db *gorm.DB, cache *redis.Client, logger *zap.Logger) *ConfigStore {
	return &ConfigStore{db: db, cache: cache, logger: logger}
}

// Get returns the fee config for an asset, or nil when no row exists.
func (s *ConfigStore) Get(ctx context.Context, asset string) (*models.FeeConfig, error) {
	if cfg := s.fromCache(ctx, asset); cfg != nil {
		return cfg, nil
	}

	var cfg models.FeeConfig
	if err := s.db.WithContext(ctx).Where("asset = ?", asset).First(&cfg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}

	s.toCache(ctx, &cfg)
	return &cfg, nil
}

// Set upserts the fee config for an asset and invalidates its cache entry.
func (s *ConfigStore) Set(ctx context.Context, cfg *models.FeeConfig) error {
	cfg.UpdatedAt = time.Now()
	if err := s.db.WithContext(ctx).Save(cfg).Error; err != nil {
		return err
	}
	if s.cache != nil {
		if err := s.cache.Del(ctx, cacheKey(cfg.Asset)).Err(); err != nil {
			s.logger.Warn("failed to invalidate fee config cache", zap.String("asset", cfg.Asset), zap.Error(err))
		}
	}
	return nil
}

func (s *ConfigStore) fromCache(ctx context.Context, asset string) *models.FeeConfig {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, cacheKey(asset)).Bytes()
	if err != nil {
		return nil
	}
	var cfg models.FeeConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil
	}
	return &cfg
}

func (s *ConfigStore) toCache(ctx context.Context, cfg *models.FeeConfig) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, cacheKey(cfg.Asset), raw, cacheTTL).Err(); err != nil {
		s.logger.Debug("fee config cache write failed", zap.String("asset", cfg.Asset), zap.Error(err))
	}
}

func cacheKey(asset string) string {
	return "feeconfig:" + asset
}
