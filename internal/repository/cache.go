package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/config"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

const (
	catalogVersionKey = "catalog:version"
	productPagePrefix = "catalog:products:"
	defaultCacheTTL   = 5 * time.Minute
)

// NewRedisClient opens the client shared by the cache and the dedup store.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// RedisCatalogCache caches product listing pages. Pages are keyed under a
// version counter; bumping the counter orphans every cached page at once and
// the TTL reclaims them.
type RedisCatalogCache struct {
	client redis.Cmdable
	ttl    time.Duration
	logger *logrus.Entry
}

func NewRedisCatalogCache(client redis.Cmdable, ttl time.Duration, logger *logrus.Entry) *RedisCatalogCache {
	if ttl == 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCatalogCache{
		client: client,
		ttl:    ttl,
		logger: logger,
	}
}

func (c *RedisCatalogCache) pageKey(ctx context.Context, filter *models.ProductFilter) (string, error) {
	version, err := c.client.Get(ctx, catalogVersionKey).Int64()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return fmt.Sprintf("%sv%d:%s:%d:%d", productPagePrefix, version, filter.Category, filter.Limit, filter.Offset), nil
}

// GetProducts returns nil, nil on a miss.
func (c *RedisCatalogCache) GetProducts(ctx context.Context, filter *models.ProductFilter) (*ProductPage, error) {
	key, err := c.pageKey(ctx, filter)
	if err != nil {
		return nil, err
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.logger.WithField("key", key).Debug("Cache miss")
		return nil, nil
	}
	if err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Cache get error")
		return nil, err
	}

	var page ProductPage
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, err
	}

	c.logger.WithField("key", key).Debug("Cache hit")
	return &page, nil
}

func (c *RedisCatalogCache) SetProducts(ctx context.Context, filter *models.ProductFilter, page *ProductPage) error {
	key, err := c.pageKey(ctx, filter)
	if err != nil {
		return err
	}

	data, err := json.Marshal(page)
	if err != nil {
		return err
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Error("Cache set error")
		return err
	}
	return nil
}

func (c *RedisCatalogCache) InvalidateProducts(ctx context.Context) error {
	if err := c.client.Incr(ctx, catalogVersionKey).Err(); err != nil {
		c.logger.WithError(err).Error("Cache invalidation error")
		return err
	}
	c.logger.Debug("Catalog cache invalidated")
	return nil
}

// RedisDedupStore claims keys with SET NX so only the first of several
// concurrent or repeated deliveries proceeds.
type RedisDedupStore struct {
	client redis.Cmdable
	prefix string
}

func NewRedisDedupStore(client redis.Cmdable, prefix string) *RedisDedupStore {
	return &RedisDedupStore{client: client, prefix: prefix}
}

func (s *RedisDedupStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, s.prefix+key, time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Release gives the key back after a failed attempt so a redelivery can retry.
func (s *RedisDedupStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, s.prefix+key).Err()
}
