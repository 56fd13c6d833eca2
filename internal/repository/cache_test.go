package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-storefront-service/internal/models"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisDedupStore_ClaimOnce(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisDedupStore(client, "storefront:dedup:")
	ctx := context.Background()

	first, err := store.Claim(ctx, "paystack:charge.success:ref:SOL-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := store.Claim(ctx, "paystack:charge.success:ref:SOL-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	other, err := store.Claim(ctx, "paystack:charge.success:ref:SOL-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	assert.Equal(t, time.Hour, mr.TTL("storefront:dedup:paystack:charge.success:ref:SOL-1"))
}

func TestRedisDedupStore_ReleaseAllowsRetry(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisDedupStore(client, "storefront:dedup:")
	ctx := context.Background()

	claimed, err := store.Claim(ctx, "notify:order-1", time.Hour)
	require.NoError(t, err)
	require.True(t, claimed)

	require.NoError(t, store.Release(ctx, "notify:order-1"))

	claimed, err = store.Claim(ctx, "notify:order-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisDedupStore_ClaimExpires(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisDedupStore(client, "")
	ctx := context.Background()

	_, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)

	claimed, err := store.Claim(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestRedisDedupStore_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisDedupStore(client, "")
	mr.Close()

	_, err := store.Claim(context.Background(), "k", time.Minute)
	assert.Error(t, err)
}

func TestRedisCatalogCache_RoundTripAndInvalidate(t *testing.T) {
	mr, client := newTestRedis(t)
	cache := NewRedisCatalogCache(client, time.Minute, logging.Discard())
	ctx := context.Background()
	filter := &models.ProductFilter{Category: "panels", Limit: 20}

	page, err := cache.GetProducts(ctx, filter)
	require.NoError(t, err)
	assert.Nil(t, page)

	stored := &ProductPage{
		Products: []*models.Product{{ID: "p1", Name: "Mono 400W", Price: decimal.NewFromInt(85000), ImageURLs: []string{}}},
		Total:    1,
	}
	require.NoError(t, cache.SetProducts(ctx, filter, stored))
	assert.Equal(t, time.Minute, mr.TTL("catalog:products:v0:panels:20:0"))

	page, err = cache.GetProducts(ctx, filter)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, 1, page.Total)
	require.Len(t, page.Products, 1)
	assert.True(t, page.Products[0].Price.Equal(decimal.NewFromInt(85000)))

	other, err := cache.GetProducts(ctx, &models.ProductFilter{Category: "inverters", Limit: 20})
	require.NoError(t, err)
	assert.Nil(t, other)

	require.NoError(t, cache.InvalidateProducts(ctx))

	page, err = cache.GetProducts(ctx, filter)
	require.NoError(t, err)
	assert.Nil(t, page)

	require.NoError(t, cache.SetProducts(ctx, filter, stored))
	assert.True(t, mr.Exists("catalog:products:v1:panels:20:0"))
}
