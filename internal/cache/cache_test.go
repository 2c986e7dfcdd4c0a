package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func newTestCache(t *testing.T) (ProductCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedis(context.Background(), mr.Addr(), "", 0, time.Minute, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestProductRoundTripByIDAndSlug(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	p := &domain.Product{ID: "p1", Slug: "game-boy", Name: "Game Boy", Price: decimal.RequireFromString("129.99")}
	p.AvailableQuantity = 3
	c.SetProduct(ctx, p)

	got, ok := c.GetProduct(ctx, "p1")
	require.True(t, ok)
	assert.Equal(t, "Game Boy", got.Name)
	assert.True(t, got.Price.Equal(p.Price))
	assert.Equal(t, 3, got.AvailableQuantity)

	got, ok = c.GetProduct(ctx, "game-boy")
	require.True(t, ok)
	assert.Equal(t, "p1", got.ID)
}

func TestInvalidateRemovesBothKeys(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	p := &domain.Product{ID: "p1", Slug: "nes"}
	c.SetProduct(ctx, p)
	c.InvalidateProduct(ctx, p)

	_, ok := c.GetProduct(ctx, "p1")
	assert.False(t, ok)
	assert.False(t, mr.Exists(keyPrefix+"nes"))
}

func TestEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	c.SetProduct(ctx, &domain.Product{ID: "p1"})
	mr.FastForward(2 * time.Minute)

	_, ok := c.GetProduct(ctx, "p1")
	assert.False(t, ok)
}

func TestMissingRedisFailsFast(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedis(ctx, "127.0.0.1:1", "", 0, time.Minute, nil)
	assert.Error(t, err)
}
