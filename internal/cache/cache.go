// Package cache keeps serialized product reads in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"storefront/internal/domain"
)

// ProductCache is the read-through cache used by the catalog service.
type ProductCache interface {
	GetProduct(ctx context.Context, key string) (*domain.Product, bool)
	SetProduct(ctx context.Context, p *domain.Product)
	InvalidateProduct(ctx context.Context, p *domain.Product)
	Close() error
}

const keyPrefix = "storefront:product:"

type redisCache struct {
	client *redis.Client
	ttl    time.Duration
	onErr  func(action string, err error)
}

// NewRedis connects to addr and verifies the connection with PING.
// onErr receives failures that are otherwise swallowed; it may be nil.
func NewRedis(ctx context.Context, addr, password string, db int, ttl time.Duration, onErr func(string, error)) (ProductCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if onErr == nil {
		onErr = func(string, error) {}
	}
	return &redisCache{client: client, ttl: ttl, onErr: onErr}, nil
}

// A product is stored under its id and its slug so either lookup hits.
func (c *redisCache) GetProduct(ctx context.Context, key string) (*domain.Product, bool) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.onErr("cache.get", err)
		}
		return nil, false
	}
	var p domain.Product
	if err := json.Unmarshal(raw, &p); err != nil {
		c.onErr("cache.decode", err)
		return nil, false
	}
	return &p, true
}

func (c *redisCache) SetProduct(ctx context.Context, p *domain.Product) {
	raw, err := json.Marshal(p)
	if err != nil {
		c.onErr("cache.encode", err)
		return
	}
	pipe := c.client.TxPipeline()
	pipe.Set(ctx, keyPrefix+p.ID, raw, c.ttl)
	if p.Slug != "" {
		pipe.Set(ctx, keyPrefix+p.Slug, raw, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.onErr("cache.set", err)
	}
}

func (c *redisCache) InvalidateProduct(ctx context.Context, p *domain.Product) {
	keys := []string{keyPrefix + p.ID}
	if p.Slug != "" {
		keys = append(keys, keyPrefix+p.Slug)
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.onErr("cache.del", err)
	}
}

func (c *redisCache) Close() error { return c.client.Close() }

// Noop is used when no Redis address is configured.
type Noop struct{}

func (Noop) GetProduct(context.Context, string) (*domain.Product, bool) { return nil, false }
func (Noop) SetProduct(context.Context, *domain.Product)                {}
func (Noop) InvalidateProduct(context.Context, *domain.Product)         {}
func (Noop) Close() error                                               { return nil }
