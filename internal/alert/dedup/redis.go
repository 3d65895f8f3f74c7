// Package dedup provides an optional Redis fast path for the 24-hour alert
// suppression window. The store query inside the alert transaction remains
// the source of truth; this cache only short-circuits repeat evaluations
// before a transaction is opened.
package dedup

import (
	"context"
	"fmt"
	"time"

	platformredis "fiscalwatch/internal/platform/redis"
	id "fiscalwatch/pkg/domain"
)

// Cache answers "was an alert of this class recorded recently" without
// touching the primary store.
type Cache interface {
	Seen(ctx context.Context, companyID id.CompanyID, class string) (bool, error)
	Mark(ctx context.Context, companyID id.CompanyID, class string) error
}

// RedisCache marks dedup keys with a TTL equal to the suppression window.
type RedisCache struct {
	client *platformredis.Client
	ttl    time.Duration
}

func NewRedisCache(client *platformredis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func key(companyID id.CompanyID, class string) string {
	return fmt.Sprintf("fiscalwatch:alert-dedup:%s:%s", companyID, class)
}

func (c *RedisCache) Seen(ctx context.Context, companyID id.CompanyID, class string) (bool, error) {
	n, err := c.client.Exists(ctx, key(companyID, class)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Mark(ctx context.Context, companyID id.CompanyID, class string) error {
	return c.client.Set(ctx, key(companyID, class), "1", c.ttl).Err()
}
