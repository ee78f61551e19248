package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cantera-billing/internal/domain/model"
	"cantera-billing/internal/domain/ports/repository"
)

var _ repository.UsageCache = (*UsageCache)(nil)

// UsageCache keeps usage counts warm for a short TTL so repeated entitlement
// checks from UI polling do not hit Postgres every time. The limits it backs
// are advisory, so a slightly stale count is acceptable. Errors degrade to a
// cache miss.
type UsageCache struct {
	client RedisClient
	ttl    time.Duration
}

func NewUsageCache(client RedisClient, ttl time.Duration) *UsageCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &UsageCache{client: client, ttl: ttl}
}

func usageKey(tenantID string, action model.ActionKind) string {
	return fmt.Sprintf("usage:%s:%s", tenantID, action)
}

func (c *UsageCache) Get(ctx context.Context, tenantID string, action model.ActionKind) (int, bool) {
	s, err := c.client.Get(ctx, usageKey(tenantID, action))
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (c *UsageCache) Set(ctx context.Context, tenantID string, action model.ActionKind, count int) {
	_ = c.client.Set(ctx, usageKey(tenantID, action), count, c.ttl)
}
