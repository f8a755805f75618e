// Package cache holds the Redis-backed read-side caches. Everything here is
// optional: a nil *VisitViews makes every method a no-op, so the service runs
// unchanged without Redis configured.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const publicViewKeyPrefix = "gatehouse:public_view:"

// ErrMiss is returned when no cached view exists for the key.
var ErrMiss = errors.New("cache: miss")

// VisitViews caches the public visit projection keyed by public id. Entries
// carry a TTL as a backstop; transitions invalidate eagerly.
type VisitViews struct {
	client *redis.Client
	ttl    time.Duration
}

// NewVisitViews wraps an externally managed client. ttl <= 0 defaults to
// five minutes.
func NewVisitViews(client *redis.Client, ttl time.Duration) *VisitViews {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &VisitViews{client: client, ttl: ttl}
}

// GetPublicView loads a cached projection into dst. Returns ErrMiss when the
// cache is disabled or cold.
func (c *VisitViews) GetPublicView(ctx context.Context, publicID string, dst any) error {
	if c == nil || c.client == nil {
		return ErrMiss
	}
	raw, err := c.client.Get(ctx, publicViewKeyPrefix+publicID).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		// Corrupt entry; treat as a miss so the caller repopulates it.
		return ErrMiss
	}
	return nil
}

// StorePublicView caches a projection. Failures are returned for logging but
// are safe to ignore.
func (c *VisitViews) StorePublicView(ctx context.Context, publicID string, view any) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, publicViewKeyPrefix+publicID, raw, c.ttl).Err()
}

// Invalidate drops the cached view after a transition. Implements
// visit.ViewInvalidator.
func (c *VisitViews) Invalidate(ctx context.Context, publicID string) {
	if c == nil || c.client == nil || publicID == "" {
		return
	}
	c.client.Del(ctx, publicViewKeyPrefix+publicID)
}
