package rediscache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/healthbridge/go-medscheme/internal/core"
)

// RateCardCache decorates a RateCardRepo with a read-through cache on the
// hot path: active-card-by-plan lookups happen on every quote. Writes
// invalidate; cache failures degrade to the underlying repo.
type RateCardCache struct {
	next core.RateCardRepo
	rdb  *redis.Client
	ttl  time.Duration
}

func NewRateCardCache(next core.RateCardRepo, rdb *redis.Client, ttl time.Duration) *RateCardCache {
	return &RateCardCache{next: next, rdb: rdb, ttl: ttl}
}

func activeCardKey(planID string) string {
	return "ratecard:active:" + planID
}

func (c *RateCardCache) GetActiveByPlan(ctx context.Context, planID string) (core.RateCard, error) {
	key := activeCardKey(planID)
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var rc core.RateCard
		if err := json.Unmarshal(raw, &rc); err == nil {
			return rc, nil
		}
		// poisoned entry; drop it and fall through
		c.rdb.Del(ctx, key)
	} else if err != redis.Nil {
		slog.Warn("rate card cache read failed", "plan_id", planID, "err", err)
	}

	rc, err := c.next.GetActiveByPlan(ctx, planID)
	if err != nil {
		return core.RateCard{}, err
	}
	if raw, err := json.Marshal(rc); err == nil {
		if err := c.rdb.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			slog.Warn("rate card cache write failed", "plan_id", planID, "err", err)
		}
	}
	return rc, nil
}

func (c *RateCardCache) Create(ctx context.Context, rc core.RateCard) error {
	return c.next.Create(ctx, rc)
}

func (c *RateCardCache) Get(ctx context.Context, id string) (core.RateCard, error) {
	return c.next.Get(ctx, id)
}

func (c *RateCardCache) Update(ctx context.Context, rc core.RateCard) error {
	if err := c.next.Update(ctx, rc); err != nil {
		return err
	}
	c.invalidate(ctx, rc.PlanID)
	return nil
}

func (c *RateCardCache) Activate(ctx context.Context, planID, cardID string, now time.Time) error {
	if err := c.next.Activate(ctx, planID, cardID, now); err != nil {
		return err
	}
	c.invalidate(ctx, planID)
	return nil
}

func (c *RateCardCache) ListByPlan(ctx context.Context, planID string) ([]core.RateCard, error) {
	return c.next.ListByPlan(ctx, planID)
}

func (c *RateCardCache) invalidate(ctx context.Context, planID string) {
	if err := c.rdb.Del(ctx, activeCardKey(planID)).Err(); err != nil {
		slog.Warn("rate card cache invalidation failed", "plan_id", planID, "err", err)
	}
}
