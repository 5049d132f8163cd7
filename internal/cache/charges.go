// Package cache keeps read-mostly dues data in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/labstack/gommon/log"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/club-membership/internal/model"
)

const chargePrefix = "dues:charge:"

// ChargeCache is a read-through cache of charges keyed by period.  Charges
// are never updated or deleted once created, so entries need no
// invalidation; only hits are cached.  A nil client disables the cache.
type ChargeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewChargeCache(rdb *redis.Client, ttl time.Duration) *ChargeCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ChargeCache{rdb: rdb, ttl: ttl}
}

func chargeKey(period string) string { return chargePrefix + period }

// Get returns the cached charge for period.  Any Redis error is treated as
// a miss.
func (c *ChargeCache) Get(ctx context.Context, period string) (*model.DuesCharge, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, chargeKey(period)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Warnf("charge cache: get %s: %v", period, err)
		}
		return nil, false
	}
	var ch model.DuesCharge
	if err := json.Unmarshal(raw, &ch); err != nil {
		return nil, false
	}
	return &ch, true
}

// Put stores ch under its period.  Failures are logged and ignored.
func (c *ChargeCache) Put(ctx context.Context, ch *model.DuesCharge) {
	if c == nil || c.rdb == nil || ch == nil {
		return
	}
	raw, err := json.Marshal(ch)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, chargeKey(ch.Period), raw, c.ttl).Err(); err != nil {
		log.Warnf("charge cache: set %s: %v", ch.Period, err)
	}
}
