// Package cache keeps derived per-user answers in Redis.  Entries live
// under a per-user version number; bumping the version makes every older
// entry unreachable, so invalidation is a single INCR and stale keys simply
// age out.  A nil client turns every method into a pass-through.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studio-booking/internal/events"
)

// Versioned is a namespace of versioned per-user boolean entries.
type Versioned struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewVersioned returns a namespace under prefix:name.
func NewVersioned(rdb *redis.Client, prefix, name string, ttl time.Duration) *Versioned {
	if prefix == "" {
		prefix = "cache"
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Versioned{rdb: rdb, prefix: prefix + ":" + name, ttl: ttl}
}

func (v *Versioned) versionKey(userID uint64) string {
	return fmt.Sprintf("%s:%d:ver", v.prefix, userID)
}

func (v *Versioned) version(ctx context.Context, userID uint64) (int64, error) {
	n, err := v.rdb.Get(ctx, v.versionKey(userID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (v *Versioned) entryKey(userID uint64, ver int64, key string) string {
	return fmt.Sprintf("%s:%d:v%d:%s", v.prefix, userID, ver, key)
}

// Bool returns the cached answer for (userID, key) or computes and stores
// it.  Redis errors fall back to load.
func (v *Versioned) Bool(ctx context.Context, userID uint64, key string, load func(ctx context.Context) (bool, error)) (bool, error) {
	if v == nil || v.rdb == nil {
		return load(ctx)
	}
	ver, err := v.version(ctx, userID)
	if err != nil {
		log.Printf("cache: version read failed for user %d: %v", userID, err)
		return load(ctx)
	}
	k := v.entryKey(userID, ver, key)
	if s, err := v.rdb.Get(ctx, k).Result(); err == nil {
		return s == "1", nil
	} else if !errors.Is(err, redis.Nil) {
		log.Printf("cache: read %s failed: %v", k, err)
	}
	val, err := load(ctx)
	if err != nil {
		return false, err
	}
	s := "0"
	if val {
		s = "1"
	}
	if err := v.rdb.Set(ctx, k, s, v.ttl).Err(); err != nil {
		log.Printf("cache: write %s failed: %v", k, err)
	}
	return val, nil
}

// Invalidate drops every entry of the user.
func (v *Versioned) Invalidate(ctx context.Context, userID uint64) {
	if v == nil || v.rdb == nil {
		return
	}
	if err := v.rdb.Incr(ctx, v.versionKey(userID)).Err(); err != nil {
		log.Printf("cache: invalidate user %d failed: %v", userID, err)
	}
}

// CreditCache caches "user has active credit for event type" answers.
type CreditCache struct {
	*Versioned
}

// NewCreditCache returns a CreditCache; rdb may be nil.
func NewCreditCache(rdb *redis.Client, prefix string, ttl time.Duration) *CreditCache {
	return &CreditCache{Versioned: NewVersioned(rdb, prefix, "credit", ttl)}
}

// HasActiveCredit returns the cached answer or computes it with load.
func (c *CreditCache) HasActiveCredit(ctx context.Context, userID, eventTypeID uint64, load func(ctx context.Context) (bool, error)) (bool, error) {
	return c.Bool(ctx, userID, fmt.Sprint(eventTypeID), load)
}

// Subscribe invalidates a user's entries whenever their bookings or credit
// change.
func (c *CreditCache) Subscribe(bus *events.Bus) {
	bus.Subscribe(func(ctx context.Context, ev events.Event) error {
		c.Invalidate(ctx, ev.UserID)
		return nil
	},
		events.BookingCreated,
		events.BookingReopened,
		events.BookingCancelled,
		events.BookingNoShow,
		events.BookingAttended,
		events.CreditChanged,
	)
}
