package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/events"
)

func newCache(t *testing.T) (*CreditCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewCreditCache(rdb, "test", time.Minute), mr
}

type counter struct {
	calls int
	val   bool
}

func (c *counter) load(context.Context) (bool, error) {
	c.calls++
	return c.val, nil
}

func TestCreditCacheHitAndInvalidate(t *testing.T) {
	c, mr := newCache(t)
	ctx := context.Background()
	src := &counter{val: true}

	for i := 0; i < 3; i++ {
		got, err := c.HasActiveCredit(ctx, 7, 2, src.load)
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, 1, src.calls)
	assert.True(t, mr.Exists("test:credit:7:v0:2"))

	src.val = false
	c.Invalidate(ctx, 7)
	got, err := c.HasActiveCredit(ctx, 7, 2, src.load)
	require.NoError(t, err)
	assert.False(t, got)
	assert.Equal(t, 2, src.calls)
	assert.True(t, mr.Exists("test:credit:7:v1:2"))

	other := &counter{val: true}
	_, err = c.HasActiveCredit(ctx, 8, 2, other.load)
	require.NoError(t, err)
	assert.Equal(t, 1, other.calls, "other users keep their own version")
}

func TestCreditCacheFalseIsCached(t *testing.T) {
	c, _ := newCache(t)
	src := &counter{}
	for i := 0; i < 2; i++ {
		got, err := c.HasActiveCredit(context.Background(), 1, 1, src.load)
		require.NoError(t, err)
		assert.False(t, got)
	}
	assert.Equal(t, 1, src.calls)
}

func TestCreditCacheEntriesExpire(t *testing.T) {
	c, mr := newCache(t)
	src := &counter{val: true}
	ctx := context.Background()
	_, _ = c.HasActiveCredit(ctx, 1, 1, src.load)
	mr.FastForward(2 * time.Minute)
	_, _ = c.HasActiveCredit(ctx, 1, 1, src.load)
	assert.Equal(t, 2, src.calls)
}

func TestCreditCacheLoadErrorNotCached(t *testing.T) {
	c, mr := newCache(t)
	boom := errors.New("boom")
	_, err := c.HasActiveCredit(context.Background(), 1, 1, func(context.Context) (bool, error) { return false, boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("test:credit:1:v0:1"))
}

func TestCreditCacheWithoutRedis(t *testing.T) {
	c := NewCreditCache(nil, "test", time.Minute)
	src := &counter{val: true}
	for i := 0; i < 2; i++ {
		got, err := c.HasActiveCredit(context.Background(), 1, 1, src.load)
		require.NoError(t, err)
		assert.True(t, got)
	}
	assert.Equal(t, 2, src.calls)
	c.Invalidate(context.Background(), 1)
}

func TestCreditCacheFollowsBus(t *testing.T) {
	c, _ := newCache(t)
	bus := events.NewBus()
	c.Subscribe(bus)
	ctx := context.Background()
	src := &counter{val: true}

	_, _ = c.HasActiveCredit(ctx, 3, 1, src.load)
	bus.Publish(ctx, events.Event{Kind: events.WaitingListSpaceAvailable, UserID: 3})
	_, _ = c.HasActiveCredit(ctx, 3, 1, src.load)
	assert.Equal(t, 1, src.calls, "unrelated kinds keep entries")

	bus.Publish(ctx, events.Event{Kind: events.BookingCancelled, UserID: 3})
	_, _ = c.HasActiveCredit(ctx, 3, 1, src.load)
	assert.Equal(t, 2, src.calls)
}
