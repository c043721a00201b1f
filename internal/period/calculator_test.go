package period

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
)

func utc(y int, m time.Month, d, h int) time.Time {
	return time.Date(y, m, d, h, 0, 0, 0, time.UTC)
}

func ptr(t time.Time) *time.Time { return &t }

func fixed(anchor time.Time, n int, unit model.DurationUnit) model.SubscriptionConfig {
	return model.SubscriptionConfig{
		Duration:     n,
		DurationUnit: unit,
		StartOptions: model.StartFixedDate,
		StartDate:    &anchor,
		Recurring:    true,
		Active:       true,
	}
}

func TestCurrentAndNextWeekly(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		anchor    time.Time
		n         int
		cur, next time.Time
	}{
		{"every week from Sunday", utc(2020, 7, 15, 12), utc(2020, 5, 3, 12), 1, utc(2020, 7, 12, 0), utc(2020, 7, 19, 0)},
		{"every 3 weeks from Sunday", utc(2020, 7, 15, 12), utc(2020, 5, 3, 12), 3, utc(2020, 7, 5, 0), utc(2020, 7, 26, 0)},
		{"every 4 weeks from Sunday", utc(2020, 7, 15, 12), utc(2020, 5, 3, 12), 4, utc(2020, 6, 28, 0), utc(2020, 7, 26, 0)},
		{"every 2 weeks from Sunday", utc(2020, 7, 15, 12), utc(2020, 5, 3, 12), 2, utc(2020, 7, 12, 0), utc(2020, 7, 26, 0)},
		{"every 2 weeks from Monday", utc(2020, 7, 15, 12), utc(2020, 6, 1, 12), 2, utc(2020, 7, 13, 0), utc(2020, 7, 27, 0)},
		{"every 4 weeks from Monday", utc(2020, 7, 15, 12), utc(2020, 6, 1, 12), 4, utc(2020, 6, 29, 0), utc(2020, 7, 27, 0)},
		{"every 3 weeks from Monday", utc(2020, 7, 15, 12), utc(2020, 6, 1, 12), 3, utc(2020, 7, 13, 0), utc(2020, 8, 3, 0)},
		{"every week from Monday", utc(2020, 7, 15, 12), utc(2020, 6, 1, 12), 1, utc(2020, 7, 13, 0), utc(2020, 7, 20, 0)},
		{"today is the anchor weekday", utc(2020, 6, 15, 12), utc(2020, 6, 1, 12), 1, utc(2020, 6, 15, 0), utc(2020, 6, 22, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur, next := CurrentAndNext(fixed(tc.anchor, tc.n, model.DurationWeeks), tc.now)
			require.NotNil(t, cur)
			require.NotNil(t, next)
			assert.Equal(t, tc.cur, *cur)
			assert.Equal(t, tc.next, *next)
		})
	}
}

func TestCurrentAndNextOneOff(t *testing.T) {
	cfg := fixed(utc(2020, 6, 1, 12), 1, model.DurationWeeks)
	cfg.Recurring = false

	cur, next := CurrentAndNext(cfg, utc(2020, 7, 15, 12))
	require.NotNil(t, cur)
	assert.Equal(t, utc(2020, 6, 1, 0), *cur)
	assert.Nil(t, next)

	cur, next = CurrentAndNext(cfg, utc(2020, 5, 15, 12))
	require.NotNil(t, cur)
	assert.Equal(t, utc(2020, 6, 1, 0), *cur)
	assert.Nil(t, next)
}

func TestCurrentAndNextMonthly(t *testing.T) {
	cases := []struct {
		name      string
		now       time.Time
		anchor    time.Time
		n         int
		cur, next time.Time
	}{
		{"summer time", utc(2020, 7, 15, 12), utc(2020, 1, 3, 12), 1, utc(2020, 7, 3, 0), utc(2020, 8, 3, 0)},
		{"winter time", utc(2020, 2, 15, 12), utc(2020, 1, 3, 12), 1, utc(2020, 2, 3, 0), utc(2020, 3, 3, 0)},
		{"now on anchor day", utc(2020, 2, 3, 12), utc(2020, 1, 3, 12), 1, utc(2020, 2, 3, 0), utc(2020, 3, 3, 0)},
		{"now before anchor day", utc(2020, 2, 1, 12), utc(2020, 1, 3, 12), 1, utc(2020, 1, 3, 0), utc(2020, 2, 3, 0)},
		{"two months, now before anchor day", utc(2020, 2, 1, 12), utc(2020, 1, 3, 12), 2, utc(2020, 1, 3, 0), utc(2020, 3, 3, 0)},
		{"two months, off month", utc(2020, 6, 15, 12), utc(2020, 1, 3, 12), 2, utc(2020, 5, 3, 0), utc(2020, 7, 3, 0)},
		{"two months from June", utc(2020, 11, 15, 12), utc(2020, 6, 10, 12), 2, utc(2020, 10, 10, 0), utc(2020, 12, 10, 0)},
		{"two months into next year", utc(2020, 11, 15, 12), utc(2020, 9, 10, 12), 2, utc(2020, 11, 10, 0), utc(2021, 1, 10, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cur, next := CurrentAndNext(fixed(tc.anchor, tc.n, model.DurationMonths), tc.now)
			require.NotNil(t, cur)
			require.NotNil(t, next)
			assert.Equal(t, tc.cur, *cur)
			assert.Equal(t, tc.next, *next)
		})
	}
}

func TestCurrentAndNextUsesUTCDates(t *testing.T) {
	cfg := fixed(utc(2020, 6, 1, 12), 1, model.DurationWeeks)

	// last half hour before the Monday boundary
	cur, next := CurrentAndNext(cfg, time.Date(2020, 7, 19, 23, 30, 0, 0, time.UTC))
	require.NotNil(t, cur)
	assert.Equal(t, utc(2020, 7, 13, 0), *cur)
	assert.Equal(t, utc(2020, 7, 20, 0), *next)

	// Sunday evening west of UTC is already Monday in UTC
	west := time.FixedZone("UTC-5", -5*3600)
	cur, next = CurrentAndNext(cfg, time.Date(2020, 7, 19, 21, 0, 0, 0, west))
	require.NotNil(t, cur)
	assert.Equal(t, utc(2020, 7, 20, 0), *cur)
	assert.Equal(t, utc(2020, 7, 27, 0), *next)
	assert.Equal(t, time.UTC, cur.Location())
}

func TestCurrentAndNextAnchorInFuture(t *testing.T) {
	cur, next := CurrentAndNext(fixed(utc(2020, 1, 3, 12), 1, model.DurationMonths), utc(2019, 12, 15, 12))
	assert.Nil(t, cur)
	require.NotNil(t, next)
	assert.Equal(t, utc(2020, 1, 3, 0), *next)
}

func TestCurrentAndNextOtherPolicies(t *testing.T) {
	for _, p := range []model.StartPolicy{model.StartSignupDate, model.StartFirstBooking} {
		cfg := fixed(utc(2020, 1, 3, 12), 1, model.DurationMonths)
		cfg.StartOptions = p
		cur, next := CurrentAndNext(cfg, utc(2020, 7, 15, 12))
		assert.Nil(t, cur, p)
		assert.Nil(t, next, p)
	}
}

func TestStartOptionsNoExistingSubscription(t *testing.T) {
	now := utc(2020, 7, 15, 0)
	cases := []struct {
		name    string
		now     time.Time
		anchor  time.Time
		n       int
		unit    model.DurationUnit
		policy  model.StartPolicy
		advance bool
		recur   bool
		want    []*time.Time
	}{
		{"signup, advance", now, utc(2020, 1, 3, 12), 1, model.DurationMonths, model.StartSignupDate, true, true, []*time.Time{ptr(now)}},
		{"signup, no advance", now, utc(2020, 1, 3, 12), 1, model.DurationMonths, model.StartSignupDate, false, true, []*time.Time{ptr(now)}},
		{"first booking, advance", now, utc(2020, 1, 3, 12), 1, model.DurationMonths, model.StartFirstBooking, true, true, []*time.Time{nil}},
		{"first booking, no advance", now, utc(2020, 1, 3, 12), 1, model.DurationMonths, model.StartFirstBooking, false, true, []*time.Time{nil}},
		{"fixed, advance", now, utc(2020, 1, 3, 12), 1, model.DurationMonths, model.StartFixedDate, true, true,
			[]*time.Time{ptr(utc(2020, 7, 3, 0)), ptr(utc(2020, 8, 3, 0))}},
		{"fixed, no advance", now, utc(2020, 6, 19, 12), 1, model.DurationMonths, model.StartFixedDate, false, true,
			[]*time.Time{ptr(utc(2020, 6, 19, 0))}},
		{"fixed, no advance, next within 3 days", now, utc(2020, 6, 18, 12), 1, model.DurationMonths, model.StartFixedDate, false, true,
			[]*time.Time{ptr(utc(2020, 6, 18, 0)), ptr(utc(2020, 7, 18, 0))}},
		{"fixed, anchor in future", now, utc(2020, 7, 20, 12), 1, model.DurationMonths, model.StartFixedDate, true, true,
			[]*time.Time{ptr(utc(2020, 7, 20, 0))}},
		{"fixed, anchor next month", now, utc(2020, 8, 15, 12), 1, model.DurationMonths, model.StartFixedDate, true, true,
			[]*time.Time{ptr(utc(2020, 8, 15, 0))}},
		{"fixed, weeks", utc(2020, 7, 20, 0), utc(2020, 7, 1, 0), 2, model.DurationWeeks, model.StartFixedDate, true, true,
			[]*time.Time{ptr(utc(2020, 7, 15, 0)), ptr(utc(2020, 7, 29, 0))}},
		{"one-off", utc(2020, 7, 20, 0), utc(2020, 7, 1, 0), 2, model.DurationWeeks, model.StartFixedDate, true, false,
			[]*time.Time{ptr(utc(2020, 7, 1, 0))}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			anchor := tc.anchor
			cfg := model.SubscriptionConfig{
				Duration:               tc.n,
				DurationUnit:           tc.unit,
				StartOptions:           tc.policy,
				StartDate:              &anchor,
				Recurring:              tc.recur,
				AdvancePurchaseAllowed: tc.advance,
			}
			assert.Equal(t, tc.want, StartOptionsForUser(cfg, nil, tc.now))
		})
	}
}

func TestStartOptionsSignupWithExisting(t *testing.T) {
	cfg := model.SubscriptionConfig{
		Duration:               1,
		DurationUnit:           model.DurationMonths,
		StartOptions:           model.StartSignupDate,
		AdvancePurchaseAllowed: true,
		Recurring:              true,
	}
	held := []model.Subscription{{StartDate: ptr(utc(2020, 7, 1, 0))}}

	got := StartOptionsForUser(cfg, held, utc(2020, 7, 15, 0))
	assert.Equal(t, []*time.Time{ptr(utc(2020, 8, 1, 0))}, got)

	cfg.AdvancePurchaseAllowed = false
	assert.Empty(t, StartOptionsForUser(cfg, held, utc(2020, 7, 15, 0)))
	assert.Equal(t, []*time.Time{ptr(utc(2020, 8, 1, 0))}, StartOptionsForUser(cfg, held, utc(2020, 7, 29, 0)))
}

func TestStartOptionsFirstBookingWithExisting(t *testing.T) {
	cfg := model.SubscriptionConfig{
		Duration:               1,
		DurationUnit:           model.DurationMonths,
		StartOptions:           model.StartFirstBooking,
		AdvancePurchaseAllowed: true,
		Recurring:              true,
	}
	now := utc(2020, 7, 15, 0)

	unstarted := []model.Subscription{{}}
	assert.Empty(t, StartOptionsForUser(cfg, unstarted, now))

	started := []model.Subscription{{StartDate: ptr(utc(2020, 8, 1, 0)), ExpiryDate: ptr(utc(2020, 9, 1, 0))}}
	assert.Equal(t, []*time.Time{nil}, StartOptionsForUser(cfg, started, now))
}

func TestStartOptionsFixedWithExisting(t *testing.T) {
	now := utc(2020, 7, 15, 0)
	cfg := fixed(utc(2020, 1, 3, 12), 1, model.DurationMonths)
	cfg.AdvancePurchaseAllowed = true

	sub := func(starts ...time.Time) []model.Subscription {
		var out []model.Subscription
		for _, s := range starts {
			out = append(out, model.Subscription{StartDate: ptr(s)})
		}
		return out
	}

	assert.Equal(t, []*time.Time{ptr(utc(2020, 8, 3, 0))},
		StartOptionsForUser(cfg, sub(utc(2020, 7, 3, 0)), now))
	assert.Empty(t, StartOptionsForUser(cfg, sub(utc(2020, 7, 3, 0), utc(2020, 8, 3, 0)), now))
	assert.Equal(t, []*time.Time{ptr(utc(2020, 7, 3, 0)), ptr(utc(2020, 8, 3, 0))},
		StartOptionsForUser(cfg, sub(utc(2020, 6, 3, 0)), now))

	oneOff := fixed(utc(2020, 8, 1, 12), 1, model.DurationMonths)
	oneOff.Recurring = false
	assert.Empty(t, StartOptionsForUser(oneOff, sub(utc(2020, 8, 1, 0)), now))
}

func TestPartialCost(t *testing.T) {
	cfg := fixed(utc(2020, 9, 1, 0), 4, model.DurationWeeks)
	cfg.PartialPurchaseAllowed = true
	cfg.Cost = decimal.NewFromInt(20)
	cfg.CostPerWeek = decimal.NewNullDecimal(decimal.NewFromInt(5))

	cases := []struct {
		name string
		now  time.Time
		want int64
	}{
		{"4 weeks left", utc(2020, 9, 1, 10), 20},
		{"inside the grace period", utc(2020, 9, 5, 10), 20},
		{"3 weeks and a bit left", utc(2020, 9, 7, 10), 15},
		{"over a week left rounds up", utc(2020, 9, 20, 10), 10},
		{"under a week left", utc(2020, 9, 26, 10), 5},
		{"one day left", utc(2020, 9, 28, 10), 5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := PartialCost(cfg, tc.now)
			assert.True(t, got.Equal(decimal.NewFromInt(tc.want)), "got %s", got)
		})
	}

	noPartial := cfg
	noPartial.PartialPurchaseAllowed = false
	assert.True(t, PartialCost(noPartial, utc(2020, 9, 20, 10)).Equal(decimal.NewFromInt(20)))

	notStarted := cfg
	notStarted.StartDate = ptr(utc(2020, 10, 1, 0))
	assert.True(t, PartialCost(notStarted, utc(2020, 9, 20, 10)).Equal(decimal.NewFromInt(20)))
}

func TestExpiresSoon(t *testing.T) {
	s := model.Subscription{StartDate: ptr(utc(2020, 7, 1, 0)), ExpiryDate: ptr(utc(2020, 8, 1, 0))}
	assert.False(t, ExpiresSoon(s, utc(2020, 7, 27, 12), RenewalWindow))
	assert.True(t, ExpiresSoon(s, utc(2020, 7, 28, 12), RenewalWindow))
	assert.False(t, ExpiresSoon(s, utc(2020, 8, 1, 0), RenewalWindow))
	assert.False(t, ExpiresSoon(model.Subscription{}, utc(2020, 7, 28, 12), RenewalWindow))
}
