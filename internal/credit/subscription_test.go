package credit

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

func TestSubscriptionExpiry(t *testing.T) {
	start := studiotime.Date(2020, 1, 31)
	monthly := model.SubscriptionConfig{Duration: 1, DurationUnit: model.DurationMonths}
	assert.Equal(t, studiotime.Date(2020, 2, 29), *SubscriptionExpiry(&start, monthly))

	weekly := model.SubscriptionConfig{Duration: 2, DurationUnit: model.DurationWeeks}
	assert.Equal(t, studiotime.Date(2020, 2, 14), *SubscriptionExpiry(&start, weekly))

	assert.Nil(t, SubscriptionExpiry(nil, weekly))
}

func TestFirstBookingSubscriptionStartsOnEarliestBooking(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	cfg := f.seed.SubscriptionConfig(model.SubscriptionConfig{
		Duration: 1, DurationUnit: model.DurationMonths, StartOptions: model.StartFirstBooking, Recurring: true, Active: true,
		BookableEventTypes: map[uint64]model.Allowance{f.et.ID: {}},
	})
	sub := f.seed.Subscription(model.Subscription{UserID: 1, ConfigID: cfg.ID, Paid: true, Status: model.SubscriptionActive})
	ev := f.event(time.Date(2020, 8, 1, 12, 30, 0, 0, time.UTC))
	f.seed.Booking(model.Booking{UserID: 1, EventID: ev.ID, SubscriptionID: &sub.ID})

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, f.inv.RecomputeSubscriptionWindow(ctx, tx, &sub))
		assert.Equal(t, studiotime.Date(2020, 8, 1), *sub.StartDate)
		assert.Equal(t, studiotime.Date(2020, 9, 1), *sub.ExpiryDate)
	})
}

func TestMarkSubscriptionPaidSignupDate(t *testing.T) {
	now := time.Date(2020, 7, 27, 12, 0, 0, 0, time.UTC)
	f := newFixture(t, time.UTC, now)
	cfg := f.seed.SubscriptionConfig(model.SubscriptionConfig{
		Duration: 1, DurationUnit: model.DurationMonths, StartOptions: model.StartSignupDate, Recurring: true, Active: true,
	})
	future := studiotime.Date(2020, 8, 1)
	past := studiotime.Date(2020, 7, 1)
	advance := f.seed.Subscription(model.Subscription{UserID: 1, ConfigID: cfg.ID, StartDate: &future})
	stale := f.seed.Subscription(model.Subscription{UserID: 1, ConfigID: cfg.ID, StartDate: &past})

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, f.inv.MarkSubscriptionPaid(ctx, tx, &advance))
		assert.Equal(t, future, *advance.StartDate)
		assert.Equal(t, model.SubscriptionActive, advance.Status)

		require.NoError(t, f.inv.MarkSubscriptionPaid(ctx, tx, &stale))
		assert.Equal(t, studiotime.Date(2020, 7, 27), *stale.StartDate)
		assert.Equal(t, studiotime.Date(2020, 8, 27), *stale.ExpiryDate)
		assert.Equal(t, now, stale.PurchaseDate)
	})
}

func TestUsageWindow(t *testing.T) {
	subStart := studiotime.Date(2024, 1, 3) // Wednesday
	ev := time.Date(2024, 1, 15, 18, 0, 0, 0, time.UTC) // Monday

	from, to := UsageWindow(model.AllowanceDay, &subStart, ev, time.UTC)
	assert.Equal(t, studiotime.Date(2024, 1, 15), from)
	assert.Equal(t, studiotime.Date(2024, 1, 16), to)

	from, to = UsageWindow(model.AllowanceWeek, &subStart, ev, time.UTC)
	assert.Equal(t, studiotime.Date(2024, 1, 10), from)
	assert.Equal(t, studiotime.Date(2024, 1, 17), to)

	from, to = UsageWindow(model.AllowanceMonth, &subStart, ev, time.UTC)
	assert.Equal(t, studiotime.Date(2024, 1, 3), from)
	assert.Equal(t, studiotime.Date(2024, 2, 3), to)

	lateStart := studiotime.Date(2024, 1, 31)
	from, to = UsageWindow(model.AllowanceMonth, &lateStart, studiotime.Date(2024, 3, 10), time.UTC)
	assert.Equal(t, studiotime.Date(2024, 2, 29), from)
	assert.Equal(t, studiotime.Date(2024, 3, 29), to)
}

func TestSubscriptionUsageCaps(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	start := studiotime.StartOfDayUTC(day0)
	expiry := start.AddDate(0, 1, 0)
	cfg := f.seed.SubscriptionConfig(model.SubscriptionConfig{
		Duration: 1, DurationUnit: model.DurationMonths, StartOptions: model.StartFixedDate, StartDate: &start,
		Recurring: true, Active: true,
		BookableEventTypes: map[uint64]model.Allowance{f.et.ID: {AllowedNumber: 1, AllowedUnit: model.AllowanceDay}},
	})
	sub := f.seed.Subscription(model.Subscription{
		UserID: 1, ConfigID: cfg.ID, Paid: true, Status: model.SubscriptionActive, StartDate: &start, ExpiryDate: &expiry,
	})
	morning := f.event(day0.AddDate(0, 0, 1))
	evening := f.event(day0.AddDate(0, 0, 1).Add(6 * time.Hour))
	nextDay := f.event(day0.AddDate(0, 0, 2))

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		valid := func(ev model.Event) bool {
			ok, err := f.inv.SubscriptionValidForEvent(ctx, tx, sub, ev, nil)
			require.NoError(t, err)
			return ok
		}
		assert.True(t, valid(morning))

		bk := model.Booking{UserID: 1, EventID: morning.ID, Status: model.BookingOpen, SubscriptionID: &sub.ID}
		require.NoError(t, tx.CreateBooking(ctx, &bk))
		assert.True(t, valid(morning), "an existing booking for the same event always passes")
		assert.False(t, valid(evening), "daily cap reached")
		assert.True(t, valid(nextDay))

		bk.NoShow = true
		require.NoError(t, tx.SaveBooking(ctx, &bk))
		assert.True(t, valid(evening), "no-shows do not count by default")

		sub.Config.IncludeNoShowsInUsage = true
		assert.False(t, valid(evening))
	})
}

func TestSubscriptionNotValidForCourseWithoutDropIn(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	start := studiotime.StartOfDayUTC(day0)
	cfg := f.seed.SubscriptionConfig(model.SubscriptionConfig{
		Duration: 1, DurationUnit: model.DurationMonths, StartOptions: model.StartFixedDate, StartDate: &start,
		Recurring: true, Active: true, BookableEventTypes: map[uint64]model.Allowance{f.et.ID: {}},
	})
	sub := f.seed.Subscription(model.Subscription{UserID: 1, ConfigID: cfg.ID, Paid: true, Status: model.SubscriptionActive, StartDate: &start})
	course := f.seed.Course(model.Course{EventTypeID: f.et.ID, NumberOfEvents: 2})
	cid := course.ID
	ev := f.seed.Event(model.Event{EventTypeID: f.et.ID, CourseID: &cid, Start: day0.AddDate(0, 0, 1)})

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		ok, err := f.inv.SubscriptionValidForEvent(ctx, tx, sub, ev, &course)
		require.NoError(t, err)
		assert.False(t, ok)

		course.AllowDropIn = true
		ok, err = f.inv.SubscriptionValidForEvent(ctx, tx, sub, ev, &course)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestCostWithVoucher(t *testing.T) {
	pct := 15
	v := &model.Voucher{DiscountPercent: &pct}
	assert.Equal(t, "8.50", CostWithVoucher(decimal.NewFromInt(10), v).StringFixed(2))

	amt := &model.Voucher{DiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(12))}
	assert.True(t, CostWithVoucher(decimal.NewFromInt(10), amt).IsZero())

	assert.Equal(t, "10.00", CostWithVoucher(decimal.NewFromInt(10), nil).StringFixed(2))
}
