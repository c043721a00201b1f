package credit

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/repository/memstore"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

var day0 = time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)

func weeks(n int) *int { return &n }

type fixture struct {
	store *memstore.Store
	seed  *memstore.Seeder
	inv   *Inventory
	et    model.EventType
}

func newFixture(t *testing.T, loc *time.Location, now time.Time) *fixture {
	t.Helper()
	store := memstore.New().WithClock(func() time.Time { return now })
	seed := store.Seed()
	return &fixture{
		store: store,
		seed:  seed,
		inv:   NewInventory(loc, WithClock(func() time.Time { return now })),
		et:    seed.EventType(model.EventType{Name: "class", AllowBookingCancellation: true, CancellationPeriodHours: 24}),
	}
}

func (f *fixture) event(start time.Time) model.Event {
	return f.seed.Event(model.Event{EventTypeID: f.et.ID, Start: start, MaxParticipants: 10})
}

func (f *fixture) tx(t *testing.T, fn func(ctx context.Context, tx repository.Tx)) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.store.WithinTx(ctx, func(tx repository.Tx) error {
		fn(ctx, tx)
		return nil
	}))
}

func TestBlockWindowFollowsEarliestBooking(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	cfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 4, DurationWeeks: weeks(2)})
	block := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID, Paid: true, PurchaseDate: day0})
	assert.Nil(t, block.StartDate)
	assert.Nil(t, block.ExpiryDate)

	later := f.event(day0.AddDate(0, 0, 10))
	earlier := f.event(day0.AddDate(0, 0, 5))

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		bk := model.Booking{UserID: 1, EventID: later.ID, Status: model.BookingOpen, BlockID: &block.ID}
		require.NoError(t, tx.CreateBooking(ctx, &bk))
		require.NoError(t, f.inv.RecomputeBlockWindow(ctx, tx, &block))
		require.NotNil(t, block.StartDate)
		assert.Equal(t, later.Start, *block.StartDate)
		assert.Equal(t, studiotime.EndOfDayUTC(day0.AddDate(0, 0, 24)), *block.ExpiryDate)

		bk2 := model.Booking{UserID: 1, EventID: earlier.ID, Status: model.BookingOpen, BlockID: &block.ID}
		require.NoError(t, tx.CreateBooking(ctx, &bk2))
		require.NoError(t, f.inv.RecomputeBlockWindow(ctx, tx, &block))
		assert.Equal(t, earlier.Start, *block.StartDate)
		assert.Equal(t, studiotime.EndOfDayUTC(day0.AddDate(0, 0, 19)), *block.ExpiryDate)

		// cancelling both clears the window again
		for _, b := range []*model.Booking{&bk, &bk2} {
			b.Status = model.BookingCancelled
			b.BlockID = nil
			require.NoError(t, tx.SaveBooking(ctx, b))
		}
		require.NoError(t, f.inv.RecomputeBlockWindow(ctx, tx, &block))
		assert.Nil(t, block.StartDate)
		assert.Nil(t, block.ExpiryDate)
	})
}

func TestBlockWindowEndOfLocalDay(t *testing.T) {
	london := studiotime.LoadLocation("Europe/London")
	cfg := model.BlockConfig{Size: 4, DurationWeeks: weeks(1)}
	start := time.Date(2024, 6, 3, 18, 0, 0, 0, time.UTC)
	bookings := []model.BookedEvent{{
		Booking: model.Booking{Status: model.BookingOpen},
		Event:   model.Event{Start: start},
	}}

	s, e := BlockWindow(model.Block{Config: &cfg}, bookings, london)
	require.NotNil(t, s)
	require.NotNil(t, e)
	assert.Equal(t, start, *s)
	// BST: end of the local day is 22:59:59.999999Z
	assert.Equal(t, time.Date(2024, 6, 10, 22, 59, 59, 999999000, time.UTC), *e)
}

func TestBlockWindowNoShowsCountAndManualExpiryWins(t *testing.T) {
	cfg := model.BlockConfig{Size: 4, DurationWeeks: weeks(2)}
	start := day0.AddDate(0, 0, 3)
	bookings := []model.BookedEvent{
		{Booking: model.Booking{Status: model.BookingOpen, NoShow: true}, Event: model.Event{Start: start}},
		{Booking: model.Booking{Status: model.BookingCancelled}, Event: model.Event{Start: day0}},
	}
	s, _ := BlockWindow(model.Block{Config: &cfg}, bookings, time.UTC)
	require.NotNil(t, s)
	assert.Equal(t, start, *s)

	manual := day0.AddDate(0, 2, 0)
	_, e := BlockWindow(model.Block{Config: &cfg, ManualExpiryDate: &manual}, bookings, time.UTC)
	assert.Equal(t, studiotime.EndOfDayUTC(manual), *e)

	_, e = BlockWindow(model.Block{Config: &model.BlockConfig{Size: 4}}, bookings, time.UTC)
	assert.Nil(t, e, "configs without a duration never expire")
}

func TestIsActiveBlock(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	cfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 1, DurationWeeks: weeks(2)})
	unpaid := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID})
	paid := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID, Paid: true})
	past := day0.Add(-time.Hour)
	expired := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID, Paid: true, ExpiryDate: &past})
	ev := f.event(day0.AddDate(0, 0, 1))

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		ok, err := f.inv.IsActiveBlock(ctx, tx, unpaid)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.inv.IsActiveBlock(ctx, tx, expired)
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = f.inv.IsActiveBlock(ctx, tx, paid)
		require.NoError(t, err)
		assert.True(t, ok)

		bk := model.Booking{UserID: 1, EventID: ev.ID, Status: model.BookingOpen, BlockID: &paid.ID}
		require.NoError(t, tx.CreateBooking(ctx, &bk))
		ok, err = f.inv.IsActiveBlock(ctx, tx, paid)
		require.NoError(t, err)
		assert.False(t, ok, "full blocks are inactive")
	})
}

func TestBlockValidForEvent(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	other := f.seed.EventType(model.EventType{Name: "other"})
	cfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 5})
	courseCfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 3, Course: true})
	expiry := day0.AddDate(0, 0, 7)
	block := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID, Paid: true, ExpiryDate: &expiry})
	courseBlock := f.seed.Block(model.Block{UserID: 1, BlockConfigID: courseCfg.ID, Paid: true})

	course := f.seed.Course(model.Course{EventTypeID: f.et.ID, NumberOfEvents: 3})
	cid := course.ID
	inCourse := f.seed.Event(model.Event{EventTypeID: f.et.ID, CourseID: &cid, Start: day0.AddDate(0, 0, 1), MaxParticipants: 5})

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		check := func(b model.Block, ev model.Event, c *model.Course) bool {
			ok, err := f.inv.BlockValidForEvent(ctx, tx, b, ev, c)
			require.NoError(t, err)
			return ok
		}
		assert.True(t, check(block, model.Event{EventTypeID: f.et.ID, Start: day0.AddDate(0, 0, 1)}, nil))
		assert.False(t, check(block, model.Event{EventTypeID: other.ID, Start: day0.AddDate(0, 0, 1)}, nil))
		assert.False(t, check(block, model.Event{EventTypeID: f.et.ID, Start: expiry}, nil), "event after expiry")
		assert.False(t, check(courseBlock, model.Event{EventTypeID: f.et.ID, Start: day0.AddDate(0, 0, 1)}, nil))

		assert.False(t, check(block, inCourse, &course))
		course.AllowDropIn = true
		assert.True(t, check(block, inCourse, &course))
	})
}

func TestBlockValidForCourse(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	courseCfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 3, Course: true})
	wrongSize := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 2, Course: true})
	block := f.seed.Block(model.Block{UserID: 1, BlockConfigID: courseCfg.ID, Paid: true})
	small := f.seed.Block(model.Block{UserID: 1, BlockConfigID: wrongSize.ID, Paid: true})

	courseA := f.seed.Course(model.Course{EventTypeID: f.et.ID, NumberOfEvents: 3, MaxParticipants: 5})
	courseB := f.seed.Course(model.Course{EventTypeID: f.et.ID, NumberOfEvents: 3, MaxParticipants: 5})
	a, b := courseA.ID, courseB.ID
	var eventsA, eventsB []model.Event
	for i := 0; i < 2; i++ {
		eventsA = append(eventsA, f.seed.Event(model.Event{EventTypeID: f.et.ID, CourseID: &a, Start: day0.AddDate(0, 0, 7*i+1)}))
		eventsB = append(eventsB, f.seed.Event(model.Event{EventTypeID: f.et.ID, CourseID: &b, Start: day0.AddDate(0, 0, 7*i+2)}))
	}

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		// two scheduled events, but the declared size is what counts
		ok, err := f.inv.BlockValidForCourse(ctx, tx, block, courseA, eventsA)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = f.inv.BlockValidForCourse(ctx, tx, small, courseA, eventsA)
		require.NoError(t, err)
		assert.False(t, ok)

		bk := model.Booking{UserID: 1, EventID: eventsA[0].ID, Status: model.BookingOpen, BlockID: &block.ID}
		require.NoError(t, tx.CreateBooking(ctx, &bk))

		ok, err = f.inv.BlockValidForCourse(ctx, tx, block, courseA, eventsA)
		require.NoError(t, err)
		assert.True(t, ok, "still valid for the course it was used on")

		ok, err = f.inv.BlockValidForCourse(ctx, tx, block, courseB, eventsB)
		require.NoError(t, err)
		assert.False(t, ok, "used on a different course")
	})
}

func TestDeleteBlockDetachesBookings(t *testing.T) {
	f := newFixture(t, time.UTC, day0)
	cfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 2})
	block := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID})
	ev := f.event(day0.AddDate(0, 0, 1))
	bk := f.seed.Booking(model.Booking{UserID: 1, EventID: ev.ID, BlockID: &block.ID})

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, f.inv.DeleteBlock(ctx, tx, block))
		_, err := tx.GetBlock(ctx, block.ID)
		assert.ErrorIs(t, err, repository.ErrNotFound)
		got, err := tx.GetBooking(ctx, bk.ID)
		require.NoError(t, err)
		assert.Nil(t, got.BlockID)
	})
}

func TestMarkBlockPaidResetsPurchaseDate(t *testing.T) {
	now := day0.AddDate(0, 0, 2)
	f := newFixture(t, time.UTC, now)
	cfg := f.seed.BlockConfig(model.BlockConfig{EventTypeID: f.et.ID, Size: 2})
	block := f.seed.Block(model.Block{UserID: 1, BlockConfigID: cfg.ID, PurchaseDate: day0})

	f.tx(t, func(ctx context.Context, tx repository.Tx) {
		require.NoError(t, f.inv.MarkBlockPaid(ctx, tx, &block))
		got, err := tx.GetBlock(ctx, block.ID)
		require.NoError(t, err)
		assert.True(t, got.Paid)
		assert.Equal(t, now, got.PurchaseDate)
	})
}
