package activitylog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/repository/memstore"
)

func TestDescribe(t *testing.T) {
	block := uint64(9)
	assert.Equal(t,
		"Booking id 3 for event 4, user 5, created using block 9",
		Describe(events.Event{Kind: events.BookingCreated, BookingID: 3, EventID: 4, UserID: 5, ActorID: 5, BlockID: &block}))
	assert.Equal(t,
		"Booking id 3 for event 4, user 5, cancelled by user 1",
		Describe(events.Event{Kind: events.BookingCancelled, BookingID: 3, EventID: 4, UserID: 5, ActorID: 1}))
	assert.Equal(t,
		"Space available for event 4; waiting list users notified: 7, 8",
		Describe(events.Event{Kind: events.WaitingListSpaceAvailable, EventID: 4, WaitingUserIDs: []uint64{7, 8}}))
	assert.Empty(t, Describe(events.Event{Kind: events.CreditChanged}))
}

func TestRecorderWritesThroughBus(t *testing.T) {
	store := memstore.New()
	bus := events.NewBus()
	NewRecorder(store).Subscribe(bus)
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	bus.Publish(context.Background(),
		events.Event{Kind: events.BookingNoShow, BookingID: 1, EventID: 2, UserID: 3, At: at},
		events.Event{Kind: events.CreditChanged, UserID: 3, At: at},
	)
	logs := store.ActivityLogs()
	require.Len(t, logs, 1)
	assert.Contains(t, logs[0].Log, "marked as no-show")
	assert.Equal(t, at, logs[0].CreatedAt)
}
