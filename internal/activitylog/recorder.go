// Package activitylog writes the free-text audit trail staff read.
package activitylog

import (
	"context"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Recorder turns bus events into activity log rows.
type Recorder struct {
	store repository.Store
}

// NewRecorder returns a Recorder writing to store.
func NewRecorder(store repository.Store) *Recorder {
	return &Recorder{store: store}
}

// Subscribe registers the recorder for every event kind it describes.
func (r *Recorder) Subscribe(bus *events.Bus) {
	bus.Subscribe(r.Handle,
		events.BookingCreated,
		events.BookingReopened,
		events.BookingCancelled,
		events.BookingNoShow,
		events.BookingAttended,
		events.WaitingListSpaceAvailable,
		events.SubscriptionRenewalDue,
	)
}

// Handle appends one row for ev.
func (r *Recorder) Handle(ctx context.Context, ev events.Event) error {
	msg := Describe(ev)
	if msg == "" {
		return nil
	}
	return r.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.AppendActivityLog(ctx, &model.ActivityLog{Log: msg, CreatedAt: ev.At})
	})
}

// Describe renders the log line for ev, or "" for kinds that are not
// logged.
func Describe(ev events.Event) string {
	by := ""
	if ev.ActorID != 0 && ev.ActorID != ev.UserID {
		by = fmt.Sprintf(" by user %d", ev.ActorID)
	}
	switch ev.Kind {
	case events.BookingCreated:
		return fmt.Sprintf("Booking id %d for event %d, user %d, created%s%s", ev.BookingID, ev.EventID, ev.UserID, credit(ev), by)
	case events.BookingReopened:
		return fmt.Sprintf("Booking id %d for event %d, user %d, rebooked%s%s", ev.BookingID, ev.EventID, ev.UserID, credit(ev), by)
	case events.BookingCancelled:
		return fmt.Sprintf("Booking id %d for event %d, user %d, cancelled%s", ev.BookingID, ev.EventID, ev.UserID, by)
	case events.BookingNoShow:
		return fmt.Sprintf("Booking id %d for event %d, user %d, marked as no-show%s", ev.BookingID, ev.EventID, ev.UserID, by)
	case events.BookingAttended:
		return fmt.Sprintf("Booking id %d for event %d, user %d, marked as attended%s", ev.BookingID, ev.EventID, ev.UserID, by)
	case events.WaitingListSpaceAvailable:
		return fmt.Sprintf("Space available for event %d; waiting list users notified: %s", ev.EventID, ids(ev.WaitingUserIDs))
	case events.SubscriptionRenewalDue:
		return fmt.Sprintf("Renewal subscription %d added to cart of user %d", deref(ev.SubscriptionID), ev.UserID)
	}
	return ""
}

func credit(ev events.Event) string {
	switch {
	case ev.BlockID != nil:
		return fmt.Sprintf(" using block %d", *ev.BlockID)
	case ev.SubscriptionID != nil:
		return fmt.Sprintf(" using subscription %d", *ev.SubscriptionID)
	}
	return ""
}

func ids(v []uint64) string {
	s := ""
	for i, id := range v {
		if i > 0 {
			s += ", "
		}
		s += fmt.Sprint(id)
	}
	return s
}

func deref(p *uint64) uint64 {
	if p == nil {
		return 0
	}
	return *p
}
