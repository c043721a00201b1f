package booking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// CancelBooking cancels an active booking.  Inside the event type's
// cancellation window a drop-in booking becomes CANCELLED and releases its
// credit.  Bookings paid by a course block, late cancellations and types
// that disallow cancelling become no-shows and keep their credit.
func (s *Service) CancelBooking(ctx context.Context, uc *identity.UserContext, bookingID uint64) (*model.Booking, error) {
	now := s.inv.Now()
	var (
		out model.Booking
		pub []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		bk, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking %d: %w", bookingID, err)
		}
		if uc == nil || !uc.CanActFor(bk.UserID) {
			return repository.ErrForbidden
		}
		if !bk.IsActive() {
			return model.ErrInvalidStateTransition
		}
		ev, err := tx.LockEvent(ctx, bk.EventID)
		if err != nil {
			return fmt.Errorf("lock event %d: %w", bk.EventID, err)
		}
		et, err := tx.GetEventType(ctx, ev.EventTypeID)
		if err != nil {
			return fmt.Errorf("get event type %d: %w", ev.EventTypeID, err)
		}

		wasFull := false
		if !ev.InCourse() {
			if wasFull, err = catalog.EventFull(ctx, tx, *ev); err != nil {
				return err
			}
		}

		onCourseBlock := false
		if ev.InCourse() && bk.BlockID != nil {
			b, err := tx.GetBlock(ctx, *bk.BlockID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("get block %d: %w", *bk.BlockID, err)
			}
			onCourseBlock = b != nil && b.IsCourse()
		}

		out = *bk
		var t touched
		t.add(out.BlockID, out.SubscriptionID)
		kind := events.BookingCancelled
		if onCourseBlock || !et.AllowBookingCancellation || !ev.CanCancelBooking(*et, now) {
			kind = events.BookingNoShow
			out.NoShow = true
		} else {
			out.Status = model.BookingCancelled
			out.BlockID = nil
			out.SubscriptionID = nil
		}
		if err := out.Validate(); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, &out); err != nil {
			return fmt.Errorf("save booking %d: %w", out.ID, err)
		}
		if err := s.recompute(ctx, tx, t); err != nil {
			return err
		}
		pub = append(pub, s.event(kind, actorID(uc), out))

		if wasFull {
			waiting, err := tx.ListWaitingList(ctx, ev.ID)
			if err != nil {
				return fmt.Errorf("list waiting list: %w", err)
			}
			if len(waiting) > 0 {
				sp := events.Event{Kind: events.WaitingListSpaceAvailable, ActorID: actorID(uc), EventID: ev.ID, At: now}
				for _, w := range waiting {
					sp.WaitingUserIDs = append(sp.WaitingUserIDs, w.UserID)
				}
				pub = append(pub, sp)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("booking: booking %d for event %d %s", out.ID, out.EventID, describe(out))
	s.bus.Publish(ctx, pub...)
	return &out, nil
}

func describe(b model.Booking) string {
	if b.NoShow {
		return "marked no-show"
	}
	return "cancelled"
}
