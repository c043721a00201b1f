package booking

import (
	"context"
	"fmt"
	"log"

	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// SetAttended records the register for one booking.  Only staff may mark
// the register; a booking cannot be both attended and a no-show.
// Marking a cancelled booking attended reopens it, which fails when the
// event has no place left.
func (s *Service) SetAttended(ctx context.Context, uc *identity.UserContext, bookingID uint64, attended, noShow bool) (*model.Booking, error) {
	if uc == nil || !uc.IsStaff() {
		return nil, repository.ErrForbidden
	}
	if attended && noShow {
		return nil, model.ErrInconsistentBookingFlags
	}
	var out model.Booking
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		bk, err := tx.GetBooking(ctx, bookingID)
		if err != nil {
			return fmt.Errorf("get booking %d: %w", bookingID, err)
		}
		ev, err := tx.LockEvent(ctx, bk.EventID)
		if err != nil {
			return fmt.Errorf("lock event %d: %w", bk.EventID, err)
		}
		// Cancelled bookings and drop-in no-shows hold no place, so
		// bringing them back needs a free one.
		reopening := (attended && bk.Status == model.BookingCancelled) ||
			(bk.IsOpen() && bk.NoShow && !noShow && !ev.InCourse())
		if reopening {
			full, err := catalog.EventFull(ctx, tx, *ev)
			if err != nil {
				return err
			}
			if full {
				return fmt.Errorf("%w: %w", model.ErrInvalidStateTransition, model.ErrEventFull)
			}
		}
		out = *bk
		out.Attended = attended
		out.NoShow = noShow
		if attended {
			out.Status = model.BookingOpen
		}
		if err := out.Validate(); err != nil {
			return err
		}
		if err := tx.SaveBooking(ctx, &out); err != nil {
			return fmt.Errorf("save booking %d: %w", out.ID, err)
		}
		var t touched
		t.add(out.BlockID, out.SubscriptionID)
		return s.recompute(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	kind := events.BookingAttended
	if noShow {
		kind = events.BookingNoShow
	}
	s.bus.Publish(ctx, s.event(kind, uc.UserID, out))
	return &out, nil
}

// JoinWaitingList adds the user to a full event's waiting list.  Joining
// twice is a no-op.
func (s *Service) JoinWaitingList(ctx context.Context, uc *identity.UserContext, eventID uint64, opts Options) (*model.WaitingListUser, error) {
	userID := opts.owner(uc)
	if !uc.CanActFor(userID) {
		return nil, repository.ErrForbidden
	}
	now := s.inv.Now()
	var out model.WaitingListUser
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.GetEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("get event %d: %w", eventID, err)
		}
		if ev.Cancelled {
			return model.ErrEventCancelled
		}
		if ev.HasStarted(now) {
			return model.ErrEventStarted
		}
		existing, err := tx.FindBooking(ctx, userID, eventID)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if existing != nil && existing.IsActive() {
			return model.ErrDuplicateBooking
		}
		full, err := catalog.EventFull(ctx, tx, *ev)
		if err != nil {
			return err
		}
		if !full {
			return fmt.Errorf("event %d has space: %w", eventID, model.ErrInvalidStateTransition)
		}
		out = model.WaitingListUser{UserID: userID, EventID: eventID, DateJoined: now}
		if err := tx.AddWaitingListUser(ctx, &out); err != nil {
			return fmt.Errorf("join waiting list: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// LeaveWaitingList removes the user from the event's waiting list.
func (s *Service) LeaveWaitingList(ctx context.Context, uc *identity.UserContext, eventID uint64, opts Options) error {
	userID := opts.owner(uc)
	if !uc.CanActFor(userID) {
		return repository.ErrForbidden
	}
	return s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.RemoveWaitingListUser(ctx, userID, eventID)
	})
}

// ReleaseUnpaidBlock deletes an unpaid cart block and cancels the bookings
// that were waiting on it.  uc is nil for system jobs such as the cart
// sweeper; otherwise it must be able to act for the block's owner.
func (s *Service) ReleaseUnpaidBlock(ctx context.Context, uc *identity.UserContext, blockID uint64) error {
	var pub []events.Event
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		b, err := tx.GetBlock(ctx, blockID)
		if err != nil {
			return fmt.Errorf("get block %d: %w", blockID, err)
		}
		if uc != nil && !uc.CanActFor(b.UserID) {
			return repository.ErrForbidden
		}
		if b.Paid {
			return fmt.Errorf("block %d is paid: %w", blockID, model.ErrInvalidStateTransition)
		}
		bookings, err := tx.ListBlockBookings(ctx, blockID)
		if err != nil {
			return fmt.Errorf("list block bookings: %w", err)
		}
		if pub, err = s.releaseBookings(ctx, tx, uc, bookings); err != nil {
			return err
		}
		pub = append(pub, events.Event{Kind: events.CreditChanged, UserID: b.UserID, ActorID: actorID(uc), BlockID: &b.ID, At: s.inv.Now()})
		return s.inv.DeleteBlock(ctx, tx, *b)
	})
	if err != nil {
		return err
	}
	log.Printf("booking: released unpaid block %d (%d bookings)", blockID, len(pub)-1)
	s.bus.Publish(ctx, pub...)
	return nil
}

// ReleaseUnpaidSubscription is ReleaseUnpaidBlock for subscriptions.
func (s *Service) ReleaseUnpaidSubscription(ctx context.Context, uc *identity.UserContext, subscriptionID uint64) error {
	var pub []events.Event
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		sub, err := tx.GetSubscription(ctx, subscriptionID)
		if err != nil {
			return fmt.Errorf("get subscription %d: %w", subscriptionID, err)
		}
		if uc != nil && !uc.CanActFor(sub.UserID) {
			return repository.ErrForbidden
		}
		if sub.Paid {
			return fmt.Errorf("subscription %d is paid: %w", subscriptionID, model.ErrInvalidStateTransition)
		}
		bookings, err := tx.ListSubscriptionBookings(ctx, subscriptionID)
		if err != nil {
			return fmt.Errorf("list subscription bookings: %w", err)
		}
		if pub, err = s.releaseBookings(ctx, tx, uc, bookings); err != nil {
			return err
		}
		pub = append(pub, events.Event{Kind: events.CreditChanged, UserID: sub.UserID, ActorID: actorID(uc), SubscriptionID: &sub.ID, At: s.inv.Now()})
		return s.inv.DeleteSubscription(ctx, tx, *sub)
	})
	if err != nil {
		return err
	}
	log.Printf("booking: released unpaid subscription %d", subscriptionID)
	s.bus.Publish(ctx, pub...)
	return nil
}

// releaseBookings cancels open cart bookings the same way an in-window
// cancellation does, without the window check.
func (s *Service) releaseBookings(ctx context.Context, tx repository.Tx, uc *identity.UserContext, bookings []model.BookedEvent) ([]events.Event, error) {
	var pub []events.Event
	for _, be := range bookings {
		bk := be.Booking
		if !bk.IsOpen() {
			continue
		}
		bk.Status = model.BookingCancelled
		bk.NoShow = false
		bk.BlockID = nil
		bk.SubscriptionID = nil
		if err := tx.SaveBooking(ctx, &bk); err != nil {
			return nil, fmt.Errorf("cancel booking %d: %w", bk.ID, err)
		}
		pub = append(pub, s.event(events.BookingCancelled, actorID(uc), bk))
	}
	return pub, nil
}
