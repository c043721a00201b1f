package booking

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/eligibility"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// AttemptBooking opens a booking for the event, creating it or reopening a
// cancelled or no-show one.  The event row is locked before capacity is
// counted so two requests for the last place cannot both succeed.
func (s *Service) AttemptBooking(ctx context.Context, uc *identity.UserContext, eventID uint64, opts Options) (*model.Booking, error) {
	userID := opts.owner(uc)
	if err := s.authorize(ctx, uc, userID); err != nil {
		return nil, err
	}
	now := s.inv.Now()

	var (
		out model.Booking
		pub []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.LockEvent(ctx, eventID)
		if err != nil {
			return fmt.Errorf("lock event %d: %w", eventID, err)
		}
		target, err := eligibility.TargetFor(ctx, tx, *ev)
		if err != nil {
			return err
		}
		existing, err := tx.FindBooking(ctx, userID, eventID)
		if err != nil {
			return fmt.Errorf("find booking: %w", err)
		}
		if existing != nil && existing.IsActive() {
			return model.ErrDuplicateBooking
		}
		if ev.Cancelled {
			return model.ErrEventCancelled
		}
		if ev.HasStarted(now) {
			return model.ErrEventStarted
		}

		// A course no-show still holds its place, so it may come back even
		// when the event is full.
		holdsPlace := existing != nil && existing.IsOpen() && existing.NoShow && ev.InCourse()
		if !holdsPlace {
			full, err := catalog.EventFull(ctx, tx, *ev)
			if err != nil {
				return err
			}
			if full {
				if existing != nil {
					return fmt.Errorf("%w: %w", model.ErrInvalidStateTransition, model.ErrEventFull)
				}
				return model.ErrEventFull
			}
		}

		var blockID, subID *uint64
		if existing != nil && existing.IsOpen() && (existing.BlockID != nil || existing.SubscriptionID != nil) {
			blockID, subID = existing.BlockID, existing.SubscriptionID
		} else {
			cr, err := s.chooseCredit(ctx, tx, userID, *target, opts)
			if err != nil {
				return err
			}
			if cr.Empty() {
				return model.ErrNoCreditAvailable
			}
			if cr.Block != nil {
				blockID = &cr.Block.ID
			}
			if cr.Subscription != nil {
				subID = &cr.Subscription.ID
			}
		}

		var t touched
		kind := events.BookingCreated
		if existing == nil {
			out = model.Booking{
				UserID:         userID,
				EventID:        eventID,
				Status:         model.BookingOpen,
				BlockID:        blockID,
				SubscriptionID: subID,
				DateBooked:     now,
			}
			if err := out.Validate(); err != nil {
				return err
			}
			if err := tx.CreateBooking(ctx, &out); err != nil {
				if errors.Is(err, repository.ErrConflict) {
					return model.ErrDuplicateBooking
				}
				return fmt.Errorf("create booking: %w", err)
			}
		} else {
			kind = events.BookingReopened
			out = *existing
			t.add(out.BlockID, out.SubscriptionID)
			out.Status = model.BookingOpen
			out.NoShow = false
			out.BlockID, out.SubscriptionID = blockID, subID
			out.DateRebooked = &now
			if err := out.Validate(); err != nil {
				return err
			}
			if err := tx.SaveBooking(ctx, &out); err != nil {
				return fmt.Errorf("save booking %d: %w", out.ID, err)
			}
		}
		t.add(out.BlockID, out.SubscriptionID)

		if err := tx.RemoveWaitingListUser(ctx, userID, eventID); err != nil {
			return fmt.Errorf("leave waiting list: %w", err)
		}
		if err := s.recompute(ctx, tx, t); err != nil {
			return err
		}
		pub = append(pub, s.event(kind, uc.UserID, out))
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("booking: user %d booked event %d (booking %d)", userID, eventID, out.ID)
	s.bus.Publish(ctx, pub...)
	return &out, nil
}

// chooseCredit validates explicitly requested credit or asks the resolver.
// Explicit credit must belong to the user.
func (s *Service) chooseCredit(ctx context.Context, tx repository.Tx, userID uint64, t eligibility.Target, opts Options) (eligibility.Credit, error) {
	switch {
	case opts.SubscriptionID != nil:
		sub, err := tx.GetSubscription(ctx, *opts.SubscriptionID)
		if err != nil {
			return eligibility.Credit{}, fmt.Errorf("get subscription %d: %w", *opts.SubscriptionID, err)
		}
		if sub.UserID != userID {
			return eligibility.Credit{}, repository.ErrForbidden
		}
		ok, err := s.inv.SubscriptionValidForEvent(ctx, tx, *sub, t.Event, t.Course)
		if err != nil || !ok {
			return eligibility.Credit{}, err
		}
		return eligibility.Credit{Subscription: sub}, nil
	case opts.BlockID != nil:
		b, err := tx.GetBlock(ctx, *opts.BlockID)
		if err != nil {
			return eligibility.Credit{}, fmt.Errorf("get block %d: %w", *opts.BlockID, err)
		}
		if b.UserID != userID {
			return eligibility.Credit{}, repository.ErrForbidden
		}
		var ok bool
		if b.IsCourse() {
			if t.Course != nil {
				ok, err = s.inv.BlockValidForCourse(ctx, tx, *b, *t.Course, t.CourseEvents)
			}
		} else {
			ok, err = s.inv.BlockValidForEvent(ctx, tx, *b, t.Event, t.Course)
		}
		if err != nil || !ok {
			return eligibility.Credit{}, err
		}
		return eligibility.Credit{Block: b}, nil
	}
	return s.resolver.Resolve(ctx, tx, userID, t)
}

// Toggle cancels the user's active booking for the event, or attempts one
// when there is none.
func (s *Service) Toggle(ctx context.Context, uc *identity.UserContext, eventID uint64, opts Options) (*model.Booking, error) {
	userID := opts.owner(uc)
	if !uc.CanActFor(userID) {
		return nil, repository.ErrForbidden
	}
	var existing *model.Booking
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		existing, err = tx.FindBooking(ctx, userID, eventID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("find booking: %w", err)
	}
	if existing != nil && existing.IsActive() {
		return s.CancelBooking(ctx, uc, existing.ID)
	}
	return s.AttemptBooking(ctx, uc, eventID, opts)
}
