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

// BookCourse books every remaining event of the course on one course
// block.  Existing bookings are reopened and moved onto the block; unpaid
// single-session blocks they held are deleted.
func (s *Service) BookCourse(ctx context.Context, uc *identity.UserContext, courseID uint64, opts Options) ([]model.Booking, error) {
	userID := opts.owner(uc)
	if err := s.authorize(ctx, uc, userID); err != nil {
		return nil, err
	}
	now := s.inv.Now()

	var (
		out []model.Booking
		pub []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		course, err := tx.GetCourse(ctx, courseID)
		if err != nil {
			return fmt.Errorf("get course %d: %w", courseID, err)
		}
		if course.Cancelled {
			return model.ErrCourseCancelled
		}
		members, err := tx.ListCourseEvents(ctx, courseID)
		if err != nil {
			return fmt.Errorf("list course events: %w", err)
		}
		for _, ev := range members {
			if _, err := tx.LockEvent(ctx, ev.ID); err != nil {
				return fmt.Errorf("lock event %d: %w", ev.ID, err)
			}
		}
		if catalog.HasStarted(members, now) && !course.AllowPartialBooking {
			return fmt.Errorf("course %d: %w", courseID, model.ErrEventStarted)
		}
		left := catalog.EventsLeft(members, now)
		if len(left) == 0 {
			return fmt.Errorf("course %d: %w", courseID, model.ErrEventStarted)
		}

		held, err := tx.ListUserCourseBookings(ctx, userID, courseID)
		if err != nil {
			return fmt.Errorf("list course bookings: %w", err)
		}
		holdsPlace := map[uint64]bool{}
		for _, be := range held {
			if be.Booking.IsOpen() {
				holdsPlace[be.Event.ID] = true
			}
		}
		if len(holdsPlace) == 0 {
			full, err := catalog.CourseFull(ctx, tx, *course)
			if err != nil {
				return err
			}
			if full {
				return model.ErrCourseFull
			}
		}

		block, err := s.courseBlock(ctx, tx, userID, *course, members, opts)
		if err != nil {
			return err
		}
		if block == nil {
			return model.ErrNoCreditAvailable
		}

		var t touched
		t.add(&block.ID, nil)
		var stale []uint64
		for _, ev := range left {
			if !holdsPlace[ev.ID] {
				full, err := catalog.EventFull(ctx, tx, ev)
				if err != nil {
					return err
				}
				if full {
					return model.ErrCourseFull
				}
			}
			existing, err := tx.FindBooking(ctx, userID, ev.ID)
			if err != nil {
				return fmt.Errorf("find booking: %w", err)
			}
			bk := model.Booking{UserID: userID, EventID: ev.ID, DateBooked: now}
			kind := events.BookingCreated
			if existing != nil {
				bk = *existing
				kind = events.BookingReopened
				if existing.BlockID != nil && *existing.BlockID != block.ID {
					stale = append(stale, *existing.BlockID)
				}
				t.add(existing.BlockID, existing.SubscriptionID)
				if !existing.IsActive() {
					bk.DateRebooked = &now
				}
			}
			bk.Status = model.BookingOpen
			bk.NoShow = false
			bk.BlockID = &block.ID
			bk.SubscriptionID = nil
			if err := bk.Validate(); err != nil {
				return err
			}
			if existing == nil {
				if err := tx.CreateBooking(ctx, &bk); err != nil {
					if errors.Is(err, repository.ErrConflict) {
						return model.ErrDuplicateBooking
					}
					return fmt.Errorf("create booking: %w", err)
				}
			} else if err := tx.SaveBooking(ctx, &bk); err != nil {
				return fmt.Errorf("save booking %d: %w", bk.ID, err)
			}
			if err := tx.RemoveWaitingListUser(ctx, userID, ev.ID); err != nil {
				return fmt.Errorf("leave waiting list: %w", err)
			}
			out = append(out, bk)
			pub = append(pub, s.event(kind, uc.UserID, bk))
		}

		if err := s.dropStaleBlocks(ctx, tx, stale); err != nil {
			return err
		}
		return s.recompute(ctx, tx, t)
	})
	if err != nil {
		return nil, err
	}
	log.Printf("booking: user %d booked course %d (%d events)", userID, courseID, len(out))
	s.bus.Publish(ctx, pub...)
	return out, nil
}

func (s *Service) courseBlock(ctx context.Context, tx repository.Tx, userID uint64, course model.Course, members []model.Event, opts Options) (*model.Block, error) {
	if opts.BlockID == nil {
		return s.resolver.CourseBlock(ctx, tx, userID, course, members)
	}
	b, err := tx.GetBlock(ctx, *opts.BlockID)
	if err != nil {
		return nil, fmt.Errorf("get block %d: %w", *opts.BlockID, err)
	}
	if b.UserID != userID {
		return nil, repository.ErrForbidden
	}
	ok, err := s.inv.BlockValidForCourse(ctx, tx, *b, course, members)
	if err != nil || !ok {
		return nil, err
	}
	return b, nil
}

// dropStaleBlocks deletes unpaid single-session blocks left behind when
// their bookings moved onto a course block.
func (s *Service) dropStaleBlocks(ctx context.Context, tx repository.Tx, ids []uint64) error {
	for _, id := range ids {
		b, err := tx.GetBlock(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get block %d: %w", id, err)
		}
		if b.Paid || b.Config == nil || b.Config.Size != 1 {
			continue
		}
		used, err := s.inv.BlockUsage(ctx, tx, *b)
		if err != nil {
			return err
		}
		if used > 0 {
			continue
		}
		if err := s.inv.DeleteBlock(ctx, tx, *b); err != nil {
			return err
		}
	}
	return nil
}
