package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

// BlockWindow derives a block's start and expiry from the bookings that use
// it.  Open bookings (no-shows included) count; start is the earliest of
// their event starts.  Expiry is the end of the studio-local day of
// start + duration, unset when the config never expires or nothing is
// booked.  A manual expiry always wins and is normalized to end of day.
func BlockWindow(b model.Block, bookings []model.BookedEvent, loc *time.Location) (start, expiry *time.Time) {
	for _, be := range bookings {
		if !be.Booking.IsOpen() {
			continue
		}
		s := be.Event.Start
		if start == nil || s.Before(*start) {
			start = &s
		}
	}
	if b.ManualExpiryDate != nil {
		e := studiotime.EndOfDayIn(*b.ManualExpiryDate, loc)
		return start, &e
	}
	if start == nil || b.Config == nil || b.Config.DurationWeeks == nil {
		return start, nil
	}
	e := studiotime.EndOfDayIn(studiotime.AddWeeks(*start, *b.Config.DurationWeeks), loc)
	return start, &e
}

// RecomputeBlockWindow reloads the block's bookings, updates StartDate and
// ExpiryDate and saves the block.  Safe to call repeatedly.
func (inv *Inventory) RecomputeBlockWindow(ctx context.Context, tx repository.Tx, b *model.Block) error {
	bookings, err := tx.ListBlockBookings(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("list block bookings: %w", err)
	}
	b.StartDate, b.ExpiryDate = BlockWindow(*b, bookings, inv.loc)
	if err := tx.SaveBlock(ctx, b); err != nil {
		return fmt.Errorf("save block %d: %w", b.ID, err)
	}
	return nil
}

// BlockUsage counts the bookings attached to a block.
func (inv *Inventory) BlockUsage(ctx context.Context, tx repository.Tx, b model.Block) (int, error) {
	bookings, err := tx.ListBlockBookings(ctx, b.ID)
	if err != nil {
		return 0, fmt.Errorf("list block bookings: %w", err)
	}
	return len(bookings), nil
}

// IsActiveBlock reports paid && !expired && !full.
func (inv *Inventory) IsActiveBlock(ctx context.Context, tx repository.Tx, b model.Block) (bool, error) {
	if !b.Paid || b.Config == nil || b.Expired(inv.now()) {
		return false, nil
	}
	used, err := inv.BlockUsage(ctx, tx, b)
	if err != nil {
		return false, err
	}
	return used < b.Config.Size, nil
}

// BlockValidForEvent reports whether a drop-in block may pay for the event.
// course must be the event's course when it has one; course events accept
// drop-in blocks only when the course allows drop-in.
func (inv *Inventory) BlockValidForEvent(ctx context.Context, tx repository.Tx, b model.Block, ev model.Event, course *model.Course) (bool, error) {
	if b.Config == nil || b.Config.Course || b.Config.EventTypeID != ev.EventTypeID {
		return false, nil
	}
	if ev.InCourse() && (course == nil || !course.AllowDropIn) {
		return false, nil
	}
	if b.ExpiryDate != nil && !ev.Start.Before(*b.ExpiryDate) {
		return false, nil
	}
	return inv.IsActiveBlock(ctx, tx, b)
}

// BlockValidForCourse reports whether a course block may pay for the whole
// course.  The block's size must equal the course's declared number of
// events, it must not have been used on another course, and it must not
// expire before the course's first uncancelled event.
func (inv *Inventory) BlockValidForCourse(ctx context.Context, tx repository.Tx, b model.Block, course model.Course, events []model.Event) (bool, error) {
	if !b.Paid || b.Config == nil || !b.Config.Course {
		return false, nil
	}
	if b.Config.EventTypeID != course.EventTypeID || b.Config.Size != course.NumberOfEvents {
		return false, nil
	}
	if b.Expired(inv.now()) {
		return false, nil
	}
	bookings, err := tx.ListBlockBookings(ctx, b.ID)
	if err != nil {
		return false, fmt.Errorf("list block bookings: %w", err)
	}
	if len(bookings) >= b.Config.Size {
		return false, nil
	}
	for _, be := range bookings {
		if be.Event.CourseID == nil || *be.Event.CourseID != course.ID {
			return false, nil
		}
	}
	if ref := catalog.FirstUncancelled(events); ref != nil && b.ExpiryDate != nil && !ref.Start.Before(*b.ExpiryDate) {
		return false, nil
	}
	return true, nil
}

// MarkBlockPaid records payment: the purchase date becomes the payment
// instant and the window is recomputed.
func (inv *Inventory) MarkBlockPaid(ctx context.Context, tx repository.Tx, b *model.Block) error {
	if !b.Paid {
		b.Paid = true
		b.PurchaseDate = inv.now()
	}
	return inv.RecomputeBlockWindow(ctx, tx, b)
}

// DeleteBlock removes a block.  Bookings still pointing at it are detached
// and keep their status; callers release unpaid cart bookings first.
func (inv *Inventory) DeleteBlock(ctx context.Context, tx repository.Tx, b model.Block) error {
	bookings, err := tx.ListBlockBookings(ctx, b.ID)
	if err != nil {
		return fmt.Errorf("list block bookings: %w", err)
	}
	for _, be := range bookings {
		bk := be.Booking
		bk.BlockID = nil
		if err := tx.SaveBooking(ctx, &bk); err != nil {
			return fmt.Errorf("detach booking %d: %w", bk.ID, err)
		}
	}
	if err := tx.DeleteBlock(ctx, b.ID); err != nil {
		return fmt.Errorf("delete block %d: %w", b.ID, err)
	}
	return nil
}
