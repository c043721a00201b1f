package catalog

import (
	"context"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// EventBookingCount returns the number of bookings occupying a place on the
// event.  Course events count no-shows, drop-in events do not.
func EventBookingCount(ctx context.Context, tx repository.Tx, ev model.Event) (int, error) {
	n, err := tx.CountEventBookings(ctx, ev.ID, ev.InCourse())
	if err != nil {
		return 0, fmt.Errorf("count bookings for event %d: %w", ev.ID, err)
	}
	return n, nil
}

// EventFull reports whether the event has no places left.
func EventFull(ctx context.Context, tx repository.Tx, ev model.Event) (bool, error) {
	n, err := EventBookingCount(ctx, tx, ev)
	if err != nil {
		return false, err
	}
	return n >= ev.MaxParticipants, nil
}

// CourseFull reports whether any member event holds as many open or
// no-show bookings as the course capacity.
func CourseFull(ctx context.Context, tx repository.Tx, c model.Course) (bool, error) {
	members, err := tx.ListCourseEvents(ctx, c.ID)
	if err != nil {
		return false, fmt.Errorf("list course events: %w", err)
	}
	for _, ev := range members {
		n, err := tx.CountEventBookings(ctx, ev.ID, true)
		if err != nil {
			return false, fmt.Errorf("count bookings for event %d: %w", ev.ID, err)
		}
		if n >= c.MaxParticipants {
			return true, nil
		}
	}
	return false, nil
}
