// Package catalog holds the event/course rules the booking engine reads:
// course configuration state, fullness, and the explicit cascades that keep
// member events in line with their course.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Uncancelled filters out cancelled events, preserving order.
func Uncancelled(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if !e.Cancelled {
			out = append(out, e)
		}
	}
	return out
}

// FirstUncancelled returns the earliest uncancelled event, or nil.
func FirstUncancelled(events []model.Event) *model.Event {
	var first *model.Event
	for i := range events {
		e := events[i]
		if e.Cancelled {
			continue
		}
		if first == nil || e.Start.Before(first.Start) {
			first = &e
		}
	}
	return first
}

// IsConfigured reports whether exactly the declared number of uncancelled
// events is attached to the course.
func IsConfigured(c model.Course, events []model.Event) bool {
	return len(Uncancelled(events)) == c.NumberOfEvents
}

// CanBeVisible reports whether the course may be shown: it is configured,
// or its full set of events (cancelled ones included) has been created.
func CanBeVisible(c model.Course, events []model.Event) bool {
	return IsConfigured(c, events) || len(events) == c.NumberOfEvents
}

// HasStarted reports whether the first uncancelled event has started.
func HasStarted(events []model.Event, now time.Time) bool {
	first := FirstUncancelled(events)
	return first != nil && first.HasStarted(now)
}

// EventsLeft returns uncancelled events that have not started yet.
func EventsLeft(events []model.Event, now time.Time) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, e := range Uncancelled(events) {
		if !e.HasStarted(now) {
			out = append(out, e)
		}
	}
	return out
}

// AttachEventToCourse adds an event to a course.  The event must share the
// course's event type and the course must not be configured yet.  The
// course's capacity and visibility are copied onto the event.
func AttachEventToCourse(ctx context.Context, tx repository.Tx, eventID, courseID uint64) (*model.Event, error) {
	course, err := tx.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("load event: %w", err)
	}
	if ev.EventTypeID != course.EventTypeID {
		return nil, model.ErrCourseMismatch
	}
	if ev.CourseID != nil && *ev.CourseID == courseID {
		return ev, nil
	}
	members, err := tx.ListCourseEvents(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list course events: %w", err)
	}
	if IsConfigured(*course, members) {
		return nil, model.ErrCourseAlreadyConfigured
	}
	id := course.ID
	ev.CourseID = &id
	mirrorCourse(ev, course)
	if err := tx.SaveEvent(ctx, ev); err != nil {
		return nil, fmt.Errorf("save event: %w", err)
	}
	return ev, nil
}

func mirrorCourse(ev *model.Event, c *model.Course) {
	ev.MaxParticipants = c.MaxParticipants
	ev.ShowOnSite = c.ShowOnSite
	if c.Cancelled {
		ev.Cancelled = true
	}
}

// SaveCourse persists the course and pushes its capacity, visibility and
// cancellation onto every member event.
func SaveCourse(ctx context.Context, tx repository.Tx, c *model.Course) error {
	if err := tx.SaveCourse(ctx, c); err != nil {
		return fmt.Errorf("save course: %w", err)
	}
	members, err := tx.ListCourseEvents(ctx, c.ID)
	if err != nil {
		return fmt.Errorf("list course events: %w", err)
	}
	for i := range members {
		ev := members[i]
		before := ev
		mirrorCourse(&ev, c)
		if ev.MaxParticipants == before.MaxParticipants && ev.ShowOnSite == before.ShowOnSite && ev.Cancelled == before.Cancelled {
			continue
		}
		if err := tx.SaveEvent(ctx, &ev); err != nil {
			return fmt.Errorf("save course event %d: %w", ev.ID, err)
		}
	}
	return nil
}

// CancelCourse marks the course and all of its events cancelled.
func CancelCourse(ctx context.Context, tx repository.Tx, courseID uint64) (*model.Course, error) {
	c, err := tx.GetCourse(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("load course: %w", err)
	}
	c.Cancelled = true
	if err := SaveCourse(ctx, tx, c); err != nil {
		return nil, err
	}
	return c, nil
}
