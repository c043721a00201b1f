package model

import "time"

// EventType groups events that share booking rules.  Blocks and
// subscriptions are always matched against an event type, never against a
// single event.
//
// Fields:
//  ID                       – primary key identifier.
//  Name                     – display name (e.g. "Pole class").
//  CancellationPeriodHours  – bookings may be cancelled until this many
//                             hours before an event starts.
//  AllowBookingCancellation – when false, a cancellation request always
//                             turns the booking into a no-show.
type EventType struct {
	ID                       uint64 // event_types.id
	Name                     string // event_types.name
	CancellationPeriodHours  int    // event_types.cancellation_period
	AllowBookingCancellation bool   // event_types.allow_booking_cancellation
}

// CancellationPeriod returns the cancellation window as a duration.
func (t EventType) CancellationPeriod() time.Duration {
	return time.Duration(t.CancellationPeriodHours) * time.Hour
}

// Event is a single bookable occurrence.  When CourseID is set the course is
// authoritative for capacity and visibility; catalog.AttachEventToCourse and
// catalog.SaveCourse keep the copies in sync.
//
// Fields:
//  ID              – primary key identifier.
//  EventTypeID     – type used for credit matching.
//  CourseID        – owning course (nullable).
//  Name            – display name.
//  Start           – start instant (UTC).
//  DurationMinutes – length of the event.
//  MaxParticipants – capacity.
//  Cancelled       – cancelled events accept no bookings.
//  ShowOnSite      – visibility flag.
type Event struct {
	ID              uint64    // events.id
	EventTypeID     uint64    // events.event_type_id
	CourseID        *uint64   // events.course_id (nullable)
	Name            string    // events.name
	Start           time.Time // events.start
	DurationMinutes int       // events.duration
	MaxParticipants int       // events.max_participants
	Cancelled       bool      // events.cancelled
	ShowOnSite      bool      // events.show_on_site
	CreatedAt       time.Time // events.created_at
}

// End returns the instant the event finishes.
func (e Event) End() time.Time {
	return e.Start.Add(time.Duration(e.DurationMinutes) * time.Minute)
}

// HasStarted reports whether the event start is at or before now.
func (e Event) HasStarted(now time.Time) bool {
	return !e.Start.After(now)
}

// InCourse reports whether the event belongs to a course.
func (e Event) InCourse() bool { return e.CourseID != nil }

// CanCancelBooking reports whether a booking for this event is still inside
// its type's cancellation window: now + period < start.  Whether the type
// allows cancellation at all is decided by the caller.
func (e Event) CanCancelBooking(t EventType, now time.Time) bool {
	return now.Add(t.CancellationPeriod()).Before(e.Start)
}

// Course is an ordered set of events of one event type that is sold as a
// whole.  NumberOfEvents is the declared size; course blocks are matched
// against it, not against the number of events currently scheduled.
type Course struct {
	ID                  uint64    // courses.id
	EventTypeID         uint64    // courses.event_type_id
	Name                string    // courses.name
	NumberOfEvents      int       // courses.number_of_events
	MaxParticipants     int       // courses.max_participants
	ShowOnSite          bool      // courses.show_on_site
	AllowDropIn         bool      // courses.allow_drop_in
	AllowPartialBooking bool      // courses.allow_partial_booking
	Cancelled           bool      // courses.cancelled
	CreatedAt           time.Time // courses.created_at
}
