package model

import "time"

// BookingStatus is the persisted status of a booking.  A no-show is an OPEN
// booking with NoShow set.
type BookingStatus string

const (
	BookingOpen      BookingStatus = "OPEN"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking links one user to one event; (UserID, EventID) is unique.  At most
// one of BlockID and SubscriptionID is set.
type Booking struct {
	ID             uint64        // bookings.id
	UserID         uint64        // bookings.user_id
	EventID        uint64        // bookings.event_id
	Status         BookingStatus // bookings.status
	NoShow         bool          // bookings.no_show
	Attended       bool          // bookings.attended
	BlockID        *uint64       // bookings.block_id (nullable)
	SubscriptionID *uint64       // bookings.subscription_id (nullable)
	DateBooked     time.Time     // bookings.date_booked
	DateRebooked   *time.Time    // bookings.date_rebooked (nullable)
}

// IsOpen reports an OPEN booking regardless of no-show.
func (b Booking) IsOpen() bool { return b.Status == BookingOpen }

// IsActive reports an OPEN booking that is not a no-show.
func (b Booking) IsActive() bool { return b.Status == BookingOpen && !b.NoShow }

// Validate rejects flag combinations that must never be persisted.
func (b Booking) Validate() error {
	if b.Status == BookingCancelled && b.NoShow {
		return ErrInconsistentBookingFlags
	}
	if b.Attended && b.NoShow {
		return ErrInconsistentBookingFlags
	}
	if b.BlockID != nil && b.SubscriptionID != nil {
		return ErrInconsistentBookingFlags
	}
	return nil
}

// BookedEvent pairs a booking with the event it is for.
type BookedEvent struct {
	Booking Booking
	Event   Event
}

// WaitingListUser records a user waiting for space on a full event.
type WaitingListUser struct {
	ID         uint64    // waiting_list_users.id
	UserID     uint64    // waiting_list_users.user_id
	EventID    uint64    // waiting_list_users.event_id
	DateJoined time.Time // waiting_list_users.date_joined
}
