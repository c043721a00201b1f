// Package queue defines message payloads exchanged over the message broker.
package queue

import (
    "time"

    "github.com/iliyamo/studio-booking/internal/events"
)

// Notification asks the dispatcher to tell one or more users about a
// booking transition.  It carries ids only; the dispatcher looks up names
// and addresses itself.
type Notification struct {
    Kind           string   `json:"kind"`
    UserID         uint64   `json:"user_id"`
    ActorID        uint64   `json:"actor_id,omitempty"`
    EventID        uint64   `json:"event_id,omitempty"`
    BookingID      uint64   `json:"booking_id,omitempty"`
    SubscriptionID uint64   `json:"subscription_id,omitempty"`
    Recipients     []uint64 `json:"recipients"`
    OccurredAt     string   `json:"occurred_at"`
}

// Notified lists the event kinds that produce notifications.
var Notified = []events.Kind{
    events.BookingCreated,
    events.BookingReopened,
    events.BookingCancelled,
    events.BookingNoShow,
    events.WaitingListSpaceAvailable,
    events.SubscriptionRenewalDue,
}

// FromEvent builds the notification for a bus event.  Waiting list events
// go to the waiting users; everything else goes to the booking owner.
func FromEvent(ev events.Event) Notification {
    n := Notification{
        Kind:       string(ev.Kind),
        UserID:     ev.UserID,
        ActorID:    ev.ActorID,
        EventID:    ev.EventID,
        BookingID:  ev.BookingID,
        OccurredAt: ev.At.UTC().Format(time.RFC3339),
    }
    if ev.SubscriptionID != nil {
        n.SubscriptionID = *ev.SubscriptionID
    }
    if ev.Kind == events.WaitingListSpaceAvailable {
        n.Recipients = append([]uint64(nil), ev.WaitingUserIDs...)
    } else {
        n.Recipients = []uint64{ev.UserID}
    }
    return n
}
