// Package events is the in-process bus the booking engine publishes its
// state transitions to.  Handlers run synchronously after the unit of work
// has committed; a failing or panicking handler never affects the caller.
package events

import (
	"context"
	"log"
	"sync"
	"time"
)

// Kind names a transition.
type Kind string

const (
	BookingCreated            Kind = "booking.created"
	BookingReopened           Kind = "booking.reopened"
	BookingCancelled          Kind = "booking.cancelled"
	BookingNoShow             Kind = "booking.no_show"
	BookingAttended           Kind = "booking.attended"
	WaitingListSpaceAvailable Kind = "waiting_list.space"
	CreditChanged             Kind = "credit.changed"
	SubscriptionRenewalDue    Kind = "subscription.renewal_due"
)

// Event describes one committed transition.  UserID is the owner of the
// booking or credit; ActorID is whoever triggered it.
type Event struct {
	Kind           Kind
	UserID         uint64
	ActorID        uint64
	EventID        uint64
	BookingID      uint64
	BlockID        *uint64
	SubscriptionID *uint64
	// WaitingUserIDs lists the users to notify for WaitingListSpaceAvailable.
	WaitingUserIDs []uint64
	At             time.Time
}

// Handler reacts to an event.  Returned errors are logged.
type Handler func(ctx context.Context, ev Event) error

// Bus fans events out to registered handlers.
type Bus struct {
	mu       sync.RWMutex
	byKind   map[Kind][]Handler
	wildcard []Handler
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{byKind: map[Kind][]Handler{}}
}

// Subscribe registers h for the given kinds, or for every kind when none
// is given.
func (b *Bus) Subscribe(h Handler, kinds ...Kind) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(kinds) == 0 {
		b.wildcard = append(b.wildcard, h)
		return
	}
	for _, k := range kinds {
		b.byKind[k] = append(b.byKind[k], h)
	}
}

// Publish delivers each event to its handlers in registration order.  A nil
// bus drops events.
func (b *Bus) Publish(ctx context.Context, evs ...Event) {
	if b == nil {
		return
	}
	for _, ev := range evs {
		b.mu.RLock()
		hs := append(append([]Handler(nil), b.byKind[ev.Kind]...), b.wildcard...)
		b.mu.RUnlock()
		for _, h := range hs {
			deliver(ctx, h, ev)
		}
	}
}

func deliver(ctx context.Context, h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("events: handler panic on %s: %v", ev.Kind, r)
		}
	}()
	if err := h(ctx, ev); err != nil {
		log.Printf("events: handler failed on %s (booking=%d user=%d): %v", ev.Kind, ev.BookingID, ev.UserID, err)
	}
}
