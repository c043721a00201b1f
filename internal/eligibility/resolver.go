// Package eligibility picks the credit a user should spend on an event or
// course.  Subscriptions win over blocks; within each kind the instrument
// expiring soonest is used first.
package eligibility

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Credit is the instrument chosen to pay for a booking.  At most one field
// is set.
type Credit struct {
	Block        *model.Block
	Subscription *model.Subscription
}

// Empty reports that no credit was found.
func (c Credit) Empty() bool { return c.Block == nil && c.Subscription == nil }

// Eligibility summarises what a user can do with one event.
type Eligibility struct {
	HasBlock        bool `json:"has_block"`
	HasSubscription bool `json:"has_subscription"`
	CanBookOrCancel bool `json:"can_book_or_cancel"`
}

// Target is an event together with its course, when it has one.
type Target struct {
	Event        model.Event
	Course       *model.Course
	CourseEvents []model.Event
}

// LoadTarget reads the event and, for course events, the course and its
// member events.
func LoadTarget(ctx context.Context, tx repository.Tx, eventID uint64) (*Target, error) {
	ev, err := tx.GetEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("get event %d: %w", eventID, err)
	}
	return TargetFor(ctx, tx, *ev)
}

// TargetFor builds the target for an event already read, e.g. under a row
// lock.
func TargetFor(ctx context.Context, tx repository.Tx, ev model.Event) (*Target, error) {
	t := &Target{Event: ev}
	if !ev.InCourse() {
		return t, nil
	}
	c, err := tx.GetCourse(ctx, *ev.CourseID)
	if err != nil {
		return nil, fmt.Errorf("get course %d: %w", *ev.CourseID, err)
	}
	events, err := tx.ListCourseEvents(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("list course events: %w", err)
	}
	t.Course, t.CourseEvents = c, events
	return t, nil
}

// Resolver selects credit for a user.
type Resolver struct {
	inv *credit.Inventory
}

// NewResolver returns a Resolver backed by the credit inventory.
func NewResolver(inv *credit.Inventory) *Resolver {
	return &Resolver{inv: inv}
}

// Subscription returns the valid subscription expiring soonest, ties broken
// by purchase date, or nil.
func (r *Resolver) Subscription(ctx context.Context, tx repository.Tx, userID uint64, t Target) (*model.Subscription, error) {
	subs, err := tx.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	sort.SliceStable(subs, func(i, j int) bool {
		return soonerFirst(subs[i].ExpiryDate, subs[j].ExpiryDate, subs[i].PurchaseDate, subs[j].PurchaseDate)
	})
	for i := range subs {
		ok, err := r.inv.SubscriptionValidForEvent(ctx, tx, subs[i], t.Event, t.Course)
		if err != nil {
			return nil, err
		}
		if ok {
			return &subs[i], nil
		}
	}
	return nil, nil
}

// DropInBlock returns the first valid drop-in block for the event.
func (r *Resolver) DropInBlock(ctx context.Context, tx repository.Tx, userID uint64, t Target) (*model.Block, error) {
	blocks, err := r.sortedBlocks(ctx, tx, userID, func(c model.BlockConfig) bool {
		return !c.Course && c.EventTypeID == t.Event.EventTypeID
	})
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		ok, err := r.inv.BlockValidForEvent(ctx, tx, blocks[i], t.Event, t.Course)
		if err != nil {
			return nil, err
		}
		if ok {
			return &blocks[i], nil
		}
	}
	return nil, nil
}

// CourseBlock returns the first course block valid for the whole course.
func (r *Resolver) CourseBlock(ctx context.Context, tx repository.Tx, userID uint64, course model.Course, events []model.Event) (*model.Block, error) {
	blocks, err := r.sortedBlocks(ctx, tx, userID, func(c model.BlockConfig) bool {
		return c.Course && c.EventTypeID == course.EventTypeID
	})
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		ok, err := r.inv.BlockValidForCourse(ctx, tx, blocks[i], course, events)
		if err != nil {
			return nil, err
		}
		if ok {
			return &blocks[i], nil
		}
	}
	return nil, nil
}

// Block returns the block to use for the event.  Course events try a course
// block first and fall back to drop-in blocks when the course allows it.
func (r *Resolver) Block(ctx context.Context, tx repository.Tx, userID uint64, t Target) (*model.Block, error) {
	if t.Course == nil {
		return r.DropInBlock(ctx, tx, userID, t)
	}
	b, err := r.CourseBlock(ctx, tx, userID, *t.Course, t.CourseEvents)
	if err != nil || b != nil {
		return b, err
	}
	if !t.Course.AllowDropIn {
		return nil, nil
	}
	return r.DropInBlock(ctx, tx, userID, t)
}

// Resolve picks the credit for a booking on the event: a subscription if
// one is valid, otherwise a block.
func (r *Resolver) Resolve(ctx context.Context, tx repository.Tx, userID uint64, t Target) (Credit, error) {
	s, err := r.Subscription(ctx, tx, userID, t)
	if err != nil {
		return Credit{}, err
	}
	if s != nil {
		return Credit{Subscription: s}, nil
	}
	b, err := r.Block(ctx, tx, userID, t)
	if err != nil {
		return Credit{}, err
	}
	return Credit{Block: b}, nil
}

// Evaluate answers the eligibility question for a user and event.
// CanBookOrCancel holds when the event is neither cancelled nor started and
// the user either already has an open booking or there is space left.
func (r *Resolver) Evaluate(ctx context.Context, tx repository.Tx, userID uint64, t Target) (Eligibility, error) {
	var out Eligibility
	s, err := r.Subscription(ctx, tx, userID, t)
	if err != nil {
		return out, err
	}
	b, err := r.Block(ctx, tx, userID, t)
	if err != nil {
		return out, err
	}
	out.HasSubscription, out.HasBlock = s != nil, b != nil

	if t.Event.Cancelled || t.Event.HasStarted(r.inv.Now()) {
		return out, nil
	}
	existing, err := tx.FindBooking(ctx, userID, t.Event.ID)
	if err != nil {
		return out, fmt.Errorf("find booking: %w", err)
	}
	if existing != nil && existing.IsActive() {
		out.CanBookOrCancel = true
		return out, nil
	}
	full, err := catalog.EventFull(ctx, tx, t.Event)
	if err != nil {
		return out, err
	}
	out.CanBookOrCancel = !full
	return out, nil
}

func (r *Resolver) sortedBlocks(ctx context.Context, tx repository.Tx, userID uint64, keep func(model.BlockConfig) bool) ([]model.Block, error) {
	all, err := tx.ListUserBlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	var blocks []model.Block
	for _, b := range all {
		if b.Config != nil && keep(*b.Config) {
			blocks = append(blocks, b)
		}
	}
	sort.SliceStable(blocks, func(i, j int) bool {
		return soonerFirst(blocks[i].ExpiryDate, blocks[j].ExpiryDate, blocks[i].PurchaseDate, blocks[j].PurchaseDate)
	})
	return blocks, nil
}

// soonerFirst orders by expiry ascending with unset expiries last, then by
// purchase date.
func soonerFirst(ea, eb *time.Time, pa, pb time.Time) bool {
	switch {
	case ea != nil && eb != nil && !ea.Equal(*eb):
		return ea.Before(*eb)
	case ea != nil && eb == nil:
		return true
	case ea == nil && eb != nil:
		return false
	}
	return pa.Before(pb)
}
