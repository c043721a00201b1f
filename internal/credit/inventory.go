// Package credit is the credit inventory: it derives and persists the
// validity windows of blocks and subscriptions and answers whether one of
// them may pay for a given event or course.
package credit

import (
	"time"
)

// Inventory evaluates credit rules.  loc is the studio's local zone, used
// only to find the end of a calendar day for block expiry.
type Inventory struct {
	loc *time.Location
	now func() time.Time
}

// Option configures an Inventory.
type Option func(*Inventory)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(inv *Inventory) { inv.now = now }
}

// NewInventory returns an Inventory for the given studio zone.
func NewInventory(loc *time.Location, opts ...Option) *Inventory {
	if loc == nil {
		loc = time.UTC
	}
	inv := &Inventory{loc: loc, now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(inv)
	}
	return inv
}

// Now returns the inventory clock's current instant.
func (inv *Inventory) Now() time.Time { return inv.now() }

// Location returns the studio zone.
func (inv *Inventory) Location() *time.Location { return inv.loc }
