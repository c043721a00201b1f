package memstore

import (
	"context"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Seeder inserts fixture rows outside of any caller transaction.  Each call
// runs in its own unit of work and panics on failure, so it is only meant
// for tests and local demo data.
type Seeder struct {
	s *Store
}

// Seed returns a Seeder for the store.
func (s *Store) Seed() *Seeder { return &Seeder{s: s} }

func (sd *Seeder) run(what string, fn func(tx repository.Tx) error) {
	if err := sd.s.WithinTx(context.Background(), fn); err != nil {
		panic(fmt.Sprintf("memstore: seed %s: %v", what, err))
	}
}

// EventType inserts an event type.
func (sd *Seeder) EventType(et model.EventType) model.EventType {
	sd.run("event type", func(tx repository.Tx) error { return tx.CreateEventType(context.Background(), &et) })
	return et
}

// Event inserts an event.
func (sd *Seeder) Event(e model.Event) model.Event {
	sd.run("event", func(tx repository.Tx) error { return tx.CreateEvent(context.Background(), &e) })
	return e
}

// Course inserts a course.
func (sd *Seeder) Course(c model.Course) model.Course {
	sd.run("course", func(tx repository.Tx) error { return tx.CreateCourse(context.Background(), &c) })
	return c
}

// BlockConfig inserts a block config.
func (sd *Seeder) BlockConfig(c model.BlockConfig) model.BlockConfig {
	sd.run("block config", func(tx repository.Tx) error { return tx.CreateBlockConfig(context.Background(), &c) })
	return c
}

// Block inserts a block; the returned copy carries its Config.
func (sd *Seeder) Block(b model.Block) model.Block {
	sd.run("block", func(tx repository.Tx) error { return tx.CreateBlock(context.Background(), &b) })
	return b
}

// SubscriptionConfig inserts a subscription config.
func (sd *Seeder) SubscriptionConfig(c model.SubscriptionConfig) model.SubscriptionConfig {
	sd.run("subscription config", func(tx repository.Tx) error {
		return tx.CreateSubscriptionConfig(context.Background(), &c)
	})
	return c
}

// Subscription inserts a subscription; the returned copy carries its Config.
func (sd *Seeder) Subscription(s model.Subscription) model.Subscription {
	sd.run("subscription", func(tx repository.Tx) error { return tx.CreateSubscription(context.Background(), &s) })
	return s
}

// Booking inserts a booking as is, without capacity or credit checks.
func (sd *Seeder) Booking(b model.Booking) model.Booking {
	if b.Status == "" {
		b.Status = model.BookingOpen
	}
	sd.run("booking", func(tx repository.Tx) error { return tx.CreateBooking(context.Background(), &b) })
	return b
}

// Voucher inserts a voucher.
func (sd *Seeder) Voucher(v model.Voucher) model.Voucher {
	sd.run("voucher", func(tx repository.Tx) error { return tx.CreateVoucher(context.Background(), &v) })
	return v
}

// DisclaimerContent inserts a disclaimer content version.
func (sd *Seeder) DisclaimerContent(c model.DisclaimerContentRow) model.DisclaimerContentRow {
	sd.run("disclaimer content", func(tx repository.Tx) error {
		return tx.CreateDisclaimerContent(context.Background(), &c)
	})
	return c
}

// Disclaimer inserts a signed disclaimer.
func (sd *Seeder) Disclaimer(d model.OnlineDisclaimer) model.OnlineDisclaimer {
	sd.run("disclaimer", func(tx repository.Tx) error { return tx.CreateDisclaimer(context.Background(), &d) })
	return d
}
