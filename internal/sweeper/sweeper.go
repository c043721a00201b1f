// Package sweeper holds the periodic jobs: releasing abandoned cart items
// and putting renewals of expiring subscriptions into their owners' carts.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/period"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Config tunes the jobs.
type Config struct {
	CartTimeout    time.Duration
	CartCheckGrace time.Duration
	RenewalWindow  time.Duration
	// ThrottleTTL skips a general cleanup when another ran this recently.
	// Zero disables throttling.
	ThrottleTTL time.Duration
	Prefix      string
}

// Sweeper runs the jobs against a store.
type Sweeper struct {
	store    repository.Store
	inv      *credit.Inventory
	bookings *booking.Service
	bus      *events.Bus
	rdb      *redis.Client
	cfg      Config
}

// New returns a Sweeper.  rdb and bus may be nil.
func New(store repository.Store, inv *credit.Inventory, bookings *booking.Service, bus *events.Bus, rdb *redis.Client, cfg Config) *Sweeper {
	if cfg.Prefix == "" {
		cfg.Prefix = "sweeper"
	}
	return &Sweeper{store: store, inv: inv, bookings: bookings, bus: bus, rdb: rdb, cfg: cfg}
}

// CleanupResult counts what a cleanup released.
type CleanupResult struct {
	Blocks        []uint64
	Subscriptions []uint64
	Throttled     bool
}

// CleanupExpiredCarts releases unpaid blocks and subscriptions created
// more than CartTimeout ago.  Bookings waiting on them are cancelled.
//
// With userID set the user is at checkout and all of their stale items go.
// A general sweep spares items whose cart was viewed within CartCheckGrace,
// since they may be in the middle of payment.  Items checked until a
// future instant (held renewal offers) are never swept.
func (s *Sweeper) CleanupExpiredCarts(ctx context.Context, userID *uint64) (CleanupResult, error) {
	var res CleanupResult
	if userID == nil && s.throttled(ctx) {
		res.Throttled = true
		return res, nil
	}
	now := s.inv.Now()
	cutoff := now.Add(-s.cfg.CartTimeout)
	keep := func(checked *time.Time) bool {
		if checked == nil {
			return false
		}
		if checked.After(now) {
			return true
		}
		return userID == nil && checked.After(now.Add(-s.cfg.CartCheckGrace))
	}

	var blockIDs, subIDs []uint64
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		blocks, err := tx.ListUnpaidBlocks(ctx, cutoff, userID)
		if err != nil {
			return fmt.Errorf("list unpaid blocks: %w", err)
		}
		for _, b := range blocks {
			if !keep(b.TimeChecked) {
				blockIDs = append(blockIDs, b.ID)
			}
		}
		subs, err := tx.ListUnpaidSubscriptions(ctx, cutoff, userID)
		if err != nil {
			return fmt.Errorf("list unpaid subscriptions: %w", err)
		}
		for _, sub := range subs {
			if !keep(sub.TimeChecked) {
				subIDs = append(subIDs, sub.ID)
			}
		}
		return nil
	})
	if err != nil {
		return res, err
	}

	for _, id := range blockIDs {
		if err := s.bookings.ReleaseUnpaidBlock(ctx, nil, id); err != nil {
			if skippable(err) {
				continue
			}
			return res, err
		}
		res.Blocks = append(res.Blocks, id)
	}
	for _, id := range subIDs {
		if err := s.bookings.ReleaseUnpaidSubscription(ctx, nil, id); err != nil {
			if skippable(err) {
				continue
			}
			return res, err
		}
		res.Subscriptions = append(res.Subscriptions, id)
	}

	if len(res.Blocks)+len(res.Subscriptions) > 0 {
		msg := fmt.Sprintf("%d unpaid blocks (ids %s) and %d unpaid subscriptions (ids %s) expired and were deleted",
			len(res.Blocks), joinIDs(res.Blocks), len(res.Subscriptions), joinIDs(res.Subscriptions))
		if userID != nil {
			msg += fmt.Sprintf(" for user %d", *userID)
		}
		log.Printf("sweeper: %s", msg)
		s.activity(ctx, msg, now)
	}
	return res, nil
}

// skippable reports a race with payment or another sweep.
func skippable(err error) bool {
	return errors.Is(err, repository.ErrNotFound) || errors.Is(err, model.ErrInvalidStateTransition)
}

func (s *Sweeper) throttled(ctx context.Context) bool {
	if s.rdb == nil || s.cfg.ThrottleTTL <= 0 {
		return false
	}
	ok, err := s.rdb.SetNX(ctx, s.cfg.Prefix+":carts_cleaned", 1, s.cfg.ThrottleTTL).Result()
	if err != nil {
		log.Printf("sweeper: throttle check failed: %v", err)
		return false
	}
	return !ok
}

// RenewSubscriptions finds paid, active subscriptions of recurring configs
// that expire within RenewalWindow and have had no reminder yet.  Each gets
// an unpaid successor in its owner's cart, starting at the last offered
// start date, unless one already exists.  The original is marked as
// reminded either way.  Returns the subscriptions a successor was created
// for.
func (s *Sweeper) RenewSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	now := s.inv.Now()
	var (
		renewed []model.Subscription
		pub     []events.Event
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		due, err := tx.ListRenewableSubscriptions(ctx)
		if err != nil {
			return fmt.Errorf("list renewable subscriptions: %w", err)
		}
		for i := range due {
			sub := due[i]
			if sub.Config == nil || !sub.Config.Active || !period.ExpiresSoon(sub, now, s.cfg.RenewalWindow) {
				continue
			}
			created, err := s.renew(ctx, tx, sub, now)
			if err != nil {
				return err
			}
			if created != nil {
				renewed = append(renewed, sub)
				pub = append(pub, events.Event{
					Kind:           events.SubscriptionRenewalDue,
					UserID:         sub.UserID,
					SubscriptionID: &created.ID,
					At:             now,
				})
			}
			sub.ReminderSent = true
			if err := tx.SaveSubscription(ctx, &sub); err != nil {
				return fmt.Errorf("save subscription %d: %w", sub.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(renewed) > 0 {
		users := make([]string, 0, len(renewed))
		for _, r := range renewed {
			users = append(users, fmt.Sprint(r.UserID))
		}
		msg := "Subscription reminders sent to users " + strings.Join(users, ", ")
		log.Printf("sweeper: %s", msg)
		s.activity(ctx, msg, now)
	}
	s.bus.Publish(ctx, pub...)
	return renewed, nil
}

func (s *Sweeper) renew(ctx context.Context, tx repository.Tx, sub model.Subscription, now time.Time) (*model.Subscription, error) {
	all, err := tx.ListUserSubscriptions(ctx, sub.UserID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	var held []model.Subscription
	for _, h := range all {
		if h.ConfigID == sub.ConfigID && h.Status != model.SubscriptionCancelled {
			held = append(held, h)
		}
	}
	options := period.StartOptionsForUser(*sub.Config, held, now)
	if len(options) == 0 {
		return nil, nil
	}
	start := options[len(options)-1]
	for _, h := range held {
		if sameStart(h.StartDate, start) && h.ID != sub.ID {
			return nil, nil
		}
	}
	next := model.Subscription{
		UserID:       sub.UserID,
		ConfigID:     sub.ConfigID,
		Status:       model.SubscriptionPending,
		PurchaseDate: now,
		StartDate:    start,
		ExpiryDate:   credit.SubscriptionExpiry(start, *sub.Config),
		TimeChecked:  sub.ExpiryDate,
	}
	if err := tx.CreateSubscription(ctx, &next); err != nil {
		return nil, fmt.Errorf("create renewal: %w", err)
	}
	return &next, nil
}

func sameStart(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (s *Sweeper) activity(ctx context.Context, msg string, now time.Time) {
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		return tx.AppendActivityLog(ctx, &model.ActivityLog{Log: msg, CreatedAt: now})
	})
	if err != nil {
		log.Printf("sweeper: activity log failed: %v", err)
	}
}

func joinIDs(ids []uint64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ",")
}

// RunOnce performs one general cart cleanup followed by one renewal pass.
// A failing cleanup does not skip renewals.
func (s *Sweeper) RunOnce(ctx context.Context) error {
	var errs []error
	if _, err := s.CleanupExpiredCarts(ctx, nil); err != nil {
		errs = append(errs, fmt.Errorf("cleanup carts: %w", err))
	}
	if _, err := s.RenewSubscriptions(ctx); err != nil {
		errs = append(errs, fmt.Errorf("renew subscriptions: %w", err))
	}
	return errors.Join(errs...)
}

// Run calls RunOnce every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			log.Printf("sweeper: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
