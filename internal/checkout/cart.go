// Package checkout owns the cart: adding blocks and subscriptions, pricing
// them with their vouchers, raising invoices and recording payment.
package checkout

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/period"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Service runs cart and payment operations.
type Service struct {
	store repository.Store
	inv   *credit.Inventory
	bus   *events.Bus
}

// NewService wires a Service.  bus may be nil.
func NewService(store repository.Store, inv *credit.Inventory, bus *events.Bus) *Service {
	return &Service{store: store, inv: inv, bus: bus}
}

// AddBlock puts an unpaid block of the config into the user's cart.
func (s *Service) AddBlock(ctx context.Context, uc *identity.UserContext, userID, configID uint64) (*model.Block, error) {
	if !uc.CanActFor(userID) {
		return nil, repository.ErrForbidden
	}
	now := s.inv.Now()
	var b model.Block
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		cfg, err := tx.GetBlockConfig(ctx, configID)
		if err != nil {
			return fmt.Errorf("block config %d: %w", configID, err)
		}
		if !cfg.Active {
			return fmt.Errorf("block config %d not for sale: %w", configID, model.ErrInvalidConfig)
		}
		b = model.Block{UserID: userID, BlockConfigID: cfg.ID, PurchaseDate: now, TimeChecked: &now}
		if err := tx.CreateBlock(ctx, &b); err != nil {
			return fmt.Errorf("create block: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("checkout: block %d (config %d) added to cart of user %d", b.ID, configID, userID)
	return &b, nil
}

// StartOptions lists the start dates the user may currently buy the
// subscription config for.  A nil entry means "from the first booking".
func (s *Service) StartOptions(ctx context.Context, uc *identity.UserContext, userID, configID uint64) ([]*time.Time, error) {
	if !uc.CanActFor(userID) {
		return nil, repository.ErrForbidden
	}
	var out []*time.Time
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		cfg, held, err := loadSubscriptionConfig(ctx, tx, userID, configID)
		if err != nil {
			return err
		}
		out = period.StartOptionsForUser(*cfg, held, s.inv.Now())
		return nil
	})
	return out, err
}

// AddSubscription puts an unpaid subscription into the user's cart.  start
// must be one of StartOptions; nil picks the first option.
func (s *Service) AddSubscription(ctx context.Context, uc *identity.UserContext, userID, configID uint64, start *time.Time) (*model.Subscription, error) {
	if !uc.CanActFor(userID) {
		return nil, repository.ErrForbidden
	}
	now := s.inv.Now()
	var sub model.Subscription
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		cfg, held, err := loadSubscriptionConfig(ctx, tx, userID, configID)
		if err != nil {
			return err
		}
		if !period.IsPurchaseable(*cfg, now) {
			return fmt.Errorf("subscription config %d not for sale: %w", configID, model.ErrInvalidConfig)
		}
		options := period.StartOptionsForUser(*cfg, held, now)
		if len(options) == 0 {
			return fmt.Errorf("no purchasable period for config %d: %w", configID, model.ErrInvalidConfig)
		}
		chosen, ok := pickOption(options, start)
		if !ok {
			return fmt.Errorf("start date not offered: %w", model.ErrInvalidConfig)
		}
		sub = model.Subscription{
			UserID:       userID,
			ConfigID:     cfg.ID,
			Status:       model.SubscriptionPending,
			PurchaseDate: now,
			StartDate:    chosen,
			ExpiryDate:   credit.SubscriptionExpiry(chosen, *cfg),
			TimeChecked:  &now,
		}
		if err := tx.CreateSubscription(ctx, &sub); err != nil {
			return fmt.Errorf("create subscription: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("checkout: subscription %d (config %d) added to cart of user %d", sub.ID, configID, userID)
	return &sub, nil
}

func loadSubscriptionConfig(ctx context.Context, tx repository.Tx, userID, configID uint64) (*model.SubscriptionConfig, []model.Subscription, error) {
	cfg, err := tx.GetSubscriptionConfig(ctx, configID)
	if err != nil {
		return nil, nil, fmt.Errorf("subscription config %d: %w", configID, err)
	}
	all, err := tx.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("list subscriptions: %w", err)
	}
	var held []model.Subscription
	for _, s := range all {
		if s.ConfigID == configID && s.Status != model.SubscriptionCancelled {
			held = append(held, s)
		}
	}
	return cfg, held, nil
}

func pickOption(options []*time.Time, want *time.Time) (*time.Time, bool) {
	if want == nil {
		return options[0], true
	}
	for _, o := range options {
		if o != nil && o.Equal(*want) {
			return o, true
		}
	}
	return nil, false
}
