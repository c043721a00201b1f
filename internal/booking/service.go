// Package booking is the booking state machine.  Every operation validates,
// mutates and recomputes the affected credit windows inside one unit of
// work, then publishes the committed transitions to the event bus.
//
// A booking is OPEN, OPEN with the no-show flag set, or CANCELLED:
//
//	create   (none)              -> OPEN
//	reopen   CANCELLED | NO-SHOW -> OPEN        (rebooked timestamp set)
//	cancel   OPEN                -> CANCELLED   (inside the cancellation window)
//	cancel   OPEN                -> NO-SHOW     (course block, late, or type disallows cancelling)
package booking

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/eligibility"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// Service runs booking transitions.
type Service struct {
	store    repository.Store
	inv      *credit.Inventory
	resolver *eligibility.Resolver
	bus      *events.Bus
}

// NewService wires a Service.  bus may be nil.
func NewService(store repository.Store, inv *credit.Inventory, bus *events.Bus) *Service {
	return &Service{store: store, inv: inv, resolver: eligibility.NewResolver(inv), bus: bus}
}

// Options narrows a booking request.  ForUserID books on behalf of a
// managed account (zero means the caller); BlockID and SubscriptionID
// supply the credit explicitly instead of letting the resolver choose.
type Options struct {
	ForUserID      uint64
	BlockID        *uint64
	SubscriptionID *uint64
}

func (o Options) owner(uc *identity.UserContext) uint64 {
	if o.ForUserID != 0 {
		return o.ForUserID
	}
	return uc.UserID
}

// authorize checks that uc may act for userID and that userID has signed
// the current disclaimer.  It must run outside a unit of work because the
// disclaimer checker opens its own.
func (s *Service) authorize(ctx context.Context, uc *identity.UserContext, userID uint64) error {
	if uc == nil || !uc.CanActFor(userID) {
		return repository.ErrForbidden
	}
	ok, err := uc.HasActiveDisclaimer(ctx, userID, s.inv.Now())
	if err != nil {
		return fmt.Errorf("check disclaimer: %w", err)
	}
	if !ok {
		return model.ErrDisclaimerRequired
	}
	return nil
}

// touched collects the credit instruments whose windows must be
// recomputed once a transition has been written.
type touched struct {
	blocks []uint64
	subs   []uint64
}

func (t *touched) add(blockID, subID *uint64) {
	if blockID != nil && !containsID(t.blocks, *blockID) {
		t.blocks = append(t.blocks, *blockID)
	}
	if subID != nil && !containsID(t.subs, *subID) {
		t.subs = append(t.subs, *subID)
	}
}

func containsID(ids []uint64, id uint64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// recompute refreshes every touched window.  Instruments deleted in the
// same unit of work are skipped.
func (s *Service) recompute(ctx context.Context, tx repository.Tx, t touched) error {
	for _, id := range t.blocks {
		b, err := tx.GetBlock(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get block %d: %w", id, err)
		}
		if err := s.inv.RecomputeBlockWindow(ctx, tx, b); err != nil {
			return err
		}
	}
	for _, id := range t.subs {
		sub, err := tx.GetSubscription(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("get subscription %d: %w", id, err)
		}
		if err := s.inv.RecomputeSubscriptionWindow(ctx, tx, sub); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) event(kind events.Kind, actor uint64, bk model.Booking) events.Event {
	return events.Event{
		Kind:           kind,
		UserID:         bk.UserID,
		ActorID:        actor,
		EventID:        bk.EventID,
		BookingID:      bk.ID,
		BlockID:        bk.BlockID,
		SubscriptionID: bk.SubscriptionID,
		At:             s.inv.Now(),
	}
}

func actorID(uc *identity.UserContext) uint64 {
	if uc == nil {
		return 0
	}
	return uc.UserID
}

// GetEligibility reports which credit the user holds for the event and
// whether they can book or cancel it right now.
func (s *Service) GetEligibility(ctx context.Context, uc *identity.UserContext, eventID uint64, opts Options) (eligibility.Eligibility, error) {
	var out eligibility.Eligibility
	userID := opts.owner(uc)
	if !uc.CanActFor(userID) {
		return out, repository.ErrForbidden
	}
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		t, err := eligibility.LoadTarget(ctx, tx, eventID)
		if err != nil {
			return err
		}
		out, err = s.resolver.Evaluate(ctx, tx, userID, *t)
		return err
	})
	return out, err
}
