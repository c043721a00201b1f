package checkout

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

// ErrEmptyCart is returned when an invoice would have nothing on it.
var ErrEmptyCart = fmt.Errorf("cart is empty: %w", model.ErrInvalidConfig)

// CreateInvoice prices the cart and records an unpaid invoice for it.  The
// payment gateway later calls MarkInvoicePaid with the invoice reference.
func (s *Service) CreateInvoice(ctx context.Context, uc *identity.UserContext, userID uint64, totalCode string) (*model.Invoice, *Summary, error) {
	if !uc.CanActFor(userID) {
		return nil, nil, repository.ErrForbidden
	}
	var (
		inv model.Invoice
		sum *Summary
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		sum, err = s.summarize(ctx, tx, userID, totalCode, s.inv.Now())
		if err != nil {
			return err
		}
		if sum.Empty() {
			return ErrEmptyCart
		}
		inv = model.Invoice{
			InvoiceRef:  uuid.NewString(),
			UserID:      userID,
			Amount:      sum.Total,
			DateCreated: s.inv.Now(),
		}
		if sum.TotalVoucherCode != "" {
			code := sum.TotalVoucherCode
			inv.TotalVoucherCode = &code
		}
		for _, l := range sum.Blocks {
			inv.BlockIDs = append(inv.BlockIDs, l.BlockID)
		}
		for _, l := range sum.Subscriptions {
			inv.SubscriptionIDs = append(inv.SubscriptionIDs, l.SubscriptionID)
		}
		if err := tx.CreateInvoice(ctx, &inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	log.Printf("checkout: invoice %s for user %d, amount %s", inv.InvoiceRef, userID, inv.Amount.StringFixed(2))
	return &inv, sum, nil
}

// CreateGiftInvoice records an unpaid invoice for a purchased gift voucher.
// Block gifts cost the block config's price; amount gifts cost their face
// value.
func (s *Service) CreateGiftInvoice(ctx context.Context, userID, giftID uint64) (*model.Invoice, error) {
	var inv model.Invoice
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		gift, err := tx.GetGiftVoucher(ctx, giftID)
		if err != nil {
			return fmt.Errorf("gift voucher %d: %w", giftID, err)
		}
		cfg, err := tx.GetGiftVoucherConfig(ctx, gift.ConfigID)
		if err != nil {
			return fmt.Errorf("gift voucher config %d: %w", gift.ConfigID, err)
		}
		amount := decimal.Zero
		switch {
		case cfg.BlockConfigID != nil:
			bc, err := tx.GetBlockConfig(ctx, *cfg.BlockConfigID)
			if err != nil {
				return fmt.Errorf("block config %d: %w", *cfg.BlockConfigID, err)
			}
			amount = bc.Cost
		case cfg.DiscountAmount.Valid:
			amount = cfg.DiscountAmount.Decimal
		}
		inv = model.Invoice{
			InvoiceRef:     uuid.NewString(),
			UserID:         userID,
			Amount:         amount,
			GiftVoucherIDs: []uint64{gift.ID},
			DateCreated:    s.inv.Now(),
		}
		if err := tx.CreateInvoice(ctx, &inv); err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// MarkInvoicePaid is the payment entry point: the invoice and everything on
// it are marked paid in one unit of work.  Paying twice is a no-op.
func (s *Service) MarkInvoicePaid(ctx context.Context, ref string) (*model.Invoice, error) {
	now := s.inv.Now()
	var (
		inv  *model.Invoice
		pub  []events.Event
		done bool
	)
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		inv, err = tx.GetInvoiceByRef(ctx, ref)
		if err != nil {
			return fmt.Errorf("invoice %s: %w", ref, err)
		}
		if inv.Paid {
			done = true
			return nil
		}
		for _, id := range inv.BlockIDs {
			b, err := tx.GetBlock(ctx, id)
			if err != nil {
				return fmt.Errorf("block %d: %w", id, err)
			}
			if err := s.inv.MarkBlockPaid(ctx, tx, b); err != nil {
				return err
			}
			pub = append(pub, events.Event{Kind: events.CreditChanged, UserID: b.UserID, BlockID: &b.ID, At: now})
		}
		for _, id := range inv.SubscriptionIDs {
			sub, err := tx.GetSubscription(ctx, id)
			if err != nil {
				return fmt.Errorf("subscription %d: %w", id, err)
			}
			if err := s.inv.MarkSubscriptionPaid(ctx, tx, sub); err != nil {
				return err
			}
			pub = append(pub, events.Event{Kind: events.CreditChanged, UserID: sub.UserID, SubscriptionID: &sub.ID, At: now})
		}
		for _, id := range inv.GiftVoucherIDs {
			if _, err := voucher.ActivateGiftTx(ctx, tx, id, now); err != nil {
				return err
			}
		}
		inv.Paid = true
		inv.DatePaid = &now
		if err := tx.SaveInvoice(ctx, inv); err != nil {
			return fmt.Errorf("save invoice: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !done {
		log.Printf("checkout: invoice %s paid (%d blocks, %d subscriptions, %d gifts)", ref, len(inv.BlockIDs), len(inv.SubscriptionIDs), len(inv.GiftVoucherIDs))
		s.bus.Publish(ctx, pub...)
	}
	return inv, nil
}
