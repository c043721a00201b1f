package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/period"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

// BlockLine is one cart block with its price.
type BlockLine struct {
	Block       model.Block     `json:"-"`
	BlockID     uint64          `json:"block_id"`
	Name        string          `json:"name"`
	Cost        decimal.Decimal `json:"cost"`
	VoucherCode string          `json:"voucher_code,omitempty"`
	Discounted  decimal.Decimal `json:"discounted_cost"`
}

// SubscriptionLine is one cart subscription with its price.
type SubscriptionLine struct {
	Subscription   model.Subscription `json:"-"`
	SubscriptionID uint64             `json:"subscription_id"`
	Name           string             `json:"name"`
	StartDate      *time.Time         `json:"start_date,omitempty"`
	Cost           decimal.Decimal    `json:"cost"`
}

// Summary prices a user's cart.
type Summary struct {
	UserID            uint64             `json:"user_id"`
	Blocks            []BlockLine        `json:"blocks"`
	Subscriptions     []SubscriptionLine `json:"subscriptions"`
	Subtotal          decimal.Decimal    `json:"subtotal"`
	TotalVoucherCode  string             `json:"total_voucher_code,omitempty"`
	TotalVoucherError string             `json:"total_voucher_error,omitempty"`
	Total             decimal.Decimal    `json:"total"`
}

// Empty reports a cart with nothing to pay for.
func (s Summary) Empty() bool { return len(s.Blocks) == 0 && len(s.Subscriptions) == 0 }

// Summarize prices the user's cart.  Vouchers already applied to blocks are
// validated again; one that no longer holds is detached and logged rather
// than failing the checkout.  totalCode optionally names a total voucher;
// when it is invalid the reason is reported and the total is undiscounted.
func (s *Service) Summarize(ctx context.Context, uc *identity.UserContext, userID uint64, totalCode string) (*Summary, error) {
	if !uc.CanActFor(userID) {
		return nil, repository.ErrForbidden
	}
	var out *Summary
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = s.summarize(ctx, tx, userID, totalCode, s.inv.Now())
		return err
	})
	return out, err
}

func (s *Service) summarize(ctx context.Context, tx repository.Tx, userID uint64, totalCode string, now time.Time) (*Summary, error) {
	sum := &Summary{UserID: userID, Blocks: []BlockLine{}, Subscriptions: []SubscriptionLine{}}

	blocks, err := tx.ListUserBlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	var cart []model.Block
	for _, b := range blocks {
		if !b.Paid {
			cart = append(cart, b)
		}
	}
	for i := range cart {
		b := &cart[i]
		v, err := s.verifyBlockVoucher(ctx, tx, b, cart, now)
		if err != nil {
			return nil, err
		}
		b.TimeChecked = &now
		if err := tx.SaveBlock(ctx, b); err != nil {
			return nil, fmt.Errorf("save block %d: %w", b.ID, err)
		}
		line := BlockLine{Block: *b, BlockID: b.ID}
		if b.Config != nil {
			line.Name, line.Cost = b.Config.Name, b.Config.Cost
		}
		line.Discounted = credit.CostWithVoucher(line.Cost, v)
		if v != nil {
			line.VoucherCode = v.Code
		}
		sum.Blocks = append(sum.Blocks, line)
		sum.Subtotal = sum.Subtotal.Add(line.Discounted)
	}

	subs, err := tx.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	for i := range subs {
		sub := subs[i]
		if sub.Paid || sub.Config == nil {
			continue
		}
		sub.TimeChecked = &now
		if err := tx.SaveSubscription(ctx, &sub); err != nil {
			return nil, fmt.Errorf("save subscription %d: %w", sub.ID, err)
		}
		cost := sub.Config.Cost
		if sub.StartDate == nil || !sub.StartDate.After(now) {
			cost = period.PartialCost(*sub.Config, now)
		}
		sum.Subscriptions = append(sum.Subscriptions, SubscriptionLine{
			Subscription:   sub,
			SubscriptionID: sub.ID,
			Name:           sub.Config.Name,
			StartDate:      sub.StartDate,
			Cost:           cost,
		})
		sum.Subtotal = sum.Subtotal.Add(cost)
	}

	sum.Total = sum.Subtotal
	if code := strings.TrimSpace(totalCode); code != "" {
		tv, err := s.totalVoucher(ctx, tx, code, userID, now)
		if err != nil {
			sum.TotalVoucherError = err.Error()
		} else {
			sum.TotalVoucherCode = tv.Code
			sum.Total = credit.CostWithVoucher(sum.Subtotal, tv)
		}
	}
	return sum, nil
}

// verifyBlockVoucher returns the block's voucher when it is still valid
// and detaches it otherwise.
func (s *Service) verifyBlockVoucher(ctx context.Context, tx repository.Tx, b *model.Block, cart []model.Block, now time.Time) (*model.Voucher, error) {
	if b.VoucherID == nil {
		return nil, nil
	}
	v, err := tx.GetVoucher(ctx, *b.VoucherID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("voucher %d: %w", *b.VoucherID, err)
	}
	if v != nil {
		err = voucher.Validate(ctx, tx, *v, b.UserID, now)
		if err == nil {
			err = voucher.ValidateForUnpaidBlock(ctx, tx, *v, *b, now)
		}
		if err == nil {
			err = voucher.ValidateForCart(*v, cart)
		}
		if err == nil {
			return v, nil
		}
	}
	log.Printf("checkout: voucher %d on block %d (user %d) no longer valid, removed: %v", *b.VoucherID, b.ID, b.UserID, err)
	b.VoucherID = nil
	return nil, nil
}

func (s *Service) totalVoucher(ctx context.Context, tx repository.Tx, code string, userID uint64, now time.Time) (*model.Voucher, error) {
	v, err := tx.GetVoucherByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("voucher %q: %w", code, err)
	}
	if err := voucher.ValidateTotalVoucher(ctx, tx, *v, userID, now); err != nil {
		return nil, err
	}
	return v, nil
}
