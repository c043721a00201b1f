// Package voucher validates and applies discount codes.  Block vouchers
// discount individual cart blocks and are counted against the blocks that
// carry them; total vouchers discount a whole checkout and are counted
// against paid invoices.
package voucher

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

func boolPtr(b bool) *bool { return &b }

// CheckProperties validates the parts of a voucher that do not depend on
// who uses it: expiry, activation, start date and the global cap counted
// on paid uses only.
func CheckProperties(ctx context.Context, tx repository.Tx, v model.Voucher, now time.Time) error {
	switch {
	case v.HasExpired(now):
		return model.ErrVoucherExpired
	case !v.Activated:
		return model.ErrVoucherNotActivated
	case !v.HasStarted(now):
		return fmt.Errorf("%w: valid from %s", model.ErrVoucherNotStarted, v.StartDate.Format("02 Jan 06"))
	}
	if v.MaxVouchers == nil {
		return nil
	}
	if v.Scope == model.VoucherTotal {
		used, err := tx.CountVoucherInvoices(ctx, v.Code, nil)
		if err != nil {
			return fmt.Errorf("count voucher invoices: %w", err)
		}
		if used >= *v.MaxVouchers {
			return model.ErrVoucherExhausted
		}
		return nil
	}
	used, err := tx.CountVoucherBlocks(ctx, v.ID, repository.VoucherUseFilter{Paid: boolPtr(true)})
	if err != nil {
		return fmt.Errorf("count voucher blocks: %w", err)
	}
	if used >= *v.MaxVouchers*v.Items() {
		return model.ErrVoucherExhausted
	}
	return nil
}

// Validate checks a block voucher for a user: its properties, then the
// per-user cap counted on the user's paid blocks.
func Validate(ctx context.Context, tx repository.Tx, v model.Voucher, userID uint64, now time.Time) error {
	if err := CheckProperties(ctx, tx, v, now); err != nil {
		return err
	}
	if v.MaxPerUser == nil {
		return nil
	}
	used, err := tx.CountVoucherBlocks(ctx, v.ID, repository.VoucherUseFilter{Paid: boolPtr(true), UserID: &userID})
	if err != nil {
		return fmt.Errorf("count voucher blocks: %w", err)
	}
	if used >= *v.MaxPerUser {
		return model.ErrVoucherExhausted
	}
	return nil
}

// ValidateForUnpaidBlock checks that the voucher may still sit on one
// unpaid block.  Uses are counted on paid blocks plus the owner's cart,
// excluding the block itself, against the caps scaled by ItemCount.
func ValidateForUnpaidBlock(ctx context.Context, tx repository.Tx, v model.Voucher, b model.Block, now time.Time) error {
	if err := CheckProperties(ctx, tx, v, now); err != nil {
		return err
	}
	if !v.CheckBlockConfig(b.BlockConfigID) {
		return model.ErrVoucherNotApplicable
	}
	if v.MaxVouchers != nil {
		paid, err := tx.CountVoucherBlocks(ctx, v.ID, repository.VoucherUseFilter{Paid: boolPtr(true), ExcludeBlockID: &b.ID})
		if err != nil {
			return fmt.Errorf("count voucher blocks: %w", err)
		}
		cart, err := tx.CountVoucherBlocks(ctx, v.ID, repository.VoucherUseFilter{Paid: boolPtr(false), UserID: &b.UserID, ExcludeBlockID: &b.ID})
		if err != nil {
			return fmt.Errorf("count voucher blocks: %w", err)
		}
		if paid+cart >= *v.MaxVouchers*v.Items() {
			return model.ErrVoucherExhausted
		}
	}
	if v.MaxPerUser != nil {
		mine, err := tx.CountVoucherBlocks(ctx, v.ID, repository.VoucherUseFilter{UserID: &b.UserID, ExcludeBlockID: &b.ID})
		if err != nil {
			return fmt.Errorf("count voucher blocks: %w", err)
		}
		if mine >= *v.MaxPerUser*v.Items() {
			return model.ErrVoucherExhausted
		}
	}
	return nil
}

// ValidateForCart checks that enough cart blocks are eligible.  Vouchers
// with an item count need at least that many.
func ValidateForCart(v model.Voucher, cart []model.Block) error {
	n := len(eligible(v, cart))
	if n == 0 || n < v.Items() {
		return model.ErrVoucherNotApplicable
	}
	return nil
}

// ValidateTotalVoucher checks a total voucher for a user at checkout; the
// per-user cap is counted on the user's paid invoices.
func ValidateTotalVoucher(ctx context.Context, tx repository.Tx, v model.Voucher, userID uint64, now time.Time) error {
	if v.Scope != model.VoucherTotal {
		return model.ErrVoucherNotApplicable
	}
	if err := CheckProperties(ctx, tx, v, now); err != nil {
		return err
	}
	if v.MaxPerUser == nil {
		return nil
	}
	used, err := tx.CountVoucherInvoices(ctx, v.Code, &userID)
	if err != nil {
		return fmt.Errorf("count voucher invoices: %w", err)
	}
	if used >= *v.MaxPerUser {
		return model.ErrVoucherExhausted
	}
	return nil
}

func eligible(v model.Voucher, cart []model.Block) []model.Block {
	var out []model.Block
	for _, b := range cart {
		if !b.Paid && v.CheckBlockConfig(b.BlockConfigID) {
			out = append(out, b)
		}
	}
	return out
}
