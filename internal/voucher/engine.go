package voucher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

const (
	codeLength   = 12
	codeAttempts = 10
)

// Engine runs voucher operations in their own units of work.
type Engine struct {
	store repository.Store
	now   func() time.Time
}

// NewEngine returns an Engine.  now may be nil.
func NewEngine(store repository.Store, now func() time.Time) *Engine {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: store, now: now}
}

// ApplyVoucher validates a block voucher for the user and sets it on the
// eligible unpaid blocks of their cart.  cartBlockIDs narrows the cart;
// empty means every unpaid block.  Only a reference is stored: checkout
// validates again.  Returns the ids of the blocks the voucher was set on.
func (e *Engine) ApplyVoucher(ctx context.Context, uc *identity.UserContext, code string, cartBlockIDs []uint64) ([]uint64, error) {
	now := e.now()
	var applied []uint64
	err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
		v, err := tx.GetVoucherByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			return fmt.Errorf("voucher %q: %w", code, err)
		}
		if v.Scope == model.VoucherTotal {
			return model.ErrVoucherNotApplicable
		}
		if err := Validate(ctx, tx, *v, uc.UserID, now); err != nil {
			return err
		}
		cart, err := cartBlocks(ctx, tx, uc.UserID, cartBlockIDs)
		if err != nil {
			return err
		}
		if err := ValidateForCart(*v, cart); err != nil {
			return err
		}
		candidates := eligible(*v, cart)
		candidates = candidates[:len(candidates)/v.Items()*v.Items()]

		var firstErr error
		for i := range candidates {
			b := candidates[i]
			if b.VoucherID != nil && *b.VoucherID == v.ID {
				applied = append(applied, b.ID)
				continue
			}
			if err := ValidateForUnpaidBlock(ctx, tx, *v, b, now); err != nil {
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			b.VoucherID = &v.ID
			if err := tx.SaveBlock(ctx, &b); err != nil {
				return fmt.Errorf("save block %d: %w", b.ID, err)
			}
			applied = append(applied, b.ID)
		}
		if len(applied) == 0 {
			if firstErr != nil {
				return firstErr
			}
			return model.ErrVoucherNotApplicable
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("voucher: %s applied to %d blocks for user %d", code, len(applied), uc.UserID)
	return applied, nil
}

func cartBlocks(ctx context.Context, tx repository.Tx, userID uint64, ids []uint64) ([]model.Block, error) {
	all, err := tx.ListUserBlocks(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	var out []model.Block
	for _, b := range all {
		if b.Paid {
			continue
		}
		if len(ids) > 0 && !contains(ids, b.ID) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func contains(ids []uint64, id uint64) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

// GenerateCode returns an unused 12 character code derived from a UUID.
func GenerateCode(ctx context.Context, tx repository.Tx) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:codeLength]
		exists, err := tx.VoucherCodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check voucher code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
	return "", fmt.Errorf("voucher: no free code after %d attempts", codeAttempts)
}

// Normalize moves the start date to the beginning of its UTC day and the
// expiry to the end of its UTC day, then checks the discount.
func Normalize(v *model.Voucher) error {
	v.StartDate = studiotime.StartOfDayUTC(v.StartDate)
	if v.ExpiryDate != nil {
		e := studiotime.EndOfDayUTC(*v.ExpiryDate)
		v.ExpiryDate = &e
	}
	if v.ItemCount < 1 {
		v.ItemCount = 1
	}
	if v.Scope == "" {
		v.Scope = model.VoucherBlock
	}
	if err := v.ValidateDiscount(); err != nil {
		return err
	}
	if v.Scope == model.VoucherBlock && len(v.BlockConfigIDs) == 0 && !v.IsGift {
		return fmt.Errorf("block voucher without block configs: %w", model.ErrInvalidConfig)
	}
	return nil
}

// Create stores a staff-defined voucher, generating a code when none is
// given.
func (e *Engine) Create(ctx context.Context, uc *identity.UserContext, v *model.Voucher) error {
	if uc == nil || !uc.IsStaff() {
		return repository.ErrForbidden
	}
	if v.StartDate.IsZero() {
		v.StartDate = e.now()
	}
	if err := Normalize(v); err != nil {
		return err
	}
	return e.store.WithinTx(ctx, func(tx repository.Tx) error {
		if v.Code == "" {
			code, err := GenerateCode(ctx, tx)
			if err != nil {
				return err
			}
			v.Code = code
		}
		if err := tx.CreateVoucher(ctx, v); err != nil {
			return fmt.Errorf("create voucher %q: %w", v.Code, err)
		}
		return nil
	})
}

// PurchaseGift creates an inactive gift voucher for the config: a 100%
// voucher for one block of the configured block type, or a fixed amount
// off a checkout total.  It becomes usable once ActivateGift runs after
// payment.
func (e *Engine) PurchaseGift(ctx context.Context, configID uint64, purchaserEmail string) (*model.GiftVoucher, *model.Voucher, error) {
	var (
		gift model.GiftVoucher
		v    model.Voucher
	)
	err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
		cfg, err := tx.GetGiftVoucherConfig(ctx, configID)
		if err != nil {
			return fmt.Errorf("gift voucher config %d: %w", configID, err)
		}
		if !cfg.Active {
			return fmt.Errorf("gift voucher config %d inactive: %w", configID, model.ErrInvalidConfig)
		}
		one := 1
		v = model.Voucher{
			StartDate:      e.now(),
			MaxVouchers:    &one,
			MaxPerUser:     &one,
			ItemCount:      1,
			IsGift:         true,
			PurchaserEmail: purchaserEmail,
		}
		switch {
		case cfg.BlockConfigID != nil:
			hundred := 100
			v.Scope = model.VoucherBlock
			v.DiscountPercent = &hundred
			v.BlockConfigIDs = []uint64{*cfg.BlockConfigID}
		case cfg.DiscountAmount.Valid:
			v.Scope = model.VoucherTotal
			v.DiscountAmount = decimal.NewNullDecimal(cfg.DiscountAmount.Decimal)
		default:
			return fmt.Errorf("gift voucher config %d has no value: %w", configID, model.ErrInvalidConfig)
		}
		if err := Normalize(&v); err != nil {
			return err
		}
		if v.Code, err = GenerateCode(ctx, tx); err != nil {
			return err
		}
		if err := tx.CreateVoucher(ctx, &v); err != nil {
			return fmt.Errorf("create voucher: %w", err)
		}
		gift = model.GiftVoucher{ConfigID: cfg.ID, VoucherID: v.ID, PurchaserEmail: purchaserEmail}
		if err := tx.CreateGiftVoucher(ctx, &gift); err != nil {
			return fmt.Errorf("create gift voucher: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &gift, &v, nil
}

// ActivateGift marks a purchased gift paid and activates its voucher.
func (e *Engine) ActivateGift(ctx context.Context, giftID uint64) (*model.Voucher, error) {
	var v *model.Voucher
	err := e.store.WithinTx(ctx, func(tx repository.Tx) error {
		var err error
		v, err = ActivateGiftTx(ctx, tx, giftID, e.now())
		return err
	})
	return v, err
}

// ActivateGiftTx is ActivateGift inside an open unit of work.  The voucher
// starts now and expires after the config's duration in months.
// Activating twice is a no-op.
func ActivateGiftTx(ctx context.Context, tx repository.Tx, giftID uint64, now time.Time) (*model.Voucher, error) {
	gift, err := tx.GetGiftVoucher(ctx, giftID)
	if err != nil {
		return nil, fmt.Errorf("gift voucher %d: %w", giftID, err)
	}
	v, err := tx.GetVoucher(ctx, gift.VoucherID)
	if err != nil {
		return nil, fmt.Errorf("voucher %d: %w", gift.VoucherID, err)
	}
	if gift.Paid && v.Activated {
		return v, nil
	}
	cfg, err := tx.GetGiftVoucherConfig(ctx, gift.ConfigID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("gift voucher config %d: %w", gift.ConfigID, err)
	}
	gift.Paid = true
	if err := tx.SaveGiftVoucher(ctx, gift); err != nil {
		return nil, fmt.Errorf("save gift voucher: %w", err)
	}
	v.Activated = true
	v.StartDate = studiotime.StartOfDayUTC(now)
	if cfg != nil && cfg.DurationMonths > 0 {
		exp := studiotime.EndOfDayUTC(studiotime.AddMonths(now, cfg.DurationMonths))
		v.ExpiryDate = &exp
	}
	if err := tx.SaveVoucher(ctx, v); err != nil {
		return nil, fmt.Errorf("save voucher: %w", err)
	}
	log.Printf("voucher: gift %d activated (code %s)", giftID, v.Code)
	return v, nil
}
