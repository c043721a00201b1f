package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// VoucherScope says what a voucher discounts.
type VoucherScope string

const (
	// VoucherBlock discounts individual cart blocks.
	VoucherBlock VoucherScope = "block"
	// VoucherTotal discounts a whole checkout total.
	VoucherTotal VoucherScope = "total"
)

// Voucher is a discount code.  Exactly one of DiscountPercent and
// DiscountAmount is set.  StartDate is normalized to the start of its UTC
// day and ExpiryDate to the end of its UTC day.  ItemCount > 1 means the
// voucher must be applied to multiples of that many blocks and one "use"
// consumes ItemCount blocks.
type Voucher struct {
	ID              uint64              // vouchers.id
	Code            string              // vouchers.code
	Scope           VoucherScope        // vouchers.scope
	DiscountPercent *int                // vouchers.discount (nullable)
	DiscountAmount  decimal.NullDecimal // vouchers.discount_amount (nullable)
	StartDate       time.Time           // vouchers.start_date
	ExpiryDate      *time.Time          // vouchers.expiry_date (nullable)
	MaxVouchers     *int                // vouchers.max_vouchers (nullable = unlimited)
	MaxPerUser      *int                // vouchers.max_per_user (nullable = unlimited)
	ItemCount       int                 // vouchers.item_count
	BlockConfigIDs  []uint64            // voucher_block_configs rows
	Activated       bool                // vouchers.activated
	IsGift          bool                // vouchers.is_gift
	PurchaserEmail  string              // vouchers.purchaser_email
	CreatedAt       time.Time           // vouchers.created_at
}

// HasExpired reports whether the voucher expiry has passed.
func (v Voucher) HasExpired(now time.Time) bool {
	return v.ExpiryDate != nil && !now.Before(*v.ExpiryDate)
}

// HasStarted reports an activated voucher whose start date has passed.
func (v Voucher) HasStarted(now time.Time) bool {
	return v.Activated && v.StartDate.Before(now)
}

// Items returns ItemCount with the zero value read as 1.
func (v Voucher) Items() int {
	if v.ItemCount < 1 {
		return 1
	}
	return v.ItemCount
}

// CheckBlockConfig reports whether the voucher may discount blocks sold
// from the given config.
func (v Voucher) CheckBlockConfig(configID uint64) bool {
	for _, id := range v.BlockConfigIDs {
		if id == configID {
			return true
		}
	}
	return false
}

// ValidateDiscount enforces the percent-xor-amount rule.
func (v Voucher) ValidateDiscount() error {
	hasPercent := v.DiscountPercent != nil
	if hasPercent == v.DiscountAmount.Valid {
		return ErrInvalidConfig
	}
	if hasPercent && (*v.DiscountPercent < 1 || *v.DiscountPercent > 100) {
		return ErrInvalidConfig
	}
	return nil
}

// GiftVoucherConfig is a purchasable gift: either credit for one block
// config or a fixed money amount off a checkout total.
type GiftVoucherConfig struct {
	ID             uint64              // gift_voucher_configs.id
	BlockConfigID  *uint64             // gift_voucher_configs.block_config_id (nullable)
	DiscountAmount decimal.NullDecimal // gift_voucher_configs.discount_amount (nullable)
	DurationMonths int                 // gift_voucher_configs.duration
	Active         bool                // gift_voucher_configs.active
}

// GiftVoucher ties a purchased gift to the voucher it created.
type GiftVoucher struct {
	ID             uint64    // gift_vouchers.id
	ConfigID       uint64    // gift_vouchers.config_id
	VoucherID      uint64    // gift_vouchers.voucher_id
	PurchaserEmail string    // gift_vouchers.purchaser_email
	Paid           bool      // gift_vouchers.paid
	CreatedAt      time.Time // gift_vouchers.created_at
}

// Invoice groups the items paid in one checkout.
type Invoice struct {
	ID               uint64          // invoices.id
	InvoiceRef       string          // invoices.invoice_id (uuid)
	UserID           uint64          // invoices.user_id
	Amount           decimal.Decimal // invoices.amount
	TotalVoucherCode *string         // invoices.total_voucher_code (nullable)
	BlockIDs         []uint64        // invoice_items rows
	SubscriptionIDs  []uint64        // invoice_items rows
	GiftVoucherIDs   []uint64        // invoice_items rows
	Paid             bool            // invoices.paid
	DateCreated      time.Time       // invoices.date_created
	DatePaid         *time.Time      // invoices.date_paid (nullable)
}
