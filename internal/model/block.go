package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BlockConfig is the template a Block is sold from.  Drop-in configs pay
// for Size single events of EventTypeID; course configs (Course=true) pay
// for one whole course of that type whose declared size equals Size.
type BlockConfig struct {
	ID            uint64          // block_configs.id
	EventTypeID   uint64          // block_configs.event_type_id
	Name          string          // block_configs.name
	Size          int             // block_configs.size
	DurationWeeks *int            // block_configs.duration (nullable = never expires)
	Course        bool            // block_configs.course
	Cost          decimal.Decimal // block_configs.cost
	Active        bool            // block_configs.active
}

// Block is a user's prepaid credit.  StartDate and ExpiryDate are derived
// from the bookings that use the block (credit.Inventory recomputes them);
// ManualExpiryDate is a staff override that always wins.
//
// Fields:
//  ID               – primary key identifier.
//  UserID           – owner.
//  BlockConfigID    – template; Config is populated by the store on reads.
//  Paid             – unpaid blocks sit in the user's cart.
//  PurchaseDate     – reset to the payment instant when marked paid.
//  StartDate        – start of the earliest open booking's event.
//  ExpiryDate       – derived expiry (nullable).
//  ManualExpiryDate – staff override (nullable).
//  VoucherID        – voucher applied while in the cart (nullable).
//  TimeChecked      – last time the cart holding this block was viewed.
type Block struct {
	ID               uint64       // blocks.id
	UserID           uint64       // blocks.user_id
	BlockConfigID    uint64       // blocks.block_config_id
	Config           *BlockConfig // joined from block_configs
	Paid             bool         // blocks.paid
	PurchaseDate     time.Time    // blocks.purchase_date
	StartDate        *time.Time   // blocks.start_date (nullable)
	ExpiryDate       *time.Time   // blocks.expiry_date (nullable)
	ManualExpiryDate *time.Time   // blocks.manual_expiry_date (nullable)
	VoucherID        *uint64      // blocks.voucher_id (nullable)
	TimeChecked      *time.Time   // blocks.time_checked (nullable)
	CreatedAt        time.Time    // blocks.created_at
}

// Expired reports whether the block's expiry has passed.  A block without
// an expiry never expires.
func (b Block) Expired(now time.Time) bool {
	return b.ExpiryDate != nil && !now.Before(*b.ExpiryDate)
}

// IsCourse reports whether the block was sold from a course config.
func (b Block) IsCourse() bool {
	return b.Config != nil && b.Config.Course
}
