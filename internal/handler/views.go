package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/model"
)

// JSON shapes returned by the API.  Persisted entities stay free of
// transport tags.

type bookingView struct {
	ID             uint64     `json:"id"`
	UserID         uint64     `json:"user_id"`
	EventID        uint64     `json:"event_id"`
	Status         string     `json:"status"`
	NoShow         bool       `json:"no_show"`
	Attended       bool       `json:"attended"`
	BlockID        *uint64    `json:"block_id,omitempty"`
	SubscriptionID *uint64    `json:"subscription_id,omitempty"`
	DateBooked     time.Time  `json:"date_booked"`
	DateRebooked   *time.Time `json:"date_rebooked,omitempty"`
}

func toBookingView(b model.Booking) bookingView {
	return bookingView{
		ID: b.ID, UserID: b.UserID, EventID: b.EventID, Status: string(b.Status),
		NoShow: b.NoShow, Attended: b.Attended, BlockID: b.BlockID, SubscriptionID: b.SubscriptionID,
		DateBooked: b.DateBooked, DateRebooked: b.DateRebooked,
	}
}

type eventView struct {
	ID              uint64    `json:"id"`
	EventTypeID     uint64    `json:"event_type_id"`
	CourseID        *uint64   `json:"course_id,omitempty"`
	Name            string    `json:"name"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration"`
	MaxParticipants int       `json:"max_participants"`
	Cancelled       bool      `json:"cancelled"`
	Booked          int       `json:"booked"`
	Full            bool      `json:"full"`
}

func toEventView(e model.Event) eventView {
	return eventView{
		ID: e.ID, EventTypeID: e.EventTypeID, CourseID: e.CourseID, Name: e.Name, Start: e.Start,
		DurationMinutes: e.DurationMinutes, MaxParticipants: e.MaxParticipants, Cancelled: e.Cancelled,
	}
}

type courseView struct {
	ID                  uint64      `json:"id"`
	EventTypeID         uint64      `json:"event_type_id"`
	Name                string      `json:"name"`
	NumberOfEvents      int         `json:"number_of_events"`
	MaxParticipants     int         `json:"max_participants"`
	AllowDropIn         bool        `json:"allow_drop_in"`
	AllowPartialBooking bool        `json:"allow_partial_booking"`
	Cancelled           bool        `json:"cancelled"`
	Configured          bool        `json:"configured"`
	Full                bool        `json:"full"`
	Events              []eventView `json:"events"`
}

type blockView struct {
	ID            uint64     `json:"id"`
	UserID        uint64     `json:"user_id"`
	BlockConfigID uint64     `json:"block_config_id"`
	Paid          bool       `json:"paid"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	ExpiryDate    *time.Time `json:"expiry_date,omitempty"`
	VoucherID     *uint64    `json:"voucher_id,omitempty"`
}

func toBlockView(b model.Block) blockView {
	return blockView{ID: b.ID, UserID: b.UserID, BlockConfigID: b.BlockConfigID, Paid: b.Paid,
		StartDate: b.StartDate, ExpiryDate: b.ExpiryDate, VoucherID: b.VoucherID}
}

type subscriptionView struct {
	ID         uint64     `json:"id"`
	UserID     uint64     `json:"user_id"`
	ConfigID   uint64     `json:"config_id"`
	Paid       bool       `json:"paid"`
	Status     string     `json:"status"`
	StartDate  *time.Time `json:"start_date,omitempty"`
	ExpiryDate *time.Time `json:"expiry_date,omitempty"`
}

func toSubscriptionView(s model.Subscription) subscriptionView {
	return subscriptionView{ID: s.ID, UserID: s.UserID, ConfigID: s.ConfigID, Paid: s.Paid,
		Status: string(s.Status), StartDate: s.StartDate, ExpiryDate: s.ExpiryDate}
}

type invoiceView struct {
	InvoiceID        string          `json:"invoice_id"`
	UserID           uint64          `json:"user_id"`
	Amount           decimal.Decimal `json:"amount"`
	TotalVoucherCode *string         `json:"total_voucher_code,omitempty"`
	BlockIDs         []uint64        `json:"block_ids,omitempty"`
	SubscriptionIDs  []uint64        `json:"subscription_ids,omitempty"`
	GiftVoucherIDs   []uint64        `json:"gift_voucher_ids,omitempty"`
	Paid             bool            `json:"paid"`
	DatePaid         *time.Time      `json:"date_paid,omitempty"`
}

func toInvoiceView(inv model.Invoice) invoiceView {
	return invoiceView{InvoiceID: inv.InvoiceRef, UserID: inv.UserID, Amount: inv.Amount,
		TotalVoucherCode: inv.TotalVoucherCode, BlockIDs: inv.BlockIDs, SubscriptionIDs: inv.SubscriptionIDs,
		GiftVoucherIDs: inv.GiftVoucherIDs, Paid: inv.Paid, DatePaid: inv.DatePaid}
}

type voucherView struct {
	ID              uint64           `json:"id"`
	Code            string           `json:"code"`
	Scope           string           `json:"scope"`
	DiscountPercent *int             `json:"discount,omitempty"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount,omitempty"`
	StartDate       time.Time        `json:"start_date"`
	ExpiryDate      *time.Time       `json:"expiry_date,omitempty"`
	MaxVouchers     *int             `json:"max_vouchers,omitempty"`
	MaxPerUser      *int             `json:"max_per_user,omitempty"`
	ItemCount       int              `json:"item_count"`
	BlockConfigIDs  []uint64         `json:"block_config_ids,omitempty"`
	Activated       bool             `json:"activated"`
}

func toVoucherView(v model.Voucher) voucherView {
	out := voucherView{ID: v.ID, Code: v.Code, Scope: string(v.Scope), DiscountPercent: v.DiscountPercent,
		StartDate: v.StartDate, ExpiryDate: v.ExpiryDate, MaxVouchers: v.MaxVouchers, MaxPerUser: v.MaxPerUser,
		ItemCount: v.Items(), BlockConfigIDs: v.BlockConfigIDs, Activated: v.Activated}
	if v.DiscountAmount.Valid {
		amt := v.DiscountAmount.Decimal
		out.DiscountAmount = &amt
	}
	return out
}
