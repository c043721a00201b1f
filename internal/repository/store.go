package repository

import (
	"context"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
)

// Store opens units of work.  Everything the callback does through tx is
// committed together when it returns nil and rolled back otherwise.
type Store interface {
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// VoucherUseFilter narrows CountVoucherBlocks.
type VoucherUseFilter struct {
	Paid           *bool
	UserID         *uint64
	ExcludeBlockID *uint64
}

// Tx is the transaction-scoped view of the store.  Get* methods return
// ErrNotFound for missing rows; Find* methods return (nil, nil).
type Tx interface {
	CatalogTx
	BookingTx
	CreditTx
	VoucherTx
	AccountTx
}

// CatalogTx covers events, courses and the credit templates.
type CatalogTx interface {
	GetEventType(ctx context.Context, id uint64) (*model.EventType, error)
	CreateEventType(ctx context.Context, t *model.EventType) error
	GetEvent(ctx context.Context, id uint64) (*model.Event, error)
	// LockEvent reads the event and holds a row lock on it until the unit
	// of work ends.  Capacity checks must be made after this call.
	LockEvent(ctx context.Context, id uint64) (*model.Event, error)
	CreateEvent(ctx context.Context, e *model.Event) error
	SaveEvent(ctx context.Context, e *model.Event) error
	ListCourseEvents(ctx context.Context, courseID uint64) ([]model.Event, error)
	GetCourse(ctx context.Context, id uint64) (*model.Course, error)
	CreateCourse(ctx context.Context, c *model.Course) error
	SaveCourse(ctx context.Context, c *model.Course) error
	GetBlockConfig(ctx context.Context, id uint64) (*model.BlockConfig, error)
	CreateBlockConfig(ctx context.Context, c *model.BlockConfig) error
	GetSubscriptionConfig(ctx context.Context, id uint64) (*model.SubscriptionConfig, error)
	CreateSubscriptionConfig(ctx context.Context, c *model.SubscriptionConfig) error
}

// BookingTx covers bookings and waiting lists.
type BookingTx interface {
	GetBooking(ctx context.Context, id uint64) (*model.Booking, error)
	FindBooking(ctx context.Context, userID, eventID uint64) (*model.Booking, error)
	CreateBooking(ctx context.Context, b *model.Booking) error
	SaveBooking(ctx context.Context, b *model.Booking) error
	DeleteBooking(ctx context.Context, id uint64) error
	// CountEventBookings counts OPEN bookings for the event, with or
	// without no-shows.
	CountEventBookings(ctx context.Context, eventID uint64, includeNoShows bool) (int, error)
	ListBlockBookings(ctx context.Context, blockID uint64) ([]model.BookedEvent, error)
	ListSubscriptionBookings(ctx context.Context, subscriptionID uint64) ([]model.BookedEvent, error)
	ListUserCourseBookings(ctx context.Context, userID, courseID uint64) ([]model.BookedEvent, error)

	AddWaitingListUser(ctx context.Context, w *model.WaitingListUser) error
	RemoveWaitingListUser(ctx context.Context, userID, eventID uint64) error
	ListWaitingList(ctx context.Context, eventID uint64) ([]model.WaitingListUser, error)
}

// CreditTx covers blocks and subscriptions.  Returned rows carry their
// Config.
type CreditTx interface {
	GetBlock(ctx context.Context, id uint64) (*model.Block, error)
	CreateBlock(ctx context.Context, b *model.Block) error
	SaveBlock(ctx context.Context, b *model.Block) error
	DeleteBlock(ctx context.Context, id uint64) error
	ListUserBlocks(ctx context.Context, userID uint64) ([]model.Block, error)
	// ListUnpaidBlocks returns unpaid blocks created before the cutoff,
	// optionally restricted to one user.
	ListUnpaidBlocks(ctx context.Context, createdBefore time.Time, userID *uint64) ([]model.Block, error)

	GetSubscription(ctx context.Context, id uint64) (*model.Subscription, error)
	CreateSubscription(ctx context.Context, s *model.Subscription) error
	SaveSubscription(ctx context.Context, s *model.Subscription) error
	DeleteSubscription(ctx context.Context, id uint64) error
	ListUserSubscriptions(ctx context.Context, userID uint64) ([]model.Subscription, error)
	ListUnpaidSubscriptions(ctx context.Context, createdBefore time.Time, userID *uint64) ([]model.Subscription, error)
	// ListRenewableSubscriptions returns paid, active subscriptions of
	// recurring configs that have not had a renewal reminder yet.
	ListRenewableSubscriptions(ctx context.Context) ([]model.Subscription, error)
}

// VoucherTx covers vouchers, gift vouchers and invoices.
type VoucherTx interface {
	GetVoucherByCode(ctx context.Context, code string) (*model.Voucher, error)
	GetVoucher(ctx context.Context, id uint64) (*model.Voucher, error)
	VoucherCodeExists(ctx context.Context, code string) (bool, error)
	CreateVoucher(ctx context.Context, v *model.Voucher) error
	SaveVoucher(ctx context.Context, v *model.Voucher) error
	CountVoucherBlocks(ctx context.Context, voucherID uint64, f VoucherUseFilter) (int, error)
	// CountVoucherInvoices counts paid invoices that used the total
	// voucher code, optionally for one user.
	CountVoucherInvoices(ctx context.Context, code string, userID *uint64) (int, error)

	GetGiftVoucherConfig(ctx context.Context, id uint64) (*model.GiftVoucherConfig, error)
	CreateGiftVoucher(ctx context.Context, g *model.GiftVoucher) error
	GetGiftVoucher(ctx context.Context, id uint64) (*model.GiftVoucher, error)
	SaveGiftVoucher(ctx context.Context, g *model.GiftVoucher) error

	CreateInvoice(ctx context.Context, inv *model.Invoice) error
	GetInvoiceByRef(ctx context.Context, ref string) (*model.Invoice, error)
	SaveInvoice(ctx context.Context, inv *model.Invoice) error
}

// AccountTx covers the identity-adjacent rows the engine reads.
type AccountTx interface {
	GetUser(ctx context.Context, id uint64) (*model.User, error)
	ListManagedUsers(ctx context.Context, managerID uint64) ([]model.User, error)
	LatestDisclaimer(ctx context.Context, userID uint64) (*model.OnlineDisclaimer, error)
	CreateDisclaimer(ctx context.Context, d *model.OnlineDisclaimer) error
	CurrentDisclaimerContent(ctx context.Context) (*model.DisclaimerContentRow, error)
	CreateDisclaimerContent(ctx context.Context, c *model.DisclaimerContentRow) error
	AppendActivityLog(ctx context.Context, entry *model.ActivityLog) error
}
