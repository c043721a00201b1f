package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/repository/memstore"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

var now = time.Date(2024, 6, 12, 14, 30, 0, 0, time.UTC)

func intp(n int) *int { return &n }

type harness struct {
	store *memstore.Store
	seed  *memstore.Seeder
	svc   *Service
	block model.BlockConfig
	sub   model.SubscriptionConfig
	seen  []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := func() time.Time { return now }
	store := memstore.New().WithClock(clock)
	seed := store.Seed()
	et := seed.EventType(model.EventType{Name: "pole"})
	h := &harness{store: store, seed: seed}
	bus := events.NewBus()
	bus.Subscribe(func(ctx context.Context, ev events.Event) error {
		h.seen = append(h.seen, ev)
		return nil
	})
	h.svc = NewService(store, credit.NewInventory(time.UTC, credit.WithClock(clock)), bus)
	h.block = seed.BlockConfig(model.BlockConfig{EventTypeID: et.ID, Name: "5 classes", Size: 5, Cost: decimal.NewFromInt(40), Active: true})
	h.sub = seed.SubscriptionConfig(model.SubscriptionConfig{
		Name:               "monthly",
		Duration:           1,
		DurationUnit:       model.DurationMonths,
		StartOptions:       model.StartSignupDate,
		Active:             true,
		Cost:               decimal.NewFromInt(60),
		BookableEventTypes: map[uint64]model.Allowance{et.ID: {}},
	})
	return h
}

func student(id uint64) *identity.UserContext {
	return identity.New(id, model.RoleStudent, nil, nil)
}

func (h *harness) voucher(v model.Voucher) model.Voucher {
	if v.StartDate.IsZero() {
		v.StartDate = now.AddDate(0, 0, -1)
	}
	v.Activated = true
	return h.seed.Voucher(v)
}

func (h *harness) getBlock(t *testing.T, id uint64) *model.Block {
	t.Helper()
	var b *model.Block
	require.NoError(t, h.store.WithinTx(context.Background(), func(tx repository.Tx) error {
		var err error
		b, err = tx.GetBlock(context.Background(), id)
		return err
	}))
	return b
}

func TestAddBlock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	b, err := h.svc.AddBlock(ctx, student(1), 1, h.block.ID)
	require.NoError(t, err)
	assert.False(t, b.Paid)
	require.NotNil(t, b.TimeChecked)
	assert.True(t, b.TimeChecked.Equal(now))

	_, err = h.svc.AddBlock(ctx, student(2), 1, h.block.ID)
	assert.ErrorIs(t, err, repository.ErrForbidden)

	retired := h.seed.BlockConfig(model.BlockConfig{EventTypeID: h.block.EventTypeID, Size: 1})
	_, err = h.svc.AddBlock(ctx, student(1), 1, retired.ID)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)
}

func TestAddSubscriptionStartOptions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	opts, err := h.svc.StartOptions(ctx, student(1), 1, h.sub.ID)
	require.NoError(t, err)
	require.Len(t, opts, 1)
	today := time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC)
	assert.True(t, opts[0].Equal(today))

	tomorrow := today.AddDate(0, 0, 1)
	_, err = h.svc.AddSubscription(ctx, student(1), 1, h.sub.ID, &tomorrow)
	assert.ErrorIs(t, err, model.ErrInvalidConfig)

	sub, err := h.svc.AddSubscription(ctx, student(1), 1, h.sub.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, model.SubscriptionPending, sub.Status)
	require.NotNil(t, sub.StartDate)
	assert.True(t, sub.StartDate.Equal(today))
	require.NotNil(t, sub.ExpiryDate)
	assert.True(t, sub.ExpiryDate.After(today.AddDate(0, 1, -1)))
}

func TestSummarizePricesCart(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.voucher(model.Voucher{Code: "TEN", DiscountPercent: intp(10), BlockConfigIDs: []uint64{h.block.ID}})
	h.voucher(model.Voucher{Code: "FIVEOFF", Scope: model.VoucherTotal, DiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(5))})

	b, err := h.svc.AddBlock(ctx, student(1), 1, h.block.ID)
	require.NoError(t, err)
	_, err = voucher.NewEngine(h.store, func() time.Time { return now }).ApplyVoucher(ctx, student(1), "TEN", []uint64{b.ID})
	require.NoError(t, err)
	_, err = h.svc.AddSubscription(ctx, student(1), 1, h.sub.ID, nil)
	require.NoError(t, err)

	sum, err := h.svc.Summarize(ctx, student(1), 1, "FIVEOFF")
	require.NoError(t, err)
	require.Len(t, sum.Blocks, 1)
	require.Len(t, sum.Subscriptions, 1)
	assert.Equal(t, "TEN", sum.Blocks[0].VoucherCode)
	assert.True(t, sum.Blocks[0].Discounted.Equal(decimal.NewFromInt(36)))
	assert.True(t, sum.Subscriptions[0].Cost.Equal(decimal.NewFromInt(60)))
	assert.True(t, sum.Subtotal.Equal(decimal.NewFromInt(96)))
	assert.Equal(t, "FIVEOFF", sum.TotalVoucherCode)
	assert.True(t, sum.Total.Equal(decimal.NewFromInt(91)))

	sum, err = h.svc.Summarize(ctx, student(1), 1, "NOPE")
	require.NoError(t, err)
	assert.NotEmpty(t, sum.TotalVoucherError)
	assert.True(t, sum.Total.Equal(sum.Subtotal))
}

func TestSummarizeDetachesStaleVoucher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	exp := now.Add(-time.Hour)
	v := h.voucher(model.Voucher{Code: "OLD", DiscountPercent: intp(50), BlockConfigIDs: []uint64{h.block.ID}, ExpiryDate: &exp})
	b := h.seed.Block(model.Block{UserID: 1, BlockConfigID: h.block.ID, VoucherID: &v.ID})

	sum, err := h.svc.Summarize(ctx, student(1), 1, "")
	require.NoError(t, err)
	require.Len(t, sum.Blocks, 1)
	assert.Empty(t, sum.Blocks[0].VoucherCode)
	assert.True(t, sum.Blocks[0].Discounted.Equal(decimal.NewFromInt(40)))
	assert.Nil(t, h.getBlock(t, b.ID).VoucherID)
}

func TestSummarizeSkipsPaidCredit(t *testing.T) {
	h := newHarness(t)
	h.seed.Block(model.Block{UserID: 1, BlockConfigID: h.block.ID, Paid: true})
	sum, err := h.svc.Summarize(context.Background(), student(1), 1, "")
	require.NoError(t, err)
	assert.True(t, sum.Empty())
	assert.True(t, sum.Total.IsZero())
}

func TestInvoiceLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, _, err := h.svc.CreateInvoice(ctx, student(1), 1, "")
	assert.ErrorIs(t, err, ErrEmptyCart)

	b, err := h.svc.AddBlock(ctx, student(1), 1, h.block.ID)
	require.NoError(t, err)
	sub, err := h.svc.AddSubscription(ctx, student(1), 1, h.sub.ID, nil)
	require.NoError(t, err)

	inv, sum, err := h.svc.CreateInvoice(ctx, student(1), 1, "")
	require.NoError(t, err)
	assert.Len(t, inv.InvoiceRef, 36)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(100)))
	assert.True(t, inv.Amount.Equal(sum.Total))
	assert.Equal(t, []uint64{b.ID}, inv.BlockIDs)
	assert.Equal(t, []uint64{sub.ID}, inv.SubscriptionIDs)
	assert.False(t, inv.Paid)

	paid, err := h.svc.MarkInvoicePaid(ctx, inv.InvoiceRef)
	require.NoError(t, err)
	assert.True(t, paid.Paid)
	require.NotNil(t, paid.DatePaid)
	assert.True(t, h.getBlock(t, b.ID).Paid)

	require.NoError(t, h.store.WithinTx(ctx, func(tx repository.Tx) error {
		got, err := tx.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.True(t, got.Paid)
		assert.Equal(t, model.SubscriptionActive, got.Status)
		return nil
	}))
	require.Len(t, h.seen, 2)
	for _, ev := range h.seen {
		assert.Equal(t, events.CreditChanged, ev.Kind)
	}

	_, err = h.svc.MarkInvoicePaid(ctx, inv.InvoiceRef)
	require.NoError(t, err)
	assert.Len(t, h.seen, 2, "second payment is a no-op")

	_, err = h.svc.MarkInvoicePaid(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvoiceRecordsTotalVoucher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.voucher(model.Voucher{Code: "ONCE", Scope: model.VoucherTotal, DiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(5)), MaxPerUser: intp(1)})

	_, err := h.svc.AddBlock(ctx, student(1), 1, h.block.ID)
	require.NoError(t, err)
	inv, _, err := h.svc.CreateInvoice(ctx, student(1), 1, "ONCE")
	require.NoError(t, err)
	require.NotNil(t, inv.TotalVoucherCode)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(35)))
	_, err = h.svc.MarkInvoicePaid(ctx, inv.InvoiceRef)
	require.NoError(t, err)

	_, err = h.svc.AddBlock(ctx, student(1), 1, h.block.ID)
	require.NoError(t, err)
	sum, err := h.svc.Summarize(ctx, student(1), 1, "ONCE")
	require.NoError(t, err)
	assert.Contains(t, sum.TotalVoucherError, model.ErrVoucherExhausted.Error())
	assert.True(t, sum.Total.Equal(decimal.NewFromInt(40)))
}

func TestGiftInvoiceActivatesVoucher(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	blockID := h.block.ID
	cfg := h.store.PutGiftVoucherConfig(model.GiftVoucherConfig{BlockConfigID: &blockID, DurationMonths: 6, Active: true})

	gift, v, err := voucher.NewEngine(h.store, func() time.Time { return now }).PurchaseGift(ctx, cfg.ID, "gifter@example.com")
	require.NoError(t, err)
	assert.False(t, v.Activated)

	inv, err := h.svc.CreateGiftInvoice(ctx, 0, gift.ID)
	require.NoError(t, err)
	assert.True(t, inv.Amount.Equal(decimal.NewFromInt(40)))

	_, err = h.svc.MarkInvoicePaid(ctx, inv.InvoiceRef)
	require.NoError(t, err)
	require.NoError(t, h.store.WithinTx(ctx, func(tx repository.Tx) error {
		got, err := tx.GetVoucher(ctx, v.ID)
		require.NoError(t, err)
		assert.True(t, got.Activated)
		require.NotNil(t, got.ExpiryDate)
		assert.Equal(t, time.December, got.ExpiryDate.Month())
		return nil
	}))
}
