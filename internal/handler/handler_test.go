package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/checkout"
	"github.com/iliyamo/studio-booking/internal/credit"
	"github.com/iliyamo/studio-booking/internal/disclaimer"
	"github.com/iliyamo/studio-booking/internal/events"
	"github.com/iliyamo/studio-booking/internal/identity"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/repository/memstore"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

var now = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

type env struct {
	store    *memstore.Store
	seed     *memstore.Seeder
	bookings *booking.Service
	carts    *checkout.Service
	discl    *disclaimer.Service
	e        *echo.Echo
	et       model.EventType
	drop     model.BlockConfig
	purges   int
}

func (v *env) Purge(context.Context) { v.purges++ }

func newEnv(t *testing.T) *env {
	t.Helper()
	clock := func() time.Time { return now }
	store := memstore.New().WithClock(clock)
	inv := credit.NewInventory(time.UTC, credit.WithClock(clock))
	bus := events.NewBus()
	v := &env{store: store, seed: store.Seed(), e: echo.New()}
	v.bookings = booking.NewService(store, inv, bus)
	v.carts = checkout.NewService(store, inv, bus)
	v.discl = disclaimer.NewService(store, nil, "test", 365*24*time.Hour, clock)
	v.et = v.seed.EventType(model.EventType{Name: "pole", AllowBookingCancellation: true, CancellationPeriodHours: 24})
	v.drop = v.seed.BlockConfig(model.BlockConfig{EventTypeID: v.et.ID, Name: "5 classes", Size: 5, Cost: decimal.NewFromInt(40), Active: true})
	return v
}

func (v *env) staff() *StaffHandler {
	return &StaffHandler{
		Store:       v.store,
		Bookings:    v.bookings,
		Checkout:    v.carts,
		Vouchers:    voucher.NewEngine(v.store, func() time.Time { return now }),
		Disclaimers: v.discl,
		Cache:       v,
	}
}

// as stands in for JWTAuth + LoadIdentity.
func as(uc *identity.UserContext) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set(middleware.CtxIdentity, uc)
			return next(c)
		}
	}
}

func student(id uint64) *identity.UserContext {
	return identity.New(id, model.RoleStudent, nil, nil)
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestStatusFor(t *testing.T) {
	cases := map[error]int{
		repository.ErrNotFound:                                 http.StatusNotFound,
		fmt.Errorf("get block 3: %w", repository.ErrForbidden): http.StatusForbidden,
		model.ErrDisclaimerRequired:                            http.StatusPreconditionFailed,
		model.ErrNoCreditAvailable:                             http.StatusPaymentRequired,
		model.ErrEventFull:                                     http.StatusConflict,
		disclaimer.ErrAlreadySigned:                            http.StatusConflict,
		model.ErrVoucherExpired:                                http.StatusBadRequest,
		errors.New("boom"):                                     http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, statusFor(err), err.Error())
	}
}

func TestCatalogHidesInvisibleEntries(t *testing.T) {
	v := newEnv(t)
	h := &CatalogHandler{Store: v.store, Now: func() time.Time { return now }}
	v.e.GET("/events/:id", h.GetEvent)
	v.e.GET("/courses/:id", h.GetCourse)

	shown := v.seed.Event(model.Event{EventTypeID: v.et.ID, Name: "beginners", Start: now.AddDate(0, 0, 2), MaxParticipants: 2, ShowOnSite: true})
	hidden := v.seed.Event(model.Event{EventTypeID: v.et.ID, Start: now.AddDate(0, 0, 2), MaxParticipants: 2})
	v.seed.Booking(model.Booking{UserID: 5, EventID: shown.ID, Status: model.BookingOpen, DateBooked: now})

	rec := do(v.e, http.MethodGet, fmt.Sprintf("/events/%d", shown.ID), "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got eventView
	decode(t, rec, &got)
	assert.Equal(t, "beginners", got.Name)
	assert.Equal(t, 1, got.Booked)
	assert.False(t, got.Full)

	assert.Equal(t, http.StatusNotFound, do(v.e, http.MethodGet, fmt.Sprintf("/events/%d", hidden.ID), "").Code)
	assert.Equal(t, http.StatusNotFound, do(v.e, http.MethodGet, "/events/999", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(v.e, http.MethodGet, "/events/abc", "").Code)

	course := v.seed.Course(model.Course{EventTypeID: v.et.ID, Name: "spring", NumberOfEvents: 2, MaxParticipants: 4})
	assert.Equal(t, http.StatusNotFound, do(v.e, http.MethodGet, fmt.Sprintf("/courses/%d", course.ID), "").Code)
}

func TestBookAndCancel(t *testing.T) {
	v := newEnv(t)
	h := NewBookingHandler(v.bookings)
	v.e.POST("/events/:id/book", h.Book, as(student(1)))
	v.e.POST("/bookings/:id/cancel", h.Cancel, as(student(1)))

	ev := v.seed.Event(model.Event{EventTypeID: v.et.ID, Start: now.AddDate(0, 0, 7), MaxParticipants: 5, ShowOnSite: true})
	path := fmt.Sprintf("/events/%d/book", ev.ID)

	rec := do(v.e, http.MethodPost, path, "")
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	blk := v.seed.Block(model.Block{UserID: 1, BlockConfigID: v.drop.ID, Paid: true, PurchaseDate: now})
	rec = do(v.e, http.MethodPost, path, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b bookingView
	decode(t, rec, &b)
	assert.Equal(t, "OPEN", b.Status)
	require.NotNil(t, b.BlockID)
	assert.Equal(t, blk.ID, *b.BlockID)

	assert.Equal(t, http.StatusConflict, do(v.e, http.MethodPost, path, "").Code)

	rec = do(v.e, http.MethodPost, fmt.Sprintf("/bookings/%d/cancel", b.ID), "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	b = bookingView{}
	decode(t, rec, &b)
	assert.Equal(t, "CANCELLED", b.Status)
	assert.Nil(t, b.BlockID)
}

func TestBookForUnmanagedUserIsForbidden(t *testing.T) {
	v := newEnv(t)
	h := NewBookingHandler(v.bookings)
	v.e.POST("/events/:id/book", h.Book, as(identity.New(1, model.RoleStudent, []uint64{2}, nil)))
	ev := v.seed.Event(model.Event{EventTypeID: v.et.ID, Start: now.AddDate(0, 0, 7), MaxParticipants: 5})
	v.seed.Block(model.Block{UserID: 2, BlockConfigID: v.drop.ID, Paid: true, PurchaseDate: now})

	path := fmt.Sprintf("/events/%d/book", ev.ID)
	assert.Equal(t, http.StatusForbidden, do(v.e, http.MethodPost, path, `{"for_user_id":3}`).Code)

	rec := do(v.e, http.MethodPost, path+"?for_user_id=2", "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var b bookingView
	decode(t, rec, &b)
	assert.Equal(t, uint64(2), b.UserID)
}

func TestCartCheckoutAndPayment(t *testing.T) {
	v := newEnv(t)
	cart := NewCartHandler(v.bookings, v.carts, nil, nil)
	staff := v.staff()
	v.e.POST("/cart/blocks", cart.AddBlock, as(student(1)))
	v.e.GET("/cart", cart.View, as(student(1)))
	v.e.POST("/cart/checkout", cart.Checkout, as(student(1)))
	v.e.POST("/staff/invoices/:ref/paid", staff.MarkInvoicePaid, as(identity.New(9, model.RoleStaff, nil, nil)))

	rec := do(v.e, http.MethodPost, "/cart/blocks", fmt.Sprintf(`{"config_id":%d}`, v.drop.ID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var blk blockView
	decode(t, rec, &blk)
	assert.False(t, blk.Paid)

	rec = do(v.e, http.MethodGet, "/cart", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum checkout.Summary
	decode(t, rec, &sum)
	require.Len(t, sum.Blocks, 1)
	assert.True(t, sum.Total.Equal(decimal.NewFromInt(40)))

	assert.Equal(t, http.StatusForbidden, do(v.e, http.MethodGet, "/cart?for_user_id=4", "").Code)

	rec = do(v.e, http.MethodPost, "/cart/checkout", `{}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var out struct {
		Invoice invoiceView `json:"invoice"`
	}
	decode(t, rec, &out)
	assert.Equal(t, []uint64{blk.ID}, out.Invoice.BlockIDs)
	require.NotEmpty(t, out.Invoice.InvoiceID)

	rec = do(v.e, http.MethodPost, "/staff/invoices/"+out.Invoice.InvoiceID+"/paid", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var paid invoiceView
	decode(t, rec, &paid)
	assert.True(t, paid.Paid)

	require.NoError(t, v.store.WithinTx(context.Background(), func(tx repository.Tx) error {
		b, err := tx.GetBlock(context.Background(), blk.ID)
		require.NoError(t, err)
		assert.True(t, b.Paid)
		return nil
	}))
}

func TestStaffCatalogWritesPurgeCache(t *testing.T) {
	v := newEnv(t)
	staff := v.staff()
	v.e.POST("/staff/event-types", staff.CreateEventType)
	v.e.POST("/staff/events", staff.CreateEvent)

	assert.Equal(t, http.StatusBadRequest, do(v.e, http.MethodPost, "/staff/event-types", `{"name":" "}`).Code)
	rec := do(v.e, http.MethodPost, "/staff/event-types", `{"name":"aerial","cancellation_period":12}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var et struct {
		ID uint64 `json:"id"`
	}
	decode(t, rec, &et)
	assert.Equal(t, 1, v.purges)

	body := fmt.Sprintf(`{"event_type_id":%d,"name":"hoop","start":"2024-09-10T18:00:00Z","max_participants":6}`, et.ID)
	rec = do(v.e, http.MethodPost, "/staff/events", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var ev eventView
	decode(t, rec, &ev)
	assert.Equal(t, 90, ev.DurationMinutes)
	assert.Equal(t, 2, v.purges)

	rec = do(v.e, http.MethodPost, "/staff/events", `{"event_type_id":999,"start":"2024-09-10T18:00:00Z","max_participants":6}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 2, v.purges, "failed writes leave the cache alone")
}

func TestDisclaimerPublishAndSign(t *testing.T) {
	v := newEnv(t)
	h := NewDisclaimerHandler(v.discl)
	staff := v.staff()
	v.e.GET("/disclaimer", h.Current)
	v.e.GET("/disclaimer/status", h.Status, as(student(1)))
	v.e.POST("/disclaimer/sign", h.Sign, as(student(1)))
	v.e.POST("/staff/disclaimers", staff.PublishDisclaimer)

	assert.Equal(t, http.StatusNotFound, do(v.e, http.MethodGet, "/disclaimer", "").Code)

	rec := do(v.e, http.MethodPost, "/staff/disclaimers", `{"content":"Train at your own risk."}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(v.e, http.MethodGet, "/disclaimer", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var d disclaimerView
	decode(t, rec, &d)
	assert.True(t, d.Version.Equal(decimal.NewFromInt(1)))

	rec = do(v.e, http.MethodGet, "/disclaimer/status", "")
	assert.JSONEq(t, `{"user_id":1,"active":false}`, rec.Body.String())

	assert.Equal(t, http.StatusCreated, do(v.e, http.MethodPost, "/disclaimer/sign", `{}`).Code)
	assert.Equal(t, http.StatusConflict, do(v.e, http.MethodPost, "/disclaimer/sign", `{}`).Code)
	assert.Equal(t, http.StatusForbidden, do(v.e, http.MethodPost, "/disclaimer/sign", `{"for_user_id":8}`).Code)
}
