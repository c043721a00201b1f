package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/checkout"
	"github.com/iliyamo/studio-booking/internal/disclaimer"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/voucher"
)

// Purger drops cached public responses after catalog writes.
type Purger interface {
	Purge(ctx context.Context)
}

// StaffHandler groups the studio management endpoints.  All routes run
// behind RequireRole(STAFF).
type StaffHandler struct {
	Store       repository.Store
	Bookings    *booking.Service
	Checkout    *checkout.Service
	Vouchers    *voucher.Engine
	Disclaimers *disclaimer.Service
	Cache       Purger
}

// catalogWrite runs fn in a unit of work and purges the response cache
// when it commits.
func (h *StaffHandler) catalogWrite(ctx context.Context, fn func(tx repository.Tx) error) error {
	if err := h.Store.WithinTx(ctx, fn); err != nil {
		return err
	}
	if h.Cache != nil {
		h.Cache.Purge(ctx)
	}
	return nil
}

// CreateEventType handles POST /v1/staff/event-types.
func (h *StaffHandler) CreateEventType(c echo.Context) error {
	var req struct {
		Name                     string `json:"name"`
		CancellationPeriodHours  int    `json:"cancellation_period"`
		AllowBookingCancellation *bool  `json:"allow_booking_cancellation"`
	}
	if err := c.Bind(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		return badRequest(c, "name required")
	}
	if req.CancellationPeriodHours < 0 {
		return badRequest(c, "cancellation_period must not be negative")
	}
	et := model.EventType{Name: strings.TrimSpace(req.Name), CancellationPeriodHours: req.CancellationPeriodHours, AllowBookingCancellation: true}
	if req.AllowBookingCancellation != nil {
		et.AllowBookingCancellation = *req.AllowBookingCancellation
	}
	ctx := c.Request().Context()
	if err := h.catalogWrite(ctx, func(tx repository.Tx) error { return tx.CreateEventType(ctx, &et) }); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": et.ID, "name": et.Name})
}

type eventReq struct {
	EventTypeID     uint64    `json:"event_type_id"`
	CourseID        uint64    `json:"course_id"`
	Name            string    `json:"name"`
	Start           time.Time `json:"start"`
	DurationMinutes int       `json:"duration"`
	MaxParticipants int       `json:"max_participants"`
	ShowOnSite      *bool     `json:"show_on_site"`
}

// CreateEvent handles POST /v1/staff/events.  With course_id the event is
// attached to the course and takes over its capacity and visibility.
func (h *StaffHandler) CreateEvent(c echo.Context) error {
	var req eventReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.EventTypeID == 0 || req.Start.IsZero() || req.MaxParticipants < 1 {
		return badRequest(c, "event_type_id, start and max_participants required")
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 90
	}
	ev := model.Event{
		EventTypeID: req.EventTypeID, Name: strings.TrimSpace(req.Name), Start: req.Start.UTC(),
		DurationMinutes: req.DurationMinutes, MaxParticipants: req.MaxParticipants, ShowOnSite: true,
	}
	if req.ShowOnSite != nil {
		ev.ShowOnSite = *req.ShowOnSite
	}
	ctx := c.Request().Context()
	err := h.catalogWrite(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetEventType(ctx, ev.EventTypeID); err != nil {
			return err
		}
		if err := tx.CreateEvent(ctx, &ev); err != nil {
			return err
		}
		if req.CourseID == 0 {
			return nil
		}
		attached, err := catalog.AttachEventToCourse(ctx, tx, ev.ID, req.CourseID)
		if err != nil {
			return err
		}
		ev = *attached
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toEventView(ev))
}

// CreateCourse handles POST /v1/staff/courses.
func (h *StaffHandler) CreateCourse(c echo.Context) error {
	var req struct {
		EventTypeID         uint64 `json:"event_type_id"`
		Name                string `json:"name"`
		NumberOfEvents      int    `json:"number_of_events"`
		MaxParticipants     int    `json:"max_participants"`
		ShowOnSite          bool   `json:"show_on_site"`
		AllowDropIn         bool   `json:"allow_drop_in"`
		AllowPartialBooking bool   `json:"allow_partial_booking"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.EventTypeID == 0 || req.NumberOfEvents < 1 || req.MaxParticipants < 1 {
		return badRequest(c, "event_type_id, number_of_events and max_participants required")
	}
	course := model.Course{
		EventTypeID: req.EventTypeID, Name: strings.TrimSpace(req.Name), NumberOfEvents: req.NumberOfEvents,
		MaxParticipants: req.MaxParticipants, ShowOnSite: req.ShowOnSite, AllowDropIn: req.AllowDropIn,
		AllowPartialBooking: req.AllowPartialBooking,
	}
	ctx := c.Request().Context()
	err := h.catalogWrite(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetEventType(ctx, course.EventTypeID); err != nil {
			return err
		}
		return tx.CreateCourse(ctx, &course)
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": course.ID, "name": course.Name})
}

// AttachEvent handles POST /v1/staff/courses/:id/events/:event_id.
func (h *StaffHandler) AttachEvent(c echo.Context) error {
	courseID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	eventID, ok := pathID(c, "event_id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx := c.Request().Context()
	var ev *model.Event
	err := h.catalogWrite(ctx, func(tx repository.Tx) error {
		var err error
		ev, err = catalog.AttachEventToCourse(ctx, tx, eventID, courseID)
		return err
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toEventView(*ev))
}

// CancelCourse handles POST /v1/staff/courses/:id/cancel.
func (h *StaffHandler) CancelCourse(c echo.Context) error {
	courseID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	ctx := c.Request().Context()
	err := h.catalogWrite(ctx, func(tx repository.Tx) error {
		_, err := catalog.CancelCourse(ctx, tx, courseID)
		return err
	})
	if err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// CreateBlockConfig handles POST /v1/staff/block-configs.
func (h *StaffHandler) CreateBlockConfig(c echo.Context) error {
	var req struct {
		EventTypeID   uint64          `json:"event_type_id"`
		Name          string          `json:"name"`
		Size          int             `json:"size"`
		DurationWeeks *int            `json:"duration"`
		Course        bool            `json:"course"`
		Cost          decimal.Decimal `json:"cost"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	if req.EventTypeID == 0 || req.Size < 1 || req.Cost.IsNegative() {
		return badRequest(c, "event_type_id, size and a non-negative cost required")
	}
	if req.DurationWeeks != nil && *req.DurationWeeks < 1 {
		return badRequest(c, "duration must be positive")
	}
	bc := model.BlockConfig{
		EventTypeID: req.EventTypeID, Name: strings.TrimSpace(req.Name), Size: req.Size,
		DurationWeeks: req.DurationWeeks, Course: req.Course, Cost: req.Cost, Active: true,
	}
	ctx := c.Request().Context()
	err := h.Store.WithinTx(ctx, func(tx repository.Tx) error {
		if _, err := tx.GetEventType(ctx, bc.EventTypeID); err != nil {
			return err
		}
		return tx.CreateBlockConfig(ctx, &bc)
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"id": bc.ID, "name": bc.Name})
}

// Register handles POST /v1/staff/bookings/:id/register.
func (h *StaffHandler) Register(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	var req struct {
		Attended bool `json:"attended"`
		NoShow   bool `json:"no_show"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Bookings.SetAttended(c.Request().Context(), middleware.Identity(c), id, req.Attended, req.NoShow)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(*b))
}

// MarkInvoicePaid handles POST /v1/staff/invoices/:ref/paid.  It stands in
// for the payment gateway callback.
func (h *StaffHandler) MarkInvoicePaid(c echo.Context) error {
	ref := strings.TrimSpace(c.Param("ref"))
	if ref == "" {
		return badRequest(c, "invoice reference required")
	}
	inv, err := h.Checkout.MarkInvoicePaid(c.Request().Context(), ref)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toInvoiceView(*inv))
}

type voucherReq struct {
	Code            string           `json:"code"`
	Scope           string           `json:"scope"`
	DiscountPercent *int             `json:"discount"`
	DiscountAmount  *decimal.Decimal `json:"discount_amount"`
	StartDate       *time.Time       `json:"start_date"`
	ExpiryDate      *time.Time       `json:"expiry_date"`
	MaxVouchers     *int             `json:"max_vouchers"`
	MaxPerUser      *int             `json:"max_per_user"`
	ItemCount       int              `json:"item_count"`
	BlockConfigIDs  []uint64         `json:"block_config_ids"`
	Activated       *bool            `json:"activated"`
}

// CreateVoucher handles POST /v1/staff/vouchers.
func (h *StaffHandler) CreateVoucher(c echo.Context) error {
	var req voucherReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	v := model.Voucher{
		Code:            strings.TrimSpace(req.Code),
		Scope:           model.VoucherScope(strings.ToLower(req.Scope)),
		DiscountPercent: req.DiscountPercent,
		ExpiryDate:      req.ExpiryDate,
		MaxVouchers:     req.MaxVouchers,
		MaxPerUser:      req.MaxPerUser,
		ItemCount:       req.ItemCount,
		BlockConfigIDs:  req.BlockConfigIDs,
		Activated:       true,
	}
	if v.Scope == "" {
		v.Scope = model.VoucherBlock
	}
	if req.DiscountAmount != nil {
		v.DiscountAmount = decimal.NewNullDecimal(*req.DiscountAmount)
	}
	if req.StartDate != nil {
		v.StartDate = req.StartDate.UTC()
	}
	if req.Activated != nil {
		v.Activated = *req.Activated
	}
	if err := h.Vouchers.Create(c.Request().Context(), middleware.Identity(c), &v); err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toVoucherView(v))
}

// PublishDisclaimer handles POST /v1/staff/disclaimers.  A zero version
// publishes as the next major version.
func (h *StaffHandler) PublishDisclaimer(c echo.Context) error {
	var req struct {
		Version decimal.Decimal `json:"version"`
		Content string          `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	p, err := h.Disclaimers.Publish(c.Request().Context(), disclaimer.Draft{Version: req.Version, Content: req.Content})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toDisclaimerView(*p))
}
