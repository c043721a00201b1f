package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/booking"
	"github.com/iliyamo/studio-booking/internal/middleware"
)

// BookingHandler exposes the booking state machine to students and to
// adults booking for their managed accounts.
type BookingHandler struct {
	Bookings *booking.Service
}

func NewBookingHandler(b *booking.Service) *BookingHandler {
	return &BookingHandler{Bookings: b}
}

// bookingReq is accepted as JSON body or query string.
type bookingReq struct {
	ForUserID      uint64  `json:"for_user_id" query:"for_user_id"`
	BlockID        *uint64 `json:"block_id" query:"block_id"`
	SubscriptionID *uint64 `json:"subscription_id" query:"subscription_id"`
}

func (r bookingReq) options() booking.Options {
	return booking.Options{ForUserID: r.ForUserID, BlockID: r.BlockID, SubscriptionID: r.SubscriptionID}
}

func bindBooking(c echo.Context) (bookingReq, error) {
	var req bookingReq
	if c.Request().ContentLength == 0 {
		err := (&echo.DefaultBinder{}).BindQueryParams(c, &req)
		return req, err
	}
	err := c.Bind(&req)
	return req, err
}

// Book handles POST /v1/events/:id/book.  It opens a booking or reopens a
// cancelled one.
func (h *BookingHandler) Book(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	req, err := bindBooking(c)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Bookings.AttemptBooking(c.Request().Context(), middleware.Identity(c), eventID, req.options())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, toBookingView(*b))
}

// Toggle handles POST /v1/events/:id/toggle: book when no active booking
// exists, cancel otherwise.
func (h *BookingHandler) Toggle(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	req, err := bindBooking(c)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	b, err := h.Bookings.Toggle(c.Request().Context(), middleware.Identity(c), eventID, req.options())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(*b))
}

// Eligibility handles GET /v1/events/:id/eligibility.
func (h *BookingHandler) Eligibility(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	req, err := bindBooking(c)
	if err != nil {
		return badRequest(c, "invalid query")
	}
	out, err := h.Bookings.GetEligibility(c.Request().Context(), middleware.Identity(c), eventID, req.options())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// Cancel handles POST /v1/bookings/:id/cancel.
func (h *BookingHandler) Cancel(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid booking id")
	}
	b, err := h.Bookings.CancelBooking(c.Request().Context(), middleware.Identity(c), id)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, toBookingView(*b))
}

// BookCourse handles POST /v1/courses/:id/book.
func (h *BookingHandler) BookCourse(c echo.Context) error {
	courseID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	req, err := bindBooking(c)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	bookings, err := h.Bookings.BookCourse(c.Request().Context(), middleware.Identity(c), courseID, req.options())
	if err != nil {
		return fail(c, err)
	}
	out := make([]bookingView, 0, len(bookings))
	for _, b := range bookings {
		out = append(out, toBookingView(b))
	}
	return c.JSON(http.StatusCreated, echo.Map{"bookings": out})
}

// JoinWaitingList handles POST /v1/events/:id/waiting-list.
func (h *BookingHandler) JoinWaitingList(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	req, err := bindBooking(c)
	if err != nil {
		return badRequest(c, "invalid body")
	}
	w, err := h.Bookings.JoinWaitingList(c.Request().Context(), middleware.Identity(c), eventID, req.options())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"user_id":     w.UserID,
		"event_id":    w.EventID,
		"date_joined": w.DateJoined,
	})
}

// LeaveWaitingList handles DELETE /v1/events/:id/waiting-list.
func (h *BookingHandler) LeaveWaitingList(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	req, err := bindBooking(c)
	if err != nil {
		return badRequest(c, "invalid query")
	}
	if err := h.Bookings.LeaveWaitingList(c.Request().Context(), middleware.Identity(c), eventID, req.options()); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
