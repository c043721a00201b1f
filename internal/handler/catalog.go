package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/catalog"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// CatalogHandler serves the public, read-only view of events and courses.
// Responses are safe to cache; staff writes purge the cache.
type CatalogHandler struct {
	Store repository.Store
	Now   func() time.Time
}

func NewCatalogHandler(store repository.Store) *CatalogHandler {
	return &CatalogHandler{Store: store, Now: func() time.Time { return time.Now().UTC() }}
}

func describeEvent(ctx context.Context, tx repository.Tx, ev model.Event) (eventView, error) {
	v := toEventView(ev)
	n, err := catalog.EventBookingCount(ctx, tx, ev)
	if err != nil {
		return v, err
	}
	v.Booked = n
	v.Full = n >= ev.MaxParticipants
	return v, nil
}

// GetEvent handles GET /v1/events/:id.  Hidden events are not found.
func (h *CatalogHandler) GetEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid event id")
	}
	ctx := c.Request().Context()
	var out eventView
	err := h.Store.WithinTx(ctx, func(tx repository.Tx) error {
		ev, err := tx.GetEvent(ctx, id)
		if err != nil {
			return err
		}
		if !ev.ShowOnSite {
			return repository.ErrNotFound
		}
		out, err = describeEvent(ctx, tx, *ev)
		return err
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// GetCourse handles GET /v1/courses/:id.  A course is listed once it can
// be visible; only events that have not started are included.
func (h *CatalogHandler) GetCourse(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid course id")
	}
	ctx := c.Request().Context()
	now := h.Now()
	var out courseView
	err := h.Store.WithinTx(ctx, func(tx repository.Tx) error {
		course, err := tx.GetCourse(ctx, id)
		if err != nil {
			return err
		}
		members, err := tx.ListCourseEvents(ctx, id)
		if err != nil {
			return err
		}
		if !course.ShowOnSite || !catalog.CanBeVisible(*course, members) {
			return repository.ErrNotFound
		}
		full, err := catalog.CourseFull(ctx, tx, *course)
		if err != nil {
			return err
		}
		out = courseView{
			ID: course.ID, EventTypeID: course.EventTypeID, Name: course.Name,
			NumberOfEvents: course.NumberOfEvents, MaxParticipants: course.MaxParticipants,
			AllowDropIn: course.AllowDropIn, AllowPartialBooking: course.AllowPartialBooking,
			Cancelled: course.Cancelled, Configured: catalog.IsConfigured(*course, members),
			Full: full, Events: []eventView{},
		}
		for _, ev := range catalog.EventsLeft(members, now) {
			v, err := describeEvent(ctx, tx, ev)
			if err != nil {
				return err
			}
			out.Events = append(out.Events, v)
		}
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}
