package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/studio-booking/internal/disclaimer"
	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

// statusFor maps engine errors onto HTTP status codes.  Unknown errors are
// 500s.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, model.ErrDisclaimerRequired):
		return http.StatusPreconditionFailed
	case errors.Is(err, model.ErrNoCreditAvailable):
		return http.StatusPaymentRequired
	case errors.Is(err, model.ErrEventFull),
		errors.Is(err, model.ErrEventCancelled),
		errors.Is(err, model.ErrEventStarted),
		errors.Is(err, model.ErrCourseFull),
		errors.Is(err, model.ErrCourseCancelled),
		errors.Is(err, model.ErrDuplicateBooking),
		errors.Is(err, model.ErrInvalidStateTransition),
		errors.Is(err, model.ErrCourseAlreadyConfigured),
		errors.Is(err, disclaimer.ErrAlreadySigned),
		errors.Is(err, repository.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, model.ErrVoucherExpired),
		errors.Is(err, model.ErrVoucherNotStarted),
		errors.Is(err, model.ErrVoucherNotActivated),
		errors.Is(err, model.ErrVoucherExhausted),
		errors.Is(err, model.ErrVoucherNotApplicable),
		errors.Is(err, model.ErrInconsistentBookingFlags),
		errors.Is(err, model.ErrCourseMismatch),
		errors.Is(err, model.ErrInvalidConfig),
		errors.Is(err, disclaimer.ErrUnchanged),
		errors.Is(err, disclaimer.ErrVersionNotNewer):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error.  Internal errors are logged and hidden.
func fail(c echo.Context, err error) error {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}
