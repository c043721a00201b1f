package model

import "errors"

// Booking and catalog errors.  Every one of them aborts the surrounding unit
// of work; none is retried.
var (
	ErrEventFull                = errors.New("event is full")
	ErrEventCancelled           = errors.New("event is cancelled")
	ErrEventStarted             = errors.New("event has already started")
	ErrCourseFull               = errors.New("course is full")
	ErrCourseCancelled          = errors.New("course is cancelled")
	ErrNoCreditAvailable        = errors.New("no valid block or subscription available")
	ErrDuplicateBooking         = errors.New("booking already exists")
	ErrInvalidStateTransition   = errors.New("invalid booking state transition")
	ErrInconsistentBookingFlags = errors.New("booking cannot be both no-show and cancelled or attended")
	ErrDisclaimerRequired       = errors.New("an active disclaimer is required")
	ErrCourseMismatch           = errors.New("event type does not match course")
	ErrCourseAlreadyConfigured  = errors.New("course already has its full number of events")
	ErrInvalidConfig            = errors.New("invalid configuration")
)

// Voucher errors.
var (
	ErrVoucherExpired       = errors.New("voucher has expired")
	ErrVoucherNotStarted    = errors.New("voucher is not valid yet")
	ErrVoucherNotActivated  = errors.New("voucher has not been activated")
	ErrVoucherExhausted     = errors.New("voucher has reached its maximum uses")
	ErrVoucherNotApplicable = errors.New("voucher is not valid for the items in the cart")
)
