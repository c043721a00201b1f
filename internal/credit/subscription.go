package credit

import (
	"context"
	"fmt"
	"time"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/studiotime"
)

// SubscriptionExpiry returns start + config duration, or nil while the
// subscription has no start date.
func SubscriptionExpiry(start *time.Time, cfg model.SubscriptionConfig) *time.Time {
	if start == nil {
		return nil
	}
	var e time.Time
	switch cfg.DurationUnit {
	case model.DurationMonths:
		e = studiotime.AddMonths(*start, cfg.Duration)
	default:
		e = studiotime.AddWeeks(*start, cfg.Duration)
	}
	return &e
}

// FirstBookingStart returns midnight UTC of the earliest open booking's
// event date (no-shows included), or nil when nothing is booked.
func FirstBookingStart(bookings []model.BookedEvent) *time.Time {
	var earliest *time.Time
	for _, be := range bookings {
		if !be.Booking.IsOpen() {
			continue
		}
		s := be.Event.Start
		if earliest == nil || s.Before(*earliest) {
			earliest = &s
		}
	}
	if earliest == nil {
		return nil
	}
	d := studiotime.StartOfDayUTC(*earliest)
	return &d
}

// RecomputeSubscriptionWindow re-derives the start date of first-booking
// subscriptions from their bookings and the expiry of every subscription,
// then saves it.
func (inv *Inventory) RecomputeSubscriptionWindow(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	if s.Config == nil {
		return fmt.Errorf("subscription %d: config not loaded", s.ID)
	}
	if s.Config.StartOptions == model.StartFirstBooking {
		bookings, err := tx.ListSubscriptionBookings(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("list subscription bookings: %w", err)
		}
		s.StartDate = FirstBookingStart(bookings)
	}
	s.ExpiryDate = SubscriptionExpiry(s.StartDate, *s.Config)
	if err := tx.SaveSubscription(ctx, s); err != nil {
		return fmt.Errorf("save subscription %d: %w", s.ID, err)
	}
	return nil
}

// MarkSubscriptionPaid records payment.  Signup-date subscriptions whose
// start date has already passed restart at the beginning of today.
func (inv *Inventory) MarkSubscriptionPaid(ctx context.Context, tx repository.Tx, s *model.Subscription) error {
	now := inv.now()
	if !s.Paid {
		s.Paid = true
		s.PurchaseDate = now
	}
	if s.Status == "" || s.Status == model.SubscriptionPending {
		s.Status = model.SubscriptionActive
	}
	if s.Config != nil && s.Config.StartOptions == model.StartSignupDate {
		today := studiotime.StartOfDayUTC(now)
		if s.StartDate == nil || s.StartDate.Before(today) {
			s.StartDate = &today
		}
	}
	return inv.RecomputeSubscriptionWindow(ctx, tx, s)
}

// UsageWindow returns the [from, to) accounting window of a usage cap for an
// event starting at eventStart.  Week windows begin on the subscription
// start's weekday and month windows on its day of month; an unstarted
// subscription anchors on the event itself.
func UsageWindow(unit model.AllowanceUnit, subStart *time.Time, eventStart time.Time, loc *time.Location) (time.Time, time.Time) {
	ev := eventStart.In(loc)
	evDay := time.Date(ev.Year(), ev.Month(), ev.Day(), 0, 0, 0, 0, loc)
	anchor := evDay
	if subStart != nil {
		a := subStart.In(loc)
		anchor = time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	}
	switch unit {
	case model.AllowanceWeek:
		back := (int(evDay.Weekday()) - int(anchor.Weekday()) + 7) % 7
		from := evDay.AddDate(0, 0, -back)
		return from.UTC(), from.AddDate(0, 0, 7).UTC()
	case model.AllowanceMonth:
		from := anchoredMonthStart(evDay, anchor.Day())
		return from.UTC(), studiotime.AddMonths(from, 1).UTC()
	default:
		return evDay.UTC(), evDay.AddDate(0, 0, 1).UTC()
	}
}

// anchoredMonthStart finds the latest date on or before day whose day of
// month is anchorDay, clamped to short months.
func anchoredMonthStart(day time.Time, anchorDay int) time.Time {
	clamp := func(y int, m time.Month) time.Time {
		d := anchorDay
		if n := studiotime.DaysIn(y, m); d > n {
			d = n
		}
		return time.Date(y, m, d, 0, 0, 0, 0, day.Location())
	}
	candidate := clamp(day.Year(), day.Month())
	if candidate.After(day) {
		prev := time.Date(day.Year(), day.Month()-1, 1, 0, 0, 0, 0, day.Location())
		candidate = clamp(prev.Year(), prev.Month())
	}
	return candidate
}

// SubscriptionValidForEvent reports whether the subscription may pay for the
// event.  course must be the event's course when it has one.  Usage caps
// count the subscription's other OPEN bookings of the same event type in
// the cap's window; no-shows count only when the config says so.  An
// existing active booking for this very event always passes.
func (inv *Inventory) SubscriptionValidForEvent(ctx context.Context, tx repository.Tx, s model.Subscription, ev model.Event, course *model.Course) (bool, error) {
	if !s.Paid || s.Status != model.SubscriptionActive || s.Config == nil {
		return false, nil
	}
	allowance, ok := s.Config.Bookable(ev.EventTypeID)
	if !ok {
		return false, nil
	}
	if ev.InCourse() && (course == nil || !course.AllowDropIn) {
		return false, nil
	}
	if s.StartDate == nil && s.Config.StartOptions != model.StartFirstBooking {
		return false, nil
	}
	if s.StartDate != nil && s.StartDate.After(ev.Start) {
		return false, nil
	}
	if s.ExpiryDate != nil && !s.ExpiryDate.After(ev.Start) {
		return false, nil
	}
	bookings, err := tx.ListSubscriptionBookings(ctx, s.ID)
	if err != nil {
		return false, fmt.Errorf("list subscription bookings: %w", err)
	}
	for _, be := range bookings {
		if be.Event.ID == ev.ID && be.Booking.IsActive() {
			return true, nil
		}
	}
	if allowance.AllowedNumber <= 0 {
		return true, nil
	}
	from, to := UsageWindow(allowance.AllowedUnit, s.StartDate, ev.Start, inv.loc)
	used := 0
	for _, be := range bookings {
		if be.Event.ID == ev.ID || be.Event.EventTypeID != ev.EventTypeID {
			continue
		}
		if !be.Booking.IsOpen() || (be.Booking.NoShow && !s.Config.IncludeNoShowsInUsage) {
			continue
		}
		if be.Event.Start.Before(from) || !be.Event.Start.Before(to) {
			continue
		}
		used++
	}
	return used < allowance.AllowedNumber, nil
}

// DeleteSubscription removes a subscription, detaching any bookings.
func (inv *Inventory) DeleteSubscription(ctx context.Context, tx repository.Tx, s model.Subscription) error {
	bookings, err := tx.ListSubscriptionBookings(ctx, s.ID)
	if err != nil {
		return fmt.Errorf("list subscription bookings: %w", err)
	}
	for _, be := range bookings {
		bk := be.Booking
		bk.SubscriptionID = nil
		if err := tx.SaveBooking(ctx, &bk); err != nil {
			return fmt.Errorf("detach booking %d: %w", bk.ID, err)
		}
	}
	if err := tx.DeleteSubscription(ctx, s.ID); err != nil {
		return fmt.Errorf("delete subscription %d: %w", s.ID, err)
	}
	return nil
}
