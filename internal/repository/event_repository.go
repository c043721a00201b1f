package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/iliyamo/studio-booking/internal/model"
)

const eventCols = `id, event_type_id, course_id, name, start, duration, max_participants, cancelled, show_on_site, created_at`

func scanEvent(r rowScanner) (model.Event, error) {
	var e model.Event
	err := r.Scan(&e.ID, &e.EventTypeID, &e.CourseID, &e.Name, &e.Start, &e.DurationMinutes,
		&e.MaxParticipants, &e.Cancelled, &e.ShowOnSite, &e.CreatedAt)
	return e, err
}

func (t *mysqlTx) GetEventType(ctx context.Context, id uint64) (*model.EventType, error) {
	var et model.EventType
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, name, cancellation_period, allow_booking_cancellation FROM event_types WHERE id=?",
		id).Scan(&et.ID, &et.Name, &et.CancellationPeriodHours, &et.AllowBookingCancellation)
	if err != nil {
		return nil, notFound(err)
	}
	return &et, nil
}

func (t *mysqlTx) CreateEventType(ctx context.Context, et *model.EventType) error {
	id, err := t.insert(ctx,
		"INSERT INTO event_types (name, cancellation_period, allow_booking_cancellation) VALUES (?,?,?)",
		et.Name, et.CancellationPeriodHours, et.AllowBookingCancellation)
	if err != nil {
		return err
	}
	et.ID = id
	return nil
}

func (t *mysqlTx) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRowContext(ctx, "SELECT "+eventCols+" FROM events WHERE id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

// LockEvent takes an exclusive row lock so concurrent bookings for the same
// event serialize on it until commit.
func (t *mysqlTx) LockEvent(ctx context.Context, id uint64) (*model.Event, error) {
	e, err := scanEvent(t.tx.QueryRowContext(ctx, "SELECT "+eventCols+" FROM events WHERE id=? FOR UPDATE", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &e, nil
}

func (t *mysqlTx) CreateEvent(ctx context.Context, e *model.Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	id, err := t.insert(ctx,
		`INSERT INTO events (event_type_id, course_id, name, start, duration, max_participants, cancelled, show_on_site, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		e.EventTypeID, e.CourseID, e.Name, e.Start.UTC(), e.DurationMinutes, e.MaxParticipants, e.Cancelled, e.ShowOnSite, e.CreatedAt)
	if err != nil {
		return err
	}
	e.ID = id
	return nil
}

func (t *mysqlTx) SaveEvent(ctx context.Context, e *model.Event) error {
	return t.update(ctx, "events", e.ID,
		`UPDATE events SET event_type_id=?, course_id=?, name=?, start=?, duration=?, max_participants=?, cancelled=?, show_on_site=?
		 WHERE id=?`,
		e.EventTypeID, e.CourseID, e.Name, e.Start.UTC(), e.DurationMinutes, e.MaxParticipants, e.Cancelled, e.ShowOnSite, e.ID)
}

func (t *mysqlTx) ListCourseEvents(ctx context.Context, courseID uint64) ([]model.Event, error) {
	rows, err := t.tx.QueryContext(ctx, "SELECT "+eventCols+" FROM events WHERE course_id=? ORDER BY start, id", courseID)
	return collect(rows, err, scanEvent)
}

const courseCols = `id, event_type_id, name, number_of_events, max_participants, show_on_site, allow_drop_in, allow_partial_booking, cancelled, created_at`

func (t *mysqlTx) GetCourse(ctx context.Context, id uint64) (*model.Course, error) {
	var c model.Course
	err := t.tx.QueryRowContext(ctx, "SELECT "+courseCols+" FROM courses WHERE id=?", id).Scan(
		&c.ID, &c.EventTypeID, &c.Name, &c.NumberOfEvents, &c.MaxParticipants, &c.ShowOnSite,
		&c.AllowDropIn, &c.AllowPartialBooking, &c.Cancelled, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (t *mysqlTx) CreateCourse(ctx context.Context, c *model.Course) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.now()
	}
	id, err := t.insert(ctx,
		`INSERT INTO courses (event_type_id, name, number_of_events, max_participants, show_on_site, allow_drop_in, allow_partial_booking, cancelled, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		c.EventTypeID, c.Name, c.NumberOfEvents, c.MaxParticipants, c.ShowOnSite, c.AllowDropIn, c.AllowPartialBooking, c.Cancelled, c.CreatedAt)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

func (t *mysqlTx) SaveCourse(ctx context.Context, c *model.Course) error {
	return t.update(ctx, "courses", c.ID,
		`UPDATE courses SET event_type_id=?, name=?, number_of_events=?, max_participants=?, show_on_site=?, allow_drop_in=?, allow_partial_booking=?, cancelled=?
		 WHERE id=?`,
		c.EventTypeID, c.Name, c.NumberOfEvents, c.MaxParticipants, c.ShowOnSite, c.AllowDropIn, c.AllowPartialBooking, c.Cancelled, c.ID)
}

const blockConfigCols = `id, event_type_id, name, size, duration, course, cost, active`

func scanBlockConfig(r rowScanner) (model.BlockConfig, error) {
	var c model.BlockConfig
	err := r.Scan(&c.ID, &c.EventTypeID, &c.Name, &c.Size, &c.DurationWeeks, &c.Course, &c.Cost, &c.Active)
	return c, err
}

func (t *mysqlTx) GetBlockConfig(ctx context.Context, id uint64) (*model.BlockConfig, error) {
	c, err := scanBlockConfig(t.tx.QueryRowContext(ctx, "SELECT "+blockConfigCols+" FROM block_configs WHERE id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (t *mysqlTx) CreateBlockConfig(ctx context.Context, c *model.BlockConfig) error {
	id, err := t.insert(ctx,
		"INSERT INTO block_configs (event_type_id, name, size, duration, course, cost, active) VALUES (?,?,?,?,?,?,?)",
		c.EventTypeID, c.Name, c.Size, c.DurationWeeks, c.Course, c.Cost, c.Active)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}

const subscriptionConfigCols = `id, name, duration, duration_units, start_options, start_date, recurring, active,
	advance_purchase_allowed, partial_purchase_allowed, include_no_shows_in_usage, cost, cost_per_week, bookable_event_types`

func scanSubscriptionConfig(r rowScanner) (model.SubscriptionConfig, error) {
	var (
		c        model.SubscriptionConfig
		bookable []byte
	)
	err := r.Scan(&c.ID, &c.Name, &c.Duration, &c.DurationUnit, &c.StartOptions, &c.StartDate, &c.Recurring, &c.Active,
		&c.AdvancePurchaseAllowed, &c.PartialPurchaseAllowed, &c.IncludeNoShowsInUsage, &c.Cost, &c.CostPerWeek, &bookable)
	if err != nil {
		return c, err
	}
	if len(bookable) > 0 {
		if err := json.Unmarshal(bookable, &c.BookableEventTypes); err != nil {
			return c, fmt.Errorf("subscription config %d bookable_event_types: %w", c.ID, err)
		}
	}
	return c, nil
}

func (t *mysqlTx) GetSubscriptionConfig(ctx context.Context, id uint64) (*model.SubscriptionConfig, error) {
	c, err := scanSubscriptionConfig(t.tx.QueryRowContext(ctx, "SELECT "+subscriptionConfigCols+" FROM subscription_configs WHERE id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

func (t *mysqlTx) CreateSubscriptionConfig(ctx context.Context, c *model.SubscriptionConfig) error {
	bookable, err := json.Marshal(c.BookableEventTypes)
	if err != nil {
		return err
	}
	id, err := t.insert(ctx,
		`INSERT INTO subscription_configs (name, duration, duration_units, start_options, start_date, recurring, active,
			advance_purchase_allowed, partial_purchase_allowed, include_no_shows_in_usage, cost, cost_per_week, bookable_event_types)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		c.Name, c.Duration, c.DurationUnit, c.StartOptions, c.StartDate, c.Recurring, c.Active,
		c.AdvancePurchaseAllowed, c.PartialPurchaseAllowed, c.IncludeNoShowsInUsage, c.Cost, c.CostPerWeek, bookable)
	if err != nil {
		return err
	}
	c.ID = id
	return nil
}
