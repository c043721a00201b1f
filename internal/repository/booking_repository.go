package repository

import (
	"context"

	"github.com/iliyamo/studio-booking/internal/model"
)

const bookingCols = `b.id, b.user_id, b.event_id, b.status, b.no_show, b.attended, b.block_id, b.subscription_id, b.date_booked, b.date_rebooked`

func scanBooking(r rowScanner) (model.Booking, error) {
	var b model.Booking
	err := r.Scan(&b.ID, &b.UserID, &b.EventID, &b.Status, &b.NoShow, &b.Attended,
		&b.BlockID, &b.SubscriptionID, &b.DateBooked, &b.DateRebooked)
	return b, err
}

func scanBookedEvent(r rowScanner) (model.BookedEvent, error) {
	var (
		b model.Booking
		e model.Event
	)
	err := r.Scan(&b.ID, &b.UserID, &b.EventID, &b.Status, &b.NoShow, &b.Attended,
		&b.BlockID, &b.SubscriptionID, &b.DateBooked, &b.DateRebooked,
		&e.ID, &e.EventTypeID, &e.CourseID, &e.Name, &e.Start, &e.DurationMinutes,
		&e.MaxParticipants, &e.Cancelled, &e.ShowOnSite, &e.CreatedAt)
	return model.BookedEvent{Booking: b, Event: e}, err
}

func (t *mysqlTx) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx, "SELECT "+bookingCols+" FROM bookings b WHERE b.id=?", id))
	if err != nil {
		return nil, notFound(err)
	}
	return &b, nil
}

func (t *mysqlTx) FindBooking(ctx context.Context, userID, eventID uint64) (*model.Booking, error) {
	b, err := scanBooking(t.tx.QueryRowContext(ctx,
		"SELECT "+bookingCols+" FROM bookings b WHERE b.user_id=? AND b.event_id=? LIMIT 1", userID, eventID))
	if err != nil {
		if err = notFound(err); err == ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

// CreateBooking relies on the (user_id, event_id) unique key to report a
// concurrent duplicate as ErrConflict.
func (t *mysqlTx) CreateBooking(ctx context.Context, b *model.Booking) error {
	if b.DateBooked.IsZero() {
		b.DateBooked = t.now()
	}
	id, err := t.insert(ctx,
		`INSERT INTO bookings (user_id, event_id, status, no_show, attended, block_id, subscription_id, date_booked, date_rebooked)
		 VALUES (?,?,?,?,?,?,?,?,?)`,
		b.UserID, b.EventID, b.Status, b.NoShow, b.Attended, b.BlockID, b.SubscriptionID, b.DateBooked, b.DateRebooked)
	if err != nil {
		return err
	}
	b.ID = id
	return nil
}

func (t *mysqlTx) SaveBooking(ctx context.Context, b *model.Booking) error {
	return t.update(ctx, "bookings", b.ID,
		`UPDATE bookings SET status=?, no_show=?, attended=?, block_id=?, subscription_id=?, date_booked=?, date_rebooked=?
		 WHERE id=?`,
		b.Status, b.NoShow, b.Attended, b.BlockID, b.SubscriptionID, b.DateBooked, b.DateRebooked, b.ID)
}

func (t *mysqlTx) DeleteBooking(ctx context.Context, id uint64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM bookings WHERE id=?", id)
	return err
}

func (t *mysqlTx) CountEventBookings(ctx context.Context, eventID uint64, includeNoShows bool) (int, error) {
	q := "SELECT COUNT(*) FROM bookings WHERE event_id=? AND status='OPEN'"
	if !includeNoShows {
		q += " AND no_show=0"
	}
	return t.count(ctx, q, eventID)
}

func (t *mysqlTx) listBookedEvents(ctx context.Context, where string, args ...any) ([]model.BookedEvent, error) {
	q := "SELECT " + bookingCols + ", " +
		"e.id, e.event_type_id, e.course_id, e.name, e.start, e.duration, e.max_participants, e.cancelled, e.show_on_site, e.created_at " +
		"FROM bookings b JOIN events e ON e.id = b.event_id WHERE " + where + " ORDER BY e.start, b.id"
	rows, err := t.tx.QueryContext(ctx, q, args...)
	return collect(rows, err, scanBookedEvent)
}

func (t *mysqlTx) ListBlockBookings(ctx context.Context, blockID uint64) ([]model.BookedEvent, error) {
	return t.listBookedEvents(ctx, "b.block_id=?", blockID)
}

func (t *mysqlTx) ListSubscriptionBookings(ctx context.Context, subscriptionID uint64) ([]model.BookedEvent, error) {
	return t.listBookedEvents(ctx, "b.subscription_id=?", subscriptionID)
}

func (t *mysqlTx) ListUserCourseBookings(ctx context.Context, userID, courseID uint64) ([]model.BookedEvent, error) {
	return t.listBookedEvents(ctx, "b.user_id=? AND e.course_id=?", userID, courseID)
}

// AddWaitingListUser is idempotent: an existing entry is returned as is.
func (t *mysqlTx) AddWaitingListUser(ctx context.Context, w *model.WaitingListUser) error {
	err := t.tx.QueryRowContext(ctx,
		"SELECT id, user_id, event_id, date_joined FROM waiting_list_users WHERE user_id=? AND event_id=? LIMIT 1",
		w.UserID, w.EventID).Scan(&w.ID, &w.UserID, &w.EventID, &w.DateJoined)
	if err == nil {
		return nil
	}
	if notFound(err) != ErrNotFound {
		return err
	}
	if w.DateJoined.IsZero() {
		w.DateJoined = t.now()
	}
	id, err := t.insert(ctx,
		"INSERT INTO waiting_list_users (user_id, event_id, date_joined) VALUES (?,?,?)",
		w.UserID, w.EventID, w.DateJoined)
	if err != nil {
		return err
	}
	w.ID = id
	return nil
}

func (t *mysqlTx) RemoveWaitingListUser(ctx context.Context, userID, eventID uint64) error {
	_, err := t.tx.ExecContext(ctx, "DELETE FROM waiting_list_users WHERE user_id=? AND event_id=?", userID, eventID)
	return err
}

func (t *mysqlTx) ListWaitingList(ctx context.Context, eventID uint64) ([]model.WaitingListUser, error) {
	rows, err := t.tx.QueryContext(ctx,
		"SELECT id, user_id, event_id, date_joined FROM waiting_list_users WHERE event_id=? ORDER BY id", eventID)
	return collect(rows, err, func(r rowScanner) (model.WaitingListUser, error) {
		var w model.WaitingListUser
		err := r.Scan(&w.ID, &w.UserID, &w.EventID, &w.DateJoined)
		return w, err
	})
}
