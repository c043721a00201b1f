package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

func (t *tx) GetBooking(ctx context.Context, id uint64) (*model.Booking, error) {
	b, ok := t.st.bookings[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	b = cloneBooking(b)
	return &b, nil
}

func (t *tx) FindBooking(ctx context.Context, userID, eventID uint64) (*model.Booking, error) {
	for _, b := range t.st.bookings {
		if b.UserID == userID && b.EventID == eventID {
			b = cloneBooking(b)
			return &b, nil
		}
	}
	return nil, nil
}

func (t *tx) CreateBooking(ctx context.Context, b *model.Booking) error {
	for _, existing := range t.st.bookings {
		if existing.UserID == b.UserID && existing.EventID == b.EventID {
			return repository.ErrConflict
		}
	}
	b.ID = t.st.next("bookings")
	if b.DateBooked.IsZero() {
		b.DateBooked = t.now()
	}
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *tx) SaveBooking(ctx context.Context, b *model.Booking) error {
	if _, ok := t.st.bookings[b.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.bookings[b.ID] = *b
	return nil
}

func (t *tx) DeleteBooking(ctx context.Context, id uint64) error {
	delete(t.st.bookings, id)
	return nil
}

func (t *tx) CountEventBookings(ctx context.Context, eventID uint64, includeNoShows bool) (int, error) {
	n := 0
	for _, b := range t.st.bookings {
		if b.EventID != eventID || b.Status != model.BookingOpen {
			continue
		}
		if b.NoShow && !includeNoShows {
			continue
		}
		n++
	}
	return n, nil
}

func (t *tx) bookedEvents(match func(model.Booking) bool) []model.BookedEvent {
	var out []model.BookedEvent
	for _, id := range sortedKeys(t.st.bookings) {
		b := t.st.bookings[id]
		if !match(b) {
			continue
		}
		e := t.st.events[b.EventID]
		e.CourseID = copyID(e.CourseID)
		out = append(out, model.BookedEvent{Booking: cloneBooking(b), Event: e})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Event.Start.Before(out[j].Event.Start) })
	return out
}

func (t *tx) ListBlockBookings(ctx context.Context, blockID uint64) ([]model.BookedEvent, error) {
	return t.bookedEvents(func(b model.Booking) bool {
		return b.BlockID != nil && *b.BlockID == blockID
	}), nil
}

func (t *tx) ListSubscriptionBookings(ctx context.Context, subscriptionID uint64) ([]model.BookedEvent, error) {
	return t.bookedEvents(func(b model.Booking) bool {
		return b.SubscriptionID != nil && *b.SubscriptionID == subscriptionID
	}), nil
}

func (t *tx) ListUserCourseBookings(ctx context.Context, userID, courseID uint64) ([]model.BookedEvent, error) {
	return t.bookedEvents(func(b model.Booking) bool {
		if b.UserID != userID {
			return false
		}
		e := t.st.events[b.EventID]
		return e.CourseID != nil && *e.CourseID == courseID
	}), nil
}

func (t *tx) AddWaitingListUser(ctx context.Context, w *model.WaitingListUser) error {
	for _, existing := range t.st.waiting {
		if existing.UserID == w.UserID && existing.EventID == w.EventID {
			*w = existing
			return nil
		}
	}
	w.ID = t.st.next("waiting_list_users")
	if w.DateJoined.IsZero() {
		w.DateJoined = t.now()
	}
	t.st.waiting[w.ID] = *w
	return nil
}

func (t *tx) RemoveWaitingListUser(ctx context.Context, userID, eventID uint64) error {
	for id, w := range t.st.waiting {
		if w.UserID == userID && w.EventID == eventID {
			delete(t.st.waiting, id)
		}
	}
	return nil
}

func (t *tx) ListWaitingList(ctx context.Context, eventID uint64) ([]model.WaitingListUser, error) {
	var out []model.WaitingListUser
	for _, id := range sortedKeys(t.st.waiting) {
		if w := t.st.waiting[id]; w.EventID == eventID {
			out = append(out, w)
		}
	}
	return out, nil
}

func cloneBooking(b model.Booking) model.Booking {
	b.BlockID = copyID(b.BlockID)
	b.SubscriptionID = copyID(b.SubscriptionID)
	b.DateRebooked = copyTime(b.DateRebooked)
	return b
}
