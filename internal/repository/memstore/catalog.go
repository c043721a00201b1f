package memstore

import (
	"context"
	"sort"

	"github.com/iliyamo/studio-booking/internal/model"
	"github.com/iliyamo/studio-booking/internal/repository"
)

func (t *tx) GetEventType(ctx context.Context, id uint64) (*model.EventType, error) {
	et, ok := t.st.eventTypes[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &et, nil
}

func (t *tx) CreateEventType(ctx context.Context, et *model.EventType) error {
	et.ID = t.st.next("event_types")
	t.st.eventTypes[et.ID] = *et
	return nil
}

func (t *tx) GetEvent(ctx context.Context, id uint64) (*model.Event, error) {
	e, ok := t.st.events[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.CourseID = copyID(e.CourseID)
	return &e, nil
}

// LockEvent is GetEvent: the store mutex already serializes units of work.
func (t *tx) LockEvent(ctx context.Context, id uint64) (*model.Event, error) {
	return t.GetEvent(ctx, id)
}

func (t *tx) CreateEvent(ctx context.Context, e *model.Event) error {
	e.ID = t.st.next("events")
	if e.CreatedAt.IsZero() {
		e.CreatedAt = t.now()
	}
	t.st.events[e.ID] = *e
	return nil
}

func (t *tx) SaveEvent(ctx context.Context, e *model.Event) error {
	if _, ok := t.st.events[e.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.events[e.ID] = *e
	return nil
}

func (t *tx) ListCourseEvents(ctx context.Context, courseID uint64) ([]model.Event, error) {
	var out []model.Event
	for _, id := range sortedKeys(t.st.events) {
		e := t.st.events[id]
		if e.CourseID != nil && *e.CourseID == courseID {
			e.CourseID = copyID(e.CourseID)
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (t *tx) GetCourse(ctx context.Context, id uint64) (*model.Course, error) {
	c, ok := t.st.courses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (t *tx) CreateCourse(ctx context.Context, c *model.Course) error {
	c.ID = t.st.next("courses")
	if c.CreatedAt.IsZero() {
		c.CreatedAt = t.now()
	}
	t.st.courses[c.ID] = *c
	return nil
}

func (t *tx) SaveCourse(ctx context.Context, c *model.Course) error {
	if _, ok := t.st.courses[c.ID]; !ok {
		return repository.ErrNotFound
	}
	t.st.courses[c.ID] = *c
	return nil
}

func (t *tx) GetBlockConfig(ctx context.Context, id uint64) (*model.BlockConfig, error) {
	c, ok := t.st.blockConfigs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (t *tx) CreateBlockConfig(ctx context.Context, c *model.BlockConfig) error {
	c.ID = t.st.next("block_configs")
	t.st.blockConfigs[c.ID] = *c
	return nil
}

func (t *tx) GetSubscriptionConfig(ctx context.Context, id uint64) (*model.SubscriptionConfig, error) {
	c, ok := t.st.subscriptionConfigs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (t *tx) CreateSubscriptionConfig(ctx context.Context, c *model.SubscriptionConfig) error {
	c.ID = t.st.next("subscription_configs")
	t.st.subscriptionConfigs[c.ID] = *c
	return nil
}
