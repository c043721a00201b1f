package queue_publisher

import (
    "context"
    "encoding/json"
    "errors"
    "testing"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"

    "github.com/iliyamo/studio-booking/internal/events"
    q "github.com/iliyamo/studio-booking/internal/queue"
)

type recordingSender struct {
    queue  string
    bodies [][]byte
    err    error
}

func (r *recordingSender) Send(ctx context.Context, queueName string, body []byte) error {
    r.queue = queueName
    if r.err != nil {
        return r.err
    }
    r.bodies = append(r.bodies, body)
    return nil
}

func TestPublisherForwardsNotifiedKinds(t *testing.T) {
    s := &recordingSender{}
    bus := events.NewBus()
    NewWithSender("", s).Subscribe(bus)

    bus.Publish(context.Background(),
        events.Event{Kind: events.BookingCreated, UserID: 1, BookingID: 2},
        events.Event{Kind: events.CreditChanged, UserID: 1},
        events.Event{Kind: events.WaitingListSpaceAvailable, EventID: 3},
    )
    require.Len(t, s.bodies, 1, "credit changes are not notified and empty waiting lists are skipped")
    assert.Equal(t, q.DefaultQueue, s.queue)

    var n q.Notification
    require.NoError(t, json.Unmarshal(s.bodies[0], &n))
    assert.Equal(t, "booking.created", n.Kind)
    assert.Equal(t, uint64(2), n.BookingID)
}

func TestPublisherFailureDoesNotReachBus(t *testing.T) {
    s := &recordingSender{err: errors.New("broker down")}
    p := NewWithSender("custom", s)
    err := p.Publish(context.Background(), q.Notification{Kind: "booking.cancelled", Recipients: []uint64{1}})
    assert.Error(t, err)
    assert.Equal(t, "custom", s.queue)

    bus := events.NewBus()
    p.Subscribe(bus)
    assert.NotPanics(t, func() {
        bus.Publish(context.Background(), events.Event{Kind: events.BookingCancelled, UserID: 1})
    })
}
