// Package queue_publisher publishes booking notifications to RabbitMQ.
// Failures are logged and returned so callers can ignore them without
// interrupting the booking that triggered them.
package queue_publisher

import (
    "context"
    "encoding/json"
    "log"
    "sync"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/studio-booking/internal/events"
    q "github.com/iliyamo/studio-booking/internal/queue"
)

// Sender delivers one encoded message.  The AMQP implementation is the
// default; tests substitute their own.
type Sender interface {
    Send(ctx context.Context, queueName string, body []byte) error
}

// Publisher turns bus events into queued notifications.
type Publisher struct {
    queue  string
    sender Sender
}

// New returns a Publisher that dials url for each message.
func New(url, queueName string) *Publisher {
    return NewWithSender(queueName, &amqpSender{url: url})
}

// NewWithSender returns a Publisher over an arbitrary Sender.
func NewWithSender(queueName string, s Sender) *Publisher {
    if queueName == "" {
        queueName = q.DefaultQueue
    }
    return &Publisher{queue: queueName, sender: s}
}

// Subscribe registers the publisher for the notified event kinds.  The
// handler never fails the bus: a broker outage only costs the message.
func (p *Publisher) Subscribe(bus *events.Bus) {
    bus.Subscribe(func(ctx context.Context, ev events.Event) error {
        _ = p.Publish(ctx, q.FromEvent(ev))
        return nil
    }, q.Notified...)
}

// Publish sends one notification as persistent JSON.
func (p *Publisher) Publish(ctx context.Context, n q.Notification) error {
    if len(n.Recipients) == 0 {
        return nil
    }
    body, err := json.Marshal(n)
    if err != nil {
        log.Printf("rabbitmq: marshal notification failed: %v", err)
        return err
    }
    if err := p.sender.Send(ctx, p.queue, body); err != nil {
        log.Printf("rabbitmq: publish %s failed: %v", n.Kind, err)
        return err
    }
    return nil
}

type amqpSender struct {
    url  string
    mu   sync.Mutex
    conn *amqp.Connection
}

// connection reuses one broker connection until it closes.
func (s *amqpSender) connection() (*amqp.Connection, error) {
    s.mu.Lock()
    defer s.mu.Unlock()
    if s.conn != nil && !s.conn.IsClosed() {
        return s.conn, nil
    }
    conn, err := amqp.Dial(s.url)
    if err != nil {
        return nil, err
    }
    s.conn = conn
    return conn, nil
}

func (s *amqpSender) Send(ctx context.Context, queueName string, body []byte) error {
    conn, err := s.connection()
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    // Durable so messages survive broker restarts.
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }
    return ch.PublishWithContext(ctx,
        "",        // default exchange
        queueName, // routing key = queue name
        false,     // mandatory
        false,     // immediate
        amqp.Publishing{
            ContentType:  "application/json",
            DeliveryMode: amqp.Persistent,
            Timestamp:    time.Now().UTC(),
            Body:         body,
        },
    )
}
