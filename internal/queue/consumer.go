package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "studio.notifications"

// StartNotificationConsumer connects to RabbitMQ, declares the durable
// notification queue and appends every message to logs/notifications.log
// as one line.  It reconnects with exponential backoff and never returns;
// run it in its own goroutine.  Malformed messages are rejected without
// requeueing.
func StartNotificationConsumer(url, queueName string) error {
    if queueName == "" {
        queueName = DefaultQueue
    }
    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        if err := consumeLoop(conn, queueName); err != nil {
            log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
            _ = conn.Close()
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection, queueName string) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("notify-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(queueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for d := range msgs {
        if err := HandleMessage("logs", d.Body); err != nil {
            log.Printf("notify-consumer: handle message failed: %v", err)
            _ = d.Nack(false, false)
            continue
        }
        _ = d.Ack(false)
    }
    return errors.New("deliveries channel closed")
}

// HandleMessage decodes one notification and appends it to
// dir/notifications.log.
func HandleMessage(dir string, body []byte) error {
    var n Notification
    if err := json.Unmarshal(body, &n); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    if n.Kind == "" {
        return errors.New("notification without kind")
    }
    if err := os.MkdirAll(dir, 0o755); err != nil {
        return fmt.Errorf("mkdir %s: %w", dir, err)
    }
    f, err := os.OpenFile(filepath.Join(dir, "notifications.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()

    if _, err := f.WriteString(FormatLine(n)); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}

// FormatLine renders a notification as a single log line.
func FormatLine(n Notification) string {
    to := make([]string, len(n.Recipients))
    for i, id := range n.Recipients {
        to[i] = fmt.Sprint(id)
    }
    return fmt.Sprintf("[%s] %s | user_id=%d | event_id=%d | booking_id=%d | subscription_id=%d | to=[%s]\n",
        n.OccurredAt, n.Kind, n.UserID, n.EventID, n.BookingID, n.SubscriptionID, strings.Join(to, ","))
}
