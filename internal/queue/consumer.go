package queue

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"

    "github.com/iliyamo/mano-pro/internal/model"
)

// NotificationWriter persists notifications produced from events.
type NotificationWriter interface {
    Create(ctx context.Context, n *model.Notification) error
}

// Consumer reads marketplace events from RabbitMQ and writes one
// notification per recipient.
type Consumer struct {
    URL    string
    Writer NotificationWriter
    NewID  func() string
}

// Run connects to the broker and consumes until ctx is cancelled. Dial and
// channel failures are retried with exponential backoff capped at 30s;
// messages that fail to process are rejected without requeue so the loop
// keeps moving.
func (c *Consumer) Run(ctx context.Context) error {
    backoff := time.Second
    for {
        if ctx.Err() != nil {
            return ctx.Err()
        }
        conn, err := amqp.Dial(c.URL)
        if err != nil {
            log.Printf("events-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            if !sleep(ctx, backoff) {
                return ctx.Err()
            }
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second

        err = c.consumeLoop(ctx, conn)
        _ = conn.Close()
        if ctx.Err() != nil {
            return ctx.Err()
        }
        log.Printf("events-consumer: consume loop ended: %v; reconnecting", err)
        if !sleep(ctx, 2*time.Second) {
            return ctx.Err()
        }
    }
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("events-consumer: set QoS failed: %v", err)
    }
    if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
        return fmt.Errorf("queue declare: %w", err)
    }
    msgs, err := ch.Consume(QueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume: %w", err)
    }

    for {
        select {
        case <-ctx.Done():
            return ctx.Err()
        case d, ok := <-msgs:
            if !ok {
                return errors.New("deliveries channel closed")
            }
            if err := c.handle(ctx, d.Body); err != nil {
                log.Printf("events-consumer: handle message failed: %v", err)
                _ = d.Nack(false, false)
                continue
            }
            _ = d.Ack(false)
        }
    }
}

func (c *Consumer) handle(ctx context.Context, body []byte) error {
    var ev Event
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    return deliver(ctx, c.Writer, ev, c.NewID)
}

func deliver(ctx context.Context, w NotificationWriter, ev Event, newID func() string) error {
    for _, n := range NotificationsFor(ev, newID) {
        n := n
        if err := w.Create(ctx, &n); err != nil {
            return fmt.Errorf("write notification: %w", err)
        }
    }
    return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
    t := time.NewTimer(d)
    defer t.Stop()
    select {
    case <-ctx.Done():
        return false
    case <-t.C:
        return true
    }
}
