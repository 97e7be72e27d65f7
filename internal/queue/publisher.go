package queue

import (
    "context"
    "encoding/json"
    "log"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// QueueName is the durable queue carrying marketplace events.
const QueueName = "marketplace.events"

// AMQPPublisher publishes events to RabbitMQ. It dials per publish so a
// broker outage never leaves a broken connection behind; errors are logged
// and returned so callers can choose to ignore them.
type AMQPPublisher struct {
    URL string
}

func NewAMQPPublisher(url string) *AMQPPublisher { return &AMQPPublisher{URL: url} }

func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
    conn, err := amqp.Dial(p.URL)
    if err != nil {
        log.Printf("rabbitmq: dial failed: %v", err)
        return err
    }
    defer func() { _ = conn.Close() }()

    ch, err := conn.Channel()
    if err != nil {
        log.Printf("rabbitmq: channel open failed: %v", err)
        return err
    }
    defer func() { _ = ch.Close() }()

    if _, err := ch.QueueDeclare(QueueName, true, false, false, false, nil); err != nil {
        log.Printf("rabbitmq: queue declare failed: %v", err)
        return err
    }

    body, err := json.Marshal(ev)
    if err != nil {
        log.Printf("rabbitmq: marshal event failed: %v", err)
        return err
    }

    pub := amqp.Publishing{
        ContentType:  "application/json",
        DeliveryMode: amqp.Persistent,
        Timestamp:    time.Now().UTC(),
        Type:         ev.Type,
        Body:         body,
    }
    if err := ch.PublishWithContext(ctx, "", QueueName, false, false, pub); err != nil {
        log.Printf("rabbitmq: publish failed: %v", err)
        return err
    }
    return nil
}

// Direct hands events straight to the notification writer. It stands in for
// the broker when RABBITMQ_URL is not configured.
type Direct struct {
    Writer NotificationWriter
    NewID  func() string
}

func (d Direct) Publish(ctx context.Context, ev Event) error {
    return deliver(ctx, d.Writer, ev, d.NewID)
}
