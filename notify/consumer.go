package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/judyrop/epicerie-backend/checkout"
)

// Consumer drains the notification queue and hands every event to a Notifier.
type Consumer struct {
	ch       *amqp.Channel
	queue    string
	notifier checkout.Notifier
	timeout  time.Duration
}

func NewConsumer(r *RabbitMQ, notifier checkout.Notifier) *Consumer {
	return &Consumer{ch: r.Channel, queue: r.Queue, notifier: notifier, timeout: checkout.DefaultNotifyTimeout}
}

// Start registers the consumer and processes deliveries until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		c.queue,
		"epicerie-notify", // consumer tag
		false,             // auto-ack
		false,             // exclusive
		false,             // no-local
		false,             // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				c.deliver(ctx, msg)
			}
		}
	}()
	return nil
}

func (c *Consumer) deliver(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered from panic in notification: %v", r)
			msg.Nack(false, false)
		}
	}()

	if err := c.Handle(ctx, msg.Body); err != nil {
		log.Printf("notification %s failed: %v", msg.MessageId, err)
		// Dead-lettered, never requeued.
		msg.Nack(false, false)
		return
	}
	msg.Ack(false)
}

// Handle decodes one event body and notifies about it.
func (c *Consumer) Handle(ctx context.Context, body []byte) error {
	var event OrderEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("decode order event: %w", err)
	}
	if event.Type != EventOrderPlaced {
		log.Printf("ignoring event type %q", event.Type)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.notifier.OrderPlaced(ctx, &event.Order)
}
