package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/judyrop/epicerie-backend/models"
)

const EventOrderPlaced = "order.placed"

// OrderEvent is the message body published for every placed order.
type OrderEvent struct {
	Type       string       `json:"type"`
	Order      models.Order `json:"order"`
	OccurredAt time.Time    `json:"occurred_at"`
}

type RabbitMQ struct {
	Conn     *amqp.Connection
	Channel  *amqp.Channel
	Exchange string
	Queue    string
}

func NewRabbitMQ(url, exchange, queue string) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &RabbitMQ{
		Conn:     conn,
		Channel:  ch,
		Exchange: exchange,
		Queue:    queue,
	}, nil
}

type declarer interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// SetupQueues declares the order exchange, the notification queue and its dead letter queue.
func (r *RabbitMQ) SetupQueues() error {
	return setupQueues(r.Channel, r.Exchange, r.Queue)
}

func setupQueues(ch declarer, exchange, queue string) error {
	deadLetter := queue + "_dead"
	deadExchange := deadLetter + "_exchange"
	if err := ch.ExchangeDeclare(
		deadExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(deadLetter, true, false, false, false, nil); err != nil {
		return err
	}
	// Rejected messages are republished with the dead letter queue name as routing key.
	if err := ch.QueueBind(deadLetter, deadLetter, deadExchange, false, nil); err != nil {
		return err
	}

	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		return err
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-dead-letter-exchange":    deadExchange,
			"x-dead-letter-routing-key": deadLetter,
		},
	); err != nil {
		return err
	}

	return ch.QueueBind(queue, "", exchange, false, nil)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		r.Channel.Close()
	}
	if r.Conn != nil {
		r.Conn.Close()
	}
}

type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// QueueNotifier publishes an OrderEvent instead of mailing from the request path.
type QueueNotifier struct {
	ch       publisher
	exchange string
	now      func() time.Time
}

func NewQueueNotifier(r *RabbitMQ) *QueueNotifier {
	return &QueueNotifier{ch: r.Channel, exchange: r.Exchange, now: time.Now}
}

func (n *QueueNotifier) OrderPlaced(ctx context.Context, order *models.Order) error {
	body, err := json.Marshal(OrderEvent{
		Type:       EventOrderPlaced,
		Order:      *order,
		OccurredAt: n.now(),
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    n.now(),
		ContentType:  "application/json",
		MessageId:    order.ID,
		Type:         EventOrderPlaced,
		Body:         body,
	}
	if err := n.ch.PublishWithContext(ctx, n.exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}
