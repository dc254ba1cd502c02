package syncer

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	amqpExchange   = "bookingsync.exchange"
	amqpQueue      = "bookingsync.refresh.q"
	amqpRoutingKey = "sync.refresh"
)

// AMQPRefreshQueue carries refresh requests over RabbitMQ so webhook
// receivers and sync workers can run in separate processes.
type AMQPRefreshQueue struct {
	conn       *amqp.Connection
	ch         *amqp.Channel
	deliveries <-chan amqp.Delivery
}

func NewAMQPRefreshQueue(url string) (*AMQPRefreshQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(amqpExchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	q, err := ch.QueueDeclare(amqpQueue, true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(q.Name, amqpRoutingKey, amqpExchange, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}
	deliveries, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("consume queue: %w", err)
	}
	return &AMQPRefreshQueue{conn: conn, ch: ch, deliveries: deliveries}, nil
}

func (q *AMQPRefreshQueue) Enqueue(ctx context.Context, req RefreshRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return q.ch.PublishWithContext(ctx, amqpExchange, amqpRoutingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        payload,
	})
}

func (q *AMQPRefreshQueue) Dequeue(ctx context.Context) (RefreshRequest, bool) {
	for {
		select {
		case <-ctx.Done():
			return RefreshRequest{}, false
		case delivery, ok := <-q.deliveries:
			if !ok {
				return RefreshRequest{}, false
			}
			var req RefreshRequest
			if err := json.Unmarshal(delivery.Body, &req); err != nil {
				continue
			}
			return req, true
		}
	}
}

func (q *AMQPRefreshQueue) TryDequeue() (RefreshRequest, bool) {
	for {
		select {
		case delivery, ok := <-q.deliveries:
			if !ok {
				return RefreshRequest{}, false
			}
			var req RefreshRequest
			if err := json.Unmarshal(delivery.Body, &req); err != nil {
				continue
			}
			return req, true
		default:
			return RefreshRequest{}, false
		}
	}
}

func (q *AMQPRefreshQueue) Close() error {
	if q.ch != nil {
		_ = q.ch.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
