package rabbitMQ

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// StatusRoutingKey routes worker status events to the gateway listener.
	StatusRoutingKey = "notifications.status"
	// TemplateUpdatedRoutingKey routes template invalidation events to workers.
	TemplateUpdatedRoutingKey = "template.updated"
)

// DeliveryQueue returns the channel queue name, which also serves as its
// routing key on the direct exchange.
func DeliveryQueue(channel string) string {
	return fmt.Sprintf("%s.queue", channel)
}

// DeadLetterQueue returns the DLQ name for a channel queue. The DLQ is not
// bound to the exchange; exhausted messages are written to it explicitly.
func DeadLetterQueue(queue string) string {
	return fmt.Sprintf("%s.failed", queue)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, message interface{}) error
	PublishToQueue(ctx context.Context, queue string, message interface{}) error
}

type RabbitMQConfig struct {
	URL      string
	Exchange string
	Prefetch int
}

type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  RabbitMQConfig
}

func NewRabbitMQ(config RabbitMQConfig) (*RabbitMQ, error) {
	conn, err := amqp.Dial(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := channel.ExchangeDeclare(
		config.Exchange, // name
		"direct",        // kind
		true,            // durable
		false,           // auto-delete
		false,           // internal
		false,           // no-wait
		nil,
	); err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &RabbitMQ{
		conn:    conn,
		channel: channel,
		config:  config,
	}, nil
}

// DeclareDeliveryQueue declares a durable channel queue bound to the exchange
// with routing key = queue name, plus its dead-letter queue.
func (r *RabbitMQ) DeclareDeliveryQueue(queue string) error {
	if _, err := r.channel.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	if err := r.channel.QueueBind(queue, queue, r.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", queue, err)
	}

	if _, err := r.channel.QueueDeclare(
		DeadLetterQueue(queue),
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare DLQ for %s: %w", queue, err)
	}

	return nil
}

// DeclareBoundQueue declares a durable queue bound to the exchange with the
// given routing key (status and template-update listeners).
func (r *RabbitMQ) DeclareBoundQueue(queue, routingKey string) error {
	if _, err := r.channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", queue, err)
	}

	if err := r.channel.QueueBind(queue, routingKey, r.config.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s to %s: %w", queue, routingKey, err)
	}

	return nil
}

func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, message interface{}) error {
	return r.publish(ctx, r.config.Exchange, routingKey, message)
}

// PublishToQueue publishes through the default exchange straight into a queue,
// bypassing bindings. Used for explicit dead-lettering.
func (r *RabbitMQ) PublishToQueue(ctx context.Context, queue string, message interface{}) error {
	return r.publish(ctx, "", queue, message)
}

func (r *RabbitMQ) publish(ctx context.Context, exchange, routingKey string, message interface{}) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	return nil
}

func (r *RabbitMQ) Close() error {
	var errs []error

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors while closing RabbitMQ: %v", errs)
	}

	return nil
}

// HealthCheck verifies the connection by opening a throwaway channel.
func (r *RabbitMQ) HealthCheck() error {
	if r.conn == nil || r.conn.IsClosed() {
		return fmt.Errorf("RabbitMQ connection is closed")
	}

	testChannel, err := r.conn.Channel()
	if err != nil {
		return fmt.Errorf("RabbitMQ health check failed: %w", err)
	}
	testChannel.Close()

	return nil
}
