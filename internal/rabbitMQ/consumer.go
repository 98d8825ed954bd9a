package rabbitMQ

import (
	"context"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

type Action int

const (
	// Ack removes the message from the queue.
	Ack Action = iota
	// Requeue negative-acknowledges with the requeue flag set, optionally
	// after a delay. The message is redelivered to any available consumer.
	Requeue
	// Drop negative-acknowledges without requeue.
	Drop
)

// Verdict tells the consumer loop how to settle a delivery.
type Verdict struct {
	Action Action
	Delay  time.Duration
}

type HandlerFunc func(ctx context.Context, body []byte) Verdict

// Consume starts workerCount goroutines draining the queue as competing
// consumers. Each message is settled according to the handler's verdict; a
// delayed requeue suspends only that one delivery, not the loop. Blocks until
// ctx is cancelled.
func (r *RabbitMQ) Consume(ctx context.Context, queue string, workerCount int, handler HandlerFunc) error {
	if workerCount <= 0 {
		workerCount = 1
	}

	channel, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer channel.Close()

	prefetch := r.config.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	if err := channel.Qos(prefetch, 0, false); err != nil {
		return err
	}

	msgs, err := channel.Consume(
		queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.handleMessages(ctx, queue, msgs, handler)
		}()
	}

	wg.Wait()
	return nil
}

func (r *RabbitMQ) handleMessages(ctx context.Context, queue string, msgs <-chan amqp.Delivery, handler HandlerFunc) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			r.settle(queue, msg, handler(ctx, msg.Body))
		}
	}
}

func (r *RabbitMQ) settle(queue string, msg amqp.Delivery, verdict Verdict) {
	switch verdict.Action {
	case Requeue:
		if verdict.Delay > 0 {
			// If the process dies before the timer fires the broker
			// redelivers after its own timeout; the processed marker and
			// retry metadata keep that safe.
			time.AfterFunc(verdict.Delay, func() {
				if err := msg.Nack(false, true); err != nil {
					logrus.Errorf("failed to nack message on %s: %v", queue, err)
				}
			})
			return
		}
		if err := msg.Nack(false, true); err != nil {
			logrus.Errorf("failed to nack message on %s: %v", queue, err)
		}
	case Drop:
		if err := msg.Nack(false, false); err != nil {
			logrus.Errorf("failed to drop message on %s: %v", queue, err)
		}
	default:
		if err := msg.Ack(false); err != nil {
			logrus.Errorf("failed to ack message on %s: %v", queue, err)
		}
	}
}
