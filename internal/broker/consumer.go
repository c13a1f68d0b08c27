package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler processes one envelope. A nil return acks the delivery; an error
// nacks without requeue, dead-lettering it per the queue's topology. Handlers
// must be idempotent: unacked messages are redelivered after disconnects.
type Handler func(ctx context.Context, env Envelope) error

// Consumer reads one queue with bounded prefetch and a matching worker pool,
// so one slow handler cannot starve other senders.
type Consumer struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	queue    string
	prefetch int
	log      *zap.Logger
}

func NewConsumer(url string, topo Topology, queue string, prefetch int, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("broker: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("broker: channel: %w", err)
	}
	if err := declareTopology(ch, topo); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if prefetch <= 0 {
		prefetch = 1
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("broker: qos: %w", err)
	}

	return &Consumer{conn: conn, ch: ch, queue: queue, prefetch: prefetch, log: log}, nil
}

func (c *Consumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Run consumes until ctx is canceled. Malformed bodies are nacked without
// requeue (they would fail forever); handler errors are nacked the same way
// and land in the parking queue.
func (c *Consumer) Run(ctx context.Context, handler Handler) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("broker: consume %s: %w", c.queue, err)
	}

	c.log.Info("broker: consumer started",
		zap.String("queue", c.queue),
		zap.Int("prefetch", c.prefetch))

	jobs := make(chan amqp.Delivery, c.prefetch)
	var wg sync.WaitGroup
	wg.Add(c.prefetch)
	for i := 0; i < c.prefetch; i++ {
		go func(workerID int) {
			defer wg.Done()
			for d := range jobs {
				c.handleDelivery(ctx, workerID, d, handler)
			}
		}(i)
	}

	for {
		select {
		case <-ctx.Done():
			c.log.Info("broker: consumer shutting down", zap.String("queue", c.queue))
			close(jobs)
			wg.Wait()
			return nil

		case d, ok := <-deliveries:
			if !ok {
				c.log.Warn("broker: delivery channel closed", zap.String("queue", c.queue))
				close(jobs)
				wg.Wait()
				return fmt.Errorf("broker: delivery channel closed for %s", c.queue)
			}
			jobs <- d
		}
	}
}

func (c *Consumer) handleDelivery(ctx context.Context, workerID int, d amqp.Delivery, handler Handler) {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil || env.Type == "" {
		c.log.Error("broker: malformed envelope",
			zap.String("queue", c.queue),
			zap.Int("worker", workerID),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	start := time.Now()
	if err := handler(ctx, env); err != nil {
		c.log.Error("broker: handler failed",
			zap.String("queue", c.queue),
			zap.String("type", env.Type),
			zap.Int("worker", workerID),
			zap.Duration("cost", time.Since(start)),
			zap.Error(err))
		_ = d.Nack(false, false)
		return
	}

	if err := d.Ack(false); err != nil {
		c.log.Error("broker: ack failed",
			zap.String("queue", c.queue),
			zap.String("type", env.Type),
			zap.Error(err))
	}
}
