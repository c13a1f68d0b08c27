package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher owns a connection and declares the full topology up front, so
// publishing and consuming sides agree on queue arguments.
type Publisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	topo     Topology
	maxDelay time.Duration
}

func NewPublisher(url string, topo Topology, maxDelay time.Duration) (*Publisher, error) {
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

	if maxDelay <= 0 {
		maxDelay = 24 * time.Hour
	}
	return &Publisher{conn: conn, ch: ch, topo: topo, maxDelay: maxDelay}, nil
}

func declareTopology(ch *amqp.Channel, topo Topology) error {
	// Parking queue: terminal destination for rejected messages.
	if _, err := ch.QueueDeclare(topo.ParkingQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("broker: declare %s: %w", topo.ParkingQueue, err)
	}

	// Work queue: inbound dispatch; nack(requeue=false) parks the message.
	if _, err := ch.QueueDeclare(topo.WorkQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": topo.ParkingQueue,
	}); err != nil {
		return fmt.Errorf("broker: declare %s: %w", topo.WorkQueue, err)
	}

	// Review queue: where expired delay messages land; rejected jobs park.
	if _, err := ch.QueueDeclare(topo.ReviewQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": topo.ParkingQueue,
	}); err != nil {
		return fmt.Errorf("broker: declare %s: %w", topo.ReviewQueue, err)
	}

	// Delay queue: nobody consumes it; per-message TTL expiry dead-letters
	// into the review queue, which is what implements "deliver after N".
	if _, err := ch.QueueDeclare(topo.DelayQueue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": topo.ReviewQueue,
	}); err != nil {
		return fmt.Errorf("broker: declare %s: %w", topo.DelayQueue, err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// Publish sends an envelope to a queue with durable delivery.
func (p *Publisher) Publish(ctx context.Context, queue string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("broker: marshal envelope: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",    // default exchange
		queue, // routing key = queue
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
}

// PublishInbound enqueues an envelope on the work queue.
func (p *Publisher) PublishInbound(ctx context.Context, env Envelope) error {
	return p.Publish(ctx, p.topo.WorkQueue, env)
}

// PublishDelayed parks an envelope on the delay queue with a per-message
// expiration, so different messages can carry different delays. Delays are
// clamped to the configured maximum: RabbitMQ only expires a message when it
// reaches the queue head, so wildly mixed TTLs degrade into head-of-line
// waits.
func (p *Publisher) PublishDelayed(ctx context.Context, env Envelope, delay time.Duration) error {
	delay = ClampDelay(delay, p.maxDelay)

	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("broker: marshal envelope: %w", err)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(cctx,
		"",
		p.topo.DelayQueue,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Timestamp:    time.Now(),
			Expiration:   strconv.FormatInt(delay.Milliseconds(), 10),
		},
	)
}

// ClampDelay bounds a delay to (0, max].
func ClampDelay(delay, max time.Duration) time.Duration {
	if delay < time.Second {
		return time.Second
	}
	if delay > max {
		return max
	}
	return delay
}
