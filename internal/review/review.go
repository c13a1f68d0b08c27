// Package review schedules delayed "ask for a review" follow-ups after an
// order completes, using the broker's delay queue instead of a timer
// service.
package review

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/store"
)

// TypeRequest is the envelope type for delayed review jobs.
const TypeRequest = "review.request"

// Job is the delayed payload. It is advisory: the consumer re-verifies the
// order before acting, so duplicate scheduling and redelivery are harmless.
type Job struct {
	TenantID string `json:"tenant_id"`
	OrderID  string `json:"order_id"`
	SenderID string `json:"sender_id"`
}

// DelayedPublisher is the slice of the broker the scheduler needs.
type DelayedPublisher interface {
	PublishDelayed(ctx context.Context, env broker.Envelope, delay time.Duration) error
}

type Scheduler struct {
	store        *store.Repo
	pub          DelayedPublisher
	defaultDelay time.Duration
	log          *zap.Logger
}

func NewScheduler(repo *store.Repo, pub DelayedPublisher, defaultDelay time.Duration, log *zap.Logger) *Scheduler {
	if defaultDelay <= 0 {
		defaultDelay = 5 * time.Minute
	}
	return &Scheduler{store: repo, pub: pub, defaultDelay: defaultDelay, log: log}
}

// Schedule publishes a delayed review job for a completed order, using the
// tenant's configured delay.
func (s *Scheduler) Schedule(ctx context.Context, tenantID, orderID string) error {
	order, err := s.store.OrderByID(ctx, tenantID, orderID)
	if err != nil {
		return fmt.Errorf("review: load order %s: %w", orderID, err)
	}
	if order.Reviewed {
		return nil
	}

	tenant, err := s.store.TenantByID(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("review: load tenant %s: %w", tenantID, err)
	}
	customer, err := s.store.CustomerByID(ctx, order.CustomerID)
	if err != nil {
		return fmt.Errorf("review: load customer %d: %w", order.CustomerID, err)
	}

	delay := s.defaultDelay
	if tenant.ReviewDelayMinutes > 0 {
		delay = time.Duration(tenant.ReviewDelayMinutes) * time.Minute
	}

	env, err := broker.NewEnvelope(TypeRequest, Job{
		TenantID: tenantID,
		OrderID:  orderID,
		SenderID: customer.ChannelID,
	})
	if err != nil {
		return fmt.Errorf("review: build job: %w", err)
	}
	if err := s.pub.PublishDelayed(ctx, env, delay); err != nil {
		return fmt.Errorf("review: publish job: %w", err)
	}

	s.log.Info("review: follow-up scheduled",
		zap.String("tenant_id", tenantID),
		zap.String("order_id", orderID),
		zap.Duration("delay", delay))
	return nil
}

// TurnRunner re-enters the conversational pipeline with a synthetic turn.
// Implemented by pipeline.Pipeline.
type TurnRunner interface {
	ProcessTurn(ctx context.Context, tenantID, senderID, turn string) error
}

// Consumer handles fired review jobs from the delay queue's dead-letter
// target.
type Consumer struct {
	store  *store.Repo
	runner TurnRunner
	log    *zap.Logger
}

func NewConsumer(repo *store.Repo, runner TurnRunner, log *zap.Logger) *Consumer {
	return &Consumer{store: repo, runner: runner, log: log}
}

// HandleEnvelope re-reads the order before acting: if it was reviewed or
// canceled while the job sat in the delay queue, the job acks as a no-op.
func (c *Consumer) HandleEnvelope(ctx context.Context, env broker.Envelope) error {
	if env.Type != TypeRequest {
		c.log.Warn("review: unexpected envelope type", zap.String("type", env.Type))
		return nil
	}
	var job Job
	if err := json.Unmarshal(env.Value, &job); err != nil {
		c.log.Error("review: dropping unparseable job", zap.Error(err))
		return nil
	}

	order, err := c.store.OrderByID(ctx, job.TenantID, job.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.log.Warn("review: order vanished, dropping job",
				zap.String("order_id", job.OrderID))
			return nil
		}
		return fmt.Errorf("review: reload order %s: %w", job.OrderID, err)
	}
	if order.Reviewed || order.Status == store.OrderCanceled {
		c.log.Debug("review: job is a no-op",
			zap.String("order_id", job.OrderID),
			zap.Bool("reviewed", order.Reviewed),
			zap.String("status", order.Status))
		return nil
	}

	turn := fmt.Sprintf(
		"[internal] The customer's order %s was delivered a little while ago and has no review yet. "+
			"Politely ask how everything was and invite them to leave a rating from 1 to 5.",
		job.OrderID)

	if err := c.runner.ProcessTurn(ctx, job.TenantID, job.SenderID, turn); err != nil {
		return fmt.Errorf("review: run follow-up turn: %w", err)
	}
	return nil
}
