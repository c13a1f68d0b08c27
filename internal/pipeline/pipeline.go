// Package pipeline wires the inbound path: dedup, debounce, gate, loop,
// outbound delivery. Each inbound event runs as an independent task; the
// debounce buffer's single-flight guarantee serializes work per sender.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/broker"
	"github.com/chatorder/platform/internal/channel"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/debounce"
	"github.com/chatorder/platform/internal/dedup"
	"github.com/chatorder/platform/internal/gate"
	"github.com/chatorder/platform/internal/loop"
)

// TypeInbound is the envelope type for channel events on the work queue.
const TypeInbound = "chat.inbound"

// errorReply is sent when the loop itself fails; customers never see raw
// errors.
const errorReply = "Sorry, something went wrong on our side. Please send your message again in a moment."

// InboundEvent is one raw channel event as received by the webhook.
type InboundEvent struct {
	TenantID string `json:"tenant_id"`
	SenderID string `json:"sender_id"`
	EventID  string `json:"event_id"`
	Text     string `json:"text"`
}

type Options struct {
	QuietPeriod time.Duration
	DedupTTL    time.Duration
}

type Pipeline struct {
	dedup    dedup.Store
	dedupTTL time.Duration
	buf      *debounce.Buffer
	gate     *gate.Gate
	loop     *loop.Loop
	convos   *convo.Repo
	sender   channel.Sender
	log      *zap.Logger
}

func New(opts Options, dedupStore dedup.Store, g *gate.Gate, l *loop.Loop, convos *convo.Repo, sender channel.Sender, log *zap.Logger) *Pipeline {
	if opts.DedupTTL <= 0 {
		opts.DedupTTL = 10 * time.Minute
	}
	p := &Pipeline{
		dedup:    dedupStore,
		dedupTTL: opts.DedupTTL,
		gate:     g,
		loop:     l,
		convos:   convos,
		sender:   sender,
		log:      log,
	}
	p.buf = debounce.NewBuffer(opts.QuietPeriod, p.drainTurn, log)
	return p
}

// HandleEnvelope is the work-queue handler. Unparseable payloads are logged
// and dropped (acked): redelivering them can never succeed.
func (p *Pipeline) HandleEnvelope(ctx context.Context, env broker.Envelope) error {
	if env.Type != TypeInbound {
		p.log.Warn("pipeline: unexpected envelope type", zap.String("type", env.Type))
		return nil
	}
	var ev InboundEvent
	if err := json.Unmarshal(env.Value, &ev); err != nil {
		p.log.Error("pipeline: dropping unparseable inbound event", zap.Error(err))
		return nil
	}
	return p.HandleEvent(ctx, ev)
}

// HandleEvent deduplicates and buffers one event. It returns once the event
// is accepted into the sender's bucket; the reply happens asynchronously
// after the quiet period. A crash between ack and drain loses only the
// in-flight quiet period, which the upstream channel's redelivery covers.
func (p *Pipeline) HandleEvent(ctx context.Context, ev InboundEvent) error {
	if ev.TenantID == "" || ev.SenderID == "" || ev.EventID == "" {
		p.log.Error("pipeline: dropping event with missing identifiers",
			zap.String("tenant_id", ev.TenantID),
			zap.String("sender_id", ev.SenderID))
		return nil
	}

	fresh, err := p.dedup.MarkProcessed(ctx, ev.EventID, p.dedupTTL)
	if err != nil {
		return fmt.Errorf("pipeline: dedup check: %w", err)
	}
	if !fresh {
		p.log.Debug("pipeline: duplicate event discarded",
			zap.String("event_id", ev.EventID),
			zap.String("sender_id", ev.SenderID))
		return nil
	}

	p.buf.Accept(senderKey(ev.TenantID, ev.SenderID), ev.Text)
	return nil
}

// drainTurn receives one joined turn from the debounce buffer.
func (p *Pipeline) drainTurn(ctx context.Context, key, turn string) {
	tenantID, senderID, ok := splitSenderKey(key)
	if !ok {
		p.log.Error("pipeline: malformed sender key", zap.String("key", key))
		return
	}
	if err := p.ProcessTurn(ctx, tenantID, senderID, turn); err != nil {
		p.log.Error("pipeline: turn processing failed",
			zap.String("tenant_id", tenantID),
			zap.String("sender_id", senderID),
			zap.Error(err))
	}
}

// ProcessTurn runs one logical turn through gate, loop, and outbound
// delivery. The review consumer also enters here with synthetic turns.
func (p *Pipeline) ProcessTurn(ctx context.Context, tenantID, senderID, turn string) error {
	res, err := p.gate.Evaluate(ctx, tenantID, senderID)
	if err != nil {
		return err
	}

	if !res.OK {
		if err := p.sender.Send(ctx, res.Tenant, senderID, res.Reply); err != nil {
			return fmt.Errorf("pipeline: send canned reply: %w", err)
		}
		return nil
	}

	conv, err := p.convos.ActiveConversation(ctx, tenantID, res.Customer.ID, res.Tenant.SystemPrompt)
	if err != nil {
		return fmt.Errorf("pipeline: load conversation: %w", err)
	}

	reply, err := p.loop.Run(ctx, res.Tenant, conv, turn)
	if err != nil {
		p.log.Error("pipeline: loop failed",
			zap.String("conversation_id", conv.ConversationID),
			zap.Error(err))
		reply = errorReply
	}

	if err := p.sender.Send(ctx, res.Tenant, senderID, reply); err != nil {
		if errors.Is(err, channel.ErrMissingCredentials) {
			// Fatal configuration for this tenant; abort the turn
			// without crashing the worker.
			p.log.Error("pipeline: tenant cannot send, dropping reply",
				zap.String("tenant_id", tenantID),
				zap.Error(err))
			return nil
		}
		return fmt.Errorf("pipeline: send reply: %w", err)
	}
	return nil
}

// Close waits for in-flight drains to finish.
func (p *Pipeline) Close() {
	p.buf.Close()
}

func senderKey(tenantID, senderID string) string {
	return tenantID + "|" + senderID
}

func splitSenderKey(key string) (tenantID, senderID string, ok bool) {
	tenantID, senderID, ok = strings.Cut(key, "|")
	return tenantID, senderID, ok && tenantID != "" && senderID != ""
}
