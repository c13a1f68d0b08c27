// Package loop drives the bounded tool-calling dialogue with the completion
// service until it produces a final customer-facing answer.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/completion"
	"github.com/chatorder/platform/internal/contextwin"
	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/store"
	"github.com/chatorder/platform/internal/tools"
)

const (
	defaultMaxIterations = 5
	defaultToolTimeout   = 30 * time.Second

	// fallbackReply is the degraded answer when the iteration cap is hit
	// with no usable text. User-visible failure is natural language, never
	// an error code.
	fallbackReply = "Sorry, I couldn't finish that request. Could you rephrase it, or tell me again what you'd like to order?"

	defaultSystemPrompt = "You are the ordering assistant for this store. Help the customer " +
		"find products, answer availability and delivery questions, and place, change, or cancel " +
		"orders using the available tools. Confirm items and quantities before placing an order. " +
		"Be concise and friendly."
)

type Loop struct {
	window    *contextwin.Manager
	providers *completion.Registry
	tools     *tools.Registry

	maxIterations int
	toolTimeout   time.Duration
	log           *zap.Logger
}

func New(window *contextwin.Manager, providers *completion.Registry, registry *tools.Registry, maxIterations int, toolTimeout time.Duration, log *zap.Logger) *Loop {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	if toolTimeout <= 0 {
		toolTimeout = defaultToolTimeout
	}
	return &Loop{
		window:        window,
		providers:     providers,
		tools:         registry,
		maxIterations: maxIterations,
		toolTimeout:   toolTimeout,
		log:           log,
	}
}

// Run appends the user's turn and iterates completion calls until the model
// answers without requesting tools, or the iteration cap is reached. The cap
// is the sole hard bound on loop lifetime; side effects happen only inside
// tool execution, so the loop itself never retries a call.
func (l *Loop) Run(ctx context.Context, tenant *store.Tenant, conv *convo.Conversation, userTurn string) (string, error) {
	provider, err := l.providers.Get(ctx, tenant.Provider, tenant.Model)
	if err != nil {
		return "", fmt.Errorf("loop: resolve provider for tenant %s: %w", tenant.TenantID, err)
	}

	if err := l.window.Append(ctx, conv, &convo.Message{
		Role:    convo.RoleUser,
		Content: userTurn,
	}); err != nil {
		return "", fmt.Errorf("loop: append user turn: %w", err)
	}

	inv := tools.Invocation{
		TenantID:       tenant.TenantID,
		CustomerID:     conv.CustomerID,
		ConversationID: conv.ConversationID,
	}

	var lastText string
	for i := 0; i < l.maxIterations; i++ {
		history, err := l.window.Assemble(ctx, conv)
		if err != nil {
			return "", fmt.Errorf("loop: assemble context: %w", err)
		}

		req := &completion.Request{
			Messages: l.buildMessages(conv, history),
			Tools:    l.tools.Schemas(),
		}

		res, err := provider.Complete(ctx, req)
		if err != nil {
			return "", fmt.Errorf("loop: completion call: %w", err)
		}
		if res.Text != "" {
			lastText = res.Text
		}

		if len(res.ToolCalls) == 0 {
			if err := l.window.Append(ctx, conv, &convo.Message{
				Role:    convo.RoleAssistant,
				Content: res.Text,
			}); err != nil {
				return "", fmt.Errorf("loop: append assistant reply: %w", err)
			}
			return res.Text, nil
		}

		if err := l.appendToolRound(ctx, conv, inv, res); err != nil {
			return "", err
		}
	}

	// Cap reached: degrade to best-effort text rather than letting a
	// looping model run up latency and cost.
	l.log.Warn("loop: iteration cap reached",
		zap.String("conversation_id", conv.ConversationID),
		zap.Int("max_iterations", l.maxIterations))

	reply := lastText
	if strings.TrimSpace(reply) == "" {
		reply = fallbackReply
	}
	if err := l.window.Append(ctx, conv, &convo.Message{
		Role:    convo.RoleAssistant,
		Content: reply,
	}); err != nil {
		return "", fmt.Errorf("loop: append fallback reply: %w", err)
	}
	return reply, nil
}

// appendToolRound records the assistant's call request and one correlated
// result message per call. Execution failures and malformed arguments come
// back as structured error results the model sees next iteration.
func (l *Loop) appendToolRound(ctx context.Context, conv *convo.Conversation, inv tools.Invocation, res *completion.Result) error {
	callsJSON, err := json.Marshal(res.ToolCalls)
	if err != nil {
		return fmt.Errorf("loop: encode tool calls: %w", err)
	}
	if err := l.window.Append(ctx, conv, &convo.Message{
		Role:      convo.RoleAssistant,
		Content:   res.Text,
		ToolCalls: string(callsJSON),
	}); err != nil {
		return fmt.Errorf("loop: append tool call message: %w", err)
	}

	for _, call := range res.ToolCalls {
		callCtx, cancel := context.WithTimeout(ctx, l.toolTimeout)
		result := l.tools.Execute(callCtx, inv, call.Name, call.Arguments)
		cancel()

		if err := l.window.Append(ctx, conv, &convo.Message{
			Role:       convo.RoleTool,
			Content:    result,
			ToolCallID: call.ID,
		}); err != nil {
			return fmt.Errorf("loop: append tool result: %w", err)
		}
	}
	return nil
}

// buildMessages converts stored history into the provider shape, with the
// conversation's system prompt first.
func (l *Loop) buildMessages(conv *convo.Conversation, history []convo.Message) []completion.Message {
	prompt := conv.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}

	out := make([]completion.Message, 0, len(history)+1)
	out = append(out, completion.Message{Role: convo.RoleSystem, Content: prompt})

	for _, m := range history {
		cm := completion.Message{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.ToolCalls != "" {
			if err := json.Unmarshal([]byte(m.ToolCalls), &cm.ToolCalls); err != nil {
				l.log.Warn("loop: dropping unparseable stored tool calls",
					zap.String("conversation_id", conv.ConversationID),
					zap.Int("seq", m.Seq),
					zap.Error(err))
			}
		}
		out = append(out, cm)
	}
	return out
}
