// Package contextwin keeps a conversation's history inside a token budget.
// Past the ceiling it folds older messages into one synthetic summary so the
// completion service always sees recent turns verbatim plus a digest of the
// rest.
package contextwin

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/chatorder/platform/internal/convo"
	"github.com/chatorder/platform/internal/tokens"
)

// Summarizer condenses a message range into one prose summary. Implemented
// by a secondary completion call in production.
type Summarizer interface {
	Summarize(ctx context.Context, history []convo.Message) (string, error)
}

const (
	defaultCeiling    = 6000
	defaultKeepRecent = 7
)

type Manager struct {
	repo       *convo.Repo
	summarizer Summarizer
	ceiling    int
	keepRecent int
	log        *zap.Logger
}

func NewManager(repo *convo.Repo, summarizer Summarizer, ceiling, keepRecent int, log *zap.Logger) *Manager {
	if ceiling <= 0 {
		ceiling = defaultCeiling
	}
	if keepRecent <= 0 {
		keepRecent = defaultKeepRecent
	}
	return &Manager{
		repo:       repo,
		summarizer: summarizer,
		ceiling:    ceiling,
		keepRecent: keepRecent,
		log:        log,
	}
}

// Append counts the message's tokens, writes it to the log, and keeps the
// in-memory running counter in step with storage.
func (m *Manager) Append(ctx context.Context, conv *convo.Conversation, msg *convo.Message) error {
	if msg.TokenCount == 0 {
		msg.TokenCount = tokens.EstimateMessage(msg.Content)
	}
	if err := m.repo.Append(ctx, conv.ConversationID, msg); err != nil {
		return err
	}
	conv.TokenCount += msg.TokenCount
	return nil
}

// Assemble returns the ordered history for a completion call. When the
// running counter is over the ceiling it runs at most one compression pass;
// if compression fails it fails open and serves the uncompressed history
// rather than blocking the reply.
func (m *Manager) Assemble(ctx context.Context, conv *convo.Conversation) ([]convo.Message, error) {
	msgs, err := m.repo.Messages(ctx, conv.ConversationID)
	if err != nil {
		return nil, err
	}
	if conv.TokenCount <= m.ceiling {
		return msgs, nil
	}

	compressed, err := m.compress(ctx, conv, msgs)
	if err != nil {
		m.log.Warn("contextwin: compression failed, serving uncompressed history",
			zap.String("conversation_id", conv.ConversationID),
			zap.Int("token_count", conv.TokenCount),
			zap.Error(err))
		return msgs, nil
	}
	return compressed, nil
}

// compress folds everything before the kept tail into one summary message.
// The boundary never splits a tool call/result pair: a half pair is useless
// to the model.
func (m *Manager) compress(ctx context.Context, conv *convo.Conversation, msgs []convo.Message) ([]convo.Message, error) {
	boundary := keepBoundary(msgs, m.keepRecent)
	if boundary <= 0 {
		return msgs, nil
	}

	discard := msgs[:boundary]
	kept := msgs[boundary:]

	text, err := m.summarizer.Summarize(ctx, discard)
	if err != nil {
		return nil, fmt.Errorf("contextwin: summarize: %w", err)
	}

	summary := &convo.Message{
		Role:       convo.RoleSystem,
		Content:    "Summary of the earlier conversation: " + text,
		TokenCount: tokens.EstimateMessage(text),
	}

	newCount := summary.TokenCount
	for _, k := range kept {
		newCount += k.TokenCount
	}

	if err := m.repo.ReplaceRange(ctx, conv.ConversationID,
		discard[0].Seq, discard[len(discard)-1].Seq, summary, newCount); err != nil {
		return nil, fmt.Errorf("contextwin: replace range: %w", err)
	}
	conv.TokenCount = newCount

	m.log.Info("contextwin: compressed conversation",
		zap.String("conversation_id", conv.ConversationID),
		zap.Int("discarded", len(discard)),
		zap.Int("kept", len(kept)),
		zap.Int("token_count", newCount))

	return m.repo.Messages(ctx, conv.ConversationID)
}

// keepBoundary returns the index of the first message kept verbatim. It
// starts keepRecent from the end and walks further back while the boundary
// would land on a tool result or right after an unanswered tool call, so
// call/result pairs stay together.
func keepBoundary(msgs []convo.Message, keepRecent int) int {
	boundary := len(msgs) - keepRecent
	if boundary <= 0 {
		return 0
	}
	for boundary > 0 {
		cur := msgs[boundary]
		prev := msgs[boundary-1]
		if cur.Role == convo.RoleTool {
			// A result at the boundary belongs to a call earlier in
			// the log; pull the boundary back to include the call.
			boundary--
			continue
		}
		if prev.Role == convo.RoleAssistant && prev.ToolCalls != "" {
			// A call right before the boundary has its results after
			// it; keep the call with them.
			boundary--
			continue
		}
		break
	}
	return boundary
}
