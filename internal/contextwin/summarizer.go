package contextwin

import (
	"context"
	"fmt"
	"strings"

	"github.com/chatorder/platform/internal/completion"
	"github.com/chatorder/platform/internal/convo"
)

const summarizePrompt = "You compress order-taking chat history. Summarize the " +
	"conversation below in a short paragraph. Preserve every fact needed to " +
	"continue serving the customer: items discussed, quantities, prices quoted, " +
	"addresses, order ids, and unresolved questions. Output only the summary."

// CompletionSummarizer produces summaries through a secondary completion
// call on a cheap model.
type CompletionSummarizer struct {
	provider completion.Provider
}

func NewCompletionSummarizer(provider completion.Provider) *CompletionSummarizer {
	return &CompletionSummarizer{provider: provider}
}

func (s *CompletionSummarizer) Summarize(ctx context.Context, history []convo.Message) (string, error) {
	var b strings.Builder
	for _, m := range history {
		if m.Role == convo.RoleTool {
			fmt.Fprintf(&b, "tool result: %s\n", m.Content)
			continue
		}
		fmt.Fprintf(&b, "%s: %s\n", m.Role, m.Content)
	}

	res, err := s.provider.Complete(ctx, &completion.Request{
		Messages: []completion.Message{
			{Role: convo.RoleSystem, Content: summarizePrompt},
			{Role: convo.RoleUser, Content: b.String()},
		},
	})
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		return "", fmt.Errorf("summarizer: empty summary")
	}
	return text, nil
}
