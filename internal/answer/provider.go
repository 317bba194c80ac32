// Package answer generates spoken-style answers for detected acts and
// persists them alongside the conversation.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
	"github.com/soundbench/huddle/internal/prompt"
)

// Provider produces an answer for an assembled prompt pack.
type Provider interface {
	Answer(ctx context.Context, pack *prompt.Pack) (string, error)
}

// Pipeline calls a provider and stores the result as an answer item.
type Pipeline struct {
	provider Provider
	writer   conversation.Writer
	logger   *slog.Logger
}

func NewPipeline(provider Provider, writer conversation.Writer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{provider: provider, writer: writer, logger: logger}
}

// AnswerAndPersist generates an answer for act and writes it as a child item.
// Persistence is best effort: on a store failure the answer is logged and
// returned unstored (empty ID) so the caller can still publish the text.
func (p *Pipeline) AnswerAndPersist(ctx context.Context, act *conversation.Item, pack *prompt.Pack) (*conversation.Item, error) {
	text, err := p.provider.Answer(ctx, pack)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("provider returned empty answer")
	}

	stored, err := p.writer.UpsertAnswer(ctx, "assistant", text, act.T1, act.T1, act.ID)
	if err != nil {
		p.logger.Warn("persist answer failed", "act_id", act.ID, "error", err)
		return &conversation.Item{
			SessionID:   act.SessionID,
			Kind:        conversation.KindAnswer,
			Speaker:     "assistant",
			Text:        text,
			T0:          act.T1,
			T1:          act.T1,
			ParentActID: act.ID,
		}, nil
	}
	return stored, nil
}
