package prompt

import (
	"context"
	"fmt"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
)

// DefaultSystemPrompt is the static instruction block sent alongside
// every assembled pack.
const DefaultSystemPrompt = `You are an answer engine.
- Answer in 1-3 sentences.
- Use concise, technically precise language.
- Do not ask follow-up questions.
`

const (
	maxRecentActs  = 3
	truncFinal     = 180
	truncAct       = 200
	truncAnswer    = 180
	truncOpen      = 180
	ellipsisMarker = "…"
)

// Builder assembles prompt packs from conversation memory. It performs
// no retries: collaborator failures propagate to the caller, which
// decides whether to skip the act.
type Builder struct {
	memory conversation.Reader
}

func NewBuilder(memory conversation.Reader) *Builder {
	return &Builder{memory: memory}
}

// Build fetches recent context for newActText as of nowMs and renders
// the assembled prompt. fullFinal is the complete transcript line the
// act was detected in; it is used to reconstruct a preamble when the
// question text is not present in any stored final.
func (b *Builder) Build(ctx context.Context, fullFinal, newActText string, nowMs float64) (*Pack, error) {
	finals, err := b.memory.RecentFinals(ctx, nowMs)
	if err != nil {
		return nil, fmt.Errorf("recent finals: %w", err)
	}
	adjusted := EnsureFinalPreamble(finals, newActText, fullFinal)

	acts, err := b.memory.RelatedActs(ctx, newActText, nowMs)
	if err != nil {
		return nil, fmt.Errorf("related acts: %w", err)
	}
	var pairs []ActAnswer
	for _, act := range acts {
		if len(pairs) == maxRecentActs {
			break
		}
		ans, err := b.memory.LatestAnswerForAct(ctx, act.ID)
		if err != nil {
			return nil, fmt.Errorf("latest answer for act %s: %w", act.ID, err)
		}
		pairs = append(pairs, ActAnswer{Act: act, Answer: ans})
	}

	open, err := b.memory.OpenActs(ctx, nowMs)
	if err != nil {
		return nil, fmt.Errorf("open acts: %w", err)
	}

	return &Pack{
		RecentFinals:    adjusted,
		RecentActs:      pairs,
		OpenActs:        open,
		NewActText:      newActText,
		SystemPrompt:    DefaultSystemPrompt,
		AssembledPrompt: render(adjusted, pairs, open, newActText),
	}, nil
}

// render produces the fixed-format text block. Section headers are
// always present except open_items, which is omitted entirely when there
// are no open acts.
func render(finals []*conversation.Item, pairs []ActAnswer, open []*conversation.Item, newActText string) string {
	var sb strings.Builder
	sb.WriteString("recent_finals:\n")
	for _, f := range finals {
		fmt.Fprintf(&sb, "- [%s %s] %s\n", f.Speaker, fmtClock(f.T0), trunc(f.Text, truncFinal))
	}
	sb.WriteString("\nrecent_acts:\n")
	for _, p := range pairs {
		ansStr := "(no answer)"
		if p.Answer != nil {
			ansStr = fmt.Sprintf("%s: %s", p.Answer.Speaker, trunc(p.Answer.Text, truncAnswer))
		}
		fmt.Fprintf(&sb, "- %s: \"%s\" A: %s\n", actPrefix(p.Act), trunc(p.Act.Text, truncAct), ansStr)
	}
	if len(open) > 0 {
		sb.WriteString("\nopen_items:\n")
		for _, o := range open {
			fmt.Fprintf(&sb, "- IMP: \"%s\"\n", trunc(o.Text, truncOpen))
		}
	}
	sb.WriteString("\nquestion:\n")
	fmt.Fprintf(&sb, "\"%s\"\n", newActText)
	return sb.String()
}

// actPrefix distinguishes command-form acts from questions. The
// persisted category decides when present; rows written by older tooling
// carry the marker in the text instead.
func actPrefix(act *conversation.Item) string {
	if act.Category == conversation.CategoryImperative {
		return "IMP"
	}
	if act.Category == "" && hasFoldPrefix(act.Text, "IMP") {
		return "IMP"
	}
	return "Q"
}

func hasFoldPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// trunc cuts text to at most m runes, marking the cut with an ellipsis.
func trunc(text string, m int) string {
	runes := []rune(text)
	if len(runes) <= m {
		return text
	}
	return string(runes[:m]) + ellipsisMarker
}

// fmtClock renders a millisecond timestamp as HH:MM:SS, wrapping at 24h
// and clamping negative inputs to zero.
func fmtClock(ms float64) string {
	if ms < 0 {
		ms = 0
	}
	total := int64(ms / 1000)
	h := total / 3600 % 24
	m := total / 60 % 60
	s := total % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}
