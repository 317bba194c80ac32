// Package prompt assembles bounded conversational context for the answer
// provider: recent transcript lines, related prior question/answer pairs,
// open items, and the act being answered, rendered into one plain-text
// block.
package prompt

import "github.com/soundbench/huddle/internal/conversation"

// ActAnswer pairs a prior act with its latest answer, if any.
type ActAnswer struct {
	Act    *conversation.Item
	Answer *conversation.Item
}

// Pack is the read-only output of context building.
type Pack struct {
	RecentFinals    []*conversation.Item
	RecentActs      []ActAnswer
	OpenActs        []*conversation.Item
	NewActText      string
	SystemPrompt    string
	AssembledPrompt string
}
