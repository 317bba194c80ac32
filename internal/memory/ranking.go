package memory

import (
	"sort"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
)

// rankRelated keeps the limit acts with the highest keyword overlap
// against the query text, then restores chronological order. Acts with
// no shared keywords are dropped.
func rankRelated(acts []*conversation.Item, query string, limit int) []*conversation.Item {
	queryWords := keywords(query)
	if len(queryWords) == 0 {
		return nil
	}

	type scored struct {
		item  *conversation.Item
		score float64
		pos   int
	}
	var candidates []scored
	for i, act := range acts {
		if sc := overlapScore(queryWords, keywords(act.Text)); sc > 0 {
			candidates = append(candidates, scored{item: act, score: sc, pos: i})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].pos < candidates[j].pos
	})

	out := make([]*conversation.Item, len(candidates))
	for i, c := range candidates {
		out[i] = c.item
	}
	return out
}

// overlapScore is the fraction of query keywords present in the
// candidate set.
func overlapScore(query, candidate map[string]struct{}) float64 {
	if len(query) == 0 {
		return 0
	}
	shared := 0
	for w := range query {
		if _, ok := candidate[w]; ok {
			shared++
		}
	}
	return float64(shared) / float64(len(query))
}

// keywords lowercases and tokenizes text, keeping words of three or more
// letters so stopword-ish short tokens do not dominate the overlap.
func keywords(text string) map[string]struct{} {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	set := make(map[string]struct{})
	for _, w := range words {
		if len(w) >= 3 {
			set[w] = struct{}{}
		}
	}
	return set
}
