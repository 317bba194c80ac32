package detect

import (
	"context"
	"log/slog"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
)

// ReviewItem is one sentence submitted for remote classification,
// addressed by a stable small integer id.
type ReviewItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

// Verdict is a remote classifier decision for one review item.
type Verdict struct {
	ID         int  `json:"id"`
	IsQuestion bool `json:"isQuestion"`
}

// SentenceClassifier answers, for a small batch of sentences, whether
// each one is a question. Implementations may return verdicts for only a
// subset of the submitted ids.
type SentenceClassifier interface {
	Classify(ctx context.Context, items []ReviewItem) ([]Verdict, error)
}

// Imperative info-seeking starters. Matches are always escalated when
// their confidence is ambiguous, even below the configured minimum:
// they are high-value cases the rules alone cannot settle.
var imperativeInfoStarters = []string{
	"explain", "describe", "tell me", "show me", "give me", "help me",
	"walk me through", "please explain", "please describe", "please tell me",
	"please show me", "please give me", "please help me", "please walk me through",
}

// Hybrid runs both rule detectors, merges and deduplicates their output,
// and escalates mid-confidence candidates to a remote classifier. A nil
// classifier disables escalation; classifier failures degrade to the
// rule-only result.
type Hybrid struct {
	rule          Interrogative
	imperative    Imperative
	classifier    SentenceClassifier
	minConfidence float64
	logger        *slog.Logger
}

// NewHybrid builds a hybrid detector. classifier may be nil.
func NewHybrid(minConfidence float64, classifier SentenceClassifier, logger *slog.Logger) *Hybrid {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{
		classifier:    classifier,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Detect returns merged candidates in first-seen order. Callers must not
// assume escalation occurred: on any remote failure the rule-derived
// confidences are returned unchanged.
func (h *Hybrid) Detect(ctx context.Context, segment string, start, end float64, speakerID string) []DetectedQuestion {
	ruleQuestions := h.rule.Detect(segment, start, end, speakerID)
	imperativeQuestions := h.imperative.Detect(segment, start, end, speakerID)

	merged := mergeCandidates(ruleQuestions, imperativeQuestions)
	if h.classifier == nil {
		return merged
	}

	// Review mid-confidence items, plus imperative info requests
	// regardless of the minimum threshold.
	var review []ReviewItem
	var reviewIdx []int
	for i, q := range merged {
		if q.Confidence >= 0.7 {
			continue
		}
		if q.Confidence >= h.minConfidence || isImperativeInfoRequest(q.Text) {
			review = append(review, ReviewItem{ID: len(review), Text: q.Text})
			reviewIdx = append(reviewIdx, i)
		}
	}
	if len(review) == 0 {
		return merged
	}

	verdicts, err := h.classifier.Classify(ctx, review)
	if err != nil {
		h.logger.Warn("sentence classification failed, keeping rule confidences", "error", err)
		return merged
	}

	for _, v := range verdicts {
		if v.ID < 0 || v.ID >= len(reviewIdx) {
			continue
		}
		i := reviewIdx[v.ID]
		if v.IsQuestion {
			// Elevate to stable acceptance.
			merged[i] = merged[i].WithConfidence(max(merged[i].Confidence, 0.75))
		} else {
			// Push down an ambiguous non-question.
			merged[i] = merged[i].WithConfidence(min(merged[i].Confidence, 0.4))
		}
	}
	return merged
}

// mergeCandidates combines detector outputs into one list keyed by
// case-insensitive sentence text. Duplicates keep the maximum confidence
// and the Imperative category when either detector assigned it, so
// downstream prompt formatting can distinguish command-form acts.
func mergeCandidates(lists ...[]DetectedQuestion) []DetectedQuestion {
	index := make(map[string]int)
	var out []DetectedQuestion
	for _, list := range lists {
		for _, q := range list {
			key := strings.ToLower(q.Text)
			at, ok := index[key]
			if !ok {
				index[key] = len(out)
				out = append(out, q)
				continue
			}
			existing := out[at]
			if q.Confidence > existing.Confidence {
				existing = existing.WithConfidence(q.Confidence)
			}
			if existing.Category != conversation.CategoryImperative && q.Category == conversation.CategoryImperative {
				existing = existing.WithCategory(q.Category)
			}
			out[at] = existing
		}
	}
	return out
}

func isImperativeInfoRequest(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, s := range imperativeInfoStarters {
		if strings.HasPrefix(lower, s+" ") {
			return true
		}
	}
	return false
}
