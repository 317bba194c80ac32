package detect

import (
	"regexp"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
)

var interrogativeStarters = []string{
	"who", "what", "when", "where", "why", "how", "which", "whose", "whom",
	"is", "are", "am", "was", "were", "do", "does", "did", "can", "could",
	"will", "would", "shall", "should", "may", "might", "have", "has", "had",
}

var tagQuestionRe = regexp.MustCompile(`(?i),?\s+(isn['’]t it|doesn['’]t it|don['’]t you|right|okay|ok|no)\?$`)

// Interrogative is a rule-based scanner for question-form sentences. It
// scores each sentence additively: question mark, interrogative starter
// word, tag-question ending. Pure and idempotent.
type Interrogative struct{}

// Detect splits the segment into sentences, distributes the segment
// duration evenly across them, and emits every sentence whose confidence
// reaches 0.5.
func (Interrogative) Detect(segment string, start, end float64, speakerID string) []DetectedQuestion {
	var results []DetectedQuestion
	if strings.TrimSpace(segment) == "" {
		return results
	}

	sentences := splitSentences(strings.TrimSpace(segment))
	n := len(sentences)
	if n == 0 {
		return results
	}
	perSentence := (end - start) / float64(n)
	cursor := start

	for _, raw := range sentences {
		sentence := strings.TrimSpace(raw)
		if sentence == "" {
			cursor += perSentence
			continue
		}

		lower := strings.ToLower(sentence)
		hasQuestionMark := strings.HasSuffix(sentence, "?")
		startsInterrogative := false
		for _, w := range interrogativeStarters {
			if strings.HasPrefix(lower, w+" ") {
				startsInterrogative = true
				break
			}
		}
		hasTag := tagQuestionRe.MatchString(sentence)

		confidence := 0.0
		if hasQuestionMark {
			confidence += 0.6
		}
		if startsInterrogative {
			confidence += 0.25
		}
		if hasTag {
			confidence += 0.15
		}

		// Reads like a question but lacks the question mark: give short
		// sentences a baseline so spoken questions are not lost.
		if !hasQuestionMark && startsInterrogative && len(sentence) <= 80 {
			confidence = max(confidence, 0.5)
		}

		if confidence >= 0.5 {
			results = append(results, DetectedQuestion{
				Text:       sentence,
				Confidence: min(confidence, 1.0),
				Start:      cursor,
				End:        cursor + perSentence,
				SpeakerID:  speakerID,
				Category:   conversation.CategoryInterrogative,
			})
		}

		cursor += perSentence
	}
	return results
}
