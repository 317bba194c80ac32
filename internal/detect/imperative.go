package detect

import (
	"regexp"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
)

// Instructional starters commonly seen in coding tasks and guidance.
// Matching any of these at sentence start is a strong imperative signal.
var imperativeStarters = []string{
	"define", "declare", "create", "write", "implement", "use", "add", "inherit", "override",
	"instantiate", "register", "configure", "serialize", "deserialize", "demonstrate", "sort",
	"remove", "subscribe", "await", "lock", "explain", "describe", "show me", "tell me", "give me",
	"help me", "walk me through", "please explain", "please describe", "please tell me",
	"please show me", "please give me", "please help me", "please walk me through",
}

var (
	imperativeStartersRe = compileStarters(imperativeStarters)
	modalRequestRe       = regexp.MustCompile(`^(?:could you|can you|would you|will you|please|show me|tell me|help me)\b`)
	verbArticleRe        = regexp.MustCompile(`^[a-z]+\s+(?:a|an|the)\b`)
	exampleStarterRe     = regexp.MustCompile(`^(?:for example|examples?|samples?)\b`)
)

func compileStarters(starters []string) *regexp.Regexp {
	quoted := make([]string, len(starters))
	for i, s := range starters {
		quoted[i] = regexp.QuoteMeta(s)
	}
	return regexp.MustCompile(`^(?:` + strings.Join(quoted, "|") + `)\b`)
}

// Imperative detects command-form or instructional sentences that are
// information requests in disguise ("Explain X", "Create a method
// that...", "Could you show me..."). Confidence is tiered so the hybrid
// stage can decide which borderline matches are worth a remote
// classification call.
type Imperative struct{}

func (Imperative) Detect(segment string, start, end float64, speakerID string) []DetectedQuestion {
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
		confidence := 0.0
		switch {
		case imperativeStartersRe.MatchString(lower):
			confidence = 0.80
		case modalRequestRe.MatchString(lower):
			confidence = 0.72
		case verbArticleRe.MatchString(lower):
			confidence = 0.75
		case exampleStarterRe.MatchString(lower):
			confidence = 0.65
		}

		if confidence > 0 {
			results = append(results, DetectedQuestion{
				Text:       sentence,
				Confidence: confidence,
				Start:      cursor,
				End:        cursor + perSentence,
				SpeakerID:  speakerID,
				Category:   conversation.CategoryImperative,
			})
		}

		cursor += perSentence
	}
	return results
}
