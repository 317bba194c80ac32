package prompt

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/soundbench/huddle/internal/conversation"
)

var whitespaceRunRe = regexp.MustCompile(`\s+`)

// EnsureFinalPreamble removes the question's own text from the recent
// transcript so the model is not fed it twice: once as context and once
// as the question itself. It is pure and order-preserving.
//
// Scanning finals newest to oldest, the first line containing question
// (case-insensitive) is replaced — in a fresh slice — by a clone with the
// question excised and whitespace normalized; every other element keeps
// its original pointer. When no final contains the question but fullFinal
// does, a synthetic preamble item is appended to a copy. When the
// question is blank or cannot be found anywhere, the input slice itself
// is returned, so callers (and tests) can detect the no-op by identity.
func EnsureFinalPreamble(finals []*conversation.Item, question, fullFinal string) []*conversation.Item {
	if strings.TrimSpace(question) == "" {
		return finals
	}

	for i := len(finals) - 1; i >= 0; i-- {
		start, end := indexFold(finals[i].Text, question)
		if start < 0 {
			continue
		}
		adjusted := make([]*conversation.Item, len(finals))
		copy(adjusted, finals)
		adjusted[i] = finals[i].WithText(excise(finals[i].Text, start, end))
		return adjusted
	}

	if start, end := indexFold(fullFinal, question); start >= 0 {
		preamble := excise(fullFinal, start, end)
		if preamble != "" {
			synthetic := syntheticItem(finals, preamble)
			adjusted := make([]*conversation.Item, len(finals), len(finals)+1)
			copy(adjusted, finals)
			return append(adjusted, synthetic)
		}
	}

	return finals
}

// syntheticItem clones the newest final's identity for the preamble line,
// or builds a minimal placeholder when there is no prior final at all.
func syntheticItem(finals []*conversation.Item, text string) *conversation.Item {
	if len(finals) > 0 {
		last := finals[len(finals)-1]
		clone := *last
		clone.ID = last.ID + "-preamble"
		clone.Text = text
		return &clone
	}
	return &conversation.Item{
		ID:   "preamble",
		Kind: conversation.KindFinal,
		Text: text,
	}
}

// excise removes the bytes in [start, end) and collapses the
// surrounding whitespace to single spaces.
func excise(text string, start, end int) string {
	cut := text[:start] + text[end:]
	return strings.TrimSpace(whitespaceRunRe.ReplaceAllString(cut, " "))
}

// indexFold finds the first case-insensitive occurrence of needle in
// hay, returning its byte range [start, end) in hay, or (-1, -1). The
// scan compares runes in place so offsets stay valid for hay even when
// case folding changes a rune's encoded length.
func indexFold(hay, needle string) (start, end int) {
	if needle == "" {
		return -1, -1
	}
	for i := range hay {
		if n := foldMatchLen(hay[i:], needle); n >= 0 {
			return i, i + n
		}
	}
	return -1, -1
}

// foldMatchLen reports how many bytes at the start of hay match needle
// rune for rune under simple case folding, or -1 on a mismatch.
func foldMatchLen(hay, needle string) int {
	rest := hay
	for _, nr := range needle {
		hr, size := utf8.DecodeRuneInString(rest)
		if size == 0 || !foldEq(hr, nr) {
			return -1
		}
		rest = rest[size:]
	}
	return len(hay) - len(rest)
}

func foldEq(a, b rune) bool {
	if a == b {
		return true
	}
	for r := unicode.SimpleFold(a); r != a; r = unicode.SimpleFold(r) {
		if r == b {
			return true
		}
	}
	return false
}
