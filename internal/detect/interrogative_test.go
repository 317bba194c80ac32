package detect

import (
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/soundbench/huddle/internal/conversation"
)

func TestInterrogativeQuestionMarkPlusStarter(t *testing.T) {
	var d Interrogative
	results := d.Detect("Can we finalize the sprint plan?", 0, 2000, "user")

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	q := results[0]
	if math.Abs(q.Confidence-0.85) > 1e-9 {
		t.Errorf("expected confidence 0.85, got %v", q.Confidence)
	}
	if q.Category != conversation.CategoryInterrogative {
		t.Errorf("expected Interrogative category, got %q", q.Category)
	}
	if q.SpeakerID != "user" {
		t.Errorf("expected speaker propagated, got %q", q.SpeakerID)
	}
}

func TestInterrogativeTagQuestion(t *testing.T) {
	var d Interrogative
	results := d.Detect("It's stable, right?", 0, 1000, "")

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Text != "It's stable, right?" {
		t.Errorf("unexpected text %q", results[0].Text)
	}
	// 0.6 question mark + 0.15 tag; "it's" is not a starter word.
	if math.Abs(results[0].Confidence-0.75) > 1e-9 {
		t.Errorf("expected confidence 0.75, got %v", results[0].Confidence)
	}
}

func TestInterrogativeStarterWithoutQuestionMark(t *testing.T) {
	var d Interrogative
	results := d.Detect("How do we configure the retry policy", 0, 1000, "")

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	// No question mark, interrogative starter, short: floored at 0.5.
	if math.Abs(results[0].Confidence-0.5) > 1e-9 {
		t.Errorf("expected confidence 0.5, got %v", results[0].Confidence)
	}
}

func TestInterrogativeNonQuestionsYieldNothing(t *testing.T) {
	var d Interrogative
	inputs := []string{
		"",
		"   ",
		"The deploy finished an hour ago.",
		"Everyone agreed on the plan. Nothing else happened.",
	}
	for _, in := range inputs {
		if got := d.Detect(in, 0, 1000, ""); len(got) != 0 {
			t.Errorf("Detect(%q): expected no results, got %d", in, len(got))
		}
	}
}

func TestInterrogativeDurationDistribution(t *testing.T) {
	var d Interrogative
	segment := "What happened? Why did it fail? Who restarted it?"
	start, end := 1000.0, 7000.0
	results := d.Detect(segment, start, end, "")

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	var total float64
	for _, q := range results {
		total += q.End - q.Start
	}
	if math.Abs(total-(end-start)) > 1e-6 {
		t.Errorf("per-sentence durations sum to %v, want %v", total, end-start)
	}
	if results[0].Start != start {
		t.Errorf("first sentence should start at %v, got %v", start, results[0].Start)
	}
	if results[1].Start <= results[0].Start || results[2].Start <= results[1].Start {
		t.Errorf("time cursor should advance per sentence: %v %v %v",
			results[0].Start, results[1].Start, results[2].Start)
	}
}

func TestInterrogativeIdempotent(t *testing.T) {
	var d Interrogative
	segment := "Is the build green? We shipped it. What changed, right?"
	first := d.Detect(segment, 0, 9000, "alice")
	second := d.Detect(segment, 0, 9000, "alice")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("detector is not idempotent:\n first=%v\nsecond=%v", first, second)
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"One. Two! Three?", []string{"One.", "Two!", "Three?"}},
		{"No terminal punctuation", []string{"No terminal punctuation"}},
		{"Trailing? ", []string{"Trailing?"}},
		{"a.b is not split. but this is", []string{"a.b is not split.", "but this is"}},
	}
	for _, tt := range tests {
		got := splitSentences(tt.in)
		trimmed := make([]string, 0, len(got))
		for _, s := range got {
			if s = strings.TrimSpace(s); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if !reflect.DeepEqual(trimmed, tt.want) {
			t.Errorf("splitSentences(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
