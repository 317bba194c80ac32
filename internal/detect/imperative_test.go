package detect

import (
	"math"
	"reflect"
	"testing"

	"github.com/soundbench/huddle/internal/conversation"
)

func TestImperativeConfidenceTiers(t *testing.T) {
	var d Imperative
	tests := []struct {
		segment    string
		confidence float64
	}{
		{"Explain dependency injection in .NET applications.", 0.80},
		{"Please walk me through the rollout steps.", 0.80},
		{"Could you summarize yesterday's incident.", 0.72},
		{"Fix a flaky test in the scheduler suite.", 0.75},
		{"For example, retries with jitter.", 0.65},
	}
	for _, tt := range tests {
		results := d.Detect(tt.segment, 0, 1000, "")
		if len(results) != 1 {
			t.Errorf("Detect(%q): expected 1 result, got %d", tt.segment, len(results))
			continue
		}
		q := results[0]
		if math.Abs(q.Confidence-tt.confidence) > 1e-9 {
			t.Errorf("Detect(%q): expected confidence %v, got %v", tt.segment, tt.confidence, q.Confidence)
		}
		if q.Category != conversation.CategoryImperative {
			t.Errorf("Detect(%q): expected Imperative category, got %q", tt.segment, q.Category)
		}
	}
}

func TestImperativeNonCommandsYieldNothing(t *testing.T) {
	var d Imperative
	inputs := []string{
		"",
		"   ",
		"Everything looks fine so far.",
		"We shipped it yesterday evening.",
	}
	for _, in := range inputs {
		if got := d.Detect(in, 0, 1000, ""); len(got) != 0 {
			t.Errorf("Detect(%q): expected no results, got %v", in, got)
		}
	}
}

func TestImperativeDurationDistribution(t *testing.T) {
	var d Imperative
	segment := "Create a branch. Write the migration. Describe the rollback plan."
	start, end := 0.0, 6000.0
	results := d.Detect(segment, start, end, "bob")

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
}

func TestImperativeIdempotent(t *testing.T) {
	var d Imperative
	segment := "Implement the cache layer. Then we can talk."
	first := d.Detect(segment, 0, 4000, "")
	second := d.Detect(segment, 0, 4000, "")
	if !reflect.DeepEqual(first, second) {
		t.Errorf("detector is not idempotent:\n first=%v\nsecond=%v", first, second)
	}
}
