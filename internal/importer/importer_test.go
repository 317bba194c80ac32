package importer

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/soundbench/huddle/internal/conversation"
)

func TestParseSpeakerLines(t *testing.T) {
	input := `
[alice] we should ship on friday

[bob]  does the migration block that?
no speaker on this one
[carol]
`
	lines, err := Parse(strings.NewReader(input), 0)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("parsed %d lines, want 3: %+v", len(lines), lines)
	}

	if lines[0].Speaker != "alice" || lines[0].Text != "we should ship on friday" {
		t.Errorf("line 0 = %+v", lines[0])
	}
	if lines[1].Speaker != "bob" || lines[1].Text != "does the migration block that?" {
		t.Errorf("line 1 = %+v", lines[1])
	}
	if lines[2].Speaker != "" || lines[2].Text != "no speaker on this one" {
		t.Errorf("line 2 = %+v", lines[2])
	}
}

func TestParseMonotonicTimestamps(t *testing.T) {
	input := "[a] one\n[b] two\n[c] three\n"
	lines, err := Parse(strings.NewReader(input), 1000)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("parsed %d lines", len(lines))
	}
	for i, line := range lines {
		if line.T1 <= line.T0 {
			t.Errorf("line %d: T1 %v not after T0 %v", i, line.T1, line.T0)
		}
		if i > 0 && line.T0 < lines[i-1].T1 {
			t.Errorf("line %d overlaps previous: %v < %v", i, line.T0, lines[i-1].T1)
		}
	}
	if lines[0].T0 != 1000 {
		t.Errorf("first line starts at %v, want 1000", lines[0].T0)
	}
}

func TestSplitSpeaker(t *testing.T) {
	tests := []struct {
		line    string
		speaker string
		text    string
	}{
		{"[alice] hello", "alice", "hello"},
		{"hello there", "", "hello there"},
		{"[] empty tag", "", "empty tag"},
		{"[no close bracket", "", "[no close bracket"},
		{"[ spaced ] trimmed", "spaced", "trimmed"},
	}
	for _, tt := range tests {
		speaker, text := splitSpeaker(tt.line)
		if speaker != tt.speaker || text != tt.text {
			t.Errorf("splitSpeaker(%q) = (%q, %q), want (%q, %q)", tt.line, speaker, text, tt.speaker, tt.text)
		}
	}
}

type countingWriter struct {
	finals []conversation.Item
	failAt int
}

func (w *countingWriter) UpsertFinal(ctx context.Context, speaker, text string, t0, t1 float64) (*conversation.Item, error) {
	if w.failAt > 0 && len(w.finals)+1 == w.failAt {
		return nil, fmt.Errorf("db down")
	}
	item := conversation.Item{Kind: conversation.KindFinal, Speaker: speaker, Text: text, T0: t0, T1: t1}
	w.finals = append(w.finals, item)
	return &item, nil
}

func (w *countingWriter) UpsertAct(ctx context.Context, speaker, text, category string, t0, t1 float64) (*conversation.Item, error) {
	return nil, fmt.Errorf("unexpected UpsertAct")
}

func (w *countingWriter) UpsertAnswer(ctx context.Context, speaker, text string, t0, t1 float64, parentActID string) (*conversation.Item, error) {
	return nil, fmt.Errorf("unexpected UpsertAnswer")
}

func TestImportWritesFinals(t *testing.T) {
	writer := &countingWriter{}
	im := New(writer, nil)

	n, err := im.Import(context.Background(), strings.NewReader("[a] one\n[b] two\n"), 0)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if n != 2 || len(writer.finals) != 2 {
		t.Fatalf("imported %d lines, stored %d", n, len(writer.finals))
	}
	if writer.finals[1].Speaker != "b" || writer.finals[1].Text != "two" {
		t.Errorf("stored final = %+v", writer.finals[1])
	}
}

func TestImportStopsOnWriteFailure(t *testing.T) {
	writer := &countingWriter{failAt: 2}
	im := New(writer, nil)

	n, err := im.Import(context.Background(), strings.NewReader("[a] one\n[b] two\n[c] three\n"), 0)
	if err == nil {
		t.Fatal("expected error from failing writer")
	}
	if n != 1 {
		t.Errorf("imported count = %d, want 1 (lines before the failure)", n)
	}
}
