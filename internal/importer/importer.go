// Package importer seeds a session's memory from a plain transcript
// file, one utterance per line.
package importer

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/soundbench/huddle/internal/conversation"
)

// Lines look like "[alice] we should ship on friday". Lines without a
// speaker tag keep the whole line as text with an empty speaker.
const maxLineSize = 1024 * 1024

// utteranceGapMs spaces imported lines out so window queries behave the
// same as they would on live transcripts.
const utteranceGapMs = 5000.0

// Line is one parsed transcript utterance.
type Line struct {
	Speaker string
	Text    string
	T0      float64
	T1      float64
}

// Parse reads transcript lines from r, skipping blanks and assigning
// monotonic timestamps starting at startMs.
func Parse(r io.Reader, startMs float64) ([]Line, error) {
	var lines []Line
	cursor := startMs

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		speaker, text := splitSpeaker(raw)
		if text == "" {
			continue
		}

		lines = append(lines, Line{
			Speaker: speaker,
			Text:    text,
			T0:      cursor,
			T1:      cursor + utteranceGapMs,
		})
		cursor += utteranceGapMs
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	return lines, nil
}

// splitSpeaker pulls a leading "[name]" tag off a line.
func splitSpeaker(line string) (speaker, text string) {
	if !strings.HasPrefix(line, "[") {
		return "", line
	}
	end := strings.Index(line, "]")
	if end < 1 {
		return "", line
	}
	return strings.TrimSpace(line[1:end]), strings.TrimSpace(line[end+1:])
}

// Importer writes parsed transcripts into conversation memory.
type Importer struct {
	writer conversation.Writer
	logger *slog.Logger
}

func New(writer conversation.Writer, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{writer: writer, logger: logger}
}

// ImportFile parses path and upserts every line as a final. Returns the
// number of lines imported.
func (im *Importer) ImportFile(ctx context.Context, path string, startMs float64) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	return im.Import(ctx, f, startMs)
}

// Import parses r and upserts every line as a final.
func (im *Importer) Import(ctx context.Context, r io.Reader, startMs float64) (int, error) {
	lines, err := Parse(r, startMs)
	if err != nil {
		return 0, err
	}

	for i, line := range lines {
		if _, err := im.writer.UpsertFinal(ctx, line.Speaker, line.Text, line.T0, line.T1); err != nil {
			return i, fmt.Errorf("import line %d: %w", i+1, err)
		}
	}

	im.logger.Info("transcript imported", "lines", len(lines))
	return len(lines), nil
}
