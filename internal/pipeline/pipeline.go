// Package pipeline orchestrates segment handling: persist the final,
// detect acts, build context, answer, and publish events.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/soundbench/huddle/internal/conversation"
	"github.com/soundbench/huddle/internal/detect"
	"github.com/soundbench/huddle/internal/events"
	"github.com/soundbench/huddle/internal/prompt"
)

// Detector finds question and imperative acts in a finalized segment.
type Detector interface {
	Detect(ctx context.Context, segment string, start, end float64, speakerID string) []detect.DetectedQuestion
}

// PackBuilder assembles the answer context for a new act.
type PackBuilder interface {
	Build(ctx context.Context, fullFinal, newActText string, nowMs float64) (*prompt.Pack, error)
}

// Answerer generates and stores an answer for an act.
type Answerer interface {
	AnswerAndPersist(ctx context.Context, act *conversation.Item, pack *prompt.Pack) (*conversation.Item, error)
}

// Publisher emits bus events. A nil Publisher disables publishing.
type Publisher interface {
	Publish(subject string, data any) error
}

// Session processes one conversation's segments. Callers must invoke
// HandleSegment serially; the Router takes care of that.
type Session struct {
	id            string
	writer        conversation.Writer
	detector      Detector
	builder       PackBuilder
	answerer      Answerer
	publisher     Publisher
	minConfidence float64
	logger        *slog.Logger
}

func NewSession(id string, writer conversation.Writer, detector Detector, builder PackBuilder, answerer Answerer, publisher Publisher, minConfidence float64, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		id:            id,
		writer:        writer,
		detector:      detector,
		builder:       builder,
		answerer:      answerer,
		publisher:     publisher,
		minConfidence: minConfidence,
		logger:        logger.With("session_id", id),
	}
}

// HandleSegment runs the full pipeline for one finalized segment. Every
// stage after the final write degrades to logging: a broken act never
// blocks the next segment.
func (s *Session) HandleSegment(ctx context.Context, seg events.SegmentEvent) {
	if _, err := s.writer.UpsertFinal(ctx, seg.Speaker, seg.Text, seg.T0, seg.T1); err != nil {
		s.logger.Error("persist final failed", "error", err)
		return
	}

	detections := s.detector.Detect(ctx, seg.Text, seg.T0, seg.T1, seg.Speaker)
	for _, d := range detections {
		if d.Confidence < s.minConfidence {
			continue
		}
		s.handleAct(ctx, seg, d)
	}
}

func (s *Session) handleAct(ctx context.Context, seg events.SegmentEvent, d detect.DetectedQuestion) {
	act, err := s.writer.UpsertAct(ctx, d.SpeakerID, d.Text, d.Category, d.Start, d.End)
	if err != nil {
		s.logger.Error("persist act failed", "text", d.Text, "error", err)
		return
	}

	s.logger.Info("act detected",
		"act_id", act.ID,
		"category", d.Category,
		"confidence", d.Confidence,
	)
	s.publish(events.SubjectActDetected, events.ActEvent{
		SessionID:  s.id,
		ActID:      act.ID,
		Category:   d.Category,
		Text:       d.Text,
		Confidence: d.Confidence,
	})

	if s.answerer == nil {
		return
	}

	pack, err := s.builder.Build(ctx, seg.Text, d.Text, d.End)
	if err != nil {
		s.logger.Error("build context failed", "act_id", act.ID, "error", err)
		return
	}

	ans, err := s.answerer.AnswerAndPersist(ctx, act, pack)
	if err != nil {
		s.logger.Error("answer failed", "act_id", act.ID, "error", err)
		return
	}

	s.publish(events.SubjectAnswerCreated, events.AnswerEvent{
		SessionID: s.id,
		ActID:     act.ID,
		AnswerID:  ans.ID,
		Text:      ans.Text,
	})
}

func (s *Session) publish(subject string, data any) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(subject, data); err != nil {
		s.logger.Warn("publish failed", "subject", subject, "error", err)
	}
}
