// Package events is the NATS boundary: transcript segments can be
// ingested from a subject, and detected acts and generated answers are
// published for downstream consumers.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects used by huddle.
const (
	SubjectSegment       = "huddle.transcript.segment"
	SubjectActDetected   = "huddle.act.detected"
	SubjectAnswerCreated = "huddle.answer.created"
)

// SegmentEvent is a finalized transcript segment arriving over the bus.
type SegmentEvent struct {
	SessionID string  `json:"session_id"`
	Speaker   string  `json:"speaker,omitempty"`
	Text      string  `json:"text"`
	T0        float64 `json:"t0"`
	T1        float64 `json:"t1"`
}

// ActEvent announces a detected act that passed the confidence gate.
type ActEvent struct {
	SessionID  string  `json:"session_id"`
	ActID      string  `json:"act_id"`
	Category   string  `json:"category"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

// AnswerEvent announces a generated answer.
type AnswerEvent struct {
	SessionID string `json:"session_id"`
	ActID     string `json:"act_id"`
	AnswerID  string `json:"answer_id"`
	Text      string `json:"text"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
