// Package stt is the streaming speech-to-text transport: PCM16 mono
// audio frames go out over a websocket, finalized transcript segments
// with timestamps and an optional speaker tag come back. Audio capture
// itself lives outside this module; any io.Reader producing PCM16 bytes
// can feed a session.
package stt

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Segment is one transcript update from the service. Only segments with
// Final set are fed into the detection pipeline.
type Segment struct {
	Text    string  `json:"text"`
	T0      float64 `json:"t0"` // ms
	T1      float64 `json:"t1"` // ms
	Speaker string  `json:"speaker,omitempty"`
	Final   bool    `json:"is_final"`
}

// Options configures a streaming session.
type Options struct {
	URL        string // websocket endpoint, ws:// or wss://
	APIKey     string
	Model      string
	Language   string
	SampleRate int // Hz, PCM16 mono
}

type serverMessage struct {
	Type    string  `json:"type"` // transcript | done | error
	Text    string  `json:"text"`
	IsFinal bool    `json:"is_final"`
	T0      float64 `json:"t0"`
	T1      float64 `json:"t1"`
	Speaker string  `json:"speaker"`
	Error   string  `json:"error"`
}

// Session is a live transcription stream. Audio frames are written with
// SendAudio; segments arrive on the Segments channel until the server
// closes the stream or an error occurs.
type Session struct {
	conn     *websocket.Conn
	segments chan Segment
	done     chan struct{}
	quit     chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu  sync.Mutex
	err    error
	logger *slog.Logger
}

// Dial opens a streaming session.
func Dial(ctx context.Context, opts Options, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	u, err := url.Parse(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("parse stt url: %w", err)
	}
	q := u.Query()
	if opts.Model != "" {
		q.Set("model", opts.Model)
	}
	language := opts.Language
	if language == "" {
		language = "en"
	}
	q.Set("language", language)
	q.Set("encoding", "pcm_s16le")
	sampleRate := opts.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}
	q.Set("sample_rate", fmt.Sprintf("%d", sampleRate))
	u.RawQuery = q.Encode()

	headers := http.Header{}
	if opts.APIKey != "" {
		headers.Set("X-API-Key", opts.APIKey)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, resp, err := dialer.DialContext(ctx, u.String(), headers)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if len(body) > 0 {
				return nil, fmt.Errorf("stt connect (status %d): %s", resp.StatusCode, string(body))
			}
			return nil, fmt.Errorf("stt connect: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("stt connect: %w", err)
	}

	s := &Session{
		conn:     conn,
		segments: make(chan Segment, 64),
		done:     make(chan struct{}),
		quit:     make(chan struct{}),
		logger:   logger,
	}
	go s.readLoop()
	return s, nil
}

// Segments yields transcript updates until the session ends.
func (s *Session) Segments() <-chan Segment {
	return s.segments
}

// SendAudio writes one PCM16 frame.
func (s *Session) SendAudio(pcm []byte) error {
	if s.closed.Load() {
		return fmt.Errorf("stt session is closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteMessage(websocket.BinaryMessage, pcm)
}

// Finalize asks the service to flush any buffered audio into a final
// segment.
func (s *Session) Finalize() error {
	if s.closed.Load() {
		return fmt.Errorf("stt session is closed")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(map[string]string{"type": "finalize"})
}

// Close shuts the session down and waits for the read loop to drain.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.quit)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
	<-s.done
	return nil
}

// Err returns the terminal session error, if any, once the session has
// ended.
func (s *Session) Err() error {
	<-s.done
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

func (s *Session) setErr(err error) {
	if err == nil {
		return
	}
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.segments)

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) && !s.closed.Load() {
				s.setErr(err)
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("unparsable stt message", "error", err)
			continue
		}

		switch msg.Type {
		case "transcript":
			seg := Segment{
				Text:    msg.Text,
				T0:      msg.T0,
				T1:      msg.T1,
				Speaker: msg.Speaker,
				Final:   msg.IsFinal,
			}
			select {
			case s.segments <- seg:
			case <-s.quit:
				return
			}
		case "done":
			return
		case "error":
			s.setErr(fmt.Errorf("stt error: %s", msg.Error))
			return
		}
	}
}

// pumpChunkSize is ~128ms of PCM16 mono at 16kHz.
const pumpChunkSize = 4096

// Pump reads PCM16 bytes from r and forwards them until EOF or
// cancellation, then finalizes the stream.
func (s *Session) Pump(ctx context.Context, r io.Reader) error {
	buf := make([]byte, pumpChunkSize)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := r.Read(buf)
		if n > 0 {
			if sendErr := s.SendAudio(buf[:n]); sendErr != nil {
				return fmt.Errorf("send audio: %w", sendErr)
			}
		}
		if err == io.EOF {
			return s.Finalize()
		}
		if err != nil {
			return fmt.Errorf("read audio: %w", err)
		}
	}
}
