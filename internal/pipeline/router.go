package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/soundbench/huddle/internal/events"
)

const segmentQueueSize = 256

// Router fans segments out to per-session workers. Segments for one
// session are processed in arrival order; sessions run concurrently.
type Router struct {
	ctx        context.Context
	newSession func(sessionID string) (*Session, error)
	logger     *slog.Logger

	// quit releases blocked dispatchers and stops the workers. The
	// queues themselves are never closed, so a send can always be
	// paired with a quit check instead of panicking on shutdown.
	quit      chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	queues  map[string]chan events.SegmentEvent
	closing bool
	wg      sync.WaitGroup
}

func NewRouter(ctx context.Context, newSession func(sessionID string) (*Session, error), logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		ctx:        ctx,
		newSession: newSession,
		logger:     logger,
		quit:       make(chan struct{}),
		queues:     make(map[string]chan events.SegmentEvent),
	}
}

// Dispatch enqueues a segment for its session, starting a worker on the
// session's first segment. Blocks while the session's queue is full;
// the segment is dropped instead when the router shuts down first.
func (r *Router) Dispatch(seg events.SegmentEvent) {
	if seg.SessionID == "" || seg.Text == "" {
		return
	}

	r.mu.Lock()
	if r.closing {
		r.mu.Unlock()
		return
	}
	queue, ok := r.queues[seg.SessionID]
	if !ok {
		queue = make(chan events.SegmentEvent, segmentQueueSize)
		r.queues[seg.SessionID] = queue
		r.wg.Add(1)
		go r.run(seg.SessionID, queue)
	}
	r.mu.Unlock()

	select {
	case queue <- seg:
	case <-r.quit:
	}
}

// HandleSegmentEvent is the bus handler for transcript segment events.
func (r *Router) HandleSegmentEvent(subject string, data []byte) {
	var seg events.SegmentEvent
	if err := json.Unmarshal(data, &seg); err != nil {
		r.logger.Error("parse segment event failed", "subject", subject, "error", err)
		return
	}
	r.Dispatch(seg)
}

func (r *Router) run(sessionID string, queue chan events.SegmentEvent) {
	defer r.wg.Done()

	sess, err := r.newSession(sessionID)
	if err != nil {
		r.logger.Error("create session failed", "session_id", sessionID, "error", err)
		// Discard so dispatchers never block on a dead session.
		for {
			select {
			case <-queue:
			case <-r.quit:
				return
			}
		}
	}

	for {
		select {
		case seg := <-queue:
			sess.HandleSegment(r.ctx, seg)
		case <-r.quit:
			r.drain(sess, queue)
			return
		}
	}
}

// drain finishes the segments that were already queued at shutdown.
func (r *Router) drain(sess *Session, queue chan events.SegmentEvent) {
	for {
		select {
		case seg := <-queue:
			sess.HandleSegment(r.ctx, seg)
		default:
			return
		}
	}
}

// Close stops accepting segments, lets the workers finish what was
// queued and waits for them to exit. Safe to call more than once.
func (r *Router) Close() {
	r.mu.Lock()
	r.closing = true
	r.mu.Unlock()

	r.closeOnce.Do(func() { close(r.quit) })
	r.wg.Wait()
}
