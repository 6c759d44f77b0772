package gameserver

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/ansi"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/observability"
)

// FrameKind discriminates the frames a transport receives.
type FrameKind int

// Frame kinds.
const (
	FrameText FrameKind = iota
	FrameInfo
	FramePrompt
	FrameGmcp
	FrameClose
)

// Frame is one unit of session output, ready for a transport to encode.
type Frame struct {
	Kind    FrameKind
	Text    string
	Package string
	Payload any
	Reason  event.DisconnectReason
}

// CloseFunc asks the transport to terminate its session.
type CloseFunc func(reason event.DisconnectReason)

type sessionQueue struct {
	closeFn CloseFunc

	// mu serializes sends on ch against Unregister closing it. Held across
	// the whole enqueue attempt, so a close can never interleave with a send.
	mu sync.Mutex
	ch chan Frame
	// closed is set by Unregister; sends after it are discarded.
	closed bool
	// dropping is set after a backpressure close; further frames for the
	// session are discarded.
	dropping bool
}

// Router fans the outbound bus out to per-session bounded frame queues.
// Ordering per session follows bus order. A session whose queue stays full
// past the enqueue timeout is closed with the backpressure reason and its
// remaining output is dropped.
type Router struct {
	bus     *event.OutboundBus
	players *player.Manager
	prompt  string
	timeout time.Duration
	metrics observability.Recorder
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[id.SessionID]*sessionQueue
}

// NewRouter creates a router reading from bus. prompt is the template for
// SendPrompt rendering; timeout bounds each per-session enqueue.
func NewRouter(bus *event.OutboundBus, players *player.Manager, prompt string, timeout time.Duration, metrics observability.Recorder, logger *zap.Logger) *Router {
	if metrics == nil {
		metrics = observability.NopRecorder{}
	}
	return &Router{
		bus:      bus,
		players:  players,
		prompt:   prompt,
		timeout:  timeout,
		metrics:  metrics,
		logger:   logger,
		sessions: make(map[id.SessionID]*sessionQueue),
	}
}

// Register creates the session's frame queue and returns its receive side.
// closeFn is invoked (once, from the router goroutine) if the session must
// be closed for backpressure.
//
// Precondition: capacity must be >= 1.
// Postcondition: Frames for sid are delivered to the returned channel in
// publish order until Unregister or a backpressure close.
func (r *Router) Register(sid id.SessionID, capacity int, closeFn CloseFunc) <-chan Frame {
	q := &sessionQueue{ch: make(chan Frame, capacity), closeFn: closeFn}
	r.mu.Lock()
	r.sessions[sid] = q
	r.mu.Unlock()
	return q.ch
}

// Unregister removes the session's queue and closes its channel. Waits for
// any in-flight delivery to the session to finish first, so the wait is
// bounded by the enqueue timeout. Safe to call while the router is
// delivering.
func (r *Router) Unregister(sid id.SessionID) {
	r.mu.Lock()
	q, ok := r.sessions[sid]
	delete(r.sessions, sid)
	r.mu.Unlock()
	if !ok {
		return
	}
	q.mu.Lock()
	q.closed = true
	close(q.ch)
	q.mu.Unlock()
}

// Run consumes the outbound bus until ctx is cancelled.
func (r *Router) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-r.bus.Receive():
			r.dispatch(ev)
		}
	}
}

// DrainOnce processes every event currently queued on the bus. Tests use it
// instead of Run to keep delivery synchronous.
func (r *Router) DrainOnce() {
	for {
		select {
		case ev := <-r.bus.Receive():
			r.dispatch(ev)
		default:
			return
		}
	}
}

func (r *Router) dispatch(ev event.OutboundEvent) {
	switch e := ev.(type) {
	case event.SendText:
		r.deliver(e.SessionID, Frame{Kind: FrameText, Text: e.Text})
	case event.SendInfo:
		r.deliver(e.SessionID, Frame{Kind: FrameInfo, Text: e.Text})
	case event.SendPrompt:
		r.deliver(e.SessionID, Frame{Kind: FramePrompt, Text: r.renderPrompt(e.SessionID)})
	case event.SendGmcp:
		r.deliver(e.SessionID, Frame{Kind: FrameGmcp, Package: e.Package, Payload: e.Payload})
	case event.Close:
		r.deliver(e.SessionID, Frame{Kind: FrameClose, Reason: e.Reason})
	case event.SessionRedirect:
		// Single-engine deployment: redirects terminate here.
		r.logger.Debug("session redirect consumed",
			zap.Uint64("session_id", uint64(e.SessionID)),
			zap.String("engine_id", e.EngineID))
	}
}

// renderPrompt expands the prompt template from the player's vitals.
// %h/%H expand to current/max HP, %m/%M to current/max mana.
func (r *Router) renderPrompt(sid id.SessionID) string {
	st, ok := r.players.Get(sid)
	if !ok || !st.Playing() {
		return "> "
	}
	rep := strings.NewReplacer(
		"%h", strconv.Itoa(st.HP),
		"%H", strconv.Itoa(st.MaxHP),
		"%m", strconv.Itoa(st.Mana),
		"%M", strconv.Itoa(st.MaxMana),
	)
	return ansi.Wrap(st.ANSIEnabled, ansi.Cyan, rep.Replace(r.prompt))
}

func (r *Router) deliver(sid id.SessionID, f Frame) {
	r.mu.Lock()
	q, ok := r.sessions[sid]
	r.mu.Unlock()
	if !ok {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed || q.dropping {
		return
	}

	select {
	case q.ch <- f:
		return
	default:
	}

	t := time.NewTimer(r.timeout)
	defer t.Stop()
	select {
	case q.ch <- f:
	case <-t.C:
		q.dropping = true
		r.metrics.IncCounter("router.backpressure_closes", 1)
		r.logger.Warn("session output queue stalled, closing",
			zap.Uint64("session_id", uint64(sid)))
		q.closeFn(event.ReasonBackpressure)
	}
}
