// Package web provides the HTTP listener: the WebSocket transport, the
// read-only admin endpoints, and the expvar metrics endpoint.
package web

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/config"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/game/world"
	"github.com/ambonmud/server/internal/gameserver"
	"github.com/ambonmud/server/internal/observability"
)

// inboundPublishTimeout bounds one enqueue attempt on the inbound bus.
const inboundPublishTimeout = 50 * time.Millisecond

// SessionIDSource allocates session ids for accepted connections.
type SessionIDSource interface {
	Next() id.SessionID
}

// Server hosts the WebSocket transport and the admin surface on one HTTP
// listener.
type Server struct {
	cfg       config.WebConfig
	engineCfg config.EngineConfig
	ids       SessionIDSource
	inbound   *event.InboundBus
	router    *gameserver.Router
	players   *player.Manager
	world     *world.World
	repo      player.Repository
	metrics   observability.Recorder
	logger    *zap.Logger

	httpServer *http.Server
	upgrader   websocket.Upgrader

	mu       sync.Mutex
	sessions map[id.SessionID]*wsSession
	running  bool
}

// Options carries the optional collaborators of the web server. Nil fields
// disable the corresponding endpoints.
type Options struct {
	// World enables /admin/zones and /admin/rooms/{zone}.
	World *world.World
	// Repo enables the staff-flag toggle.
	Repo player.Repository
	// MetricsEnabled publishes /debug/vars.
	MetricsEnabled bool
}

// NewServer creates the web server.
//
// Precondition: ids, inbound, router, players, and logger must be non-nil.
func NewServer(cfg config.WebConfig, engineCfg config.EngineConfig, ids SessionIDSource, inbound *event.InboundBus, router *gameserver.Router, players *player.Manager, opts Options, metrics observability.Recorder, logger *zap.Logger) *Server {
	if metrics == nil {
		metrics = observability.NopRecorder{}
	}
	s := &Server{
		cfg:       cfg,
		engineCfg: engineCfg,
		ids:       ids,
		inbound:   inbound,
		router:    router,
		players:   players,
		world:     opts.World,
		repo:      opts.Repo,
		metrics:   metrics,
		logger:    logger,
		sessions:  make(map[id.SessionID]*wsSession),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The admin surface has no auth; same-origin policy is left to
			// the deployment proxy.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/admin/players", s.handleAdminPlayers)
	if opts.World != nil {
		mux.HandleFunc("/admin/zones", s.handleAdminZones)
		mux.HandleFunc("/admin/rooms/", s.handleAdminRooms)
	}
	if opts.Repo != nil {
		mux.HandleFunc("/admin/staff", s.handleAdminStaff)
	}
	if opts.MetricsEnabled {
		mux.Handle("/debug/vars", expvar.Handler())
	}

	s.httpServer = &http.Server{
		Addr:              cfg.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// ListenAndServe serves HTTP until Stop is called.
//
// Postcondition: Returns nil after a graceful Stop, or the listen error.
func (s *Server) ListenAndServe() error {
	s.mu.Lock()
	s.running = true
	s.mu.Unlock()

	s.logger.Info("web server listening", zap.String("addr", s.cfg.Addr()))
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("web server: %w", err)
}

// Stop drains in-flight frames for the grace period, closes every
// WebSocket session, and shuts the HTTP server down within the stop
// timeout.
func (s *Server) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	sessions := make([]*wsSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	if len(sessions) > 0 && s.cfg.StopGracePeriod > 0 {
		time.Sleep(s.cfg.StopGracePeriod)
	}
	for _, sess := range sessions {
		sess.Close(event.ReasonShutdown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StopTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Warn("web server shutdown incomplete", zap.Error(err))
		_ = s.httpServer.Close()
	}
	s.logger.Info("web server stopped")
}

// handleWS upgrades the connection and runs the session loops.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sid := s.ids.Next()
	sess := newWSSession(sid, ws, s.cfg.MaxCloseReasonLength, s.logger)

	s.mu.Lock()
	s.sessions[sid] = sess
	active := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetGauge("web.sessions", int64(active))

	s.logger.Info("websocket client connected",
		zap.String("remote_addr", ws.RemoteAddr().String()),
		zap.Uint64("session_id", uint64(sid)),
	)

	frames := s.router.Register(sid, s.engineCfg.SessionOutboundQueueCapacity, sess.Close)

	if err := s.publish(event.Connected{
		SessionID: sid,
		Transport: event.TransportWebSocket,
	}); err != nil {
		sess.Close(event.ReasonBackpressure)
		s.router.Unregister(sid)
		s.forget(sid)
		return
	}

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		sess.writeLoop(frames)
	}()

	sess.readLoop(s.publish)

	s.router.Unregister(sid)
	writer.Wait()
	s.forget(sid)

	reason := sess.Reason()
	if err := s.publish(event.Disconnected{SessionID: sid, Reason: reason}); err != nil {
		s.logger.Warn("dropping disconnect event, inbound bus unavailable",
			zap.Uint64("session_id", uint64(sid)))
	}

	s.logger.Info("websocket session ended",
		zap.Uint64("session_id", uint64(sid)),
		zap.String("reason", string(reason)),
	)
}

func (s *Server) forget(sid id.SessionID) {
	s.mu.Lock()
	delete(s.sessions, sid)
	active := len(s.sessions)
	s.mu.Unlock()
	s.metrics.SetGauge("web.sessions", int64(active))
}

// publish enqueues an inbound event, retrying on a full bus up to the
// configured consecutive-failure limit.
func (s *Server) publish(ev event.InboundEvent) error {
	limit := s.engineCfg.InboundRetryLimit
	if limit < 1 {
		limit = 1
	}
	for attempt := 0; attempt < limit; attempt++ {
		err := s.inbound.Publish(ev, inboundPublishTimeout)
		if err == nil {
			return nil
		}
		if errors.Is(err, event.ErrBusClosed) {
			return err
		}
	}
	return event.ErrBusFull
}
