package telnet

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/config"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/gameserver"
	"github.com/ambonmud/server/internal/observability"
)

// inboundPublishTimeout bounds one enqueue attempt on the inbound bus.
const inboundPublishTimeout = 50 * time.Millisecond

// SessionIDSource allocates session ids for accepted connections.
type SessionIDSource interface {
	Next() id.SessionID
}

// Acceptor listens for telnet connections, assigns each a session id, and
// runs its read and write loops against the inbound bus and the outbound
// router.
type Acceptor struct {
	cfg       config.TelnetConfig
	engineCfg config.EngineConfig
	ids       SessionIDSource
	inbound   *event.InboundBus
	router    *gameserver.Router
	metrics   observability.Recorder
	logger    *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[id.SessionID]*Conn
	running  bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewAcceptor creates a telnet acceptor.
//
// Precondition: ids, inbound, router, and logger must be non-nil.
// Postcondition: Returns an Acceptor ready to be started with ListenAndServe.
func NewAcceptor(cfg config.TelnetConfig, engineCfg config.EngineConfig, ids SessionIDSource, inbound *event.InboundBus, router *gameserver.Router, metrics observability.Recorder, logger *zap.Logger) *Acceptor {
	if metrics == nil {
		metrics = observability.NopRecorder{}
	}
	return &Acceptor{
		cfg:       cfg,
		engineCfg: engineCfg,
		ids:       ids,
		inbound:   inbound,
		router:    router,
		metrics:   metrics,
		logger:    logger,
		conns:     make(map[id.SessionID]*Conn),
		quit:      make(chan struct{}),
	}
}

// ListenAndServe starts the TCP listener and accepts connections until Stop
// is called. Blocks until the acceptor is stopped.
//
// Precondition: The acceptor must not already be running.
// Postcondition: The listener is closed when this method returns.
func (a *Acceptor) ListenAndServe() error {
	start := time.Now()

	listener, err := net.Listen("tcp", a.cfg.Addr())
	if err != nil {
		return fmt.Errorf("listening on %s: %w", a.cfg.Addr(), err)
	}

	a.mu.Lock()
	a.listener = listener
	a.running = true
	a.mu.Unlock()

	a.logger.Info("telnet acceptor listening",
		zap.String("addr", listener.Addr().String()),
		zap.Duration("startup", time.Since(start)),
	)

	for {
		raw, err := listener.Accept()
		if err != nil {
			select {
			case <-a.quit:
				return nil
			default:
				a.logger.Error("accepting connection", zap.Error(err))
				continue
			}
		}

		a.wg.Add(1)
		go a.handleConn(raw)
	}
}

// Stop closes the listener and every active session, then waits for all
// session goroutines to finish.
//
// Postcondition: All connections are closed and goroutines have exited.
func (a *Acceptor) Stop() {
	a.mu.Lock()
	if !a.running {
		a.mu.Unlock()
		return
	}
	a.running = false
	close(a.quit)
	if a.listener != nil {
		_ = a.listener.Close()
	}
	for _, c := range a.conns {
		c.Close(event.ReasonShutdown)
	}
	a.mu.Unlock()

	a.wg.Wait()
	a.logger.Info("telnet acceptor stopped")
}

// Addr returns the actual listening address, or "" before ListenAndServe.
func (a *Acceptor) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		return a.listener.Addr().String()
	}
	return ""
}

// handleConn runs one session from accept to disconnect.
func (a *Acceptor) handleConn(raw net.Conn) {
	defer a.wg.Done()
	start := time.Now()

	sid := a.ids.Next()
	conn := NewConn(sid, raw, a.cfg.ReadTimeout, a.cfg.WriteTimeout)
	addr := raw.RemoteAddr().String()

	a.logger.Info("client connected",
		zap.String("remote_addr", addr),
		zap.Uint64("session_id", uint64(sid)),
	)

	a.mu.Lock()
	a.conns[sid] = conn
	active := len(a.conns)
	a.mu.Unlock()
	a.metrics.SetGauge("telnet.sessions", int64(active))

	defer func() {
		a.mu.Lock()
		delete(a.conns, sid)
		active := len(a.conns)
		a.mu.Unlock()
		a.metrics.SetGauge("telnet.sessions", int64(active))
	}()

	if err := conn.Negotiate(); err != nil {
		a.logger.Warn("telnet negotiation failed",
			zap.String("remote_addr", addr), zap.Error(err))
		conn.Close(event.ReasonIO)
		return
	}

	frames := a.router.Register(sid, a.engineCfg.SessionOutboundQueueCapacity, conn.Close)

	if err := a.publish(event.Connected{
		SessionID:   sid,
		Transport:   event.TransportTelnet,
		ANSIEnabled: true,
	}); err != nil {
		conn.Close(event.ReasonBackpressure)
		a.router.Unregister(sid)
		return
	}

	var writer sync.WaitGroup
	writer.Add(1)
	go func() {
		defer writer.Done()
		a.writeLoop(conn, frames)
	}()

	a.readLoop(conn)

	a.router.Unregister(sid)
	writer.Wait()

	reason := conn.Reason()
	if err := a.publish(event.Disconnected{SessionID: sid, Reason: reason}); err != nil {
		a.logger.Warn("dropping disconnect event, inbound bus unavailable",
			zap.Uint64("session_id", uint64(sid)))
	}

	a.logger.Info("session ended",
		zap.String("remote_addr", addr),
		zap.Uint64("session_id", uint64(sid)),
		zap.String("reason", string(reason)),
		zap.Duration("duration", time.Since(start)),
	)
}

// readLoop feeds connection bytes through the decoder until the connection
// closes or a protocol guard trips.
func (a *Acceptor) readLoop(conn *Conn) {
	dec := NewDecoder(Limits{
		LineMaxLength:           a.cfg.LineMaxLength,
		MaxNonPrintablePerLine:  a.cfg.MaxNonPrintablePerLine,
		MaxSubnegotiationLength: a.cfg.MaxSubnegotiationLength,
	})
	buf := make([]byte, a.cfg.ReadBufferBytes)

	for {
		n, err := conn.Read(buf)
		for _, b := range buf[:n] {
			events, derr := dec.Feed(b)
			if derr != nil {
				a.metrics.IncCounter("telnet.protocol_violations", 1)
				a.logger.Warn("closing session for protocol violation",
					zap.Uint64("session_id", uint64(conn.SessionID())),
					zap.Error(derr))
				_ = conn.WriteLine("Protocol violation. Goodbye.")
				conn.Close(event.ReasonProtocol)
				return
			}
			for _, ev := range events {
				if !a.handleEvent(conn, ev) {
					return
				}
			}
		}
		if err != nil {
			conn.Close(classifyReadError(err))
			return
		}
	}
}

// handleEvent dispatches one decoded event. Returns false when the session
// must end.
func (a *Acceptor) handleEvent(conn *Conn, ev Event) bool {
	switch e := ev.(type) {
	case Line:
		if err := a.publish(event.LineReceived{SessionID: conn.SessionID(), Text: e.Text}); err != nil {
			a.metrics.IncCounter("telnet.inbound_drops", 1)
			conn.Close(event.ReasonBackpressure)
			return false
		}
	case Negotiation:
		a.handleNegotiation(conn, e)
	case Subnegotiation:
		if e.Option == OptGMCP {
			return a.handleGmcp(conn, e.Payload)
		}
		a.logger.Debug("ignoring subnegotiation",
			zap.Uint64("session_id", uint64(conn.SessionID())),
			zap.Uint8("option", e.Option),
			zap.Int("payload_len", len(e.Payload)))
	case Command:
		a.logger.Debug("ignoring telnet command",
			zap.Uint64("session_id", uint64(conn.SessionID())),
			zap.Uint8("cmd", e.Cmd))
	}
	return true
}

func (a *Acceptor) handleNegotiation(conn *Conn, n Negotiation) {
	switch {
	case n.Option == OptGMCP && n.Cmd == DO:
		conn.SetGmcpEnabled(true)
	case n.Option == OptGMCP && n.Cmd == DONT:
		conn.SetGmcpEnabled(false)
	case n.Option == OptTerminalType || n.Option == OptNAWS:
		a.logger.Debug("client negotiated option",
			zap.Uint64("session_id", uint64(conn.SessionID())),
			zap.Uint8("cmd", n.Cmd),
			zap.Uint8("option", n.Option))
	}
}

// handleGmcp parses "<Package.Name> <json>" and forwards it inbound.
func (a *Acceptor) handleGmcp(conn *Conn, payload []byte) bool {
	pkg, data := splitGmcp(payload)
	if pkg == "" {
		a.logger.Debug("ignoring malformed gmcp packet",
			zap.Uint64("session_id", uint64(conn.SessionID())))
		return true
	}
	if err := a.publish(event.GmcpReceived{
		SessionID: conn.SessionID(),
		Package:   pkg,
		Payload:   data,
	}); err != nil {
		a.metrics.IncCounter("telnet.inbound_drops", 1)
		conn.Close(event.ReasonBackpressure)
		return false
	}
	return true
}

// splitGmcp separates the package name from the optional JSON body.
func splitGmcp(payload []byte) (string, json.RawMessage) {
	s := strings.TrimSpace(string(payload))
	if s == "" {
		return "", nil
	}
	if i := strings.IndexByte(s, ' '); i > 0 {
		body := strings.TrimSpace(s[i+1:])
		if json.Valid([]byte(body)) {
			return s[:i], json.RawMessage(body)
		}
		return s[:i], nil
	}
	return s, nil
}

// writeLoop encodes router frames onto the wire until the frame channel
// closes. After a write error remaining frames are drained and discarded so
// the router never stalls on this session.
func (a *Acceptor) writeLoop(conn *Conn, frames <-chan gameserver.Frame) {
	failed := false
	for f := range frames {
		if failed {
			continue
		}
		var err error
		switch f.Kind {
		case gameserver.FrameText, gameserver.FrameInfo:
			err = conn.WriteLine(f.Text)
		case gameserver.FramePrompt:
			err = conn.WritePrompt(f.Text)
		case gameserver.FrameGmcp:
			err = conn.WriteGmcp(f.Package, f.Payload)
		case gameserver.FrameClose:
			conn.Close(f.Reason)
			failed = true
		}
		if err != nil {
			conn.Close(event.ReasonIO)
			failed = true
		}
	}
}

// publish enqueues an inbound event, retrying on a full bus up to the
// configured consecutive-failure limit.
func (a *Acceptor) publish(ev event.InboundEvent) error {
	limit := a.engineCfg.InboundRetryLimit
	if limit < 1 {
		limit = 1
	}
	for attempt := 0; attempt < limit; attempt++ {
		err := a.inbound.Publish(ev, inboundPublishTimeout)
		if err == nil {
			return nil
		}
		if errors.Is(err, event.ErrBusClosed) {
			return err
		}
	}
	return event.ErrBusFull
}

func classifyReadError(err error) event.DisconnectReason {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return event.ReasonTimeout
	}
	if errors.Is(err, net.ErrClosed) {
		// Closed locally; the recorded reason wins.
		return event.ReasonEOF
	}
	if errors.Is(err, io.EOF) {
		return event.ReasonEOF
	}
	return event.ReasonIO
}
