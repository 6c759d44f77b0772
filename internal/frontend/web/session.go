package web

import (
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/gameserver"
)

const (
	writeWait = 10 * time.Second
	// pongWait bounds idle reads; the ping period must be shorter.
	pongWait   = 5 * time.Minute
	pingPeriod = time.Minute
)

// gmcpFrame is the JSON envelope for GMCP over WebSocket, both directions.
type gmcpFrame struct {
	Gmcp string          `json:"gmcp"`
	Data json.RawMessage `json:"data,omitempty"`
}

// wsSession is one connected WebSocket client.
type wsSession struct {
	sid            id.SessionID
	ws             *websocket.Conn
	maxCloseRsnLen int
	logger         *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	reason    atomic.Value // event.DisconnectReason
}

func newWSSession(sid id.SessionID, ws *websocket.Conn, maxCloseReasonLength int, logger *zap.Logger) *wsSession {
	return &wsSession{
		sid:            sid,
		ws:             ws,
		maxCloseRsnLen: maxCloseReasonLength,
		logger:         logger,
	}
}

// Close sends a close control message and closes the socket, recording the
// first reason.
func (s *wsSession) Close(reason event.DisconnectReason) {
	s.closeOnce.Do(func() {
		s.reason.Store(reason)
		text := string(reason)
		if s.maxCloseRsnLen > 0 && len(text) > s.maxCloseRsnLen {
			text = text[:s.maxCloseRsnLen]
		}
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, text)
		s.writeMu.Lock()
		_ = s.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		s.writeMu.Unlock()
		_ = s.ws.Close()
	})
}

// Reason returns the recorded close reason, or ReasonEOF if the peer
// closed first.
func (s *wsSession) Reason() event.DisconnectReason {
	if r, ok := s.reason.Load().(event.DisconnectReason); ok {
		return r
	}
	return event.ReasonEOF
}

// readLoop consumes client frames until the socket closes. Each text frame
// is either a GMCP envelope or one command line.
func (s *wsSession) readLoop(publish func(event.InboundEvent) error) {
	s.ws.SetReadLimit(64 * 1024)
	_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))
	s.ws.SetPongHandler(func(string) error {
		return s.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, data, err := s.ws.ReadMessage()
		if err != nil {
			s.Close(classifyWSError(err))
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		_ = s.ws.SetReadDeadline(time.Now().Add(pongWait))

		if ev, ok := parseInbound(s.sid, data); ok {
			if err := publish(ev); err != nil {
				s.Close(event.ReasonBackpressure)
				return
			}
		}
	}
}

// parseInbound decodes one client text frame. A JSON object carrying a
// "gmcp" key is a GMCP message; anything else is a command line.
func parseInbound(sid id.SessionID, data []byte) (event.InboundEvent, bool) {
	trimmed := strings.TrimRight(string(data), "\r\n")
	if strings.HasPrefix(strings.TrimSpace(trimmed), "{") {
		var frame gmcpFrame
		if err := json.Unmarshal([]byte(trimmed), &frame); err == nil && frame.Gmcp != "" {
			return event.GmcpReceived{SessionID: sid, Package: frame.Gmcp, Payload: frame.Data}, true
		}
	}
	return event.LineReceived{SessionID: sid, Text: trimmed}, true
}

// writeLoop encodes router frames as WebSocket messages until the frame
// channel closes. Pings keep the connection alive between game output.
func (s *wsSession) writeLoop(frames <-chan gameserver.Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	failed := false
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return
			}
			if failed {
				continue
			}
			if err := s.writeFrame(f); err != nil {
				s.Close(event.ReasonIO)
				failed = true
			}
		case <-ticker.C:
			if failed {
				continue
			}
			s.writeMu.Lock()
			err := s.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
			s.writeMu.Unlock()
			if err != nil {
				s.Close(event.ReasonIO)
				failed = true
			}
		}
	}
}

func (s *wsSession) writeFrame(f gameserver.Frame) error {
	switch f.Kind {
	case gameserver.FrameText, gameserver.FrameInfo, gameserver.FramePrompt:
		return s.writeText(f.Text)
	case gameserver.FrameGmcp:
		data, err := json.Marshal(f.Payload)
		if err != nil {
			s.logger.Warn("encoding gmcp payload failed",
				zap.String("package", f.Package), zap.Error(err))
			return nil
		}
		body, err := json.Marshal(gmcpFrame{Gmcp: f.Package, Data: data})
		if err != nil {
			return err
		}
		return s.writeRaw(body)
	case gameserver.FrameClose:
		s.Close(f.Reason)
		return nil
	}
	return nil
}

func (s *wsSession) writeText(text string) error {
	return s.writeRaw([]byte(text))
}

func (s *wsSession) writeRaw(data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return s.ws.WriteMessage(websocket.TextMessage, data)
}

func classifyWSError(err error) event.DisconnectReason {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return event.ReasonEOF
	}
	return event.ReasonIO
}
