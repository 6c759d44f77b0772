// Package event defines the inbound and outbound event types exchanged
// between transports and the engine, and the bounded buses carrying them.
package event

import (
	"encoding/json"

	"github.com/ambonmud/server/internal/game/id"
)

// Transport names used in Connected events.
const (
	TransportTelnet    = "telnet"
	TransportWebSocket = "websocket"
)

// DisconnectReason classifies why a session ended.
type DisconnectReason string

// Disconnect reasons emitted by transports and the router.
const (
	ReasonEOF          DisconnectReason = "eof"
	ReasonIO           DisconnectReason = "io"
	ReasonTimeout      DisconnectReason = "timeout"
	ReasonBackpressure DisconnectReason = "backpressure"
	ReasonProtocol     DisconnectReason = "protocol"
	ReasonQuit         DisconnectReason = "quit"
	ReasonShutdown     DisconnectReason = "shutdown"
)

// InboundEvent is one of the closed set of events transports produce.
type InboundEvent interface {
	// Session identifies the originating session.
	Session() id.SessionID
	isInbound()
}

// Connected signals a freshly accepted connection.
type Connected struct {
	SessionID   id.SessionID
	Transport   string
	ANSIEnabled bool
}

// Disconnected signals that the transport lost the session.
type Disconnected struct {
	SessionID id.SessionID
	Reason    DisconnectReason
}

// LineReceived carries one complete input line.
type LineReceived struct {
	SessionID id.SessionID
	Text      string
}

// GmcpReceived carries one inbound GMCP message.
type GmcpReceived struct {
	SessionID id.SessionID
	Package   string
	Payload   json.RawMessage
}

func (e Connected) Session() id.SessionID    { return e.SessionID }
func (e Disconnected) Session() id.SessionID { return e.SessionID }
func (e LineReceived) Session() id.SessionID { return e.SessionID }
func (e GmcpReceived) Session() id.SessionID { return e.SessionID }

func (Connected) isInbound()    {}
func (Disconnected) isInbound() {}
func (LineReceived) isInbound() {}
func (GmcpReceived) isInbound() {}

// OutboundEvent is one of the closed set of events the engine produces.
type OutboundEvent interface {
	// Session identifies the target session.
	Session() id.SessionID
	isOutbound()
}

// SendText delivers a plain game-output line.
type SendText struct {
	SessionID id.SessionID
	Text      string
}

// SendInfo delivers an informational line (differs from SendText only in
// default styling).
type SendInfo struct {
	SessionID id.SessionID
	Text      string
}

// SendPrompt asks the router to render and deliver the player's prompt.
type SendPrompt struct {
	SessionID id.SessionID
}

// SendGmcp delivers one GMCP packet.
type SendGmcp struct {
	SessionID id.SessionID
	Package   string
	Payload   any
}

// Close instructs the transport to terminate the session.
type Close struct {
	SessionID id.SessionID
	Reason    DisconnectReason
}

// SessionRedirect hands the session to another engine. It is consumed by
// the router or gateway and never reaches a transport.
type SessionRedirect struct {
	SessionID id.SessionID
	EngineID  string
}

func (e SendText) Session() id.SessionID        { return e.SessionID }
func (e SendInfo) Session() id.SessionID        { return e.SessionID }
func (e SendPrompt) Session() id.SessionID      { return e.SessionID }
func (e SendGmcp) Session() id.SessionID        { return e.SessionID }
func (e Close) Session() id.SessionID           { return e.SessionID }
func (e SessionRedirect) Session() id.SessionID { return e.SessionID }

func (SendText) isOutbound()        {}
func (SendInfo) isOutbound()        {}
func (SendPrompt) isOutbound()      {}
func (SendGmcp) isOutbound()        {}
func (Close) isOutbound()           {}
func (SessionRedirect) isOutbound() {}
