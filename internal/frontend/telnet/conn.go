package telnet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
)

// Conn wraps one accepted TCP connection. Reads go through the decoder
// state machine; writes encode router frames onto the wire. Writes are
// serialized; Close is idempotent and records the first reason.
type Conn struct {
	sid id.SessionID
	raw net.Conn

	readTimeout  time.Duration
	writeTimeout time.Duration

	writeMu sync.Mutex

	gmcpEnabled atomic.Bool

	closeOnce sync.Once
	reason    atomic.Value // event.DisconnectReason
}

// NewConn wraps a raw TCP connection.
//
// Precondition: raw must be a valid, open network connection.
// Postcondition: Returns a Conn ready for reading and writing.
func NewConn(sid id.SessionID, raw net.Conn, readTimeout, writeTimeout time.Duration) *Conn {
	return &Conn{
		sid:          sid,
		raw:          raw,
		readTimeout:  readTimeout,
		writeTimeout: writeTimeout,
	}
}

// SessionID returns the session id assigned at accept time.
func (c *Conn) SessionID() id.SessionID { return c.sid }

// RemoteAddr returns the remote network address of the client.
func (c *Conn) RemoteAddr() net.Addr { return c.raw.RemoteAddr() }

// Negotiate sends the initial option offers: suppress go-ahead and GMCP.
//
// Postcondition: Negotiation bytes are written to the connection.
func (c *Conn) Negotiate() error {
	return c.writeRaw([]byte{
		IAC, WILL, OptSuppressGoAhead,
		IAC, WILL, OptGMCP,
	})
}

// Read fills buf from the connection, honoring the read timeout.
func (c *Conn) Read(buf []byte) (int, error) {
	if c.readTimeout > 0 {
		_ = c.raw.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.raw.Read(buf)
}

// GmcpEnabled reports whether the client accepted the GMCP option.
func (c *Conn) GmcpEnabled() bool { return c.gmcpEnabled.Load() }

// SetGmcpEnabled records the client's answer to the GMCP offer.
func (c *Conn) SetGmcpEnabled(enabled bool) { c.gmcpEnabled.Store(enabled) }

// WriteLine sends one output line terminated with CR LF, escaping any IAC
// bytes in the text.
//
// Precondition: text must not contain a trailing newline.
func (c *Conn) WriteLine(text string) error {
	buf := append(EscapeIAC([]byte(text)), '\r', '\n')
	return c.writeRaw(buf)
}

// WritePrompt sends the prompt without a line terminator.
func (c *Conn) WritePrompt(prompt string) error {
	return c.writeRaw(EscapeIAC([]byte(prompt)))
}

// WriteGmcp sends one GMCP packet as IAC SB 201 "<pkg> <json>" IAC SE.
// A no-op unless the client negotiated GMCP.
//
// Postcondition: payload is JSON-encoded; encoding failures are returned
// without writing anything.
func (c *Conn) WriteGmcp(pkg string, payload any) error {
	if !c.gmcpEnabled.Load() {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding gmcp %s: %w", pkg, err)
	}
	var buf bytes.Buffer
	buf.Write([]byte{IAC, SB, OptGMCP})
	buf.WriteString(pkg)
	buf.WriteByte(' ')
	buf.Write(EscapeIAC(data))
	buf.Write([]byte{IAC, SE})
	return c.writeRaw(buf.Bytes())
}

func (c *Conn) writeRaw(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		_ = c.raw.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	_, err := c.raw.Write(data)
	return err
}

// Close closes the connection, recording reason on the first call.
//
// Postcondition: The connection is closed; Reason returns the first
// recorded reason.
func (c *Conn) Close(reason event.DisconnectReason) {
	c.closeOnce.Do(func() {
		c.reason.Store(reason)
		_ = c.raw.Close()
	})
}

// Reason returns the recorded close reason, or ReasonEOF if the peer
// closed first.
func (c *Conn) Reason() event.DisconnectReason {
	if r, ok := c.reason.Load().(event.DisconnectReason); ok {
		return r
	}
	return event.ReasonEOF
}
