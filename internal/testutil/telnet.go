package testutil

import (
	"net"
	"strings"
	"testing"
	"time"

	"github.com/ambonmud/server/internal/frontend/telnet"
)

// TelnetClient is a test client for the telnet acceptor. It tracks the
// server's option offers, unescapes IAC IAC, and captures GMCP packets so
// assertions see clean text.
type TelnetClient struct {
	conn net.Conn
	t    *testing.T

	// Decoder state for the inbound stream.
	inIAC    bool
	pendCmd  byte
	inSB     bool
	sbOption byte
	sb       []byte

	offers []byte
	gmcp   []string

	// All decoded text received so far, and the scan position just past the
	// most recent ReadUntil match. Text after a match is kept for later calls.
	text    string
	scanPos int
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t *testing.T, addr string) *TelnetClient {
	t.Helper()
	start := time.Now()

	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v [%s]", addr, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	client := &TelnetClient{conn: conn, t: t}

	t.Logf("telnet client connected to %s [%s]", addr, time.Since(start))
	return client
}

// ReadUntil reads until the substring appears in the decoded text past the
// previous match, or the timeout elapses. IAC sequences are consumed by the
// client state machine and never reach the returned text. Decoded text that
// arrives after a match is buffered and seen by subsequent calls.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns the accumulated text containing substr, or fails on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	tmp := make([]byte, 1024)
	for {
		if i := strings.Index(c.text[c.scanPos:], substr); i >= 0 {
			c.scanPos += i + len(substr)
			return c.text[:c.scanPos]
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			c.text += c.decode(tmp[:n])
			continue
		}
		if err != nil {
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, c.text[c.scanPos:], err)
		}
	}
}

// decode strips telnet command sequences from raw bytes and returns the
// plain text. Negotiation offers and GMCP subnegotiations are recorded.
func (c *TelnetClient) decode(raw []byte) string {
	var out strings.Builder
	for _, b := range raw {
		switch {
		case c.inSB:
			c.decodeSB(b)
		case c.pendCmd != 0:
			if c.pendCmd == telnet.SB {
				c.inSB = true
				c.sbOption = b
				c.sb = c.sb[:0]
			} else if c.pendCmd == telnet.WILL {
				c.offers = append(c.offers, b)
			}
			c.pendCmd = 0
			c.inIAC = false
		case c.inIAC:
			switch b {
			case telnet.IAC:
				// IAC IAC escapes a literal 0xFF byte.
				out.WriteByte(telnet.IAC)
				c.inIAC = false
			case telnet.WILL, telnet.WONT, telnet.DO, telnet.DONT, telnet.SB:
				c.pendCmd = b
			default:
				// Bare command (NOP, GA, ...).
				c.inIAC = false
			}
		case b == telnet.IAC:
			c.inIAC = true
		default:
			out.WriteByte(b)
		}
	}
	return out.String()
}

// decodeSB consumes one subnegotiation byte. On IAC SE the completed packet
// is recorded when the option is GMCP.
func (c *TelnetClient) decodeSB(b byte) {
	if c.inIAC {
		c.inIAC = false
		switch b {
		case telnet.IAC:
			c.sb = append(c.sb, telnet.IAC)
		case telnet.SE:
			if c.sbOption == telnet.OptGMCP {
				c.gmcp = append(c.gmcp, string(c.sb))
			}
			c.inSB = false
		}
		return
	}
	if b == telnet.IAC {
		c.inIAC = true
		return
	}
	c.sb = append(c.sb, b)
}

// Offered reports whether the server sent IAC WILL for the option.
func (c *TelnetClient) Offered(option byte) bool {
	for _, o := range c.offers {
		if o == option {
			return true
		}
	}
	return false
}

// AcceptGmcp answers the server's GMCP offer with IAC DO 201.
func (c *TelnetClient) AcceptGmcp() {
	c.t.Helper()
	c.writeRaw([]byte{telnet.IAC, telnet.DO, telnet.OptGMCP})
}

// SendGmcp writes one GMCP packet as IAC SB 201 <body> IAC SE.
func (c *TelnetClient) SendGmcp(body string) {
	c.t.Helper()
	pkt := []byte{telnet.IAC, telnet.SB, telnet.OptGMCP}
	pkt = append(pkt, telnet.EscapeIAC([]byte(body))...)
	pkt = append(pkt, telnet.IAC, telnet.SE)
	c.writeRaw(pkt)
}

// GmcpPackets returns the GMCP subnegotiation bodies received so far, in
// arrival order.
func (c *TelnetClient) GmcpPackets() []string {
	return append([]string(nil), c.gmcp...)
}

// Send writes a line of text to the server, appending \r\n.
//
// Precondition: text should not contain trailing newline characters.
// Postcondition: text + \r\n is written to the connection.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	c.writeRaw([]byte(text + "\r\n"))
}

func (c *TelnetClient) writeRaw(data []byte) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(data); err != nil {
		c.t.Fatalf("writing %d bytes: %v", len(data), err)
	}
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	c.conn.Close()
}
