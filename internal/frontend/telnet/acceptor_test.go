package telnet

import (
	"bufio"
	"encoding/json"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ambonmud/server/internal/config"
	"github.com/ambonmud/server/internal/game/event"
	"github.com/ambonmud/server/internal/game/id"
	"github.com/ambonmud/server/internal/game/player"
	"github.com/ambonmud/server/internal/gameserver"
)

type acceptorFixture struct {
	acceptor *Acceptor
	inbound  *event.InboundBus
	outbound *event.OutboundBus
	router   *gameserver.Router
}

func startAcceptor(t *testing.T, tcfg config.TelnetConfig) *acceptorFixture {
	t.Helper()

	tcfg.Host = "127.0.0.1"
	tcfg.Port = 0
	if tcfg.ReadTimeout == 0 {
		tcfg.ReadTimeout = 5 * time.Second
	}
	if tcfg.WriteTimeout == 0 {
		tcfg.WriteTimeout = 5 * time.Second
	}
	if tcfg.ReadBufferBytes == 0 {
		tcfg.ReadBufferBytes = 4096
	}
	if tcfg.LineMaxLength == 0 {
		tcfg.LineMaxLength = 1024
	}
	if tcfg.MaxNonPrintablePerLine == 0 {
		tcfg.MaxNonPrintablePerLine = 32
	}
	if tcfg.MaxSubnegotiationLength == 0 {
		tcfg.MaxSubnegotiationLength = 4096
	}
	ecfg := config.EngineConfig{
		SessionOutboundQueueCapacity: 64,
		SessionOutboundTimeout:       100 * time.Millisecond,
		InboundRetryLimit:            3,
	}

	logger := zaptest.NewLogger(t)
	inbound := event.NewInboundBus(256)
	outbound := event.NewOutboundBus(256)
	router := gameserver.NewRouter(outbound, player.NewManager(), "[%h/%Hhp %m/%Mmp]> ", 100*time.Millisecond, nil, logger)
	a := NewAcceptor(tcfg, ecfg, id.NewCounterAllocator(), inbound, router, nil, logger)

	go func() { _ = a.ListenAndServe() }()
	require.Eventually(t, func() bool { return a.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	t.Cleanup(a.Stop)

	return &acceptorFixture{acceptor: a, inbound: inbound, outbound: outbound, router: router}
}

func (f *acceptorFixture) nextInbound(t *testing.T) event.InboundEvent {
	t.Helper()
	select {
	case ev := <-f.inbound.Receive():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for inbound event")
		return nil
	}
}

func dialAcceptor(t *testing.T, f *acceptorFixture) (net.Conn, *bufio.Reader) {
	t.Helper()
	c, err := net.Dial("tcp", f.acceptor.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	// The server leads with its option offers.
	r := bufio.NewReader(c)
	offer := make([]byte, 6)
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err = io.ReadFull(r, offer)
	require.NoError(t, err)
	assert.Equal(t, []byte{IAC, WILL, OptSuppressGoAhead, IAC, WILL, OptGMCP}, offer)
	return c, r
}

func TestAcceptorSessionLifecycle(t *testing.T) {
	f := startAcceptor(t, config.TelnetConfig{})
	c, r := dialAcceptor(t, f)

	conn, ok := f.nextInbound(t).(event.Connected)
	require.True(t, ok)
	assert.Equal(t, event.TransportTelnet, conn.Transport)
	assert.True(t, conn.ANSIEnabled)

	_, err := c.Write([]byte("look\r\n"))
	require.NoError(t, err)

	line, ok := f.nextInbound(t).(event.LineReceived)
	require.True(t, ok)
	assert.Equal(t, conn.SessionID, line.SessionID)
	assert.Equal(t, "look", line.Text)

	// Engine output reaches the wire CRLF-terminated.
	f.outbound.Publish(event.SendText{SessionID: conn.SessionID, Text: "You see nothing special."})
	f.router.DrainOnce()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
	out, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "You see nothing special.\r\n", out)

	// A close event terminates the connection and reports the reason.
	f.outbound.Publish(event.Close{SessionID: conn.SessionID, Reason: event.ReasonQuit})
	f.router.DrainOnce()

	disc, ok := f.nextInbound(t).(event.Disconnected)
	require.True(t, ok)
	assert.Equal(t, conn.SessionID, disc.SessionID)
	assert.Equal(t, event.ReasonQuit, disc.Reason)
}

func TestAcceptorClientDisconnect(t *testing.T) {
	f := startAcceptor(t, config.TelnetConfig{})
	c, _ := dialAcceptor(t, f)

	conn := f.nextInbound(t).(event.Connected)
	require.NoError(t, c.Close())

	disc, ok := f.nextInbound(t).(event.Disconnected)
	require.True(t, ok)
	assert.Equal(t, conn.SessionID, disc.SessionID)
	assert.Equal(t, event.ReasonEOF, disc.Reason)
}

func TestAcceptorProtocolViolation(t *testing.T) {
	f := startAcceptor(t, config.TelnetConfig{LineMaxLength: 8})
	c, _ := dialAcceptor(t, f)

	_ = f.nextInbound(t).(event.Connected)

	_, err := c.Write([]byte("this line is far longer than eight bytes\r\n"))
	require.NoError(t, err)

	disc, ok := f.nextInbound(t).(event.Disconnected)
	require.True(t, ok)
	assert.Equal(t, event.ReasonProtocol, disc.Reason)
}

func TestAcceptorGmcpNegotiationAndInbound(t *testing.T) {
	f := startAcceptor(t, config.TelnetConfig{})
	c, _ := dialAcceptor(t, f)

	conn := f.nextInbound(t).(event.Connected)

	// Accept the GMCP offer, then send a Core.Hello packet.
	_, err := c.Write([]byte{IAC, DO, OptGMCP})
	require.NoError(t, err)
	packet := append([]byte{IAC, SB, OptGMCP}, []byte(`Core.Hello {"client":"tester","version":"1"}`)...)
	packet = append(packet, IAC, SE)
	_, err = c.Write(packet)
	require.NoError(t, err)

	gmcp, ok := f.nextInbound(t).(event.GmcpReceived)
	require.True(t, ok)
	assert.Equal(t, conn.SessionID, gmcp.SessionID)
	assert.Equal(t, "Core.Hello", gmcp.Package)

	var hello struct {
		Client  string `json:"client"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(gmcp.Payload, &hello))
	assert.Equal(t, "tester", hello.Client)
}

func TestSplitGmcp(t *testing.T) {
	pkg, data := splitGmcp([]byte(`Char.Login {"name":"alice"}`))
	assert.Equal(t, "Char.Login", pkg)
	assert.JSONEq(t, `{"name":"alice"}`, string(data))

	pkg, data = splitGmcp([]byte("Core.Ping"))
	assert.Equal(t, "Core.Ping", pkg)
	assert.Nil(t, data)

	pkg, _ = splitGmcp([]byte("   "))
	assert.Equal(t, "", pkg)
}

func TestConnGmcpDisabledByDefault(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	conn := NewConn(1, server, time.Second, time.Second)
	defer conn.Close(event.ReasonShutdown)

	// No reader on the pipe: a write would block, so this only passes
	// because disabled GMCP writes nothing.
	require.NoError(t, conn.WriteGmcp("Char.Vitals", map[string]int{"hp": 1}))
}
