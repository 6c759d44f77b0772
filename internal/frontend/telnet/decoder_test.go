package telnet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func feedAll(t *testing.T, d *Decoder, data []byte) []Event {
	t.Helper()
	var out []Event
	for _, b := range data {
		events, err := d.Feed(b)
		require.NoError(t, err)
		out = append(out, events...)
	}
	return out
}

func TestDecoderPlainLine(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte("look\r\n"))
	require.Len(t, events, 1)
	assert.Equal(t, Line{Text: "look"}, events[0])
}

func TestDecoderLFWithoutCR(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte("north\n"))
	require.Len(t, events, 1)
	assert.Equal(t, Line{Text: "north"}, events[0])
}

func TestDecoderInteriorCRKept(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte("a\rb\r\n"))
	require.Len(t, events, 1)
	assert.Equal(t, Line{Text: "a\rb"}, events[0])
}

func TestDecoderEscapedIACBecomesData(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte{'x', IAC, IAC, 'y', '\n'})
	require.Len(t, events, 1)
	assert.Equal(t, Line{Text: "x\xffy"}, events[0])
}

func TestDecoderNegotiation(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte{IAC, DO, OptGMCP})
	require.Len(t, events, 1)
	assert.Equal(t, Negotiation{Cmd: DO, Option: OptGMCP}, events[0])
}

func TestDecoderBareCommand(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte{IAC, NOP})
	require.Len(t, events, 1)
	assert.Equal(t, Command{Cmd: NOP}, events[0])
}

func TestDecoderSubnegotiation(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	data := append([]byte{IAC, SB, OptGMCP}, []byte("Core.Hello")...)
	data = append(data, IAC, SE)
	events := feedAll(t, d, data)
	require.Len(t, events, 1)
	sub, ok := events[0].(Subnegotiation)
	require.True(t, ok)
	assert.Equal(t, OptGMCP, sub.Option)
	assert.Equal(t, []byte("Core.Hello"), sub.Payload)
}

func TestDecoderSubnegotiationEscapedIAC(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	events := feedAll(t, d, []byte{IAC, SB, OptNAWS, 0x00, IAC, IAC, 0x01, IAC, SE})
	require.Len(t, events, 1)
	sub := events[0].(Subnegotiation)
	assert.Equal(t, []byte{0x00, 0xFF, 0x01}, sub.Payload)
}

func TestDecoderAbandonsMalformedSubnegotiation(t *testing.T) {
	d := NewDecoder(DefaultLimits())
	// IAC followed by neither SE nor IAC inside subnegotiation data.
	events := feedAll(t, d, []byte{IAC, SB, OptGMCP, 'a', IAC, 'x'})
	assert.Empty(t, events)

	// The decoder is back in data state and still produces lines.
	events = feedAll(t, d, []byte("hi\n"))
	require.Len(t, events, 1)
	assert.Equal(t, Line{Text: "hi"}, events[0])
}

func TestDecoderLineLengthGuard(t *testing.T) {
	d := NewDecoder(Limits{LineMaxLength: 4, MaxNonPrintablePerLine: 32, MaxSubnegotiationLength: 64})
	feedAll(t, d, []byte("abcd"))
	_, err := d.Feed('e')
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Violation, "line exceeds")
}

func TestDecoderNonPrintableGuard(t *testing.T) {
	d := NewDecoder(Limits{LineMaxLength: 64, MaxNonPrintablePerLine: 2, MaxSubnegotiationLength: 64})
	feedAll(t, d, []byte{0x01, 0x02})
	_, err := d.Feed(0x03)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)

	// Tab and CR never count.
	d = NewDecoder(Limits{LineMaxLength: 64, MaxNonPrintablePerLine: 1, MaxSubnegotiationLength: 64})
	events := feedAll(t, d, []byte("a\tb\r\n"))
	require.Len(t, events, 1)
	assert.Equal(t, Line{Text: "a\tb"}, events[0])
}

func TestDecoderNonPrintableCountResetsPerLine(t *testing.T) {
	d := NewDecoder(Limits{LineMaxLength: 64, MaxNonPrintablePerLine: 1, MaxSubnegotiationLength: 64})
	feedAll(t, d, []byte{0x01, '\n', 0x01, '\n'})
	_, err := d.Feed(0x01)
	assert.NoError(t, err)
}

func TestDecoderSubnegotiationLengthGuard(t *testing.T) {
	d := NewDecoder(Limits{LineMaxLength: 64, MaxNonPrintablePerLine: 32, MaxSubnegotiationLength: 3})
	feedAll(t, d, []byte{IAC, SB, OptGMCP, 'a', 'b', 'c'})
	_, err := d.Feed('d')
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Contains(t, perr.Violation, "subnegotiation exceeds")
}

func TestDecoderNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := NewDecoder(DefaultLimits())
		data := rapid.SliceOfN(rapid.Byte(), 0, 2048).Draw(t, "data")
		for _, b := range data {
			if _, err := d.Feed(b); err != nil {
				// Guards may trip; the decoder just must not panic.
				return
			}
		}
	})
}

func TestDecoderEscapeRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 0, 512).Draw(t, "payload")

		d := NewDecoder(DefaultLimits())
		wire := []byte{IAC, SB, OptGMCP}
		wire = append(wire, EscapeIAC(payload)...)
		wire = append(wire, IAC, SE)

		var events []Event
		for _, b := range wire {
			evs, err := d.Feed(b)
			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}
			events = append(events, evs...)
		}
		if len(events) != 1 {
			t.Fatalf("got %d events, want 1", len(events))
		}
		sub, ok := events[0].(Subnegotiation)
		if !ok {
			t.Fatalf("got %T, want Subnegotiation", events[0])
		}
		if string(sub.Payload) != string(payload) {
			t.Fatalf("payload round trip mismatch: got %q, want %q", sub.Payload, payload)
		}
	})
}
