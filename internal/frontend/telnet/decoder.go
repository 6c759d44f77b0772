// Package telnet provides the TCP transport: a line decoder implementing
// the telnet IAC protocol with abuse guards, per-connection sessions, and
// the acceptor that bridges connections onto the engine's event buses.
package telnet

import "fmt"

// Telnet IAC (Interpret As Command) constants per RFC 854.
const (
	IAC  byte = 255 // Interpret As Command
	DONT byte = 254
	DO   byte = 253
	WONT byte = 252
	WILL byte = 251
	SB   byte = 250 // Sub-negotiation Begin
	SE   byte = 240 // Sub-negotiation End
	NOP  byte = 241
	GA   byte = 249 // Go Ahead

	// Telnet options.
	OptEcho            byte = 1
	OptSuppressGoAhead byte = 3
	OptTerminalType    byte = 24
	OptNAWS            byte = 31
	OptGMCP            byte = 201
)

// decoderState enumerates the decoder's protocol states.
type decoderState int

const (
	stateData decoderState = iota
	stateIAC
	stateIACCmd
	stateSBOption
	stateSBData
	stateSBDataIAC
)

// Event is one decoded protocol event.
type Event interface{ isTelnetEvent() }

// Line is one complete input line with the trailing \r stripped.
type Line struct {
	Text string
}

// Command is a bare two-byte IAC command (NOP, GA, ...).
type Command struct {
	Cmd byte
}

// Negotiation is an option negotiation (WILL/WONT/DO/DONT + option).
type Negotiation struct {
	Cmd    byte
	Option byte
}

// Subnegotiation is a completed IAC SB ... IAC SE payload.
type Subnegotiation struct {
	Option  byte
	Payload []byte
}

func (Line) isTelnetEvent()           {}
func (Command) isTelnetEvent()        {}
func (Negotiation) isTelnetEvent()    {}
func (Subnegotiation) isTelnetEvent() {}

// ProtocolError reports an abuse-guard violation. The transport closes the
// session when the decoder returns one.
type ProtocolError struct {
	Violation string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("telnet protocol violation: %s", e.Violation)
}

// Limits are the decoder abuse guards.
type Limits struct {
	// LineMaxLength caps the accumulated line in bytes.
	LineMaxLength int
	// MaxNonPrintablePerLine caps bytes outside 0x20..0x7E, tab, and CR.
	MaxNonPrintablePerLine int
	// MaxSubnegotiationLength caps one subnegotiation payload.
	MaxSubnegotiationLength int
}

// DefaultLimits match the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		LineMaxLength:           1024,
		MaxNonPrintablePerLine:  32,
		MaxSubnegotiationLength: 4096,
	}
}

// Decoder is the telnet line decoder state machine. Feed it one byte at a
// time; it emits lines, negotiations, and subnegotiations. Not safe for
// concurrent use. After an error the decoder must be discarded.
type Decoder struct {
	limits Limits

	state        decoderState
	line         []byte
	nonPrintable int
	cmd          byte
	sbOption     byte
	sbData       []byte
}

// NewDecoder creates a decoder with the given guards.
//
// Precondition: every limit must be >= 1.
func NewDecoder(limits Limits) *Decoder {
	return &Decoder{limits: limits}
}

// Feed advances the state machine by one byte.
//
// Postcondition: Returns the events completed by this byte (usually none or
// one), or a *ProtocolError when an abuse guard trips.
func (d *Decoder) Feed(b byte) ([]Event, error) {
	switch d.state {
	case stateData:
		switch b {
		case IAC:
			d.state = stateIAC
			return nil, nil
		case '\n':
			return []Event{d.emitLine()}, nil
		default:
			return nil, d.appendLineByte(b)
		}

	case stateIAC:
		switch b {
		case IAC:
			// IAC IAC escapes a literal 0xFF data byte.
			d.state = stateData
			return nil, d.appendLineByte(IAC)
		case SB:
			d.state = stateSBOption
			return nil, nil
		case WILL, WONT, DO, DONT:
			d.cmd = b
			d.state = stateIACCmd
			return nil, nil
		default:
			d.state = stateData
			return []Event{Command{Cmd: b}}, nil
		}

	case stateIACCmd:
		d.state = stateData
		return []Event{Negotiation{Cmd: d.cmd, Option: b}}, nil

	case stateSBOption:
		d.sbOption = b
		d.sbData = d.sbData[:0]
		d.state = stateSBData
		return nil, nil

	case stateSBData:
		if b == IAC {
			d.state = stateSBDataIAC
			return nil, nil
		}
		return nil, d.appendSBByte(b)

	case stateSBDataIAC:
		switch b {
		case SE:
			payload := make([]byte, len(d.sbData))
			copy(payload, d.sbData)
			d.sbData = d.sbData[:0]
			d.state = stateData
			return []Event{Subnegotiation{Option: d.sbOption, Payload: payload}}, nil
		case IAC:
			d.state = stateSBData
			return nil, d.appendSBByte(IAC)
		default:
			// Malformed subnegotiation: abandon it.
			d.sbData = d.sbData[:0]
			d.state = stateData
			return nil, nil
		}
	}
	return nil, &ProtocolError{Violation: fmt.Sprintf("invalid decoder state %d", d.state)}
}

func (d *Decoder) emitLine() Event {
	text := d.line
	if n := len(text); n > 0 && text[n-1] == '\r' {
		text = text[:n-1]
	}
	ev := Line{Text: string(text)}
	d.line = d.line[:0]
	d.nonPrintable = 0
	return ev
}

func (d *Decoder) appendLineByte(b byte) error {
	if len(d.line) >= d.limits.LineMaxLength {
		return &ProtocolError{Violation: fmt.Sprintf("line exceeds %d bytes", d.limits.LineMaxLength)}
	}
	if !printable(b) {
		d.nonPrintable++
		if d.nonPrintable > d.limits.MaxNonPrintablePerLine {
			return &ProtocolError{Violation: fmt.Sprintf("more than %d non-printable bytes in one line", d.limits.MaxNonPrintablePerLine)}
		}
	}
	d.line = append(d.line, b)
	return nil
}

func (d *Decoder) appendSBByte(b byte) error {
	if len(d.sbData) >= d.limits.MaxSubnegotiationLength {
		return &ProtocolError{Violation: fmt.Sprintf("subnegotiation exceeds %d bytes", d.limits.MaxSubnegotiationLength)}
	}
	d.sbData = append(d.sbData, b)
	return nil
}

// printable reports whether b is allowed without counting toward the
// non-printable guard. Tab and CR are allowed.
func printable(b byte) bool {
	return (b >= 0x20 && b <= 0x7E) || b == '\t' || b == '\r'
}

// EscapeIAC doubles any 0xFF bytes so data passes through a telnet stream
// unmodified.
//
// Postcondition: Decoding the result yields the original data.
func EscapeIAC(data []byte) []byte {
	n := 0
	for _, b := range data {
		if b == IAC {
			n++
		}
	}
	if n == 0 {
		return data
	}
	out := make([]byte, 0, len(data)+n)
	for _, b := range data {
		if b == IAC {
			out = append(out, IAC)
		}
		out = append(out, b)
	}
	return out
}
