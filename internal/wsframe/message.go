package wsframe

import "errors"

// ErrNoOpenMessage is returned by Assembler.Feed when a CONTINUATION frame
// arrives with no open message (§3 WS Message Assembly: "protocol error,
// close code 1002").
var ErrNoOpenMessage = errors.New("wsframe: continuation with no open message")

// ErrMessageAlreadyOpen is returned when a new non-control data frame
// arrives while a message is still being assembled (§4.1 Fragmentation).
var ErrMessageAlreadyOpen = errors.New("wsframe: data frame received while message open")

// Message is a fully reassembled Websocket message.
type Message struct {
	Opcode  Opcode
	Data    []byte
	Inflate bool // RSV1 was set on the first frame (per-message-deflate)
}

// Assembler reassembles CONTINUATION fragments into a Message, in strict
// per-connection order. Control frames interleave freely and never join
// the reassembly buffer (§4.1 "Control frames").
type Assembler struct {
	open    bool
	opcode  Opcode
	inflate bool
	buf     []byte
	maxSize int
}

// NewAssembler builds an Assembler. maxSize <= 0 means unbounded.
func NewAssembler(maxSize int) *Assembler {
	return &Assembler{maxSize: maxSize}
}

// Feed processes one decoded data frame (non-control). It returns a
// completed Message when the frame had Fin=true, or (nil, nil) if the
// message is still open.
func (a *Assembler) Feed(f *Frame) (*Message, error) {
	if f.Head.Opcode.IsControl() {
		return nil, errors.New("wsframe: Feed called with a control frame")
	}

	if f.Head.Opcode == OpContinuation {
		if !a.open {
			return nil, ErrNoOpenMessage
		}
		if f.Head.RSV1 {
			return nil, errors.New("wsframe: RSV1 set on a continuation frame")
		}
	} else {
		if a.open {
			return nil, ErrMessageAlreadyOpen
		}
		a.open = true
		a.opcode = f.Head.Opcode
		a.inflate = f.Head.RSV1
		a.buf = a.buf[:0]
	}

	a.buf = append(a.buf, f.Payload...)
	if a.maxSize > 0 && len(a.buf) > a.maxSize {
		a.open = false
		return nil, errors.New("wsframe: message exceeds maximum size")
	}

	if !f.Head.Fin {
		return nil, nil
	}

	msg := &Message{Opcode: a.opcode, Data: append([]byte(nil), a.buf...), Inflate: a.inflate}
	a.open = false
	a.buf = nil
	return msg, nil
}

// IsOpen reports whether a message is currently being assembled.
func (a *Assembler) IsOpen() bool { return a.open }

// ParseClosePayload splits a CLOSE frame's payload per §4.1: 2-byte
// big-endian code followed by a UTF-8 reason. Absence of payload means a
// normal close (code 0, no reason — caller should treat this as 1005 "no
// status received" per §3 Close code glossary).
func ParseClosePayload(p []byte) (CloseCode, string) {
	if len(p) < 2 {
		return 0, ""
	}
	code := CloseCode(uint16(p[0])<<8 | uint16(p[1]))
	return code, string(p[2:])
}
