package h2

import "bytes"

// StreamState is one of §3 "H2 Stream" state set.
type StreamState int

const (
	StreamIdle StreamState = iota
	StreamOpen
	StreamHalfClosedLocal
	StreamHalfClosedRemote
	StreamClosed
)

// Stream is a single H2 stream (§3 "H2 Stream").
//
// Invariant: stream ids strictly increase per connection — enforced by
// Session.openStream, which only ever hands out ids from a monotonically
// incremented counter.
type Stream struct {
	ID    uint32
	State StreamState

	// ReqHeaders/RespHeaders hold the pseudo+regular header fields sent or
	// received on this stream, in wire order.
	ReqHeaders  []HeaderField
	RespHeaders []HeaderField
	RespStatus  string

	bodyBuf bytes.Buffer

	// sendWindow/recvWindow are this stream's flow-control credit.
	sendWindow int64
	recvWindow int64

	endStreamSent bool
	endStreamRecv bool

	// isExtendedConnect marks a WS-over-H2 tunnel stream (§4.3).
	isExtendedConnect bool

	// tunnel, when non-nil, is the pipe feeding DATA frames to the
	// Websocket framing layer above this stream.
	tunnel *tunnelPipe
}

// HeaderField is one HPACK field, kept in encounter order so pseudo-headers
// can be validated to precede regular headers (§8 invariant).
type HeaderField struct {
	Name  string
	Value string
}

// Body returns the bytes accumulated from DATA frames so far.
func (s *Stream) Body() []byte { return s.bodyBuf.Bytes() }

func (s *Stream) closeLocal() {
	switch s.State {
	case StreamOpen:
		s.State = StreamHalfClosedLocal
	case StreamHalfClosedRemote:
		s.State = StreamClosed
	}
}

func (s *Stream) closeRemote() {
	switch s.State {
	case StreamOpen:
		s.State = StreamHalfClosedRemote
	case StreamHalfClosedLocal:
		s.State = StreamClosed
	}
}
