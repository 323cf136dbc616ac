package wsframe

import "encoding/binary"

// Decoder incrementally parses frames out of an inbound byte buffer. One
// Decoder instance should be dedicated to one connection side, since the
// masking expectation differs: a decoder used by a client expects
// server-to-client frames (unmasked); a decoder used by a server expects
// client-to-server frames (masked). §4.1 Decode.
type Decoder struct {
	// IsClientSide is true when this decoder parses frames received BY a
	// client FROM a server: such frames must not be masked.
	IsClientSide bool

	// DeflateNegotiated gates whether RSV1 is legal on the first frame of
	// a message (per-message-deflate).
	DeflateNegotiated bool
	// ExtensionsNegotiated gates RSV2/RSV3 (reserved for other extensions
	// this codec does not implement itself).
	ExtensionsNegotiated bool
}

// NewDecoder builds a Decoder for the given side.
func NewDecoder(isClientSide bool) *Decoder {
	return &Decoder{IsClientSide: isClientSide}
}

// Decode attempts to parse one frame from buf. It returns the number of
// bytes consumed from buf (valid even on NeedMore, which is always 0) and,
// on Bad, the close code to report.
func (d *Decoder) Decode(buf []byte) (DecodeResult, *Frame, int, CloseCode) {
	if len(buf) < 2 {
		return NeedMore, nil, 0, 0
	}

	b0 := buf[0]
	b1 := buf[1]

	h := Head{
		Fin:    b0&0x80 != 0,
		RSV1:   b0&0x40 != 0,
		RSV2:   b0&0x20 != 0,
		RSV3:   b0&0x10 != 0,
		Opcode: Opcode(b0 & 0x0F),
		Masked: b1&0x80 != 0,
	}
	lenCode := b1 & 0x7F

	switch h.Opcode {
	case OpContinuation, OpText, OpBinary, OpClose, OpPing, OpPong:
	default:
		return Bad, nil, 0, CloseProtocolError
	}

	if h.RSV2 || h.RSV3 {
		if !d.ExtensionsNegotiated {
			return Bad, nil, 0, CloseProtocolError
		}
	}

	if h.Opcode.IsControl() {
		if !h.Fin {
			return Bad, nil, 0, CloseProtocolError
		}
		if lenCode > 125 {
			return Bad, nil, 0, CloseProtocolError
		}
		if h.RSV1 {
			return Bad, nil, 0, CloseProtocolError
		}
	}

	// RSV1 only ever legally appears on the first frame of a
	// per-message-deflate message: never on a CONTINUATION, and never at
	// all when deflate wasn't negotiated (§4.1 Decode, §8 invariant).
	if h.RSV1 {
		if !d.DeflateNegotiated {
			return Bad, nil, 0, CloseProtocolError
		}
		if h.Opcode == OpContinuation {
			return Bad, nil, 0, CloseProtocolError
		}
	}

	off := 2
	switch lenCode {
	case 126:
		if len(buf) < off+2 {
			return NeedMore, nil, 0, 0
		}
		h.Length = uint64(binary.BigEndian.Uint16(buf[off : off+2]))
		off += 2
	case 127:
		if len(buf) < off+8 {
			return NeedMore, nil, 0, 0
		}
		h.Length = binary.BigEndian.Uint64(buf[off : off+8])
		off += 8
	default:
		h.Length = uint64(lenCode)
	}

	if h.Masked {
		if len(buf) < off+4 {
			return NeedMore, nil, 0, 0
		}
		copy(h.MaskKey[:], buf[off:off+4])
		off += 4
	}

	// §4.1: server→client masked, or client→server unmasked, is illegal.
	if d.IsClientSide && h.Masked {
		return Bad, nil, 0, CloseProtocolError
	}
	if !d.IsClientSide && !h.Masked {
		return Bad, nil, 0, CloseProtocolError
	}

	total := off + int(h.Length)
	if total < off {
		// overflow
		return Bad, nil, 0, CloseProtocolError
	}
	if len(buf) < total {
		return NeedMore, nil, 0, 0
	}

	payload := make([]byte, h.Length)
	copy(payload, buf[off:total])
	if h.Masked {
		applyMask(payload, payload, h.MaskKey)
	}

	return Got, &Frame{Head: h, Payload: payload}, total, 0
}
