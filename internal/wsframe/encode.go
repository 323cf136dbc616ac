package wsframe

import (
	"crypto/rand"
	"encoding/binary"
)

// EncodeOptions controls a single call to Encode.
type EncodeOptions struct {
	Fin     bool
	RSV1    bool
	RSV2    bool
	RSV3    bool
	Opcode  Opcode
	Payload []byte
	// Mask is true for client-side encoders (mask=1) and false for
	// server-side encoders (mask=0). §4.1: "Client-side encoder MUST set
	// mask; server-side encoder MUST NOT."
	Mask bool
}

// Encode serializes one frame per RFC 6455 §5.2 / spec §4.1.
func Encode(opt EncodeOptions) []byte {
	payload := opt.Payload

	b0 := byte(0)
	if opt.Fin {
		b0 |= 1 << 7
	}
	if opt.RSV1 {
		b0 |= 1 << 6
	}
	if opt.RSV2 {
		b0 |= 1 << 5
	}
	if opt.RSV3 {
		b0 |= 1 << 4
	}
	b0 |= byte(opt.Opcode) & 0x0F

	var lenBytes []byte
	var lenCode byte
	switch {
	case len(payload) < 126:
		lenCode = byte(len(payload))
	case len(payload) <= 0xFFFF:
		lenCode = 126
		lenBytes = make([]byte, 2)
		binary.BigEndian.PutUint16(lenBytes, uint16(len(payload)))
	default:
		lenCode = 127
		lenBytes = make([]byte, 8)
		binary.BigEndian.PutUint64(lenBytes, uint64(len(payload)))
	}

	b1 := lenCode
	if opt.Mask {
		b1 |= 1 << 7
	}

	out := make([]byte, 0, 2+len(lenBytes)+4+len(payload))
	out = append(out, b0, b1)
	out = append(out, lenBytes...)

	if opt.Mask {
		var key [4]byte
		_, _ = rand.Read(key[:])
		out = append(out, key[:]...)
		masked := make([]byte, len(payload))
		applyMask(masked, payload, key)
		out = append(out, masked...)
		return out
	}

	out = append(out, payload...)
	return out
}

// EncodeWithKey is Encode but with an explicit mask key, used by tests that
// need `encode(decode(b)) == b` round-trips against a fixed key.
func EncodeWithKey(opt EncodeOptions, key [4]byte) []byte {
	if !opt.Mask {
		return Encode(opt)
	}
	payload := opt.Payload

	b0 := byte(0)
	if opt.Fin {
		b0 |= 1 << 7
	}
	if opt.RSV1 {
		b0 |= 1 << 6
	}
	if opt.RSV2 {
		b0 |= 1 << 5
	}
	if opt.RSV3 {
		b0 |= 1 << 4
	}
	b0 |= byte(opt.Opcode) & 0x0F

	var lenBytes []byte
	var lenCode byte
	switch {
	case len(payload) < 126:
		lenCode = byte(len(payload))
	case len(payload) <= 0xFFFF:
		lenCode = 126
		lenBytes = make([]byte, 2)
		binary.BigEndian.PutUint16(lenBytes, uint16(len(payload)))
	default:
		lenCode = 127
		lenBytes = make([]byte, 8)
		binary.BigEndian.PutUint64(lenBytes, uint64(len(payload)))
	}
	b1 := lenCode | 1<<7

	out := make([]byte, 0, 2+len(lenBytes)+4+len(payload))
	out = append(out, b0, b1)
	out = append(out, lenBytes...)
	out = append(out, key[:]...)
	masked := make([]byte, len(payload))
	applyMask(masked, payload, key)
	out = append(out, masked...)
	return out
}

func applyMask(dst, src []byte, key [4]byte) {
	for i := range src {
		dst[i] = src[i] ^ key[i%4]
	}
}

// Fragment splits payload into chunks no larger than segmentSize, returning
// the frames to emit: the first carries opcode/RSV1, the rest carry
// OpContinuation with RSV1 cleared, and the last has Fin=true. §4.1
// "Fragmentation": segmentSize is bounded by H2 MAX_FRAME_SIZE when tunneled
// over H2.
func Fragment(opcode Opcode, rsv1 bool, payload []byte, segmentSize int, mask bool) [][]byte {
	if segmentSize <= 0 || len(payload) <= segmentSize {
		return [][]byte{Encode(EncodeOptions{Fin: true, RSV1: rsv1, Opcode: opcode, Payload: payload, Mask: mask})}
	}
	var out [][]byte
	first := true
	for off := 0; off < len(payload); off += segmentSize {
		end := off + segmentSize
		if end > len(payload) {
			end = len(payload)
		}
		op := OpContinuation
		r1 := false
		if first {
			op = opcode
			r1 = rsv1
		}
		fin := end == len(payload)
		out = append(out, Encode(EncodeOptions{Fin: fin, RSV1: r1, Opcode: op, Payload: payload[off:end], Mask: mask}))
		first = false
	}
	return out
}

// EncodeClose builds a CLOSE frame payload per §4.1: 2-byte big-endian code
// followed by a UTF-8 reason.
func EncodeClose(code CloseCode, reason string) []byte {
	if code == 0 {
		return nil
	}
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, uint16(code))
	copy(p[2:], reason)
	return p
}
