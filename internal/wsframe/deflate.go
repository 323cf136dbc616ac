package wsframe

// rawDeflateTail is the 4-byte trailer (0x00 0x00 0xFF 0xFF) that a raw
// DEFLATE stream needs appended before inflating, and that permessage-deflate
// requires stripped before sending on the wire (RFC 7692 §7.2.1).
var rawDeflateTail = []byte{0x00, 0x00, 0xFF, 0xFF}

// RmTail strips a trailing raw-deflate 4-byte marker if present, returning
// the trimmed slice. §6 "a helper rmTail/setTail to strip/append the 4-byte
// raw-deflate trailer required by per-message-deflate."
func RmTail(b []byte) []byte {
	if len(b) >= 4 && bytesEqual(b[len(b)-4:], rawDeflateTail) {
		return b[:len(b)-4]
	}
	return b
}

// SetTail appends the raw-deflate trailer marker.
func SetTail(b []byte) []byte {
	out := make([]byte, len(b)+4)
	copy(out, b)
	copy(out[len(b):], rawDeflateTail)
	return out
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// DeflateCodec is the raw-deflate contract this package needs (satisfied by
// internal/compress's deflate codec through its CompressDeflate and
// DecompressDeflate methods), expressed locally to avoid an import of the compress package from the
// owned protocol core (the compression algorithm itself is an out-of-scope
// external collaborator per spec §1/§6; wsframe only needs to call it).
type DeflateCodec interface {
	CompressDeflate(in []byte, windowBits int) ([]byte, error)
	DecompressDeflate(in []byte, windowBits int) ([]byte, error)
}

// DeflateParams holds the negotiated permessage-deflate parameters (§6).
type DeflateParams struct {
	ServerNoContextTakeover bool
	ClientNoContextTakeover bool
	ServerMaxWindowBits     int // 8..15, 0 = not present (defaults to 15)
	ClientMaxWindowBits     int
}

// DeflateMessage compresses msg for sending as the first frame of a message
// with RSV1 set: raw-deflate, then the trailing 4 bytes are stripped.
func DeflateMessage(codec DeflateCodec, msg []byte, windowBits int) ([]byte, error) {
	if windowBits == 0 {
		windowBits = 15
	}
	out, err := codec.CompressDeflate(msg, windowBits)
	if err != nil {
		return nil, err
	}
	return RmTail(out), nil
}

// InflateMessage reverses DeflateMessage: appends the trailer back, then
// inflates.
func InflateMessage(codec DeflateCodec, msg []byte, windowBits int) ([]byte, error) {
	if windowBits == 0 {
		windowBits = 15
	}
	return codec.DecompressDeflate(SetTail(msg), windowBits)
}
