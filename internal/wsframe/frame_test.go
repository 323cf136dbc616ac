package wsframe

import (
	"bytes"
	"testing"
)

func TestRoundTripSizes(t *testing.T) {
	sizes := []int{0, 1, 125, 126, 127, 65535, 65536, 70000}
	key := [4]byte{0x11, 0x22, 0x33, 0x44}
	for _, n := range sizes {
		payload := bytes.Repeat([]byte{0xAB}, n)
		enc := EncodeWithKey(EncodeOptions{Fin: true, Opcode: OpBinary, Payload: payload, Mask: true}, key)

		dec := NewDecoder(true) // client-side decoder normally rejects masked; flip below
		dec.IsClientSide = false
		res, frame, consumed, _ := dec.Decode(enc)
		if res != Got {
			t.Fatalf("size %d: decode result=%v", n, res)
		}
		if consumed != len(enc) {
			t.Fatalf("size %d: consumed=%d want %d", n, consumed, len(enc))
		}
		if !bytes.Equal(frame.Payload, payload) {
			t.Fatalf("size %d: payload mismatch", n)
		}

		// re-encode with identical key must reproduce the same bytes
		again := EncodeWithKey(EncodeOptions{Fin: true, Opcode: OpBinary, Payload: frame.Payload, Mask: true}, key)
		if !bytes.Equal(again, enc) {
			t.Fatalf("size %d: re-encode mismatch", n)
		}
	}
}

func TestClientRejectsMaskedServerFrame(t *testing.T) {
	enc := EncodeWithKey(EncodeOptions{Fin: true, Opcode: OpText, Payload: []byte("hi"), Mask: true}, [4]byte{1, 2, 3, 4})
	dec := NewDecoder(true) // client decoder: server frames must be unmasked
	res, _, _, code := dec.Decode(enc)
	if res != Bad || code != CloseProtocolError {
		t.Fatalf("want Bad/1002, got %v/%v", res, code)
	}
}

func TestServerRejectsUnmaskedClientFrame(t *testing.T) {
	enc := Encode(EncodeOptions{Fin: true, Opcode: OpText, Payload: []byte("hi"), Mask: false})
	dec := NewDecoder(false) // server decoder: client frames must be masked
	res, _, _, code := dec.Decode(enc)
	if res != Bad || code != CloseProtocolError {
		t.Fatalf("want Bad/1002, got %v/%v", res, code)
	}
}

func TestControlFrameMustFitAndFin(t *testing.T) {
	dec := NewDecoder(false)

	// FIN=0 on a control frame.
	bad := Encode(EncodeOptions{Fin: false, Opcode: OpPing, Payload: nil, Mask: true})
	res, _, _, code := dec.Decode(bad)
	if res != Bad || code != CloseProtocolError {
		t.Fatalf("fin=0 control: want Bad/1002 got %v/%v", res, code)
	}

	// payload > 125 on control frame.
	big := bytes.Repeat([]byte{1}, 126)
	bad2 := Encode(EncodeOptions{Fin: true, Opcode: OpPing, Payload: big, Mask: true})
	res2, _, _, code2 := dec.Decode(bad2)
	if res2 != Bad || code2 != CloseProtocolError {
		t.Fatalf("oversize control: want Bad/1002 got %v/%v", res2, code2)
	}
}

func TestRSV1WithoutDeflateNegotiated(t *testing.T) {
	dec := NewDecoder(false)
	f := Encode(EncodeOptions{Fin: true, RSV1: true, Opcode: OpText, Payload: []byte("x"), Mask: true})
	res, _, _, code := dec.Decode(f)
	if res != Bad || code != CloseProtocolError {
		t.Fatalf("want Bad/1002 got %v/%v", res, code)
	}
}

func TestRSV1OnControlFrame(t *testing.T) {
	dec := NewDecoder(false)
	dec.DeflateNegotiated = true
	f := Encode(EncodeOptions{Fin: true, RSV1: true, Opcode: OpPing, Payload: nil, Mask: true})
	res, _, _, code := dec.Decode(f)
	if res != Bad || code != CloseProtocolError {
		t.Fatalf("want Bad/1002 got %v/%v", res, code)
	}
}

func TestReservedOpcodeRejected(t *testing.T) {
	dec := NewDecoder(false)
	// Manually build a frame with opcode=3 (reserved non-control).
	b := []byte{0x80 | 0x03, 0x80, 0, 0, 0, 0}
	res, _, _, code := dec.Decode(b)
	if res != Bad || code != CloseProtocolError {
		t.Fatalf("want Bad/1002 got %v/%v", res, code)
	}
}

func TestNeedMoreOnShortBuffer(t *testing.T) {
	dec := NewDecoder(false)
	enc := Encode(EncodeOptions{Fin: true, Opcode: OpBinary, Payload: bytes.Repeat([]byte{1}, 200), Mask: true})
	for i := 0; i < len(enc)-1; i++ {
		res, _, _, _ := dec.Decode(enc[:i])
		if res != NeedMore {
			t.Fatalf("prefix %d: want NeedMore got %v", i, res)
		}
	}
}

func TestAssemblerFragmentationOrder(t *testing.T) {
	a := NewAssembler(0)
	f1 := Frame{Head: Head{Fin: false, Opcode: OpText}, Payload: []byte("hel")}
	f2 := Frame{Head: Head{Fin: false, Opcode: OpContinuation}, Payload: []byte("lo ")}
	f3 := Frame{Head: Head{Fin: true, Opcode: OpContinuation}, Payload: []byte("world")}

	if m, err := a.Feed(&f1); err != nil || m != nil {
		t.Fatalf("f1: %v %v", m, err)
	}
	if m, err := a.Feed(&f2); err != nil || m != nil {
		t.Fatalf("f2: %v %v", m, err)
	}
	m, err := a.Feed(&f3)
	if err != nil {
		t.Fatalf("f3: %v", err)
	}
	if string(m.Data) != "hello world" {
		t.Fatalf("got %q", m.Data)
	}
}

func TestAssemblerContinuationWithoutOpenMessage(t *testing.T) {
	a := NewAssembler(0)
	f := Frame{Head: Head{Fin: true, Opcode: OpContinuation}, Payload: []byte("x")}
	_, err := a.Feed(&f)
	if err != ErrNoOpenMessage {
		t.Fatalf("want ErrNoOpenMessage got %v", err)
	}
}

func TestAssemblerRejectsNewDataFrameWhileOpen(t *testing.T) {
	a := NewAssembler(0)
	f1 := Frame{Head: Head{Fin: false, Opcode: OpText}, Payload: []byte("a")}
	if _, err := a.Feed(&f1); err != nil {
		t.Fatal(err)
	}
	f2 := Frame{Head: Head{Fin: false, Opcode: OpBinary}, Payload: []byte("b")}
	if _, err := a.Feed(&f2); err != ErrMessageAlreadyOpen {
		t.Fatalf("want ErrMessageAlreadyOpen got %v", err)
	}
}

func TestClosePayloadRoundTrip(t *testing.T) {
	p := EncodeClose(CloseProtocolError, "bad")
	code, reason := ParseClosePayload(p)
	if code != CloseProtocolError || reason != "bad" {
		t.Fatalf("got %v %q", code, reason)
	}
}

func TestClosePayloadAbsentIsNormal(t *testing.T) {
	code, reason := ParseClosePayload(nil)
	if code != 0 || reason != "" {
		t.Fatalf("got %v %q", code, reason)
	}
}
