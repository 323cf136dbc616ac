package compress

import (
	"bytes"
	"testing"
)

var allRoundTrippable = []Method{MethodDeflate, MethodGzip, MethodBrotli, MethodZstd, MethodLZ4, MethodLZMA}

func TestRoundTripAllCodecs(t *testing.T) {
	payload := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)
	for _, m := range allRoundTrippable {
		m := m
		t.Run(string(m), func(t *testing.T) {
			c, err := ForMethod(m)
			if err != nil {
				t.Fatal(err)
			}
			compressed, err := c.Compress(payload)
			if err != nil {
				t.Fatal(err)
			}
			out, err := c.Decompress(compressed)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(out, payload) {
				t.Fatalf("round trip mismatch for %s", m)
			}
		})
	}
}

func TestBzip2DecodeOnly(t *testing.T) {
	c, err := ForMethod(MethodBzip2)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Compress([]byte("x")); err != ErrEncodeNotSupported {
		t.Fatalf("got %v", err)
	}
}

func TestIdentityPassthrough(t *testing.T) {
	c, _ := ForMethod(MethodNone)
	in := []byte("hello")
	out, _ := c.Compress(in)
	if !bytes.Equal(out, in) {
		t.Fatal("identity compress altered data")
	}
}

func TestUnknownMethod(t *testing.T) {
	if _, err := ForMethod("bogus"); err == nil {
		t.Fatal("expected error")
	}
}
