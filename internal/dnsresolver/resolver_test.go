package dnsresolver

import (
	"encoding/binary"
	"net"
	"testing"
)

func TestSplitJoinRoundTrip(t *testing.T) {
	name, err := splitName("www.example.com")
	if err != nil {
		t.Fatal(err)
	}
	got := JoinLabels(name)
	if got != "www.example.com" {
		t.Fatalf("got %q", got)
	}
}

func TestSplitLongLabelRejected(t *testing.T) {
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}
	_, err := splitName(string(long) + ".com")
	if err != ErrLabelTooLong {
		t.Fatalf("got %v", err)
	}
}

// buildResponse hand-assembles a minimal well-formed A response for id,
// qname, with one answer ip/ttl, using 0xC0 compression pointing back at
// the question's name.
func buildResponse(t *testing.T, id uint16, qname string, ip net.IP, ttl uint32) []byte {
	t.Helper()
	name, err := splitName(qname)
	if err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], id)
	binary.BigEndian.PutUint16(buf[2:4], flagQR|flagRD|flagRA)
	binary.BigEndian.PutUint16(buf[4:6], 1)
	binary.BigEndian.PutUint16(buf[6:8], 1)
	buf = append(buf, name...)
	buf = append(buf, 0, 1, 0, 1) // QTYPE=A, QCLASS=IN

	qnameOffset := uint16(12)
	buf = append(buf, byte(0xC0|(qnameOffset>>8)), byte(qnameOffset))
	buf = append(buf, 0, 1, 0, 1) // TYPE=A, CLASS=IN
	var ttlb [4]byte
	binary.BigEndian.PutUint32(ttlb[:], ttl)
	buf = append(buf, ttlb[:]...)
	ip4 := ip.To4()
	buf = append(buf, 0, byte(len(ip4)))
	buf = append(buf, ip4...)
	return buf
}

func TestParseResponseWithCompressionPointer(t *testing.T) {
	raw := buildResponse(t, 42, "example.com", net.ParseIP("93.184.216.34"), 300)
	msg, err := ParseResponse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if msg.RCode != RCodeNoError {
		t.Fatalf("rcode=%d", msg.RCode)
	}
	if len(msg.Answers) != 1 {
		t.Fatalf("answers=%d", len(msg.Answers))
	}
	if !msg.Answers[0].IP.Equal(net.ParseIP("93.184.216.34")) {
		t.Fatalf("ip=%v", msg.Answers[0].IP)
	}
}

func TestParseResponseZeroAnswersNoError(t *testing.T) {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint16(buf[0:2], 7)
	binary.BigEndian.PutUint16(buf[2:4], flagQR)
	binary.BigEndian.PutUint16(buf[4:6], 0)
	msg, err := ParseResponse(buf)
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.Answers) != 0 {
		t.Fatalf("expected zero answers")
	}
	if msg.RCode != RCodeNoError {
		t.Fatalf("rcode=%d", msg.RCode)
	}
}

func TestParseResponseMissingQRBit(t *testing.T) {
	buf := make([]byte, 12)
	_, err := ParseResponse(buf)
	if err == nil {
		t.Fatal("expected error for missing QR bit")
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	c := NewCache()
	c.Set(4, "example.com", net.ParseIP("1.2.3.4"), 0)
	ip, forbidden, ok := c.Get(4, "example.com")
	if !ok || forbidden || !ip.Equal(net.ParseIP("1.2.3.4")) {
		t.Fatalf("ip=%v forbidden=%v ok=%v", ip, forbidden, ok)
	}
}

func TestBlacklistContains(t *testing.T) {
	b := NewBlacklist()
	b.Add("evil.example")
	if !b.Contains("evil.example") {
		t.Fatal("expected blacklisted")
	}
	b.Remove("evil.example")
	if b.Contains("evil.example") {
		t.Fatal("expected removed")
	}
}

func TestIDNToASCII(t *testing.T) {
	got := ToASCII("xn--test")
	if got == "" {
		t.Fatal("expected non-empty")
	}
}
