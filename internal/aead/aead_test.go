package aead

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New("correct horse battery staple")
	if err != nil {
		t.Fatal(err)
	}
	plaintext := []byte("the message body")
	sealed, err := s.Seal(plaintext)
	if err != nil {
		t.Fatal(err)
	}
	got, err := s.Open(sealed)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("got %q", got)
	}
}

func TestOpenRejectsTamperedCiphertext(t *testing.T) {
	s, _ := New("key")
	sealed, _ := s.Seal([]byte("hello"))
	sealed[len(sealed)-1] ^= 0xFF
	if _, err := s.Open(sealed); err == nil {
		t.Fatal("expected authentication failure")
	}
}

func TestOpenRejectsShortInput(t *testing.T) {
	s, _ := New("key")
	if _, err := s.Open([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short ciphertext")
	}
}
