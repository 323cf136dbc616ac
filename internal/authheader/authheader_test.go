package authheader

import "testing"

func TestParseChallengeBasic(t *testing.T) {
	ch, err := ParseChallenge(`Digest realm="test", nonce="abc123", qop="auth", algorithm=MD5`)
	if err != nil {
		t.Fatal(err)
	}
	if ch.Scheme != "Digest" || ch.Realm != "test" || ch.Nonce != "abc123" {
		t.Fatalf("got %+v", ch)
	}
	if len(ch.QOP) != 1 || ch.QOP[0] != "auth" {
		t.Fatalf("qop=%v", ch.QOP)
	}
}

func TestBuildBasicRoundTrip(t *testing.T) {
	got := BuildBasic("alice", "wonderland")
	want := "Basic YWxpY2U6d29uZGVybGFuZA=="
	if got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestBuildDigestMD5(t *testing.T) {
	ch := &Challenge{Realm: "test", Nonce: "n1", QOP: []string{"auth"}, Algorithm: "MD5"}
	got, err := BuildDigest(ch, "GET", "/resource", "alice", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if got == "" {
		t.Fatal("expected non-empty digest header")
	}
}

func TestBuildDigestUnsupportedAlgorithm(t *testing.T) {
	ch := &Challenge{Realm: "test", Nonce: "n1", Algorithm: "BOGUS"}
	_, err := BuildDigest(ch, "GET", "/", "a", "b")
	if err == nil {
		t.Fatal("expected error for unsupported algorithm")
	}
}
