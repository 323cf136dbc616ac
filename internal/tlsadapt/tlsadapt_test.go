package tlsadapt

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
)

func TestMatchHostnameExact(t *testing.T) {
	if !matchHostname("example.com", "example.com") {
		t.Fatal("expected exact match")
	}
}

func TestMatchHostnameWildcardSingleLabel(t *testing.T) {
	if !matchHostname("*.example.com", "foo.example.com") {
		t.Fatal("expected wildcard match")
	}
	if matchHostname("*.example.com", "a.foo.example.com") {
		t.Fatal("wildcard must not match across multiple labels")
	}
	if matchHostname("*.example.com", "example.com") {
		t.Fatal("wildcard must not match the bare domain")
	}
}

func TestVerifyHostnameUsesSANThenCN(t *testing.T) {
	cert := &x509.Certificate{
		Subject:  pkix.Name{CommonName: "legacy.example.com"},
		DNSNames: []string{"*.example.com"},
	}
	if err := VerifyHostname(cert, "api.example.com"); err != nil {
		t.Fatalf("expected SAN wildcard to verify: %v", err)
	}
	if err := VerifyHostname(cert, "legacy.example.com"); err != nil {
		t.Fatalf("expected CN fallback to verify: %v", err)
	}
	if err := VerifyHostname(cert, "other.com"); err == nil {
		t.Fatal("expected verification failure for unrelated host")
	}
}
