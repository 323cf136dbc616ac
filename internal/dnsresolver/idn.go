package dnsresolver

import "golang.org/x/net/idna"

// punycodeProfile normalizes internationalized domain names to their
// ASCII (punycode) form before wire encoding, per §4.4 "IDN via
// golang.org/x/net/idna".
var punycodeProfile = idna.New(
	idna.MapForLookup(),
	idna.BidiRule(),
	idna.Transitional(false),
)

// ToASCII converts domain to its ASCII/punycode form. Domains that are
// already ASCII pass through unchanged; malformed labels return the
// original string so callers can still attempt a literal lookup.
func ToASCII(domain string) string {
	out, err := punycodeProfile.ToASCII(domain)
	if err != nil {
		return domain
	}
	return out
}
