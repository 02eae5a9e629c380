package zonestore

import (
	"strings"

	"golang.org/x/net/idna"
)

// domainProfile folds a zone-load-time domain name to its canonical
// ASCII form: lowercase, punycode-encoded labels. It is deliberately
// lenient (VerifyDNSLength disabled, Transitional processing) since zone
// data is operator-supplied, not attacker-controlled, and should never
// be rejected outright for failing strict IDNA validation.
var domainProfile = idna.New( //nolint:gochecknoglobals
	idna.MapForLookup(),
	idna.Transitional(true),
)

// normalizeDomain folds domain to the form zone lookups are keyed by:
// the trailing root dot is dropped, so "example.tld." and "example.tld"
// are the same key. A name that fails IDNA mapping (rare, and only for
// malformed input) is merely lowercased instead of rejected — this is a
// lookup key, not a wire value, so there is nothing to refuse on the
// store's behalf.
func normalizeDomain(domain string) string {
	domain = strings.TrimSuffix(domain, ".")

	folded, err := domainProfile.ToASCII(domain)
	if err != nil {
		return strings.ToLower(domain)
	}

	return folded
}
