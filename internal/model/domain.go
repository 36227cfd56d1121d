package model

import (
	"strings"
)

// Domain is a normalized scan target such as "example.com".
//
// A Domain only ever comes out of NormalizeDomain, so holders can rely on it
// being at least three characters long, containing a dot, and consisting of
// ASCII letters, digits, '.' and '-' only. It is used verbatim as the name of
// the pipeline's per-domain results directory.
type Domain string

// String returns the domain as a plain string.
func (d Domain) String() string {
	return string(d)
}

// minDomainLength is the shortest accepted domain ("a.b").
const minDomainLength = 3

// schemePrefixes are stripped from the start of raw input.
// Matching is exact and case-sensitive; "HTTP://" is left alone and then
// rejected by the character check.
var schemePrefixes = []string{"https://", "http://"}

// NormalizeDomain converts user input into a Domain.
//
// The leading "http://" or "https://" is removed, everything from the first
// '/' onwards is dropped, and the remainder is validated. Consecutive dots
// ("test..com") pass validation; only length, dot presence and the character
// set are checked. NormalizeDomain is pure and idempotent.
//
// On failure it returns a *Failure with ReasonValidation.
func NormalizeDomain(raw string) (Domain, error) {
	candidate := raw
	for _, prefix := range schemePrefixes {
		if strings.HasPrefix(candidate, prefix) {
			candidate = strings.TrimPrefix(candidate, prefix)
			break
		}
	}

	if i := strings.IndexByte(candidate, '/'); i >= 0 {
		candidate = candidate[:i]
	}

	if len(candidate) < minDomainLength {
		return "", NewFailure(ReasonValidation, "domain must be at least 3 characters: "+quoteInput(raw), nil)
	}
	if !strings.Contains(candidate, ".") {
		return "", NewFailure(ReasonValidation, "domain must contain a dot: "+quoteInput(raw), nil)
	}
	for i := 0; i < len(candidate); i++ {
		if !isDomainByte(candidate[i]) {
			return "", NewFailure(ReasonValidation, "domain contains invalid characters: "+quoteInput(raw), nil)
		}
	}

	return Domain(candidate), nil
}

// isDomainByte reports whether c is in [A-Za-z0-9.-].
func isDomainByte(c byte) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	case c == '.' || c == '-':
		return true
	default:
		return false
	}
}

// quoteInput renders raw user input for a validation message, bounded so a
// pasted wall of text does not end up in the reply.
func quoteInput(raw string) string {
	const maxQuoted = 64
	return `"` + Truncate(raw, maxQuoted) + `"`
}

// Identity is an opaque requester identifier, e.g. a Telegram user ID.
// Reports are cached per (Identity, Domain).
type Identity string

// CLIIdentity is the identity used by the local command line.
const CLIIdentity Identity = "cli"

// String returns the identity as a plain string.
func (i Identity) String() string {
	return string(i)
}
