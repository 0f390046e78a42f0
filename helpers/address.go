package helpers

import (
	"regexp"
	"strings"
)

// Matches the first email-address-shaped token inside a free-text header
// value, which may carry display names, angle brackets or several addresses.
var addressTokenRe = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9._-]+\.[a-zA-Z0-9_-]+`)

// SplitEmailAddress splits an address into its lowercased local part and domain.
// The domain is empty when the input has no "@".
func SplitEmailAddress(email string) (string, string) {
	email = strings.ToLower(strings.TrimSpace(email))
	local, domain, found := strings.Cut(email, "@")
	if !found {
		return local, ""
	}
	return local, domain
}

// ExtractAddressToken returns the first syntactically valid email address
// token found in s, or the empty string if none is present.
func ExtractAddressToken(s string) string {
	return addressTokenRe.FindString(s)
}

// AddressDomain returns the lowercased domain of addr and whether addr
// contained one.
func AddressDomain(addr string) (string, bool) {
	_, domain := SplitEmailAddress(addr)
	return domain, domain != ""
}
