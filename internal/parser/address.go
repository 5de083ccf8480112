package parser

import (
	"net/url"
	"regexp"
)

// onionURLPattern matches v3 onion URLs: an http or https scheme, a host of
// exactly 56 base32 characters (a-z, 2-7) plus the ".onion" suffix, and
// optionally a path or query. The host match is case-insensitive; Tor
// itself treats onion hostnames case-insensitively.
//
// V2 addresses (16 characters) were deprecated in 2021 and are rejected,
// as are clearnet domains and scheme-less strings.
var onionURLPattern = regexp.MustCompile(`(?i)^https?://[a-z2-7]{56}\.onion(/|$)`)

// IsValidAddress reports whether addr is a crawlable v3 onion URL.
func IsValidAddress(addr string) bool {
	return onionURLPattern.MatchString(addr)
}

// SiteKey returns the "scheme://host" portion of addr, which groups pages
// by owning hidden service. Returns an empty string when addr does not parse.
func SiteKey(addr string) string {
	u, err := url.Parse(addr)
	if err != nil {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
