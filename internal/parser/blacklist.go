package parser

import (
	"net/url"
	"strings"
)

// Blacklist is a set of URL path entries that must never be fetched,
// typically authentication endpoints such as "/login" or "/register".
//
// Matching is suffix-based on whole path segments: the entry "/login"
// matches "/login", "/login/", and "/user/login", but not "/logininfo".
type Blacklist struct {
	// entries are normalized to lowercase with trailing slashes stripped.
	entries []string
}

// NewBlacklist creates a Blacklist from raw path entries.
// Entries are normalized at construction so matching stays cheap.
func NewBlacklist(paths []string) *Blacklist {
	entries := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimRight(strings.ToLower(p), "/")
		if p != "" {
			entries = append(entries, p)
		}
	}
	return &Blacklist{entries: entries}
}

// Matches reports whether addr's path equals or ends with any blacklist entry.
// The path is normalized the same way as the entries before comparison.
func (b *Blacklist) Matches(addr string) bool {
	if len(b.entries) == 0 {
		return false
	}

	u, err := url.Parse(addr)
	if err != nil {
		return false
	}
	path := strings.TrimRight(strings.ToLower(u.Path), "/")

	for _, entry := range b.entries {
		if path == entry || strings.HasSuffix(path, entry) {
			return true
		}
	}
	return false
}

// Len returns the number of configured entries.
func (b *Blacklist) Len() int {
	return len(b.entries)
}
