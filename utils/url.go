package utils

import (
	"net/url"
	"strings"
)

// JoinURL resolves ref against base the way a browser resolves a link.
// Unparseable input returns ref unchanged.
func JoinURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
