package linking

import (
	"net/url"
	"strings"
)

// OriginAllowList is the fixed set of origins callback messages are accepted from
type OriginAllowList struct {
	origins map[string]struct{}
}

// NewOriginAllowList normalizes and stores origins. Entries that are not
// absolute URLs are ignored.
func NewOriginAllowList(origins ...string) *OriginAllowList {
	a := &OriginAllowList{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if n, ok := normalizeOrigin(o); ok {
			a.origins[n] = struct{}{}
		}
	}
	return a
}

// Allowed reports whether origin is in the list
func (a *OriginAllowList) Allowed(origin string) bool {
	n, ok := normalizeOrigin(origin)
	if !ok {
		return false
	}
	_, allowed := a.origins[n]
	return allowed
}

// normalizeOrigin reduces a URL to scheme://host[:port] in lower case
func normalizeOrigin(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
