package relay

import (
	"net/http"
	"strings"
)

// harvestCookies derives the session cookie string from the primary
// response headers. Every Set-Cookie value is reduced to its name=value
// prefix (the attributes after the first ";" — Path, Expires, HttpOnly,
// SameSite — are meaningless for a same-process replay) and the retained
// pairs are joined with "; " into a single Cookie header value.
//
// net/http exposes each Set-Cookie line as a separate header value via
// Header.Values, so the degraded fallback some transports need (one
// combined Set-Cookie string) does not apply here.
//
// Zero cookies is not an error: the relay proceeds with an empty cookie
// string and lets the caller interpret the (likely empty) fragments.
func harvestCookies(h http.Header) (cookie string, found int) {
	values := h.Values("Set-Cookie")
	pairs := make([]string, 0, len(values))
	for _, v := range values {
		pair := v
		if i := strings.Index(v, ";"); i >= 0 {
			pair = v[:i]
		}
		pair = strings.TrimSpace(pair)
		if pair != "" {
			pairs = append(pairs, pair)
		}
	}
	return strings.Join(pairs, "; "), len(pairs)
}
