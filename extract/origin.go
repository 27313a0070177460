package extract

import (
	"net/http"
	"strings"
)

// Unknown is returned by Origin when neither forwarding headers nor a peer address exist.
const Unknown = "UNKNOWN"

// originHeaders are checked in order; the first present one wins.
var originHeaders = []string{
	"Client-Ip",
	"X-Forwarded-For",
	"X-Forwarded",
	"Forwarded-For",
	"Forwarded",
}

// Origin resolves the client address: forwarding headers first, then the peer address.
// A header counts as present even when its value is empty.
func Origin(t Transport) string {
	for _, name := range originHeaders {
		if vals, ok := lookupHeader(t.Header, name); ok {
			return vals[0]
		}
	}
	if t.RemoteAddr != "" {
		return t.RemoteAddr
	}
	return Unknown
}

// lookupHeader finds name in h regardless of key case. Keys filled from CGI-style
// variables ("HTTP_X_FORWARDED_FOR", "X_FORWARDED_FOR") match as well.
func lookupHeader(h http.Header, name string) ([]string, bool) {
	if vals, ok := h[name]; ok && len(vals) > 0 {
		return vals, true
	}
	for k, vals := range h {
		if len(vals) == 0 {
			continue
		}
		if strings.EqualFold(headerName(k), name) {
			return vals, true
		}
	}
	return nil, false
}

func headerName(key string) string {
	key = strings.TrimSpace(key)
	if len(key) > 5 && strings.EqualFold(key[:5], "HTTP_") {
		key = key[5:]
	}
	return strings.ReplaceAll(key, "_", "-")
}
