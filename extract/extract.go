// Package extract derives optional contextual attributes (origin address, client
// software, platform) from the transport context of an authentication request.
//
// Extractors never fail: missing data yields the documented default.
package extract

import (
	"net/http"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Attribute keys understood by Lookup.
const (
	KeyIP        = "ip"
	KeyBrowser   = "browser"
	KeyOS        = "os"
	KeyUserAgent = "useragent"
	KeyEventID   = "eventid"
)

// Transport is the ambient request context supplied by the host.
type Transport struct {
	Header     http.Header
	RemoteAddr string
	// UserAgent overrides the User-Agent header when set.
	UserAgent string
}

// Agent returns the client-declared software string.
func (t Transport) Agent() string {
	if t.UserAgent != "" {
		return t.UserAgent
	}
	if t.Header == nil {
		return ""
	}
	return t.Header.Get("User-Agent")
}

// Func derives one attribute value from the transport context.
type Func func(Transport) string

var registry = map[string]Func{
	KeyIP:        Origin,
	KeyBrowser:   Client,
	KeyOS:        Platform,
	KeyUserAgent: func(t Transport) string { return t.Agent() },
	KeyEventID:   func(Transport) string { return uuid.NewString() },
}

// Lookup returns the extractor registered under key.
func Lookup(key string) (Func, bool) {
	fn, ok := registry[strings.TrimSpace(key)]
	return fn, ok
}

// Keys lists the known extractor keys in sorted order.
func Keys() []string {
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
