// Package authhttp builds capture requests from net/http requests.
package authhttp

import (
	"net"
	"net/http"
	"strings"

	"github.com/PaulFidika/accesslog/core"
	"github.com/PaulFidika/accesslog/extract"
)

// RequestFromHTTP combines the authenticated identity with the transport details of r.
// The peer address loses its port.
func RequestFromHTTP(r *http.Request, attrs map[string][]string, dest map[string]string) core.Request {
	return core.Request{
		Attributes:  attrs,
		Destination: dest,
		Transport:   Transport(r),
	}
}

// Transport extracts the transport details of r.
func Transport(r *http.Request) extract.Transport {
	if r == nil {
		return extract.Transport{}
	}
	return extract.Transport{
		Header:     r.Header.Clone(),
		RemoteAddr: peerHost(r.RemoteAddr),
		UserAgent:  r.UserAgent(),
	}
}

func peerHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if host, _, err := net.SplitHostPort(addr); err == nil {
		return host
	}
	return addr
}
