package testing

import (
	"net/http"

	"github.com/PaulFidika/accesslog/core"
)

// Chrome on Windows 10, the agent Login uses unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// RequestOption customizes a request built by Login.
type RequestOption func(*core.Request)

// Login builds a request for user reaching service under the default attribute names.
func Login(user, service string, opts ...RequestOption) core.Request {
	r := core.Request{
		Attributes:  map[string][]string{core.DefaultUIDField: {user}},
		Destination: map[string]string{core.DefaultServiceField: service},
	}
	r.Header = http.Header{}
	r.UserAgent = DefaultUserAgent
	for _, opt := range opts {
		opt(&r)
	}
	return r
}

// WithAttribute sets an identity attribute.
func WithAttribute(name string, values ...string) RequestOption {
	return func(r *core.Request) { r.Attributes[name] = values }
}

// WithDestination sets a destination field.
func WithDestination(name, value string) RequestOption {
	return func(r *core.Request) { r.Destination[name] = value }
}

// WithHeader sets a transport header.
func WithHeader(name, value string) RequestOption {
	return func(r *core.Request) { r.Header.Set(name, value) }
}

// WithPeer sets the direct peer address.
func WithPeer(addr string) RequestOption {
	return func(r *core.Request) { r.RemoteAddr = addr }
}

// WithUserAgent replaces the agent string.
func WithUserAgent(ua string) RequestOption {
	return func(r *core.Request) { r.UserAgent = ua }
}
