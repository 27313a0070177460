package core

import (
	"context"
	"net/http"
)

// AuthEventLogger records authentication events for hosts that already resolved the
// caller's address and user agent at the edge.
type AuthEventLogger interface {
	LogLogin(ctx context.Context, userID string, service string, ip *string, userAgent *string) error
}

var _ AuthEventLogger = (*Capturer)(nil)

// LogLogin captures a login using the set's configured identity and service fields.
// A non-nil ip is treated as the client-declared address.
func (c *Capturer) LogLogin(ctx context.Context, userID string, service string, ip *string, userAgent *string) error {
	req := Request{
		Attributes:  map[string][]string{c.set.UIDField: {userID}},
		Destination: map[string]string{c.set.ServiceField: service},
	}
	if ip != nil {
		req.Header = http.Header{"Client-Ip": {*ip}}
	}
	if userAgent != nil {
		req.UserAgent = *userAgent
	}
	_, err := c.Process(ctx, req)
	return err
}
