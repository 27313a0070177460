package authgin

import (
	authhttp "github.com/PaulFidika/accesslog/adapters/http"
	"github.com/PaulFidika/accesslog/core"
	jwtkit "github.com/PaulFidika/accesslog/jwt"
	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Context keys a login handler uses to hand its outcome to CaptureLogin.
const (
	AttributesKey  = "accesslog.attributes"
	DestinationKey = "accesslog.destination"
	ClaimsKey      = "accesslog.claims"
)

// Resolver supplies the identity of a completed login when the handler did not store it.
type Resolver func(c *gin.Context) (attrs map[string][]string, dest map[string]string, ok bool)

// Login is the identity of a completed login.
type Login struct {
	Attributes  map[string][]string
	Destination map[string]string

	// Source is "context" | "resolver" | "claims" | "none".
	Source string
}

// SetLogin stores the authenticated identity for CaptureLogin.
func SetLogin(c *gin.Context, attrs map[string][]string, dest map[string]string) {
	c.Set(AttributesKey, attrs)
	c.Set(DestinationKey, dest)
}

// SetClaims stores verified token claims for CaptureLogin.
func SetClaims(c *gin.Context, claims jwt.MapClaims) {
	c.Set(ClaimsKey, claims)
}

// Identity returns the identity of the login handled by c.
// Order of precedence:
//  1. attributes stored with SetLogin → Source: "context"
//  2. resolve → Source: "resolver"
//  3. claims stored with SetClaims → Source: "claims"
//  4. none → Source: "none"
func Identity(c *gin.Context, resolve Resolver) (Login, bool) {
	if v, ok := c.Get(AttributesKey); ok {
		if attrs, ok := v.(map[string][]string); ok && len(attrs) > 0 {
			dest, _ := c.Get(DestinationKey)
			d, _ := dest.(map[string]string)
			return Login{Attributes: attrs, Destination: d, Source: "context"}, true
		}
	}

	if resolve != nil {
		if attrs, dest, ok := resolve(c); ok {
			return Login{Attributes: attrs, Destination: dest, Source: "resolver"}, true
		}
	}

	if v, ok := c.Get(ClaimsKey); ok {
		if cl, ok := v.(jwt.MapClaims); ok && len(cl) > 0 {
			return Login{
				Attributes:  jwtkit.AttributesFromClaims(cl),
				Destination: jwtkit.DestinationFromClaims(cl),
				Source:      "claims",
			}, true
		}
	}

	return Login{Source: "none"}, false
}

// RequestFromGin builds a capture request from the gin request.
func RequestFromGin(c *gin.Context, attrs map[string][]string, dest map[string]string) core.Request {
	return authhttp.RequestFromHTTP(c.Request, attrs, dest)
}
