// Package jwtkit turns verified JWT claims into the identity attributes and destination
// that access capture consumes, for services that authenticate with bearer tokens
// instead of a SAML assertion.
package jwtkit

import (
	"fmt"
	"strconv"

	"github.com/PaulFidika/accesslog/core"
	jwt "github.com/golang-jwt/jwt/v5"
)

// Destination keys filled from claims.
const (
	DestinationIssuer   = "issuer"
	DestinationAudience = "audience"
)

// AttributesFromClaims flattens claims into multi-valued attributes keyed by claim name.
// Strings, numbers and booleans become single values; arrays keep their scalar members.
// Nested objects are skipped.
func AttributesFromClaims(claims jwt.MapClaims) map[string][]string {
	out := make(map[string][]string, len(claims))
	for name, v := range claims {
		switch t := v.(type) {
		case []any:
			vals := make([]string, 0, len(t))
			for _, item := range t {
				if s, ok := scalar(item); ok {
					vals = append(vals, s)
				}
			}
			if len(vals) > 0 {
				out[name] = vals
			}
		case []string:
			if len(t) > 0 {
				out[name] = append([]string(nil), t...)
			}
		default:
			if s, ok := scalar(v); ok {
				out[name] = []string{s}
			}
		}
	}
	return out
}

// DestinationFromClaims names the service the token was issued for. The authorized
// party (azp) wins over the first audience as the service identifier.
func DestinationFromClaims(claims jwt.MapClaims) map[string]string {
	out := map[string]string{}
	if iss, err := claims.GetIssuer(); err == nil && iss != "" {
		out[DestinationIssuer] = iss
	}
	aud, _ := claims.GetAudience()
	if len(aud) > 0 {
		out[DestinationAudience] = aud[0]
		out[core.DefaultServiceField] = aud[0]
	}
	if azp, ok := claims["azp"].(string); ok && azp != "" {
		out[core.DefaultServiceField] = azp
	}
	return out
}

func scalar(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	case int, int64, int32:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}
