package jwtkit

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulFidika/accesslog/core"
	jwt "github.com/golang-jwt/jwt/v5"
)

var ErrUnknownKey = errors.New("unknown signing key")

// Verifier checks RS256 tokens against a fixed set of public keys selected by kid.
type Verifier struct {
	keys     map[string]*rsa.PublicKey
	issuer   string
	audience string
	leeway   time.Duration
}

type VerifierOption func(*Verifier)

// WithIssuer requires the iss claim to match.
func WithIssuer(iss string) VerifierOption {
	return func(v *Verifier) { v.issuer = strings.TrimSpace(iss) }
}

// WithAudience requires aud to contain audience.
func WithAudience(audience string) VerifierOption {
	return func(v *Verifier) { v.audience = strings.TrimSpace(audience) }
}

// WithLeeway tolerates clock skew on exp/nbf/iat.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) { v.leeway = d }
}

func NewVerifier(keys map[string]*rsa.PublicKey, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: make(map[string]*rsa.PublicKey, len(keys))}
	for kid, k := range keys {
		v.keys[kid] = k
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify parses token and returns its claims when the signature and registered
// claims are valid.
func (v *Verifier) Verify(token string) (jwt.MapClaims, error) {
	popts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()})}
	if v.issuer != "" {
		popts = append(popts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		popts = append(popts, jwt.WithAudience(v.audience))
	}
	if v.leeway > 0 {
		popts = append(popts, jwt.WithLeeway(v.leeway))
	}
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, v.keyFunc, popts...)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Login verifies token and builds the attributes and destination of a capture request.
func (v *Verifier) Login(token string) (core.Request, error) {
	claims, err := v.Verify(token)
	if err != nil {
		return core.Request{}, err
	}
	return core.Request{
		Attributes:  AttributesFromClaims(claims),
		Destination: DestinationFromClaims(claims),
	}, nil
}

func (v *Verifier) keyFunc(t *jwt.Token) (any, error) {
	kid, _ := t.Header["kid"].(string)
	if k, ok := v.keys[kid]; ok {
		return k, nil
	}
	if kid == "" && len(v.keys) == 1 {
		for _, k := range v.keys {
			return k, nil
		}
	}
	return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
}

// ParseRSAPublicKeyPEM decodes a PKIX or PKCS1 RSA public key.
func ParseRSAPublicKeyPEM(pemBytes []byte) (*rsa.PublicKey, error) {
	if len(pemBytes) == 0 {
		return nil, errors.New("empty RSA public key pem")
	}
	blk, _ := pem.Decode(pemBytes)
	if blk == nil {
		return nil, errors.New("failed to decode RSA public key pem")
	}
	switch blk.Type {
	case "RSA PUBLIC KEY":
		return x509.ParsePKCS1PublicKey(blk.Bytes)
	default:
		key, err := x509.ParsePKIXPublicKey(blk.Bytes)
		if err != nil {
			return nil, err
		}
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("pkix key is not an RSA public key")
		}
		return pub, nil
	}
}
