package jwtkit

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"testing"
	"time"

	"github.com/PaulFidika/accesslog/core"
	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/go-cmp/cmp"
)

func TestAttributesFromClaims(t *testing.T) {
	claims := jwt.MapClaims{
		"sub":    "alice",
		"groups": []any{"staff", "admins", map[string]any{"x": 1}},
		"exp":    float64(1700000000),
		"admin":  true,
		"empty":  "",
		"nested": map[string]any{"a": "b"},
		"roles":  []string{"r1"},
	}
	want := map[string][]string{
		"sub":    {"alice"},
		"groups": {"staff", "admins"},
		"exp":    {"1700000000"},
		"admin":  {"true"},
		"roles":  {"r1"},
	}
	if diff := cmp.Diff(want, AttributesFromClaims(claims)); diff != "" {
		t.Fatalf("attributes (-want +got):\n%s", diff)
	}
}

func TestDestinationFromClaims(t *testing.T) {
	got := DestinationFromClaims(jwt.MapClaims{"iss": "https://idp", "aud": []any{"app-a", "app-b"}})
	want := map[string]string{"issuer": "https://idp", "audience": "app-a", core.DefaultServiceField: "app-a"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("destination (-want +got):\n%s", diff)
	}
	got = DestinationFromClaims(jwt.MapClaims{"aud": "app-a", "azp": "client-1"})
	if got[core.DefaultServiceField] != "client-1" {
		t.Fatalf("expected azp to win, got %q", got[core.DefaultServiceField])
	}
	if len(DestinationFromClaims(jwt.MapClaims{})) != 0 {
		t.Fatalf("expected empty destination")
	}
}

func newKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa: %v", err)
	}
	return k
}

func sign(t *testing.T, k *rsa.PrivateKey, kid string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		tok.Header["kid"] = kid
	}
	s, err := tok.SignedString(k)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return s
}

func TestVerifier_Login(t *testing.T) {
	k := newKey(t)
	v := NewVerifier(map[string]*rsa.PublicKey{"k1": &k.PublicKey}, WithIssuer("https://idp"), WithAudience("app"))
	token := sign(t, k, "k1", jwt.MapClaims{
		"iss": "https://idp", "aud": "app", "sub": "alice",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	req, err := v.Login(token)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := req.Attributes["sub"]; len(got) != 1 || got[0] != "alice" {
		t.Fatalf("sub = %v", got)
	}
	if req.Destination[core.DefaultServiceField] != "app" {
		t.Fatalf("service = %q", req.Destination[core.DefaultServiceField])
	}

	set, err := core.Resolve(core.SetConfig{Name: "api", UIDField: "sub", Store: core.StoreConfig{Kind: "memory"}})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	rec, err := core.Assemble(set, req, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if rec[core.KeyUsername] != "alice" || rec[core.KeyService] != "app" {
		t.Fatalf("record = %v", rec)
	}
}

func TestVerifier_Rejects(t *testing.T) {
	k, other := newKey(t), newKey(t)
	v := NewVerifier(map[string]*rsa.PublicKey{"k1": &k.PublicKey}, WithAudience("app"))
	exp := time.Now().Add(time.Hour).Unix()

	if _, err := v.Verify(sign(t, other, "k1", jwt.MapClaims{"aud": "app", "exp": exp})); err == nil {
		t.Fatalf("expected signature error")
	}
	if _, err := v.Verify(sign(t, k, "k9", jwt.MapClaims{"aud": "app", "exp": exp})); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("expected ErrUnknownKey, got %v", err)
	}
	if _, err := v.Verify(sign(t, k, "k1", jwt.MapClaims{"aud": "other", "exp": exp})); !errors.Is(err, jwt.ErrTokenInvalidAudience) {
		t.Fatalf("expected audience error, got %v", err)
	}
	if _, err := v.Verify(sign(t, k, "k1", jwt.MapClaims{"aud": "app", "exp": time.Now().Add(-time.Hour).Unix()})); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expected expiry error, got %v", err)
	}
	if _, err := v.Verify(sign(t, k, "", jwt.MapClaims{"aud": "app", "exp": exp})); err != nil {
		t.Fatalf("single key without kid: %v", err)
	}
}

func TestParseRSAPublicKeyPEM(t *testing.T) {
	k := newKey(t)
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	pub, err := ParseRSAPublicKeyPEM(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
	if err != nil {
		t.Fatalf("pkix: %v", err)
	}
	if !pub.Equal(&k.PublicKey) {
		t.Fatalf("pkix key mismatch")
	}
	pkcs1 := pem.EncodeToMemory(&pem.Block{Type: "RSA PUBLIC KEY", Bytes: x509.MarshalPKCS1PublicKey(&k.PublicKey)})
	if _, err := ParseRSAPublicKeyPEM(pkcs1); err != nil {
		t.Fatalf("pkcs1: %v", err)
	}
	if _, err := ParseRSAPublicKeyPEM(nil); err == nil {
		t.Fatalf("expected error for empty input")
	}
}
