package kling

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestSignValidityWindow(t *testing.T) {
	signer := NewSigner("ak-test", "sk-test")

	token, err := signer.Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	parsed, err := jwt.Parse(token, func(tok *jwt.Token) (any, error) {
		if tok.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			t.Fatalf("alg = %q, want HS256", tok.Method.Alg())
		}
		return []byte("sk-test"), nil
	})
	if err != nil {
		t.Fatalf("parse signed token: %v", err)
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("unexpected claims type %T", parsed.Claims)
	}
	if iss := claims["iss"]; iss != "ak-test" {
		t.Fatalf("iss = %v, want ak-test", iss)
	}
	exp := int64(claims["exp"].(float64))
	nbf := int64(claims["nbf"].(float64))
	if window := exp - nbf; window != 1805 {
		t.Fatalf("validity window = %ds, want 1805s", window)
	}
}

func TestSignDiffersAcrossInstants(t *testing.T) {
	signer := NewSigner("ak-test", "sk-test")
	base := time.Now()

	signer.now = func() time.Time { return base }
	first, err := signer.Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	signer.now = func() time.Time { return base.Add(3 * time.Second) }
	second, err := signer.Sign()
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if first == second {
		t.Fatalf("tokens signed at different instants must differ")
	}
}

func TestSignRequiresKeyPair(t *testing.T) {
	signer := NewSigner("", "")
	if _, err := signer.Sign(); err != ErrMissingKeyPair {
		t.Fatalf("err = %v, want ErrMissingKeyPair", err)
	}
	if signer.HasCredentials() {
		t.Fatalf("empty key pair should not report credentials")
	}
}
