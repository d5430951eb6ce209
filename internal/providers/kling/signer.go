package kling

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// tokenTTL is the vendor-mandated validity window for a signed token.
	tokenTTL = 1800 * time.Second
	// clockSkew backdates the not-before claim to tolerate small clock drift
	// between this service and the vendor.
	clockSkew = 5 * time.Second
)

// ErrMissingKeyPair indicates the signer was configured without credentials.
var ErrMissingKeyPair = errors.New("kling: access and secret keys are required")

// Signer produces short-lived bearer tokens for vendor API calls. Tokens are
// never cached: the validity window is short relative to a polling session,
// so every outbound request signs fresh.
type Signer struct {
	accessKey string
	secretKey string
	now       func() time.Time
}

func NewSigner(accessKey, secretKey string) *Signer {
	return &Signer{accessKey: accessKey, secretKey: secretKey, now: time.Now}
}

// Sign returns a compact HS256 JWT with iss=accessKey, exp=now+1800s and
// nbf=now-5s. It is a pure function of the key pair and the current time.
func (s *Signer) Sign() (string, error) {
	if s.accessKey == "" || s.secretKey == "" {
		return "", ErrMissingKeyPair
	}
	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.accessKey,
		"exp": now.Add(tokenTTL).Unix(),
		"nbf": now.Add(-clockSkew).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.secretKey))
	if err != nil {
		return "", err
	}
	return signed, nil
}

// HasCredentials reports whether the signer can produce tokens.
func (s *Signer) HasCredentials() bool {
	return s.accessKey != "" && s.secretKey != ""
}
