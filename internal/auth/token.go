package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tokens issues and verifies the opaque bearer tokens handed out at login.
// A token is base64url(payload) + "." + base64url(HMAC-SHA256(payload)); the
// payload carries the party ID and an expiry. Tokens are opaque to clients.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	nowFn  func() time.Time
}

// Token verification errors.
var (
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenExpired = errors.New("token expired")
)

type tokenPayload struct {
	PartyID   string `json:"sub"`
	ExpiresAt int64  `json:"exp"`
}

// NewTokens constructs a token issuer with the given signing secret and
// lifetime.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{
		secret: []byte(secret),
		ttl:    ttl,
		nowFn:  time.Now,
	}
}

// WithClock overrides the time provider (used primarily in tests).
func (t *Tokens) WithClock(nowFn func() time.Time) {
	if nowFn != nil {
		t.nowFn = nowFn
	}
}

// Issue returns a signed token identifying partyID.
func (t *Tokens) Issue(partyID string) (string, error) {
	payload, err := json.Marshal(tokenPayload{
		PartyID:   partyID,
		ExpiresAt: t.nowFn().Add(t.ttl).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("encode token payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + t.sign(encoded), nil
}

// Verify checks the signature and expiry and returns the party ID the token
// identifies.
func (t *Tokens) Verify(token string) (string, error) {
	encoded, signature, found := strings.Cut(token, ".")
	if !found {
		return "", ErrTokenInvalid
	}
	if !hmac.Equal([]byte(t.sign(encoded)), []byte(signature)) {
		return "", ErrTokenInvalid
	}

	raw, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrTokenInvalid
	}

	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", ErrTokenInvalid
	}
	if payload.PartyID == "" {
		return "", ErrTokenInvalid
	}
	if t.nowFn().Unix() >= payload.ExpiresAt {
		return "", ErrTokenExpired
	}
	return payload.PartyID, nil
}

func (t *Tokens) sign(encoded string) string {
	mac := hmac.New(sha256.New, t.secret)
	mac.Write([]byte(encoded))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
