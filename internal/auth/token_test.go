package auth

import (
	"strings"
	"testing"
	"time"
)

func TestTokensRoundTrip(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	token, err := tokens.Issue("P-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	partyID, err := tokens.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if partyID != "P-1" {
		t.Fatalf("expected P-1, got %s", partyID)
	}
}

func TestTokensExpiry(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	issuedAt := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	tokens.WithClock(func() time.Time { return issuedAt })

	token, err := tokens.Issue("P-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	tokens.WithClock(func() time.Time { return issuedAt.Add(2 * time.Hour) })
	if _, err := tokens.Verify(token); err != ErrTokenExpired {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokensTampering(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	token, err := tokens.Issue("P-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := map[string]string{
		"no separator":      strings.ReplaceAll(token, ".", ""),
		"flipped payload":   "x" + token,
		"extended signature": token + "x",
		"empty":             "",
	}
	for name, mutated := range cases {
		if _, err := tokens.Verify(mutated); err != ErrTokenInvalid {
			t.Errorf("%s: expected ErrTokenInvalid, got %v", name, err)
		}
	}

	// A token signed with a different secret must not verify.
	other := NewTokens("other-secret", time.Hour)
	foreign, err := other.Issue("P-1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := tokens.Verify(foreign); err != ErrTokenInvalid {
		t.Fatalf("expected ErrTokenInvalid for foreign token, got %v", err)
	}
}
