package identity

import (
	"errors"
	"testing"
	"time"

	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"

	"github.com/golang-jwt/jwt/v5"
)

func TestVerifyRoundTrip(t *testing.T) {
	verifier := NewTokenVerifier("secret", "medrecords")
	token, err := verifier.Issue("u1", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	subject, err := verifier.Verify(token)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if subject != "u1" {
		t.Fatalf("expected subject u1, got %q", subject)
	}
}

func TestVerifyRejections(t *testing.T) {
	verifier := NewTokenVerifier("secret", "medrecords")
	issuedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	verifier.now = func() time.Time { return issuedAt }
	valid, err := verifier.Issue("u1", time.Minute)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	otherIssuer := NewTokenVerifier("secret", "someone-else")
	otherIssuer.now = verifier.now
	wrongIssuer, _ := otherIssuer.Issue("u1", time.Minute)

	wrongKey, _ := NewTokenVerifier("other-secret", "medrecords").Issue("u1", time.Hour)

	noSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    "medrecords",
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Minute)),
	}).SignedString([]byte("secret"))

	noExpiry, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:  "medrecords",
		Subject: "u1",
	}).SignedString([]byte("secret"))

	cases := map[string]string{
		"empty":        "",
		"garbage":      "not-a-token",
		"wrong issuer": wrongIssuer,
		"wrong key":    wrongKey,
		"no subject":   noSubject,
		"no expiry":    noExpiry,
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := verifier.Verify(token); !errors.Is(err, domainerrors.ErrIdentityUnresolved) {
				t.Fatalf("expected ErrIdentityUnresolved, got %v", err)
			}
		})
	}

	verifier.now = func() time.Time { return issuedAt.Add(time.Hour) }
	if _, err := verifier.Verify(valid); !errors.Is(err, domainerrors.ErrIdentityUnresolved) {
		t.Fatalf("expected expired token to be rejected, got %v", err)
	}
}
