package identity

import (
	"fmt"
	"strings"
	"time"

	domainerrors "medrecords/contexts/clinical-records/record-access-service/domain/errors"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier maps an HS256 bearer token to the participant id in its
// subject claim.
type TokenVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewTokenVerifier(secret string, issuer string) *TokenVerifier {
	return &TokenVerifier{
		secret: []byte(secret),
		issuer: issuer,
		now:    time.Now,
	}
}

// Verify returns the subject of a valid token. Every failure wraps
// ErrIdentityUnresolved.
func (v *TokenVerifier) Verify(tokenString string) (string, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return "", domainerrors.ErrIdentityUnresolved
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		options = append(options, jwt.WithIssuer(v.issuer))
	}

	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, options...)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domainerrors.ErrIdentityUnresolved, err)
	}
	if !token.Valid {
		return "", domainerrors.ErrIdentityUnresolved
	}

	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return "", fmt.Errorf("%w: token has no subject", domainerrors.ErrIdentityUnresolved)
	}
	return subject, nil
}

// Issue signs a token for subject. It backs local tooling and tests; tokens in
// production come from the external identity provider.
func (v *TokenVerifier) Issue(subject string, ttl time.Duration) (string, error) {
	now := v.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
