// Package auth resolves bearer credentials to user identities.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken covers every credential failure: missing, malformed,
// expired, or signed with the wrong key. Callers respond 401 with a generic
// message and never leak the distinction.
var ErrInvalidToken = errors.New("invalid bearer token")

// Claims is the token payload issued by the identity provider. Only the
// subject (user id) matters to this service.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
}

// Verifier validates HS256 bearer tokens against a shared secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// UserID extracts and verifies the bearer token from an Authorization
// header value, returning the authenticated user id.
func (v *Verifier) UserID(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrInvalidToken
	}

	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found {
		return "", ErrInvalidToken
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return "", ErrInvalidToken
	}

	return userID, nil
}

// IssueToken mints a token for userID. Tests and the dev tooling use it;
// production tokens come from the external identity provider.
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
		UserID: userID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
