package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoSession means no cached tokens exist; run `ccc login`.
var ErrNoSession = errors.New("cli: no active session, run \"ccc login\" first")

// Identity is what the cached Cognito ID token says about the user.
// The claims are read without signature verification: the token was
// issued to this client and is only displayed, never trusted for
// authorization decisions.
type Identity struct {
	Subject   string
	Email     string
	Name      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// ParseIdentity extracts the display claims from a Cognito ID token.
func ParseIdentity(idToken string) (Identity, error) {
	if idToken == "" {
		return Identity{}, ErrNoSession
	}
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(idToken, claims); err != nil {
		return Identity{}, fmt.Errorf("cli: parse id token: %w", err)
	}

	ident := Identity{
		Subject: stringClaim(claims, "sub"),
		Email:   stringClaim(claims, "email"),
		Name:    stringClaim(claims, "name"),
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		ident.IssuedAt = iat.Time
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		ident.ExpiresAt = exp.Time
	}
	return ident, nil
}

// Expired reports whether the session's ID token has passed its
// expiry claim.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && now.After(i.ExpiresAt)
}

func stringClaim(claims jwt.MapClaims, name string) string {
	if v, ok := claims[name].(string); ok {
		return v
	}
	return ""
}
