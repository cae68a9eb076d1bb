// Package identity defines the contract with the external system of
// record for end-user accounts. The approval workflow only ever checks
// existence, creates accounts and sets credentials; everything else
// (token exchange, session handling) belongs to the CLI side.
package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrProvider wraps identity-provider API failures. Provisioning is
	// aborted on any of them; account creation plus password-set is a
	// unit the caller retries from scratch.
	ErrProvider = errors.New("identity: provider call failed")
)

// Account describes an end-user account keyed by email.
type Account struct {
	Email     string
	FirstName string
	LastName  string
}

// Provider provisions accounts in the identity provider.
type Provider interface {
	// Exists reports whether an account with this email is already
	// provisioned. It is the idempotency guard for approval.
	Exists(ctx context.Context, email string) (bool, error)

	// Create provisions the account with a verified email and any
	// available display attributes. Provider-native welcome messages
	// are suppressed; the workflow sends its own.
	Create(ctx context.Context, acc Account) error

	// SetPermanentPassword sets the password as the account's permanent
	// credential. The caller owns scrubbing the plaintext.
	SetPermanentPassword(ctx context.Context, email string, password []byte) error
}

// Tokens is the session material returned by an interactive login.
type Tokens struct {
	IDToken      string
	AccessToken  string
	RefreshToken string
}

// Credentials are short-lived cloud credentials exchanged for an
// identity token.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	Expiration      time.Time
}
