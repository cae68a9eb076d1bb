package registration

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingSecret means the approve request carried no secret
	// parameter at all.
	ErrMissingSecret = errors.New("registration: missing verification secret")

	// ErrSecretMismatch means the secret parameter failed either
	// redundant check (against the token-embedded value, or against the
	// expected plaintext after decryption). Treated as a security
	// event, not an ordinary validation failure.
	ErrSecretMismatch = errors.New("registration: verification secret mismatch")

	// ErrNotify means the admin notification could not be dispatched;
	// the registration is failed as a whole since nobody would ever see
	// the approval links.
	ErrNotify = errors.New("registration: notification dispatch failed")
)

// ValidationError reports user-fixable bad input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("registration: invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
