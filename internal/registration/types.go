package registration

import (
	"strings"
	"time"
)

// Submission is a new-registration request as received from the user.
// The plaintext password lives only here; it is encrypted before
// anything durable is built from it.
type Submission struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Registration is the pending-decision record. It is never persisted:
// it exists only inside a signed action token.
type Registration struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`

	// EncryptedPassword is the base64 of the gateway ciphertext; the
	// plaintext never appears in a token, log or notification.
	EncryptedPassword string `json:"encrypted_password"`

	// VerificationSecret is the base64 of an independently encrypted
	// reference value. It is present only in approve tokens and proves
	// the approval link originated from this system's admin channel.
	VerificationSecret string `json:"verification_secret,omitempty"`

	SubmittedAt time.Time `json:"submitted_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DisplayName renders the full name, falling back to the email local
// part when no names were provided.
func (r Registration) DisplayName() string {
	first := strings.TrimSpace(r.FirstName)
	last := strings.TrimSpace(r.LastName)
	switch {
	case first != "" && last != "":
		return first + " " + last
	case first != "":
		return first
	case last != "":
		return last
	default:
		return emailLocalPart(r.Email)
	}
}

// GreetingName is the friendly form used in notifications.
func (r Registration) GreetingName() string {
	if first := strings.TrimSpace(r.FirstName); first != "" {
		return first
	}
	return emailLocalPart(r.Email)
}

func emailLocalPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	if email == "" {
		return "User"
	}
	return email
}

// Outcome is the terminal state of a resolution.
type Outcome string

const (
	OutcomeApproved        Outcome = "approved"
	OutcomeAlreadyExists   Outcome = "already_exists"
	OutcomeDenied          Outcome = "denied"
	OutcomeAlreadyResolved Outcome = "already_resolved"
)

// Result carries the terminal state plus the decoded registration for
// rendering the outcome page.
type Result struct {
	Outcome      Outcome
	Registration Registration
}
