package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Action identifies the decision a token authorizes. A token minted for
// one action is rejected when presented for the other.
type Action string

const (
	ActionApprove Action = "approve"
	ActionDeny    Action = "deny"
)

var (
	ErrMalformed        = errors.New("token: malformed")
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrWrongAction      = errors.New("token: wrong action")
	ErrExpired          = errors.New("token: expired")
)

// Codec mints and verifies signed action tokens. The token itself is the
// only durable record of a pending decision: there is no server-side
// session store, so everything a resolver needs travels in the payload.
//
// Wire format: base64url(json({"data":...,"action":...})) + "." +
// hex(HMAC-SHA256(secret, payload segment)). The signature covers the
// encoded payload segment byte for byte.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// Option configures Codec behavior.
type Option func(*Codec)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(c *Codec) {
		if fn != nil {
			c.now = fn
		}
	}
}

// NewCodec constructs a Codec signing with the given process-wide secret.
func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type envelope struct {
	Data   json.RawMessage `json:"data"`
	Action Action          `json:"action"`
}

// expiry is the slice of the payload the codec itself interprets.
type expiry struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// Encode serializes data plus the action tag into a compact URL-safe
// signed token.
func (c *Codec) Encode(data any, action Action) (string, error) {
	if action != ActionApprove && action != ActionDeny {
		return "", fmt.Errorf("token: unknown action %q", action)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("token: marshal data: %w", err)
	}
	payload, err := json.Marshal(envelope{Data: raw, Action: action})
	if err != nil {
		return "", fmt.Errorf("token: marshal envelope: %w", err)
	}
	segment := base64.RawURLEncoding.EncodeToString(payload)
	return segment + "." + hex.EncodeToString(c.sign(segment)), nil
}

// Decode verifies the token signature, checks the action tag against
// expected and the embedded expiry against the current time, then
// unmarshals the data payload into out. Verification order is fixed:
// signature before payload parsing, so a tampered segment always
// surfaces as ErrInvalidSignature.
func (c *Codec) Decode(tok string, expected Action, out any) error {
	segment, sig, err := split(tok)
	if err != nil {
		return err
	}
	provided, err := hex.DecodeString(sig)
	if err != nil {
		return ErrInvalidSignature
	}
	if !hmac.Equal(provided, c.sign(segment)) {
		return ErrInvalidSignature
	}

	payload, err := base64.RawURLEncoding.DecodeString(segment)
	if err != nil {
		return ErrMalformed
	}
	var env envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return ErrMalformed
	}
	if env.Action != expected {
		return ErrWrongAction
	}

	var exp expiry
	if err := json.Unmarshal(env.Data, &exp); err != nil {
		return ErrMalformed
	}
	if exp.ExpiresAt.IsZero() {
		return ErrMalformed
	}
	if c.now().After(exp.ExpiresAt) {
		return ErrExpired
	}

	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return ErrMalformed
		}
	}
	return nil
}

// Fingerprint returns the hex signature segment of a token. It is the
// key used by the consumed-token store; replay bookkeeping stays out of
// the codec itself.
func Fingerprint(tok string) (string, error) {
	_, sig, err := split(tok)
	if err != nil {
		return "", err
	}
	return sig, nil
}

func (c *Codec) sign(segment string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(segment))
	return mac.Sum(nil)
}

func split(tok string) (segment, sig string, err error) {
	parts := strings.Split(tok, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", ErrMalformed
	}
	return parts[0], parts[1], nil
}
