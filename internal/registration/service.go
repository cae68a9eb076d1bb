package registration

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"ccaccess.org/internal/audit"
	"ccaccess.org/internal/crypt"
	"ccaccess.org/internal/identity"
	"ccaccess.org/internal/replay"
	"ccaccess.org/internal/token"
)

const (
	defaultTTL        = 48 * time.Hour
	minPasswordLength = 8
)

// Notifier dispatches the three workflow notifications. Implementations
// must never include the password, encrypted or not, beyond what is
// already embedded in the opaque action URLs.
type Notifier interface {
	ApprovalRequest(ctx context.Context, reg Registration, approveURL, denyURL string) error
	Welcome(ctx context.Context, reg Registration) error
	Denial(ctx context.Context, reg Registration) error
}

// Service implements the registration request handler and the
// approval/denial resolver. It is stateless across invocations: every
// pending decision travels inside its signed token.
type Service struct {
	adminEmail string
	codec      *token.Codec
	gateway    crypt.Gateway
	provider   identity.Provider
	notifier   Notifier
	replays    replay.Store
	ttl        time.Duration
	now        func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithTTL overrides the registration validity window (default 48h).
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithReplayStore wires a consumed-token set; without one, tokens stay
// usable until expiry.
func WithReplayStore(store replay.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.replays = store
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the workflow service. adminEmail is both the
// notification destination and the reference value the verification
// secret must decrypt to.
func NewService(adminEmail string, codec *token.Codec, gateway crypt.Gateway, provider identity.Provider, notifier Notifier, opts ...Option) (*Service, error) {
	adminEmail = strings.TrimSpace(adminEmail)
	if adminEmail == "" {
		return nil, errors.New("registration: admin email is required")
	}
	if codec == nil || gateway == nil || provider == nil || notifier == nil {
		return nil, errors.New("registration: codec, gateway, provider and notifier are required")
	}
	s := &Service{
		adminEmail: adminEmail,
		codec:      codec,
		gateway:    gateway,
		provider:   provider,
		notifier:   notifier,
		replays:    replay.None{},
		ttl:        defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Submit validates a new registration, protects its secrets, mints the
// approve and deny tokens and notifies the administrator. baseURL is
// the externally reachable address the action links are built against.
func (s *Service) Submit(ctx context.Context, sub Submission, baseURL string) error {
	if err := validate(sub); err != nil {
		return err
	}

	encryptedPwd, err := s.gateway.Encrypt(ctx, []byte(sub.Password))
	if err != nil {
		return err
	}
	verification, err := s.gateway.Encrypt(ctx, []byte(s.adminEmail))
	if err != nil {
		return err
	}
	secret := base64.StdEncoding.EncodeToString(verification)

	now := s.now().UTC()
	reg := Registration{
		Email:              strings.TrimSpace(sub.Email),
		FirstName:          strings.TrimSpace(sub.FirstName),
		LastName:           strings.TrimSpace(sub.LastName),
		EncryptedPassword:  base64.StdEncoding.EncodeToString(encryptedPwd),
		VerificationSecret: secret,
		SubmittedAt:        now,
		ExpiresAt:          now.Add(s.ttl),
	}

	approveTok, err := s.codec.Encode(reg, token.ActionApprove)
	if err != nil {
		return fmt.Errorf("registration: mint approve token: %w", err)
	}
	denyReg := reg
	denyReg.VerificationSecret = ""
	denyTok, err := s.codec.Encode(denyReg, token.ActionDeny)
	if err != nil {
		return fmt.Errorf("registration: mint deny token: %w", err)
	}

	base := strings.TrimRight(baseURL, "/")
	approveURL := base + "/approve?token=" + url.QueryEscape(approveTok) + "&secret=" + url.QueryEscape(secret)
	denyURL := base + "/deny?token=" + url.QueryEscape(denyTok)

	if err := s.notifier.ApprovalRequest(ctx, reg, approveURL, denyURL); err != nil {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}
	return nil
}

// Approve resolves an approval link. Side effects are strictly ordered:
// no account mutation before secret verification, no password
// decryption before the duplicate-account check.
func (s *Service) Approve(ctx context.Context, tok, secret string) (Result, error) {
	var reg Registration
	if err := s.codec.Decode(tok, token.ActionApprove, &reg); err != nil {
		return Result{}, err
	}

	if strings.TrimSpace(secret) == "" {
		return Result{}, ErrMissingSecret
	}
	// First check: the URL parameter must match the token-embedded
	// value byte for byte. Defends against token substitution.
	if subtle.ConstantTimeCompare([]byte(secret), []byte(reg.VerificationSecret)) != 1 {
		return Result{}, ErrSecretMismatch
	}
	// Second check: the URL value must decrypt to the expected
	// reference under the same key. Defends against URL tampering; a
	// forger has to defeat both the signature and the encryption.
	blob, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return Result{}, ErrSecretMismatch
	}
	plain, err := s.gateway.Decrypt(ctx, blob)
	if err != nil {
		return Result{}, err
	}
	if subtle.ConstantTimeCompare(plain, []byte(s.adminEmail)) != 1 {
		return Result{}, ErrSecretMismatch
	}

	first, err := s.consume(ctx, tok)
	if err != nil {
		return Result{}, err
	}
	if !first {
		return Result{Outcome: OutcomeAlreadyResolved, Registration: reg}, nil
	}
	// A provider or gateway failure past this point must not burn the
	// link: un-consume so the admin can retry once the outage clears.
	resolved := false
	defer func() {
		if !resolved {
			s.release(ctx, tok)
		}
	}()

	exists, err := s.provider.Exists(ctx, reg.Email)
	if err != nil {
		return Result{}, err
	}
	if exists {
		resolved = true
		return Result{Outcome: OutcomeAlreadyExists, Registration: reg}, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(reg.EncryptedPassword)
	if err != nil {
		return Result{}, fmt.Errorf("%w: decode password ciphertext: %v", crypt.ErrDecrypt, err)
	}
	password, err := s.gateway.Decrypt(ctx, ciphertext)
	if err != nil {
		return Result{}, err
	}
	defer wipe(password)

	if err := s.provider.Create(ctx, identity.Account{
		Email:     reg.Email,
		FirstName: reg.FirstName,
		LastName:  reg.LastName,
	}); err != nil {
		return Result{}, err
	}
	if err := s.provider.SetPermanentPassword(ctx, reg.Email, password); err != nil {
		return Result{}, err
	}
	resolved = true

	// The account is usable from here on; a failed welcome email must
	// not undo that.
	if err := s.notifier.Welcome(ctx, reg); err != nil {
		_ = audit.LogEvent(ctx, "notify.welcome.failed", map[string]any{
			"email": reg.Email,
			"error": err.Error(),
		})
	}
	return Result{Outcome: OutcomeApproved, Registration: reg}, nil
}

// Deny resolves a denial link. No identity-provider calls occur.
func (s *Service) Deny(ctx context.Context, tok string) (Result, error) {
	var reg Registration
	if err := s.codec.Decode(tok, token.ActionDeny, &reg); err != nil {
		return Result{}, err
	}

	first, err := s.consume(ctx, tok)
	if err != nil {
		return Result{}, err
	}
	if !first {
		return Result{Outcome: OutcomeAlreadyResolved, Registration: reg}, nil
	}

	if err := s.notifier.Denial(ctx, reg); err != nil {
		_ = audit.LogEvent(ctx, "notify.denial.failed", map[string]any{
			"email": reg.Email,
			"error": err.Error(),
		})
	}
	return Result{Outcome: OutcomeDenied, Registration: reg}, nil
}

func (s *Service) consume(ctx context.Context, tok string) (bool, error) {
	fp, err := token.Fingerprint(tok)
	if err != nil {
		return false, err
	}
	first, err := s.replays.Consume(ctx, fp)
	if err != nil {
		return false, fmt.Errorf("registration: replay store: %w", err)
	}
	return first, nil
}

func (s *Service) release(ctx context.Context, tok string) {
	fp, err := token.Fingerprint(tok)
	if err != nil {
		return
	}
	if err := s.replays.Release(ctx, fp); err != nil {
		_ = audit.LogEvent(ctx, "replay.release.failed", map[string]any{
			"error": err.Error(),
		})
	}
}

func validate(sub Submission) error {
	if strings.TrimSpace(sub.Email) == "" {
		return &ValidationError{Field: "email", Reason: "is required"}
	}
	if sub.Password == "" {
		return &ValidationError{Field: "password", Reason: "is required"}
	}
	if len(sub.Password) < minPasswordLength {
		return &ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}
	return nil
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
