package registration

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"ccaccess.org/internal/crypt"
	"ccaccess.org/internal/identity"
	"ccaccess.org/internal/replay"
	"ccaccess.org/internal/token"
)

const testAdminEmail = "admin@example.com"

// fakeGateway reversibly "encrypts" by prefixing, so tests can assert
// the exact plaintext that reaches the provider.
type fakeGateway struct {
	encryptCalls int
	decryptCalls int
	failEncrypt  bool
	failDecryptN int // fail the Nth decrypt call (1-based), 0 = never
}

func (g *fakeGateway) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	g.encryptCalls++
	if g.failEncrypt {
		return nil, fmt.Errorf("%w: key unavailable", crypt.ErrEncrypt)
	}
	return append([]byte("enc:"), plaintext...), nil
}

func (g *fakeGateway) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	g.decryptCalls++
	if g.failDecryptN != 0 && g.decryptCalls == g.failDecryptN {
		return nil, fmt.Errorf("%w: key unavailable", crypt.ErrDecrypt)
	}
	if !strings.HasPrefix(string(ciphertext), "enc:") {
		return nil, fmt.Errorf("%w: unrecognized ciphertext", crypt.ErrDecrypt)
	}
	return append([]byte(nil), ciphertext[4:]...), nil
}

type fakeProvider struct {
	accounts     map[string]string // email -> password
	existsCalls  int
	createCalls  int
	setPwdCalls  int
	lastCreated  identity.Account
	failCreate   bool
	failSetPwd   bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{accounts: make(map[string]string)}
}

func (p *fakeProvider) Exists(ctx context.Context, email string) (bool, error) {
	p.existsCalls++
	_, ok := p.accounts[email]
	return ok, nil
}

func (p *fakeProvider) Create(ctx context.Context, acc identity.Account) error {
	p.createCalls++
	if p.failCreate {
		return fmt.Errorf("%w: create refused", identity.ErrProvider)
	}
	p.lastCreated = acc
	p.accounts[acc.Email] = ""
	return nil
}

func (p *fakeProvider) SetPermanentPassword(ctx context.Context, email string, password []byte) error {
	p.setPwdCalls++
	if p.failSetPwd {
		return fmt.Errorf("%w: password refused", identity.ErrProvider)
	}
	p.accounts[email] = string(password)
	return nil
}

type fakeNotifier struct {
	approvalCalls int
	welcomeCalls  int
	denialCalls   int
	approveURL    string
	denyURL       string
	lastReg       Registration
	failApproval  bool
	failWelcome   bool
	failDenial    bool
}

func (n *fakeNotifier) ApprovalRequest(ctx context.Context, reg Registration, approveURL, denyURL string) error {
	n.approvalCalls++
	if n.failApproval {
		return errors.New("smtp down")
	}
	n.lastReg = reg
	n.approveURL = approveURL
	n.denyURL = denyURL
	return nil
}

func (n *fakeNotifier) Welcome(ctx context.Context, reg Registration) error {
	n.welcomeCalls++
	if n.failWelcome {
		return errors.New("smtp down")
	}
	return nil
}

func (n *fakeNotifier) Denial(ctx context.Context, reg Registration) error {
	n.denialCalls++
	if n.failDenial {
		return errors.New("smtp down")
	}
	return nil
}

type fixture struct {
	svc      *Service
	codec    *token.Codec
	gateway  *fakeGateway
	provider *fakeProvider
	notifier *fakeNotifier
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	codec, err := token.NewCodec([]byte("test-signing-secret"))
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	gw := &fakeGateway{}
	prov := newFakeProvider()
	not := &fakeNotifier{}
	svc, err := NewService(testAdminEmail, codec, gw, prov, not, opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, codec: codec, gateway: gw, provider: prov, notifier: not}
}

func submission() Submission {
	return Submission{
		Email:     "a@b.com",
		Password:  "Abcdef12!",
		FirstName: "Ada",
		LastName:  "Lovelace",
	}
}

func (f *fixture) submit(t *testing.T) (tok, secret, denyTok string) {
	t.Helper()
	if err := f.svc.Submit(context.Background(), submission(), "https://cca.example.com"); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	au, err := url.Parse(f.notifier.approveURL)
	if err != nil {
		t.Fatalf("parse approve url: %v", err)
	}
	du, err := url.Parse(f.notifier.denyURL)
	if err != nil {
		t.Fatalf("parse deny url: %v", err)
	}
	return au.Query().Get("token"), au.Query().Get("secret"), du.Query().Get("token")
}

func TestSubmitShortPasswordRejectedBeforeEncryption(t *testing.T) {
	f := newFixture(t)
	sub := submission()
	sub.Password = "short"

	err := f.svc.Submit(context.Background(), sub, "https://cca.example.com")
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if f.gateway.encryptCalls != 0 {
		t.Fatalf("encryption gateway invoked %d times before validation", f.gateway.encryptCalls)
	}
	if f.notifier.approvalCalls != 0 {
		t.Fatal("notifier must not be called for invalid input")
	}
}

func TestSubmitRequiresEmail(t *testing.T) {
	f := newFixture(t)
	sub := submission()
	sub.Email = "   "
	if err := f.svc.Submit(context.Background(), sub, "https://cca.example.com"); !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestSubmitEncryptionFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.gateway.failEncrypt = true

	err := f.svc.Submit(context.Background(), submission(), "https://cca.example.com")
	if !errors.Is(err, crypt.ErrEncrypt) {
		t.Fatalf("expected ErrEncrypt, got %v", err)
	}
	if f.notifier.approvalCalls != 0 {
		t.Fatal("notifier must not be called after encryption failure")
	}
}

func TestSubmitNotificationFailureFailsRequest(t *testing.T) {
	f := newFixture(t)
	f.notifier.failApproval = true
	err := f.svc.Submit(context.Background(), submission(), "https://cca.example.com")
	if !errors.Is(err, ErrNotify) {
		t.Fatalf("expected ErrNotify, got %v", err)
	}
}

func TestSubmitMintsSingleUseActionLinks(t *testing.T) {
	f := newFixture(t)
	approveTok, secret, denyTok := f.submit(t)

	var approveReg Registration
	if err := f.codec.Decode(approveTok, token.ActionApprove, &approveReg); err != nil {
		t.Fatalf("decode approve token: %v", err)
	}
	if approveReg.Email != "a@b.com" {
		t.Fatalf("unexpected email: %s", approveReg.Email)
	}
	if approveReg.VerificationSecret != secret {
		t.Fatal("URL secret must equal the token-embedded verification secret")
	}
	if got := approveReg.ExpiresAt.Sub(approveReg.SubmittedAt); got != 48*time.Hour {
		t.Fatalf("unexpected TTL: %v", got)
	}

	var denyReg Registration
	if err := f.codec.Decode(denyTok, token.ActionDeny, &denyReg); err != nil {
		t.Fatalf("decode deny token: %v", err)
	}
	if denyReg.VerificationSecret != "" {
		t.Fatal("deny token must not carry the verification secret")
	}

	// An approve token presented on the deny path must be rejected.
	if err := f.codec.Decode(approveTok, token.ActionDeny, nil); !errors.Is(err, token.ErrWrongAction) {
		t.Fatalf("expected ErrWrongAction, got %v", err)
	}

	if strings.Contains(f.notifier.approveURL, "Abcdef12!") || strings.Contains(f.notifier.denyURL, "Abcdef12!") {
		t.Fatal("plaintext password leaked into an action URL")
	}
}

func TestApproveProvisionsAccount(t *testing.T) {
	f := newFixture(t)
	tok, secret, _ := f.submit(t)

	res, err := f.svc.Approve(context.Background(), tok, secret)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Outcome != OutcomeApproved {
		t.Fatalf("unexpected outcome: %s", res.Outcome)
	}
	if f.provider.lastCreated.Email != "a@b.com" || f.provider.lastCreated.FirstName != "Ada" {
		t.Fatalf("unexpected account: %+v", f.provider.lastCreated)
	}
	if pwd := f.provider.accounts["a@b.com"]; pwd != "Abcdef12!" {
		t.Fatalf("password not set permanently, got %q", pwd)
	}
	if f.notifier.welcomeCalls != 1 {
		t.Fatalf("expected one welcome notification, got %d", f.notifier.welcomeCalls)
	}
}

func TestApproveIsIdempotent(t *testing.T) {
	f := newFixture(t)
	tok, secret, _ := f.submit(t)

	if _, err := f.svc.Approve(context.Background(), tok, secret); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	res, err := f.svc.Approve(context.Background(), tok, secret)
	if err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	if res.Outcome != OutcomeAlreadyExists {
		t.Fatalf("expected already_exists, got %s", res.Outcome)
	}
	if f.provider.createCalls != 1 || f.provider.setPwdCalls != 1 {
		t.Fatalf("account must be provisioned exactly once, got create=%d set=%d",
			f.provider.createCalls, f.provider.setPwdCalls)
	}
	if f.notifier.welcomeCalls != 1 {
		t.Fatalf("expected one welcome notification, got %d", f.notifier.welcomeCalls)
	}
}

func TestApproveWithReplayStoreReportsAlreadyResolved(t *testing.T) {
	f := newFixture(t, WithReplayStore(replay.NewInMemory()))
	tok, secret, _ := f.submit(t)

	if _, err := f.svc.Approve(context.Background(), tok, secret); err != nil {
		t.Fatalf("first Approve: %v", err)
	}
	res, err := f.svc.Approve(context.Background(), tok, secret)
	if err != nil {
		t.Fatalf("second Approve: %v", err)
	}
	if res.Outcome != OutcomeAlreadyResolved {
		t.Fatalf("expected already_resolved, got %s", res.Outcome)
	}
	if f.provider.existsCalls != 1 {
		t.Fatalf("provider consulted on a replayed approval, exists=%d", f.provider.existsCalls)
	}
}

func TestApproveRetryAfterProviderFailure(t *testing.T) {
	f := newFixture(t, WithReplayStore(replay.NewInMemory()))
	tok, secret, _ := f.submit(t)

	f.provider.failCreate = true
	if _, err := f.svc.Approve(context.Background(), tok, secret); !errors.Is(err, identity.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}

	// A failed attempt must not burn the link: once the provider
	// recovers, the same URL still provisions the account.
	f.provider.failCreate = false
	res, err := f.svc.Approve(context.Background(), tok, secret)
	if err != nil {
		t.Fatalf("retry Approve: %v", err)
	}
	if res.Outcome != OutcomeApproved {
		t.Fatalf("retry outcome = %s, want %s", res.Outcome, OutcomeApproved)
	}
	if pwd := f.provider.accounts["a@b.com"]; pwd != "Abcdef12!" {
		t.Fatalf("account not provisioned on retry, accounts=%v", f.provider.accounts)
	}
	if f.provider.createCalls != 2 {
		t.Fatalf("createCalls = %d, want 2", f.provider.createCalls)
	}

	// The successful retry consumed the fingerprint for good.
	res, err = f.svc.Approve(context.Background(), tok, secret)
	if err != nil {
		t.Fatalf("third Approve: %v", err)
	}
	if res.Outcome != OutcomeAlreadyResolved {
		t.Fatalf("expected already_resolved after success, got %s", res.Outcome)
	}
}

func TestApproveMissingSecret(t *testing.T) {
	f := newFixture(t)
	tok, _, _ := f.submit(t)

	if _, err := f.svc.Approve(context.Background(), tok, ""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
	if f.provider.existsCalls != 0 || f.provider.createCalls != 0 {
		t.Fatal("provider must not be touched before secret verification")
	}
}

func TestApproveSecretMismatch(t *testing.T) {
	f := newFixture(t)
	tok, _, _ := f.submit(t)

	wrong := base64.StdEncoding.EncodeToString([]byte("enc:" + testAdminEmail + "x"))
	if _, err := f.svc.Approve(context.Background(), tok, wrong); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("expected ErrSecretMismatch, got %v", err)
	}
	if f.provider.existsCalls != 0 || f.provider.createCalls != 0 {
		t.Fatal("provider must not be touched after secret mismatch")
	}
}

func TestApproveSecretDecryptingToWrongValue(t *testing.T) {
	f := newFixture(t)

	// Both redundant checks matter: craft a token whose embedded secret
	// matches the URL parameter but decrypts to something other than
	// the admin reference value.
	forged := base64.StdEncoding.EncodeToString([]byte("enc:intruder@evil.com"))
	now := time.Now().UTC()
	reg := Registration{
		Email:              "a@b.com",
		EncryptedPassword:  base64.StdEncoding.EncodeToString([]byte("enc:Abcdef12!")),
		VerificationSecret: forged,
		SubmittedAt:        now,
		ExpiresAt:          now.Add(time.Hour),
	}
	tok, err := f.codec.Encode(reg, token.ActionApprove)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	if _, err := f.svc.Approve(context.Background(), tok, forged); !errors.Is(err, ErrSecretMismatch) {
		t.Fatalf("expected ErrSecretMismatch, got %v", err)
	}
	if f.provider.createCalls != 0 {
		t.Fatal("forged secret must not reach provisioning")
	}
}

func TestApprovePasswordDecryptFailureAborts(t *testing.T) {
	f := newFixture(t)
	tok, secret, _ := f.submit(t)

	// First decrypt call verifies the secret; the second recovers the
	// password.
	f.gateway.failDecryptN = 2

	if _, err := f.svc.Approve(context.Background(), tok, secret); !errors.Is(err, crypt.ErrDecrypt) {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
	if f.provider.createCalls != 0 || f.provider.setPwdCalls != 0 {
		t.Fatal("provisioning must not proceed without the password")
	}
}

func TestApproveProviderFailureSurfaced(t *testing.T) {
	f := newFixture(t)
	tok, secret, _ := f.submit(t)
	f.provider.failCreate = true

	if _, err := f.svc.Approve(context.Background(), tok, secret); !errors.Is(err, identity.ErrProvider) {
		t.Fatalf("expected ErrProvider, got %v", err)
	}
	if f.notifier.welcomeCalls != 0 {
		t.Fatal("no welcome notification after failed provisioning")
	}
}

func TestApproveWelcomeFailureStillApproves(t *testing.T) {
	f := newFixture(t)
	tok, secret, _ := f.submit(t)
	f.notifier.failWelcome = true

	res, err := f.svc.Approve(context.Background(), tok, secret)
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if res.Outcome != OutcomeApproved {
		t.Fatalf("unexpected outcome: %s", res.Outcome)
	}
	if _, ok := f.provider.accounts["a@b.com"]; !ok {
		t.Fatal("account must survive a failed welcome notification")
	}
}

func TestDenyNeverTouchesProvider(t *testing.T) {
	f := newFixture(t)
	_, _, denyTok := f.submit(t)

	res, err := f.svc.Deny(context.Background(), denyTok)
	if err != nil {
		t.Fatalf("Deny: %v", err)
	}
	if res.Outcome != OutcomeDenied {
		t.Fatalf("unexpected outcome: %s", res.Outcome)
	}
	if f.notifier.denialCalls != 1 {
		t.Fatalf("expected one denial notification, got %d", f.notifier.denialCalls)
	}
	if f.provider.existsCalls+f.provider.createCalls+f.provider.setPwdCalls != 0 {
		t.Fatal("denial must not call the identity provider")
	}
}

func TestDenyRejectsApproveToken(t *testing.T) {
	f := newFixture(t)
	approveTok, _, _ := f.submit(t)

	if _, err := f.svc.Deny(context.Background(), approveTok); !errors.Is(err, token.ErrWrongAction) {
		t.Fatalf("expected ErrWrongAction, got %v", err)
	}
}

func TestDisplayAndGreetingNames(t *testing.T) {
	cases := []struct {
		reg      Registration
		display  string
		greeting string
	}{
		{Registration{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace"}, "Ada Lovelace", "Ada"},
		{Registration{Email: "a@b.com", FirstName: "Ada"}, "Ada", "Ada"},
		{Registration{Email: "a@b.com", LastName: "Lovelace"}, "Lovelace", "a"},
		{Registration{Email: "a@b.com"}, "a", "a"},
	}
	for _, tc := range cases {
		if got := tc.reg.DisplayName(); got != tc.display {
			t.Fatalf("DisplayName(%+v) = %q, want %q", tc.reg, got, tc.display)
		}
		if got := tc.reg.GreetingName(); got != tc.greeting {
			t.Fatalf("GreetingName(%+v) = %q, want %q", tc.reg, got, tc.greeting)
		}
	}
}
