package cli

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/ini.v1"

	"ccaccess.org/internal/identity"
)

func TestSettingsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CCA_CONFIG", filepath.Join(dir, "config.json"))

	want := Settings{
		ServiceURL:     "https://cca.example.com",
		Region:         "eu-west-1",
		UserPoolID:     "eu-west-1_abc123",
		AppClientID:    "client123",
		IdentityPoolID: "eu-west-1:pool",
		Profile:        "cca",
		IDToken:        "id",
		AccessToken:    "access",
		RefreshToken:   "refresh",
	}
	if err := SaveSettings(want); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	info, err := os.Stat(filepath.Join(dir, "config.json"))
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("config permissions = %o, want 600", perm)
	}

	got, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got != want {
		t.Fatalf("settings mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestLoadSettingsMissingFile(t *testing.T) {
	t.Setenv("CCA_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	if _, err := LoadSettings(); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestClearTokensKeepsConfiguration(t *testing.T) {
	t.Setenv("CCA_CONFIG", filepath.Join(t.TempDir(), "config.json"))
	if err := SaveSettings(Settings{Region: "eu-west-1", Profile: "cca", IDToken: "id", RefreshToken: "r"}); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	if err := ClearTokens(); err != nil {
		t.Fatalf("ClearTokens: %v", err)
	}
	got, err := LoadSettings()
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if got.IDToken != "" || got.RefreshToken != "" {
		t.Fatalf("tokens not cleared: %+v", got)
	}
	if got.Region != "eu-west-1" {
		t.Fatal("configuration lost while clearing tokens")
	}
}

func TestWriteProfilePreservesOtherSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	if err := os.WriteFile(path, []byte("[default]\naws_access_key_id = KEEP\n"), 0o600); err != nil {
		t.Fatalf("seed credentials: %v", err)
	}

	creds := identity.Credentials{
		AccessKeyID:     "AKIAEXAMPLE",
		SecretAccessKey: "secret",
		SessionToken:    "session",
	}
	if err := WriteProfile(path, "cca", creds); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}

	cfg, err := ini.Load(path)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	if got := cfg.Section("default").Key("aws_access_key_id").String(); got != "KEEP" {
		t.Fatalf("default profile damaged: %q", got)
	}
	sec := cfg.Section("cca")
	if sec.Key("aws_access_key_id").String() != "AKIAEXAMPLE" ||
		sec.Key("aws_session_token").String() != "session" {
		t.Fatalf("profile not written: %v", sec.KeysHash())
	}
}

func TestRemoveProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials")
	if err := WriteProfile(path, "cca", identity.Credentials{AccessKeyID: "A", SecretAccessKey: "S"}); err != nil {
		t.Fatalf("WriteProfile: %v", err)
	}
	if err := RemoveProfile(path, "cca"); err != nil {
		t.Fatalf("RemoveProfile: %v", err)
	}
	cfg, err := ini.Load(path)
	if err != nil {
		t.Fatalf("load result: %v", err)
	}
	for _, name := range cfg.SectionStrings() {
		if name == "cca" {
			t.Fatal("profile still present after removal")
		}
	}

	// Missing file is fine.
	if err := RemoveProfile(filepath.Join(t.TempDir(), "nope"), "cca"); err != nil {
		t.Fatalf("RemoveProfile on missing file: %v", err)
	}
}

func unsignedToken(t *testing.T, claims map[string]any) string {
	t.Helper()
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"none","typ":"JWT"}`))
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	return strings.Join([]string{header, base64.RawURLEncoding.EncodeToString(payload), ""}, ".")
}

func TestParseIdentity(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	tok := unsignedToken(t, map[string]any{
		"sub":   "user-123",
		"email": "ada@example.com",
		"name":  "Ada Lovelace",
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	})

	ident, err := ParseIdentity(tok)
	if err != nil {
		t.Fatalf("ParseIdentity: %v", err)
	}
	if ident.Email != "ada@example.com" || ident.Subject != "user-123" {
		t.Fatalf("unexpected identity: %+v", ident)
	}
	if ident.Expired(now) {
		t.Fatal("token should not be expired yet")
	}
	if !ident.Expired(now.Add(2 * time.Hour)) {
		t.Fatal("token should be expired after exp")
	}
}

func TestParseIdentityEmptyToken(t *testing.T) {
	if _, err := ParseIdentity(""); err != ErrNoSession {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
}
