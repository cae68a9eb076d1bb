// Package config loads the approval service configuration from the
// environment. All CCA_* variables are read once at startup; a missing
// required value is a fatal configuration error, not a runtime one.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const defaultRegistrationTTL = 48 * time.Hour

// Config is the complete runtime configuration of approvald.
type Config struct {
	// Identity provider.
	UserPoolID string

	// Envelope encryption.
	KMSKeyID string

	// Notifications.
	FromEmail  string
	AdminEmail string

	// Token signing.
	SigningSecret []byte

	// BaseURL is the externally reachable address action links are
	// built against. When empty, links are derived from the incoming
	// request's Host header.
	BaseURL string

	ListenAddr string

	// PGDSN enables the durable consumed-token store. When empty,
	// tokens stay usable until expiry.
	PGDSN string

	RegistrationTTL time.Duration

	// AWSRegion overrides the SDK's own region resolution when set.
	AWSRegion string
}

// FromEnv reads the configuration from CCA_* environment variables.
func FromEnv() (Config, error) {
	cfg := Config{
		UserPoolID:      strings.TrimSpace(os.Getenv("CCA_USER_POOL_ID")),
		KMSKeyID:        strings.TrimSpace(os.Getenv("CCA_KMS_KEY_ID")),
		FromEmail:       strings.TrimSpace(os.Getenv("CCA_FROM_EMAIL")),
		AdminEmail:      strings.TrimSpace(os.Getenv("CCA_ADMIN_EMAIL")),
		BaseURL:         strings.TrimRight(strings.TrimSpace(os.Getenv("CCA_BASE_URL")), "/"),
		ListenAddr:      strings.TrimSpace(os.Getenv("CCA_LISTEN_ADDR")),
		PGDSN:           strings.TrimSpace(os.Getenv("CCA_PG_DSN")),
		AWSRegion:       strings.TrimSpace(os.Getenv("CCA_AWS_REGION")),
		RegistrationTTL: defaultRegistrationTTL,
	}
	if secret := strings.TrimSpace(os.Getenv("CCA_SIGNING_SECRET")); secret != "" {
		cfg.SigningSecret = []byte(secret)
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if raw := strings.TrimSpace(os.Getenv("CCA_REGISTRATION_TTL")); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("config: CCA_REGISTRATION_TTL: %w", err)
		}
		if ttl <= 0 {
			return Config{}, fmt.Errorf("config: CCA_REGISTRATION_TTL must be positive, got %s", ttl)
		}
		cfg.RegistrationTTL = ttl
	}

	var missing []string
	for _, req := range []struct {
		name  string
		value string
	}{
		{"CCA_USER_POOL_ID", cfg.UserPoolID},
		{"CCA_KMS_KEY_ID", cfg.KMSKeyID},
		{"CCA_FROM_EMAIL", cfg.FromEmail},
		{"CCA_ADMIN_EMAIL", cfg.AdminEmail},
		{"CCA_SIGNING_SECRET", string(cfg.SigningSecret)},
	} {
		if req.value == "" {
			missing = append(missing, req.name)
		}
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}
