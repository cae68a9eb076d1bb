package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/ini.v1"

	"ccaccess.org/internal/identity"
)

// CredentialsPath returns the AWS shared credentials file location,
// honoring AWS_SHARED_CREDENTIALS_FILE like the SDK does.
func CredentialsPath() (string, error) {
	if p := os.Getenv("AWS_SHARED_CREDENTIALS_FILE"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cli: resolve home directory: %w", err)
	}
	return filepath.Join(home, ".aws", "credentials"), nil
}

// WriteProfile upserts the named profile with temporary credentials,
// preserving every other section in the file.
func WriteProfile(path, profile string, creds identity.Credentials) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cli: create credentials directory: %w", err)
	}

	cfg, err := ini.Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("cli: load credentials file: %w", err)
		}
		cfg = ini.Empty()
	}

	section, err := cfg.NewSection(profile)
	if err != nil {
		return fmt.Errorf("cli: create profile section: %w", err)
	}
	section.Key("aws_access_key_id").SetValue(creds.AccessKeyID)
	section.Key("aws_secret_access_key").SetValue(creds.SecretAccessKey)
	if creds.SessionToken != "" {
		section.Key("aws_session_token").SetValue(creds.SessionToken)
	} else {
		section.DeleteKey("aws_session_token")
	}

	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("cli: save credentials file: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("cli: chmod credentials file: %w", err)
	}
	return nil
}

// RemoveProfile deletes the named profile section if present. A
// missing file is not an error.
func RemoveProfile(path, profile string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("cli: load credentials file: %w", err)
	}
	if _, err := cfg.GetSection(profile); err != nil {
		return nil
	}
	cfg.DeleteSection(profile)
	if err := cfg.SaveTo(path); err != nil {
		return fmt.Errorf("cli: save credentials file: %w", err)
	}
	return nil
}
