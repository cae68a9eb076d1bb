// Package cli holds the client-side state of the ccc tool: its JSON
// configuration, cached Cognito tokens and the AWS credentials file
// profile it maintains.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	configDirName  = ".cca"
	configFileName = "config.json"

	// DefaultProfile is the credentials-file section ccc writes.
	DefaultProfile = "cca"
)

// Settings is everything ccc persists between invocations. Tokens are
// cached here so login survives across commands; the refresh token
// lets ccc renew sessions without re-prompting for the password.
type Settings struct {
	ServiceURL     string `mapstructure:"service_url" json:"service_url"`
	Region         string `mapstructure:"region" json:"region"`
	UserPoolID     string `mapstructure:"user_pool_id" json:"user_pool_id"`
	AppClientID    string `mapstructure:"app_client_id" json:"app_client_id"`
	IdentityPoolID string `mapstructure:"identity_pool_id" json:"identity_pool_id"`
	Profile        string `mapstructure:"profile" json:"profile"`

	IDToken      string `mapstructure:"id_token" json:"id_token,omitempty"`
	AccessToken  string `mapstructure:"access_token" json:"access_token,omitempty"`
	RefreshToken string `mapstructure:"refresh_token" json:"refresh_token,omitempty"`
}

// ErrNotConfigured means no config file exists yet; run `ccc configure`.
var ErrNotConfigured = errors.New("cli: not configured, run \"ccc configure\" first")

// ConfigPath returns the config file location, honoring CCA_CONFIG for
// tests and unusual setups.
func ConfigPath() (string, error) {
	if p := os.Getenv("CCA_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cli: resolve home directory: %w", err)
	}
	return filepath.Join(home, configDirName, configFileName), nil
}

// LoadSettings reads the persisted configuration.
func LoadSettings() (Settings, error) {
	path, err := ConfigPath()
	if err != nil {
		return Settings{}, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Settings{}, ErrNotConfigured
		}
		return Settings{}, fmt.Errorf("cli: stat config: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return Settings{}, fmt.Errorf("cli: read config: %w", err)
	}
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("cli: parse config: %w", err)
	}
	if s.Profile == "" {
		s.Profile = DefaultProfile
	}
	return s, nil
}

// SaveSettings writes the configuration with owner-only permissions;
// the file carries session tokens.
func SaveSettings(s Settings) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("cli: create config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.Set("service_url", s.ServiceURL)
	v.Set("region", s.Region)
	v.Set("user_pool_id", s.UserPoolID)
	v.Set("app_client_id", s.AppClientID)
	v.Set("identity_pool_id", s.IdentityPoolID)
	v.Set("profile", s.Profile)
	v.Set("id_token", s.IDToken)
	v.Set("access_token", s.AccessToken)
	v.Set("refresh_token", s.RefreshToken)
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("cli: write config: %w", err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return fmt.Errorf("cli: chmod config: %w", err)
	}
	return nil
}

// ClearTokens drops the cached session but keeps the configuration.
func ClearTokens() error {
	s, err := LoadSettings()
	if err != nil {
		return err
	}
	s.IDToken = ""
	s.AccessToken = ""
	s.RefreshToken = ""
	return SaveSettings(s)
}
