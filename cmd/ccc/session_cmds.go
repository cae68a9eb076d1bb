package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/cli"
	"ccaccess.org/internal/identity/cognito"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Renew the session using the cached refresh token",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		if s.RefreshToken == "" {
			return cli.ErrNoSession
		}

		ctx := cmd.Context()
		awsCfg, err := awsConfigForSettings(ctx, s)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		auth, err := cognito.NewAuthenticator(awsCfg, cognito.AuthenticatorConfig{
			Region:         s.Region,
			UserPoolID:     s.UserPoolID,
			AppClientID:    s.AppClientID,
			IdentityPoolID: s.IdentityPoolID,
		})
		if err != nil {
			return err
		}

		tokens, err := auth.Refresh(ctx, s.RefreshToken)
		if err != nil {
			return fmt.Errorf("refresh: %w", err)
		}
		s.IDToken = tokens.IDToken
		s.AccessToken = tokens.AccessToken
		if err := cli.SaveSettings(s); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Session renewed.")

		if s.IdentityPoolID == "" {
			return nil
		}
		creds, err := auth.Credentials(ctx, tokens.IDToken)
		if err != nil {
			return fmt.Errorf("fetch aws credentials: %w", err)
		}
		path, err := cli.CredentialsPath()
		if err != nil {
			return err
		}
		if err := cli.WriteProfile(path, s.Profile, creds); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "AWS credentials refreshed for profile %q.\n", s.Profile)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Drop the cached session and AWS credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		if err := cli.ClearTokens(); err != nil {
			return err
		}
		path, err := cli.CredentialsPath()
		if err != nil {
			return err
		}
		if err := cli.RemoveProfile(path, s.Profile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		ident, err := cli.ParseIdentity(s.IDToken)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Email:   %s\n", ident.Email)
		if ident.Name != "" {
			fmt.Fprintf(w, "Name:    %s\n", ident.Name)
		}
		fmt.Fprintf(w, "Subject: %s\n", ident.Subject)
		if !ident.ExpiresAt.IsZero() {
			state := "valid"
			if ident.Expired(time.Now()) {
				state = "expired, run \"ccc refresh\""
			}
			fmt.Fprintf(w, "Session: %s (until %s)\n", state, ident.ExpiresAt.Local().Format(time.RFC822))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}
