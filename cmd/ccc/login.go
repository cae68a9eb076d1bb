package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/cli"
	"ccaccess.org/internal/identity/cognito"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and fetch temporary AWS credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")
		if strings.TrimSpace(email) == "" {
			return errors.New("--email is required")
		}

		password, err := promptPassword("Password")
		if err != nil {
			return err
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

		tokens, err := auth.Login(ctx, email, password)
		if err != nil {
			return fmt.Errorf("login: %w", err)
		}
		s.IDToken = tokens.IDToken
		s.AccessToken = tokens.AccessToken
		if tokens.RefreshToken != "" {
			s.RefreshToken = tokens.RefreshToken
		}
		if err := cli.SaveSettings(s); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Signed in.")

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
		fmt.Fprintf(cmd.OutOrStdout(), "AWS credentials written to profile %q (expire %s).\n",
			s.Profile, creds.Expiration.Local().Format("15:04 MST"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("email", "", "email address to sign in with")
}
