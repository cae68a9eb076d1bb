package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/cli"
	"ccaccess.org/internal/identity/cognito"
)

func newAuthenticator(cmd *cobra.Command, s cli.Settings) (*cognito.Authenticator, error) {
	awsCfg, err := awsConfigForSettings(cmd.Context(), s)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return cognito.NewAuthenticator(awsCfg, cognito.AuthenticatorConfig{
		Region:         s.Region,
		UserPoolID:     s.UserPoolID,
		AppClientID:    s.AppClientID,
		IdentityPoolID: s.IdentityPoolID,
	})
}

var forgotPasswordCmd = &cobra.Command{
	Use:   "forgot-password",
	Short: "Start or complete a password reset",
	Long: `Without --code, sends a reset code to the account's email address.
With --code, sets a new password using that code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		email, _ := cmd.Flags().GetString("email")
		if strings.TrimSpace(email) == "" {
			return errors.New("--email is required")
		}
		auth, err := newAuthenticator(cmd, s)
		if err != nil {
			return err
		}

		code, _ := cmd.Flags().GetString("code")
		if code == "" {
			if err := auth.ForgotPassword(cmd.Context(), email); err != nil {
				return fmt.Errorf("request reset code: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "A reset code was sent to your email. Rerun with --code to finish.")
			return nil
		}

		newPwd, err := promptPassword("New password")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm new password")
		if err != nil {
			return err
		}
		if newPwd != confirm {
			return errors.New("passwords do not match")
		}
		if err := auth.ConfirmForgotPassword(cmd.Context(), email, code, newPwd); err != nil {
			return fmt.Errorf("confirm reset: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password updated.")
		return nil
	},
}

var changePasswordCmd = &cobra.Command{
	Use:   "change-password",
	Short: "Change the password of the signed-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		if s.AccessToken == "" {
			return cli.ErrNoSession
		}
		auth, err := newAuthenticator(cmd, s)
		if err != nil {
			return err
		}

		current, err := promptPassword("Current password")
		if err != nil {
			return err
		}
		proposed, err := promptPassword("New password")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm new password")
		if err != nil {
			return err
		}
		if proposed != confirm {
			return errors.New("passwords do not match")
		}
		if err := auth.ChangePassword(cmd.Context(), s.AccessToken, current, proposed); err != nil {
			return fmt.Errorf("change password: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forgotPasswordCmd)
	rootCmd.AddCommand(changePasswordCmd)

	forgotPasswordCmd.Flags().String("email", "", "account email address")
	forgotPasswordCmd.Flags().String("code", "", "reset code received by email")
}
