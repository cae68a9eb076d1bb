package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/cli"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store the service address and identity pool settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		s, err := cli.LoadSettings()
		if err != nil && !errors.Is(err, cli.ErrNotConfigured) {
			return err
		}
		if s.Profile == "" {
			s.Profile = cli.DefaultProfile
		}

		setIfChanged(flags.Changed("service-url"), &s.ServiceURL, flags, "service-url")
		setIfChanged(flags.Changed("region"), &s.Region, flags, "region")
		setIfChanged(flags.Changed("user-pool-id"), &s.UserPoolID, flags, "user-pool-id")
		setIfChanged(flags.Changed("app-client-id"), &s.AppClientID, flags, "app-client-id")
		setIfChanged(flags.Changed("identity-pool-id"), &s.IdentityPoolID, flags, "identity-pool-id")
		setIfChanged(flags.Changed("profile"), &s.Profile, flags, "profile")

		if s.ServiceURL == "" {
			return errors.New("--service-url is required")
		}
		if err := cli.SaveSettings(s); err != nil {
			return err
		}
		path, _ := cli.ConfigPath()
		fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
		return nil
	},
}

func setIfChanged(changed bool, dst *string, flags interface{ GetString(string) (string, error) }, name string) {
	if !changed {
		return
	}
	if v, err := flags.GetString(name); err == nil {
		*dst = v
	}
}

func init() {
	rootCmd.AddCommand(configureCmd)

	configureCmd.Flags().String("service-url", "", "base URL of the approval service")
	configureCmd.Flags().String("region", "", "AWS region of the user pool")
	configureCmd.Flags().String("user-pool-id", "", "Cognito user pool id")
	configureCmd.Flags().String("app-client-id", "", "Cognito app client id")
	configureCmd.Flags().String("identity-pool-id", "", "Cognito identity pool id (enables AWS credentials)")
	configureCmd.Flags().String("profile", cli.DefaultProfile, "AWS credentials profile to maintain")
}
