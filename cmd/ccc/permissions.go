package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/cli"
	"ccaccess.org/internal/perms"
)

var permissionsCmd = &cobra.Command{
	Use:   "permissions",
	Short: "Show the caller identity and its IAM policies",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		awsCfg, err := awsConfigForProfile(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}

		sum, err := perms.NewFromConfig(awsCfg).Describe(cmd.Context())
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "Account: %s\n", sum.Account)
		fmt.Fprintf(w, "ARN:     %s\n", sum.ARN)
		if len(sum.Attached) == 0 && len(sum.Inline) == 0 {
			fmt.Fprintln(w, "No IAM user policies (federated session or no policies attached).")
			return nil
		}
		if len(sum.Attached) > 0 {
			fmt.Fprintln(w, "Attached policies:")
			for _, name := range sum.Attached {
				fmt.Fprintf(w, "  - %s\n", name)
			}
		}
		if len(sum.Inline) > 0 {
			fmt.Fprintln(w, "Inline policies:")
			for _, name := range sum.Inline {
				fmt.Fprintf(w, "  - %s\n", name)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(permissionsCmd)
}
