package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/activity"
	"ccaccess.org/internal/cli"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent cloud activity of the signed-in user",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}
		ident, err := cli.ParseIdentity(s.IDToken)
		if err != nil {
			return err
		}
		username, _ := cmd.Flags().GetString("user")
		if username == "" {
			username = ident.Email
		}

		awsCfg, err := awsConfigForProfile(cmd.Context(), s)
		if err != nil {
			return fmt.Errorf("load aws config: %w", err)
		}
		reader := activity.NewFromConfig(awsCfg)

		sinceDur, _ := cmd.Flags().GetDuration("since")
		limit, _ := cmd.Flags().GetInt32("limit")
		since := time.Now().Add(-sinceDur)

		events, err := reader.UserEvents(cmd.Context(), username, since, limit)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(events) == 0 {
			// CloudTrail delivery can lag by several minutes; offer the
			// log-group fallback when one is configured.
			if group, _ := cmd.Flags().GetString("log-group"); group != "" {
				lines, err := reader.LogLines(cmd.Context(), group, username, since)
				if err != nil {
					return err
				}
				for _, line := range lines {
					fmt.Fprintln(w, strings.TrimRight(line, "\n"))
				}
				if len(lines) > 0 {
					return nil
				}
			}
			fmt.Fprintln(w, "No recorded activity in the selected window.")
			return nil
		}

		for _, ev := range events {
			line := fmt.Sprintf("%s  %-30s %s", ev.Time.Local().Format("2006-01-02 15:04"), ev.Name, ev.Source)
			if len(ev.Resources) > 0 {
				line += "  " + strings.Join(ev.Resources, ", ")
			}
			fmt.Fprintln(w, line)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().String("user", "", "user to query (default: session email)")
	historyCmd.Flags().Duration("since", 24*time.Hour, "how far back to look")
	historyCmd.Flags().Int32("limit", 50, "maximum number of events")
	historyCmd.Flags().String("log-group", "", "CloudWatch log group fallback when CloudTrail is empty")
}
