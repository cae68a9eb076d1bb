package main

import (
	"context"
	"fmt"
	"os"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"ccaccess.org/internal/cli"
)

var version = "0.3.1"

var rootCmd = &cobra.Command{
	Use:   "ccc",
	Short: "Client for the cloud access approval service",
	Long: `ccc requests, maintains and inspects cloud access accounts.

Typical flow:
  ccc configure     # point ccc at the service and the identity pools
  ccc register      # submit an access request for admin approval
  ccc login         # once approved, sign in and fetch AWS credentials
  ccc whoami        # show the active session`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Stderr.WriteString("Error: " + err.Error() + "\n")
		os.Exit(1)
	}
}

// promptPassword reads a password without echo; the trailing newline
// the terminal swallows is re-emitted so following output stays tidy.
func promptPassword(label string) (string, error) {
	fmt.Fprintf(os.Stderr, "%s: ", label)
	raw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(raw), nil
}

// awsConfigForSettings resolves an SDK config in the configured region.
func awsConfigForSettings(ctx context.Context, s cli.Settings) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}

// awsConfigForProfile resolves an SDK config using the credentials
// profile ccc maintains, for commands that act as the signed-in user.
func awsConfigForProfile(ctx context.Context, s cli.Settings) (aws.Config, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithSharedConfigProfile(s.Profile),
	}
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	return awsconfig.LoadDefaultConfig(ctx, opts...)
}
