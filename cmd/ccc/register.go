package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/spf13/cobra"

	"ccaccess.org/internal/cli"
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Submit an access request for admin approval",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.LoadSettings()
		if err != nil {
			return err
		}

		email, _ := cmd.Flags().GetString("email")
		first, _ := cmd.Flags().GetString("first-name")
		last, _ := cmd.Flags().GetString("last-name")
		if strings.TrimSpace(email) == "" {
			return errors.New("--email is required")
		}

		password, err := promptPassword("Choose a password")
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password")
		if err != nil {
			return err
		}
		if password != confirm {
			return errors.New("passwords do not match")
		}
		if err := checkPasswordPolicy(password); err != nil {
			return err
		}

		payload, err := json.Marshal(map[string]string{
			"email":      email,
			"password":   password,
			"first_name": first,
			"last_name":  last,
		})
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}

		client := &http.Client{Timeout: 30 * time.Second}
		resp, err := client.Post(strings.TrimRight(s.ServiceURL, "/")+"/register", "application/json", bytes.NewReader(payload))
		if err != nil {
			return fmt.Errorf("submit registration: %w", err)
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var reply struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(body, &reply)

		if resp.StatusCode != http.StatusOK {
			if reply.Error != "" {
				return fmt.Errorf("registration rejected: %s", reply.Error)
			}
			return fmt.Errorf("registration failed: status %d", resp.StatusCode)
		}
		if reply.Message == "" {
			reply.Message = "Registration received."
		}
		fmt.Fprintln(cmd.OutOrStdout(), reply.Message)
		return nil
	},
}

// checkPasswordPolicy mirrors the user pool's password rules so bad
// passwords fail here instead of at approval time, days later.
func checkPasswordPolicy(password string) error {
	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		default:
			symbol = true
		}
	}
	if !upper || !lower || !digit || !symbol {
		return errors.New("password needs an uppercase letter, a lowercase letter, a digit and a symbol")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(registerCmd)

	registerCmd.Flags().String("email", "", "email address to register")
	registerCmd.Flags().String("first-name", "", "given name")
	registerCmd.Flags().String("last-name", "", "family name")
}
