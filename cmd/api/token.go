package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/suar-net/suar-playground/internal/service"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin token for the management API",
	Long: `Mint an admin token signed with ADMIN_JWT_SECRET.

Pass it as "Authorization: Bearer <token>" on /api requests.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		token, err := service.NewAuthService(cfg.Auth).IssueToken(tokenSubject, tokenTTL)
		if errors.Is(err, service.ErrAuthDisabled) {
			return errors.New("ADMIN_JWT_SECRET is not set, the management API is open")
		}
		if err != nil {
			return err
		}

		data, err := json.MarshalIndent(token, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "admin", "Subject recorded in the token and in audit logs")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to ADMIN_TOKEN_TTL)")
	rootCmd.AddCommand(tokenCmd)
}
