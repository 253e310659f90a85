package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"telecloud/internal/auth"
)

func NewTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <owner-id>",
		Short: "Issue a bearer token for an owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			ttl, _ := cmd.Flags().GetDuration("ttl")
			unverified, _ := cmd.Flags().GetBool("unverified")

			token, err := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer).Issue(args[0], !unverified, ttl)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	cmd.Flags().Bool("unverified", false, "Issue a token not verified for storage")

	return cmd
}
