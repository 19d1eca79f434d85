package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/loworbit/txtrack/internal/transport/httpapi/middleware"
	"github.com/loworbit/txtrack/pkg/config"
)

func newTokenCmd() *cobra.Command {
	var (
		chainID int64
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token [account]",
		Short: "Issue an API token for an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := config.FromEnv().JWTSecret
			if len(secret) < 32 {
				return fmt.Errorf("JWT_SECRET must be set and at least 32 characters long")
			}

			token, err := middleware.NewJWTService(secret).GenerateToken(args[0], chainID, ttl)
			if err != nil {
				return err
			}

			printf(cmd, "%s\n", token)
			return nil
		},
	}

	cmd.Flags().Int64Var(&chainID, "chain", 1, "Chain ID the token is bound to")
	cmd.Flags().DurationVar(&ttl, "ttl", middleware.DefaultTokenTTL, "Token lifetime")

	return cmd
}
