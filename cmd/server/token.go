package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	jwttoken "rwaledger/internal/jwt_token"
)

// newTokenCmd mints a bearer token for local use against the configured
// signing key.
func newTokenCmd(load configLoader) *cobra.Command {
	var (
		actor string
		role  string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token for an actor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if actor == "" {
				return fmt.Errorf("--actor is required")
			}
			jwt := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
			token, err := jwt.GenerateAccessToken(actor, role, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&actor, "actor", "", "actor id carried by the token")
	cmd.Flags().StringVar(&role, "role", "", "informational role claim")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
