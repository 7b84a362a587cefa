package main

import (
	"errors"
	"fmt"
	"time"

	"ragchat-backend/internal/auth"
	"ragchat-backend/internal/config"

	"github.com/spf13/cobra"
)

// newTokenCmd creates the token command.
func newTokenCmd() *cobra.Command {
	var opts struct {
		Subject string
		TTL     time.Duration
	}

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an HS256 API token for a subject",
		Long:  "Signs a bearer token with JWT_SECRET. The subject becomes the owner of every conversation created with the token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			if !cfg.AuthEnabled() {
				return errors.New("JWT_SECRET is not set")
			}

			ttl := cfg.TokenExpiration
			if opts.TTL > 0 {
				ttl = opts.TTL
			}

			token, err := auth.NewAccessToken(opts.Subject, cfg.JWTSecret, ttl)
			if err != nil {
				return fmt.Errorf("signing token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.Subject, "subject", "s", "", "Token subject (conversation owner)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "Token lifetime (defaults to JWT_EXPIRATION_HOURS)")
	cmd.MarkFlagRequired("subject")
	return cmd
}
