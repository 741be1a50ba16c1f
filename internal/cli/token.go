package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"learn-quiz-service/internal/config"
	transport "learn-quiz-service/internal/transport/http"
)

// NewTokenCmd prints a signed bearer token for local testing.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		userID string
		name   string
		grader bool
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret not configured")
			}
			if userID == "" {
				return fmt.Errorf("--user is required")
			}
			identity := transport.NewIdentity(cfg.Auth.JWTSecret, cfg.Session.Cookie, config.DefaultSessionTTL)
			token, err := identity.IssueToken(userID, name, grader, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (token subject)")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().BoolVar(&grader, "grader", false, "grant the grader role")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
