package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"docrag/internal/config"
	"docrag/internal/pkg/jwtutil"
)

var (
	tokenTTL   time.Duration
	tokenScope string
)

// loadConfig is replaced in tests.
var loadConfig = config.Load

func NewTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue an API token",
		Long: `Sign a bearer token for the HTTP API with auth.jwt_secret.

Examples:
  docrag token ci-uploader
  docrag token --ttl 720h --scope ingest ci-uploader
  docrag token --scope read dashboard`,
		Args: cobra.ExactArgs(1),
		RunE: runToken,
	}
	cmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (default auth.jwt_expire_minute)")
	cmd.Flags().StringVar(&tokenScope, "scope", "", "Limit the token to ingest or read (default both)")
	return cmd
}

func runToken(cmd *cobra.Command, args []string) error {
	if err := jwtutil.ValidateScope(tokenScope); err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is not set")
	}

	ttl := tokenTTL
	if ttl <= 0 {
		ttl = time.Duration(cfg.Auth.JWTExpireMinute) * time.Minute
	}
	token, err := jwtutil.GenerateToken(cfg.Auth.JWTSecret, ttl, args[0], tokenScope)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
