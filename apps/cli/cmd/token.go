package cmd

import (
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/postbox/packages/api"
	"github.com/abdul-hamid-achik/postbox/packages/core/config"
	"github.com/spf13/cobra"
)

var tokenTTLFlag time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API bearer token for a user",
	Long: `Mint a bearer token for the JSON API, signed with the configured JWT secret.

Examples:
  postbox token --user alice
  postbox token --user alice --ttl 1h
  curl -H "Authorization: Bearer $(postbox token -u alice)" localhost:8080/api/collections`,
	Args: cobra.NoArgs,
	RunE: tokenCommand,
}

func init() {
	tokenCmd.Flags().DurationVar(&tokenTTLFlag, "ttl", 24*time.Hour, "Token lifetime, 0 for no expiry")
}

func tokenCommand(cmd *cobra.Command, args []string) error {
	user, err := requireUser()
	if err != nil {
		return err
	}
	cfg, err := config.Load(configFlag)
	if err != nil {
		return configError(err)
	}
	issuer, err := api.NewIssuer(cfg.JWTSecret)
	if err != nil {
		return configError(fmt.Errorf("jwtSecret: %w", err))
	}
	token, err := issuer.Mint(user, tokenTTLFlag)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
