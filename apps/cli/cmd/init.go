package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/abdul-hamid-achik/postbox/packages/core/config"
	"github.com/abdul-hamid-achik/postbox/packages/core/env"
	"github.com/abdul-hamid-achik/postbox/packages/core/model"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a postbox workspace",
	Long: `Initialize a postbox workspace in the current directory.

This creates:
  - postbox.yaml  - Configuration with a generated JWT secret
  - envs/dev.yaml - Example environment set (postbox env import envs/dev.yaml)

Examples:
  postbox init
  postbox init --force`,
	Args: cobra.NoArgs,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
	rootCmd.AddCommand(initCmd)
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, "postbox.yaml")
	envFile := filepath.Join(cwd, "envs", "dev.yaml")

	if !forceInit {
		for _, f := range []string{configFile, envFile} {
			if _, err := os.Stat(f); err == nil {
				return usageError(fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	cfg := config.DefaultConfig()
	cfg.JWTSecret = hex.EncodeToString(secret)
	cfg.Headers = map[string]string{"User-Agent": "postbox/" + version}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	envYAML, err := yaml.Marshal(env.Document{
		Name: "dev",
		Variables: []model.Variable{
			{Key: "baseUrl", Value: "http://localhost:3000"},
			{Key: "userId", Value: "1"},
		},
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(envFile), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(envFile, envYAML, 0644); err != nil {
		return fmt.Errorf("failed to create environment file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", envFile)

	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "  postbox env import -u you envs/dev.yaml")
	fmt.Fprintln(cmd.OutOrStdout(), "  postbox collection create -u you demo")
	fmt.Fprintln(cmd.OutOrStdout(), "  postbox exec -u you -c <collection-id> --env dev '{{baseUrl}}/users/{{userId}}'")
	return nil
}
