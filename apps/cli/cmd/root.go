package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFlag  string
	userFlag    string
	noColorFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "postbox",
	Short: "Store, resolve and execute HTTP requests",
	Long: `postbox keeps HTTP request definitions in collections, resolves
{{placeholders}} from environment sets, executes them and records every
response. It runs as a JSON API (postbox serve) or straight from the
command line.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	if err := rootCmd.Execute(); err != nil {
		if isSilent(err) {
			os.Exit(ExitCodeFor(err))
		}
		red := color.New(color.FgRed)
		if noColorFlag {
			red.DisableColor()
		}
		fmt.Fprintf(os.Stderr, "%s %v\n", red.Sprint("Error:"), err)
		os.Exit(ExitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", getEnvString("POSTBOX_CONFIG", ""), "Path to config file (env: POSTBOX_CONFIG)")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", getEnvString("POSTBOX_USER", ""), "User that owns the data (env: POSTBOX_USER)")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", getEnvBool("POSTBOX_NO_COLOR", false), "Disable colored output (env: POSTBOX_NO_COLOR)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(collectionCmd)
	rootCmd.AddCommand(envCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(attemptsCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(versionCmd)
}

// requireUser returns the --user value or a usage error.
func requireUser() (string, error) {
	if userFlag == "" {
		return "", usageError(errors.New("--user is required (or set POSTBOX_USER)"))
	}
	return userFlag, nil
}
