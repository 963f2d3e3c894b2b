// Package cli implements the anonbot commands.
package cli

import (
	"fmt"
	"os"

	"anonbot/internal/structures"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var flags structures.CliFlags

// RootCmd runs the daemon when no subcommand is given.
var RootCmd = &cobra.Command{
	Use:           "anonbot",
	Short:         "Anonymous feedback relay state daemon",
	Long:          "Keeps users, rate limits and delivery mode for an anonymous feedback bot and snapshots them to disk.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env is normal outside development
		_ = godotenv.Load()
	},
	RunE: runServe,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&flags.ConfigPath, "config", "c", "config.yml", "Path to the YAML config file")
	RootCmd.PersistentFlags().BoolVar(&flags.DebugMode, "debug", false, "Mirror log files to the console")
	RootCmd.AddCommand(serveCmd, inspectCmd)
}

func exitErr(msg string, err error) error {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	return fmt.Errorf("%s: %w", msg, err)
}
