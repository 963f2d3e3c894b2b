package cli

import (
	"anonbot/internal/di"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Restore the last snapshot and serve the control API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := di.InitApp(&flags)
	if err != nil {
		return exitErr("startup", err)
	}
	if err := app.Run(); err != nil {
		return exitErr("run", err)
	}
	return nil
}
