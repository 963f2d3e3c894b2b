package cli

import (
	"fmt"
	"os"

	"anonbot/internal/models"
	"anonbot/internal/persistence"
	"anonbot/internal/providers"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var (
	inspectFile  string
	inspectUsers bool
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Decode a snapshot file and print its summary",
	Long:  "Reads a snapshot (plain, zstd or the older bot format) without starting the daemon.",
	RunE:  runInspect,
}

func init() {
	inspectCmd.Flags().StringVarP(&inspectFile, "file", "f", "", "Snapshot path (default: persistence.filePath from config)")
	inspectCmd.Flags().BoolVar(&inspectUsers, "users", false, "Include every user record")
}

type inspectReport struct {
	File       string              `json:"file"`
	Version    int                 `json:"version"`
	SavedAt    string              `json:"saved_at,omitempty"`
	Consistent bool                `json:"consistent"`
	Stats      models.Stats        `json:"stats"`
	Mode       models.ModeState    `json:"mode"`
	Users      []models.UserRecord `json:"users,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	conf, err := providers.NewConfigProvider(&flags)
	if err != nil {
		return exitErr("config", err)
	}
	path := inspectFile
	if path == "" {
		path = conf.Persistence.FilePath
	}

	logger, err := providers.NewLogProvider(conf)
	if err != nil {
		return exitErr("logger", err)
	}
	defer logger.Close()

	compressor, err := persistence.NewCompressor(conf)
	if err != nil {
		return exitErr("compressor", err)
	}
	codec := persistence.NewSnapshotCodec(compressor, logger)
	defer codec.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		return exitErr("read snapshot", err)
	}
	snap, err := codec.Decode(data)
	if err != nil {
		return exitErr("decode snapshot", err)
	}
	if err := snap.Check(); err != nil {
		return exitErr("check snapshot", err)
	}

	report := inspectReport{
		File:       path,
		Version:    snap.Version,
		Consistent: snap.Consistent(),
		Stats:      models.FoldStats(snap.Users, snap.Stats),
		Mode:       snap.Mode,
	}
	if !snap.SavedAt.IsZero() {
		report.SavedAt = snap.SavedAt.Format("2006-01-02 15:04:05 MST")
	}
	if inspectUsers {
		report.Users = snap.Users
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return exitErr("encode report", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
