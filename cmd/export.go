package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wordtally/apiserver/config"
	"github.com/wordtally/apiserver/internal/db"
	"github.com/wordtally/apiserver/internal/export"
	"github.com/wordtally/apiserver/internal/logging"
	"github.com/wordtally/apiserver/internal/storage"
	"github.com/wordtally/apiserver/internal/store"
)

// exportCmd represents the export command.
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write a counts snapshot to object storage",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg)
		ctx := cmd.Context()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		objects, err := storage.NewBackend(ctx, cfg.Storage)
		if err != nil {
			return fmt.Errorf("connect storage: %w", err)
		}

		exporter := export.NewExporter(store.NewCountRepository(dbConn), objects, logger)
		key, err := exporter.Run(ctx)
		if err != nil {
			return err
		}
		fmt.Println(key)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
}
