package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wordtally/apiserver/config"
	"github.com/wordtally/apiserver/internal/db"
	"github.com/wordtally/apiserver/internal/ingest"
	"github.com/wordtally/apiserver/internal/logging"
	"github.com/wordtally/apiserver/internal/mq"
	"github.com/wordtally/apiserver/internal/store"
)

// ingestCmd represents the ingest command.
var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Consume count events from the message bus",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := logging.New(cfg)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		dbConn, err := db.Open(ctx, cfg)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer dbConn.Close()

		bus, err := mq.NewBackend(ctx, cfg.MQ)
		if err != nil {
			return fmt.Errorf("connect broker: %w", err)
		}
		defer bus.Close()

		worker := ingest.NewWorker(bus, cfg.MQ.Channel, store.NewCountRepository(dbConn), logger)
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
