package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/oggyb/muzz-connect/internal/config"
	"github.com/oggyb/muzz-connect/internal/db"
	"github.com/oggyb/muzz-connect/internal/logger"
)

func main() {
	cmd := &cobra.Command{
		Use:          "seed",
		Short:        "Reset the database and load demo profiles, likes, messages and a stream",
		SilenceUsage: true,
		RunE: func(*cobra.Command, []string) error {
			// Load configuration
			cfg := config.New()
			logger.InitFromConfig(cfg)
			log := logger.L()

			database, err := db.NewDB(cfg)
			if err != nil {
				return err
			}
			if err := db.SeedTestData(database, log); err != nil {
				return err
			}

			log.Info("seeding completed")
			return nil
		},
	}

	if err := cmd.Execute(); err != nil {
		logger.Error("failed to seed", "err", err)
		os.Exit(1)
	}
}
