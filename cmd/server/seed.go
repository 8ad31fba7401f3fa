package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rwaledger/internal/platform/logger"
	"rwaledger/internal/platform/postgres"
	"rwaledger/internal/verifier/seed"
	verifierservice "rwaledger/internal/verifier/service"
	verifierstore "rwaledger/internal/verifier/store"
)

// newSeedCmd loads the verifier catalogue into the configured database.
func newSeedCmd(load configLoader) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Register and activate the verifier catalogue",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			if cfg.Database.URL == "" {
				return fmt.Errorf("seeding requires RWA_DATABASE_URL; in-memory stores are seeded by serve")
			}
			log := logger.New(cfg.Log.Level, cfg.Log.Format)
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}

			catalogue, err := seed.LoadFile(file)
			if err != nil {
				return err
			}
			svc := verifierservice.New(verifierstore.NewPostgres(db), verifierservice.WithLogger(log))
			n, err := seed.Apply(ctx, svc, catalogue)
			if err != nil {
				return err
			}
			log.Info("verifier catalogue seeded", "file", file, "created", n, "entries", len(catalogue.Verifiers))
			return nil
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "verifier catalogue (built-in when empty)")
	return cmd
}
