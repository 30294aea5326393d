package commands

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fatih/color"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/platewise/extraction-engine/internal/config"
	"github.com/platewise/extraction-engine/internal/draft"
)

var sweepTimeout time.Duration

// sweepCmd removes expired drafts once. Scheduled externally (cron,
// systemd timer); the engine itself never sweeps.
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Delete expired drafts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
		defer cancel()

		store, closeStore, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		count, err := store.SweepExpired(ctx)
		if err != nil {
			return fmt.Errorf("sweep expired drafts: %w", err)
		}

		if count > 0 {
			color.Green("Swept %d expired draft(s)", count)
		} else {
			color.Yellow("No expired drafts")
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepTimeout, "timeout", 30*time.Second, "sweep timeout")
}

func openStore(cfg *config.Config) (draft.Store, func() error, error) {
	if cfg.Drafts.Backend == "redis" {
		store, err := draft.NewRedisStore(draft.RedisConfig{
			Addr:     cfg.Drafts.Redis.Addr,
			Password: cfg.Drafts.Redis.Password,
			DB:       cfg.Drafts.Redis.DB,
			PoolSize: cfg.Drafts.Redis.PoolSize,
			Prefix:   cfg.Drafts.Redis.Prefix,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}

	driver := "sqlite3"
	if cfg.Database.Driver == "postgres" {
		driver = "postgres"
	}
	db, err := sql.Open(driver, cfg.DatabaseDSN())
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return draft.NewSQLStore(db), db.Close, nil
}
