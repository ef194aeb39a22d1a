// Command catalogctl maintains a catalog store: it loads the demo data set
// and exports, restores and prunes JSON snapshots.
//
// It reads the same configuration as the server.
//
//	catalogctl seed --with-users
//	catalogctl backup export --out library.json
//	catalogctl backup export --upload
//	catalogctl backup prune --keep 5
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"small-library/internal/app"
	"small-library/internal/config"
	"small-library/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// cli carries state shared by subcommands.
type cli struct {
	cfg   config.Config
	log   *logrus.Logger
	store *app.Store
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "catalogctl",
		Short:        "Maintain the library catalog store",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.open(cmd.Context())
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return c.close()
		},
	}

	root.AddCommand(newSeedCmd(c), newBackupCmd(c))
	return root
}

func (c *cli) open(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}

	store, err := app.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	c.cfg, c.log, c.store = cfg, logger, store
	return nil
}

func (c *cli) close() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
