package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
)

var initDropExisting bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the star schema tables",
	Long: `Create the five star schema tables in the target database if they
do not exist. With --drop-existing the tables are dropped first.

Example:
  pgedge-retailstar init --sink postgres --connection "postgres://..."`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDropExisting, "drop-existing", false,
		"drop existing tables before creating them")
}

func runInit(cmd *cobra.Command, args []string) error {
	if initDropExisting {
		cfg.Init.DropExisting = true
	}

	if err := cfg.ValidateInit(); err != nil {
		return err
	}

	logging.Info().
		Str("sink", cfg.Sink.Kind).
		Bool("drop_existing", cfg.Init.DropExisting).
		Msg("Initializing schema")

	ctx := context.Background()
	s, err := sink.Open(ctx, cfg.SinkOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer s.Close()

	tables := sink.StarTables(cfg.TableNames())
	if err := s.EnsureSchema(ctx, tables, cfg.Init.DropExisting); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().
		Int("tables", len(tables)).
		Msg("Schema initialization complete")

	return nil
}
