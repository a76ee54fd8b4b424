//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for pgedge-retailstar.
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-retailstar/internal/config"
	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/pkg/version"
)

var (
	// Global flags
	cfgFile    string
	connection string
	sinkKind   string
	sourcePath string
	logLevel   string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "pgedge-retailstar",
		Short: "Load retail invoice lines into a star schema",
		Long: `pgedge-retailstar reads a flat extract of retail invoice lines and
loads it into a star schema: date, invoice, customer and product dimensions
plus a transaction fact.

Every load is a full reload. All five tables are truncated and rewritten
inside one transaction, so a failed load leaves the previous contents intact.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		Version:       version.Short(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./pgedge-retailstar.yaml)")
	rootCmd.PersistentFlags().StringVar(&connection, "connection", "",
		"target database connection string")
	rootCmd.PersistentFlags().StringVar(&sinkKind, "sink", "",
		"target database kind (postgres, mssql, sqlite, memory)")
	rootCmd.PersistentFlags().StringVar(&sourcePath, "source", "",
		"path of the invoice-line CSV extract")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(tablesCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if connection != "" {
		cfg.Sink.Connection = connection
	}
	if sinkKind != "" {
		cfg.Sink.Kind = sinkKind
	}
	if sourcePath != "" {
		cfg.Source.Path = sourcePath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the star tables and their columns",
	Long: `List the five tables a load writes, in load order, with their
columns, logical types and primary keys. Table names reflect the current
configuration.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			return err
		}

		var rows [][]string
		for _, t := range sink.StarTables(cfg.TableNames()) {
			pk := make(map[string]bool, len(t.PrimaryKey))
			for _, c := range t.PrimaryKey {
				pk[c] = true
			}
			for _, c := range t.Columns {
				key := ""
				if pk[c.Name] {
					key = "PK"
				}
				rows = append(rows, []string{t.Name, c.Name, typeName(c.Type), key})
			}
		}
		writeTable(cmd.OutOrStdout(), []string{"TABLE", "COLUMN", "TYPE", "KEY"}, rows)

		cmd.Println()
		cmd.Printf("Registered sinks: %s\n", strings.Join(sink.Kinds(), ", "))
		return nil
	},
}

func typeName(t sink.ColumnType) string {
	switch t {
	case sink.Integer:
		return "integer"
	case sink.BigInt:
		return "bigint"
	case sink.Text:
		return "text"
	case sink.Date:
		return "date"
	case sink.Timestamp:
		return "timestamp"
	case sink.Double:
		return "double"
	default:
		return fmt.Sprintf("type(%d)", t)
	}
}
