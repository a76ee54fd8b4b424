//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for pgedge-retailstar.
// Configuration is loaded from config files and CLI flags (no environment variables).
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/spf13/viper"

	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/internal/source"
)

// Config holds all configuration for pgedge-retailstar.
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// Source describes the invoice-line extract.
	Source SourceConfig `mapstructure:"source"`

	// Sink selects the target database.
	Sink SinkConfig `mapstructure:"sink"`

	// Tables names the five star tables.
	Tables TablesConfig `mapstructure:"tables"`

	// Load holds configuration for the load subcommand.
	Load LoadConfig `mapstructure:"load"`

	// Init holds configuration for the init subcommand.
	Init InitConfig `mapstructure:"init"`

	// Generate holds configuration for the generate subcommand.
	Generate GenerateConfig `mapstructure:"generate"`
}

// SourceConfig describes the CSV extract.
type SourceConfig struct {
	// Path is the CSV file to read.
	Path string `mapstructure:"path"`

	// Encoding is the file's character set (utf-8, latin1, windows-1252).
	Encoding string `mapstructure:"encoding"`

	// Delimiter is the single field separator character.
	Delimiter string `mapstructure:"delimiter"`
}

// SinkConfig selects the target backend.
type SinkConfig struct {
	// Kind is one of postgres, mssql, sqlite or memory.
	Kind string `mapstructure:"kind"`

	// Connection is the backend connection string.
	Connection string `mapstructure:"connection"`

	// BatchSize is the number of rows per insert round trip.
	BatchSize int `mapstructure:"batch_size"`
}

// TablesConfig names the star tables. Names may be schema qualified.
type TablesConfig struct {
	Date        string `mapstructure:"date"`
	Invoice     string `mapstructure:"invoice"`
	Customer    string `mapstructure:"customer"`
	Product     string `mapstructure:"product"`
	Transaction string `mapstructure:"transaction"`
}

// LoadConfig holds configuration for the load.
type LoadConfig struct {
	// ConcurrentDimensions builds the four dimensions in parallel.
	ConcurrentDimensions bool `mapstructure:"concurrent_dimensions"`

	// DryRun transforms the extract into an in-memory sink only.
	DryRun bool `mapstructure:"dry_run"`
}

// InitConfig holds configuration for schema initialization.
type InitConfig struct {
	// DropExisting drops existing tables before creating them.
	DropExisting bool `mapstructure:"drop_existing"`
}

// GenerateConfig holds configuration for synthetic extract generation.
type GenerateConfig struct {
	// Rows is the number of invoice lines to write.
	Rows int `mapstructure:"rows"`

	// Seed makes output reproducible. Zero picks a random seed.
	Seed uint64 `mapstructure:"seed"`

	// Output is the CSV file to write.
	Output string `mapstructure:"output"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	names := sink.DefaultTableNames()
	return &Config{
		LogLevel: "info",
		Source: SourceConfig{
			Path:      "data/invoices.csv",
			Encoding:  "utf-8",
			Delimiter: ",",
		},
		Sink: SinkConfig{
			Kind:      "postgres",
			BatchSize: sink.DefaultBatchConfig().BatchSize,
		},
		Tables: TablesConfig{
			Date:        names.Date,
			Invoice:     names.Invoice,
			Customer:    names.Customer,
			Product:     names.Product,
			Transaction: names.Transaction,
		},
		Load: LoadConfig{
			ConcurrentDimensions: true,
		},
		Generate: GenerateConfig{
			Rows:   10000,
			Output: "data/invoices.csv",
		},
	}
}

// Load reads configuration from config files.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./pgedge-retailstar.yaml
// 3. ~/.config/pgedge-retailstar/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("pgedge-retailstar")
	v.SetConfigType("yaml")

	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "pgedge-retailstar"))
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	return cfg, nil
}

// TableNames converts the configured names for the sink layer.
func (c *Config) TableNames() sink.TableNames {
	return sink.TableNames{
		Date:        c.Tables.Date,
		Invoice:     c.Tables.Invoice,
		Customer:    c.Tables.Customer,
		Product:     c.Tables.Product,
		Transaction: c.Tables.Transaction,
	}
}

// SinkOptions converts the sink section for sink.Open.
func (c *Config) SinkOptions() sink.Config {
	batch := sink.DefaultBatchConfig()
	if c.Sink.BatchSize > 0 {
		batch.BatchSize = c.Sink.BatchSize
	}
	return sink.Config{
		Kind:  c.Sink.Kind,
		DSN:   c.Sink.Connection,
		Batch: batch,
	}
}

// SourceOptions converts the source section for the CSV reader. Validate
// must have accepted the delimiter.
func (c *Config) SourceOptions() source.Options {
	delim, _ := utf8.DecodeRuneInString(c.Source.Delimiter)
	if c.Source.Delimiter == "" {
		delim = ','
	}
	return source.Options{Encoding: c.Source.Encoding, Delimiter: delim}
}

// Validate checks settings shared by every command.
func (c *Config) Validate() error {
	t := c.Tables
	names := []string{t.Date, t.Invoice, t.Customer, t.Product, t.Transaction}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if n == "" {
			return fmt.Errorf("all five table names are required")
		}
		if seen[n] {
			return fmt.Errorf("table name %q is used twice", n)
		}
		seen[n] = true
	}
	return nil
}

// validateSink checks the sink section.
func (c *Config) validateSink() error {
	switch c.Sink.Kind {
	case "memory":
	case "postgres", "mssql", "sqlite":
		if c.Sink.Connection == "" {
			return fmt.Errorf("connection string is required for sink kind %s", c.Sink.Kind)
		}
	case "":
		return fmt.Errorf("sink kind is required")
	default:
		return fmt.Errorf("sink kind must be one of postgres, mssql, sqlite, memory")
	}
	if c.Sink.BatchSize < 0 {
		return fmt.Errorf("batch_size must be non-negative")
	}
	return nil
}

// ValidateInit checks configuration required for init command.
func (c *Config) ValidateInit() error {
	if err := c.Validate(); err != nil {
		return err
	}
	return c.validateSink()
}

// ValidateLoad checks configuration required for load command.
func (c *Config) ValidateLoad() error {
	if err := c.ValidateSource(); err != nil {
		return err
	}
	if c.Load.DryRun {
		return nil
	}
	return c.validateSink()
}

// ValidateSource checks configuration required to read the extract.
func (c *Config) ValidateSource() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Source.Path == "" {
		return fmt.Errorf("source path is required")
	}
	if utf8.RuneCountInString(c.Source.Delimiter) > 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	if _, err := source.Encoding(c.Source.Encoding); err != nil {
		return err
	}
	return nil
}

// ValidateGenerate checks configuration required for generate command.
func (c *Config) ValidateGenerate() error {
	if c.Generate.Rows < 1 {
		return fmt.Errorf("rows must be at least 1")
	}
	if c.Generate.Output == "" {
		return fmt.Errorf("output path is required")
	}
	return nil
}
