package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/model"
	"github.com/pgEdge/pgedge-retailstar/internal/pipeline"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/internal/sink/memory"
	"github.com/pgEdge/pgedge-retailstar/internal/source"
)

var (
	loadEncoding   string
	loadDelimiter  string
	loadBatchSize  int
	loadDryRun     bool
	loadSequential bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Reload the star schema from an extract",
	Long: `Read the invoice-line extract, clean it, derive the four dimensions
and the transaction fact, then replace the contents of all five tables in a
single transaction.

With --dry-run the load runs against an in-memory sink and only the summary
is printed.

Example:
  pgedge-retailstar load --source data/invoices.csv --connection "postgres://..."`,
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadEncoding, "encoding", "",
		"source character set (utf-8, latin1, windows-1252)")
	loadCmd.Flags().StringVar(&loadDelimiter, "delimiter", "",
		"source field delimiter")
	loadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0,
		"rows per insert round trip")
	loadCmd.Flags().BoolVar(&loadDryRun, "dry-run", false,
		"transform into memory without touching the target database")
	loadCmd.Flags().BoolVar(&loadSequential, "sequential", false,
		"build the dimensions one after another")
}

func runLoad(cmd *cobra.Command, args []string) error {
	// Apply flag overrides
	if loadEncoding != "" {
		cfg.Source.Encoding = loadEncoding
	}
	if loadDelimiter != "" {
		cfg.Source.Delimiter = loadDelimiter
	}
	if loadBatchSize > 0 {
		cfg.Sink.BatchSize = loadBatchSize
	}
	if loadDryRun {
		cfg.Load.DryRun = true
	}
	if loadSequential {
		cfg.Load.ConcurrentDimensions = false
	}

	if err := cfg.ValidateLoad(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logging.Info().Msg("Received shutdown signal, rolling back...")
			cancel()
		case <-ctx.Done():
		}
	}()

	raw, err := readSource(ctx)
	if err != nil {
		return err
	}

	s, err := openLoadSink(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	logging.Info().
		Str("source", cfg.Source.Path).
		Str("sink", sinkLabel()).
		Int("lines", len(raw)).
		Bool("concurrent_dimensions", cfg.Load.ConcurrentDimensions).
		Msg("Starting load")

	p := pipeline.New(s, pipeline.Options{
		Tables:               cfg.TableNames(),
		ConcurrentDimensions: cfg.Load.ConcurrentDimensions,
		Logger:               logging.Component("pipeline"),
	})
	res, err := p.Run(ctx, raw)
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	printLoadSummary(cmd, res)
	return nil
}

// readSource reads the configured extract.
func readSource(ctx context.Context) ([]model.RawInvoiceLine, error) {
	r, err := source.NewReader(cfg.SourceOptions(), logging.Component("source"))
	if err != nil {
		return nil, err
	}
	return r.ReadFile(ctx, cfg.Source.Path)
}

// openLoadSink opens the configured sink. A dry run swaps in the memory
// sink. Memory sinks start empty in every process, so the star schema is
// created on them before the load.
func openLoadSink(ctx context.Context) (sink.Sink, error) {
	opts := cfg.SinkOptions()
	if cfg.Load.DryRun {
		opts.Kind = memory.Kind
	}

	s, err := sink.Open(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if opts.Kind != memory.Kind {
		return s, nil
	}

	if err := s.EnsureSchema(ctx, sink.StarTables(cfg.TableNames()), false); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return s, nil
}

func sinkLabel() string {
	if cfg.Load.DryRun {
		return memory.Kind + " (dry run)"
	}
	return cfg.Sink.Kind
}

func printLoadSummary(cmd *cobra.Command, res *pipeline.Result) {
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Run %s loaded at %s in %s\n\n",
		res.RunID, res.LoadedAt.UTC().Format("2006-01-02 15:04:05"), res.Duration.Round(time.Millisecond))

	rows := make([][]string, 0, len(res.Tables))
	for _, t := range res.Tables {
		rows = append(rows, []string{t.Table, strconv.FormatInt(t.Rows, 10)})
	}
	writeTable(out, []string{"TABLE", "ROWS"}, rows)

	fmt.Fprintln(out)
	writeTable(out, []string{"LINES", "COUNT"}, statsRows(res.Stats.Read, res.Stats.FilteredTest,
		res.Stats.SentinelCustomer, res.Stats.Kept))
}

func statsRows(read, filtered, sentinel, kept int) [][]string {
	return [][]string{
		{"read", strconv.Itoa(read)},
		{"test codes dropped", strconv.Itoa(filtered)},
		{"unknown customer", strconv.Itoa(sentinel)},
		{"kept", strconv.Itoa(kept)},
	}
}
