//-------------------------------------------------------------------------
//
// pgEdge Retail Star Loader
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package pipeline orchestrates a full reload of the star schema: clean the
// extract, build the dimensions and the fact, then replace all five tables
// inside one unit of work.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pgEdge/pgedge-retailstar/internal/dimension"
	"github.com/pgEdge/pgedge-retailstar/internal/fact"
	"github.com/pgEdge/pgedge-retailstar/internal/model"
	"github.com/pgEdge/pgedge-retailstar/internal/sink"
	"github.com/pgEdge/pgedge-retailstar/internal/transform"
)

// Stage names used in wrapped errors.
const (
	StageNormalize  = "normalize"
	StageDimensions = "dimensions"
	StageFact       = "fact"
	StageBegin      = "begin"
	StageCommit     = "commit"
)

// StageError reports the pipeline stage that failed.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Options configures a pipeline.
type Options struct {
	// Tables names the five target tables.
	Tables sink.TableNames

	// ConcurrentDimensions builds the four dimensions in parallel.
	ConcurrentDimensions bool

	Logger zerolog.Logger

	// Clock supplies the load timestamp. Defaults to time.Now.
	Clock func() time.Time
}

// Star is the fully transformed extract, ready to be written.
type Star struct {
	Lines []model.Line
	Stats transform.Stats
	Dims  fact.Dimensions
	Facts []model.FactRow
}

// TableResult is the number of rows written to one table.
type TableResult struct {
	Table string
	Rows  int64
}

// Result summarizes a committed load.
type Result struct {
	RunID    uuid.UUID
	LoadedAt time.Time
	Stats    transform.Stats
	Tables   []TableResult
	Duration time.Duration
}

// Rows returns the rows written to table, or zero if it was not written.
func (r *Result) Rows(table string) int64 {
	for _, t := range r.Tables {
		if t.Table == table {
			return t.Rows
		}
	}
	return 0
}

// Pipeline loads an extract into a sink.
type Pipeline struct {
	sink sink.Sink
	opts Options

	dates     *dimension.DateBuilder
	invoices  *dimension.InvoiceBuilder
	customers *dimension.CustomerBuilder
	products  *dimension.ProductBuilder
	facts     *fact.Builder
}

// New creates a pipeline writing to s.
func New(s sink.Sink, opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &Pipeline{
		sink:      s,
		opts:      opts,
		dates:     dimension.NewDateBuilder(opts.Tables.Date),
		invoices:  dimension.NewInvoiceBuilder(opts.Tables.Invoice),
		customers: dimension.NewCustomerBuilder(opts.Tables.Customer),
		products:  dimension.NewProductBuilder(opts.Tables.Product),
		facts:     fact.NewBuilder(opts.Tables.Transaction, opts.Logger),
	}
}

// Transform cleans raw and derives every table without touching the sink.
func (p *Pipeline) Transform(ctx context.Context, raw []model.RawInvoiceLine) (*Star, error) {
	lines, stats, err := transform.Clean(p.opts.Logger, raw)
	if err != nil {
		return nil, stageErr(StageNormalize, err)
	}

	dims, err := p.buildDimensions(ctx, lines)
	if err != nil {
		return nil, stageErr(StageDimensions, err)
	}

	facts, err := p.facts.Build(lines, dims)
	if err != nil {
		return nil, stageErr(StageFact, err)
	}

	return &Star{Lines: lines, Stats: stats, Dims: dims, Facts: facts}, nil
}

func (p *Pipeline) buildDimensions(ctx context.Context, lines []model.Line) (fact.Dimensions, error) {
	var dims fact.Dimensions

	if !p.opts.ConcurrentDimensions {
		dims.Dates = p.dates.Build(lines)
		dims.Invoices = p.invoices.Build(lines)
		dims.Customers = p.customers.Build(lines)
		dims.Products = p.products.Build(lines)
		return dims, ctx.Err()
	}

	// Each goroutine owns one field of dims.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		dims.Dates = p.dates.Build(lines)
		return gctx.Err()
	})
	g.Go(func() error {
		dims.Invoices = p.invoices.Build(lines)
		return gctx.Err()
	})
	g.Go(func() error {
		dims.Customers = p.customers.Build(lines)
		return gctx.Err()
	})
	g.Go(func() error {
		dims.Products = p.products.Build(lines)
		return gctx.Err()
	})
	if err := g.Wait(); err != nil {
		return fact.Dimensions{}, err
	}
	return dims, nil
}

// Run transforms raw and replaces the contents of all five tables in one
// transaction. On any failure the transaction is rolled back and the sink
// keeps its previous contents.
func (p *Pipeline) Run(ctx context.Context, raw []model.RawInvoiceLine) (*Result, error) {
	start := p.opts.Clock()
	runID := uuid.New()
	log := p.opts.Logger.With().Str("run_id", runID.String()).Logger()

	star, err := p.Transform(ctx, raw)
	if err != nil {
		log.Error().Err(err).Msg("Transformation failed")
		return nil, err
	}

	log.Info().
		Int("read", star.Stats.Read).
		Int("kept", star.Stats.Kept).
		Int("filtered_test", star.Stats.FilteredTest).
		Int("sentinel_customer", star.Stats.SentinelCustomer).
		Int("facts", len(star.Facts)).
		Msg("Extract transformed")

	stamp := p.opts.Clock()
	tables, err := p.write(ctx, star, stamp)
	if err != nil {
		log.Error().Err(err).Msg("Load rolled back")
		return nil, err
	}

	res := &Result{
		RunID:    runID,
		LoadedAt: stamp,
		Stats:    star.Stats,
		Tables:   tables,
		Duration: p.opts.Clock().Sub(start),
	}
	log.Info().
		Dur("duration", res.Duration).
		Int64("facts", res.Rows(p.opts.Tables.Transaction)).
		Msg("Load committed")
	return res, nil
}

// batch is one table's replacement content.
type batch struct {
	spec sink.TableSpec
	rows [][]any
}

func (p *Pipeline) batches(star *Star, stamp time.Time) []batch {
	t := p.opts.Tables
	return []batch{
		{sink.DateTable(t.Date), sink.DateRecords(star.Dims.Dates, stamp)},
		{sink.InvoiceTable(t.Invoice), sink.InvoiceRecords(star.Dims.Invoices, stamp)},
		{sink.CustomerTable(t.Customer), sink.CustomerRecords(star.Dims.Customers, stamp)},
		{sink.ProductTable(t.Product), sink.ProductRecords(star.Dims.Products, stamp)},
		{sink.TransactionTable(t.Transaction), sink.TransactionRecords(star.Facts, stamp)},
	}
}

func (p *Pipeline) write(ctx context.Context, star *Star, stamp time.Time) (results []TableResult, err error) {
	tx, err := p.sink.Begin(ctx)
	if err != nil {
		return nil, stageErr(StageBegin, err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
			p.opts.Logger.Error().Err(rbErr).Msg("Rollback failed")
		}
	}()

	for _, b := range p.batches(star, stamp) {
		stage := "sink " + b.spec.Name
		if err := tx.Truncate(ctx, b.spec.Name); err != nil {
			return nil, stageErr(stage, err)
		}
		n, err := tx.BulkInsert(ctx, b.spec.Name, b.spec.ColumnNames(), b.rows)
		if err != nil {
			return nil, stageErr(stage, err)
		}
		if n != int64(len(b.rows)) {
			return nil, stageErr(stage, fmt.Errorf("wrote %d of %d rows", n, len(b.rows)))
		}
		p.opts.Logger.Debug().Str("table", b.spec.Name).Int64("rows", n).Msg("Table replaced")
		results = append(results, TableResult{Table: b.spec.Name, Rows: n})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, stageErr(StageCommit, err)
	}
	return results, nil
}
