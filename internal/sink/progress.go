package sink

import (
	"github.com/rs/zerolog"
)

// BatchConfig configures batched inserts.
type BatchConfig struct {
	// BatchSize is the number of rows per insert round trip.
	BatchSize int

	// ProgressInterval is how often to log progress (in rows).
	ProgressInterval int64
}

// DefaultBatchConfig returns default batch insert configuration.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		BatchSize:        1000,
		ProgressInterval: 100000,
	}
}

// ProgressReporter tracks and reports row progress for one table or file.
type ProgressReporter struct {
	log              zerolog.Logger
	tableName        string
	message          string
	totalRows        int64
	currentRow       int64
	progressInterval int64
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(log zerolog.Logger, tableName string, totalRows int64, interval int64) *ProgressReporter {
	if interval <= 0 {
		interval = DefaultBatchConfig().ProgressInterval
	}
	return &ProgressReporter{
		log:              log,
		tableName:        tableName,
		message:          "Inserting rows",
		totalRows:        totalRows,
		progressInterval: interval,
	}
}

// WithMessage replaces the progress log message.
func (p *ProgressReporter) WithMessage(msg string) *ProgressReporter {
	p.message = msg
	return p
}

// Update records inserted rows and logs when a progress interval is crossed.
func (p *ProgressReporter) Update(rowsInserted int64) {
	oldRow := p.currentRow
	p.currentRow += rowsInserted

	if p.currentRow/p.progressInterval > oldRow/p.progressInterval {
		pct := float64(p.currentRow) / float64(p.totalRows) * 100
		p.log.Info().
			Str("table", p.tableName).
			Int64("rows", p.currentRow).
			Int64("total", p.totalRows).
			Float64("percent", pct).
			Msg(p.message)
	}
}

// Rows returns the rows recorded so far.
func (p *ProgressReporter) Rows() int64 {
	return p.currentRow
}

// Done logs completion.
func (p *ProgressReporter) Done() {
	p.log.Debug().
		Str("table", p.tableName).
		Int64("rows", p.currentRow).
		Msg("Table loaded")
}

// Batches splits rows into consecutive slices of at most size rows.
func Batches(rows [][]any, size int) [][][]any {
	if size <= 0 {
		size = DefaultBatchConfig().BatchSize
	}
	var out [][][]any
	for start := 0; start < len(rows); start += size {
		end := min(start+size, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
