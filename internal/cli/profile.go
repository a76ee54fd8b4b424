package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-retailstar/internal/logging"
	"github.com/pgEdge/pgedge-retailstar/internal/transform"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Summarize how an extract classifies",
	Long: `Read and clean the extract without loading it, then print the
number of lines per (quantity sign, price sign) combination together with the
invoice type each combination maps to.

Example:
  pgedge-retailstar profile --source data/invoices.csv`,
	RunE: runProfile,
}

func runProfile(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateSource(); err != nil {
		return err
	}

	ctx := context.Background()
	raw, err := readSource(ctx)
	if err != nil {
		return err
	}

	lines, stats, err := transform.Clean(logging.Component("transform"), raw)
	if err != nil {
		return fmt.Errorf("failed to clean extract: %w", err)
	}

	out := cmd.OutOrStdout()
	var rows [][]string
	for _, r := range transform.Profile(lines) {
		rows = append(rows, []string{
			string(r.QuantityClass), string(r.PriceClass), string(r.Type), strconv.Itoa(r.Count),
		})
	}
	writeTable(out, []string{"QUANTITY", "PRICE", "TYPE", "LINES"}, rows)

	fmt.Fprintln(out)
	writeTable(out, []string{"LINES", "COUNT"},
		statsRows(stats.Read, stats.FilteredTest, stats.SentinelCustomer, stats.Kept))
	return nil
}
