package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/ui"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
)

// fetchLimit caps concurrent department fetches.
const fetchLimit = 4

func newSummaryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show row counts, weights and loss for every department",
		Long: `Fetch every department and show how many batches are open, the
weight issued and received, and the total loss recorded.

Departments are fetched in parallel. A department that cannot be fetched
is reported as unavailable; the rest are still shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			return runSummary(cmd.Context(), a, cmd.OutOrStdout(), jsonOut)
		},
	}
	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}

// deptSummary is one line of the summary.
type deptSummary struct {
	Department string  `json:"department"`
	Rows       int     `json:"rows"`
	Open       int     `json:"open"`
	Issued     float64 `json:"issuedWeight"`
	Received   float64 `json:"receivedWeight"`
	Loss       float64 `json:"loss"`
	Error      string  `json:"error,omitempty"`
}

// summarize totals a department's rows. A row is open until it has a
// received date.
func summarize(d erp.Department, rows []grid.Row) deptSummary {
	s := deptSummary{Department: d.Name, Rows: len(rows)}
	for _, r := range rows {
		if d.Stage == "" {
			if !strings.EqualFold(grid.Text(r["status"]), "approved") {
				s.Open++
			}
			s.Issued += weightOf(r["advanceMetal"])
			continue
		}
		if rd := grid.Text(r["receivedDate"]); rd == "" || rd == "-" {
			s.Open++
		}
		s.Issued += weightOf(r["issuedWeight"])
		s.Received += weightOf(r["receivedWeight"])
		s.Loss += weightOf(r[d.Stage.LossField()])
	}
	s.Issued = loss.Round4(s.Issued)
	s.Received = loss.Round4(s.Received)
	s.Loss = loss.Round4(s.Loss)
	return s
}

// fetchSummaries loads every department concurrently. Per-department
// failures are recorded in the result, not returned.
func fetchSummaries(ctx context.Context, src erp.Source, depts []erp.Department, log *zap.Logger) ([]deptSummary, error) {
	out := make([]deptSummary, len(depts))
	progress := ui.NewProgress("Departments", len(depts))

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(fetchLimit)
	for i, d := range depts {
		eg.Go(func() error {
			defer progress.Increment()
			rows, err := src.FetchRows(egCtx, d)
			if err != nil {
				log.Warn("department unavailable", zap.String("department", d.Name), zap.Error(err))
				out[i] = deptSummary{Department: d.Name, Error: err.Error()}
				return nil
			}
			out[i] = summarize(d, rows)
			return nil
		})
	}
	err := eg.Wait()
	progress.Done()
	if err != nil {
		return nil, err
	}
	return out, ctx.Err()
}

func runSummary(ctx context.Context, a *app, w io.Writer, jsonOut bool) error {
	src, closeSrc, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer closeSrc()

	sums, err := fetchSummaries(ctx, src, erp.Departments, a.log)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(sums)
	}
	printSummary(w, sums)
	return nil
}

func printSummary(w io.Writer, sums []deptSummary) {
	fmt.Fprintf(w, "%-10s %6s %6s %14s %14s %12s\n", "DEPARTMENT", "ROWS", "OPEN", "ISSUED", "RECEIVED", "LOSS")
	var total float64
	for _, s := range sums {
		if s.Error != "" {
			fmt.Fprintf(w, "%-10s %s\n", s.Department, styles.Mute("unavailable"))
			continue
		}
		received := styles.Weight(s.Received)
		lossText := styles.Loss(s.Loss)
		if s.Department == erp.Orders.Name {
			received, lossText = "-", "-"
		} else {
			total += s.Loss
		}
		fmt.Fprintf(w, "%-10s %6d %6d %14s %14s %12s\n",
			s.Department, s.Rows, s.Open, styles.Weight(s.Issued), received, lossText)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total loss: %s\n", styles.Loss(loss.Round4(total)))
}
