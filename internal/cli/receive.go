package cli

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/ui"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/ui/table"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newReceiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "receive <stage> <batch-id>",
		Short: "Record the weight returned from a stage",
		Long: `Record the weight returned from a production stage and post the loss.

Stages with pouches take one --weight per pouch. The batch's received
weight is the sum of the pouch weights, and the loss is measured against
the weight issued to the batch:

  erpdesk receive polishing POLISH/01/05/2024/12 \
      --weight a0B5g000001=10.25 --weight a0B5g000002=8.5

A batch without pouches takes --total instead.

Casting takes the ornament, scrap and dust weights. Dust is recorded but
does not count as received weight:

  erpdesk receive casting CAST/01/05/2024/03 --ornament 95.2 --scrap 3.1 --dust 0.4

Use --dry-run to see the computed loss without sending anything.`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			names := make([]string, len(loss.Stages))
			for i, s := range loss.Stages {
				names[i] = string(s)
			}
			return names, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd, a, args[0], args[1])
		},
	}

	cmd.Flags().String("date", "", "Received date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringArrayP("weight", "w", nil, "Pouch weight as <pouch-id>=<grams> (repeatable)")
	cmd.Flags().Float64("total", 0, "Received weight for a batch without pouches")
	cmd.Flags().Float64("ornament", 0, "Casting: ornament weight")
	cmd.Flags().Float64("scrap", 0, "Casting: scrap weight")
	cmd.Flags().Float64("dust", 0, "Casting: dust weight")
	cmd.Flags().Bool("dry-run", false, "Show the loss without sending it")

	return cmd
}

// parseWeights parses repeated "<pouch-id>=<grams>" flags.
func parseWeights(specs []string) (map[string]float64, error) {
	weights := make(map[string]float64, len(specs))
	for _, spec := range specs {
		id, val, ok := strings.Cut(spec, "=")
		id = strings.TrimSpace(id)
		if !ok || id == "" {
			return nil, fmt.Errorf("invalid --weight %q: want <pouch-id>=<grams>", spec)
		}
		w, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --weight %q: %w", spec, err)
		}
		if _, dup := weights[id]; dup {
			return nil, fmt.Errorf("pouch %s given twice", id)
		}
		weights[id] = w
	}
	return weights, nil
}

// reconcilePouches applies the entered weights and checks that every pouch
// has one.
func reconcilePouches(issued float64, pouches []loss.Pouch, weights map[string]float64) (loss.Reconciliation, error) {
	applied, err := applyPouchWeights(pouches, weights)
	if err != nil {
		return loss.Reconciliation{}, err
	}
	return loss.Reconcile(issued, applied), nil
}

// applyPouchWeights sets each pouch's Received from weights and requires a
// positive weight for every pouch.
func applyPouchWeights(pouches []loss.Pouch, weights map[string]float64) ([]loss.Pouch, error) {
	applied, err := loss.ApplyWeights(pouches, weights)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, p := range applied {
		if p.Received <= 0 {
			missing = append(missing, p.ID)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, util.NewError("Missing pouch weights").
			WithMessage("No weight for: " + strings.Join(missing, ", ")).
			WithSuggestion("--weight " + missing[0] + "=<grams>").
			Wrap(util.ErrMissingPouchWeight)
	}
	return applied, nil
}

func runReceive(cmd *cobra.Command, a *app, stageName, batchID string) error {
	stage, err := loss.ParseStage(stageName)
	if err != nil {
		return util.NewError(fmt.Sprintf("Unknown stage '%s'", stageName)).
			WithSuggestion("erpdesk receive polishing <batch-id> --weight <pouch-id>=<grams>").
			Wrap(err)
	}
	d, err := erp.StageDepartment(stage)
	if err != nil {
		return err
	}

	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = util.Today()
	}
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	c, err := a.client()
	if err != nil {
		return err
	}

	// The batch row carries the issued weight.
	rows, err := c.FetchRows(ctx, d)
	if err != nil {
		return a.backendError("Loading "+d.Name, err)
	}
	batch, ok := erp.Find(rows, batchID)
	if !ok {
		return util.NewError(fmt.Sprintf("Batch '%s' not found", batchID)).
			WithContext(d.Name).
			WithSuggestion(fmt.Sprintf("erpdesk list %s --search %q", d.Name, batchID))
	}
	issued := weightOf(batch["issuedWeight"])

	var submit func(context.Context) error
	if stage == loss.Casting {
		var r loss.CastingReceipt
		r.Ornament, _ = cmd.Flags().GetFloat64("ornament")
		r.Scrap, _ = cmd.Flags().GetFloat64("scrap")
		r.Dust, _ = cmd.Flags().GetFloat64("dust")
		if r.Ornament < 0 || r.Scrap < 0 || r.Dust < 0 {
			return loss.ErrNegativeReading
		}
		if err := loss.ValidateReceipt(date, r.Ornament); err != nil {
			return err
		}
		printCastingReceipt(out, batchID, issued, r)
		submit = func(ctx context.Context) error {
			return c.ReceiveCasting(ctx, batchID, date, issued, r)
		}
	} else {
		rec, err := a.stageReconciliation(cmd, c, stage, batchID, issued)
		if err != nil {
			return err
		}
		if err := loss.ValidateReceipt(date, rec.Received); err != nil {
			return err
		}
		printReconciliation(out, batchID, stage, rec)
		submit = func(ctx context.Context) error {
			return c.Receive(ctx, stage, batchID, date, rec)
		}
	}

	if dryRun {
		fmt.Fprintln(out, styles.MutedMsg("Dry run, nothing sent"))
		return nil
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Receiving %s", styles.ID(batchID)))
	spinner.Start()
	err = submit(ctx)
	if err != nil {
		spinner.Error("Receive failed")
		return a.backendError("Receiving "+batchID, err)
	}
	spinner.Success(fmt.Sprintf("Received %s on %s", batchID, date))

	// Show the batch as the backend now has it.
	rows = erp.LoadRows(ctx, c, d, a.log)
	if row, ok := erp.Find(rows, batchID); ok {
		fmt.Fprintln(out)
		table.PrintPlainTable(out, columns(d), []grid.Row{row}, "")
	}
	return nil
}

func (a *app) stageReconciliation(cmd *cobra.Command, c *erp.Client, stage loss.Stage, batchID string, issued float64) (loss.Reconciliation, error) {
	specs, _ := cmd.Flags().GetStringArray("weight")
	total, _ := cmd.Flags().GetFloat64("total")

	weights, err := parseWeights(specs)
	if err != nil {
		return loss.Reconciliation{}, err
	}

	pouches, err := c.Pouches(cmd.Context(), stage, batchID)
	if err != nil {
		return loss.Reconciliation{}, a.backendError("Loading pouches", err)
	}

	if len(pouches) == 0 {
		if len(weights) > 0 {
			return loss.Reconciliation{}, util.NewError("Batch has no pouches").
				WithMessage(batchID + " has no pouches; use --total").
				WithSuggestion(fmt.Sprintf("erpdesk receive %s %s --total <grams>", stage, batchID))
		}
		return loss.Reconciliation{
			Issued:   issued,
			Received: loss.Round4(total),
			Loss:     loss.Loss(issued, total),
		}, nil
	}
	if total != 0 {
		return loss.Reconciliation{}, util.NewError("--total cannot be used with pouches").
			WithMessage("The received weight is the sum of the pouch weights").
			WithSuggestion("--weight <pouch-id>=<grams>  # one per pouch")
	}
	return reconcilePouches(issued, pouches, weights)
}

func printReconciliation(w io.Writer, batchID string, stage loss.Stage, r loss.Reconciliation) {
	fmt.Fprintln(w, styles.SectionHeader(stage.Title()+" "+batchID))
	if len(r.Pouches) > 0 {
		fmt.Fprintf(w, "  %-20s %14s %12s\n", "POUCH", "RECEIVED", "LOSS")
		for _, p := range r.Pouches {
			fmt.Fprintf(w, "  %-20s %14s %12s\n", p.PouchID, styles.Weight(p.Received), styles.Loss(p.Loss))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "  Issued:   %s\n", styles.Weight(r.Issued))
	fmt.Fprintf(w, "  Received: %s\n", styles.Weight(r.Received))
	fmt.Fprintf(w, "  Loss:     %s\n", styles.Loss(r.Loss))
}

func printCastingReceipt(w io.Writer, batchID string, issued float64, r loss.CastingReceipt) {
	fmt.Fprintln(w, styles.SectionHeader("Casting "+batchID))
	fmt.Fprintf(w, "  Issued:   %s\n", styles.Weight(issued))
	fmt.Fprintf(w, "  Ornament: %s\n", styles.Weight(r.Ornament))
	fmt.Fprintf(w, "  Scrap:    %s\n", styles.Weight(r.Scrap))
	fmt.Fprintf(w, "  Dust:     %s %s\n", styles.Weight(r.Dust), styles.Mute("(not counted)"))
	fmt.Fprintf(w, "  Loss:     %s\n", styles.Loss(loss.CastingLoss(issued, r)))
}
