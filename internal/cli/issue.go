package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/loss"
	"github.com/needha-erp/erpdesk/internal/ui"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/ui/table"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newIssueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "issue <stage> <from-batch>",
		Short: "Issue the pouches of a finished batch to the next stage",
		Long: `Create a stage batch from the pouches another stage returned.

Setting is issued from grinding, polishing from setting and dull from
polishing. Give one --weight per pouch of the source batch; the new
batch takes the source batch's date and number:

  erpdesk issue polishing SETTING/01/05/2024/12 \
      --weight a0B5g000001=10.25 --weight a0B5g000002=8.5

creates POLISH/01/05/2024/12 as Pending.

Casting, filing and grinding are created from orders and cannot be
issued this way. Use --dry-run to check the weights without sending.`,
		Args: cobra.ExactArgs(2),
		ValidArgsFunction: func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			if len(args) > 0 {
				return nil, cobra.ShellCompDirectiveNoFileComp
			}
			return []string{string(loss.Setting), string(loss.Polishing), string(loss.Dull)}, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(cmd, a, args[0], args[1])
		},
	}

	cmd.Flags().String("date", "", "Issued date, YYYY-MM-DD (default: today)")
	cmd.Flags().StringArrayP("weight", "w", nil, "Pouch weight as <pouch-id>=<grams> (repeatable)")
	cmd.Flags().Bool("dry-run", false, "Show the transfer without sending it")

	return cmd
}

func runIssue(cmd *cobra.Command, a *app, stageName, fromBatch string) error {
	stage, err := loss.ParseStage(stageName)
	if err != nil {
		return util.NewError(fmt.Sprintf("Unknown stage '%s'", stageName)).
			WithSuggestion("erpdesk issue polishing <setting-batch> --weight <pouch-id>=<grams>").
			Wrap(err)
	}
	source, err := stage.Source()
	if err != nil {
		return util.NewError(fmt.Sprintf("%s is not issued from pouches", stage.Title())).
			WithMessage("Only setting, polishing and dull batches are created from another stage's pouches").
			Wrap(err)
	}
	newID, err := erp.IssuedBatchID(stage, fromBatch)
	if err != nil {
		return err
	}

	date, _ := cmd.Flags().GetString("date")
	if date == "" {
		date = util.Today()
	}
	specs, _ := cmd.Flags().GetStringArray("weight")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	weights, err := parseWeights(specs)
	if err != nil {
		return err
	}

	c, err := a.client()
	if err != nil {
		return err
	}
	returned, err := c.Pouches(ctx, source, fromBatch)
	if err != nil {
		return a.backendError("Loading pouches", err)
	}
	if len(returned) == 0 {
		return util.NewError(fmt.Sprintf("No pouches in '%s'", fromBatch)).
			WithContext(string(source)).
			WithSuggestion(fmt.Sprintf("erpdesk list %s --search %q", source, fromBatch))
	}

	// What the source stage returned is what is available to issue.
	available := make([]loss.Pouch, len(returned))
	for i, p := range returned {
		available[i] = loss.Pouch{ID: p.ID, Name: p.Name, Issued: p.Received}
	}
	applied, err := applyPouchWeights(available, weights)
	if err != nil {
		return err
	}
	transfer := loss.NewTransfer(applied)
	if err := loss.ValidateReceipt(date, transfer.Total); err != nil {
		return err
	}
	printTransfer(out, source, stage, newID, applied, transfer)

	if dryRun {
		fmt.Fprintln(out, styles.MutedMsg("Dry run, nothing sent"))
		return nil
	}

	spinner := ui.NewSpinner(fmt.Sprintf("Issuing %s", styles.ID(newID)))
	spinner.Start()
	id, err := c.Issue(ctx, stage, fromBatch, date, transfer)
	if err != nil {
		spinner.Error("Issue failed")
		return a.backendError("Issuing "+newID, err)
	}
	spinner.Success(fmt.Sprintf("Issued %s on %s", id, date))

	d, err := erp.StageDepartment(stage)
	if err != nil {
		return err
	}
	rows := erp.LoadRows(ctx, c, d, a.log)
	if row, ok := erp.Find(rows, id); ok {
		fmt.Fprintln(out)
		table.PrintPlainTable(out, columns(d), []grid.Row{row}, "")
	}
	return nil
}

func printTransfer(w io.Writer, source, stage loss.Stage, newID string, pouches []loss.Pouch, t loss.Transfer) {
	fmt.Fprintln(w, styles.SectionHeader(stage.Title()+" "+newID))
	fmt.Fprintf(w, "  %-20s %14s %14s\n", "POUCH", "FROM "+string(source), "ISSUED")
	for _, p := range pouches {
		fmt.Fprintf(w, "  %-20s %14s %14s\n", p.ID, styles.Weight(p.Issued), styles.Weight(p.Received))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  Total:    %s\n", styles.Weight(t.Total))
}
