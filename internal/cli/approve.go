package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newApproveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "approve [order-id...]",
		Short: "Approve customer orders",
		Long: `Approve one or more customer orders.

Orders are given by ID, or selected with --search: every order whose
row matches the search text is approved. Use --dry-run to see which
orders a search selects.

Examples:
  erpdesk approve ORD-0042
  erpdesk approve --search "Shree Jewellers" --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApprove(cmd, a, args)
		},
	}
	cmd.Flags().StringP("search", "s", "", "Approve every order matching this text")
	cmd.Flags().Bool("dry-run", false, "List the orders without approving them")
	return cmd
}

func runApprove(cmd *cobra.Command, a *app, ids []string) error {
	search, _ := cmd.Flags().GetString("search")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(ids) == 0 && search == "" {
		return util.MissingArgumentError("order-id", "erpdesk approve ORD-0042")
	}

	c, err := a.client()
	if err != nil {
		return err
	}

	if len(ids) == 0 {
		// Select every matching order through the orders table.
		ctrl, err := a.newController(erp.Orders)
		if err != nil {
			return err
		}
		ticket := ctrl.BeginLoad()
		ctrl.ApplyLoad(ticket, erp.LoadRows(ctx, c, erp.Orders, a.log))
		ctrl.SetSearchQuery(search)
		ctrl.SetAllSelected(true)
		for _, row := range ctrl.View().SelectedRows {
			ids = append(ids, grid.Text(row["id"]))
		}
		if len(ids) == 0 {
			return util.NewError("No orders match").
				WithContext(fmt.Sprintf("--search %q", search)).
				WithSuggestion("erpdesk list orders  # See all orders").
				Wrap(util.ErrNothingSelected)
		}
	}

	if dryRun {
		for _, id := range ids {
			fmt.Fprintf(out, "would approve %s\n", styles.ID(id))
		}
		return nil
	}

	for i, id := range ids {
		if err := c.Approve(ctx, id); err != nil {
			if i > 0 {
				fmt.Fprintln(out, styles.WarningMsg(fmt.Sprintf("Approved %d of %d orders before the failure", i, len(ids))))
			}
			return a.backendError("Approving "+id, err)
		}
		fmt.Fprintln(out, styles.SuccessMsg("Approved "+styles.ID(id)))
	}
	return nil
}
