package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui/table"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newBrowseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "browse <department>",
		Short: "Browse a department table interactively",
		Long: `Open a department table in an interactive viewer.

Keys:
  ↑/↓ j/k       move            n/p        next/previous page
  ←/→ h/l       column          g/G        first/last page
  s             sort by column  +/-        more/fewer rows per page
  space         select row      a/A        select all / clear
  /             search          enter      row details
  r             reload          y/Y        copy cell / row
  J/L/R/P       print as JSON/YAML/raw/table and exit
  o             approve selected orders (orders only)

The --search, --sort, --from and --to flags set the starting state.`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: departmentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, a, args[0])
		},
	}
	addQueryFlags(cmd)
	return cmd
}

func runBrowse(cmd *cobra.Command, a *app, name string) error {
	d, err := lookupDepartment(name)
	if err != nil {
		return err
	}
	if !table.IsInteractive() {
		return util.NewError("Not a terminal").
			WithMessage("browse needs an interactive terminal").
			WithSuggestion("erpdesk list " + d.Name + "  # Print the table instead").
			Wrap(util.ErrNotATerminal)
	}

	ctx := cmd.Context()
	ctrl, err := a.newController(d)
	if err != nil {
		return err
	}
	src, closeSrc, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer closeSrc()

	b := table.Browser{
		Title:      d.Name,
		Columns:    columns(d),
		Controller: ctrl,
		Load: func(ctx context.Context) []grid.Row {
			return erp.LoadRows(ctx, src, d, a.log)
		},
	}
	if d.Name == erp.Orders.Name {
		c, err := a.client()
		if err != nil {
			return err
		}
		b.Action = approveAction(a, c)
	}

	// Initial load goes through the same ticketed path as the reload key.
	ticket := ctrl.BeginLoad()
	ctrl.ApplyLoad(ticket, b.Load(ctx))
	if err := queryFromFlags(cmd).apply(d, ctrl); err != nil {
		return err
	}

	return table.RunBrowser(ctx, b)
}

// approveAction approves every selected order, stopping at the first
// failure.
func approveAction(a *app, c *erp.Client) *table.Action {
	return &table.Action{
		Key:   "o",
		Label: "approve",
		Run: func(ctx context.Context, rows []grid.Row) (string, error) {
			for i, row := range rows {
				id := grid.Text(row["id"])
				if err := c.Approve(ctx, id); err != nil {
					return "", fmt.Errorf("approved %d of %d, %s failed: %w", i, len(rows), id, a.backendError("Approval", err))
				}
			}
			return fmt.Sprintf("Approved %d order(s)", len(rows)), nil
		},
	}
}
