package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/ui/table"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newListCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <department>",
		Short: "Print one page of a department table",
		Long: `Print one page of a department table.

Rows are filtered by --from/--to on the department's date column, then by
--search (case-insensitive, any column), sorted, and paged.

Departments: orders, casting, filing, grinding, setting, polishing, dull

Examples:
  erpdesk list polishing
  erpdesk list casting --search pending --sort issuedWeight --desc
  erpdesk list orders --from 2024-05-01 --to 2024-05-31 --json
  erpdesk list grinding --page 2 --page-size 25`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: departmentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, a, args[0])
		},
	}

	addQueryFlags(cmd)
	cmd.Flags().Bool("json", false, "Output as JSON")
	cmd.Flags().Bool("yaml", false, "Output as YAML")
	cmd.Flags().Bool("raw", false, "Output tab-separated values without header")
	cmd.MarkFlagsMutuallyExclusive("json", "yaml", "raw")

	return cmd
}

// listQuery is the set of table intents given on the command line.
type listQuery struct {
	search   string
	sortKey  string
	desc     bool
	page     int
	pageSize int
	from     string
	to       string
}

func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("search", "s", "", "Only show rows containing this text")
	cmd.Flags().String("sort", "", "Sort by this column (default: department default)")
	cmd.Flags().Bool("desc", false, "Sort descending")
	cmd.Flags().IntP("page", "p", 1, "Page number")
	cmd.Flags().IntP("page-size", "n", 0, "Rows per page (default: table.page_size)")
	cmd.Flags().String("from", "", "Earliest date (YYYY-MM-DD)")
	cmd.Flags().String("to", "", "Latest date (YYYY-MM-DD)")
}

func queryFromFlags(cmd *cobra.Command) listQuery {
	var q listQuery
	q.search, _ = cmd.Flags().GetString("search")
	q.sortKey, _ = cmd.Flags().GetString("sort")
	q.desc, _ = cmd.Flags().GetBool("desc")
	q.page, _ = cmd.Flags().GetInt("page")
	q.pageSize, _ = cmd.Flags().GetInt("page-size")
	q.from, _ = cmd.Flags().GetString("from")
	q.to, _ = cmd.Flags().GetString("to")
	return q
}

// apply replays the intents on a controller in the order a user would:
// date range, search, sort, page size, page.
func (q listQuery) apply(d erp.Department, ctrl *grid.Controller) error {
	if q.from != "" || q.to != "" {
		if err := ctrl.SetDateRange(q.from, q.to); err != nil {
			return util.NewError("Invalid date range").
				WithMessage(fmt.Sprintf("--from %q --to %q", q.from, q.to)).
				WithSuggestion("erpdesk list " + d.Name + " --from 2024-05-01 --to 2024-05-31").
				Wrap(err)
		}
	}
	ctrl.SetSearchQuery(q.search)

	if q.sortKey != "" {
		if _, ok := d.Field(q.sortKey); !ok {
			return util.NewError(fmt.Sprintf("Unknown column '%s'", q.sortKey)).
				WithMessage(fmt.Sprintf("Columns of %s: %v", d.Name, d.Keys()))
		}
		key := grid.FieldID(q.sortKey)
		ctrl.SetSort(key)
		// SetSort toggles when the key is already active; land on the
		// requested direction.
		if v := ctrl.View(); v.SortKey == key && (v.SortDirection == grid.Descending) != q.desc {
			ctrl.SetSort(key)
		}
	} else if q.desc {
		if v := ctrl.View(); v.SortKey != "" && v.SortDirection != grid.Descending {
			ctrl.SetSort(v.SortKey)
		}
	}

	if q.pageSize != 0 {
		if err := ctrl.SetPageSize(q.pageSize); err != nil {
			return util.NewError("Invalid page size").
				WithMessage("--page-size must be at least 1").
				Wrap(err)
		}
	}
	ctrl.SetPageNumber(q.page)
	return nil
}

// loadTable fetches a department and returns a controller holding its rows.
func (a *app) loadTable(ctx context.Context, d erp.Department) (*grid.Controller, error) {
	ctrl, err := a.newController(d)
	if err != nil {
		return nil, err
	}

	src, closeSrc, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	defer closeSrc()

	spinner := ui.NewSpinner(fmt.Sprintf("Loading %s", styles.Cyan(d.Name)))
	spinner.Start()
	ticket := ctrl.BeginLoad()
	rows := erp.LoadRows(ctx, src, d, a.log)
	spinner.Stop()

	ctrl.ApplyLoad(ticket, rows)
	return ctrl, nil
}

func runList(cmd *cobra.Command, a *app, name string) error {
	d, err := lookupDepartment(name)
	if err != nil {
		return err
	}
	q := queryFromFlags(cmd)
	jsonOut, _ := cmd.Flags().GetBool("json")
	yamlOut, _ := cmd.Flags().GetBool("yaml")
	raw, _ := cmd.Flags().GetBool("raw")

	ctrl, err := a.loadTable(cmd.Context(), d)
	if err != nil {
		return err
	}
	if err := q.apply(d, ctrl); err != nil {
		return err
	}

	return table.DisplayView(columns(d), ctrl.View(), table.DisplayOptions{
		JSON: jsonOut,
		YAML: yamlOut,
		Raw:  raw,
		Out:  cmd.OutOrStdout(),
	})
}
