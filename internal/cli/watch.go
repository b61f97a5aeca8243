package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
	"github.com/needha-erp/erpdesk/internal/ui/styles"
	"github.com/needha-erp/erpdesk/internal/ui/table"
	"github.com/needha-erp/erpdesk/internal/util"
)

func newWatchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <department>",
		Short: "Reload a department table and print what changed",
		Long: `Reload a department table at a fixed interval and print the rows that
were added, removed or changed since the previous load. A changed row
shows as one removed and one added line.

Stop with Ctrl+C.

Examples:
  erpdesk watch polishing
  erpdesk watch orders --search open --interval 1m`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: departmentArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, a, args[0])
		},
	}
	cmd.Flags().Duration("interval", 0, "Time between reloads (default: watch.interval_seconds)")
	cmd.Flags().StringP("search", "s", "", "Only watch rows containing this text")
	return cmd
}

func runWatch(cmd *cobra.Command, a *app, name string) error {
	d, err := lookupDepartment(name)
	if err != nil {
		return err
	}
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		interval = a.cfg.WatchInterval()
	}
	search, _ := cmd.Flags().GetString("search")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	src, closeSrc, err := a.source(ctx)
	if err != nil {
		return err
	}
	defer closeSrc()

	ctrl, err := a.newController(d)
	if err != nil {
		return err
	}
	ctrl.SetSearchQuery(search)

	fmt.Fprintln(cmd.ErrOrStderr(), styles.MutedMsg(fmt.Sprintf("Watching %s every %s (Ctrl+C to stop)", d.Name, interval)))
	return watchTable(ctx, cmd.OutOrStdout(), d, ctrl, erp.NewRefresher(src, d, interval, a.log))
}

// watchTable prints the first load's size and then every change, until ctx
// is done.
func watchTable(ctx context.Context, w io.Writer, d erp.Department, ctrl *grid.Controller, r *erp.Refresher) error {
	cols := columns(d)
	var (
		prev       []grid.Row
		lastChange time.Time
		loaded     bool
	)

	for res := range r.Start(ctx) {
		// A failed poll says nothing about the rows; keep the last good load.
		if res.Err != nil {
			continue
		}
		if !ctrl.ApplyLoad(res.Ticket, res.Rows) {
			continue
		}
		cur := ctrl.State().Rows()
		stamp := res.At.Format(time.TimeOnly)

		if !loaded {
			fmt.Fprintf(w, "%s %s: %d rows\n", styles.Mute(stamp), d.Name, len(cur))
			prev, lastChange, loaded = cur, res.At, true
			continue
		}

		lines := table.DiffRows(cols, prev, cur)
		if added, removed := table.CountChanges(lines); added+removed > 0 {
			fmt.Fprintf(w, "%s %s: %s %s\n", styles.Mute(stamp), d.Name, table.ChangeSummary(lines),
				styles.Mute("(previous change "+util.RelativeTimeShort(lastChange)+")"))
			fmt.Fprint(w, table.FormatChanges(lines))
			lastChange = res.At
		}
		prev = cur
	}
	r.Wait()
	return nil
}
