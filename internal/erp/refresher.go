package erp

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/needha-erp/erpdesk/internal/grid"
)

// DefaultRefreshInterval is used when a refresher is given no interval.
const DefaultRefreshInterval = 30 * time.Second

// Result is one completed load. When the fetch failed, Err is set and Rows
// is empty: a table may show the empty set, but a change feed should skip
// the result.
type Result struct {
	Ticket grid.Ticket
	Rows   []grid.Row
	Err    error
	At     time.Time
}

// Refresher polls a Source at a fixed interval and delivers each load on a
// channel. Every load carries a ticket so a consumer that also triggers
// manual reloads can discard results that arrive out of order.
type Refresher struct {
	src      Source
	dept     Department
	interval time.Duration
	log      *zap.Logger

	wg sync.WaitGroup
}

// NewRefresher creates a refresher. It does nothing until Start.
func NewRefresher(src Source, dept Department, interval time.Duration, log *zap.Logger) *Refresher {
	if log == nil {
		log = zap.NewNop()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &Refresher{src: src, dept: dept, interval: interval, log: log}
}

// Start loads once immediately, then on every tick, until ctx is done. The
// returned channel is closed when the polling goroutine exits.
func (r *Refresher) Start(ctx context.Context) <-chan Result {
	out := make(chan Result)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(out)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			ticket := grid.NewTicket()
			rows, err := r.src.FetchRows(ctx, r.dept)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				r.log.Warn("refresh failed",
					zap.String("department", r.dept.Name),
					zap.String("ticket", ticket.String()),
					zap.Error(err))
				rows = []grid.Row{}
			} else {
				r.log.Debug("refreshed",
					zap.String("department", r.dept.Name),
					zap.String("ticket", ticket.String()),
					zap.Int("rows", len(rows)))
			}

			select {
			case out <- Result{Ticket: ticket, Rows: rows, Err: err, At: time.Now()}:
			case <-ctx.Done():
				return
			}

			select {
			case <-ticker.C:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Wait blocks until the polling goroutine has exited.
func (r *Refresher) Wait() {
	r.wg.Wait()
}
