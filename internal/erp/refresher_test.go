package erp

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/needha-erp/erpdesk/internal/grid"
)

type countingSource struct{ n atomic.Int64 }

func (c *countingSource) FetchRows(context.Context, Department) ([]grid.Row, error) {
	n := c.n.Add(1)
	return []grid.Row{{"id": n}}, nil
}

func TestRefresher_DeliversOrderedLoadsAndStops(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	src := &countingSource{}
	r := NewRefresher(src, Orders, 5*time.Millisecond, nil)
	results := r.Start(ctx)

	first := <-results
	second := <-results
	assert.Equal(t, int64(1), first.Rows[0]["id"])
	assert.Equal(t, int64(2), second.Rows[0]["id"])
	assert.True(t, first.Ticket.String() < second.Ticket.String())

	ctrl, err := grid.New(Orders.Options(0))
	require.NoError(t, err)
	assert.True(t, ctrl.ApplyLoad(second.Ticket, second.Rows))
	assert.False(t, ctrl.ApplyLoad(first.Ticket, first.Rows), "older load must be discarded")

	cancel()
	for range results {
	}
	r.Wait()
}

func TestRefresher_FailedLoadIsMarked(t *testing.T) {
	defer goleak.VerifyNone(t,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewRefresher(failingSource{err: ErrRejected}, Orders, time.Hour, nil)
	res := <-r.Start(ctx)
	assert.Empty(t, res.Rows)
	assert.NotNil(t, res.Rows)
	assert.ErrorIs(t, res.Err, ErrRejected)
	assert.False(t, res.Ticket.IsZero())

	cancel()
	r.Wait()
}
