package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
)

// mapSource serves fixed rows per department; departments listed in fail
// return an error.
type mapSource struct {
	rows map[string][]grid.Row
	fail map[string]bool
}

func (s mapSource) FetchRows(_ context.Context, d erp.Department) ([]grid.Row, error) {
	if s.fail[d.Name] {
		return nil, errors.New("connection reset")
	}
	return s.rows[d.Name], nil
}

func castingRows() []grid.Row {
	return []grid.Row{
		{"id": "CAST/1", "issuedWeight": 100.0, "receivedWeight": 98.3, "receivedDate": "2024-05-02", "castingLoss": 1.7},
		{"id": "CAST/2", "issuedWeight": 50.25, "receivedWeight": 0.0, "receivedDate": "-", "castingLoss": 0.0},
		{"id": "CAST/3", "issuedWeight": 20.0, "receivedWeight": 19.9, "receivedDate": "2024-05-03", "castingLoss": 0.1},
	}
}

func TestSummarize_Stage(t *testing.T) {
	casting, err := erp.Lookup("casting")
	require.NoError(t, err)

	s := summarize(casting, castingRows())
	assert.Equal(t, deptSummary{
		Department: "casting",
		Rows:       3,
		Open:       1,
		Issued:     170.25,
		Received:   118.2,
		Loss:       1.8,
	}, s)
}

func TestSummarize_Orders(t *testing.T) {
	rows := []grid.Row{
		{"id": "ORD-1", "status": "Open", "advanceMetal": 12.5},
		{"id": "ORD-2", "status": "APPROVED", "advanceMetal": 4.0},
		{"id": "ORD-3", "status": "Open", "advanceMetal": "n/a"},
	}
	s := summarize(erp.Orders, rows)
	assert.Equal(t, 3, s.Rows)
	assert.Equal(t, 2, s.Open)
	assert.Equal(t, 16.5, s.Issued)
	assert.Zero(t, s.Loss)
}

func TestFetchSummaries_DepartmentFailureIsReported(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	casting, _ := erp.Lookup("casting")
	filing, _ := erp.Lookup("filing")

	src := mapSource{
		rows: map[string][]grid.Row{"casting": castingRows(), "orders": orderRows()},
		fail: map[string]bool{"filing": true},
	}
	sums, err := fetchSummaries(context.Background(), src, []erp.Department{erp.Orders, casting, filing}, zap.New(core))
	require.NoError(t, err)
	require.Len(t, sums, 3)

	// Results keep the department order.
	assert.Equal(t, "orders", sums[0].Department)
	assert.Equal(t, 3, sums[0].Rows)
	assert.Equal(t, 1.8, sums[1].Loss)
	assert.Equal(t, "filing", sums[2].Department)
	assert.Equal(t, "connection reset", sums[2].Error)

	require.Equal(t, 1, logs.FilterMessage("department unavailable").Len())
	assert.Equal(t, "filing", logs.All()[0].ContextMap()["department"])
}

func TestFetchSummaries_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := fetchSummaries(ctx, mapSource{}, []erp.Department{erp.Orders}, zap.NewNop())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPrintSummary(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	var buf bytes.Buffer
	printSummary(&buf, []deptSummary{
		{Department: "orders", Rows: 3, Open: 2, Issued: 16.5},
		{Department: "casting", Rows: 3, Open: 1, Issued: 170.25, Received: 118.2, Loss: 1.8},
		{Department: "filing", Error: "connection reset"},
	})
	out := buf.String()
	assert.Contains(t, out, "filing     unavailable")
	assert.Contains(t, out, "Total loss: 1.8000g")
	assert.Contains(t, out, "170.2500g")
}

func TestSummaryCommand_JSON(t *testing.T) {
	b := newFakeBackend(t)
	b.lists["/api/polishing"] = polishingRecords()

	out, err := runCLI(t, b, t.TempDir(), "summary", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, `"department": "polishing"`)
	assert.Contains(t, out, `"receivedWeight": 12.3`)
	// Every other department answers 404 and is reported, not fatal.
	assert.Contains(t, out, `"error": "backend returned status 404: not found"`)
}
