package erp

import (
	"context"

	"go.uber.org/zap"

	"github.com/needha-erp/erpdesk/internal/grid"
)

// Source supplies the rows of a department.
type Source interface {
	FetchRows(ctx context.Context, dept Department) ([]grid.Row, error)
}

// LoadRows fetches rows for dept. A failed fetch yields an empty row set and
// a warning; tables show "no rows" rather than an error state.
func LoadRows(ctx context.Context, src Source, dept Department, log *zap.Logger) []grid.Row {
	rows, err := src.FetchRows(ctx, dept)
	if err != nil {
		if log != nil {
			log.Warn("load failed, showing empty table",
				zap.String("department", dept.Name),
				zap.Error(err))
		}
		return []grid.Row{}
	}
	return rows
}

// Find returns the row whose id field equals id.
func Find(rows []grid.Row, id string) (grid.Row, bool) {
	for _, r := range rows {
		if grid.Text(r["id"]) == id {
			return r, true
		}
	}
	return nil, false
}
