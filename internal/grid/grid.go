// Package grid implements the tabular data controller that sits behind every
// department table: a row set supplied by the host, plus search, sort,
// selection and pagination intents that derive the rows to display.
//
// State transitions are pure functions on an immutable State value. The
// derived view (filtered, sorted, paginated rows) is never stored; it is
// recomputed by State.View from the current state, so it cannot drift out of
// sync with the search query or sort key. Controller is a thin holder for
// hosts that prefer mutating calls.
package grid

import (
	"errors"
	"fmt"
)

// DefaultPageSize is used when Options.PageSize is zero.
const DefaultPageSize = 10

// ErrInvalidArgument is returned for inputs that cannot be normalized, such
// as a non-positive page size.
var ErrInvalidArgument = errors.New("invalid argument")

// Row is one record of a tabular dataset, keyed by field name.
type Row map[string]any

// FieldID names a row field (a sort column or date column).
type FieldID string

// Direction is the sort direction.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "desc"
	}
	return "asc"
}

// ParseDirection accepts "asc"/"ascending" and "desc"/"descending".
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	}
	return Ascending, fmt.Errorf("%w: unknown sort direction %q", ErrInvalidArgument, s)
}

// Options configures a new State. The zero value is valid: no default sort,
// DefaultPageSize rows per page, no date filtering.
type Options struct {
	// PageSize is the number of rows per page (0 = DefaultPageSize).
	PageSize int
	// SortKey is the initial sort column; empty keeps source order.
	SortKey FieldID
	// SortDesc starts the initial sort in descending order.
	SortDesc bool
	// DateField is the column used by the date-range filter.
	DateField FieldID
}

// View is the derived, presentation-ready projection of a State.
type View struct {
	VisibleRows     []Row
	SelectedIndices []int // positions in the filtered+sorted sequence
	SelectedRows    []Row
	PageNumber      int
	PageCount       int
	PageSize        int
	TotalFiltered   int
	TotalSource     int
	SearchQuery     string
	SortKey         FieldID
	SortDirection   Direction
	DateFrom        string
	DateTo          string
}

// Offset returns the position in the sorted sequence of the first visible row.
func (v View) Offset() int {
	return (v.PageNumber - 1) * v.PageSize
}

// IsSelected reports whether the sorted-sequence position i is selected.
func (v View) IsSelected(i int) bool {
	for _, s := range v.SelectedIndices {
		if s == i {
			return true
		}
	}
	return false
}
