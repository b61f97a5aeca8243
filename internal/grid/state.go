package grid

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// State is an immutable snapshot of the controller state. Every With*
// method returns a new State and leaves the receiver untouched.
type State struct {
	source    []Row
	query     string
	sortKey   FieldID
	sortDir   Direction
	selected  []int // sorted ascending, positions in the sorted sequence
	page      int
	pageSize  int
	dateField FieldID
	dateFrom  string
	dateTo    string
}

// NewState returns an empty State configured by opts.
func NewState(opts Options) (State, error) {
	size := opts.PageSize
	if size == 0 {
		size = DefaultPageSize
	}
	if size < 0 {
		return State{}, fmt.Errorf("%w: page size must be at least 1, got %d", ErrInvalidArgument, size)
	}
	s := State{
		sortKey:   opts.SortKey,
		page:      1,
		pageSize:  size,
		dateField: opts.DateField,
	}
	if opts.SortDesc {
		s.sortDir = Descending
	}
	return s, nil
}

// WithSourceRows replaces the row set wholesale. Each row map is copied, so
// later changes to the caller's rows do not reach the state. Selection is
// cleared and the page resets to 1; search, sort and date range persist
// across reloads.
func (s State) WithSourceRows(rows []Row) State {
	s.source = make([]Row, len(rows))
	for i, r := range rows {
		s.source[i] = maps.Clone(r)
	}
	s.selected = nil
	s.page = 1
	return s
}

// WithSearchQuery sets the free-text filter. The page resets to 1 and the
// selection is cleared, since positions refer to the filtered sequence.
func (s State) WithSearchQuery(q string) State {
	s.query = q
	s.selected = nil
	s.page = 1
	return s
}

// WithSort sorts by key. Repeating the current key flips the direction;
// a new key starts ascending. The page is kept (clamped) and the selection is
// cleared because the rows under each position change.
func (s State) WithSort(key FieldID) State {
	if key == s.sortKey && key != "" {
		if s.sortDir == Ascending {
			s.sortDir = Descending
		} else {
			s.sortDir = Ascending
		}
	} else {
		s.sortKey = key
		s.sortDir = Ascending
	}
	s.selected = nil
	return s.clampPage()
}

// WithRowToggled flips selection of position i. Out-of-range positions are
// ignored, since a stale index after a reload must not break the view.
func (s State) WithRowToggled(i int) State {
	if i < 0 || i >= s.filteredLen() {
		return s
	}
	sel := slices.Clone(s.selected)
	if pos, found := slices.BinarySearch(sel, i); found {
		sel = slices.Delete(sel, pos, pos+1)
	} else {
		sel = slices.Insert(sel, pos, i)
	}
	s.selected = sel
	return s
}

// WithAllSelected selects every filtered position, or clears the selection.
func (s State) WithAllSelected(selected bool) State {
	if !selected {
		s.selected = nil
		return s
	}
	n := s.filteredLen()
	sel := make([]int, n)
	for i := range sel {
		sel[i] = i
	}
	s.selected = sel
	return s
}

// WithPageNumber moves to page p, clamped to [1, PageCount].
func (s State) WithPageNumber(p int) State {
	s.page = p
	return s.clampPage()
}

// WithPageSize changes the rows per page and resets to page 1. A size below 1
// fails with ErrInvalidArgument and the receiver is returned unchanged.
func (s State) WithPageSize(size int) (State, error) {
	if size < 1 {
		return s, fmt.Errorf("%w: page size must be at least 1, got %d", ErrInvalidArgument, size)
	}
	s.pageSize = size
	s.page = 1
	return s, nil
}

// WithDateRange limits rows to those whose date field falls within
// [from, to] (YYYY-MM-DD, inclusive, either bound may be empty). It needs a
// date field in Options; malformed bounds fail and leave the state unchanged.
func (s State) WithDateRange(from, to string) (State, error) {
	if s.dateField == "" {
		return s, fmt.Errorf("%w: no date field configured", ErrInvalidArgument)
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	for _, bound := range []string{from, to} {
		if bound == "" {
			continue
		}
		if _, err := time.Parse(time.DateOnly, bound); err != nil {
			return s, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidArgument, bound)
		}
	}
	s.dateFrom, s.dateTo = from, to
	s.selected = nil
	s.page = 1
	return s, nil
}

// WithoutDateRange clears both date bounds.
func (s State) WithoutDateRange() State {
	if s.dateFrom == "" && s.dateTo == "" {
		return s
	}
	s.dateFrom, s.dateTo = "", ""
	s.selected = nil
	s.page = 1
	return s
}

// SearchQuery returns the active search text.
func (s State) SearchQuery() string { return s.query }

// Sort returns the active sort key and direction.
func (s State) Sort() (FieldID, Direction) { return s.sortKey, s.sortDir }

// PageSize returns the rows per page.
func (s State) PageSize() int { return s.pageSize }

// Len returns the number of source rows.
func (s State) Len() int { return len(s.source) }

func (s State) clampPage() State {
	n := pageCount(s.filteredLen(), s.pageSize)
	if s.page < 1 {
		s.page = 1
	}
	if s.page > n {
		s.page = n
	}
	return s
}

func pageCount(rows, size int) int {
	n := (rows + size - 1) / size
	if n < 1 {
		return 1
	}
	return n
}
