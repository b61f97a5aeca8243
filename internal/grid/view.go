package grid

import (
	"slices"
	"strings"
	"time"
)

// View derives the presentation view. It has no side effects; calling it
// repeatedly on the same State yields equal results.
func (s State) View() View {
	sorted := s.Rows()
	page := s.page
	n := pageCount(len(sorted), s.pageSize)
	if page > n {
		page = n
	}
	if page < 1 {
		page = 1
	}

	start := (page - 1) * s.pageSize
	end := min(start+s.pageSize, len(sorted))

	v := View{
		VisibleRows:     sorted[start:end:end],
		SelectedIndices: slices.Clone(s.selected),
		PageNumber:      page,
		PageCount:       n,
		PageSize:        s.pageSize,
		TotalFiltered:   len(sorted),
		TotalSource:     len(s.source),
		SearchQuery:     s.query,
		SortKey:         s.sortKey,
		SortDirection:   s.sortDir,
		DateFrom:        s.dateFrom,
		DateTo:          s.dateTo,
	}
	for _, i := range s.selected {
		if i < len(sorted) {
			v.SelectedRows = append(v.SelectedRows, sorted[i])
		}
	}
	return v
}

// Rows returns the full filtered and sorted sequence (every page).
func (s State) Rows() []Row {
	return s.sorted(s.filtered())
}

// filtered applies the date range and then the search query. With neither
// set it returns the source rows unchanged.
func (s State) filtered() []Row {
	rows := s.source
	if s.dateField != "" && (s.dateFrom != "" || s.dateTo != "") {
		kept := make([]Row, 0, len(rows))
		for _, r := range rows {
			if s.inDateRange(r) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	if strings.TrimSpace(s.query) == "" {
		return rows
	}
	q := fold(s.query)
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		if matches(r, q) {
			out = append(out, r)
		}
	}
	return out
}

func (s State) filteredLen() int {
	return len(s.filtered())
}

// inDateRange compares the YYYY-MM-DD prefix of the date field against the
// bounds. Rows without a parseable date are kept.
func (s State) inDateRange(r Row) bool {
	d := Text(r[string(s.dateField)])
	if len(d) < len(time.DateOnly) {
		return true
	}
	d = d[:len(time.DateOnly)]
	if _, err := time.Parse(time.DateOnly, d); err != nil {
		return true
	}
	if s.dateFrom != "" && d < s.dateFrom {
		return false
	}
	if s.dateTo != "" && d > s.dateTo {
		return false
	}
	return true
}

func (s State) sorted(rows []Row) []Row {
	if s.sortKey == "" {
		return rows
	}
	key := string(s.sortKey)
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b Row) int {
		c := Compare(a[key], b[key])
		if s.sortDir == Descending {
			return -c
		}
		return c
	})
	return out
}
