package grid

import (
	"github.com/oklog/ulid/v2"

	"github.com/needha-erp/erpdesk/internal/util"
)

// Controller holds a State and applies intents to it. It is meant to be
// owned by one presentation component and is not safe for concurrent use.
type Controller struct {
	state   State
	applied Ticket
}

// New returns a Controller with no rows.
func New(opts Options) (*Controller, error) {
	s, err := NewState(opts)
	if err != nil {
		return nil, err
	}
	return &Controller{state: s}, nil
}

// State returns the current state snapshot.
func (c *Controller) State() State { return c.state }

// SetSourceRows replaces the row set (see State.WithSourceRows).
func (c *Controller) SetSourceRows(rows []Row) {
	c.state = c.state.WithSourceRows(rows)
}

// SetSearchQuery updates the search filter.
func (c *Controller) SetSearchQuery(q string) {
	c.state = c.state.WithSearchQuery(q)
}

// SetSort sorts by key, toggling direction when key is already active.
func (c *Controller) SetSort(key FieldID) {
	c.state = c.state.WithSort(key)
}

// ToggleRowSelected flips the selection of a filtered position.
func (c *Controller) ToggleRowSelected(i int) {
	c.state = c.state.WithRowToggled(i)
}

// SetAllSelected selects or clears every filtered position.
func (c *Controller) SetAllSelected(selected bool) {
	c.state = c.state.WithAllSelected(selected)
}

// SetPageNumber moves to a page, clamped into range.
func (c *Controller) SetPageNumber(p int) {
	c.state = c.state.WithPageNumber(p)
}

// SetPageSize changes the page size. Sizes below 1 return ErrInvalidArgument
// and leave the controller unchanged.
func (c *Controller) SetPageSize(size int) error {
	s, err := c.state.WithPageSize(size)
	if err != nil {
		return err
	}
	c.state = s
	return nil
}

// SetDateRange sets the inclusive YYYY-MM-DD date bounds.
func (c *Controller) SetDateRange(from, to string) error {
	s, err := c.state.WithDateRange(from, to)
	if err != nil {
		return err
	}
	c.state = s
	return nil
}

// ResetDateRange clears the date bounds.
func (c *Controller) ResetDateRange() {
	c.state = c.state.WithoutDateRange()
}

// View returns the derived view of the current state.
func (c *Controller) View() View {
	return c.state.View()
}

// ═══════════════════════════════════════════════════════════════════════════
// Load sequencing
// ═══════════════════════════════════════════════════════════════════════════

// Ticket identifies one upstream load. Tickets come from the process-wide
// ULID generator, so a later ticket always compares greater.
type Ticket ulid.ULID

// NewTicket returns a ticket greater than every ticket issued before it.
func NewTicket() Ticket {
	return Ticket(util.NextULID())
}

func (t Ticket) String() string { return ulid.ULID(t).String() }

// IsZero reports whether t was never issued.
func (t Ticket) IsZero() bool { return t == Ticket{} }

// BeginLoad issues the ticket a host attaches to an upstream fetch.
func (c *Controller) BeginLoad() Ticket {
	return NewTicket()
}

// ApplyLoad installs rows fetched under ticket t, unless a load begun later
// has already been applied. It reports whether the rows were installed.
func (c *Controller) ApplyLoad(t Ticket, rows []Row) bool {
	if !c.applied.IsZero() && ulid.ULID(t).Compare(ulid.ULID(c.applied)) <= 0 {
		return false
	}
	c.applied = t
	c.SetSourceRows(rows)
	return true
}
