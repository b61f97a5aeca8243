// Package loss computes metal loss for each processing stage: the weight
// issued to a department minus the weight it returns.
package loss

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Stage is a processing department.
type Stage string

const (
	Casting   Stage = "casting"
	Filing    Stage = "filing"
	Grinding  Stage = "grinding"
	Setting   Stage = "setting"
	Polishing Stage = "polishing"
	Dull      Stage = "dull"
)

// Stages lists the stages in workflow order.
var Stages = []Stage{Casting, Filing, Grinding, Setting, Polishing, Dull}

var (
	ErrUnknownStage    = errors.New("unknown stage")
	ErrMissingDate     = errors.New("received date is required")
	ErrNonPositive     = errors.New("received weight must be greater than 0")
	ErrInvalidDate     = errors.New("received date must be YYYY-MM-DD")
	ErrUnknownPouch    = errors.New("unknown pouch")
	ErrNegativeReading = errors.New("weights cannot be negative")
	ErrNoPouchTransfer = errors.New("stage is not issued from pouches")
)

// issuedFrom maps a stage to the stage whose pouches it is issued from.
// Casting, filing and grinding batches are created from orders instead.
var issuedFrom = map[Stage]Stage{
	Setting:   Grinding,
	Polishing: Setting,
	Dull:      Polishing,
}

// Source returns the stage whose returned pouches are issued to s.
func (s Stage) Source() (Stage, error) {
	src, ok := issuedFrom[s]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrNoPouchTransfer, s)
	}
	return src, nil
}

// WeightField is the per-pouch key carrying the weight issued to this stage,
// e.g. "settingWeight".
func (s Stage) WeightField() string {
	return string(s) + "Weight"
}

// ParseStage accepts a stage name in any case.
func ParseStage(s string) (Stage, error) {
	st := Stage(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Stages {
		if st == known {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStage, s)
}

// LossField is the request/row key carrying this stage's loss, e.g. "castingLoss".
func (s Stage) LossField() string {
	return string(s) + "Loss"
}

// Title returns the display name ("Casting").
func (s Stage) Title() string {
	if s == "" {
		return ""
	}
	return strings.ToUpper(string(s[:1])) + string(s[1:])
}

// Round4 rounds to the 4 decimal places weights are recorded with.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Loss returns issued - received, rounded to 4 decimals.
func Loss(issued, received float64) float64 {
	return Round4(issued - received)
}

// CastingReceipt is what comes back from a casting batch. Dust is recorded
// but is not counted as received weight.
type CastingReceipt struct {
	Ornament float64
	Scrap    float64
	Dust     float64
}

// Received returns ornament + scrap.
func (r CastingReceipt) Received() float64 {
	return r.Ornament + r.Scrap
}

// CastingLoss returns the loss for a casting batch.
func CastingLoss(issued float64, r CastingReceipt) float64 {
	return Loss(issued, r.Received())
}

// Pouch is one bag of pieces travelling through a stage.
type Pouch struct {
	ID       string
	Name     string
	Issued   float64
	Received float64
}

// PouchLoss is the per-pouch result of a reconciliation.
type PouchLoss struct {
	PouchID  string
	Received float64
	Loss     float64
}

// Reconciliation is the result of receiving a batch of pouches.
type Reconciliation struct {
	Issued   float64
	Received float64
	Loss     float64
	Pouches  []PouchLoss
}

// Reconcile totals the pouch weights received for a stage. The stage loss is
// measured against the batch's issued weight, each pouch against its own.
func Reconcile(issued float64, pouches []Pouch) Reconciliation {
	r := Reconciliation{Issued: issued}
	for _, p := range pouches {
		r.Received += p.Received
		r.Pouches = append(r.Pouches, PouchLoss{
			PouchID:  p.ID,
			Received: p.Received,
			Loss:     Loss(p.Issued, p.Received),
		})
	}
	r.Received = Round4(r.Received)
	r.Loss = Loss(issued, r.Received)
	return r
}

// ApplyWeights sets received weights by pouch ID. Unknown IDs are an error.
func ApplyWeights(pouches []Pouch, weights map[string]float64) ([]Pouch, error) {
	out := make([]Pouch, len(pouches))
	copy(out, pouches)
	seen := make(map[string]bool, len(weights))
	for i := range out {
		if w, ok := weights[out[i].ID]; ok {
			if w < 0 {
				return nil, fmt.Errorf("%w: pouch %s", ErrNegativeReading, out[i].ID)
			}
			out[i].Received = w
			seen[out[i].ID] = true
		}
	}
	for id := range weights {
		if !seen[id] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownPouch, id)
		}
	}
	return out, nil
}

// PouchWeight is the weight of one pouch handed to the next stage.
type PouchWeight struct {
	PouchID string
	Weight  float64
}

// Transfer is the set of pouches issued to a stage.
type Transfer struct {
	Pouches []PouchWeight
	Total   float64
}

// NewTransfer builds a transfer from pouches whose Received holds the weight
// handed on.
func NewTransfer(pouches []Pouch) Transfer {
	var t Transfer
	for _, p := range pouches {
		t.Total += p.Received
		t.Pouches = append(t.Pouches, PouchWeight{PouchID: p.ID, Weight: Round4(p.Received)})
	}
	t.Total = Round4(t.Total)
	return t
}

// ValidateReceipt checks the fields every receive form requires.
func ValidateReceipt(date string, received float64) error {
	if strings.TrimSpace(date) == "" {
		return ErrMissingDate
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}
	if received <= 0 {
		return ErrNonPositive
	}
	return nil
}
