package leasing

import (
	"errors"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrLineNotFound is returned when a line id is not on the worksheet.
	ErrLineNotFound = errors.New("equipment line not found")

	// ErrInvalidQuantity is returned for quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// Worksheet is the working state of an offer being built: one draft line plus
// the committed lines, keyed by id and kept in insertion order.
//
// A worksheet is either idle (EditingID empty, the draft is a new line) or
// editing the committed line EditingID. The committed line stays in place
// while it is being edited.
type Worksheet struct {
	Draft                EquipmentLine            `json:"draft"`
	EditingID            string                   `json:"editingId,omitempty"`
	TargetMonthlyPayment decimal.Decimal          `json:"targetMonthlyPayment"`
	Order                []string                 `json:"order"`
	Lines                map[string]EquipmentLine `json:"lines"`
}

// NewWorksheet returns an empty worksheet with a fresh draft.
func NewWorksheet() *Worksheet {
	return &Worksheet{
		Draft: NewEquipmentLine(),
		Order: []string{},
		Lines: map[string]EquipmentLine{},
	}
}

// DraftPreview is the derived state of the draft line.
type DraftPreview struct {
	Line             EquipmentLine    `json:"line"`
	FinancedAmount   decimal.Decimal  `json:"financedAmount"`
	Coefficient      decimal.Decimal  `json:"coefficient"`
	CalculatedMargin CalculatedMargin `json:"calculatedMargin"`
	Editing          bool             `json:"editing"`
}

// SetDraft overwrites the editable fields of the draft.
func (w *Worksheet) SetDraft(title string, purchasePrice, margin decimal.Decimal, quantity int) {
	w.Draft.Title = title
	w.Draft.PurchasePrice = purchasePrice
	w.Draft.Margin = margin
	if quantity >= 1 {
		w.Draft.Quantity = quantity
	}
}

// SetTargetMonthlyPayment sets the payment the draft should reach. Zero clears it.
func (w *Worksheet) SetTargetMonthlyPayment(v decimal.Decimal) {
	w.TargetMonthlyPayment = v
}

// Preview recomputes the draft against table.
func (w *Worksheet) Preview(table *RateTable) DraftPreview {
	line, coef := MonthlyPayment(w.Draft, table)
	return DraftPreview{
		Line:             line,
		FinancedAmount:   FinancedAmount(line.PurchasePrice, line.Margin),
		Coefficient:      coef,
		CalculatedMargin: MarginFromMonthlyPayment(w.TargetMonthlyPayment, line.PurchasePrice, table),
		Editing:          w.EditingID != "",
	}
}

// AddToList commits the draft. When a target monthly payment is set, it and
// the margin solved from it take precedence over the draft's own margin.
// It reports false, leaving the worksheet untouched, when the draft has no
// title or a non-positive purchase price.
func (w *Worksheet) AddToList(table *RateTable) bool {
	if strings.TrimSpace(w.Draft.Title) == "" || !w.Draft.PurchasePrice.IsPositive() {
		return false
	}

	line, _ := MonthlyPayment(w.Draft, table)
	if w.TargetMonthlyPayment.IsPositive() {
		cm := MarginFromMonthlyPayment(w.TargetMonthlyPayment, line.PurchasePrice, table)
		line.MonthlyPayment = w.TargetMonthlyPayment
		line.Margin = cm.Percentage.Round(2)
	}
	if line.Quantity < 1 {
		line.Quantity = 1
	}
	if w.Lines == nil {
		w.Lines = map[string]EquipmentLine{}
	}

	if _, ok := w.Lines[w.EditingID]; ok && w.EditingID != "" {
		line.ID = w.EditingID
	} else {
		if _, taken := w.Lines[line.ID]; taken || line.ID == "" {
			line.ID = NewEquipmentLine().ID
		}
		w.Order = append(w.Order, line.ID)
	}
	w.Lines[line.ID] = line

	w.reset()
	return true
}

// StartEditing loads the committed line id into the draft and seeds the
// target payment with its stored monthly payment.
func (w *Worksheet) StartEditing(id string) error {
	line, ok := w.Lines[id]
	if !ok {
		return ErrLineNotFound
	}
	w.Draft = line
	w.EditingID = id
	w.TargetMonthlyPayment = decimal.Zero
	if line.MonthlyPayment.IsPositive() {
		w.TargetMonthlyPayment = line.MonthlyPayment
	}
	return nil
}

// CancelEditing discards the draft and returns to the idle state.
func (w *Worksheet) CancelEditing() {
	w.reset()
}

// RemoveFromList deletes the committed line id. Removing the line being
// edited also cancels the edit.
func (w *Worksheet) RemoveFromList(id string) bool {
	if _, ok := w.Lines[id]; !ok {
		return false
	}
	delete(w.Lines, id)
	w.Order = slices.DeleteFunc(w.Order, func(v string) bool { return v == id })
	if w.EditingID == id {
		w.reset()
	}
	return true
}

// UpdateQuantity sets the quantity of the committed line id.
func (w *Worksheet) UpdateQuantity(id string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	line, ok := w.Lines[id]
	if !ok {
		return ErrLineNotFound
	}
	line.Quantity = quantity
	w.Lines[id] = line
	return nil
}

// List returns the committed lines in insertion order.
func (w *Worksheet) List() []EquipmentLine {
	out := make([]EquipmentLine, 0, len(w.Order))
	for _, id := range w.Order {
		if l, ok := w.Lines[id]; ok {
			out = append(out, l)
		}
	}
	return out
}

// Totals aggregates the committed lines.
func (w *Worksheet) Totals(table *RateTable, adapt bool) GlobalMarginAdjustment {
	return CalculateGlobalMarginAdjustment(w.List(), table, adapt)
}

func (w *Worksheet) reset() {
	w.Draft = NewEquipmentLine()
	w.EditingID = ""
	w.TargetMonthlyPayment = decimal.Zero
}
