package leasing

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultMargin is the margin percentage of a fresh draft.
var DefaultMargin = decimal.NewFromInt(20)

// EquipmentLine is a single piece of leased equipment on an offer.
type EquipmentLine struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	PurchasePrice  decimal.Decimal `json:"purchasePrice"`
	Quantity       int             `json:"quantity"`
	Margin         decimal.Decimal `json:"margin"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
}

// NewEquipmentLine returns a draft line with a fresh id and default margin and quantity.
func NewEquipmentLine() EquipmentLine {
	return EquipmentLine{
		ID:       uuid.NewString(),
		Quantity: 1,
		Margin:   DefaultMargin,
	}
}

// qty returns the line quantity as a decimal.
func (l EquipmentLine) qty() decimal.Decimal {
	return decimal.NewFromInt(int64(l.Quantity))
}

// CalculatedMargin is the margin required to reach a target monthly payment.
type CalculatedMargin struct {
	Percentage decimal.Decimal `json:"percentage"`
	Amount     decimal.Decimal `json:"amount"`
}

// GlobalMarginAdjustment summarises a list of equipment lines.
type GlobalMarginAdjustment struct {
	Percentage          decimal.Decimal `json:"percentage"`
	Amount              decimal.Decimal `json:"amount"`
	NewMonthly          decimal.Decimal `json:"newMonthly"`
	CurrentCoef         decimal.Decimal `json:"currentCoef"`
	NewCoef             decimal.Decimal `json:"newCoef"`
	AdaptMonthlyPayment bool            `json:"adaptMonthlyPayment"`
	MarginDifference    decimal.Decimal `json:"marginDifference"`
}
