package leasing

import "github.com/shopspring/decimal"

// CalculateGlobalMarginAdjustment aggregates lines into a fleet-level monthly
// total under table.
//
// Without adaptation the total is the sum of each line's stored monthly
// payment and the margin is the sum of the per-line margins. With adaptation
// the total is recomputed from the aggregate financed amount through the
// coefficient of the aggregate bracket, and the margin is back-solved from it.
func CalculateGlobalMarginAdjustment(lines []EquipmentLine, table *RateTable, adapt bool) GlobalMarginAdjustment {
	if len(lines) == 0 {
		return GlobalMarginAdjustment{AdaptMonthlyPayment: adapt}
	}

	var totalBase, normalMargin, totalFinanced, currentMonthly decimal.Decimal
	for _, l := range lines {
		q := l.qty()
		base := l.PurchasePrice.Mul(q)
		totalBase = totalBase.Add(base)
		normalMargin = normalMargin.Add(base.Mul(l.Margin).Div(hundred))
		totalFinanced = totalFinanced.Add(FinancedAmount(l.PurchasePrice, l.Margin).Mul(q))
		currentMonthly = currentMonthly.Add(l.MonthlyPayment.Mul(q))
	}

	coef := FindCoefficient(totalFinanced, table)
	theoretical := totalFinanced.Mul(coef).Div(hundred)

	out := GlobalMarginAdjustment{
		CurrentCoef:         coef,
		NewCoef:             coef,
		AdaptMonthlyPayment: adapt,
	}

	adjusted := normalMargin
	out.NewMonthly = currentMonthly
	if adapt {
		out.NewMonthly = theoretical
		if coef.IsPositive() {
			required := theoretical.Mul(hundred).Div(coef)
			adjusted = required.Sub(totalBase)
			out.MarginDifference = adjusted.Sub(normalMargin)
		}
	}

	out.Amount = adjusted
	if totalBase.IsPositive() {
		out.Percentage = adjusted.Div(totalBase).Mul(hundred).Round(2)
	}
	return out
}
