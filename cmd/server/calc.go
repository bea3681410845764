package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/leaseworks/internal/leasing"
)

type monthlyRequest struct {
	PurchasePrice decimal.Decimal  `json:"purchasePrice"`
	Margin        *decimal.Decimal `json:"margin"`
	Quantity      int              `json:"quantity"`
	LeaserID      string           `json:"leaserId"`
}

type monthlyResponse struct {
	Line           leasing.EquipmentLine `json:"line"`
	FinancedAmount decimal.Decimal       `json:"financedAmount"`
	Coefficient    decimal.Decimal       `json:"coefficient"`
}

type marginRequest struct {
	TargetMonthlyPayment decimal.Decimal `json:"targetMonthlyPayment"`
	PurchasePrice        decimal.Decimal `json:"purchasePrice"`
	LeaserID             string          `json:"leaserId"`
}

type fleetRequest struct {
	Lines               []leasing.EquipmentLine `json:"lines"`
	LeaserID            string                  `json:"leaserId"`
	AdaptMonthlyPayment bool                    `json:"adaptMonthlyPayment"`
}

type discountRequest struct {
	MonthlyPayment     decimal.Decimal  `json:"monthlyPayment"`
	Discount           leasing.Discount `json:"discount"`
	Coefficient        decimal.Decimal  `json:"coefficient"`
	TotalPurchasePrice decimal.Decimal  `json:"totalPurchasePrice"`
}

type discountResponse struct {
	leasing.DiscountResult
	MarginImpact *leasing.MarginImpact `json:"marginImpact,omitempty"`
}

func (s *server) handleLeasersList(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.Leasers(r.Context())
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

func (s *server) handleLeaserGet(w http.ResponseWriter, r *http.Request) {
	table, err := s.svc.Leaser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, table)
}

func (s *server) handleLeaserSave(w http.ResponseWriter, r *http.Request) {
	var table leasing.RateTable
	if err := decodeJSON(w, r, &table); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	saved, err := s.svc.SaveLeaser(r.Context(), table)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

func (s *server) handleCalcMonthly(w http.ResponseWriter, r *http.Request) {
	var req monthlyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := requireNonNegative(req.PurchasePrice, "purchasePrice"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	line := leasing.NewEquipmentLine()
	line.PurchasePrice = req.PurchasePrice
	if req.Margin != nil {
		line.Margin = *req.Margin
	}
	if req.Quantity > 0 {
		line.Quantity = req.Quantity
	}

	table, err := s.svc.RateTable(r.Context(), req.LeaserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	priced, coef := leasing.MonthlyPayment(line, &table)
	writeJSON(w, http.StatusOK, monthlyResponse{
		Line:           priced,
		FinancedAmount: leasing.FinancedAmount(priced.PurchasePrice, priced.Margin),
		Coefficient:    coef,
	})
}

func (s *server) handleCalcMargin(w http.ResponseWriter, r *http.Request) {
	var req marginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sol, err := s.svc.SolveMargin(r.Context(), req.LeaserID, req.TargetMonthlyPayment, req.PurchasePrice)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sol)
}

func (s *server) handleCalcFleet(w http.ResponseWriter, r *http.Request) {
	var req fleetRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	for _, l := range req.Lines {
		if l.Quantity < 1 {
			writeError(w, http.StatusBadRequest, leasing.ErrInvalidQuantity.Error())
			return
		}
	}

	table, err := s.svc.RateTable(r.Context(), req.LeaserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, leasing.CalculateGlobalMarginAdjustment(req.Lines, &table, req.AdaptMonthlyPayment))
}

func (s *server) handleCalcDiscount(w http.ResponseWriter, r *http.Request) {
	var req discountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := requireNonNegative(req.MonthlyPayment, "monthlyPayment"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	switch req.Discount.Type {
	case leasing.DiscountPercentage, leasing.DiscountAmount:
	case "":
		if req.Discount.Enabled {
			writeError(w, http.StatusBadRequest, "discount.type is required")
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "discount.type must be percentage or amount")
		return
	}

	resp := discountResponse{DiscountResult: leasing.ApplyDiscount(req.MonthlyPayment, req.Discount)}
	if req.Coefficient.IsPositive() {
		impact := leasing.DiscountMarginImpact(resp.DiscountResult, req.Coefficient, req.TotalPurchasePrice)
		resp.MarginImpact = &impact
	}
	writeJSON(w, http.StatusOK, resp)
}
