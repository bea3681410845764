package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/leaseworks/internal/leasing"
	"github.com/Simplici0/leaseworks/internal/quoting"
)

type worksheetView struct {
	ID                   string                         `json:"id"`
	LeaserID             string                         `json:"leaserId"`
	EditingID            string                         `json:"editingId,omitempty"`
	TargetMonthlyPayment decimal.Decimal                `json:"targetMonthlyPayment"`
	Draft                leasing.DraftPreview           `json:"draft"`
	Lines                []leasing.EquipmentLine        `json:"lines"`
	Totals               leasing.GlobalMarginAdjustment `json:"totals"`
	Added                *bool                          `json:"added,omitempty"`
}

type createWorksheetRequest struct {
	LeaserID string `json:"leaserId"`
}

type draftRequest struct {
	Title                string           `json:"title"`
	PurchasePrice        decimal.Decimal  `json:"purchasePrice"`
	Margin               *decimal.Decimal `json:"margin"`
	Quantity             int              `json:"quantity"`
	TargetMonthlyPayment *decimal.Decimal `json:"targetMonthlyPayment"`
}

type quantityRequest struct {
	Quantity int `json:"quantity"`
}

func (s *server) worksheetView(ctx context.Context, ws quoting.StoredWorksheet) (worksheetView, error) {
	table, err := s.svc.RateTable(ctx, ws.LeaserID)
	if err != nil {
		return worksheetView{}, err
	}
	return worksheetView{
		ID:                   ws.ID,
		LeaserID:             ws.LeaserID,
		EditingID:            ws.Sheet.EditingID,
		TargetMonthlyPayment: ws.Sheet.TargetMonthlyPayment,
		Draft:                ws.Sheet.Preview(&table),
		Lines:                ws.Sheet.List(),
		Totals:               ws.Sheet.Totals(&table, false),
	}, nil
}

func (s *server) renderWorksheet(w http.ResponseWriter, r *http.Request, status int, ws quoting.StoredWorksheet, added *bool) {
	view, err := s.worksheetView(r.Context(), ws)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	view.Added = added
	writeJSON(w, status, view)
}

func (s *server) updateWorksheet(w http.ResponseWriter, r *http.Request, fn func(ws *leasing.Worksheet, table *leasing.RateTable) error) {
	ws, err := s.svc.UpdateWorksheet(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.renderWorksheet(w, r, http.StatusOK, ws, nil)
}

func (s *server) handleWorksheetCreate(w http.ResponseWriter, r *http.Request) {
	var req createWorksheetRequest
	if err := decodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ws, err := s.svc.NewWorksheet(r.Context(), req.LeaserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.renderWorksheet(w, r, http.StatusCreated, ws, nil)
}

func (s *server) handleWorksheetGet(w http.ResponseWriter, r *http.Request) {
	ws, err := s.svc.Worksheet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.renderWorksheet(w, r, http.StatusOK, ws, nil)
}

func (s *server) handleWorksheetDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteWorksheet(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleWorksheetDraft(w http.ResponseWriter, r *http.Request) {
	var req draftRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := requireNonNegative(req.PurchasePrice, "purchasePrice"); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.TargetMonthlyPayment != nil {
		if err := requireNonNegative(*req.TargetMonthlyPayment, "targetMonthlyPayment"); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	// Absent margin and target keep the current values; an explicit 0 target clears it.
	s.updateWorksheet(w, r, func(ws *leasing.Worksheet, _ *leasing.RateTable) error {
		margin := ws.Draft.Margin
		if req.Margin != nil {
			margin = *req.Margin
		}
		ws.SetDraft(req.Title, req.PurchasePrice, margin, req.Quantity)
		if req.TargetMonthlyPayment != nil {
			ws.SetTargetMonthlyPayment(*req.TargetMonthlyPayment)
		}
		return nil
	})
}

func (s *server) handleWorksheetAdd(w http.ResponseWriter, r *http.Request) {
	var added bool
	ws, err := s.svc.UpdateWorksheet(r.Context(), chi.URLParam(r, "id"), func(ws *leasing.Worksheet, table *leasing.RateTable) error {
		added = ws.AddToList(table)
		return nil
	})
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	s.renderWorksheet(w, r, http.StatusOK, ws, &added)
}

func (s *server) handleWorksheetEdit(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")
	s.updateWorksheet(w, r, func(ws *leasing.Worksheet, _ *leasing.RateTable) error {
		return ws.StartEditing(lineID)
	})
}

func (s *server) handleWorksheetCancel(w http.ResponseWriter, r *http.Request) {
	s.updateWorksheet(w, r, func(ws *leasing.Worksheet, _ *leasing.RateTable) error {
		ws.CancelEditing()
		return nil
	})
}

func (s *server) handleWorksheetRemove(w http.ResponseWriter, r *http.Request) {
	lineID := chi.URLParam(r, "lineID")
	s.updateWorksheet(w, r, func(ws *leasing.Worksheet, _ *leasing.RateTable) error {
		if !ws.RemoveFromList(lineID) {
			return leasing.ErrLineNotFound
		}
		return nil
	})
}

func (s *server) handleWorksheetQuantity(w http.ResponseWriter, r *http.Request) {
	var req quantityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	lineID := chi.URLParam(r, "lineID")
	s.updateWorksheet(w, r, func(ws *leasing.Worksheet, _ *leasing.RateTable) error {
		return ws.UpdateQuantity(lineID, req.Quantity)
	})
}

func (s *server) handleWorksheetTotals(w http.ResponseWriter, r *http.Request) {
	adapt := false
	if raw := r.URL.Query().Get("adapt"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "adapt must be a boolean")
			return
		}
		adapt = v
	}

	ws, err := s.svc.Worksheet(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	table, err := s.svc.RateTable(r.Context(), ws.LeaserID)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws.Sheet.Totals(&table, adapt))
}
