package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Simplici0/leaseworks/internal/cache"
	"github.com/Simplici0/leaseworks/internal/db"
	"github.com/Simplici0/leaseworks/internal/leasing"
	"github.com/Simplici0/leaseworks/internal/migrations"
	"github.com/Simplici0/leaseworks/internal/quoting"
	"github.com/Simplici0/leaseworks/internal/seed"
	"github.com/Simplici0/leaseworks/internal/store"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	database, err := db.Open(filepath.Join(t.TempDir(), "server-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, migrations.Up(database))

	st := store.New(database)
	_, err = seed.Run(context.Background(), st, seed.Config{})
	require.NoError(t, err)
	require.NoError(t, st.SaveLeaser(context.Background(), leasing.RateTable{
		ID:   "partner",
		Name: "Partner",
		Ranges: []leasing.RateBracket{
			{Min: dec("0"), Max: dec("999.99"), Coefficient: dec("4")},
			{Min: dec("1000"), Max: dec("1999.99"), Coefficient: dec("3.5")},
			{Min: dec("2000"), Max: dec("100000"), Coefficient: dec("3")},
		},
	}))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := &server{
		svc: quoting.New(st, cache.NewMemory(), logger, time.Minute),
		log: logger,
	}
	return srv.routes()
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestHealthz(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
}

func TestCalcMonthly(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/calc/monthly", map[string]any{
		"purchasePrice": 1000,
		"margin":        20,
		"leaserId":      "partner",
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[monthlyResponse](t, w)
	assert.True(t, resp.Line.MonthlyPayment.Equal(dec("42")), "monthly %s", resp.Line.MonthlyPayment)
	assert.True(t, resp.Coefficient.Equal(dec("3.5")))
	assert.True(t, resp.FinancedAmount.Equal(dec("1200")))
}

func TestCalcMonthly_DefaultMarginAndNegativePrice(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/calc/monthly", map[string]any{"purchasePrice": "1000"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[monthlyResponse](t, w)
	assert.True(t, resp.Line.Margin.Equal(leasing.DefaultMargin))
	// 1200 in the first default bracket at 3.53.
	assert.True(t, resp.Line.MonthlyPayment.Equal(dec("42.36")), "monthly %s", resp.Line.MonthlyPayment)

	w = do(t, h, http.MethodPost, "/api/calc/monthly", map[string]any{"purchasePrice": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalcMargin(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/calc/margin", map[string]any{
		"targetMonthlyPayment": 42,
		"purchasePrice":        1000,
		"leaserId":             "partner",
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[quoting.MarginSolution](t, w)
	assert.True(t, resp.Percentage.Equal(dec("20")), "percentage %s", resp.Percentage)
	assert.True(t, resp.Agrees)

	w = do(t, h, http.MethodPost, "/api/calc/margin", map[string]any{"targetMonthlyPayment": 0, "purchasePrice": 1000})
	require.Equal(t, http.StatusOK, w.Code)
	zero := decode[quoting.MarginSolution](t, w)
	assert.True(t, zero.Percentage.IsZero())
}

func TestCalcFleet(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/calc/fleet", map[string]any{
		"leaserId": "partner",
		"lines": []map[string]any{
			{"id": "a", "title": "Laptop", "purchasePrice": 1000, "quantity": 2, "margin": 20, "monthlyPayment": 42},
			{"id": "b", "title": "Écran", "purchasePrice": 200, "quantity": 1, "margin": 10, "monthlyPayment": 8.8},
		},
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[leasing.GlobalMarginAdjustment](t, w)
	assert.True(t, resp.NewMonthly.Equal(dec("92.8")), "newMonthly %s", resp.NewMonthly)
	assert.True(t, resp.MarginDifference.IsZero())

	w = do(t, h, http.MethodPost, "/api/calc/fleet", map[string]any{
		"lines": []map[string]any{{"id": "a", "title": "x", "purchasePrice": 1, "quantity": 0}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCalcDiscount(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/calc/discount", map[string]any{
		"monthlyPayment":     100,
		"discount":           map[string]any{"enabled": true, "type": "percentage", "value": 150},
		"coefficient":        3.5,
		"totalPurchasePrice": 1000,
	})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[discountResponse](t, w)
	assert.True(t, resp.DiscountAmount.Equal(dec("100")))
	assert.True(t, resp.MonthlyPaymentAfterDiscount.IsZero())
	require.NotNil(t, resp.MarginImpact)
	assert.True(t, resp.MarginImpact.Negative)

	w = do(t, h, http.MethodPost, "/api/calc/discount", map[string]any{
		"monthlyPayment": 100,
		"discount":       map[string]any{"enabled": true, "type": "free", "value": 1},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestLeasers(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodGet, "/api/leasers", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]leasing.RateTable](t, w), 2)

	w = do(t, h, http.MethodGet, "/api/leasers/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodPost, "/api/leasers", map[string]any{
		"name":   "Overlap",
		"ranges": []map[string]any{{"min": 0, "max": 100, "coefficient": 3}, {"min": 50, "max": 200, "coefficient": 3}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/api/leasers", map[string]any{
		"id":     "lixxbail",
		"name":   "Lixxbail",
		"ranges": []map[string]any{{"min": 0, "max": 100000, "coefficient": "3.05"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/leasers/lixxbail", nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[leasing.RateTable](t, w)
	require.Len(t, got.Ranges, 1)
	assert.True(t, got.Ranges[0].Coefficient.Equal(dec("3.05")))
}

func TestWorksheetFlow(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/worksheets", map[string]any{"leaserId": "partner"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ws := decode[worksheetView](t, w)
	base := "/api/worksheets/" + ws.ID

	w = do(t, h, http.MethodPut, base+"/draft", map[string]any{"title": "Laptop", "purchasePrice": 1000, "margin": 20})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ws = decode[worksheetView](t, w)
	assert.True(t, ws.Draft.Line.MonthlyPayment.Equal(dec("42")))

	w = do(t, h, http.MethodPost, base+"/lines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ws = decode[worksheetView](t, w)
	require.NotNil(t, ws.Added)
	assert.True(t, *ws.Added)
	require.Len(t, ws.Lines, 1)
	lineID := ws.Lines[0].ID

	// An empty draft is ignored.
	w = do(t, h, http.MethodPost, base+"/lines", nil)
	ws = decode[worksheetView](t, w)
	assert.False(t, *ws.Added)
	assert.Len(t, ws.Lines, 1)

	w = do(t, h, http.MethodPost, base+"/lines/"+lineID+"/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ws = decode[worksheetView](t, w)
	assert.Equal(t, lineID, ws.EditingID)
	assert.Equal(t, "Laptop", ws.Draft.Line.Title)
	assert.True(t, ws.TargetMonthlyPayment.Equal(dec("42")))

	w = do(t, h, http.MethodPost, base+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ws = decode[worksheetView](t, w)
	assert.Empty(t, ws.EditingID)
	require.Len(t, ws.Lines, 1)
	assert.Equal(t, lineID, ws.Lines[0].ID)

	w = do(t, h, http.MethodPatch, base+"/lines/"+lineID, map[string]any{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	ws = decode[worksheetView](t, w)
	assert.Equal(t, 3, ws.Lines[0].Quantity)
	assert.True(t, ws.Totals.NewMonthly.Equal(dec("126")))

	w = do(t, h, http.MethodPatch, base+"/lines/"+lineID, map[string]any{"quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, base+"/totals?adapt=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	totals := decode[leasing.GlobalMarginAdjustment](t, w)
	// 3600 financed falls in the 3% bracket.
	assert.True(t, totals.NewMonthly.Equal(dec("108")), "newMonthly %s", totals.NewMonthly)
	assert.True(t, totals.AdaptMonthlyPayment)

	w = do(t, h, http.MethodGet, base+"/totals?adapt=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodDelete, base+"/lines/"+lineID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[worksheetView](t, w).Lines)

	w = do(t, h, http.MethodDelete, base+"/lines/"+lineID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, h, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestWorksheetDraft_KeepsTargetWhenOmitted(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/worksheets", map[string]any{"leaserId": "partner"})
	require.Equal(t, http.StatusCreated, w.Code)
	base := "/api/worksheets/" + decode[worksheetView](t, w).ID

	w = do(t, h, http.MethodPut, base+"/draft", map[string]any{"title": "Laptop", "purchasePrice": 1000, "margin": 20})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodPost, base+"/lines", nil)
	require.Equal(t, http.StatusOK, w.Code)
	lineID := decode[worksheetView](t, w).Lines[0].ID

	w = do(t, h, http.MethodPost, base+"/lines/"+lineID+"/edit", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, h, http.MethodPut, base+"/draft", map[string]any{"title": "Laptop pro", "purchasePrice": 1000})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	ws := decode[worksheetView](t, w)
	assert.True(t, ws.TargetMonthlyPayment.Equal(dec("42")), "target %s", ws.TargetMonthlyPayment)
	assert.True(t, ws.Draft.CalculatedMargin.Percentage.Equal(dec("20")))

	w = do(t, h, http.MethodPut, base+"/draft", map[string]any{"title": "Laptop pro", "purchasePrice": 1000, "targetMonthlyPayment": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[worksheetView](t, w).TargetMonthlyPayment.IsZero())

	w = do(t, h, http.MethodPut, base+"/draft", map[string]any{"title": "x", "purchasePrice": 1, "targetMonthlyPayment": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOffers(t *testing.T) {
	h := newTestServer(t)

	w := do(t, h, http.MethodPost, "/api/offers", map[string]any{
		"title":      "Parc ACME",
		"clientName": "ACME",
		"leaserId":   "partner",
		"lines": []map[string]any{
			{"title": "Laptop", "purchasePrice": 1000, "quantity": 2, "margin": 20},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[store.Offer](t, w)
	assert.True(t, created.MonthlyPayment.Equal(dec("84")))

	w = do(t, h, http.MethodPost, "/api/offers", map[string]any{"title": "Vide", "lines": []any{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodGet, "/api/offers?q=acme", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]store.Offer](t, w), 1)

	w = do(t, h, http.MethodGet, "/api/offers?q=nothing", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]store.Offer](t, w))

	w = do(t, h, http.MethodGet, "/api/offers/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[store.Offer](t, w)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, "Laptop", got.Lines[0].Title)

	w = do(t, h, http.MethodGet, "/api/offers/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
