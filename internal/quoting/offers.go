package quoting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Simplici0/leaseworks/internal/leasing"
	"github.com/Simplici0/leaseworks/internal/store"
)

// OfferInput describes an offer to save.
type OfferInput struct {
	Title               string                  `json:"title"`
	ClientName          string                  `json:"clientName"`
	LeaserID            string                  `json:"leaserId"`
	AdaptMonthlyPayment bool                    `json:"adaptMonthlyPayment"`
	Discount            leasing.Discount        `json:"discount"`
	Lines               []leasing.EquipmentLine `json:"lines"`
}

// CreateOffer prices in.Lines, aggregates them and stores the offer. Lines
// without a monthly payment are priced with the forward calculation.
func (s *Service) CreateOffer(ctx context.Context, in OfferInput) (store.Offer, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return store.Offer{}, &ValidationError{Field: "title", Msg: "is required"}
	}
	if len(in.Lines) == 0 {
		return store.Offer{}, ErrNoLines
	}

	table, err := s.RateTable(ctx, in.LeaserID)
	if err != nil {
		return store.Offer{}, err
	}

	lines := make([]leasing.EquipmentLine, 0, len(in.Lines))
	for _, l := range in.Lines {
		if strings.TrimSpace(l.Title) == "" || !l.PurchasePrice.IsPositive() {
			return store.Offer{}, &ValidationError{Field: "lines", Msg: "need a title and a positive purchase price"}
		}
		if l.Quantity < 1 {
			return store.Offer{}, &ValidationError{Field: "lines", Msg: leasing.ErrInvalidQuantity.Error()}
		}
		if l.ID == "" {
			l.ID = uuid.NewString()
		}
		if !l.MonthlyPayment.IsPositive() {
			l, _ = leasing.MonthlyPayment(l, &table)
		}
		lines = append(lines, l)
	}

	totals := leasing.CalculateGlobalMarginAdjustment(lines, &table, in.AdaptMonthlyPayment)
	discounted := leasing.ApplyDiscount(totals.NewMonthly, in.Discount)

	offer := store.Offer{
		ID:                          uuid.NewString(),
		Title:                       title,
		ClientName:                  strings.TrimSpace(in.ClientName),
		LeaserID:                    table.ID,
		AdaptMonthlyPayment:         in.AdaptMonthlyPayment,
		MonthlyPayment:              totals.NewMonthly,
		DiscountAmount:              discounted.DiscountAmount,
		MonthlyPaymentAfterDiscount: discounted.MonthlyPaymentAfterDiscount,
		MarginAmount:                totals.Amount,
		MarginPercent:               totals.Percentage,
		MarginDifference:            totals.MarginDifference,
		Coefficient:                 totals.CurrentCoef,
		CreatedAt:                   s.now().UTC().Truncate(time.Second),
		Lines:                       lines,
	}
	if err := s.store.CreateOffer(ctx, offer); err != nil {
		return store.Offer{}, err
	}

	s.log.Info("created offer",
		"offer_id", offer.ID,
		"leaser_id", offer.LeaserID,
		"lines", len(lines),
		"monthly_payment", offer.MonthlyPaymentAfterDiscount)
	return offer, nil
}

// Offer returns a saved offer.
func (s *Service) Offer(ctx context.Context, id string) (store.Offer, error) {
	return s.store.GetOffer(ctx, id)
}

// ListOffers returns saved offers matching query, newest first.
func (s *Service) ListOffers(ctx context.Context, query string) ([]store.Offer, error) {
	return s.store.ListOffers(ctx, strings.TrimSpace(query))
}
