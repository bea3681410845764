// Package quoting ties the leasing calculator to stored rate tables, the
// cache and saved offers.
package quoting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Simplici0/leaseworks/internal/cache"
	"github.com/Simplici0/leaseworks/internal/leasing"
	"github.com/Simplici0/leaseworks/internal/store"
)

var (
	// ErrWorksheetNotFound is returned for unknown or expired worksheets.
	ErrWorksheetNotFound = errors.New("worksheet not found")

	// ErrNoLines is returned when an offer is created without equipment.
	ErrNoLines = errors.New("offer needs at least one equipment line")
)

// Store is the persistence the service needs.
type Store interface {
	ListLeasers(ctx context.Context) ([]leasing.RateTable, error)
	GetLeaser(ctx context.Context, id string) (leasing.RateTable, error)
	SaveLeaser(ctx context.Context, table leasing.RateTable) error
	CreateOffer(ctx context.Context, o store.Offer) error
	GetOffer(ctx context.Context, id string) (store.Offer, error)
	ListOffers(ctx context.Context, query string) ([]store.Offer, error)
}

// Service resolves rate tables and runs calculations on behalf of the API.
type Service struct {
	store Store
	cache cache.Cache
	log   *slog.Logger
	ttl   time.Duration
	now   func() time.Time

	// locks holds one *sync.Mutex per worksheet id.
	locks sync.Map
}

// New returns a Service. A zero ttl keeps cached entries until evicted.
func New(s Store, c cache.Cache, log *slog.Logger, ttl time.Duration) *Service {
	return &Service{store: s, cache: c, log: log, ttl: ttl, now: time.Now}
}

// RateTable returns the table of leaserID. An empty id or an unknown leaser
// falls back to the built-in default table.
func (s *Service) RateTable(ctx context.Context, leaserID string) (leasing.RateTable, error) {
	if leaserID == "" {
		return leasing.DefaultRateTable(), nil
	}
	table, err := s.store.GetLeaser(ctx, leaserID)
	if errors.Is(err, store.ErrNotFound) {
		s.log.Warn("unknown leaser, using default rate table", "leaser_id", leaserID)
		return leasing.DefaultRateTable(), nil
	}
	if err != nil {
		return leasing.RateTable{}, fmt.Errorf("load rate table %s: %w", leaserID, err)
	}
	return table, nil
}

// Leasers lists stored leasing partners.
func (s *Service) Leasers(ctx context.Context) ([]leasing.RateTable, error) {
	return s.store.ListLeasers(ctx)
}

// Leaser returns a stored leasing partner. Unlike RateTable it does not fall back.
func (s *Service) Leaser(ctx context.Context, id string) (leasing.RateTable, error) {
	return s.store.GetLeaser(ctx, id)
}

// SaveLeaser validates and stores a leasing partner. A missing id is generated.
func (s *Service) SaveLeaser(ctx context.Context, table leasing.RateTable) (leasing.RateTable, error) {
	table.Name = strings.TrimSpace(table.Name)
	if table.Name == "" {
		return leasing.RateTable{}, &ValidationError{Field: "name", Msg: "is required"}
	}
	if len(table.Ranges) == 0 {
		return leasing.RateTable{}, &ValidationError{Field: "ranges", Msg: "needs at least one bracket"}
	}
	if err := leasing.ValidateRanges(table.Ranges); err != nil {
		return leasing.RateTable{}, &ValidationError{Field: "ranges", Msg: err.Error()}
	}
	if table.ID == "" {
		table.ID = uuid.NewString()
	}
	if err := s.store.SaveLeaser(ctx, table); err != nil {
		return leasing.RateTable{}, err
	}
	s.log.Info("saved leaser", "leaser_id", table.ID, "ranges", len(table.Ranges))
	return table, nil
}

// MarginSolution is a reverse solve together with whether its bracket agrees
// with the forward calculation.
type MarginSolution struct {
	leasing.CalculatedMargin
	Agrees bool `json:"agrees"`
}

// SolveMargin solves the margin that brings purchasePrice to target under
// leaserID's table. Results are memoized in the cache per input tuple and
// table contents, so saving new brackets for a leaser never serves an old
// solve. Cache failures are logged and the solve runs uncached.
func (s *Service) SolveMargin(ctx context.Context, leaserID string, target, purchasePrice decimal.Decimal) (MarginSolution, error) {
	table, err := s.RateTable(ctx, leaserID)
	if err != nil {
		return MarginSolution{}, err
	}

	key := fmt.Sprintf("margin:%s:%s:%s:%s", table.ID, rangesDigest(table.Ranges), target.String(), purchasePrice.String())
	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("margin cache read failed", "key", key, "error", err)
	} else if ok {
		var sol MarginSolution
		if err := json.Unmarshal([]byte(raw), &sol); err == nil {
			return sol, nil
		}
		s.log.Warn("discarding corrupt margin cache entry", "key", key)
	}

	sol := MarginSolution{
		CalculatedMargin: leasing.MarginFromMonthlyPayment(target, purchasePrice, &table),
		Agrees:           leasing.ReverseSolveAgrees(target, purchasePrice, &table),
	}
	if !sol.Agrees {
		s.log.Debug("reverse solve bracket differs from forward bracket",
			"leaser_id", table.ID, "target", target, "purchase_price", purchasePrice)
	}

	if raw, err := json.Marshal(sol); err == nil {
		if err := s.cache.Set(ctx, key, string(raw), s.ttl); err != nil {
			s.log.Warn("margin cache write failed", "key", key, "error", err)
		}
	}
	return sol, nil
}

func rangesDigest(ranges []leasing.RateBracket) string {
	h := xxhash.New()
	for _, r := range ranges {
		fmt.Fprintf(h, "%s|%s|%s;", r.Min.String(), r.Max.String(), r.Coefficient.String())
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// ValidationError reports invalid user input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Msg)
}
