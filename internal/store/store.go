// Package store persists leasing partners and saved offers in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Simplici0/leaseworks/internal/leasing"
)

// ErrNotFound is returned when a leaser or offer does not exist.
var ErrNotFound = errors.New("not found")

// Store is a SQLite-backed repository.
type Store struct {
	db *sql.DB
}

// New returns a Store over an opened and migrated database.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ListLeasers returns every leaser with its brackets, ordered by name.
func (s *Store) ListLeasers(ctx context.Context) ([]leasing.RateTable, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.name, r.min_amount, r.max_amount, r.coefficient
		FROM leasers l
		LEFT JOIN leaser_ranges r ON r.leaser_id = l.id
		ORDER BY l.name, l.id, r.position
	`)
	if err != nil {
		return nil, fmt.Errorf("query leasers: %w", err)
	}
	defer rows.Close()

	tables := make([]leasing.RateTable, 0)
	for rows.Next() {
		var (
			id, name      string
			min, max, coe decimal.NullDecimal
		)
		if err := rows.Scan(&id, &name, &min, &max, &coe); err != nil {
			return nil, fmt.Errorf("scan leaser: %w", err)
		}
		if len(tables) == 0 || tables[len(tables)-1].ID != id {
			tables = append(tables, leasing.RateTable{ID: id, Name: name, Ranges: []leasing.RateBracket{}})
		}
		if min.Valid {
			last := &tables[len(tables)-1]
			last.Ranges = append(last.Ranges, leasing.RateBracket{Min: min.Decimal, Max: max.Decimal, Coefficient: coe.Decimal})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leasers: %w", err)
	}

	return tables, nil
}

// GetLeaser returns the leaser id with its brackets in table order.
func (s *Store) GetLeaser(ctx context.Context, id string) (leasing.RateTable, error) {
	table := leasing.RateTable{ID: id, Ranges: []leasing.RateBracket{}}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM leasers WHERE id = ?`, id).Scan(&table.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return leasing.RateTable{}, ErrNotFound
	}
	if err != nil {
		return leasing.RateTable{}, fmt.Errorf("query leaser %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT min_amount, max_amount, coefficient
		FROM leaser_ranges
		WHERE leaser_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return leasing.RateTable{}, fmt.Errorf("query leaser ranges: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b leasing.RateBracket
		if err := rows.Scan(&b.Min, &b.Max, &b.Coefficient); err != nil {
			return leasing.RateTable{}, fmt.Errorf("scan leaser range: %w", err)
		}
		table.Ranges = append(table.Ranges, b)
	}
	if err := rows.Err(); err != nil {
		return leasing.RateTable{}, fmt.Errorf("iterate leaser ranges: %w", err)
	}

	return table, nil
}

// SaveLeaser inserts or replaces a leaser and its brackets.
func (s *Store) SaveLeaser(ctx context.Context, table leasing.RateTable) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin leaser transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO leasers (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, updated_at = CURRENT_TIMESTAMP
	`, table.ID, table.Name); err != nil {
		return fmt.Errorf("upsert leaser %s: %w", table.ID, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM leaser_ranges WHERE leaser_id = ?`, table.ID); err != nil {
		return fmt.Errorf("clear leaser ranges: %w", err)
	}
	for i, r := range table.Ranges {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO leaser_ranges (leaser_id, position, min_amount, max_amount, coefficient)
			VALUES (?, ?, ?, ?, ?)
		`, table.ID, i, r.Min, r.Max, r.Coefficient); err != nil {
			return fmt.Errorf("insert leaser range %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit leaser transaction: %w", err)
	}
	return nil
}

// LeaserExists reports whether a leaser with id is stored.
func (s *Store) LeaserExists(ctx context.Context, id string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM leasers WHERE id = ?)`, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("check leaser existence: %w", err)
	}
	return exists, nil
}

// Offer is a saved quote: its equipment lines and the fleet totals computed
// when it was created.
type Offer struct {
	ID                          string                  `json:"id"`
	Title                       string                  `json:"title"`
	ClientName                  string                  `json:"clientName"`
	LeaserID                    string                  `json:"leaserId"`
	AdaptMonthlyPayment         bool                    `json:"adaptMonthlyPayment"`
	MonthlyPayment              decimal.Decimal         `json:"monthlyPayment"`
	DiscountAmount              decimal.Decimal         `json:"discountAmount"`
	MonthlyPaymentAfterDiscount decimal.Decimal         `json:"monthlyPaymentAfterDiscount"`
	MarginAmount                decimal.Decimal         `json:"marginAmount"`
	MarginPercent               decimal.Decimal         `json:"marginPercent"`
	MarginDifference            decimal.Decimal         `json:"marginDifference"`
	Coefficient                 decimal.Decimal         `json:"coefficient"`
	CreatedAt                   time.Time               `json:"createdAt"`
	Lines                       []leasing.EquipmentLine `json:"lines,omitempty"`
}

// CreateOffer stores o and its lines in one transaction.
func (s *Store) CreateOffer(ctx context.Context, o Offer) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin offer transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO offers (
			id, title, client_name, leaser_id, adapt_monthly_payment,
			monthly_payment, discount_amount, monthly_payment_after_discount,
			margin_amount, margin_percent, margin_difference, coefficient, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		o.ID, o.Title, o.ClientName, o.LeaserID, o.AdaptMonthlyPayment,
		o.MonthlyPayment, o.DiscountAmount, o.MonthlyPaymentAfterDiscount,
		o.MarginAmount, o.MarginPercent, o.MarginDifference, o.Coefficient,
		o.CreatedAt.UTC().Format(time.DateTime),
	); err != nil {
		return fmt.Errorf("insert offer: %w", err)
	}

	for i, l := range o.Lines {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO offer_lines (offer_id, position, line_id, title, purchase_price, quantity, margin, monthly_payment)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, o.ID, i, l.ID, l.Title, l.PurchasePrice, l.Quantity, l.Margin, l.MonthlyPayment); err != nil {
			return fmt.Errorf("insert offer line %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit offer transaction: %w", err)
	}
	return nil
}

const offerColumns = `
	id, title, COALESCE(client_name, ''), leaser_id, adapt_monthly_payment,
	monthly_payment, discount_amount, monthly_payment_after_discount,
	margin_amount, margin_percent, margin_difference, coefficient, created_at
`

type scanner interface {
	Scan(dest ...any) error
}

func scanOffer(row scanner) (Offer, error) {
	var (
		o         Offer
		createdAt string
	)
	err := row.Scan(
		&o.ID, &o.Title, &o.ClientName, &o.LeaserID, &o.AdaptMonthlyPayment,
		&o.MonthlyPayment, &o.DiscountAmount, &o.MonthlyPaymentAfterDiscount,
		&o.MarginAmount, &o.MarginPercent, &o.MarginDifference, &o.Coefficient, &createdAt,
	)
	if err != nil {
		return Offer{}, err
	}
	o.CreatedAt = parseTimestamp(createdAt)
	return o, nil
}

// parseTimestamp reads the timestamp forms the sqlite driver hands back.
func parseTimestamp(v string) time.Time {
	for _, layout := range []string{time.DateTime, time.RFC3339Nano, "2006-01-02T15:04:05Z"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// GetOffer returns offer id with its lines.
func (s *Store) GetOffer(ctx context.Context, id string) (Offer, error) {
	o, err := scanOffer(s.db.QueryRowContext(ctx, `SELECT `+offerColumns+` FROM offers WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Offer{}, ErrNotFound
	}
	if err != nil {
		return Offer{}, fmt.Errorf("query offer %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT line_id, title, purchase_price, quantity, margin, monthly_payment
		FROM offer_lines
		WHERE offer_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return Offer{}, fmt.Errorf("query offer lines: %w", err)
	}
	defer rows.Close()

	o.Lines = make([]leasing.EquipmentLine, 0)
	for rows.Next() {
		var l leasing.EquipmentLine
		if err := rows.Scan(&l.ID, &l.Title, &l.PurchasePrice, &l.Quantity, &l.Margin, &l.MonthlyPayment); err != nil {
			return Offer{}, fmt.Errorf("scan offer line: %w", err)
		}
		o.Lines = append(o.Lines, l)
	}
	if err := rows.Err(); err != nil {
		return Offer{}, fmt.Errorf("iterate offer lines: %w", err)
	}

	return o, nil
}

// ListOffers returns offers newest first, optionally filtered by a
// case-insensitive match on title or client name. Lines are not loaded.
func (s *Store) ListOffers(ctx context.Context, query string) ([]Offer, error) {
	search := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+offerColumns+`
		FROM offers
		WHERE (? = '' OR title LIKE ? OR COALESCE(client_name, '') LIKE ?)
		ORDER BY datetime(created_at) DESC, id DESC
	`, query, search, search)
	if err != nil {
		return nil, fmt.Errorf("query offers: %w", err)
	}
	defer rows.Close()

	offers := make([]Offer, 0)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan offer: %w", err)
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate offers: %w", err)
	}

	return offers, nil
}
