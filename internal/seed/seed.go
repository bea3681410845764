package seed

import (
	"context"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"

	"github.com/Simplici0/leaseworks/internal/leasing"
	"github.com/Simplici0/leaseworks/internal/store"
)

// Config contains the values required by startup seed.
type Config struct {
	// RateTablesPath is an optional YAML catalog of leasers.
	RateTablesPath string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Skipped int
}

type catalog struct {
	Leasers []catalogLeaser `yaml:"leasers"`
}

type catalogLeaser struct {
	ID     string           `yaml:"id"`
	Name   string           `yaml:"name"`
	Ranges []catalogBracket `yaml:"ranges"`
}

type catalogBracket struct {
	Min         string `yaml:"min"`
	Max         string `yaml:"max"`
	Coefficient string `yaml:"coefficient"`
}

// Run inserts the built-in default leaser and every leaser of the catalog
// that is not stored yet. Existing leasers are never overwritten, so Run is
// idempotent.
func Run(ctx context.Context, s *store.Store, cfg Config) (Stats, error) {
	tables := []leasing.RateTable{leasing.DefaultRateTable()}
	if cfg.RateTablesPath != "" {
		loaded, err := LoadCatalog(cfg.RateTablesPath)
		if err != nil {
			return Stats{}, err
		}
		tables = append(tables, loaded...)
	}

	stats := Stats{}
	for _, table := range tables {
		exists, err := s.LeaserExists(ctx, table.ID)
		if err != nil {
			return stats, err
		}
		if exists {
			stats.Skipped++
			continue
		}
		if err := s.SaveLeaser(ctx, table); err != nil {
			return stats, fmt.Errorf("seed leaser %s: %w", table.ID, err)
		}
		stats.Inserts++
	}

	return stats, nil
}

// LoadCatalog reads leasers from a YAML file.
func LoadCatalog(path string) ([]leasing.RateTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rate catalog: %w", err)
	}

	var c catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse rate catalog %s: %w", path, err)
	}

	tables := make([]leasing.RateTable, 0, len(c.Leasers))
	for _, l := range c.Leasers {
		if l.ID == "" || l.Name == "" {
			return nil, fmt.Errorf("rate catalog %s: leaser needs id and name", path)
		}
		table := leasing.RateTable{ID: l.ID, Name: l.Name, Ranges: make([]leasing.RateBracket, 0, len(l.Ranges))}
		for i, r := range l.Ranges {
			b, err := parseBracket(r)
			if err != nil {
				return nil, fmt.Errorf("rate catalog %s: leaser %s range %d: %w", path, l.ID, i, err)
			}
			table.Ranges = append(table.Ranges, b)
		}
		if err := leasing.ValidateRanges(table.Ranges); err != nil {
			return nil, fmt.Errorf("rate catalog %s: leaser %s: %w", path, l.ID, err)
		}
		tables = append(tables, table)
	}
	return tables, nil
}

func parseBracket(r catalogBracket) (leasing.RateBracket, error) {
	min, err := decimal.NewFromString(r.Min)
	if err != nil {
		return leasing.RateBracket{}, fmt.Errorf("min: %w", err)
	}
	max, err := decimal.NewFromString(r.Max)
	if err != nil {
		return leasing.RateBracket{}, fmt.Errorf("max: %w", err)
	}
	coef, err := decimal.NewFromString(r.Coefficient)
	if err != nil {
		return leasing.RateBracket{}, fmt.Errorf("coefficient: %w", err)
	}
	return leasing.RateBracket{Min: min, Max: max, Coefficient: coef}, nil
}
