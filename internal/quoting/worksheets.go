package quoting

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Simplici0/leaseworks/internal/leasing"
)

func worksheetKey(id string) string {
	return "worksheet:" + id
}

// StoredWorksheet is a worksheet together with the leaser it is priced against.
type StoredWorksheet struct {
	ID       string             `json:"id"`
	LeaserID string             `json:"leaserId"`
	Sheet    *leasing.Worksheet `json:"sheet"`
}

// NewWorksheet creates and stores an empty worksheet.
func (s *Service) NewWorksheet(ctx context.Context, leaserID string) (StoredWorksheet, error) {
	ws := StoredWorksheet{
		ID:       uuid.NewString(),
		LeaserID: leaserID,
		Sheet:    leasing.NewWorksheet(),
	}
	if err := s.SaveWorksheet(ctx, ws); err != nil {
		return StoredWorksheet{}, err
	}
	return ws, nil
}

// Worksheet loads worksheet id.
func (s *Service) Worksheet(ctx context.Context, id string) (StoredWorksheet, error) {
	raw, ok, err := s.cache.Get(ctx, worksheetKey(id))
	if err != nil {
		return StoredWorksheet{}, fmt.Errorf("load worksheet %s: %w", id, err)
	}
	if !ok {
		return StoredWorksheet{}, ErrWorksheetNotFound
	}

	var ws StoredWorksheet
	if err := json.Unmarshal([]byte(raw), &ws); err != nil {
		return StoredWorksheet{}, fmt.Errorf("decode worksheet %s: %w", id, err)
	}
	if ws.Sheet == nil {
		ws.Sheet = leasing.NewWorksheet()
	}
	return ws, nil
}

// SaveWorksheet stores ws, refreshing its expiry.
func (s *Service) SaveWorksheet(ctx context.Context, ws StoredWorksheet) error {
	raw, err := json.Marshal(ws)
	if err != nil {
		return fmt.Errorf("encode worksheet %s: %w", ws.ID, err)
	}
	if err := s.cache.Set(ctx, worksheetKey(ws.ID), string(raw), s.ttl); err != nil {
		return fmt.Errorf("save worksheet %s: %w", ws.ID, err)
	}
	return nil
}

func (s *Service) worksheetLock(id string) *sync.Mutex {
	mu, _ := s.locks.LoadOrStore(id, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// UpdateWorksheet loads worksheet id, resolves its rate table, applies fn and
// stores the result when fn succeeds.
//
// Updates to one worksheet are serialized within this process. Several
// processes sharing a Redis cache are last writer wins.
func (s *Service) UpdateWorksheet(ctx context.Context, id string, fn func(ws *leasing.Worksheet, table *leasing.RateTable) error) (StoredWorksheet, error) {
	mu := s.worksheetLock(id)
	mu.Lock()
	defer mu.Unlock()

	ws, err := s.Worksheet(ctx, id)
	if err != nil {
		return StoredWorksheet{}, err
	}
	table, err := s.RateTable(ctx, ws.LeaserID)
	if err != nil {
		return StoredWorksheet{}, err
	}
	if err := fn(ws.Sheet, &table); err != nil {
		return StoredWorksheet{}, err
	}
	if err := s.SaveWorksheet(ctx, ws); err != nil {
		return StoredWorksheet{}, err
	}
	return ws, nil
}

// DeleteWorksheet drops worksheet id.
func (s *Service) DeleteWorksheet(ctx context.Context, id string) error {
	mu := s.worksheetLock(id)
	mu.Lock()
	defer mu.Unlock()

	if err := s.cache.Delete(ctx, worksheetKey(id)); err != nil {
		return err
	}
	s.locks.Delete(id)
	return nil
}
