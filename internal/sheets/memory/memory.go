package memory

import (
	"context"
	"sort"
	"sync"

	"tracker/internal/core"
	"tracker/internal/sheets"
)

var _ sheets.ExpenseExporter = (*Store)(nil)

// Store is an in-process exporter used when no spreadsheet is configured.
type Store struct {
	mu    sync.Mutex
	items map[int64]core.Expense
}

func New() *Store {
	return &Store{items: map[int64]core.Expense{}}
}

// UpsertExpense stores or replaces the expense keyed by its ID.
func (s *Store) UpsertExpense(_ context.Context, e core.Expense) error {
	if err := e.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[e.ID] = e
	return nil
}

func (s *Store) RemoveExpense(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, id)
	return nil
}

// ExportedIDs returns the stored ids in ascending order.
func (s *Store) ExportedIDs(_ context.Context) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int64, 0, len(s.items))
	for id := range s.items {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Rows returns a snapshot ordered by ID.
func (s *Store) Rows() []core.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0, len(s.items))
	for _, e := range s.items {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
