package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracker/internal/amqp"
	"tracker/internal/core"
)

// Repository is the persistence the service depends on.
type Repository interface {
	CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, q core.ListQuery) (core.Page, error)
	UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) error
	ChangeMarker(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

// EventPublisher announces committed changes.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, ev *amqp.ExpenseEvent) error
	Close() error
}

// ExpenseService orchestrates expense operations across SQLite and AMQP
type ExpenseService struct {
	storage   Repository
	publisher EventPublisher
}

// NewExpenseService wires the service. publisher may be nil.
func NewExpenseService(storage Repository, publisher EventPublisher) *ExpenseService {
	return &ExpenseService{
		storage:   storage,
		publisher: publisher,
	}
}

// CreateExpense validates and saves an expense, then announces it.
func (s *ExpenseService) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	saved, err := s.storage.CreateExpense(ctx, e)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.publish(ctx, amqp.EventCreated, saved.ID)
	return saved, nil
}

func (s *ExpenseService) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	return s.storage.GetExpense(ctx, id)
}

// ListExpenses returns one page of expenses matching q.
func (s *ExpenseService) ListExpenses(ctx context.Context, q core.ListQuery) (core.Page, error) {
	q = q.Normalize()
	if err := q.Validate(); err != nil {
		return core.Page{}, err
	}
	return s.storage.ListExpenses(ctx, q)
}

// UpdateExpense applies a partial update. An empty patch is a no-op that
// still reports ErrNotFound for a missing row.
func (s *ExpenseService) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}

	updated, err := s.storage.UpdateExpense(ctx, id, p)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	if !p.IsEmpty() {
		s.publish(ctx, amqp.EventUpdated, id)
	}
	return updated, nil
}

// DeleteExpense removes the expense and announces the deletion.
func (s *ExpenseService) DeleteExpense(ctx context.Context, id int64) error {
	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	s.publish(ctx, amqp.EventDeleted, id)
	return nil
}

// ChangeMarker returns a value that differs whenever stored expenses changed,
// whichever process wrote them.
func (s *ExpenseService) ChangeMarker(ctx context.Context) (int64, error) {
	return s.storage.ChangeMarker(ctx)
}

// Ping reports whether storage is reachable.
func (s *ExpenseService) Ping(ctx context.Context) error {
	return s.storage.Ping(ctx)
}

func (s *ExpenseService) publish(ctx context.Context, t amqp.EventType, id int64) {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP publisher not configured, skipping event", "type", t, "id", id)
		return
	}

	// Don't fail the request - the change is already committed locally
	if err := s.publisher.PublishExpenseEvent(ctx, amqp.NewExpenseEvent(t, id)); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"type", t,
			"id", id,
			"error", err)
	}
}

// Close closes both storage and AMQP connections
func (s *ExpenseService) Close() error {
	var errs []error

	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	return errors.Join(errs...)
}
