package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"tracker/internal/amqp"
	"tracker/internal/core"
	"tracker/internal/sheets"
)

// ExpenseReader is the read side of storage the worker needs.
type ExpenseReader interface {
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	ListExpenses(ctx context.Context, q core.ListQuery) (core.Page, error)
}

// ExportWorker mirrors expense changes from SQLite into an exporter.
type ExportWorker struct {
	storage  ExpenseReader
	exporter sheets.ExpenseExporter
}

func NewExportWorker(storage ExpenseReader, exporter sheets.ExpenseExporter) *ExportWorker {
	return &ExportWorker{
		storage:  storage,
		exporter: exporter,
	}
}

// HandleEvent processes a single change event from AMQP. The current row is
// always read back from storage, so replayed or reordered events converge.
func (w *ExportWorker) HandleEvent(ctx context.Context, ev *amqp.ExpenseEvent) error {
	slog.InfoContext(ctx, "Processing expense event",
		"message_id", ev.MessageID,
		"type", ev.Type,
		"id", ev.ID)

	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		expense, err := w.storage.GetExpense(ctx, ev.ID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted before we got here
			return w.remove(ctx, ev.ID)
		}
		if err != nil {
			return fmt.Errorf("get expense from storage: %w", err)
		}
		if err := w.exporter.UpsertExpense(ctx, expense); err != nil {
			return fmt.Errorf("export expense %d: %w", ev.ID, err)
		}
		slog.InfoContext(ctx, "Successfully exported expense",
			"id", expense.ID,
			"expense", expense.Name,
			"price_cents", expense.Price.Cents)
		return nil

	case amqp.EventDeleted:
		return w.remove(ctx, ev.ID)

	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (w *ExportWorker) remove(ctx context.Context, id int64) error {
	if err := w.exporter.RemoveExpense(ctx, id); err != nil {
		return fmt.Errorf("remove expense %d from export: %w", id, err)
	}
	slog.InfoContext(ctx, "Successfully removed exported expense", "id", id)
	return nil
}

// Resync pages through the whole table and upserts every row, then removes
// mirrored rows whose expense no longer exists. It recovers from missed AMQP
// messages or worker downtime; rows that fail are logged and skipped.
func (w *ExportWorker) Resync(ctx context.Context) error {
	q := core.ListQuery{Page: 1, PageSize: core.MaxPageSize}
	successCount, errorCount := 0, 0
	seen := make(map[int64]struct{})

	for {
		page, err := w.storage.ListExpenses(ctx, q)
		if err != nil {
			return fmt.Errorf("list expenses for resync: %w", err)
		}

		for _, e := range page.Items {
			if err := ctx.Err(); err != nil {
				return err
			}
			seen[e.ID] = struct{}{}
			if err := w.exporter.UpsertExpense(ctx, e); err != nil {
				slog.ErrorContext(ctx, "Failed to export expense during resync",
					"id", e.ID, "error", err)
				errorCount++
				continue
			}
			successCount++
		}

		if !page.HasNext() {
			break
		}
		q.Page = page.Page + 1
	}

	removed, err := w.pruneStale(ctx, seen)
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Resync completed",
		"synced", successCount,
		"removed", removed,
		"errors", errorCount)
	return nil
}

// pruneStale removes mirrored ids that were not listed and are confirmed
// missing from storage. Rows created while paging are listed by neither
// side of the race, so each candidate is re-read before removal.
func (w *ExportWorker) pruneStale(ctx context.Context, seen map[int64]struct{}) (int, error) {
	exported, err := w.exporter.ExportedIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("list exported expenses: %w", err)
	}

	removed := 0
	for _, id := range exported {
		if _, ok := seen[id]; ok {
			continue
		}
		if _, err := w.storage.GetExpense(ctx, id); !errors.Is(err, core.ErrNotFound) {
			if err != nil {
				slog.ErrorContext(ctx, "Failed to check exported expense", "id", id, "error", err)
			}
			continue
		}
		if err := w.exporter.RemoveExpense(ctx, id); err != nil {
			slog.ErrorContext(ctx, "Failed to remove stale exported expense", "id", id, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
