package sheets

import (
	"context"

	"tracker/internal/core"
)

// ExpenseExporter mirrors expense records into an external sheet. Both
// operations are idempotent: upserting twice leaves one row and removing a
// missing row is not an error.
type ExpenseExporter interface {
	UpsertExpense(ctx context.Context, e core.Expense) error
	RemoveExpense(ctx context.Context, id int64) error
	// ExportedIDs lists the ids currently present in the mirror.
	ExportedIDs(ctx context.Context) ([]int64, error)
}
