package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmoiron/sqlx"
	"modernc.org/sqlite"

	"tracker/internal/core"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerFunctions adds casefold(text), a Unicode-aware lower(). SQLite's
// built-in LIKE and lower() only fold ASCII.
func registerFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("casefold", 1,
			func(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
				switch v := args[0].(type) {
				case nil:
					return nil, nil
				case string:
					return strings.ToLower(v), nil
				case []byte:
					return strings.ToLower(string(v)), nil
				default:
					return v, nil
				}
			})
	})
	return registerErr
}

// expenseRow mirrors one row of the expenses table.
type expenseRow struct {
	ID    int64          `db:"exp_id"`
	Name  string         `db:"expense"`
	Price float64        `db:"price"`
	Date  sql.NullString `db:"date"`
}

func (r expenseRow) toCore() core.Expense {
	e := core.Expense{
		ID:    r.ID,
		Name:  r.Name,
		Price: core.MoneyFromFloat(r.Price),
	}
	if r.Date.Valid {
		// Rows are only written through this repository, so the layout holds.
		if d, err := core.ParseDate(r.Date.String); err == nil {
			e.Date = d
		}
	}
	return e
}

type totalsRow struct {
	Count      int   `db:"n"`
	TotalCents int64 `db:"total_cents"`
}

type SQLiteRepository struct {
	db *sqlx.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := registerFunctions(); err != nil {
		return nil, fmt.Errorf("register sqlite functions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping checks the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// ChangeMarker returns a counter that moves on every insert, update or delete,
// including writes made by other processes sharing the database file.
func (r *SQLiteRepository) ChangeMarker(ctx context.Context) (int64, error) {
	var version int64
	if err := r.db.GetContext(ctx, &version,
		`SELECT version FROM expense_changes WHERE id = 1`); err != nil {
		return 0, fmt.Errorf("read change marker: %w", err)
	}
	return version, nil
}

// CreateExpense inserts e and returns it with its assigned ID.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (expense, price, date) VALUES (?, ?, ?)`,
		e.Name, e.Price.Float64(), nullDate(e.Date))
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("read inserted id: %w", err)
	}
	e.ID = id

	slog.InfoContext(ctx, "Expense saved to SQLite",
		"id", e.ID,
		"expense", e.Name,
		"price_cents", e.Price.Cents,
		"date", e.Date.String())

	return e, nil
}

// GetExpense returns the expense with the given ID or core.ErrNotFound.
func (r *SQLiteRepository) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	var row expenseRow
	err := r.db.GetContext(ctx, &row,
		`SELECT exp_id, expense, price, date FROM expenses WHERE exp_id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense %d: %w", id, err)
	}
	return row.toCore(), nil
}

// ListExpenses returns the requested page in insertion order. A page past the
// end is clamped to the last page.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, q core.ListQuery) (core.Page, error) {
	q = q.Normalize()
	where, args := buildFilter(q)

	var totals totalsRow
	err := r.db.GetContext(ctx, &totals,
		`SELECT COUNT(*) AS n, COALESCE(SUM(CAST(ROUND(price * 100) AS INTEGER)), 0) AS total_cents
		 FROM expenses`+where, args...)
	if err != nil {
		return core.Page{}, fmt.Errorf("count expenses: %w", err)
	}

	totalPages := core.PageCount(totals.Count, q.PageSize)
	if q.Page > totalPages {
		q.Page = totalPages
	}

	var rows []expenseRow
	pageArgs := append(append([]any{}, args...), q.PageSize, q.Offset())
	err = r.db.SelectContext(ctx, &rows,
		`SELECT exp_id, expense, price, date FROM expenses`+where+
			` ORDER BY exp_id ASC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return core.Page{}, fmt.Errorf("list expenses: %w", err)
	}

	items := make([]core.Expense, len(rows))
	for i, row := range rows {
		items[i] = row.toCore()
	}

	return core.Page{
		Items:       items,
		Page:        q.Page,
		PageSize:    q.PageSize,
		TotalItems:  totals.Count,
		TotalPages:  totalPages,
		PageTotal:   core.Sum(items),
		FilterTotal: core.Money{Cents: totals.TotalCents},
	}, nil
}

// UpdateExpense writes only the patched columns and returns the stored row.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, p core.ExpensePatch) (core.Expense, error) {
	if p.IsEmpty() {
		return r.GetExpense(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	if p.Name != nil {
		sets = append(sets, "expense = ?")
		args = append(args, *p.Name)
	}
	if p.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, p.Price.Float64())
	}
	if p.Date != nil {
		sets = append(sets, "date = ?")
		args = append(args, nullDate(*p.Date))
	}
	args = append(args, id)

	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET `+strings.Join(sets, ", ")+` WHERE exp_id = ?`, args...)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, err)
	} else if n == 0 {
		return core.Expense{}, fmt.Errorf("update expense %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense updated in SQLite", "id", id, "columns", len(sets))

	return r.GetExpense(ctx, id)
}

// DeleteExpense removes exactly one row.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE exp_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete expense %d: %w", id, core.ErrNotFound)
	}

	slog.InfoContext(ctx, "Expense deleted from SQLite", "id", id)
	return nil
}

func buildFilter(q core.ListQuery) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if q.HasDateFilter() {
		conds = append(conds, "date IS NOT NULL")
	}
	if !q.From.IsEmpty() {
		conds = append(conds, "date >= ?")
		args = append(args, q.From.String())
	}
	if !q.To.IsEmpty() {
		conds = append(conds, "date <= ?")
		args = append(args, q.To.String())
	}
	if q.Name != "" {
		conds = append(conds, `casefold(expense) LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(strings.ToLower(q.Name))+"%")
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func nullDate(d core.Date) sql.NullString {
	if d.IsEmpty() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}
