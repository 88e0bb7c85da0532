package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tracker/internal/core"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "data", "expenses.db"))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func mustCreate(t *testing.T, repo *SQLiteRepository, e core.Expense) core.Expense {
	t.Helper()
	out, err := repo.CreateExpense(context.Background(), e)
	if err != nil {
		t.Fatalf("create %q: %v", e.Name, err)
	}
	return out
}

func TestCreateThenGetReturnsSameRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	in := core.Expense{Name: "Veg", Price: core.Money{Cents: 4050}, Date: core.NewDate(2024, 3, 9)}
	created := mustCreate(t, repo, in)
	if created.ID == 0 {
		t.Fatal("expected an assigned id")
	}

	got, err := repo.GetExpense(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Veg" || got.Price.Cents != 4050 || got.Date.String() != "2024-03-09" {
		t.Fatalf("unexpected row: %+v", got)
	}

	undated := mustCreate(t, repo, core.Expense{Name: "Fuel", Price: core.Money{Cents: 6000}})
	got, err = repo.GetExpense(ctx, undated.ID)
	if err != nil {
		t.Fatalf("get undated: %v", err)
	}
	if !got.Date.IsEmpty() {
		t.Fatalf("expected no date, got %s", got.Date)
	}
	if undated.ID <= created.ID {
		t.Fatalf("ids should increase: %d then %d", created.ID, undated.ID)
	}
}

func TestGetMissingExpense(t *testing.T) {
	repo := newTestRepo(t)
	if _, err := repo.GetExpense(context.Background(), 42); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNegativePriceRejectedBySchema(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.CreateExpense(context.Background(), core.Expense{Name: "x", Price: core.Money{Cents: -1}})
	if err == nil {
		t.Fatal("expected CHECK constraint failure")
	}
}

func TestListPagination(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	for i := 1; i <= 25; i++ {
		mustCreate(t, repo, core.Expense{Name: "item", Price: core.Money{Cents: int64(i * 100)}})
	}

	page, err := repo.ListExpenses(ctx, core.ListQuery{Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 10 || page.TotalItems != 25 || page.TotalPages != 3 {
		t.Fatalf("unexpected page: items=%d total=%d pages=%d", len(page.Items), page.TotalItems, page.TotalPages)
	}
	if page.Items[0].Price.Cents != 1100 {
		t.Fatalf("page 2 should start at the 11th row, got %+v", page.Items[0])
	}
	// 11..20 euros
	if page.PageTotal.Cents != 15500 {
		t.Fatalf("PageTotal = %d", page.PageTotal.Cents)
	}
	if page.PageTotal != core.Sum(page.Items) {
		t.Fatal("PageTotal must equal the sum of displayed prices")
	}
	// 1..25 euros
	if page.FilterTotal.Cents != 32500 {
		t.Fatalf("FilterTotal = %d", page.FilterTotal.Cents)
	}

	last, err := repo.ListExpenses(ctx, core.ListQuery{Page: 99, PageSize: 10})
	if err != nil {
		t.Fatalf("list past end: %v", err)
	}
	if last.Page != 3 || len(last.Items) != 5 {
		t.Fatalf("expected clamp to page 3 with 5 items, got page=%d items=%d", last.Page, len(last.Items))
	}
}

func TestListEmptyTable(t *testing.T) {
	repo := newTestRepo(t)
	page, err := repo.ListExpenses(context.Background(), core.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 || page.TotalPages != 1 || page.Page != 1 || page.PageTotal.Cents != 0 {
		t.Fatalf("unexpected empty page: %+v", page)
	}
}

func TestListSearchByDateAndName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, core.Expense{Name: "Veg", Price: core.Money{Cents: 4000}, Date: core.NewDate(2024, 1, 5)})
	mustCreate(t, repo, core.Expense{Name: "Fruit", Price: core.Money{Cents: 7000}, Date: core.NewDate(2024, 1, 20)})
	mustCreate(t, repo, core.Expense{Name: "Fuel", Price: core.Money{Cents: 6000}, Date: core.NewDate(2024, 2, 1)})
	mustCreate(t, repo, core.Expense{Name: "Fuel 100%", Price: core.Money{Cents: 100}})
	mustCreate(t, repo, core.Expense{Name: "Éclair", Price: core.Money{Cents: 350}})

	cases := []struct {
		name  string
		q     core.ListQuery
		want  []string
		total int64
	}{
		{"january", core.ListQuery{From: core.NewDate(2024, 1, 1), To: core.NewDate(2024, 1, 31)}, []string{"Veg", "Fruit"}, 11000},
		{"exact day", core.ListQuery{From: core.NewDate(2024, 2, 1), To: core.NewDate(2024, 2, 1)}, []string{"Fuel"}, 6000},
		{"from only", core.ListQuery{From: core.NewDate(2024, 1, 20)}, []string{"Fruit", "Fuel"}, 13000},
		{"to only", core.ListQuery{To: core.NewDate(2024, 1, 5)}, []string{"Veg"}, 4000},
		{"name", core.ListQuery{Name: "fu"}, []string{"Fuel", "Fuel 100%"}, 6100},
		{"name literal percent", core.ListQuery{Name: "100%"}, []string{"Fuel 100%"}, 100},
		{"name non-ascii lower", core.ListQuery{Name: "éclair"}, []string{"Éclair"}, 350},
		{"name non-ascii upper", core.ListQuery{Name: "ÉCLAIR"}, []string{"Éclair"}, 350},
		{"name underscore literal", core.ListQuery{Name: "_"}, nil, 0},
		{"no match", core.ListQuery{From: core.NewDate(2030, 1, 1)}, nil, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			page, err := repo.ListExpenses(ctx, tc.q)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(page.Items) != len(tc.want) {
				t.Fatalf("got %d items, want %d", len(page.Items), len(tc.want))
			}
			for i, name := range tc.want {
				if page.Items[i].Name != name {
					t.Fatalf("item %d = %q, want %q", i, page.Items[i].Name, name)
				}
			}
			if page.FilterTotal.Cents != tc.total {
				t.Fatalf("FilterTotal = %d, want %d", page.FilterTotal.Cents, tc.total)
			}
		})
	}
}

func TestUpdateExpense(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	e := mustCreate(t, repo, core.Expense{Name: "Fruit", Price: core.Money{Cents: 7000}, Date: core.NewDate(2024, 1, 1)})

	price := core.Money{Cents: 7250}
	got, err := repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{Price: &price})
	if err != nil {
		t.Fatalf("update price: %v", err)
	}
	if got.Name != "Fruit" || got.Price.Cents != 7250 || got.Date.String() != "2024-01-01" {
		t.Fatalf("price-only update touched other columns: %+v", got)
	}

	name := "Apples"
	cleared := core.Date{}
	got, err = repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{Name: &name, Date: &cleared})
	if err != nil {
		t.Fatalf("update name/date: %v", err)
	}
	if got.Name != "Apples" || got.Price.Cents != 7250 || !got.Date.IsEmpty() {
		t.Fatalf("unexpected row: %+v", got)
	}

	unchanged, err := repo.UpdateExpense(ctx, e.ID, core.ExpensePatch{})
	if err != nil || unchanged != got {
		t.Fatalf("empty patch: %+v, %v", unchanged, err)
	}

	if _, err := repo.UpdateExpense(ctx, 999, core.ExpensePatch{Name: &name}); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteRemovesExactlyOneRow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a := mustCreate(t, repo, core.Expense{Name: "Veg", Price: core.Money{Cents: 4000}})
	mustCreate(t, repo, core.Expense{Name: "Veg", Price: core.Money{Cents: 4000}})

	if err := repo.DeleteExpense(ctx, a.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	page, err := repo.ListExpenses(ctx, core.ListQuery{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.TotalItems != 1 || page.Items[0].ID == a.ID {
		t.Fatalf("expected exactly one remaining row, got %+v", page.Items)
	}
	if err := repo.DeleteExpense(ctx, a.ID); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("second delete should be ErrNotFound, got %v", err)
	}
}

func TestDeletedHighestIDIsNotReused(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, core.Expense{Name: "Veg", Price: core.Money{Cents: 4000}})
	b := mustCreate(t, repo, core.Expense{Name: "Fuel", Price: core.Money{Cents: 6000}})

	if err := repo.DeleteExpense(ctx, b.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	c := mustCreate(t, repo, core.Expense{Name: "Fruit", Price: core.Money{Cents: 7000}})
	if c.ID <= b.ID {
		t.Fatalf("id %d reused or reordered after deleting %d", c.ID, b.ID)
	}
}

func TestChangeMarkerSeesWritesFromAnotherConnection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	reader, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open reader: %v", err)
	}
	defer reader.Close()
	writer, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("open writer: %v", err)
	}
	defer writer.Close()

	ctx := context.Background()
	marker := func() int64 {
		t.Helper()
		v, err := reader.ChangeMarker(ctx)
		if err != nil {
			t.Fatalf("change marker: %v", err)
		}
		return v
	}

	before := marker()
	e, err := writer.CreateExpense(ctx, core.Expense{Name: "Veg", Price: core.Money{Cents: 4000}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	afterCreate := marker()
	if afterCreate == before {
		t.Fatal("marker unchanged after insert")
	}

	name := "Vegetables"
	if _, err := writer.UpdateExpense(ctx, e.ID, core.ExpensePatch{Name: &name}); err != nil {
		t.Fatalf("update: %v", err)
	}
	afterUpdate := marker()
	if afterUpdate == afterCreate {
		t.Fatal("marker unchanged after a name-only update")
	}

	if err := writer.DeleteExpense(ctx, e.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if marker() == afterUpdate {
		t.Fatal("marker unchanged after delete")
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "expenses.db")
	repo, err := NewSQLiteRepository(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = repo.Close()

	if err := RunMigrations(path); err != nil {
		t.Fatalf("re-run migrations: %v", err)
	}
	version, dirty, err := SchemaVersion(path)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != 3 || dirty {
		t.Fatalf("expected clean version 3, got %d dirty=%v", version, dirty)
	}
}
