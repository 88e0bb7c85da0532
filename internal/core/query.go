package core

import "strings"

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// ListQuery selects a page of expenses. From and To are inclusive; an
// exact-date search sets both to the same day. Name is a case-insensitive
// substring filter.
type ListQuery struct {
	Page     int
	PageSize int
	From     Date
	To       Date
	Name     string
}

// Normalize clamps paging values into range and trims the name filter.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	q.Name = strings.TrimSpace(q.Name)
	return q
}

func (q ListQuery) Validate() error {
	if err := q.From.Validate(); err != nil {
		return err
	}
	if err := q.To.Validate(); err != nil {
		return err
	}
	if !q.From.IsEmpty() && !q.To.IsEmpty() && q.From.After(q.To.Time) {
		return ErrDateRange
	}
	return nil
}

// HasDateFilter reports whether the query restricts by date.
func (q ListQuery) HasDateFilter() bool {
	return !q.From.IsEmpty() || !q.To.IsEmpty()
}

// Offset returns the row offset of the query's page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.PageSize
}

// Page is one screenful of expenses plus the figures the grid displays.
type Page struct {
	Items      []Expense
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int

	// PageTotal is the sum of the prices in Items.
	PageTotal Money
	// FilterTotal is the sum over every expense matching the query.
	FilterTotal Money
}

func (p Page) HasPrev() bool { return p.Page > 1 }
func (p Page) HasNext() bool { return p.Page < p.TotalPages }

// PageCount returns how many pages totalItems rows fill; never less than 1.
func PageCount(totalItems, pageSize int) int {
	if pageSize < 1 || totalItems <= 0 {
		return 1
	}
	return (totalItems + pageSize - 1) / pageSize
}
