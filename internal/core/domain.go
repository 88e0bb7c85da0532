package core

import (
	"errors"
	"strings"
	"time"
)

// DateLayout is the on-disk and form representation of an expense date.
const DateLayout = "2006-01-02"

// MaxNameLength bounds the expense name accepted by Validate.
const MaxNameLength = 200

type (
	// Date is an optional calendar day. The zero value means "no date".
	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	Expense struct {
		ID    int64
		Name  string
		Price Money
		Date  Date
	}

	// ExpensePatch describes a partial update. Nil fields are left untouched;
	// a non-nil zero Date clears the stored date.
	ExpensePatch struct {
		Name  *string
		Price *Money
		Date  *Date
	}
)

var (
	ErrEmptyName     = errors.New("empty expense name")
	ErrNameTooLong   = errors.New("expense name too long (max 200 characters)")
	ErrEmptyPrice    = errors.New("empty price")
	ErrInvalidPrice  = errors.New("invalid price")
	ErrNegativePrice = errors.New("negative price")
	ErrInvalidDate   = errors.New("invalid date")
	ErrDateRange     = errors.New("start date after end date")
	ErrNotFound      = errors.New("expense not found")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string. An empty string yields the zero Date.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	d := Date{Time: t}
	if err := d.Validate(); err != nil {
		return Date{}, err
	}
	return d, nil
}

// IsEmpty returns true if no date is set.
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// String renders the date as YYYY-MM-DD, or "" when unset.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return nil
	}
	if y := d.Year(); y < 1900 || y > 2999 {
		return ErrInvalidDate
	}
	return nil
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativePrice
	}
	return nil
}

func (e Expense) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return ErrEmptyName
	}
	if len([]rune(e.Name)) > MaxNameLength {
		return ErrNameTooLong
	}
	if err := e.Price.Validate(); err != nil {
		return err
	}
	return e.Date.Validate()
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return p.Name == nil && p.Price == nil && p.Date == nil
}

func (p ExpensePatch) Validate() error {
	if p.Name != nil {
		if strings.TrimSpace(*p.Name) == "" {
			return ErrEmptyName
		}
		if len([]rune(*p.Name)) > MaxNameLength {
			return ErrNameTooLong
		}
	}
	if p.Price != nil {
		if err := p.Price.Validate(); err != nil {
			return err
		}
	}
	if p.Date != nil {
		return p.Date.Validate()
	}
	return nil
}

// Apply returns e with the patch applied.
func (p ExpensePatch) Apply(e Expense) Expense {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}
