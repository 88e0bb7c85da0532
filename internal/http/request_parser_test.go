package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"tracker/internal/core"
)

func TestParseListQuery(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantPage int
		wantSize int
		wantFrom string
		wantTo   string
		wantName string
		wantErr  error
	}{
		{name: "defaults", raw: "", wantPage: 1, wantSize: 10},
		{name: "paging", raw: "page=3&size=25", wantPage: 3, wantSize: 25},
		{name: "garbage paging", raw: "page=x&size=-4", wantPage: 1, wantSize: 10},
		{name: "size clamped", raw: "size=1000", wantPage: 1, wantSize: 100},
		{name: "range", raw: "from=2024-01-01&to=2024-01-31", wantPage: 1, wantSize: 10, wantFrom: "2024-01-01", wantTo: "2024-01-31"},
		{name: "exact date wins", raw: "date=2024-03-09&from=2020-01-01", wantPage: 1, wantSize: 10, wantFrom: "2024-03-09", wantTo: "2024-03-09"},
		{name: "name trimmed", raw: "name=+veg+", wantPage: 1, wantSize: 10, wantName: "veg"},
		{name: "bad from", raw: "from=yesterday", wantErr: core.ErrInvalidDate},
		{name: "bad exact date", raw: "date=2024-02-30", wantErr: core.ErrInvalidDate},
		{name: "year out of range", raw: "to=1800-01-01", wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values, err := url.ParseQuery(tt.raw)
			if err != nil {
				t.Fatal(err)
			}
			q, err := parseListQuery(values, core.DefaultPageSize)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if q.Page != tt.wantPage || q.PageSize != tt.wantSize {
				t.Errorf("paging = %d/%d, want %d/%d", q.Page, q.PageSize, tt.wantPage, tt.wantSize)
			}
			if q.From.String() != tt.wantFrom || q.To.String() != tt.wantTo {
				t.Errorf("range = %q..%q, want %q..%q", q.From, q.To, tt.wantFrom, tt.wantTo)
			}
			if q.Name != tt.wantName {
				t.Errorf("name = %q, want %q", q.Name, tt.wantName)
			}
		})
	}
}

func TestParseListQuery_ServerPageSize(t *testing.T) {
	q, err := parseListQuery(url.Values{}, 25)
	if err != nil {
		t.Fatal(err)
	}
	if q.PageSize != 25 {
		t.Errorf("PageSize = %d, want 25", q.PageSize)
	}
}

func TestCacheKey_StableForEquivalentQueries(t *testing.T) {
	a, _ := parseListQuery(url.Values{}, 10)
	b, _ := parseListQuery(url.Values{"page": {"0"}, "size": {"10"}}, 10)
	if cacheKey(a) != cacheKey(b) {
		t.Errorf("keys differ: %q vs %q", cacheKey(a), cacheKey(b))
	}

	c, _ := parseListQuery(url.Values{"name": {"veg"}}, 10)
	if cacheKey(a) == cacheKey(c) {
		t.Error("name filter should change the key")
	}
}

func TestParseID(t *testing.T) {
	if id, err := parseID(" 42 "); err != nil || id != 42 {
		t.Errorf("parseID(42) = %d, %v", id, err)
	}
	if _, err := parseID(""); !errors.Is(err, errNoSelection) {
		t.Errorf("empty id err = %v", err)
	}
	for _, bad := range []string{"0", "-1", "abc", "1.5"} {
		if _, err := parseID(bad); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("parseID(%q) err = %v, want ErrNotFound", bad, err)
		}
	}
}

func newParser(t *testing.T, body, contentType string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return p
}

func TestRequestBodyParser(t *testing.T) {
	t.Run("form", func(t *testing.T) {
		p := newParser(t, "expense=+Tea+&price=2%2C50&date=", "application/x-www-form-urlencoded")
		if p.IsJSON() {
			t.Error("form body reported as JSON")
		}
		if got := p.Get("expense"); got != "Tea" {
			t.Errorf("expense = %q", got)
		}
		if got := p.Get("price"); got != "2,50" {
			t.Errorf("price = %q", got)
		}
		if !p.Has("date") || p.Has("id") {
			t.Error("Has should reflect presence, not value")
		}
	})

	t.Run("json", func(t *testing.T) {
		p := newParser(t, `{"expense":"Tea","price":2.5,"date":null}`, "application/json")
		if !p.IsJSON() {
			t.Fatal("expected JSON")
		}
		if got := p.Get("price"); got != "2.5" {
			t.Errorf("price = %q", got)
		}
		if !p.Has("date") || p.Get("date") != "" {
			t.Errorf("null date: has=%v value=%q", p.Has("date"), p.Get("date"))
		}
	})

	t.Run("empty", func(t *testing.T) {
		p := newParser(t, "", "")
		if p.Has("expense") || p.Get("expense") != "" {
			t.Error("empty body should have no fields")
		}
	})

	t.Run("malformed json", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/expenses", strings.NewReader(`{"expense":`))
		p := NewRequestBodyParser(req)
		if err := p.Parse(); err == nil {
			t.Error("expected error")
		}
	})
}

func TestParseNewExpense(t *testing.T) {
	tests := []struct {
		body    string
		want    core.Expense
		wantErr error
	}{
		{body: "expense=Veg&price=40.5", want: core.Expense{Name: "Veg", Price: core.Money{Cents: 4050}}},
		{body: "expense=Veg&price=1&date=2024-03-09", want: core.Expense{Name: "Veg", Price: core.Money{Cents: 100}, Date: core.NewDate(2024, 3, 9)}},
		{body: "expense=Veg", wantErr: errMissingFields},
		{body: "price=3", wantErr: errMissingFields},
		{body: "expense=Veg&price=x", wantErr: core.ErrInvalidPrice},
		{body: "expense=Veg&price=-1", wantErr: core.ErrNegativePrice},
		{body: "expense=Veg&price=1&date=09/03/2024", wantErr: core.ErrInvalidDate},
	}

	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			got, err := parseNewExpense(newParser(t, tt.body, "application/x-www-form-urlencoded"))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseExpensePatch(t *testing.T) {
	p, err := parseExpensePatch(newParser(t, "price=5", "application/x-www-form-urlencoded"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != nil || p.Date != nil || p.Price == nil || p.Price.Cents != 500 {
		t.Errorf("patch = %+v", p)
	}

	p, err = parseExpensePatch(newParser(t, "expense=&date=", "application/x-www-form-urlencoded"))
	if err != nil {
		t.Fatal(err)
	}
	if p.Name == nil || *p.Name != "" {
		t.Error("present empty name should be set so validation rejects it")
	}
	if p.Date == nil || !p.Date.IsEmpty() {
		t.Error("present empty date should clear the date")
	}

	if _, err := parseExpensePatch(newParser(t, "price=", "application/x-www-form-urlencoded")); !errors.Is(err, core.ErrInvalidPrice) {
		t.Errorf("empty price err = %v, want ErrInvalidPrice", err)
	}
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  Tea  ":        "Tea",
		"Tea\x00\x07bag": "Teabag",
		"line\tbreak":    "line\tbreak",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		err  error
		code int
		msg  string
	}{
		{errMissingFields, http.StatusUnprocessableEntity, "Please enter both expense and price."},
		{errNoSelection, http.StatusUnprocessableEntity, "Please select a row to update."},
		{core.ErrEmptyName, http.StatusUnprocessableEntity, "Expense name cannot be empty."},
		{core.ErrNegativePrice, http.StatusUnprocessableEntity, "Price cannot be negative."},
		{core.ErrInvalidPrice, http.StatusUnprocessableEntity, "Price must be a valid number."},
		{core.ErrInvalidDate, http.StatusUnprocessableEntity, "Date must be a valid YYYY-MM-DD date."},
		{core.ErrDateRange, http.StatusUnprocessableEntity, "Start date must not be after end date."},
		{core.ErrNotFound, http.StatusNotFound, "Expense not found."},
		{errors.New("boom"), http.StatusInternalServerError, "Error saving expense"},
	}
	for _, tt := range tests {
		code, msg := errorMessage(tt.err)
		if code != tt.code || msg != tt.msg {
			t.Errorf("errorMessage(%v) = %d %q, want %d %q", tt.err, code, msg, tt.code, tt.msg)
		}
	}
}
