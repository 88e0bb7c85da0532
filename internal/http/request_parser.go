// Package http provides HTTP server and handler implementations.
//
// This file implements utilities for parsing and validating HTTP request data:
// listing queries, expense ids and expense bodies sent either as HTMX forms or
// as JSON.

package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"tracker/internal/core"
)

// maxBodyBytes bounds request bodies read by RequestBodyParser.
const maxBodyBytes = 64 << 10

var (
	errMissingFields = errors.New("expense and price are required")
	errNoSelection   = errors.New("no expense selected")
)

// parseListQuery builds a normalized listing query from URL parameters.
// Unparseable paging values fall back to the defaults; a "date" parameter
// selects a single day and takes precedence over from/to.
func parseListQuery(values url.Values, defaultPageSize int) (core.ListQuery, error) {
	q := core.ListQuery{
		Page:     atoiOrZero(values.Get("page")),
		PageSize: atoiOrZero(values.Get("size")),
		Name:     sanitizeInput(values.Get("name")),
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}

	if day := strings.TrimSpace(values.Get("date")); day != "" {
		d, err := core.ParseDate(day)
		if err != nil {
			return core.ListQuery{}, err
		}
		q.From, q.To = d, d
		return q.Normalize(), nil
	}

	var err error
	if q.From, err = core.ParseDate(values.Get("from")); err != nil {
		return core.ListQuery{}, err
	}
	if q.To, err = core.ParseDate(values.Get("to")); err != nil {
		return core.ListQuery{}, err
	}
	return q.Normalize(), nil
}

// queryValues is the inverse of parseListQuery, used to build pager links.
func queryValues(q core.ListQuery) url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("size", strconv.Itoa(q.PageSize))
	if !q.From.IsEmpty() {
		v.Set("from", q.From.String())
	}
	if !q.To.IsEmpty() {
		v.Set("to", q.To.String())
	}
	if q.Name != "" {
		v.Set("name", q.Name)
	}
	return v
}

// cacheKey identifies a normalized query in the page cache.
func cacheKey(q core.ListQuery) string {
	return queryValues(q).Encode()
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

// parseID parses a positive expense id.
func parseID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errNoSelection
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, core.ErrNotFound
	}
	return id, nil
}

// RequestBodyParser handles different content types for request body parsing.
// It supports both JSON and form-encoded data, commonly used with HTMX.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
// It reads the body once and stores it for subsequent parsing.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	}
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Has reports whether key was sent at all, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a sanitized string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// parseNewExpense reads the input panel of a create request.
func parseNewExpense(p *RequestBodyParser) (core.Expense, error) {
	name := p.Get("expense")
	priceStr := p.Get("price")
	if name == "" || priceStr == "" {
		return core.Expense{}, errMissingFields
	}

	price, err := core.ParsePrice(priceStr)
	if err != nil {
		return core.Expense{}, err
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		return core.Expense{}, err
	}
	return core.Expense{Name: name, Price: price, Date: date}, nil
}

// parseExpensePatch reads an update request. Fields that are absent stay
// untouched; an empty date clears the stored one.
func parseExpensePatch(p *RequestBodyParser) (core.ExpensePatch, error) {
	var patch core.ExpensePatch

	if p.Has("expense") {
		name := p.Get("expense")
		patch.Name = &name
	}
	if p.Has("price") {
		price, err := core.ParsePrice(p.Get("price"))
		if errors.Is(err, core.ErrEmptyPrice) {
			return core.ExpensePatch{}, core.ErrInvalidPrice
		}
		if err != nil {
			return core.ExpensePatch{}, err
		}
		patch.Price = &price
	}
	if p.Has("date") {
		date, err := core.ParseDate(p.Get("date"))
		if err != nil {
			return core.ExpensePatch{}, err
		}
		patch.Date = &date
	}
	return patch, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
