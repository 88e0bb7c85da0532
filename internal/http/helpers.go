package http

import (
	"errors"
	"fmt"
	"html/template"
	"net/http"

	"tracker/internal/core"
)

// templateFuncs are the helpers available to every page template.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money": func(m core.Money) string { return m.String() },
		"date": func(d core.Date) string {
			if d.IsEmpty() {
				return "-"
			}
			return d.String()
		},
		"add": func(a, b int) int { return a + b },
		"pageLink": func(q core.ListQuery, page int) string {
			q.Page = page
			return "/ui/expenses?" + queryValues(q).Encode()
		},
		"editLink": func(q core.ListQuery, id int64) string {
			v := queryValues(q)
			v.Set("edit", fmt.Sprint(id))
			return "/?" + v.Encode()
		},
	}
}

// errorMessage maps an error to the status code and message shown to the user.
func errorMessage(err error) (int, string) {
	switch {
	case errors.Is(err, errMissingFields), errors.Is(err, core.ErrEmptyPrice):
		return http.StatusUnprocessableEntity, "Please enter both expense and price."
	case errors.Is(err, errNoSelection):
		return http.StatusUnprocessableEntity, "Please select a row to update."
	case errors.Is(err, core.ErrEmptyName):
		return http.StatusUnprocessableEntity, "Expense name cannot be empty."
	case errors.Is(err, core.ErrNameTooLong):
		return http.StatusUnprocessableEntity, fmt.Sprintf("Expense name cannot exceed %d characters.", core.MaxNameLength)
	case errors.Is(err, core.ErrNegativePrice):
		return http.StatusUnprocessableEntity, "Price cannot be negative."
	case errors.Is(err, core.ErrInvalidPrice):
		return http.StatusUnprocessableEntity, "Price must be a valid number."
	case errors.Is(err, core.ErrInvalidDate):
		return http.StatusUnprocessableEntity, "Date must be a valid YYYY-MM-DD date."
	case errors.Is(err, core.ErrDateRange):
		return http.StatusUnprocessableEntity, "Start date must not be after end date."
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound, "Expense not found."
	default:
		return http.StatusInternalServerError, "Error saving expense"
	}
}
