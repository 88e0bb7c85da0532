package http

import (
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tracker/internal/core"
	applog "tracker/internal/log"
)

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, p, http.StatusBadRequest, "Invalid request format")
		return
	}

	exp, err := parseNewExpense(p)
	if err != nil {
		code, msg := errorMessage(err)
		s.writeError(w, p, code, msg)
		return
	}

	saved, err := s.service.CreateExpense(ctx, exp)
	if err != nil {
		code, msg := errorMessage(err)
		if code == http.StatusInternalServerError {
			logger.LogError(ctx, "Expense create failed", err, applog.OpCreate, applog.NewFields().WithExpense(exp))
		}
		s.writeError(w, p, code, msg)
		return
	}
	s.invalidate()
	logger.InfoContext(ctx, "Expense created", applog.NewFields().WithExpense(saved).ToSlice()...)

	if p.IsJSON() {
		writeJSON(w, http.StatusCreated, toAPIExpense(saved))
		return
	}
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerExpenseCreated(saved.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Expense added").
		BodyHTML(`<div class="success">Added ` + template.HTMLEscapeString(saved.Name) + ` (` + saved.Price.String() + `)</div>`).
		Write(w)
}

// handleUpdateExpense applies a partial update. The id comes from the path,
// or from the form's hidden "id" field when posted to /expenses.
func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		s.writeError(w, p, http.StatusBadRequest, "Invalid request format")
		return
	}

	rawID := chi.URLParam(r, "id")
	if rawID == "" {
		rawID = p.Get("id")
	}
	id, err := parseID(rawID)
	if err != nil {
		code, msg := errorMessage(err)
		s.writeError(w, p, code, msg)
		return
	}

	patch, err := parseExpensePatch(p)
	if err != nil {
		code, msg := errorMessage(err)
		s.writeError(w, p, code, msg)
		return
	}

	updated, err := s.service.UpdateExpense(ctx, id, patch)
	if err != nil {
		code, msg := errorMessage(err)
		if code == http.StatusInternalServerError {
			fields := applog.NewFields()
			fields[applog.FieldExpenseID] = id
			logger.LogError(ctx, "Expense update failed", err, applog.OpUpdate, fields)
		}
		s.writeError(w, p, code, msg)
		return
	}
	s.invalidate()
	logger.InfoContext(ctx, "Expense updated", applog.NewFields().WithExpense(updated).ToSlice()...)

	if p.IsJSON() {
		writeJSON(w, http.StatusOK, toAPIExpense(updated))
		return
	}
	NewHTMXResponse().
		TriggerExpenseUpdated(updated.ID).
		TriggerFormReset().
		TriggerSuccessNotification("Expense updated").
		BodyHTML(`<div class="success">Updated ` + template.HTMLEscapeString(updated.Name) + `</div>`).
		Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		code, msg := errorMessage(core.ErrNotFound)
		s.writeError(w, nil, code, msg)
		return
	}

	fields := applog.NewFields()
	fields[applog.FieldExpenseID] = id

	if err := s.service.DeleteExpense(ctx, id); err != nil {
		code, msg := errorMessage(err)
		if code == http.StatusInternalServerError {
			msg = "Error deleting expense"
			logger.LogError(ctx, "Expense delete failed", err, applog.OpDelete, fields)
		}
		s.writeError(w, nil, code, msg)
		return
	}
	s.invalidate()
	logger.InfoContext(ctx, "Expense deleted", fields.ToSlice()...)

	NewHTMXResponse().
		TriggerExpenseDeleted(id).
		TriggerSuccessNotification("Expense deleted").
		BodyHTML(`<div class="success">Expense deleted</div>`).
		Write(w)
}

// writeError answers in the format the client used: JSON for JSON bodies,
// an HTMX error fragment otherwise.
func (s *Server) writeError(w http.ResponseWriter, p *RequestBodyParser, code int, msg string) {
	if p != nil && p.IsJSON() {
		writeJSON(w, code, apiError{Error: msg})
		return
	}
	errorResponseFor(code, msg).Write(w)
}

func errorResponseFor(code int, msg string) *HTMXResponseBuilder {
	switch code {
	case http.StatusBadRequest:
		return BadRequestError(msg)
	case http.StatusNotFound:
		return NotFoundError(msg)
	case http.StatusUnprocessableEntity:
		return UnprocessableEntityError(msg)
	case http.StatusInternalServerError:
		return InternalServerError(msg)
	default:
		return ErrorResponse(code, msg)
	}
}
