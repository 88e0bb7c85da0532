package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"time"

	"tracker/internal/core"
	applog "tracker/internal/log"
)

// pageView is the data passed to index.html and expenses_table.html.
type pageView struct {
	Query    core.ListQuery
	Page     core.Page
	Selected *core.Expense
	Error    string
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.service.Ping(ctx); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", "error", err)
		http.Error(w, "not ready", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := applog.FromContext(ctx)
	status := http.StatusOK
	view := pageView{}

	q, err := parseListQuery(r.URL.Query(), s.pageSize)
	if err != nil {
		status, view.Error = errorMessage(err)
		q = core.ListQuery{PageSize: s.pageSize}.Normalize()
	}
	view.Query = q

	if editID := r.URL.Query().Get("edit"); editID != "" {
		if id, err := parseID(editID); err != nil {
			view.Error = "Expense not found."
		} else if e, err := s.service.GetExpense(ctx, id); err != nil {
			_, view.Error = errorMessage(err)
			if !errors.Is(err, core.ErrNotFound) {
				logger.LogError(ctx, "Failed to load selected expense", err, applog.OpRead, applog.NewFields())
			}
		} else {
			view.Selected = &e
		}
	}

	page, err := s.listPage(ctx, q)
	if err != nil {
		status, view.Error = errorMessage(err)
		if status == http.StatusInternalServerError {
			view.Error = "Error loading expenses"
			logger.LogError(ctx, "Failed to list expenses", err, applog.OpList, applog.NewFields())
		}
		page = core.Page{Page: 1, PageSize: q.PageSize, TotalPages: 1}
	}
	view.Page = page

	s.render(w, r, status, "index.html", view)
}

// handleExpensesTable renders the table partial for HTMX refreshes.
func (s *Server) handleExpensesTable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseListQuery(r.URL.Query(), s.pageSize)
	if err != nil {
		code, msg := errorMessage(err)
		errorResponseFor(code, msg).Write(w)
		return
	}

	page, err := s.listPage(ctx, q)
	if err != nil {
		code, msg := errorMessage(err)
		if code == http.StatusInternalServerError {
			msg = "Error loading expenses"
			applog.FromContext(ctx).LogError(ctx, "Failed to list expenses", err, applog.OpList, applog.NewFields())
		}
		errorResponseFor(code, msg).Write(w)
		return
	}

	s.render(w, r, http.StatusOK, "expenses_table.html", pageView{Query: q, Page: page})
}

// render executes a template into a buffer so a failure never leaves a
// half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		fields := applog.NewFields()
		fields["template"] = name
		applog.FromContext(r.Context()).LogError(r.Context(), "Template execution failed", err, applog.OpRender, fields)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
