package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"tracker/internal/core"
	applog "tracker/internal/log"
)

type apiExpense struct {
	ID    int64  `json:"id"`
	Name  string `json:"expense"`
	Price string `json:"price"`
	Date  string `json:"date,omitempty"`
}

type apiPage struct {
	Items       []apiExpense `json:"items"`
	Page        int          `json:"page"`
	PageSize    int          `json:"page_size"`
	TotalItems  int          `json:"total_items"`
	TotalPages  int          `json:"total_pages"`
	PageTotal   string       `json:"page_total"`
	FilterTotal string       `json:"filter_total"`
}

type apiError struct {
	Error string `json:"error"`
}

func toAPIExpense(e core.Expense) apiExpense {
	return apiExpense{ID: e.ID, Name: e.Name, Price: e.Price.String(), Date: e.Date.String()}
}

func toAPIPage(p core.Page) apiPage {
	items := make([]apiExpense, 0, len(p.Items))
	for _, e := range p.Items {
		items = append(items, toAPIExpense(e))
	}
	return apiPage{
		Items:       items,
		Page:        p.Page,
		PageSize:    p.PageSize,
		TotalItems:  p.TotalItems,
		TotalPages:  p.TotalPages,
		PageTotal:   p.PageTotal.String(),
		FilterTotal: p.FilterTotal.String(),
	}
}

func (s *Server) handleAPIListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := parseListQuery(r.URL.Query(), s.pageSize)
	if err != nil {
		code, msg := errorMessage(err)
		writeJSON(w, code, apiError{Error: msg})
		return
	}

	page, err := s.listPage(ctx, q)
	if err != nil {
		code, msg := errorMessage(err)
		if code == http.StatusInternalServerError {
			msg = "Error loading expenses"
			applog.FromContext(ctx).LogError(ctx, "Failed to list expenses", err, applog.OpList, applog.NewFields())
		}
		writeJSON(w, code, apiError{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, toAPIPage(page))
}

func (s *Server) handleAPIGetExpense(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, apiError{Error: "Expense not found."})
		return
	}

	e, err := s.service.GetExpense(ctx, id)
	if err != nil {
		code, msg := errorMessage(err)
		if code == http.StatusInternalServerError {
			msg = "Error loading expense"
			applog.FromContext(ctx).LogError(ctx, "Failed to get expense", err, applog.OpRead, applog.NewFields())
		}
		writeJSON(w, code, apiError{Error: msg})
		return
	}
	writeJSON(w, http.StatusOK, toAPIExpense(e))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiStats struct {
	Requests         int64 `json:"requests"`
	ServerErrors     int64 `json:"server_errors"`
	LastResponseUsec int64 `json:"last_response_us"`
	RateLimited      int64 `json:"rate_limited"`
	RateLimitClients int64 `json:"rate_limit_clients"`
	CachedPages      int   `json:"cached_pages"`
}

// handleAPIStats reports in-process request, rate limit and cache counters.
func (s *Server) handleAPIStats(w http.ResponseWriter, _ *http.Request) {
	tm := s.tracer.GetMetrics()
	lm := s.limiter.GetMetrics()
	writeJSON(w, http.StatusOK, apiStats{
		Requests:         tm.TotalRequests,
		ServerErrors:     tm.ServerErrors,
		LastResponseUsec: tm.LastResponseTime,
		RateLimited:      lm.Rejected,
		RateLimitClients: lm.ClientCount,
		CachedPages:      s.pageCache.Size(),
	})
}
