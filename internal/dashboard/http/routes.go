package dashboardhttp

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/zento-erp/zento/internal/platform/httpx"
)

// APIRequestsPerMinute caps the JSON endpoints per client IP.
const APIRequestsPerMinute = 60

// MountRoutes registers the dashboard page, its JSON endpoints and, when an
// ExpenseBook is set, the expense entry form.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(APIRequestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)

	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/", h.handleDashboard)
		if h.expenses != nil {
			r.Get("/expenses/new", h.handleExpenseForm)
			r.Post("/expenses/new", h.handleExpenseSubmit)
		}
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/api/business-lines/", h.handleBusinessLines)
			gr.Get("/api/expenses/", h.handleExpenses)
			gr.Get("/api/charts/", h.handleChartConfigs)
		})
	})
}
