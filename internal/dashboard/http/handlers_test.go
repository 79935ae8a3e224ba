package dashboardhttp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/charts/svg"
	"github.com/zento-erp/zento/internal/dashboard"
	"github.com/zento-erp/zento/internal/tenant"
	"github.com/zento-erp/zento/internal/view"
)

type stubService struct {
	mu        sync.Mutex
	snapshot  dashboard.Snapshot
	err       error
	lines     []charts.BusinessLinePoint
	expenses  []charts.ExpenseCategoryPoint
	lineCalls []dashboard.BusinessLineFilter
	expCalls  []dashboard.ExpenseFilter
	snapCalls int
	snapErrs  []error
	entered   chan struct{}
	gate      chan struct{}
}

func (s *stubService) Snapshot(ctx context.Context, now time.Time) (dashboard.Snapshot, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapCalls++
	s.snapErrs = append(s.snapErrs, ctx.Err())
	snap := s.snapshot
	snap.GeneratedAt = now
	return snap, s.err
}

func (s *stubService) BusinessLines(ctx context.Context, f dashboard.BusinessLineFilter) ([]charts.BusinessLinePoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lineCalls = append(s.lineCalls, f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.lines, s.err
}

func (s *stubService) ExpenseCategories(ctx context.Context, f dashboard.ExpenseFilter) ([]charts.ExpenseCategoryPoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expCalls = append(s.expCalls, f)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return s.expenses, s.err
}

var testNow = time.Date(2025, 3, 15, 9, 30, 0, 0, time.UTC)

func newStubService() *stubService {
	return &stubService{
		snapshot: dashboard.Snapshot{
			Summary: dashboard.Summary{
				TotalIngresos:   decimal.RequireFromString("12500"),
				TotalGastos:     decimal.RequireFromString("4500"),
				ResultadoTotal:  decimal.RequireFromString("8000"),
				MargenBeneficio: 64,
			},
			Temporal: []charts.TemporalPoint{
				{Month: "Jan 2025", Ingresos: 1000, Gastos: 400, Beneficio: 600},
				{Month: "Feb 2025", Ingresos: 800, Gastos: 900, Beneficio: -100},
			},
			BusinessLines: []charts.BusinessLinePoint{{Name: "Clínica", Ingresos: 1750}},
			Expenses:      []charts.ExpenseCategoryPoint{{Name: "Alquiler", Total: 800}},
		},
		lines:    []charts.BusinessLinePoint{{Name: "Online", Ingresos: 500}},
		expenses: []charts.ExpenseCategoryPoint{{Name: "Software", Total: 120.5}},
	}
}

func newTestHandler(t *testing.T, service DashboardService) *Handler {
	t.Helper()
	templates, err := view.NewEngine()
	if err != nil {
		t.Fatalf("parse templates: %v", err)
	}
	handler := NewHandler(nil, service, templates, svg.NewLibrary(nil, nil), nil)
	handler.WithNow(func() time.Time { return testNow })
	return handler
}

func newTestRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func TestDashboardRendersChartsAndSummary(t *testing.T) {
	handler := newTestHandler(t, newStubService())
	req := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	req = req.WithContext(tenant.WithTenant(req.Context(), tenant.Tenant{Name: "Clínica Norte", Schema: "norte"}))
	rr := httptest.NewRecorder()
	newTestRouter(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{
		"Panel financiero",
		"Clínica Norte",
		"12.500,00 €",
		"64.0%",
		`id="temporalChart"`,
		`id="businessLines-level-filter"`,
		"<svg",
		`id="dashboard-data"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in response", want)
		}
	}
}

func TestDashboardFilterRefreshesBusinessLines(t *testing.T) {
	service := newStubService()
	handler := newTestHandler(t, service)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/?period=30&level=2", nil)
	rr := httptest.NewRecorder()
	handler.HandleDashboardForTest(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if len(service.lineCalls) != 1 {
		t.Fatalf("expected one business line refresh, got %d", len(service.lineCalls))
	}
	f := service.lineCalls[0]
	if f.Level != 2 || f.Start == nil || f.End == nil {
		t.Fatalf("unexpected refresh filter %+v", f)
	}
	if want := testNow.AddDate(0, 0, -30); !f.Start.Equal(want) {
		t.Fatalf("expected start %s, got %s", want, f.Start)
	}
	if !strings.Contains(rr.Body.String(), "Online") {
		t.Fatalf("expected refreshed business lines in payload")
	}
}

func TestDashboardRejectsUnknownPeriod(t *testing.T) {
	handler := newTestHandler(t, newStubService())
	req := httptest.NewRequest(http.MethodGet, "/dashboard/?period=7", nil)
	rr := httptest.NewRecorder()
	handler.HandleDashboardForTest(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestDashboardServiceFailure(t *testing.T) {
	service := newStubService()
	service.err = errors.New("db down")
	handler := newTestHandler(t, service)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/", nil)
	rr := httptest.NewRecorder()
	handler.HandleDashboardForTest(rr, req)
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
}

func TestBusinessLinesEndpointContract(t *testing.T) {
	service := newStubService()
	handler := newTestHandler(t, service)
	req := httptest.NewRequest(http.MethodGet, "/dashboard/api/business-lines/?start_date=2025-01-01&end_date=2025-03-01&level=3", nil)
	rr := httptest.NewRecorder()
	newTestRouter(handler).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("unexpected content type %s", ct)
	}
	var body map[string][]map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	lines := body["business_lines_data"]
	if len(lines) != 1 || lines[0]["name"] != "Online" || lines[0]["ingresos"] != float64(500) {
		t.Fatalf("unexpected payload %v", body)
	}
	f := service.lineCalls[0]
	if f.Level != 3 || f.Start.Format(charts.DateLayout) != "2025-01-01" || f.End.Format(charts.DateLayout) != "2025-03-01" {
		t.Fatalf("unexpected filter %+v", f)
	}
}

func TestBusinessLinesEndpointValidation(t *testing.T) {
	cases := map[string]string{
		"bad date":     "/dashboard/api/business-lines/?start_date=01-01-2025",
		"bad level":    "/dashboard/api/business-lines/?level=9",
		"text level":   "/dashboard/api/business-lines/?level=abc",
		"inverted":     "/dashboard/api/business-lines/?start_date=2025-03-01&end_date=2025-01-01",
		"expense date": "/dashboard/api/expenses/?end_date=2025-13-01",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			handler := newTestHandler(t, newStubService())
			rr := httptest.NewRecorder()
			newTestRouter(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
			if ct := rr.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Fatalf("expected problem json, got %s", ct)
			}
		})
	}
}

func TestExpensesEndpoint(t *testing.T) {
	handler := newTestHandler(t, newStubService())
	rr := httptest.NewRecorder()
	newTestRouter(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/api/expenses/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"expenses_data":[{"name":"Software","total":120.5}]`) {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestChartConfigsEndpoint(t *testing.T) {
	handler := newTestHandler(t, newStubService())
	rr := httptest.NewRecorder()
	newTestRouter(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/dashboard/api/charts/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Charts map[string]charts.Config `json:"charts"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Charts) != 4 {
		t.Fatalf("expected four chart configs, got %d", len(body.Charts))
	}
	if body.Charts["temporal"].Type != charts.KindLine || body.Charts["expenses"].Type != charts.KindDoughnut {
		t.Fatalf("unexpected chart kinds %+v", body.Charts)
	}
	if got := body.Charts["margin"].Data.Datasets[0].Data; len(got) != 2 || got[0] != 60 || got[1] != -12.5 {
		t.Fatalf("unexpected margin series %v", got)
	}
}

func TestAPIRateLimit(t *testing.T) {
	handler := newTestHandler(t, newStubService())
	router := newTestRouter(handler)
	var last int
	for i := 0; i <= APIRequestsPerMinute; i++ {
		req := httptest.NewRequest(http.MethodGet, "/dashboard/api/expenses/", nil)
		req.RemoteAddr = "203.0.113.7:4000"
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d requests, got %d", APIRequestsPerMinute, last)
	}
}

func TestSharedSnapshotSurvivesCallerCancel(t *testing.T) {
	service := newStubService()
	service.entered = make(chan struct{}, 2)
	service.gate = make(chan struct{})
	handler := newTestHandler(t, service)

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := handler.snapshot(ctx)
		firstErr <- err
	}()
	<-service.entered
	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected first caller to see its own cancel, got %v", err)
	}

	secondErr := make(chan error, 1)
	go func() {
		_, err := handler.snapshot(context.Background())
		secondErr <- err
	}()
	close(service.gate)
	if err := <-secondErr; err != nil {
		t.Fatalf("expected shared build to succeed, got %v", err)
	}

	service.mu.Lock()
	defer service.mu.Unlock()
	if len(service.snapErrs) == 0 || service.snapErrs[0] != nil {
		t.Fatalf("shared build context was cancelled: %v", service.snapErrs)
	}
}
