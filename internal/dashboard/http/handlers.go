package dashboardhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/singleflight"

	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/dashboard"
	"github.com/zento-erp/zento/internal/platform/httpx"
	"github.com/zento-erp/zento/internal/tenant"
	"github.com/zento-erp/zento/internal/view"
)

const requestTimeout = 5 * time.Second

// DashboardService defines the dashboard data contract used by the handler.
type DashboardService interface {
	Snapshot(ctx context.Context, now time.Time) (dashboard.Snapshot, error)
	BusinessLines(ctx context.Context, f dashboard.BusinessLineFilter) ([]charts.BusinessLinePoint, error)
	ExpenseCategories(ctx context.Context, f dashboard.ExpenseFilter) ([]charts.ExpenseCategoryPoint, error)
}

// Handler coordinates HTTP requests for the tenant dashboard.
type Handler struct {
	logger    *slog.Logger
	service   DashboardService
	templates *view.Engine
	library   charts.Library
	theme     *charts.Theme
	formatter *charts.Formatter
	expenses  ExpenseBook
	validate  *validator.Validate
	builds    singleflight.Group
	now       func() time.Time
}

// NewHandler constructs the dashboard HTTP handler. library draws the server
// rendered charts; formatter renders the summary amounts.
func NewHandler(logger *slog.Logger, service DashboardService, templates *view.Engine, library charts.Library, formatter *charts.Formatter) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if formatter == nil {
		formatter = charts.DefaultFormatter()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if name := field.Tag.Get("query"); name != "" {
			return name
		}
		return field.Name
	})
	return &Handler{
		logger:    logger,
		service:   service,
		templates: templates,
		library:   library,
		theme:     charts.DefaultTheme(),
		formatter: formatter,
		validate:  v,
		now:       dashboard.Now,
	}
}

// WithNow overrides the handler clock for testing.
func (h *Handler) WithNow(fn func() time.Time) {
	if fn != nil {
		h.now = fn
	}
}

type rangeQuery struct {
	StartDate string `query:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `query:"end_date" validate:"omitempty,datetime=2006-01-02"`
}

type businessLineQuery struct {
	rangeQuery
	Level string `query:"level" validate:"omitempty,oneof=1 2 3"`
}

type dashboardQuery struct {
	Period string `query:"period" validate:"omitempty,oneof=30 90 365 all"`
	Level  string `query:"level" validate:"omitempty,oneof=1 2 3"`
}

func (h *Handler) check(q any) map[string]string {
	err := h.validate.Struct(q)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[fe.Field()] = fmt.Sprintf("invalid value %q", fmt.Sprint(fe.Value()))
		}
		return fields
	}
	fields["general"] = err.Error()
	return fields
}

func (q rangeQuery) window() (dashboard.Window, error) {
	var w dashboard.Window
	if q.StartDate != "" {
		start, err := time.Parse(charts.DateLayout, q.StartDate)
		if err != nil {
			return w, err
		}
		w.Start = &start
	}
	if q.EndDate != "" {
		end, err := time.Parse(charts.DateLayout, q.EndDate)
		if err != nil {
			return w, err
		}
		w.End = &end
	}
	return w, nil
}

func readRange(r *http.Request) rangeQuery {
	values := r.URL.Query()
	return rangeQuery{
		StartDate: strings.TrimSpace(values.Get("start_date")),
		EndDate:   strings.TrimSpace(values.Get("end_date")),
	}
}

func (h *Handler) parseBusinessLineFilter(r *http.Request) (dashboard.BusinessLineFilter, map[string]string) {
	q := businessLineQuery{
		rangeQuery: readRange(r),
		Level:      strings.TrimSpace(r.URL.Query().Get("level")),
	}
	if fields := h.check(q); fields != nil {
		return dashboard.BusinessLineFilter{}, fields
	}
	window, err := q.window()
	if err != nil {
		return dashboard.BusinessLineFilter{}, map[string]string{"general": err.Error()}
	}
	f := dashboard.BusinessLineFilter{Window: window}
	if q.Level != "" {
		f.Level, _ = strconv.Atoi(q.Level)
	}
	return f, nil
}

func (h *Handler) parseExpenseFilter(r *http.Request) (dashboard.ExpenseFilter, map[string]string) {
	q := readRange(r)
	if fields := h.check(q); fields != nil {
		return dashboard.ExpenseFilter{}, fields
	}
	window, err := q.window()
	if err != nil {
		return dashboard.ExpenseFilter{}, map[string]string{"general": err.Error()}
	}
	return dashboard.ExpenseFilter{Window: window}, nil
}

func (h *Handler) handleBusinessLines(w http.ResponseWriter, r *http.Request) {
	f, fields := h.parseBusinessLineFilter(r)
	if fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	points, err := h.service.BusinessLines(ctx, f)
	if err != nil {
		h.respondServiceError(w, "load business lines", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"business_lines_data": points})
}

func (h *Handler) handleExpenses(w http.ResponseWriter, r *http.Request) {
	f, fields := h.parseExpenseFilter(r)
	if fields != nil {
		httpx.ValidationProblem(w, fields)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	points, err := h.service.ExpenseCategories(ctx, f)
	if err != nil {
		h.respondServiceError(w, "load expense categories", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"expenses_data": points})
}

func (h *Handler) handleChartConfigs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := h.snapshot(ctx)
	if err != nil {
		h.respondServiceError(w, "load dashboard", err)
		return
	}
	ctrl, err := h.controller(charts.DashboardPage(), nil)
	if err != nil {
		h.respondServiceError(w, "chart controller", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"charts": ctrl.Configs(snap.Payload())})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := dashboardQuery{
		Period: strings.TrimSpace(r.URL.Query().Get("period")),
		Level:  strings.TrimSpace(r.URL.Query().Get("level")),
	}
	if fields := h.check(q); fields != nil {
		http.Error(w, "Parámetros no válidos", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	snap, err := h.snapshot(ctx)
	if err != nil {
		h.handleServerError(w, "load dashboard", err)
		return
	}

	page := charts.DashboardPage()
	ctrl, err := h.controller(page, serviceSource{service: h.service})
	if err != nil {
		h.handleServerError(w, "chart controller", err)
		return
	}
	defer ctrl.Destroy()
	if !ctrl.Init(snap.Payload()) {
		h.handleServerError(w, "render charts", errors.New("chart controller not initialised"))
		return
	}
	if q.Period != "" || q.Level != "" {
		filter := charts.Filter{Chart: string(charts.ChartBusinessLines), Period: q.Period, Level: q.Level}
		if _, err := ctrl.RefreshBusinessLines(ctx, filter); err != nil {
			h.logger.Warn("refresh business lines", slog.Any("error", err))
		}
	}

	payload := charts.Payload{
		Temporal:      snap.Temporal,
		Expenses:      snap.Expenses,
		BusinessLines: ctrl.BusinessLines(),
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		h.handleServerError(w, "encode payload", err)
		return
	}

	vm := DashboardViewModel{
		Cards:       h.summaryCards(snap.Summary),
		Charts:      chartPanels(page, q),
		PayloadJSON: template.JS(raw),
		GeneratedAt: snap.GeneratedAt,
		Currency:    h.formatter.Currency(),
	}
	current, _ := tenant.FromContext(r.Context())
	data := view.TemplateData{
		Title:       "Panel financiero",
		Tenant:      current.Name,
		CurrentPath: r.URL.Path,
		Data:        vm,
	}
	if err := h.templates.Render(w, "pages/dashboard.html", data); err != nil {
		h.handleServerError(w, "render template", err)
	}
}

// snapshot loads the dashboard once per tenant at a time; concurrent page
// builds for the same tenant share the result. The shared build is detached
// from the caller that started it, so one client going away does not fail
// the others.
func (h *Handler) snapshot(ctx context.Context) (dashboard.Snapshot, error) {
	current, _ := tenant.FromContext(ctx)
	now := h.now()
	key := current.CacheKey() + ":" + now.Format(charts.DateLayout)
	resultChan := h.builds.DoChan(key, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), requestTimeout)
		defer cancel()
		return h.service.Snapshot(buildCtx, now)
	})
	select {
	case <-ctx.Done():
		return dashboard.Snapshot{}, ctx.Err()
	case res := <-resultChan:
		if res.Err != nil {
			return dashboard.Snapshot{}, res.Err
		}
		snap, ok := res.Val.(dashboard.Snapshot)
		if !ok {
			return dashboard.Snapshot{}, fmt.Errorf("dashboard: unexpected snapshot type %T", res.Val)
		}
		return snap, nil
	}
}

func (h *Handler) controller(page *charts.Page, source charts.BusinessLineSource) (*charts.Controller, error) {
	return charts.New(charts.Dependencies{
		Library:   h.library,
		Surfaces:  page,
		Theme:     h.theme,
		Formatter: h.formatter,
		Source:    source,
		Logger:    h.logger,
		Now:       h.now,
	})
}

func (h *Handler) respondServiceError(w http.ResponseWriter, context string, err error) {
	if errors.Is(err, dashboard.ErrInvalidRange) {
		httpx.ValidationProblem(w, map[string]string{"end_date": "end_date before start_date"})
		return
	}
	if errors.Is(err, dashboard.ErrInvalidLevel) {
		httpx.ValidationProblem(w, map[string]string{"level": err.Error()})
		return
	}
	h.logError(context, err)
	httpx.RespondError(w, err)
}

func (h *Handler) handleServerError(w http.ResponseWriter, context string, err error) {
	h.logError(context, err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (h *Handler) logError(context string, err error) {
	if h.logger != nil {
		h.logger.Error(context, slog.Any("error", err))
	}
}

// serviceSource serves business line refreshes straight from the service.
type serviceSource struct {
	service DashboardService
}

func (s serviceSource) BusinessLines(ctx context.Context, q charts.Query) ([]charts.BusinessLinePoint, error) {
	var f dashboard.BusinessLineFilter
	if !q.Start.IsZero() {
		start := q.Start
		f.Start = &start
	}
	if !q.End.IsZero() {
		end := q.End
		f.End = &end
	}
	if q.Level != "" {
		level, err := strconv.Atoi(q.Level)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", dashboard.ErrInvalidLevel, q.Level)
		}
		f.Level = level
	}
	return s.service.BusinessLines(ctx, f)
}

// HandleDashboardForTest exposes the dashboard handler for tests.
func (h *Handler) HandleDashboardForTest(w http.ResponseWriter, r *http.Request) {
	h.handleDashboard(w, r)
}
