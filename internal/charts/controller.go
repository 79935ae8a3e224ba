package charts

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// ErrMissingDependency is returned when the controller is built without one of
// its collaborators.
var ErrMissingDependency = errors.New("charts: missing dependency")

// ChartType tags one of the dashboard charts.
type ChartType string

// Dashboard charts.
const (
	ChartTemporal      ChartType = "temporal"
	ChartExpenses      ChartType = "expenses"
	ChartMargin        ChartType = "margin"
	ChartBusinessLines ChartType = "businessLines"
)

// ChartTypes lists the dashboard charts in creation order.
var ChartTypes = []ChartType{ChartTemporal, ChartExpenses, ChartMargin, ChartBusinessLines}

// SurfaceID returns the fixed canvas id for the chart, e.g. "temporalChart".
func (t ChartType) SurfaceID() string {
	return string(t) + "Chart"
}

// LevelFilterID returns the id of the optional level select for the chart.
func (t ChartType) LevelFilterID() string {
	return string(t) + "-level-filter"
}

// State is the controller lifecycle state.
type State int

// Controller states.
const (
	StateUninitialized State = iota
	StateInitialized
)

func (s State) String() string {
	if s == StateInitialized {
		return "initialized"
	}
	return "uninitialized"
}

// Payload is the data the dashboard hands to the controller. Each bucket is a
// list of records as decoded from JSON, or a slice of the typed points.
type Payload struct {
	Temporal      any `json:"temporal_data"`
	Expenses      any `json:"expenses_data"`
	BusinessLines any `json:"business_lines_data"`
}

// Dependencies are the collaborators a Controller needs. Library, Surfaces,
// Theme and Formatter are required; Source enables business line refreshes.
type Dependencies struct {
	Library   Library
	Surfaces  SurfaceLocator
	Theme     *Theme
	Formatter *Formatter
	Source    BusinessLineSource
	Logger    *slog.Logger
	Now       func() time.Time
}

func (d Dependencies) validate() error {
	var missing []string
	if d.Library == nil {
		missing = append(missing, "library")
	}
	if d.Surfaces == nil {
		missing = append(missing, "surfaces")
	}
	if d.Theme == nil {
		missing = append(missing, "theme")
	}
	if d.Formatter == nil {
		missing = append(missing, "formatter")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Controller owns the dashboard charts rendered on one set of surfaces.
type Controller struct {
	deps    Dependencies
	factory *Factory
	logger  *slog.Logger

	mu     sync.Mutex
	state  State
	charts map[ChartType]Handle
	data   chartData

	seq      atomic.Uint64
	inflight sync.WaitGroup
}

type chartData struct {
	temporal      []TemporalPoint
	expenses      []ExpenseCategoryPoint
	businessLines []BusinessLinePoint
}

// New validates the dependencies and builds a controller.
func New(deps Dependencies) (*Controller, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Controller{
		deps:    deps,
		factory: NewFactory(deps.Library, deps.Theme),
		logger:  logger.With(slog.String("component", "dashboard_charts")),
		charts:  make(map[ChartType]Handle),
	}, nil
}

// Init renders every dashboard chart from data, tearing down charts from a
// previous Init first. It returns false without rendering anything when the
// controller lacks a dependency.
func (c *Controller) Init(data Payload) bool {
	if c == nil {
		slog.Default().Error("dashboard charts: controller not configured")
		return false
	}
	if err := c.deps.validate(); err != nil {
		c.log().Error("dashboard charts: dependency check failed", slog.Any("error", err))
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateInitialized {
		c.destroyLocked()
	}

	c.data = chartData{
		temporal:      TemporalPoints(SanitizeChartData(data.Temporal)),
		expenses:      ExpensePoints(SanitizeChartData(data.Expenses)),
		businessLines: BusinessLinePoints(SanitizeChartData(data.BusinessLines)),
	}
	c.createTemporalLocked(c.data.temporal)
	c.createExpensesLocked(c.data.expenses)
	c.createMarginLocked(c.data.temporal)
	c.createBusinessLinesLocked(c.data.businessLines)
	c.state = StateInitialized

	c.logger.Debug("dashboard charts initialised", slog.Int("charts", len(c.charts)))
	return true
}

// CreateTemporalChart renders revenue, expenses and profit per month.
func (c *Controller) CreateTemporalChart(points []TemporalPoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createTemporalLocked(points)
}

// CreateExpensesChart renders the expense category breakdown.
func (c *Controller) CreateExpensesChart(points []ExpenseCategoryPoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createExpensesLocked(points)
}

// CreateMarginChart renders the monthly margin bars.
func (c *Controller) CreateMarginChart(points []TemporalPoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createMarginLocked(points)
}

// CreateBusinessLinesChart renders revenue per business line.
func (c *Controller) CreateBusinessLinesChart(points []BusinessLinePoint) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.createBusinessLinesLocked(points)
}

// Destroy releases every chart. Calling it again is a no-op.
func (c *Controller) Destroy() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.destroyLocked()
}

// Handles returns a snapshot of the live chart handles.
func (c *Controller) Handles() map[ChartType]Handle {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[ChartType]Handle, len(c.charts))
	for k, v := range c.charts {
		out[k] = v
	}
	return out
}

// State returns the lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// BusinessLines returns the business line data currently plotted.
func (c *Controller) BusinessLines() []BusinessLinePoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]BusinessLinePoint(nil), c.data.businessLines...)
}

// Configs returns the chart configurations the controller renders for data,
// without touching any surface.
func (c *Controller) Configs(data Payload) map[ChartType]Config {
	temporal := TemporalPoints(SanitizeChartData(data.Temporal))
	out := map[ChartType]Config{
		ChartTemporal:      c.factory.Config(KindLine, c.temporalData(temporal), temporalOptions()),
		ChartExpenses:      c.factory.Config(KindDoughnut, c.expensesData(ExpensePoints(SanitizeChartData(data.Expenses))), expensesOptions()),
		ChartMargin:        c.factory.Config(KindBar, c.marginData(temporal), marginOptions()),
		ChartBusinessLines: c.factory.Config(KindBar, c.businessLinesData(BusinessLinePoints(SanitizeChartData(data.BusinessLines))), businessLinesOptions()),
	}
	return out
}

func (c *Controller) destroyLocked() {
	for chart, h := range c.charts {
		if h != nil {
			h.Destroy()
		}
		delete(c.charts, chart)
	}
	c.state = StateUninitialized
}

func (c *Controller) log() *slog.Logger {
	if c.logger != nil {
		return c.logger
	}
	return slog.Default()
}

// mountLocked resolves the chart surface, drops any previous handle for the
// chart and renders a new one unless there is no data.
func (c *Controller) mountLocked(chart ChartType, empty bool, render func(Surface) Handle) bool {
	id := chart.SurfaceID()
	surface, ok := c.deps.Surfaces.Surface(id)
	if !ok || surface == nil {
		c.log().Warn("chart surface not found", slog.String("chart", string(chart)), slog.String("surface", id))
		return false
	}
	if prev, ok := c.charts[chart]; ok {
		if prev != nil {
			prev.Destroy()
		}
		delete(c.charts, chart)
	}
	if empty {
		c.log().Debug("chart skipped, no data", slog.String("chart", string(chart)))
		return false
	}
	h := render(surface)
	if h == nil {
		c.log().Warn("chart library returned no handle", slog.String("chart", string(chart)))
		return false
	}
	c.charts[chart] = h
	return true
}

func (c *Controller) createTemporalLocked(points []TemporalPoint) bool {
	return c.mountLocked(ChartTemporal, len(points) == 0, func(s Surface) Handle {
		return c.factory.Line(s, c.temporalData(points), temporalOptions())
	})
}

func (c *Controller) createExpensesLocked(points []ExpenseCategoryPoint) bool {
	return c.mountLocked(ChartExpenses, len(points) == 0, func(s Surface) Handle {
		return c.factory.Doughnut(s, c.expensesData(points), expensesOptions())
	})
}

func (c *Controller) createMarginLocked(points []TemporalPoint) bool {
	return c.mountLocked(ChartMargin, len(points) == 0, func(s Surface) Handle {
		return c.factory.Bar(s, c.marginData(points), marginOptions())
	})
}

func (c *Controller) createBusinessLinesLocked(points []BusinessLinePoint) bool {
	return c.mountLocked(ChartBusinessLines, len(points) == 0, func(s Surface) Handle {
		return c.factory.Bar(s, c.businessLinesData(points), businessLinesOptions())
	})
}

func (c *Controller) temporalData(points []TemporalPoint) Data {
	labels := make([]string, 0, len(points))
	ingresos := make([]float64, 0, len(points))
	gastos := make([]float64, 0, len(points))
	beneficio := make([]float64, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Month)
		ingresos = append(ingresos, p.Ingresos)
		gastos = append(gastos, p.Gastos)
		beneficio = append(beneficio, p.Beneficio)
	}
	theme := c.deps.Theme
	return Data{
		Labels: labels,
		Datasets: []Dataset{
			{Label: "Ingresos", Data: ingresos, ValueLabels: c.currencyLabels(ingresos), BorderColor: theme.Success, Tension: 0.3},
			{Label: "Gastos", Data: gastos, ValueLabels: c.currencyLabels(gastos), BorderColor: theme.Danger, Tension: 0.3},
			{Label: "Beneficio", Data: beneficio, ValueLabels: c.currencyLabels(beneficio), BorderColor: theme.Primary, Tension: 0.3, Fill: true},
		},
	}
}

func (c *Controller) expensesData(points []ExpenseCategoryPoint) Data {
	labels := make([]string, 0, len(points))
	totals := make([]float64, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Name)
		totals = append(totals, p.Total)
	}
	return Data{
		Labels:   labels,
		Datasets: []Dataset{{Label: "Gastos", Data: totals, ValueLabels: c.currencyLabels(totals), BackgroundColor: c.deps.Theme.Colors(len(points))}},
	}
}

func (c *Controller) marginData(points []TemporalPoint) Data {
	labels := make([]string, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Month)
	}
	margins := MarginSeries(points)
	return Data{
		Labels: labels,
		Datasets: []Dataset{{
			Label:           "Margen (%)",
			Data:            margins,
			ValueLabels:     c.percentLabels(margins),
			BackgroundColor: MarginColors(points, c.deps.Theme),
		}},
	}
}

func (c *Controller) businessLinesData(points []BusinessLinePoint) Data {
	labels := make([]string, 0, len(points))
	values := make([]float64, 0, len(points))
	for _, p := range points {
		labels = append(labels, p.Name)
		values = append(values, p.Ingresos)
	}
	return Data{
		Labels:   labels,
		Datasets: []Dataset{{Label: "Ingresos", Data: values, ValueLabels: c.currencyLabels(values), BackgroundColor: c.deps.Theme.Colors(len(points))}},
	}
}

func (c *Controller) currencyLabels(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = c.deps.Formatter.FormatCurrency(v)
	}
	return out
}

func (c *Controller) percentLabels(values []float64) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = c.deps.Formatter.FormatPercentage(v)
	}
	return out
}

// MarginSeries returns the guarded margin percentage for each month.
func MarginSeries(points []TemporalPoint) []float64 {
	out := make([]float64, 0, len(points))
	for _, p := range points {
		out = append(out, p.Margin())
	}
	return out
}

// MarginColors colors each month by the sign of its profit: success when
// beneficio is zero or positive, danger otherwise.
func MarginColors(points []TemporalPoint, theme *Theme) []string {
	if theme == nil {
		theme = DefaultTheme()
	}
	out := make([]string, 0, len(points))
	for _, p := range points {
		if p.Beneficio >= 0 {
			out = append(out, theme.Success)
		} else {
			out = append(out, theme.Danger)
		}
	}
	return out
}

func temporalOptions() Options {
	return Options{
		"plugins": map[string]any{
			"legend": map[string]any{"position": "top"},
			"title":  map[string]any{"display": true, "text": "Evolución temporal"},
		},
		"scales": map[string]any{
			"y": map[string]any{"beginAtZero": true, "ticks": map[string]any{"format": "currency"}},
		},
	}
}

func expensesOptions() Options {
	return Options{
		"cutout": "60%",
		"plugins": map[string]any{
			"legend": map[string]any{"position": "right"},
			"title":  map[string]any{"display": true, "text": "Gastos por categoría"},
		},
	}
}

func marginOptions() Options {
	return Options{
		"plugins": map[string]any{
			"legend": map[string]any{"display": false},
			"title":  map[string]any{"display": true, "text": "Margen de beneficio"},
		},
		"scales": map[string]any{
			"y": map[string]any{"ticks": map[string]any{"format": "percent"}},
		},
	}
}

func businessLinesOptions() Options {
	return Options{
		"indexAxis": "y",
		"plugins": map[string]any{
			"legend": map[string]any{"display": false},
			"title":  map[string]any{"display": true, "text": "Ingresos por línea de negocio"},
		},
	}
}
