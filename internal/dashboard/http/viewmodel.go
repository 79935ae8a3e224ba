package dashboardhttp

import (
	"html/template"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/dashboard"
)

// DashboardViewModel is rendered by pages/dashboard.html.
type DashboardViewModel struct {
	Cards       []SummaryCard
	Charts      []ChartPanel
	PayloadJSON template.JS
	GeneratedAt time.Time
	Currency    string
}

// SummaryCard is one headline figure.
type SummaryCard struct {
	Label string
	Value string
	Tone  string
}

// ChartPanel wraps a server rendered chart and its filter controls.
type ChartPanel struct {
	Chart         string
	Title         string
	SurfaceID     string
	LevelFilterID string
	SVG           template.HTML
	Filterable    bool
	Periods       []PeriodOption
	Levels        []LevelOption
}

// PeriodOption is a period filter button.
type PeriodOption struct {
	Value  string
	Label  string
	Active bool
}

// LevelOption is an entry of the level select.
type LevelOption struct {
	Value    string
	Label    string
	Selected bool
}

var chartTitles = map[charts.ChartType]string{
	charts.ChartTemporal:      "Evolución mensual",
	charts.ChartExpenses:      "Gastos por categoría",
	charts.ChartMargin:        "Margen mensual",
	charts.ChartBusinessLines: "Ingresos por línea de negocio",
}

var filterPeriods = []string{"30", "90", "365", "all"}

func tone(v decimal.Decimal) string {
	if v.IsNegative() {
		return "danger"
	}
	return "success"
}

func (h *Handler) summaryCards(s dashboard.Summary) []SummaryCard {
	money := func(v decimal.Decimal) string {
		return h.formatter.FormatCurrency(v.InexactFloat64())
	}
	return []SummaryCard{
		{Label: "Ingresos totales", Value: money(s.TotalIngresos), Tone: "primary"},
		{Label: "Gastos totales", Value: money(s.TotalGastos), Tone: "warning"},
		{Label: "Resultado total", Value: money(s.ResultadoTotal), Tone: tone(s.ResultadoTotal)},
		{Label: "Ingresos del mes", Value: money(s.IngresosMes), Tone: "primary"},
		{Label: "Gastos del mes", Value: money(s.GastosMes), Tone: "warning"},
		{Label: "Resultado del mes", Value: money(s.ResultadoMes), Tone: tone(s.ResultadoMes)},
		{Label: "Margen de beneficio", Value: h.formatter.FormatPercentage(s.MargenBeneficio), Tone: "info"},
		{Label: "Ingreso medio diario", Value: money(s.IngresosDiarios), Tone: "muted"},
	}
}

func chartPanels(page *charts.Page, q dashboardQuery) []ChartPanel {
	contents := page.Contents()
	panels := make([]ChartPanel, 0, len(charts.ChartTypes))
	for _, chart := range charts.ChartTypes {
		panel := ChartPanel{
			Chart:         string(chart),
			Title:         chartTitles[chart],
			SurfaceID:     chart.SurfaceID(),
			LevelFilterID: chart.LevelFilterID(),
			SVG:           contents[chart.SurfaceID()],
		}
		if chart == charts.ChartBusinessLines {
			panel.Filterable = true
			period := q.Period
			if period == "" {
				period = "all"
			}
			for _, p := range filterPeriods {
				panel.Periods = append(panel.Periods, PeriodOption{Value: p, Label: charts.PeriodLabel(p), Active: p == period})
			}
			panel.Levels = append(panel.Levels, LevelOption{Value: "", Label: "Todos los niveles", Selected: q.Level == ""})
			for level := 1; level <= dashboard.MaxBusinessLineLevel; level++ {
				v := strconv.Itoa(level)
				panel.Levels = append(panel.Levels, LevelOption{Value: v, Label: "Nivel " + v, Selected: q.Level == v})
			}
		}
		panels = append(panels, panel)
	}
	return panels
}
