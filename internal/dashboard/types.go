// Package dashboard aggregates the financial figures and chart series shown on
// the tenant dashboard.
package dashboard

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/zento-erp/zento/internal/charts"
)

var (
	// ErrInvalidRange is returned when a filter ends before it starts.
	ErrInvalidRange = errors.New("dashboard: end date before start date")
	// ErrInvalidLevel is returned when a business line level is outside 1..3.
	ErrInvalidLevel = errors.New("dashboard: business line level out of range")
)

// MaxBusinessLineLevel is the depth of the business line hierarchy.
const MaxBusinessLineLevel = 3

// Summary holds the headline figures of the dashboard.
type Summary struct {
	TotalIngresos   decimal.Decimal `json:"total_ingresos"`
	TotalGastos     decimal.Decimal `json:"total_gastos"`
	ResultadoTotal  decimal.Decimal `json:"resultado_total"`
	IngresosMes     decimal.Decimal `json:"ingresos_mes"`
	GastosMes       decimal.Decimal `json:"gastos_mes"`
	ResultadoMes    decimal.Decimal `json:"resultado_mes"`
	MargenBeneficio float64         `json:"margen_beneficio"`
	IngresosDiarios decimal.Decimal `json:"ingresos_diarios"`
}

// Totals are revenue and expense sums over a window.
type Totals struct {
	Gross    decimal.Decimal
	Refunded decimal.Decimal
	Gastos   decimal.Decimal
}

// Ingresos returns net revenue: gross payments minus refunds.
func (t Totals) Ingresos() decimal.Decimal {
	return NetRevenue(t.Gross, t.Refunded)
}

// NetRevenue subtracts refunds from gross payments.
func NetRevenue(gross, refunded decimal.Decimal) decimal.Decimal {
	return gross.Sub(refunded)
}

// MonthAmount is an amount bucketed by calendar month.
type MonthAmount struct {
	Month time.Time
	Total decimal.Decimal
}

// LineRevenue is the net revenue of one business line.
type LineRevenue struct {
	ID       int64
	Name     string
	Level    int
	Gross    decimal.Decimal
	Refunded decimal.Decimal
	Services int
}

// Net returns the line's net revenue.
func (l LineRevenue) Net() decimal.Decimal {
	return NetRevenue(l.Gross, l.Refunded)
}

// CategoryTotal is the amount spent in one expense category.
type CategoryTotal struct {
	ID    int64
	Name  string
	Total decimal.Decimal
	Count int
}

// Window bounds queries by date. Nil bounds are open.
type Window struct {
	Start *time.Time
	End   *time.Time
}

// Validate checks the window is ordered.
func (w Window) Validate() error {
	if w.Start != nil && w.End != nil && w.End.Before(*w.Start) {
		return ErrInvalidRange
	}
	return nil
}

func (w Window) token() string {
	return dateToken(w.Start) + ":" + dateToken(w.End)
}

func dateToken(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(charts.DateLayout)
}

// BusinessLineFilter selects business lines. Level 0 means every sub-line
// below the top level, as the dashboard shows by default.
type BusinessLineFilter struct {
	Window
	Level int
}

// Validate checks the level and date window.
func (f BusinessLineFilter) Validate() error {
	if f.Level < 0 || f.Level > MaxBusinessLineLevel {
		return fmt.Errorf("%w: %d", ErrInvalidLevel, f.Level)
	}
	return f.Window.Validate()
}

// ExpenseFilter selects expenses by date.
type ExpenseFilter struct {
	Window
}

// Snapshot is everything the dashboard page renders.
type Snapshot struct {
	Summary       Summary                       `json:"summary"`
	Temporal      []charts.TemporalPoint        `json:"temporal_data"`
	BusinessLines []charts.BusinessLinePoint    `json:"business_lines_data"`
	Expenses      []charts.ExpenseCategoryPoint `json:"expenses_data"`
	GeneratedAt   time.Time                     `json:"generated_at"`
}

// Payload returns the chart data of the snapshot.
func (s Snapshot) Payload() charts.Payload {
	return charts.Payload{
		Temporal:      s.Temporal,
		Expenses:      s.Expenses,
		BusinessLines: s.BusinessLines,
	}
}
