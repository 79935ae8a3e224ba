package charts

import "fmt"

// TemporalPoint is one month of revenue, expenses and profit.
// Beneficio is taken as supplied and is not recomputed from the other two.
type TemporalPoint struct {
	Month     string  `json:"month"`
	Ingresos  float64 `json:"ingresos"`
	Gastos    float64 `json:"gastos"`
	Beneficio float64 `json:"beneficio"`
}

// Margin returns the guarded profit margin for the month.
func (p TemporalPoint) Margin() float64 {
	return CalculateMargin(p.Beneficio, p.Ingresos)
}

// Record converts the point into a payload record.
func (p TemporalPoint) Record() map[string]any {
	return map[string]any{"month": p.Month, "ingresos": p.Ingresos, "gastos": p.Gastos, "beneficio": p.Beneficio}
}

// ExpenseCategoryPoint is the total spent in one expense category.
type ExpenseCategoryPoint struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// Record converts the point into a payload record.
func (p ExpenseCategoryPoint) Record() map[string]any {
	return map[string]any{"name": p.Name, "total": p.Total}
}

// BusinessLinePoint is the net revenue attributed to one business line.
type BusinessLinePoint struct {
	Name     string  `json:"name"`
	Ingresos float64 `json:"ingresos"`
}

// Record converts the point into a payload record.
func (p BusinessLinePoint) Record() map[string]any {
	return map[string]any{"name": p.Name, "ingresos": p.Ingresos}
}

// TemporalPoints decodes sanitized records into temporal points.
func TemporalPoints(records []Record) []TemporalPoint {
	points := make([]TemporalPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, TemporalPoint{
			Month:     rec.label("month"),
			Ingresos:  ToNumber(rec["ingresos"]),
			Gastos:    ToNumber(rec["gastos"]),
			Beneficio: ToNumber(rec["beneficio"]),
		})
	}
	return points
}

// ExpensePoints decodes sanitized records into expense category points.
func ExpensePoints(records []Record) []ExpenseCategoryPoint {
	points := make([]ExpenseCategoryPoint, 0, len(records))
	for _, rec := range records {
		points = append(points, ExpenseCategoryPoint{
			Name:  rec.label("name"),
			Total: ToNumber(rec["total"]),
		})
	}
	return points
}

// BusinessLinePoints decodes sanitized records into business line points.
// Records carrying total_ingresos instead of ingresos are accepted.
func BusinessLinePoints(records []Record) []BusinessLinePoint {
	points := make([]BusinessLinePoint, 0, len(records))
	for _, rec := range records {
		raw, ok := rec["ingresos"]
		if !ok {
			raw = rec["total_ingresos"]
		}
		points = append(points, BusinessLinePoint{
			Name:     rec.label("name"),
			Ingresos: ToNumber(raw),
		})
	}
	return points
}

func (r Record) label(key string) string {
	switch v := r[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}
