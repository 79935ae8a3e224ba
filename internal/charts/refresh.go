package charts

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// ErrNoSource is returned by RefreshBusinessLines when the controller was
// built without a BusinessLineSource.
var ErrNoSource = errors.New("charts: business line source not configured")

// BusinessLineSource fetches business line revenue for a query window.
type BusinessLineSource interface {
	BusinessLines(ctx context.Context, q Query) ([]BusinessLinePoint, error)
}

// Query bounds a business line fetch. Zero times mean no bound; an empty level
// means every level.
type Query struct {
	Start time.Time
	End   time.Time
	Level string
}

// DateLayout is the wire format of start_date and end_date.
const DateLayout = "2006-01-02"

// Values encodes the query as start_date, end_date and level parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	if !q.Start.IsZero() {
		v.Set("start_date", q.Start.UTC().Format(DateLayout))
	}
	if !q.End.IsZero() {
		v.Set("end_date", q.End.UTC().Format(DateLayout))
	}
	if q.Level != "" {
		v.Set("level", q.Level)
	}
	return v
}

// Filter is the state of a chart filter control.
type Filter struct {
	Chart  string
	Period string
	Level  string
}

// FilterFromAttributes reads a filter control's data-chart and data-period
// attributes plus the value of the chart's level select, if any.
func FilterFromAttributes(attrs map[string]string) Filter {
	f := Filter{
		Chart:  strings.TrimSpace(attrs["data-chart"]),
		Period: strings.TrimSpace(attrs["data-period"]),
	}
	if f.Chart != "" {
		f.Level = strings.TrimSpace(attrs[ChartType(f.Chart).LevelFilterID()])
	}
	if f.Level == "" {
		f.Level = strings.TrimSpace(attrs["level"])
	}
	return f
}

var periodDays = map[string]int{
	"30":  30,
	"90":  90,
	"365": 365,
}

// PeriodRange returns the window covered by a named period ending at now.
// Unknown periods have no bounds and report ok=false.
func PeriodRange(period string, now time.Time) (start, end time.Time, ok bool) {
	days, known := periodDays[strings.TrimSpace(period)]
	if !known {
		return time.Time{}, time.Time{}, false
	}
	return now.AddDate(0, 0, -days), now, true
}

// QueryFor builds the fetch window for a filter.
func QueryFor(f Filter, now time.Time) Query {
	q := Query{Level: f.Level}
	if start, end, ok := PeriodRange(f.Period, now); ok {
		q.Start, q.End = start, end
	}
	return q
}

// RefreshBusinessLines fetches business lines for the filter and redraws the
// business line chart. The result is applied only when no newer refresh was
// issued in the meantime and the controller is still initialized; otherwise
// applied is false. Fetch failures leave the current chart untouched.
func (c *Controller) RefreshBusinessLines(ctx context.Context, f Filter) (bool, error) {
	if c == nil || c.deps.Source == nil {
		return false, ErrNoSource
	}
	seq := c.seq.Add(1)
	q := QueryFor(f, c.deps.Now())

	points, err := c.deps.Source.BusinessLines(ctx, q)
	if err != nil {
		c.log().Warn("business lines refresh failed",
			slog.Uint64("seq", seq),
			slog.String("period", f.Period),
			slog.Any("error", err))
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if latest := c.seq.Load(); seq != latest {
		c.log().Debug("stale business lines response discarded",
			slog.Uint64("seq", seq), slog.Uint64("latest", latest))
		return false, nil
	}
	if c.state != StateInitialized {
		c.log().Debug("business lines refresh ignored, charts not initialised")
		return false, nil
	}
	points = BusinessLinePoints(SanitizeChartData(points))
	c.data.businessLines = points
	c.createBusinessLinesLocked(points)
	return true, nil
}

// HandleFilterChange starts a background refresh for a filter control change.
// Filters for other charts are ignored. Use Wait to block until it finishes.
func (c *Controller) HandleFilterChange(ctx context.Context, f Filter) {
	if c == nil {
		return
	}
	if f.Chart != "" && ChartType(f.Chart) != ChartBusinessLines {
		c.log().Debug("filter change ignored", slog.String("chart", f.Chart))
		return
	}
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		if _, err := c.RefreshBusinessLines(ctx, f); err != nil {
			c.log().Error("business lines filter change failed",
				slog.String("period", f.Period),
				slog.String("level", f.Level),
				slog.Any("error", err))
		}
	}()
}

// Wait blocks until every refresh started by HandleFilterChange returns.
func (c *Controller) Wait() {
	if c == nil {
		return
	}
	c.inflight.Wait()
}

// Sequence returns the number of refreshes issued so far.
func (c *Controller) Sequence() uint64 {
	return c.seq.Load()
}

// PeriodLabel renders a period for display, e.g. "30 días" or "Todo".
func PeriodLabel(period string) string {
	if days, ok := periodDays[strings.TrimSpace(period)]; ok {
		return strconv.Itoa(days) + " días"
	}
	return "Todo"
}
