package dashboard

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/tenant"
)

// TemporalMonths is the number of months in the temporal series.
const TemporalMonths = 12

// Now is the clock shared by the page handlers and the warmup job. Day and
// month cache keys and month boundaries are computed in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

var daysPerMonth = decimal.NewFromInt(30)

// Service computes dashboard figures, going through the cache when one is set.
type Service struct {
	repo   Repository
	cache  *Cache
	logger *slog.Logger
}

// NewService wires a Repository with an optional Cache.
func NewService(repo Repository, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, logger: logger}
}

func tenantKey(ctx context.Context) string {
	t, _ := tenant.FromContext(ctx)
	return t.CacheKey()
}

func startOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

// FinancialSummary returns all-time and month-to-date totals as of now.
func (s *Service) FinancialSummary(ctx context.Context, now time.Time) (Summary, error) {
	now = now.UTC()
	key, err := s.cache.BuildKey(ctx, keySummary(tenantKey(ctx), now)...)
	if err != nil {
		return Summary{}, err
	}
	var out Summary
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.loadSummary(ctx, now)
	})
	return out, err
}

func (s *Service) loadSummary(ctx context.Context, now time.Time) (Summary, error) {
	var all, month Totals
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		all, err = s.repo.Totals(gctx, time.Time{})
		return err
	})
	g.Go(func() error {
		var err error
		month, err = s.repo.Totals(gctx, startOfMonth(now))
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}
	return BuildSummary(all, month), nil
}

// BuildSummary derives the headline figures from all-time and current month
// totals. Daily revenue averages the month over 30 days.
func BuildSummary(all, month Totals) Summary {
	s := Summary{
		TotalIngresos: all.Ingresos(),
		TotalGastos:   all.Gastos,
		IngresosMes:   month.Ingresos(),
		GastosMes:     month.Gastos,
	}
	s.ResultadoTotal = s.TotalIngresos.Sub(s.TotalGastos)
	s.ResultadoMes = s.IngresosMes.Sub(s.GastosMes)
	s.MargenBeneficio = charts.CalculateMargin(s.ResultadoTotal.InexactFloat64(), s.TotalIngresos.InexactFloat64())
	s.IngresosDiarios = decimal.Zero
	if s.IngresosMes.IsPositive() {
		s.IngresosDiarios = s.IngresosMes.Div(daysPerMonth).Round(2)
	}
	return s
}

// TemporalSeries returns the last TemporalMonths months up to and including
// the month of now. Months without activity are zero.
func (s *Service) TemporalSeries(ctx context.Context, now time.Time) ([]charts.TemporalPoint, error) {
	now = now.UTC()
	key, err := s.cache.BuildKey(ctx, keyTemporal(tenantKey(ctx), now)...)
	if err != nil {
		return nil, err
	}
	var out []charts.TemporalPoint
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		return s.loadTemporal(ctx, now)
	})
	return out, err
}

func (s *Service) loadTemporal(ctx context.Context, now time.Time) ([]charts.TemporalPoint, error) {
	from := startOfMonth(now).AddDate(0, 0, -365)
	var revenue, expenses []MonthAmount
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		revenue, err = s.repo.MonthlyRevenue(gctx, from)
		return err
	})
	g.Go(func() error {
		var err error
		expenses, err = s.repo.MonthlyExpenses(gctx, from)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return BuildTemporal(from, now, revenue, expenses), nil
}

// BuildTemporal lays revenue and expenses out month by month from the month
// of from to the month of now, keeping the last TemporalMonths. Profit is
// revenue minus expenses.
func BuildTemporal(from, now time.Time, revenue, expenses []MonthAmount) []charts.TemporalPoint {
	byMonth := func(items []MonthAmount) map[string]decimal.Decimal {
		out := make(map[string]decimal.Decimal, len(items))
		for _, item := range items {
			k := item.Month.Format("2006-01")
			out[k] = out[k].Add(item.Total)
		}
		return out
	}
	ingresos := byMonth(revenue)
	gastos := byMonth(expenses)

	var points []charts.TemporalPoint
	last := startOfMonth(now)
	for m := startOfMonth(from); !m.After(last); m = m.AddDate(0, 1, 0) {
		k := m.Format("2006-01")
		in := ingresos[k]
		out := gastos[k]
		points = append(points, charts.TemporalPoint{
			Month:     m.Format("Jan 2006"),
			Ingresos:  in.InexactFloat64(),
			Gastos:    out.InexactFloat64(),
			Beneficio: in.Sub(out).InexactFloat64(),
		})
	}
	if len(points) > TemporalMonths {
		points = points[len(points)-TemporalMonths:]
	}
	return points
}

// BusinessLines returns net revenue per business line, highest first.
func (s *Service) BusinessLines(ctx context.Context, f BusinessLineFilter) ([]charts.BusinessLinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	key, err := s.cache.BuildKey(ctx, keyBusinessLines(tenantKey(ctx), f)...)
	if err != nil {
		return nil, err
	}
	var out []charts.BusinessLinePoint
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		lines, err := s.repo.BusinessLineRevenue(ctx, f)
		if err != nil {
			return nil, err
		}
		return RankBusinessLines(lines), nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []charts.BusinessLinePoint{}
	}
	return out, nil
}

// RankBusinessLines converts lines to chart points sorted by net revenue,
// highest first. Ties keep their input order.
func RankBusinessLines(lines []LineRevenue) []charts.BusinessLinePoint {
	sorted := append([]LineRevenue(nil), lines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Net().GreaterThan(sorted[j].Net())
	})
	out := make([]charts.BusinessLinePoint, 0, len(sorted))
	for _, l := range sorted {
		out = append(out, charts.BusinessLinePoint{Name: l.Name, Ingresos: l.Net().InexactFloat64()})
	}
	return out
}

// ExpenseCategories returns expense totals per category, highest first.
func (s *Service) ExpenseCategories(ctx context.Context, f ExpenseFilter) ([]charts.ExpenseCategoryPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	key, err := s.cache.BuildKey(ctx, keyExpenses(tenantKey(ctx), f)...)
	if err != nil {
		return nil, err
	}
	var out []charts.ExpenseCategoryPoint
	err = s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
		cats, err := s.repo.ExpenseCategoryTotals(ctx, f)
		if err != nil {
			return nil, err
		}
		return RankExpenseCategories(cats), nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []charts.ExpenseCategoryPoint{}
	}
	return out, nil
}

// RankExpenseCategories converts category totals to chart points sorted by
// total, highest first.
func RankExpenseCategories(cats []CategoryTotal) []charts.ExpenseCategoryPoint {
	sorted := append([]CategoryTotal(nil), cats...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Total.GreaterThan(sorted[j].Total)
	})
	out := make([]charts.ExpenseCategoryPoint, 0, len(sorted))
	for _, c := range sorted {
		out = append(out, charts.ExpenseCategoryPoint{Name: c.Name, Total: c.Total.InexactFloat64()})
	}
	return out
}

// Snapshot loads every dashboard section concurrently.
func (s *Service) Snapshot(ctx context.Context, now time.Time) (Snapshot, error) {
	snap := Snapshot{GeneratedAt: now}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.Summary, err = s.FinancialSummary(gctx, now)
		return err
	})
	g.Go(func() error {
		var err error
		snap.Temporal, err = s.TemporalSeries(gctx, now)
		return err
	})
	g.Go(func() error {
		var err error
		snap.BusinessLines, err = s.BusinessLines(gctx, BusinessLineFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		snap.Expenses, err = s.ExpenseCategories(gctx, ExpenseFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error("dashboard snapshot failed", slog.String("tenant", tenantKey(ctx)), slog.Any("error", err))
		return Snapshot{}, err
	}
	return snap, nil
}

// Invalidate bumps the cache version so every tenant reloads.
func (s *Service) Invalidate(ctx context.Context) (int64, error) {
	return s.cache.Bump(ctx)
}
