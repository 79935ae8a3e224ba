package charts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	mu      sync.Mutex
	queries []Query
	points  []BusinessLinePoint
	err     error
	gate    map[string]chan struct{}
}

func (s *stubSource) BusinessLines(ctx context.Context, q Query) ([]BusinessLinePoint, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	gate := s.gate[q.Level]
	points, err := s.points, s.err
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := append([]BusinessLinePoint(nil), points...)
	if q.Level != "" {
		out = append(out, BusinessLinePoint{Name: "level " + q.Level, Ingresos: 1})
	}
	return out, nil
}

func (s *stubSource) lastQuery() Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queries[len(s.queries)-1]
}

func TestPeriodRange(t *testing.T) {
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)

	start, end, ok := PeriodRange("30", now)
	require.True(t, ok)
	assert.Equal(t, now.AddDate(0, 0, -30), start)
	assert.Equal(t, now, end)

	start, _, ok = PeriodRange("365", now)
	require.True(t, ok)
	assert.Equal(t, "2024-03-31", start.Format(DateLayout))

	for _, period := range []string{"all", "", "7", "year"} {
		start, end, ok := PeriodRange(period, now)
		assert.False(t, ok, period)
		assert.True(t, start.IsZero())
		assert.True(t, end.IsZero())
	}
}

func TestQueryValues(t *testing.T) {
	now := time.Date(2025, 3, 31, 23, 0, 0, 0, time.UTC)
	q := QueryFor(Filter{Chart: "businessLines", Period: "90", Level: "2"}, now)
	v := q.Values()
	assert.Equal(t, "2024-12-31", v.Get("start_date"))
	assert.Equal(t, "2025-03-31", v.Get("end_date"))
	assert.Equal(t, "2", v.Get("level"))

	assert.Empty(t, QueryFor(Filter{Period: "all"}, now).Values())
}

func TestFilterFromAttributes(t *testing.T) {
	f := FilterFromAttributes(map[string]string{
		"data-chart":                 "businessLines",
		"data-period":                " 30 ",
		"businessLines-level-filter": "3",
	})
	assert.Equal(t, Filter{Chart: "businessLines", Period: "30", Level: "3"}, f)

	assert.Equal(t, Filter{}, FilterFromAttributes(nil))
}

func TestRefreshBusinessLinesReplacesOnlyThatChart(t *testing.T) {
	src := &stubSource{points: []BusinessLinePoint{{Name: "Online", Ingresos: 300}}}
	env := newTestEnv(t, func(d *Dependencies) { d.Source = src })
	require.True(t, env.ctrl.Init(samplePayload()))
	before := env.ctrl.Handles()

	applied, err := env.ctrl.RefreshBusinessLines(context.Background(), Filter{Chart: "businessLines", Period: "30"})
	require.NoError(t, err)
	assert.True(t, applied)

	after := env.ctrl.Handles()
	assert.Equal(t, before[ChartTemporal].ID(), after[ChartTemporal].ID())
	assert.Equal(t, before[ChartMargin].ID(), after[ChartMargin].ID())
	assert.NotEqual(t, before[ChartBusinessLines].ID(), after[ChartBusinessLines].ID())
	assert.Equal(t, []BusinessLinePoint{{Name: "Online", Ingresos: 300}}, env.ctrl.BusinessLines())
	assert.Equal(t, 4, env.rec.Live())
	assert.Equal(t, "2025-03-01", src.lastQuery().Start.Format(DateLayout))
}

func TestRefreshFailureKeepsPreviousChart(t *testing.T) {
	src := &stubSource{err: errors.New("connection refused")}
	env := newTestEnv(t, func(d *Dependencies) { d.Source = src })
	require.True(t, env.ctrl.Init(samplePayload()))
	before := env.ctrl.Handles()[ChartBusinessLines].ID()

	applied, err := env.ctrl.RefreshBusinessLines(context.Background(), Filter{Period: "90"})
	require.Error(t, err)
	assert.False(t, applied)
	assert.Equal(t, before, env.ctrl.Handles()[ChartBusinessLines].ID())
	assert.Len(t, env.ctrl.BusinessLines(), 2)
	assert.Contains(t, env.logs.String(), "business lines refresh failed")
}

func TestRefreshWithoutSource(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.ctrl.RefreshBusinessLines(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrNoSource)
}

func TestRefreshBeforeInitIsNotApplied(t *testing.T) {
	src := &stubSource{points: []BusinessLinePoint{{Name: "Online", Ingresos: 1}}}
	env := newTestEnv(t, func(d *Dependencies) { d.Source = src })

	applied, err := env.ctrl.RefreshBusinessLines(context.Background(), Filter{})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 0, env.rec.Created())
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	slow := make(chan struct{})
	src := &stubSource{gate: map[string]chan struct{}{"1": slow}}
	env := newTestEnv(t, func(d *Dependencies) { d.Source = src })
	require.True(t, env.ctrl.Init(samplePayload()))

	type result struct {
		applied bool
		err     error
	}
	done := make(chan result, 1)
	go func() {
		applied, err := env.ctrl.RefreshBusinessLines(context.Background(), Filter{Period: "30", Level: "1"})
		done <- result{applied, err}
	}()

	require.Eventually(t, func() bool { return env.ctrl.Sequence() == 1 }, time.Second, 5*time.Millisecond)

	applied, err := env.ctrl.RefreshBusinessLines(context.Background(), Filter{Period: "30", Level: "2"})
	require.NoError(t, err)
	require.True(t, applied)

	close(slow)
	first := <-done
	require.NoError(t, first.err)
	assert.False(t, first.applied)

	assert.Equal(t, []BusinessLinePoint{{Name: "level 2", Ingresos: 1}}, env.ctrl.BusinessLines())
	assert.Equal(t, 1, env.rec.LiveOn(ChartBusinessLines.SurfaceID()))
}

func TestHandleFilterChangeRunsInBackground(t *testing.T) {
	src := &stubSource{points: []BusinessLinePoint{{Name: "Online", Ingresos: 7}}}
	env := newTestEnv(t, func(d *Dependencies) { d.Source = src })
	require.True(t, env.ctrl.Init(samplePayload()))

	env.ctrl.HandleFilterChange(context.Background(), Filter{Chart: "temporal", Period: "30"})
	env.ctrl.HandleFilterChange(context.Background(), Filter{Chart: "businessLines", Period: "all"})
	env.ctrl.Wait()

	assert.Equal(t, uint64(1), env.ctrl.Sequence())
	assert.True(t, src.lastQuery().Start.IsZero())
	assert.Equal(t, []BusinessLinePoint{{Name: "Online", Ingresos: 7}}, env.ctrl.BusinessLines())
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "30 días", PeriodLabel("30"))
	assert.Equal(t, "Todo", PeriodLabel("all"))
}
