package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zento-erp/zento/internal/dashboard"
	jobmetrics "github.com/zento-erp/zento/internal/jobs"
	"github.com/zento-erp/zento/internal/tenant"
)

type stubLoader struct {
	mu      sync.Mutex
	schemas []string
	fail    map[string]error
}

func (s *stubLoader) Snapshot(ctx context.Context, now time.Time) (dashboard.Snapshot, error) {
	current, ok := tenant.FromContext(ctx)
	if !ok {
		return dashboard.Snapshot{}, errors.New("tenant missing from context")
	}
	if _, ok := ctx.Deadline(); !ok {
		return dashboard.Snapshot{}, errors.New("expected a per-tenant deadline")
	}
	s.mu.Lock()
	s.schemas = append(s.schemas, current.Schema)
	s.mu.Unlock()
	if err := s.fail[current.Schema]; err != nil {
		return dashboard.Snapshot{}, err
	}
	return dashboard.Snapshot{GeneratedAt: now}, nil
}

type stubTenants struct {
	tenants []tenant.Tenant
	err     error
}

func (s stubTenants) Active(ctx context.Context) ([]tenant.Tenant, error) {
	return s.tenants, s.err
}

var activeTenants = stubTenants{tenants: []tenant.Tenant{
	{ID: 1, Name: "María", Schema: "maria"},
	{ID: 2, Name: "Pepe", Schema: "pepe"},
	{ID: 3, Name: "Lola", Schema: "lola"},
}}

func newWarmupJob(loader SnapshotLoader, tenants TenantLister) *DashboardWarmupJob {
	job := NewDashboardWarmupJob(loader, tenants, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	job.clock = func() time.Time { return time.Date(2025, 3, 15, 1, 15, 0, 0, time.UTC) }
	return job
}

func TestDashboardWarmupVisitsEveryTenant(t *testing.T) {
	loader := &stubLoader{}
	task, err := NewDashboardWarmupTask(DashboardWarmupPayload{})
	if err != nil {
		t.Fatalf("task: %v", err)
	}
	if err := newWarmupJob(loader, activeTenants).Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Join(loader.schemas, ",") != "maria,pepe,lola" {
		t.Fatalf("unexpected tenants warmed %v", loader.schemas)
	}
}

func TestDashboardWarmupSelectedSchemas(t *testing.T) {
	loader := &stubLoader{}
	task, _ := NewDashboardWarmupTask(DashboardWarmupPayload{Schemas: []string{"lola", "ghost"}})
	if err := newWarmupJob(loader, activeTenants).Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if strings.Join(loader.schemas, ",") != "lola" {
		t.Fatalf("unexpected tenants warmed %v", loader.schemas)
	}
}

func TestDashboardWarmupContinuesAfterFailure(t *testing.T) {
	boom := errors.New("relation expenses does not exist")
	loader := &stubLoader{fail: map[string]error{"pepe": boom}}
	task, _ := NewDashboardWarmupTask(DashboardWarmupPayload{})
	err := newWarmupJob(loader, activeTenants).Handle(context.Background(), task)
	if !errors.Is(err, boom) {
		t.Fatalf("expected tenant failure, got %v", err)
	}
	if len(loader.schemas) != 3 {
		t.Fatalf("expected every tenant to be attempted, got %v", loader.schemas)
	}
}

func TestDashboardWarmupTenantListFailure(t *testing.T) {
	loader := &stubLoader{}
	job := newWarmupJob(loader, stubTenants{err: errors.New("db down")})
	if err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, nil)); err == nil {
		t.Fatalf("expected error")
	}
	if len(loader.schemas) != 0 {
		t.Fatalf("no tenant should be warmed")
	}
}

func TestDashboardWarmupRejectsBadPayload(t *testing.T) {
	job := newWarmupJob(&stubLoader{}, activeTenants)
	err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, []byte("{")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry, got %v", err)
	}
}

func TestDashboardWarmupNotConfigured(t *testing.T) {
	var job *DashboardWarmupJob
	if err := job.Handle(context.Background(), asynq.NewTask(TaskDashboardWarmup, nil)); err == nil {
		t.Fatalf("expected error for nil job")
	}
}

type stubInvalidator struct {
	version int64
	err     error
	calls   int
}

func (s *stubInvalidator) Invalidate(ctx context.Context) (int64, error) {
	s.calls++
	s.version++
	return s.version, s.err
}

func TestCacheBumpJob(t *testing.T) {
	cache := &stubInvalidator{version: 4}
	job := &CacheBumpJob{Cache: cache, Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry())}
	task, _ := NewCacheBumpTask(CacheBumpPayload{Reason: "import"})
	if err := job.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if cache.calls != 1 || cache.version != 5 {
		t.Fatalf("expected one bump, got calls=%d version=%d", cache.calls, cache.version)
	}

	cache.err = errors.New("redis down")
	if err := job.Handle(context.Background(), task); err == nil {
		t.Fatalf("expected bump failure")
	}
}

func TestNewTask(t *testing.T) {
	task, err := NewTask(TaskDashboardCacheBump)
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	var payload CacheBumpPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil || payload.Reason != "manual" {
		t.Fatalf("unexpected payload %s", task.Payload())
	}
	if _, err := NewTask("mail:send"); err == nil {
		t.Fatalf("expected unknown task error")
	}
}
