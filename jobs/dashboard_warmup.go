package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zento-erp/zento/internal/dashboard"
	jobmetrics "github.com/zento-erp/zento/internal/jobs"
	"github.com/zento-erp/zento/internal/tenant"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const tenantWarmupTimeout = 20 * time.Second

// SnapshotLoader loads every dashboard section for the tenant in ctx.
type SnapshotLoader interface {
	Snapshot(ctx context.Context, now time.Time) (dashboard.Snapshot, error)
}

// TenantLister lists the tenants to warm.
type TenantLister interface {
	Active(ctx context.Context) ([]tenant.Tenant, error)
}

// DashboardWarmupJob pre-populates the dashboard caches for active tenants.
type DashboardWarmupJob struct {
	Dashboard SnapshotLoader
	Tenants   TenantLister
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
	clock     func() time.Time
}

// NewDashboardWarmupJob wires dependencies for the warmup handler.
func NewDashboardWarmupJob(loader SnapshotLoader, tenants TenantLister, logger *slog.Logger, metrics *jobmetrics.Metrics) *DashboardWarmupJob {
	return &DashboardWarmupJob{
		Dashboard: loader,
		Tenants:   tenants,
		Logger:    logger,
		Metrics:   metrics,
		clock:     dashboard.Now,
	}
}

// Handle processes dashboard warmup tasks. A failing tenant does not stop the
// others; the joined errors are returned so asynq retries the task.
func (j *DashboardWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Dashboard == nil || j.Tenants == nil {
		return errors.New("dashboard warmup: handler not configured")
	}
	var payload DashboardWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard warmup: decode payload: %w", asynq.SkipRetry)
		}
	}

	tracker := j.metrics().Track(TaskDashboardWarmup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting dashboard warmup")

	tenants, err := j.Tenants.Active(ctx)
	if err != nil {
		resultErr = fmt.Errorf("dashboard warmup: list tenants: %w", err)
		logger.Error("load warmup tenants", slog.Any("error", err))
		return resultErr
	}
	tenants = selectTenants(tenants, payload.Schemas)
	if len(tenants) == 0 {
		logger.Info("no tenants to warm")
		return resultErr
	}

	now := j.now()
	warmed := 0
	var errs []error
	for _, tn := range tenants {
		err := j.warmTenant(ctx, tn, now)
		j.metrics().TenantWarmed(err)
		if err != nil {
			logger.Error("warm tenant", slog.String("tenant", tn.Schema), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", tn.Schema, err))
			continue
		}
		warmed++
	}
	resultErr = errors.Join(errs...)

	logger.Info("completed dashboard warmup",
		slog.Int("tenants", warmed),
		slog.Int("failed", len(errs)),
		slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *DashboardWarmupJob) warmTenant(ctx context.Context, tn tenant.Tenant, now time.Time) error {
	tenantCtx, cancel := context.WithTimeout(tenant.WithTenant(ctx, tn), tenantWarmupTimeout)
	defer cancel()
	_, err := j.Dashboard.Snapshot(tenantCtx, now)
	return err
}

func selectTenants(all []tenant.Tenant, schemas []string) []tenant.Tenant {
	if len(schemas) == 0 {
		return all
	}
	wanted := make(map[string]struct{}, len(schemas))
	for _, s := range schemas {
		wanted[s] = struct{}{}
	}
	out := make([]tenant.Tenant, 0, len(schemas))
	for _, tn := range all {
		if _, ok := wanted[tn.Schema]; ok {
			out = append(out, tn)
		}
	}
	return out
}

func (j *DashboardWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskDashboardWarmup))
	}
	return slog.Default().With(slog.String("job", TaskDashboardWarmup))
}

func (j *DashboardWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *DashboardWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return dashboard.Now()
}

// CacheInvalidator bumps the dashboard cache version.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// CacheBumpJob invalidates the dashboard cache, typically after data imports.
type CacheBumpJob struct {
	Cache   CacheInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// Handle processes cache bump tasks.
func (j *CacheBumpJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Cache == nil {
		return errors.New("dashboard cache bump: handler not configured")
	}
	var payload CacheBumpPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("dashboard cache bump: decode payload: %w", asynq.SkipRetry)
		}
	}
	metrics := j.Metrics
	if metrics == nil {
		metrics = defaultJobMetrics
	}
	tracker := metrics.Track(TaskDashboardCacheBump)
	version, err := j.Cache.Invalidate(ctx)
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err != nil {
		logger.Error("dashboard cache bump failed", slog.Any("error", err))
		return tracker.End(fmt.Errorf("dashboard cache bump: %w", err))
	}
	logger.Info("dashboard cache bumped", slog.Int64("version", version), slog.String("reason", payload.Reason))
	return tracker.End(nil)
}
