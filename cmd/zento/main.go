package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/zento-erp/zento/cmd/zento/cli"
	"github.com/zento-erp/zento/internal/app"
	"github.com/zento-erp/zento/internal/charts"
	"github.com/zento-erp/zento/internal/charts/svg"
	"github.com/zento-erp/zento/internal/dashboard"
	dashboardhttp "github.com/zento-erp/zento/internal/dashboard/http"
	"github.com/zento-erp/zento/internal/observability"
	"github.com/zento-erp/zento/internal/platform/cache"
	"github.com/zento-erp/zento/internal/platform/db"
	"github.com/zento-erp/zento/internal/tenant"
	"github.com/zento-erp/zento/internal/view"
	"github.com/zento-erp/zento/jobs"
)

const usage = `usage: zento [command]

commands:
  serve                      run the HTTP server (default)
  snapshot [flags]           render the business line and expense charts of a running server
  jobs trigger <task>        enqueue dashboard:warmup or dashboard:cache_bump
  jobs stats                 print the default queue state
`

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	args := os.Args[1:]
	command := "serve"
	if len(args) > 0 {
		command, args = args[0], args[1:]
	}
	switch command {
	case "serve":
		if err := serve(ctx, stop, cfg, logger); err != nil {
			logger.Error("serve", slog.Any("error", err))
			os.Exit(1)
		}
	case "snapshot":
		os.Exit(runSnapshot(ctx, cfg, logger, args))
	case "jobs":
		os.Exit(runJobs(ctx, cfg, args))
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func serve(ctx context.Context, stop context.CancelFunc, cfg *app.Config, logger *slog.Logger) error {
	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return err
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	formatter, err := charts.NewFormatter(cfg.Locale, cfg.CurrencyCode)
	if err != nil {
		return fmt.Errorf("chart formatter: %w", err)
	}

	tenantRepo := tenant.NewRepository(dbpool)
	resolver, err := tenant.NewResolver(tenantRepo, tenant.ResolverConfig{
		BaseDomain:    cfg.TenantBaseDomain,
		DefaultSchema: cfg.TenantDefaultSchema,
		CacheTTL:      cfg.TenantCacheTTL,
	}, logger)
	if err != nil {
		return err
	}

	metrics := observability.NewMetrics()

	dashboardRepo := dashboard.NewRepository(dbpool, cfg.TenantDefaultSchema)
	dashboardCache := dashboard.NewCache(redisClient, cfg.DashboardCacheTTL)
	if err := dashboardCache.ListenForInvalidation(ctx, ""); err != nil {
		logger.Warn("dashboard cache invalidation listener", slog.Any("error", err))
	}
	dashboardService := dashboard.NewService(dashboardRepo, dashboardCache, logger)
	dashboardHandler := dashboardhttp.NewHandler(
		logger,
		dashboardService,
		templates,
		svg.NewLibrary(logger, metrics),
		formatter,
	)
	dashboardHandler.WithExpenseBook(dashboard.NewExpenseBook(dashboardRepo, dashboardCache, logger))

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Tenants:          resolver,
		DashboardHandler: dashboardHandler,
		JobHandler:       jobHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func runSnapshot(ctx context.Context, cfg *app.Config, logger *slog.Logger, args []string) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	var opts cli.SnapshotOptions
	fs.StringVar(&opts.BaseURL, "url", "http://localhost"+cfg.AppAddr, "server base url")
	fs.StringVar(&opts.Host, "host", "", "tenant host sent as the Host header")
	fs.StringVar(&opts.Period, "period", "", "period filter: 30, 90, 365 or all")
	fs.StringVar(&opts.Level, "level", "", "business line level: 1, 2 or 3")
	fs.StringVar(&opts.OutDir, "out", "", "directory receiving one svg per chart")
	fs.BoolVar(&opts.JSONOutput, "json", false, "print JSON instead of a table")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	formatter, err := charts.NewFormatter(cfg.Locale, cfg.CurrencyCode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		return 2
	}
	return cli.NewSnapshotCLI(logger, formatter).Run(ctx, opts)
}

func runJobs(ctx context.Context, cfg *app.Config, args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	jobsCLI, err := cli.NewJobsCLI(cfg.RedisAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
		return 1
	}
	defer func() {
		_ = jobsCLI.Close()
	}()

	switch args[0] {
	case "trigger":
		if len(args) < 2 {
			fmt.Fprint(os.Stderr, usage)
			return 2
		}
		info, err := jobsCLI.Trigger(ctx, args[1])
		if err != nil {
			var unknown *jobs.UnknownTaskError
			if errors.As(err, &unknown) {
				fmt.Fprintf(os.Stderr, "jobs: %v\n", err)
				return 2
			}
			fmt.Fprintf(os.Stderr, "jobs: enqueue: %v\n", err)
			return 1
		}
		fmt.Printf("enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	case "stats":
		stats, err := jobsCLI.InspectQueue(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jobs: inspect: %v\n", err)
			return 1
		}
		fmt.Printf("queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
			stats.Queue, stats.Pending, stats.Active, stats.Scheduled, stats.Retry)
	default:
		fmt.Fprint(os.Stderr, usage)
		return 2
	}
	return 0
}
