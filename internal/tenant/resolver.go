package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/zento-erp/zento/internal/platform/db"
)

// ResolverConfig tunes host resolution.
type ResolverConfig struct {
	BaseDomain    string
	DefaultSchema string
	CacheTTL      time.Duration
}

// Resolver maps request hosts to tenants. Hosts that match a tenant are cached
// in process; misses are not, so the cache only grows with registered hosts.
type Resolver struct {
	store      Store
	cache      *cache.Cache
	baseDomain string
	fallback   Tenant
	logger     *slog.Logger
}

// NewResolver constructs a resolver over store.
func NewResolver(store Store, cfg ResolverConfig, logger *slog.Logger) (*Resolver, error) {
	schema := cfg.DefaultSchema
	if schema == "" {
		schema = "public"
	}
	if !db.ValidSchema(schema) {
		return nil, fmt.Errorf("%w: %q", db.ErrInvalidSchema, schema)
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		store:      store,
		cache:      cache.New(ttl, 2*ttl),
		baseDomain: strings.ToLower(strings.Trim(cfg.BaseDomain, ". ")),
		fallback:   Tenant{Name: "public", Schema: schema},
		logger:     logger,
	}, nil
}

// Default returns the tenant used for unknown hosts.
func (r *Resolver) Default() Tenant {
	return r.fallback
}

// Resolve returns the tenant serving host. The port is ignored and matching is
// case-insensitive. Hosts under the base domain are also matched by their
// first label as tenant slug. Unknown hosts resolve to the default tenant.
func (r *Resolver) Resolve(ctx context.Context, host string) (Tenant, error) {
	host = NormalizeHost(host)
	if host == "" {
		return r.fallback, nil
	}
	if cached, ok := r.cache.Get(host); ok {
		return cached.(Tenant), nil
	}

	t, err := r.lookup(ctx, host)
	if errors.Is(err, ErrNotFound) {
		r.logger.Debug("unknown tenant host, using default schema", slog.String("host", host))
		return r.fallback, nil
	}
	if err != nil {
		return Tenant{}, err
	}
	if !db.ValidSchema(t.Schema) {
		return Tenant{}, fmt.Errorf("tenant %q: %w: %q", host, db.ErrInvalidSchema, t.Schema)
	}
	r.cache.SetDefault(host, t)
	return t, nil
}

func (r *Resolver) lookup(ctx context.Context, host string) (Tenant, error) {
	t, err := r.store.ByDomain(ctx, host)
	if err == nil || !errors.Is(err, ErrNotFound) {
		return t, err
	}
	slug, ok := r.slugFor(host)
	if !ok {
		return Tenant{}, ErrNotFound
	}
	return r.store.BySlug(ctx, slug)
}

func (r *Resolver) slugFor(host string) (string, bool) {
	if r.baseDomain == "" {
		return "", false
	}
	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return "", false
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "" || sub == "www" || strings.Contains(sub, ".") {
		return "", false
	}
	return sub, true
}

// Forget drops the cached resolution for host.
func (r *Resolver) Forget(host string) {
	r.cache.Delete(NormalizeHost(host))
}

// Flush drops every cached resolution.
func (r *Resolver) Flush() {
	r.cache.Flush()
}

// NormalizeHost lowercases host and strips any port and trailing dot.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.TrimSuffix(strings.ToLower(host), ".")
}
