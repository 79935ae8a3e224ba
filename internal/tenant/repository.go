package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store looks tenants up in the shared schema.
type Store interface {
	ByDomain(ctx context.Context, domain string) (Tenant, error)
	BySlug(ctx context.Context, slug string) (Tenant, error)
	Active(ctx context.Context) ([]Tenant, error)
}

// Repository reads tenants_tenant and tenants_domain from the public schema.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a tenant repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const activeTenantFilter = `t.is_active AND NOT t.is_deleted AND t.status = 'ACTIVE'`

// ByDomain returns the active tenant owning domain.
func (r *Repository) ByDomain(ctx context.Context, domain string) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT t.id, t.name, t.slug, t.schema_name, d.domain
FROM public.tenants_domain d
JOIN public.tenants_tenant t ON t.id = d.tenant_id
WHERE lower(d.domain) = $1 AND `+activeTenantFilter+`
LIMIT 1`, domain)
	return scanTenant(row)
}

// BySlug returns the active tenant with slug and its primary domain.
func (r *Repository) BySlug(ctx context.Context, slug string) (Tenant, error) {
	row := r.pool.QueryRow(ctx, `SELECT t.id, t.name, t.slug, t.schema_name, COALESCE(d.domain, '')
FROM public.tenants_tenant t
LEFT JOIN public.tenants_domain d ON d.tenant_id = t.id AND d.is_primary
WHERE t.slug = $1 AND `+activeTenantFilter+`
LIMIT 1`, slug)
	return scanTenant(row)
}

// Active lists every active tenant ordered by id.
func (r *Repository) Active(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT t.id, t.name, t.slug, t.schema_name, COALESCE(d.domain, '')
FROM public.tenants_tenant t
LEFT JOIN public.tenants_domain d ON d.tenant_id = t.id AND d.is_primary
WHERE `+activeTenantFilter+` AND t.schema_name <> 'public'
ORDER BY t.id`)
	if err != nil {
		return nil, fmt.Errorf("tenant: list active: %w", err)
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Schema, &t.Domain); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, ErrNotFound
		}
		return Tenant{}, fmt.Errorf("tenant: scan: %w", err)
	}
	return t, nil
}
