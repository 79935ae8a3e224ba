// Package tenant resolves the tenant a request belongs to and carries it
// through the request context.
package tenant

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when no active tenant matches.
var ErrNotFound = errors.New("tenant: not found")

// Tenant is an isolated customer mapped to its own database schema.
type Tenant struct {
	ID     int64
	Name   string
	Slug   string
	Schema string
	Domain string
}

// IsPublic reports whether the tenant is the shared public schema.
func (t Tenant) IsPublic() bool {
	return t.Schema == "" || t.Schema == "public"
}

// CacheKey returns the identifier used to scope cached tenant data.
func (t Tenant) CacheKey() string {
	if t.Schema == "" {
		return "public"
	}
	return t.Schema
}

type ctxKey struct{}

// WithTenant returns a context carrying t.
func WithTenant(ctx context.Context, t Tenant) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tenant stored in ctx.
func FromContext(ctx context.Context) (Tenant, bool) {
	t, ok := ctx.Value(ctxKey{}).(Tenant)
	return t, ok
}

// SchemaFromContext returns the tenant schema in ctx, or fallback when the
// context carries no tenant.
func SchemaFromContext(ctx context.Context, fallback string) string {
	if t, ok := FromContext(ctx); ok && t.Schema != "" {
		return t.Schema
	}
	return fallback
}
