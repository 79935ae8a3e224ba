package tenant

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/zento-erp/zento/internal/platform/httpx"
)

// HostResolver resolves a request host to a tenant.
type HostResolver interface {
	Resolve(ctx context.Context, host string) (Tenant, error)
}

// Middleware stores the tenant serving the request host in the request context.
func Middleware(resolver HostResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t, err := resolver.Resolve(r.Context(), r.Host)
			if err != nil {
				logger.Error("resolve tenant", slog.String("host", r.Host), slog.Any("error", err))
				httpx.RespondError(w, httpx.ErrUnavailable)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), t)))
		})
	}
}
