package app

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("DASHBOARD_CACHE_TTL", "")
	t.Setenv("TENANT_BASE_DOMAIN", "")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.AppAddr == "" || cfg.TenantDefaultSchema != "public" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.IsProduction() {
		t.Fatalf("default env must not be production")
	}
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("DASHBOARD_CACHE_TTL", "90s")
	t.Setenv("TENANT_BASE_DOMAIN", "example.test")
	t.Setenv("CURRENCY_CODE", "USD")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production")
	}
	if cfg.DashboardCacheTTL != 90*time.Second {
		t.Fatalf("unexpected ttl %s", cfg.DashboardCacheTTL)
	}
	if cfg.TenantBaseDomain != "example.test" || cfg.CurrencyCode != "USD" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}
