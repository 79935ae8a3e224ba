package db

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrInvalidSchema is returned when a tenant schema name is not a plain identifier.
var ErrInvalidSchema = errors.New("platform/db: invalid schema name")

var schemaPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// WithTx executes a function within a transaction using the RepeatableRead isolation level.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}

// ValidSchema reports whether name can be used as a search_path entry.
func ValidSchema(name string) bool {
	return schemaPattern.MatchString(name)
}

// WithTenant runs fn in a read-only transaction whose search_path is the tenant
// schema followed by public. The setting is local to the transaction.
func WithTenant(ctx context.Context, pool *pgxpool.Pool, schema string, fn func(pgx.Tx) error) error {
	return withTenant(ctx, pool, schema, pgx.ReadOnly, fn)
}

// WithTenantWrite is WithTenant for statements that modify tenant data.
func WithTenantWrite(ctx context.Context, pool *pgxpool.Pool, schema string, fn func(pgx.Tx) error) error {
	return withTenant(ctx, pool, schema, pgx.ReadWrite, fn)
}

func withTenant(ctx context.Context, pool *pgxpool.Pool, schema string, mode pgx.TxAccessMode, fn func(pgx.Tx) error) error {
	if !ValidSchema(schema) {
		return fmt.Errorf("%w: %q", ErrInvalidSchema, schema)
	}
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: mode})
	if err != nil {
		return fmt.Errorf("platform/db: begin tenant tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, "SELECT set_config('search_path', $1, true)", SearchPath(schema)); err != nil {
		return fmt.Errorf("platform/db: set search_path: %w", err)
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tenant tx: %w", err)
	}
	return nil
}

// SearchPath renders the search_path value used for a tenant schema.
func SearchPath(schema string) string {
	if schema == "public" {
		return "public"
	}
	return schema + ", public"
}
