package dashboard

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/zento-erp/zento/internal/platform/db"
	"github.com/zento-erp/zento/internal/tenant"
)

// Repository loads the raw dashboard aggregates for the tenant in ctx.
type Repository interface {
	Totals(ctx context.Context, since time.Time) (Totals, error)
	MonthlyRevenue(ctx context.Context, from time.Time) ([]MonthAmount, error)
	MonthlyExpenses(ctx context.Context, from time.Time) ([]MonthAmount, error)
	BusinessLineRevenue(ctx context.Context, f BusinessLineFilter) ([]LineRevenue, error)
	ExpenseCategoryTotals(ctx context.Context, f ExpenseFilter) ([]CategoryTotal, error)
}

// PGRepository implements Repository over the tenant schemas.
type PGRepository struct {
	pool          *pgxpool.Pool
	defaultSchema string
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ ExpenseStore = (*PGRepository)(nil)
)

// NewRepository constructs a Postgres backed repository. Requests without a
// tenant in the context read defaultSchema.
func NewRepository(pool *pgxpool.Pool, defaultSchema string) *PGRepository {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &PGRepository{pool: pool, defaultSchema: defaultSchema}
}

func (r *PGRepository) withTenant(ctx context.Context, fn func(pgx.Tx) error) error {
	return db.WithTenant(ctx, r.pool, tenant.SchemaFromContext(ctx, r.defaultSchema), fn)
}

// Totals sums payments, refunds and expenses dated on or after since. A zero
// since covers all time.
func (r *PGRepository) Totals(ctx context.Context, since time.Time) (Totals, error) {
	var gross, refunded, gastos string
	err := r.withTenant(ctx, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, `SELECT
	(SELECT COALESCE(SUM(amount), 0)::text FROM service_payments WHERE $1::date IS NULL OR payment_date >= $1),
	(SELECT COALESCE(SUM(COALESCE(refunded_amount, 0)), 0)::text FROM service_payments WHERE $1::date IS NULL OR payment_date >= $1),
	(SELECT COALESCE(SUM(amount), 0)::text FROM expenses WHERE $1::date IS NULL OR date >= $1)`,
			dateParam(since)).Scan(&gross, &refunded, &gastos)
	})
	if err != nil {
		return Totals{}, fmt.Errorf("dashboard: totals: %w", err)
	}
	var t Totals
	if t.Gross, err = decimal.NewFromString(gross); err != nil {
		return Totals{}, fmt.Errorf("dashboard: parse gross: %w", err)
	}
	if t.Refunded, err = decimal.NewFromString(refunded); err != nil {
		return Totals{}, fmt.Errorf("dashboard: parse refunded: %w", err)
	}
	if t.Gastos, err = decimal.NewFromString(gastos); err != nil {
		return Totals{}, fmt.Errorf("dashboard: parse expenses: %w", err)
	}
	return t, nil
}

// MonthlyRevenue returns net revenue per month from the given date.
func (r *PGRepository) MonthlyRevenue(ctx context.Context, from time.Time) ([]MonthAmount, error) {
	return r.monthly(ctx, "revenue", `SELECT date_trunc('month', payment_date)::date AS month,
	SUM(amount - COALESCE(refunded_amount, 0))::text
FROM service_payments
WHERE payment_date >= $1
GROUP BY 1
ORDER BY 1`, from)
}

// MonthlyExpenses returns expenses per month from the given date.
func (r *PGRepository) MonthlyExpenses(ctx context.Context, from time.Time) ([]MonthAmount, error) {
	return r.monthly(ctx, "expenses", `SELECT date_trunc('month', date)::date AS month,
	SUM(amount)::text
FROM expenses
WHERE date >= $1
GROUP BY 1
ORDER BY 1`, from)
}

func (r *PGRepository) monthly(ctx context.Context, name, query string, from time.Time) ([]MonthAmount, error) {
	var out []MonthAmount
	err := r.withTenant(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, dateParam(from))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var month pgtype.Date
			var total string
			if err := rows.Scan(&month, &total); err != nil {
				return err
			}
			amount, err := decimal.NewFromString(total)
			if err != nil {
				return err
			}
			out = append(out, MonthAmount{Month: month.Time, Total: amount})
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: monthly %s: %w", name, err)
	}
	return out, nil
}

// BusinessLineRevenue returns gross and refunded payments per business line.
// Lines without payments in the window are included with zero totals.
func (r *PGRepository) BusinessLineRevenue(ctx context.Context, f BusinessLineFilter) ([]LineRevenue, error) {
	var out []LineRevenue
	err := r.withTenant(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT bl.id, bl.name, bl.level,
	COALESCE(SUM(sp.amount), 0)::text,
	COALESCE(SUM(COALESCE(sp.refunded_amount, 0)), 0)::text,
	COUNT(DISTINCT cs.id)
FROM business_lines bl
LEFT JOIN client_services cs ON cs.business_line_id = bl.id
LEFT JOIN service_payments sp ON sp.client_service_id = cs.id
	AND ($1::date IS NULL OR sp.payment_date >= $1)
	AND ($2::date IS NULL OR sp.payment_date <= $2)
WHERE CASE WHEN $3::int IS NULL THEN bl.parent_id IS NOT NULL ELSE bl.level = $3 END
GROUP BY bl.id, bl.name, bl.level
ORDER BY bl.level, bl.name`,
			optionalDate(f.Start), optionalDate(f.End), optionalLevel(f.Level))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var line LineRevenue
			var level int16
			var services int64
			var gross, refunded string
			if err := rows.Scan(&line.ID, &line.Name, &level, &gross, &refunded, &services); err != nil {
				return err
			}
			if line.Gross, err = decimal.NewFromString(gross); err != nil {
				return err
			}
			if line.Refunded, err = decimal.NewFromString(refunded); err != nil {
				return err
			}
			line.Level = int(level)
			line.Services = int(services)
			out = append(out, line)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: business line revenue: %w", err)
	}
	return out, nil
}

// ExpenseCategoryTotals returns the categories with expenses in the window.
func (r *PGRepository) ExpenseCategoryTotals(ctx context.Context, f ExpenseFilter) ([]CategoryTotal, error) {
	var out []CategoryTotal
	err := r.withTenant(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT c.id, c.name, SUM(e.amount)::text, COUNT(e.id)
FROM expense_categories c
JOIN expenses e ON e.category_id = c.id
WHERE ($1::date IS NULL OR e.date >= $1)
	AND ($2::date IS NULL OR e.date <= $2)
GROUP BY c.id, c.name
ORDER BY SUM(e.amount) DESC, c.name`, optionalDate(f.Start), optionalDate(f.End))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cat CategoryTotal
			var total string
			var count int64
			if err := rows.Scan(&cat.ID, &cat.Name, &total, &count); err != nil {
				return err
			}
			if cat.Total, err = decimal.NewFromString(total); err != nil {
				return err
			}
			cat.Count = int(count)
			out = append(out, cat)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: expense categories: %w", err)
	}
	return out, nil
}

func dateParam(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

func optionalDate(t *time.Time) pgtype.Date {
	if t == nil {
		return pgtype.Date{Valid: false}
	}
	return dateParam(*t)
}

func optionalLevel(level int) pgtype.Int4 {
	if level <= 0 {
		return pgtype.Int4{Valid: false}
	}
	return pgtype.Int4{Int32: int32(level), Valid: true}
}

// ExpenseCategoryList returns every expense category by name.
func (r *PGRepository) ExpenseCategoryList(ctx context.Context) ([]ExpenseCategory, error) {
	var out []ExpenseCategory
	err := r.withTenant(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT id, name, category_type FROM expense_categories ORDER BY name`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cat ExpenseCategory
			if err := rows.Scan(&cat.ID, &cat.Name, &cat.Type); err != nil {
				return err
			}
			out = append(out, cat)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard: list expense categories: %w", err)
	}
	return out, nil
}

// InsertExpenses stores entries in one transaction.
func (r *PGRepository) InsertExpenses(ctx context.Context, entries []ExpenseEntry) (int, error) {
	schema := tenant.SchemaFromContext(ctx, r.defaultSchema)
	err := db.WithTenantWrite(ctx, r.pool, schema, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, e := range entries {
			batch.Queue(`INSERT INTO expenses (category_id, description, amount, date) VALUES ($1, $2, $3::numeric, $4)`,
				e.CategoryID, strings.TrimSpace(e.Description), e.Amount.StringFixed(2), dateParam(e.Date))
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return 0, fmt.Errorf("dashboard: insert expenses: %w", err)
	}
	return len(entries), nil
}
