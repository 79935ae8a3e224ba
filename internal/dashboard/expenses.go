package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// ErrInvalidExpense is returned when an expense entry cannot be recorded.
var ErrInvalidExpense = errors.New("dashboard: invalid expense")

// MaxExpenseDescription is the longest description accepted, in characters.
const MaxExpenseDescription = 255

// ExpenseCategory is a category new expenses can be filed under.
type ExpenseCategory struct {
	ID   int64
	Name string
	Type string
}

// ExpenseEntry is a new expense.
type ExpenseEntry struct {
	CategoryID  int64
	Description string
	Amount      decimal.Decimal
	Date        time.Time
}

// Validate checks the entry can be stored.
func (e ExpenseEntry) Validate() error {
	switch {
	case e.CategoryID <= 0:
		return fmt.Errorf("%w: category required", ErrInvalidExpense)
	case strings.TrimSpace(e.Description) == "":
		return fmt.Errorf("%w: description required", ErrInvalidExpense)
	case utf8.RuneCountInString(e.Description) > MaxExpenseDescription:
		return fmt.Errorf("%w: description longer than %d characters", ErrInvalidExpense, MaxExpenseDescription)
	case !e.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", ErrInvalidExpense)
	case e.Date.IsZero():
		return fmt.Errorf("%w: date required", ErrInvalidExpense)
	}
	return nil
}

// ExpenseStore lists categories and stores expenses for the tenant in ctx.
type ExpenseStore interface {
	ExpenseCategoryList(ctx context.Context) ([]ExpenseCategory, error)
	InsertExpenses(ctx context.Context, entries []ExpenseEntry) (int, error)
}

// ExpenseBook records expenses and invalidates the dashboard cache once they
// are stored.
type ExpenseBook struct {
	store  ExpenseStore
	cache  *Cache
	logger *slog.Logger
}

// NewExpenseBook wires an ExpenseStore with an optional Cache.
func NewExpenseBook(store ExpenseStore, cache *Cache, logger *slog.Logger) *ExpenseBook {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpenseBook{store: store, cache: cache, logger: logger}
}

// Categories returns the categories of the tenant in ctx.
func (b *ExpenseBook) Categories(ctx context.Context) ([]ExpenseCategory, error) {
	return b.store.ExpenseCategoryList(ctx)
}

// Record validates and stores entries in one transaction. Nothing is stored
// when any entry is invalid.
func (b *ExpenseBook) Record(ctx context.Context, entries []ExpenseEntry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			return 0, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	n, err := b.store.InsertExpenses(ctx, entries)
	if err != nil {
		return 0, err
	}
	if _, err := b.cache.Bump(ctx); err != nil {
		b.logger.Warn("dashboard cache bump after expenses", slog.String("tenant", tenantKey(ctx)), slog.Any("error", err))
	}
	b.logger.Info("expenses recorded", slog.String("tenant", tenantKey(ctx)), slog.Int("count", n))
	return n, nil
}
