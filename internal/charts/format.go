package charts

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Record is a single chart payload item after numeric coercion.
type Record map[string]any

// numericFields lists the payload keys coerced to float64 by SanitizeChartData.
var numericFields = []string{"ingresos", "gastos", "beneficio", "total"}

var currencySymbols = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"MXN": "$",
	"ARS": "$",
	"CLP": "$",
	"COP": "$",
}

// Formatter renders numbers for a fixed locale and currency.
type Formatter struct {
	tag     language.Tag
	printer *message.Printer
	code    string
	symbol  string
	suffix  bool
}

// NewFormatter builds a formatter for a BCP 47 locale and an ISO 4217 currency code.
func NewFormatter(locale, code string) (*Formatter, error) {
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("charts: parse locale %q: %w", locale, err)
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return nil, fmt.Errorf("charts: parse currency %q: %w", code, err)
	}
	iso := unit.String()
	symbol, ok := currencySymbols[iso]
	if !ok {
		symbol = iso
	}
	base, _ := tag.Base()
	return &Formatter{
		tag:     tag,
		printer: message.NewPrinter(tag),
		code:    iso,
		symbol:  symbol,
		suffix:  base.String() != "en",
	}, nil
}

// DefaultFormatter formats euros for Spanish locales.
func DefaultFormatter() *Formatter {
	f, err := NewFormatter("es-ES", "EUR")
	if err != nil {
		panic(err)
	}
	return f
}

var defaultFormatter = DefaultFormatter()

// Locale returns the formatter language tag.
func (f *Formatter) Locale() string {
	return f.tag.String()
}

// Currency returns the ISO currency code.
func (f *Formatter) Currency() string {
	return f.code
}

// FormatCurrency coerces value to a number and renders it with two decimals,
// locale separators and the currency symbol. Invalid input renders as zero.
func (f *Formatter) FormatCurrency(value any) string {
	if f == nil {
		f = defaultFormatter
	}
	v := ToNumber(value)
	amount := f.printer.Sprint(number.Decimal(v, number.MinFractionDigits(2), number.MaxFractionDigits(2)))
	if f.suffix {
		return amount + " " + f.symbol
	}
	if v < 0 {
		return "-" + f.symbol + strings.TrimPrefix(amount, "-")
	}
	return f.symbol + amount
}

// FormatPercentage renders value as fixed-point with a trailing '%'.
func (f *Formatter) FormatPercentage(value any, decimals ...int) string {
	return FormatPercentage(value, decimals...)
}

// FormatCurrency formats value with the default Spanish euro formatter.
func FormatCurrency(value any) string {
	return defaultFormatter.FormatCurrency(value)
}

// FormatPercentage coerces value to a number and renders it with the given
// number of decimals (default 1) followed by '%'.
func FormatPercentage(value any, decimals ...int) string {
	places := 1
	if len(decimals) > 0 {
		places = decimals[0]
	}
	if places < 0 {
		places = 0
	}
	return strconv.FormatFloat(ToNumber(value), 'f', places, 64) + "%"
}

// CalculateMargin returns profit as a percentage of revenue, or 0 when revenue
// is not positive.
func CalculateMargin(profit, revenue float64) float64 {
	if revenue > 0 {
		return profit / revenue * 100
	}
	return 0
}

// ToNumber converts payload values to float64. Anything that is not a finite
// number or a numeric string yields 0.
func ToNumber(value any) float64 {
	var f float64
	switch v := value.(type) {
	case nil:
		return 0
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int8:
		f = float64(v)
	case int16:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case uint:
		f = float64(v)
	case uint8:
		f = float64(v)
	case uint16:
		f = float64(v)
	case uint32:
		f = float64(v)
	case uint64:
		f = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0
		}
		f = parsed
	case decimal.Decimal:
		f = v.InexactFloat64()
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// SanitizeChartData copies each record of a payload list, coercing the numeric
// chart fields that are present. Input that is not a list yields an empty slice.
func SanitizeChartData(input any) []Record {
	var items []map[string]any
	switch v := input.(type) {
	case []Record:
		items = make([]map[string]any, 0, len(v))
		for _, rec := range v {
			items = append(items, rec)
		}
	case []map[string]any:
		items = v
	case []any:
		items = make([]map[string]any, 0, len(v))
		for _, raw := range v {
			switch rec := raw.(type) {
			case map[string]any:
				items = append(items, rec)
			case Record:
				items = append(items, rec)
			default:
				items = append(items, map[string]any{})
			}
		}
	case []TemporalPoint:
		items = make([]map[string]any, 0, len(v))
		for _, p := range v {
			items = append(items, p.Record())
		}
	case []ExpenseCategoryPoint:
		items = make([]map[string]any, 0, len(v))
		for _, p := range v {
			items = append(items, p.Record())
		}
	case []BusinessLinePoint:
		items = make([]map[string]any, 0, len(v))
		for _, p := range v {
			items = append(items, p.Record())
		}
	default:
		return []Record{}
	}

	out := make([]Record, 0, len(items))
	for _, item := range items {
		rec := make(Record, len(item))
		for k, v := range item {
			rec[k] = v
		}
		for _, field := range numericFields {
			if v, ok := rec[field]; ok {
				rec[field] = ToNumber(v)
			}
		}
		out = append(out, rec)
	}
	return out
}

// GenerateColors returns count colors cycling through Palette.
func GenerateColors(count int) []string {
	if count < 0 {
		count = 0
	}
	colors := make([]string, count)
	for i := range colors {
		colors[i] = Palette[i%len(Palette)]
	}
	return colors
}
