package charts

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToNumber(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want float64
	}{
		{"nil", nil, 0},
		{"float", 12.5, 12.5},
		{"int", 7, 7},
		{"int64", int64(-3), -3},
		{"uint8", uint8(9), 9},
		{"string", " 42.25 ", 42.25},
		{"garbage string", "12abc", 0},
		{"empty string", "", 0},
		{"json number", json.Number("1000.5"), 1000.5},
		{"decimal", decimal.RequireFromString("99.90"), 99.9},
		{"bool", true, 0},
		{"nan", math.NaN(), 0},
		{"inf", math.Inf(1), 0},
		{"slice", []int{1}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, ToNumber(tc.in), 1e-9)
		})
	}
}

func TestSanitizeChartDataCoercesNumericFields(t *testing.T) {
	input := []any{
		map[string]any{"month": "Jan", "ingresos": "1000", "gastos": nil, "beneficio": "n/a", "extra": "keep"},
		map[string]any{"name": "Consultas", "total": []string{"x"}},
		"not a record",
	}

	out := SanitizeChartData(input)
	require.Len(t, out, 3)

	assert.Equal(t, 1000.0, out[0]["ingresos"])
	assert.Equal(t, 0.0, out[0]["gastos"])
	assert.Equal(t, 0.0, out[0]["beneficio"])
	assert.Equal(t, "keep", out[0]["extra"])
	assert.Equal(t, "Jan", out[0]["month"])
	_, hasTotal := out[0]["total"]
	assert.False(t, hasTotal, "missing numeric keys must not be added")

	assert.Equal(t, 0.0, out[1]["total"])
	assert.Empty(t, out[2])
}

func TestSanitizeChartDataDoesNotMutateInput(t *testing.T) {
	input := []map[string]any{{"ingresos": "5"}}
	out := SanitizeChartData(input)
	assert.Equal(t, "5", input[0]["ingresos"])
	assert.Equal(t, 5.0, out[0]["ingresos"])
}

func TestSanitizeChartDataRejectsNonSequences(t *testing.T) {
	for _, in := range []any{nil, "text", 12, map[string]any{"ingresos": 1}} {
		out := SanitizeChartData(in)
		require.NotNil(t, out)
		assert.Empty(t, out)
	}
}

func TestSanitizeChartDataTypedPoints(t *testing.T) {
	out := SanitizeChartData([]TemporalPoint{{Month: "Feb", Ingresos: 10, Gastos: 4, Beneficio: 6}})
	require.Len(t, out, 1)
	assert.Equal(t, "Feb", out[0]["month"])
	assert.Equal(t, 6.0, out[0]["beneficio"])
}

func TestCalculateMarginGuardsNonPositiveRevenue(t *testing.T) {
	for _, revenue := range []float64{0, -1, -1000} {
		for _, profit := range []float64{-50, 0, 50} {
			assert.Equal(t, 0.0, CalculateMargin(profit, revenue), "profit=%v revenue=%v", profit, revenue)
		}
	}
	assert.InDelta(t, 60.0, CalculateMargin(600, 1000), 1e-9)
	assert.InDelta(t, -25.0, CalculateMargin(-250, 1000), 1e-9)
}

func TestGenerateColors(t *testing.T) {
	for _, n := range []int{0, 1, 8, 10, 17} {
		colors := GenerateColors(n)
		require.Len(t, colors, n)
		for i := range colors {
			assert.Equal(t, Palette[i%8], colors[i])
		}
	}
	colors := GenerateColors(10)
	assert.Equal(t, colors[0], colors[8])
	assert.Empty(t, GenerateColors(-2))
}

func TestFormatPercentage(t *testing.T) {
	assert.Equal(t, "60.0%", FormatPercentage(60))
	assert.Equal(t, "12.35%", FormatPercentage(12.345678, 2))
	assert.Equal(t, "0.0%", FormatPercentage("oops"))
	assert.Equal(t, "33%", FormatPercentage(33.3, 0))
	assert.Equal(t, "33%", FormatPercentage(33.3, -4))
}

func TestFormatCurrencySpanish(t *testing.T) {
	assert.Equal(t, "1.234.567,50 €", FormatCurrency(1234567.5))
	assert.Equal(t, "0,00 €", FormatCurrency("abc"))
	assert.Equal(t, "12,30 €", FormatCurrency("12.3"))
	assert.Equal(t, "-5,00 €", FormatCurrency(-5))
}

func TestFormatCurrencyEnglish(t *testing.T) {
	f, err := NewFormatter("en-US", "USD")
	require.NoError(t, err)
	assert.Equal(t, "$1,234,567.50", f.FormatCurrency(1234567.5))
	assert.Equal(t, "-$5.00", f.FormatCurrency(-5))
	assert.Equal(t, "USD", f.Currency())
	assert.Equal(t, "en-US", f.Locale())
}

func TestNewFormatterRejectsUnknownCurrency(t *testing.T) {
	_, err := NewFormatter("es-ES", "XYZ1")
	assert.Error(t, err)
	_, err = NewFormatter("!!", "EUR")
	assert.Error(t, err)
}

func TestNilFormatterFallsBackToDefault(t *testing.T) {
	var f *Formatter
	assert.Equal(t, "1,00 €", f.FormatCurrency(1))
}

func TestMergeOptionsReplacesTopLevelKeys(t *testing.T) {
	base := DefaultOptions()
	override := Options{"plugins": map[string]any{"legend": map[string]any{"display": false}}, "indexAxis": "y"}

	merged := MergeOptions(base, override)

	plugins := merged["plugins"].(map[string]any)
	_, hasTooltip := plugins["tooltip"]
	assert.False(t, hasTooltip, "nested keys are replaced, not merged")
	assert.Equal(t, "y", merged["indexAxis"])
	assert.Equal(t, true, merged["responsive"])

	basePlugins := base["plugins"].(map[string]any)
	_, stillThere := basePlugins["tooltip"]
	assert.True(t, stillThere, "base must not be modified")
}

func TestDefaultOptionsAreFresh(t *testing.T) {
	a := DefaultOptions()
	a["responsive"] = false
	assert.Equal(t, true, DefaultOptions()["responsive"])
}

func TestThemeColors(t *testing.T) {
	theme := DefaultTheme()
	theme.Palette[0] = "#000000"
	assert.Equal(t, "#3b82f6", Palette[0])
	assert.Equal(t, []string{"#000000", "#10b981", "#000000"}, (&Theme{Palette: []string{"#000000", "#10b981"}}).Colors(3))
	var nilTheme *Theme
	assert.Equal(t, GenerateColors(2), nilTheme.Colors(2))
}
