package charts

// Dashboard colors.
const (
	ColorPrimary = "#3b82f6"
	ColorSuccess = "#10b981"
	ColorDanger  = "#ef4444"
	ColorWarning = "#f59e0b"
	ColorInfo    = "#06b6d4"
	ColorMuted   = "#6b7280"
)

// Palette is the base sequence used for categorical charts.
var Palette = [8]string{
	"#3b82f6",
	"#10b981",
	"#f59e0b",
	"#ef4444",
	"#8b5cf6",
	"#06b6d4",
	"#f97316",
	"#84cc16",
}

// Options mirrors the Chart.js options object.
type Options map[string]any

// DefaultOptions returns a fresh copy of the options shared by every chart.
func DefaultOptions() Options {
	return Options{
		"responsive":          true,
		"maintainAspectRatio": false,
		"interaction": map[string]any{
			"mode":      "index",
			"intersect": false,
		},
		"plugins": map[string]any{
			"legend": map[string]any{
				"position": "bottom",
				"labels": map[string]any{
					"usePointStyle": true,
					"padding":       16,
				},
			},
			"tooltip": map[string]any{
				"mode":      "index",
				"intersect": false,
			},
		},
	}
}

// MergeOptions returns a copy of base whose top-level keys are replaced by the
// ones present in override. Nested objects are not merged.
func MergeOptions(base, override Options) Options {
	merged := make(Options, len(base)+len(override))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range override {
		merged[k] = v
	}
	return merged
}

// Theme carries the palette and default options used by the factory and controller.
type Theme struct {
	Success  string
	Danger   string
	Primary  string
	Warning  string
	Palette  []string
	Defaults func() Options
}

// DefaultTheme returns the dashboard theme.
func DefaultTheme() *Theme {
	return &Theme{
		Success:  ColorSuccess,
		Danger:   ColorDanger,
		Primary:  ColorPrimary,
		Warning:  ColorWarning,
		Palette:  append([]string(nil), Palette[:]...),
		Defaults: DefaultOptions,
	}
}

// Colors returns count colors cycling through the theme palette.
func (t *Theme) Colors(count int) []string {
	if t == nil || len(t.Palette) == 0 {
		return GenerateColors(count)
	}
	if count < 0 {
		count = 0
	}
	colors := make([]string, count)
	for i := range colors {
		colors[i] = t.Palette[i%len(t.Palette)]
	}
	return colors
}

func (t *Theme) defaults() Options {
	if t == nil || t.Defaults == nil {
		return DefaultOptions()
	}
	return t.Defaults()
}
