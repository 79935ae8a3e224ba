package svg

// Series is one named set of values. Colors overrides Color per point when set;
// Labels overrides the numeric text shown for a point.
type Series struct {
	Label  string
	Values []float64
	Labels []string
	Color  string
	Colors []string
	Fill   bool
}

func (s Series) valueLabel(i int) string {
	if i >= 0 && i < len(s.Labels) && s.Labels[i] != "" {
		return s.Labels[i]
	}
	if i >= 0 && i < len(s.Values) {
		return formatTick(s.Values[i])
	}
	return ""
}

func (s Series) colorAt(i int, fallbackColor string) string {
	if i >= 0 && i < len(s.Colors) && s.Colors[i] != "" {
		return s.Colors[i]
	}
	return fallback(s.Color, fallbackColor)
}

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	FillOpacity float64
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	Legend      bool
}

// DoughnutOpts customises the doughnut renderer. Cutout is the inner radius as
// a fraction of the outer one.
type DoughnutOpts struct {
	Title       string
	Description string
	Cutout      float64
	Legend      bool
	TextColor   string
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 280
	DefaultPadding = 32.0
	DefaultTicks   = 5
	DefaultCutout  = 0.6
)

var seriesColors = []string{"#3b82f6", "#10b981", "#f59e0b", "#ef4444", "#8b5cf6", "#06b6d4", "#f97316", "#84cc16"}

func defaultColor(i int) string {
	return seriesColors[i%len(seriesColors)]
}
