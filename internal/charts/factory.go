package charts

import "html/template"

// Kind identifies the rendering type of a chart.
type Kind string

// Supported chart kinds.
const (
	KindLine     Kind = "line"
	KindBar      Kind = "bar"
	KindDoughnut Kind = "doughnut"
)

// Dataset is a single series. Field names follow Chart.js.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
	Fill            bool      `json:"fill,omitempty"`
	Tension         float64   `json:"tension,omitempty"`
	// ValueLabels are the formatted values shown for each point.
	ValueLabels []string `json:"valueLabels,omitempty"`
}

// Data groups labels and datasets for a chart.
type Data struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Empty reports whether there is nothing to plot.
func (d Data) Empty() bool {
	return len(d.Labels) == 0 || len(d.Datasets) == 0
}

// Config is the complete description handed to a Library.
type Config struct {
	Type    Kind    `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

// Surface is a render target identified by a fixed id.
type Surface interface {
	ID() string
	Draw(content template.HTML)
	Clear()
}

// SurfaceLocator finds render targets by id.
type SurfaceLocator interface {
	Surface(id string) (Surface, bool)
}

// Handle is an opaque reference to a rendered chart.
type Handle interface {
	ID() string
	Kind() Kind
	Destroy()
}

// Library renders chart configurations onto surfaces. Implementations must not
// fail on bad input; they return a nil Handle for a nil target.
type Library interface {
	Create(target Surface, cfg Config) Handle
}

// Factory builds line, bar and doughnut charts on top of a Library, applying
// the theme defaults.
type Factory struct {
	lib   Library
	theme *Theme
}

// NewFactory wires a Library with a Theme.
func NewFactory(lib Library, theme *Theme) *Factory {
	if theme == nil {
		theme = DefaultTheme()
	}
	return &Factory{lib: lib, theme: theme}
}

// Line renders a line chart.
func (f *Factory) Line(target Surface, data Data, override Options) Handle {
	return f.create(KindLine, target, data, override)
}

// Bar renders a bar chart.
func (f *Factory) Bar(target Surface, data Data, override Options) Handle {
	return f.create(KindBar, target, data, override)
}

// Doughnut renders a doughnut chart.
func (f *Factory) Doughnut(target Surface, data Data, override Options) Handle {
	return f.create(KindDoughnut, target, data, override)
}

// Config returns the configuration the factory would hand to the library.
func (f *Factory) Config(kind Kind, data Data, override Options) Config {
	return Config{
		Type:    kind,
		Data:    data,
		Options: MergeOptions(f.theme.defaults(), override),
	}
}

func (f *Factory) create(kind Kind, target Surface, data Data, override Options) Handle {
	if f == nil || f.lib == nil || target == nil {
		return nil
	}
	return f.lib.Create(target, f.Config(kind, data, override))
}
