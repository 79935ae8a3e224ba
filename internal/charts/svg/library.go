package svg

import (
	"fmt"
	"html/template"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/zento-erp/zento/internal/charts"
)

// RenderObserver receives the outcome of every chart render.
type RenderObserver interface {
	ObserveChartRender(kind string, err error)
}

// Library draws chart configurations as inline SVG. It satisfies
// charts.Library, so the dashboard controller can render server side.
type Library struct {
	Width    int
	Height   int
	Logger   *slog.Logger
	Observer RenderObserver
}

// NewLibrary returns a library drawing at the default size.
func NewLibrary(logger *slog.Logger, observer RenderObserver) *Library {
	return &Library{Width: DefaultWidth, Height: DefaultHeight, Logger: logger, Observer: observer}
}

var _ charts.Library = (*Library)(nil)

// Create renders cfg onto target. Render failures are logged and leave the
// surface empty; a handle is still returned so it can be destroyed.
func (l *Library) Create(target charts.Surface, cfg charts.Config) charts.Handle {
	if target == nil {
		return nil
	}
	content, err := l.Render(cfg)
	if l.Observer != nil {
		l.Observer.ObserveChartRender(string(cfg.Type), err)
	}
	if err != nil {
		l.logger().Warn("chart render failed",
			slog.String("surface", target.ID()),
			slog.String("kind", string(cfg.Type)),
			slog.Any("error", err))
		target.Clear()
	} else {
		target.Draw(content)
	}
	return &handle{id: uuid.NewString(), kind: cfg.Type, surface: target}
}

// Render converts a chart configuration to SVG markup.
func (l *Library) Render(cfg charts.Config) (template.HTML, error) {
	if cfg.Data.Empty() {
		return "", fmt.Errorf("svg: %s chart has no data", cfg.Type)
	}
	title := optionTitle(cfg.Options)
	legend := optionLegend(cfg.Options)
	series := toSeries(cfg.Data.Datasets)
	switch cfg.Type {
	case charts.KindLine:
		return Line(l.Width, l.Height, cfg.Data.Labels, series, LineOpts{Title: title, ShowDots: true})
	case charts.KindBar:
		return Bars(l.Width, l.Height, cfg.Data.Labels, series, BarOpts{Title: title, Legend: legend && len(series) > 1})
	case charts.KindDoughnut:
		return Doughnut(l.Width, l.Height, cfg.Data.Labels, series[0], DoughnutOpts{Title: title, Legend: legend})
	default:
		return "", fmt.Errorf("svg: unsupported chart type %q", cfg.Type)
	}
}

func (l *Library) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

func toSeries(datasets []charts.Dataset) []Series {
	out := make([]Series, 0, len(datasets))
	for _, ds := range datasets {
		out = append(out, Series{
			Label:  ds.Label,
			Values: ds.Data,
			Labels: ds.ValueLabels,
			Color:  ds.BorderColor,
			Colors: ds.BackgroundColor,
			Fill:   ds.Fill,
		})
	}
	return out
}

func optionTitle(opts charts.Options) string {
	plugins, _ := opts["plugins"].(map[string]any)
	title, _ := plugins["title"].(map[string]any)
	text, _ := title["text"].(string)
	return text
}

func optionLegend(opts charts.Options) bool {
	plugins, _ := opts["plugins"].(map[string]any)
	legend, ok := plugins["legend"].(map[string]any)
	if !ok {
		return true
	}
	display, ok := legend["display"].(bool)
	return !ok || display
}

type handle struct {
	id      string
	kind    charts.Kind
	surface charts.Surface
	once    sync.Once
}

func (h *handle) ID() string { return h.id }

func (h *handle) Kind() charts.Kind { return h.kind }

// Destroy clears the surface the chart was drawn on.
func (h *handle) Destroy() {
	h.once.Do(func() {
		h.surface.Clear()
	})
}
