package charts

import (
	"html/template"
	"sort"
	"sync"
)

// Canvas is an in-memory Surface holding the last drawn content.
type Canvas struct {
	id      string
	mu      sync.RWMutex
	content template.HTML
	draws   int
}

// NewCanvas creates an empty canvas.
func NewCanvas(id string) *Canvas {
	return &Canvas{id: id}
}

// ID returns the canvas identifier.
func (c *Canvas) ID() string { return c.id }

// Draw replaces the canvas content.
func (c *Canvas) Draw(content template.HTML) {
	c.mu.Lock()
	c.content = content
	c.draws++
	c.mu.Unlock()
}

// Clear empties the canvas.
func (c *Canvas) Clear() {
	c.mu.Lock()
	c.content = ""
	c.mu.Unlock()
}

// Content returns what is currently drawn.
func (c *Canvas) Content() template.HTML {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.content
}

// Draws counts how many times the canvas was drawn on.
func (c *Canvas) Draws() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.draws
}

// Page is a set of canvases addressed by id, standing in for the document the
// dashboard is rendered into.
type Page struct {
	mu       sync.RWMutex
	canvases map[string]*Canvas
}

// NewPage creates a page with one canvas per id.
func NewPage(ids ...string) *Page {
	p := &Page{canvases: make(map[string]*Canvas, len(ids))}
	for _, id := range ids {
		p.canvases[id] = NewCanvas(id)
	}
	return p
}

// DashboardPage creates a page with the four dashboard canvases.
func DashboardPage() *Page {
	return NewPage(
		ChartTemporal.SurfaceID(),
		ChartExpenses.SurfaceID(),
		ChartMargin.SurfaceID(),
		ChartBusinessLines.SurfaceID(),
	)
}

// Surface implements SurfaceLocator.
func (p *Page) Surface(id string) (Surface, bool) {
	if p == nil {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	c, ok := p.canvases[id]
	if !ok {
		return nil, false
	}
	return c, true
}

// Canvas returns the canvas with the given id or nil.
func (p *Page) Canvas(id string) *Canvas {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.canvases[id]
}

// Remove drops a canvas from the page.
func (p *Page) Remove(id string) {
	p.mu.Lock()
	delete(p.canvases, id)
	p.mu.Unlock()
}

// IDs lists canvas ids in sorted order.
func (p *Page) IDs() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ids := make([]string, 0, len(p.canvases))
	for id := range p.canvases {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Contents returns the drawn content of every canvas keyed by id.
func (p *Page) Contents() map[string]template.HTML {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]template.HTML, len(p.canvases))
	for id, c := range p.canvases {
		out[id] = c.Content()
	}
	return out
}
