package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Doughnut renders a ring chart of the non-negative values in s. Slices take
// their color from s.Colors, cycling the default palette when absent.
func Doughnut(width, height int, labels []string, s Series, opts DoughnutOpts) (template.HTML, error) {
	if len(s.Values) == 0 {
		return "", fmt.Errorf("svg: values required")
	}
	if len(s.Values) != len(labels) {
		return "", fmt.Errorf("svg: labels length must match values")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	cutout := opts.Cutout
	if cutout <= 0 || cutout >= 1 {
		cutout = DefaultCutout
	}
	textColor := fallback(opts.TextColor, "#475569")

	total := 0.0
	for _, v := range s.Values {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return "", fmt.Errorf("svg: doughnut needs a positive total")
	}

	cx := float64(height) / 2
	cy := float64(height) / 2
	outer := float64(height)/2 - 8
	if !opts.Legend {
		cx = float64(width) / 2
	}
	if outer <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}
	innerR := outer * cutout

	titleID := makeID(opts.Title, "doughnut-title")
	descID := makeID(opts.Title, "doughnut-desc")

	var b strings.Builder
	openSVG(&b, width, height, titleID, descID, fallback(opts.Title, "Doughnut chart"), fallback(opts.Description, "Share per category"))

	angle := -math.Pi / 2
	for i, v := range s.Values {
		if v <= 0 {
			continue
		}
		color := s.colorAt(i, defaultColor(i))
		share := v / total
		if almostEqual(share, 1) {
			// A single full slice cannot be drawn as an arc.
			b.WriteString(fmt.Sprintf("<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.2f\"><title>%s</title></circle>",
				cx, cy, (outer+innerR)/2, color, outer-innerR, template.HTMLEscapeString(labels[i]+": "+s.valueLabel(i))))
			break
		}
		end := angle + share*2*math.Pi
		b.WriteString(fmt.Sprintf("<path d=\"%s\" fill=\"%s\" aria-label=\"%s\"><title>%s: %s (%.1f%%)</title></path>",
			arcPath(cx, cy, outer, innerR, angle, end), color,
			template.HTMLEscapeString(labels[i]), template.HTMLEscapeString(labels[i]), template.HTMLEscapeString(s.valueLabel(i)), share*100))
		angle = end
	}

	if opts.Legend {
		x := cx + outer + 24
		y := 24.0
		for i, label := range labels {
			b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", x, y-8, s.colorAt(i, defaultColor(i))))
			b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"11\" text-anchor=\"start\">%s</text>", x+14, y+1, textColor, template.HTMLEscapeString(label)))
			y += 18
		}
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func arcPath(cx, cy, outer, inner, start, end float64) string {
	large := 0
	if end-start > math.Pi {
		large = 1
	}
	ox1, oy1 := cx+outer*math.Cos(start), cy+outer*math.Sin(start)
	ox2, oy2 := cx+outer*math.Cos(end), cy+outer*math.Sin(end)
	ix1, iy1 := cx+inner*math.Cos(end), cy+inner*math.Sin(end)
	ix2, iy2 := cx+inner*math.Cos(start), cy+inner*math.Sin(start)
	return fmt.Sprintf("M%.2f %.2f A%.2f %.2f 0 %d 1 %.2f %.2f L%.2f %.2f A%.2f %.2f 0 %d 0 %.2f %.2f Z",
		ox1, oy1, outer, outer, large, ox2, oy2, ix1, iy1, inner, inner, large, ix2, iy2)
}
