package svg

import (
	"fmt"
	"html/template"
	"strings"
)

// Line renders a line chart of one series with an optional shaded area.
func Line(width, height int, labels []string, values []float64, opts LineOpts) (template.HTML, error) {
	if len(values) == 0 {
		return "", fmt.Errorf("svg: series required")
	}
	if len(values) != len(labels) {
		return "", fmt.Errorf("svg: %d labels for %d values", len(labels), len(values))
	}
	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.Format, values)
	if err != nil {
		return "", err
	}
	stroke := fallback(opts.StrokeColor, palette[1])
	fill := fallback(opts.FillColor, "rgba(37,99,235,0.12)")

	f.open(fallback(opts.Title, "Gráfico de línea"), fallback(opts.Description, "Evolución en el tiempo"), "line")
	f.grid()

	xs := make([]float64, len(values))
	for i := range values {
		if len(values) == 1 {
			xs[i] = f.pad + f.plotW/2
			continue
		}
		xs[i] = f.pad + float64(i)*f.plotW/float64(len(values)-1)
	}

	var path strings.Builder
	for i, v := range values {
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		fmt.Fprintf(&path, "%s%.2f %.2f ", cmd, xs[i], f.y(v))
	}
	d := strings.TrimSpace(path.String())

	fmt.Fprintf(&f.b, `<path d="%s L%.2f %.2f L%.2f %.2f Z" fill="%s" stroke="none" aria-hidden="true"/>`, d, xs[len(xs)-1], f.y(0), xs[0], f.y(0), fill)
	fmt.Fprintf(&f.b, `<path d="%s" fill="none" stroke="%s" stroke-width="2" stroke-linejoin="round" stroke-linecap="round"/>`, d, stroke)
	for i, v := range values {
		if opts.ShowDots {
			fmt.Fprintf(&f.b, `<circle cx="%.2f" cy="%.2f" r="3" fill="%s"><title>%s: %s</title></circle>`, xs[i], f.y(v), stroke, esc(labels[i]), esc(f.format(v)))
		}
		f.label(xs[i], labels[i])
	}
	return f.close(), nil
}
