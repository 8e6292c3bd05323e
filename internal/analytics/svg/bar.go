package svg

import (
	"fmt"
	"html/template"
)

// Bars renders a grouped bar chart, one group per label and one bar per series.
func Bars(width, height int, labels []string, series []Series, opts BarOpts) (template.HTML, error) {
	if len(labels) == 0 {
		return "", fmt.Errorf("svg: labels required")
	}
	if len(series) == 0 {
		return "", fmt.Errorf("svg: at least one series required")
	}
	values := make([][]float64, len(series))
	for i, s := range series {
		if len(s.Values) != len(labels) {
			return "", fmt.Errorf("svg: series %q has %d values for %d labels", s.Label, len(s.Values), len(labels))
		}
		values[i] = s.Values
	}
	f, err := newFrame(width, height, opts.Padding, opts.TickCount, opts.Format, values...)
	if err != nil {
		return "", err
	}

	f.open(fallback(opts.Title, "Gráfico de barras"), fallback(opts.Description, "Comparación por periodo"), "bar")
	f.grid()

	group := f.plotW / float64(len(labels))
	// Bars take two thirds of the group; the rest is the gap.
	bar := group * 2 / 3 / float64(len(series))
	zero := f.y(0)
	for i, label := range labels {
		x0 := f.pad + float64(i)*group + group/6
		for j, s := range series {
			top := f.y(s.Values[i])
			y, h := top, zero-top
			if h < 0 {
				y, h = zero, -h
			}
			fmt.Fprintf(&f.b, `<rect x="%.2f" y="%.2f" width="%.2f" height="%.2f" fill="%s"><title>%s %s: %s</title></rect>`,
				x0+float64(j)*bar, y, bar, h, color(s.Color, j), esc(s.Label), esc(label), esc(f.format(s.Values[i])))
		}
		f.label(f.pad+float64(i)*group+group/2, label)
	}

	legendX := f.pad
	for j, s := range series {
		fmt.Fprintf(&f.b, `<rect x="%.2f" y="4" width="10" height="10" fill="%s"/>`, legendX, color(s.Color, j))
		fmt.Fprintf(&f.b, `<text x="%.2f" y="13" fill="%s" font-size="10">%s</text>`, legendX+14, axisColor, esc(s.Label))
		legendX += 100
	}
	return f.close(), nil
}

func color(c string, i int) string {
	return fallback(c, palette[i%len(palette)])
}
