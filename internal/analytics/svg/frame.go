package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// frame is the plotting area shared by every chart: viewport, value range
// and the y scale mapping values to pixels.
type frame struct {
	b       strings.Builder
	width   float64
	height  float64
	pad     float64
	min     float64
	max     float64
	ticks   int
	format  func(float64) string
	plotW   float64
	plotH   float64
	pxPerUn float64
}

func newFrame(width, height int, pad float64, ticks int, format func(float64) string, values ...[]float64) (*frame, error) {
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	if pad <= 0 {
		pad = DefaultPadding
	}
	if ticks <= 0 {
		ticks = DefaultTicks
	}
	if format == nil {
		format = Compact
	}
	f := &frame{
		width: float64(width), height: float64(height), pad: pad,
		ticks: ticks, format: format,
	}
	f.plotW = f.width - 2*pad
	f.plotH = f.height - 2*pad
	if f.plotW <= 0 || f.plotH <= 0 {
		return nil, fmt.Errorf("svg: viewport too small")
	}
	f.min, f.max = 0, 0
	for _, series := range values {
		for _, v := range series {
			f.min = math.Min(f.min, v)
			f.max = math.Max(f.max, v)
		}
	}
	if f.max-f.min < 1e-9 {
		f.max = f.min + 1
	}
	f.pxPerUn = f.plotH / (f.max - f.min)
	return f, nil
}

// y maps a value onto the vertical axis.
func (f *frame) y(v float64) float64 {
	return f.pad + f.plotH - (v-f.min)*f.pxPerUn
}

func (f *frame) bottom() float64 { return f.pad + f.plotH }

func (f *frame) open(title, desc, kind string) {
	id := slug(title) + "-" + kind
	fmt.Fprintf(&f.b, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.0f %.0f" role="img" aria-labelledby="%s-t %s-d">`, f.width, f.height, id, id)
	fmt.Fprintf(&f.b, `<title id="%s-t">%s</title><desc id="%s-d">%s</desc>`, id, esc(title), id, esc(desc))
}

func (f *frame) grid() {
	for i := 0; i <= f.ticks; i++ {
		v := f.min + (f.max-f.min)*float64(i)/float64(f.ticks)
		y := f.y(v)
		fmt.Fprintf(&f.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f" stroke="%s" stroke-width="0.5" stroke-dasharray="2,4" aria-hidden="true"/>`, f.pad, y, f.pad+f.plotW, y, gridColor)
		fmt.Fprintf(&f.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="end">%s</text>`, f.pad-6, y+3, axisColor, esc(f.format(v)))
	}
	fmt.Fprintf(&f.b, `<g stroke="%s" stroke-width="1" aria-hidden="true">`, axisColor)
	fmt.Fprintf(&f.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`, f.pad, f.pad, f.pad, f.bottom())
	fmt.Fprintf(&f.b, `<line x1="%.2f" y1="%.2f" x2="%.2f" y2="%.2f"/>`, f.pad, f.y(0), f.pad+f.plotW, f.y(0))
	f.b.WriteString(`</g>`)
}

func (f *frame) label(x float64, text string) {
	fmt.Fprintf(&f.b, `<text x="%.2f" y="%.2f" fill="%s" font-size="10" text-anchor="middle">%s</text>`, x, f.bottom()+14, axisColor, esc(text))
}

func (f *frame) close() template.HTML {
	f.b.WriteString(`</svg>`)
	return template.HTML(f.b.String()) //nolint:gosec // every interpolated string goes through esc
}

// Compact formats a tick as 950, 1,5k or 2,3M.
func Compact(v float64) string {
	abs := math.Abs(v)
	var s string
	switch {
	case abs >= 1e9:
		s = fmt.Sprintf("%.1fB", v/1e9)
	case abs >= 1e6:
		s = fmt.Sprintf("%.1fM", v/1e6)
	case abs >= 1e3:
		s = fmt.Sprintf("%.1fk", v/1e3)
	case math.Abs(v-math.Round(v)) < 1e-9:
		return fmt.Sprintf("%.0f", v)
	default:
		s = fmt.Sprintf("%.2f", v)
	}
	return strings.Replace(s, ".", ",", 1)
}

func esc(s string) string { return template.HTMLEscapeString(s) }

func slug(s string) string {
	out := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(s)))
	if out = strings.Trim(out, "-"); out == "" {
		return "chart"
	}
	return out
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
