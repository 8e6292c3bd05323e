// Package svg renders small server-side charts as inline SVG markup.
package svg

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	FillColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	// Format renders tick values; defaults to compact numbers.
	Format func(float64) string
}

// Series is one named set of bar values.
type Series struct {
	Label  string
	Values []float64
	Color  string
}

// BarOpts customises the bar chart renderer.
type BarOpts struct {
	Title       string
	Description string
	Padding     float64
	TickCount   int
	Format      func(float64) string
}

// Chart defaults.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 5

	axisColor = "#475569"
	gridColor = "#cbd5e1"
)

var palette = []string{"#dc2626", "#2563eb", "#f59e0b", "#16a34a"}
