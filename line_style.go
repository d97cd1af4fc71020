package gnuplotter

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/colornames"
)

// Plot modes accepted by LineStyle. Anything else is passed to gnuplot's
// "with" clause unchanged.
const (
	WithLines       = "line"
	WithPoints      = "points"
	WithLinesPoints = "linespoints"
	WithImpulses    = "impulses"
	WithDots        = "dots"
)

var withAliases = map[string]string{
	"quad":    WithLines,
	"lines":   WithLines,
	"scatter": WithPoints,
	"lp":      WithLinesPoints,
}

// SeriesStyle holds the explicit visual attributes of one series. Zero
// values are unset and resolve through the canvas params.
type SeriesStyle struct {
	With      string  `yaml:"with,omitempty"`
	Color     string  `yaml:"color,omitempty"`
	Width     float64 `yaml:"width,omitempty"`
	DashType  int     `yaml:"dash_type,omitempty"`
	PointType int     `yaml:"point_type,omitempty"`
}

// LineStyle resolves the plot clause of every series of a figure.
type LineStyle struct {
	Series []SeriesStyle

	canvas *Canvas
}

func (l *LineStyle) Append(s SeriesStyle) {
	l.Series = append(l.Series, s)
}

func (l *LineStyle) style(i int) SeriesStyle {
	if i < len(l.Series) {
		return l.Series[i]
	}
	return SeriesStyle{}
}

func (l *LineStyle) with(i int) string {
	w := l.style(i).With
	if w == "" {
		return WithLines
	}
	if alias, ok := withAliases[w]; ok {
		return alias
	}
	return w
}

func (l *LineStyle) color(i int) string {
	if c := l.style(i).Color; c != "" {
		return normalizeColor(c)
	}
	colors := l.canvas.params().Strings(KeyColors)
	if len(colors) == 0 {
		return ""
	}
	return normalizeColor(colors[i%len(colors)])
}

func (l *LineStyle) width(i int) float64 {
	if w := l.style(i).Width; w > 0 {
		return w
	}
	return l.canvas.params().Float(KeyLineWidth)
}

// Dash and point types default to the 1-based series index so that series
// stay distinguishable in monochrome output.
func (l *LineStyle) dashType(i int) int {
	if d := l.style(i).DashType; d > 0 {
		return d
	}
	return i + 1
}

func (l *LineStyle) pointType(i int) int {
	if p := l.style(i).PointType; p > 0 {
		return p
	}
	return i + 1
}

// Clause renders the "with" clause of series i. Series with a z column are
// colored by the palette instead of a fixed line color.
func (l *LineStyle) Clause(i int, palette bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "w %s", l.with(i))
	if palette {
		b.WriteString(" palette")
	} else if c := l.color(i); c != "" {
		fmt.Fprintf(&b, " lc rgb %s", quoteSingle(c))
	}
	fmt.Fprintf(&b, " lw %s pt %d dt %d", formatFloat(l.width(i)), l.pointType(i), l.dashType(i))
	return b.String()
}

// normalizeColor maps SVG color names to "#rrggbb". Hex colors and names
// unknown to the table are passed through for gnuplot to interpret.
func normalizeColor(c string) string {
	if strings.HasPrefix(c, "#") {
		return strings.ToLower(c)
	}
	rgba, ok := colornames.Map[strings.ToLower(c)]
	if !ok {
		logrus.WithField("tag", "LineStyle").WithField("color", c).Debug("unknown color name, passing through")
		return c
	}
	return fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
}
