package gnuplotter

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

// Range is an axis range where either bound may be left to autoscaling.
type Range struct {
	Min *float64 `yaml:"min,omitempty" json:",omitempty"`
	Max *float64 `yaml:"max,omitempty" json:",omitempty"`
}

// Between returns a range with both bounds set.
func Between(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

// UnmarshalYAML accepts both `[min, max]` and `{min: .., max: ..}`. A null
// bound is left to autoscaling.
func (r *Range) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		var bounds []*float64
		if err := value.Decode(&bounds); err != nil {
			return err
		}
		if len(bounds) != 2 {
			return fmt.Errorf("line %d: range needs 2 bounds, got %d", value.Line, len(bounds))
		}
		r.Min, r.Max = bounds[0], bounds[1]
		return nil
	}
	type plain Range
	return value.Decode((*plain)(r))
}

// Complete reports whether both bounds are set.
func (r Range) Complete() bool {
	return r.Min != nil && r.Max != nil
}

// Label is an axis label together with its tic policy.
//
// Every optional attribute resolves in the same order: the value set on the
// label, then the canvas params, then Defaults.
type Label struct {
	Axis    Axis
	Name    string
	Visible bool

	// Format is the tic label format, e.g. "%g" or "%.1e".
	Format *string
	// Offset of the label in screen coordinates.
	Offset []float64
	// Tics is the number of tic intervals across an explicit range.
	Tics int

	canvas *Canvas
}

func NewLabel(axis Axis, name string) *Label {
	return &Label{Axis: axis, Name: name, Visible: true}
}

func (l *Label) format() string {
	if l.Format != nil {
		return *l.Format
	}
	return l.canvas.params().String(string(l.Axis) + "format")
}

func (l *Label) offset() []float64 {
	if l.Offset != nil {
		return l.Offset
	}
	return l.canvas.params().Floats(string(l.Axis) + "_label_offset")
}

func (l *Label) tics() int {
	if l.Tics > 0 {
		return l.Tics
	}
	return l.canvas.params().Int("num_" + string(l.Axis) + "_tics")
}

// TicsDirective spaces tics evenly across an explicit range. Autoscaled
// ranges go back to gnuplot's own tics, since multiplot panels otherwise
// inherit the step of the panel before.
func (l *Label) TicsDirective(r Range) string {
	n := l.tics()
	if !r.Complete() || n <= 0 {
		return fmt.Sprintf("set %stics autofreq\n", l.Axis)
	}
	step := (*r.Max - *r.Min) / float64(n)
	return fmt.Sprintf("set %stics %s\n", l.Axis, formatFloat(step))
}

// Directive renders the tic format and label lines. A hidden label also
// hides the tic labels of its axis.
func (l *Label) Directive() string {
	if !l.Visible {
		return fmt.Sprintf("set format %s \"\"\nunset %slabel\n", l.Axis, l.Axis)
	}
	off := l.offset()
	dx, dy := 0.0, 0.0
	if len(off) > 0 {
		dx = off[0]
	}
	if len(off) > 1 {
		dy = off[1]
	}
	return fmt.Sprintf("set format %s %s\nset %slabel %s offset screen %s, %s\n",
		l.Axis, quoteDouble(l.format()),
		l.Axis, quoteDouble(l.Name), formatFloat(dx), formatFloat(dy))
}

// Size controls the aspect ratio and scale of a single panel.
type Size struct {
	Ratio *float64
	Scale []float64

	canvas *Canvas
}

func (s *Size) ratio() float64 {
	if s.Ratio != nil {
		return *s.Ratio
	}
	return s.canvas.params().Float(KeyPlotRatio)
}

func (s *Size) scale() []float64 {
	if len(s.Scale) > 0 {
		return s.Scale
	}
	return s.canvas.params().Floats(KeyPlotSize)
}

func (s *Size) Directive() string {
	var b strings.Builder
	fmt.Fprintf(&b, "set size ratio %s", formatFloat(s.ratio()))
	if sc := s.scale(); len(sc) > 0 {
		parts := make([]string, len(sc))
		for i, v := range sc {
			parts[i] = formatFloat(v)
		}
		b.WriteString(" ")
		b.WriteString(strings.Join(parts, ","))
	}
	b.WriteString("\n")
	return b.String()
}

// Legend is the key of a panel. Titles holds one entry per series.
type Legend struct {
	Visible  bool
	Position string
	Titles   []string

	canvas *Canvas
}

func NewLegend() *Legend {
	return &Legend{Visible: true}
}

func (l *Legend) position() string {
	if l.Position != "" {
		return l.Position
	}
	return l.canvas.params().String(KeyLegendPosition)
}

// Title returns the legend entry of series i, or an empty title.
func (l *Legend) Title(i int) string {
	if i < len(l.Titles) {
		return l.Titles[i]
	}
	return ""
}

func (l *Legend) Directive() string {
	if !l.Visible {
		return "unset key\n"
	}
	return fmt.Sprintf("set key %s\n", l.position())
}
