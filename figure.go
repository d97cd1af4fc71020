package gnuplotter

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/aclements/go-moremath/scale"
	"github.com/aclements/go-moremath/stats"
)

// Column is an opaque sequence of numbers, such as one column of a table.
type Column interface {
	Values() []float64
}

// Values is the simplest Column.
type Values []float64

func (v Values) Values() []float64 {
	return v
}

var (
	errEmptySeries    = errors.New("series has no y values")
	errLengthMismatch = errors.New("series columns differ in length")
)

// Series is one data set of a panel. Z is optional; when present the
// series is colored by the palette.
type Series struct {
	X, Y, Z Column
	Title   string
	Style   SeriesStyle
}

// data returns the series values, or an error when the series cannot be
// plotted.
func (s Series) data() (x, y, z []float64, err error) {
	if s.Y != nil {
		y = s.Y.Values()
	}
	if len(y) == 0 {
		return nil, nil, nil, errEmptySeries
	}
	if s.X != nil {
		x = s.X.Values()
	}
	if len(x) < len(y) {
		return nil, nil, nil, fmt.Errorf("%w: %d x values for %d y values", errLengthMismatch, len(x), len(y))
	}
	if s.Z != nil {
		z = s.Z.Values()
		if len(z) < len(y) {
			return nil, nil, nil, fmt.Errorf("%w: %d z values for %d y values", errLengthMismatch, len(z), len(y))
		}
	}
	return x[:len(y)], y, z, nil
}

// Figure is a single panel: its series and everything drawn around them.
type Figure struct {
	Title  string
	Series []Series

	XLabel *Label
	YLabel *Label
	Size   *Size
	Legend *Legend
	Lines  *LineStyle

	// Explicit axis ranges. Unset bounds are autoscaled from the data.
	XBounds Range
	YBounds Range
	XLog    bool
	YLog    bool

	// Filename is the output base used when the figure is exported alone.
	Filename string

	preSet  []string
	postSet []string
	canvas  *Canvas
}

func NewFigure() *Figure {
	return &Figure{
		XLabel: NewLabel(AxisX, ""),
		YLabel: NewLabel(AxisY, ""),
		Size:   &Size{},
		Legend: NewLegend(),
		Lines:  &LineStyle{},
	}
}

// Add appends a series along with its legend entry and style.
func (f *Figure) Add(s Series) {
	f.Series = append(f.Series, s)
	f.Legend.Titles = append(f.Legend.Titles, s.Title)
	f.Lines.Append(s.Style)
}

// attach points the figure and its attributes at the canvas whose params
// they fall back to.
func (f *Figure) attach(c *Canvas) {
	f.canvas = c
	f.XLabel.canvas = c
	f.YLabel.canvas = c
	f.Size.canvas = c
	f.Legend.canvas = c
	f.Lines.canvas = c
}

// Set adds a "set" directive before the plot command. With undo, the
// matching "unset" is issued after it so the next panel is unaffected.
func (f *Figure) Set(opts string, undo bool) {
	f.preSet = append(f.preSet, "set "+opts+"\n")
	if undo {
		f.postSet = append(f.postSet, "unset "+opts+"\n")
	}
}

func (f *Figure) Unset(opts string, undo bool) {
	f.preSet = append(f.preSet, "unset "+opts+"\n")
	if undo {
		f.postSet = append(f.postSet, "set "+opts+"\n")
	}
}

// XRange is the effective x range. ok is false when neither the figure
// nor its data determine both bounds.
func (f *Figure) XRange() (r Range, ok bool) {
	return f.effectiveRange(f.XBounds, f.XLabel, func(x, _ []float64) []float64 { return x })
}

func (f *Figure) YRange() (r Range, ok bool) {
	return f.effectiveRange(f.YBounds, f.YLabel, func(_, y []float64) []float64 { return y })
}

func (f *Figure) effectiveRange(explicit Range, label *Label, pick func(x, y []float64) []float64) (Range, bool) {
	if explicit.Complete() {
		return explicit, true
	}

	var values []float64
	for _, s := range f.Series {
		x, y, _, err := s.data()
		if err != nil {
			continue
		}
		for _, v := range pick(x, y) {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				values = append(values, v)
			}
		}
	}
	if len(values) == 0 {
		return explicit, false
	}

	lo, hi := stats.Bounds(values)
	if f.canvas.params().Bool(KeyNiceRanges) {
		s := scale.Linear{Min: lo, Max: hi}
		s.Nice(scale.TickOptions{Max: label.tics() + 1})
		lo, hi = s.Min, s.Max
	}

	r := Range{Min: &lo, Max: &hi}
	if explicit.Min != nil {
		r.Min = explicit.Min
	}
	if explicit.Max != nil {
		r.Max = explicit.Max
	}
	return r, true
}

// PreText renders every directive issued between the range lines and the
// plot command.
func (f *Figure) PreText() string {
	var b strings.Builder
	b.WriteString(f.Size.Directive())
	b.WriteString(f.Legend.Directive())
	b.WriteString(f.XLabel.TicsDirective(f.XBounds))
	b.WriteString(f.YLabel.TicsDirective(f.YBounds))
	b.WriteString(f.XLabel.Directive())
	b.WriteString(f.YLabel.Directive())
	if f.Title != "" {
		fmt.Fprintf(&b, "set title %s\n", quoteDouble(f.Title))
	}
	if f.XLog {
		b.WriteString("set logscale x\n")
	}
	if f.YLog {
		b.WriteString("set logscale y\n")
	}
	b.WriteString(strings.Join(f.preSet, ""))
	return b.String()
}

// PostText undoes the panel-local state set up by PreText.
func (f *Figure) PostText() string {
	var b strings.Builder
	b.WriteString(strings.Join(f.postSet, ""))
	if f.Title != "" {
		b.WriteString("unset title\n")
	}
	if f.XLog {
		b.WriteString("unset logscale x\n")
	}
	if f.YLog {
		b.WriteString("unset logscale y\n")
	}
	return b.String()
}

// plotEntries renders one plot clause per series index in valid. id is the
// data block prefix of the panel.
func (f *Figure) plotEntries(id string, valid []int) []string {
	entries := make([]string, 0, len(valid))
	for _, i := range valid {
		s := f.Series[i]
		palette := s.Z != nil
		pi := len(s.Y.Values()) / 10
		entries = append(entries, fmt.Sprintf("$%s_%d title %s %s pi %d",
			id, i, quoteSingle(f.Legend.Title(i)), f.Lines.Clause(i, palette), pi))
	}
	return entries
}

// standalone wraps f in a single-panel canvas whose params sit on top of
// those of the canvas that owns f. restore hands f back to its owner.
func (f *Figure) standalone() (c *Canvas, restore func()) {
	owner := f.canvas
	c = NewCanvas([]*Figure{f}).WithFilename(f.Filename)
	c.Params = NewParams(owner.params(), nil)
	return c, func() { f.attach(owner) }
}

// Script renders the figure as a single-panel canvas.
func (f *Figure) Script() string {
	c, restore := f.standalone()
	defer restore()
	return c.Script()
}
