package gnuplotter

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Canvas lays out one or more figures with gnuplot's multiplot. Its Params
// sit between the attributes of every panel and Defaults.
type Canvas struct {
	Params *Params

	// Transposed swaps rows and columns of the layout. Flattened puts every
	// panel in a single column (or row, when transposed).
	Transposed bool
	Flattened  bool

	// Style runs once before an export.
	Style *Styler

	// Filename is the base name of the script and image files, without an
	// extension.
	Filename string

	ids    []string
	panels map[string]*Figure
	styled bool
	logger logrus.FieldLogger
}

// NewCanvas creates a canvas from a list of figures. The panels get the ids
// "i0", "i1", ...
func NewCanvas(figures []*Figure) *Canvas {
	c := &Canvas{
		Params: NewParams(Defaults, nil),
		panels: make(map[string]*Figure),
		logger: logrus.WithField("tag", "Canvas"),
	}
	for i, f := range figures {
		c.SetPanel(fmt.Sprintf("i%d", i), f)
	}
	return c
}

func (c *Canvas) WithFilename(filename string) *Canvas {
	c.Filename = filename
	return c
}

// params is safe on a nil canvas so that detached attributes fall straight
// back to Defaults.
func (c *Canvas) params() *Params {
	if c == nil || c.Params == nil {
		return Defaults
	}
	return c.Params
}

// SetPanel adds a figure under id, or replaces the figure already there
// while keeping its position.
func (c *Canvas) SetPanel(id string, f *Figure) {
	if _, ok := c.panels[id]; !ok {
		c.ids = append(c.ids, id)
	}
	c.panels[id] = f
	f.attach(c)
}

// Panel returns the figure stored under id. An unknown id yields a fresh,
// detached figure.
func (c *Canvas) Panel(id string) *Figure {
	if f, ok := c.panels[id]; ok {
		return f
	}
	return NewFigure()
}

func (c *Canvas) IDs() []string {
	return c.ids
}

// Panels returns the figures in layout order.
func (c *Canvas) Panels() []*Figure {
	out := make([]*Figure, len(c.ids))
	for i, id := range c.ids {
		out[i] = c.panels[id]
	}
	return out
}

func (c *Canvas) Len() int {
	return len(c.ids)
}

// Layout returns the number of multiplot rows and columns.
func (c *Canvas) Layout() (rows, cols int) {
	n := len(c.ids)
	if n == 0 {
		return 1, 1
	}
	if c.Flattened {
		rows, cols = n, 1
	} else {
		rows = greatestDivisor(n)
		cols = n / rows
	}
	if c.Transposed {
		return cols, rows
	}
	return rows, cols
}

func (c *Canvas) Transpose() {
	c.Transposed = !c.Transposed
}

// UpdateLegends replaces the legend titles of every panel.
func (c *Canvas) UpdateLegends(titles []string) {
	for _, f := range c.Panels() {
		f.Legend.Titles = append([]string(nil), titles...)
	}
}

// UpdateLabels renames the axis label of panel i to names[i].
func (c *Canvas) UpdateLabels(axis Axis, names []string) error {
	if len(names) < len(c.ids) {
		return fmt.Errorf("got %d labels for %d panels", len(names), len(c.ids))
	}
	for i, f := range c.Panels() {
		switch axis {
		case AxisX:
			f.XLabel.Name = names[i]
		case AxisY:
			f.YLabel.Name = names[i]
		default:
			return fmt.Errorf("unknown axis %q", axis)
		}
	}
	return nil
}

// Element names accepted by SetVisibility.
const (
	ElementXLabel = "x_label"
	ElementYLabel = "y_label"
	ElementLegend = "legend"
)

// SetVisibility shows or hides an element on each panel, in layout order.
func (c *Canvas) SetVisibility(element string, visible []bool) error {
	if len(visible) < len(c.ids) {
		return fmt.Errorf("got %d visibility flags for %d panels", len(visible), len(c.ids))
	}
	for i, f := range c.Panels() {
		switch element {
		case ElementXLabel:
			f.XLabel.Visible = visible[i]
		case ElementYLabel:
			f.YLabel.Visible = visible[i]
		case ElementLegend:
			f.Legend.Visible = visible[i]
		default:
			return fmt.Errorf("unknown element %q", element)
		}
	}
	return nil
}

// SizePx is the size of the svg and png output in pixels.
func (c *Canvas) SizePx() (width, height int) {
	p := c.params()
	width, height = p.Int(KeyMaxCanvasWidthPx), p.Int(KeyMaxCanvasHeightPx)
	if !p.Bool(KeyFitCanvas) {
		return width, height
	}
	rows, cols := c.Layout()
	return Min(p.Int(KeyFigureWidthPx)*cols, width), Min(p.Int(KeyFigureHeightPx)*rows, height)
}

// SizeCm is the size of the epslatex output in centimetres.
func (c *Canvas) SizeCm() (width, height float64) {
	p := c.params()
	width, height = p.Float(KeyMaxCanvasWidthCm), p.Float(KeyMaxCanvasHeightCm)
	if !p.Bool(KeyFitCanvas) {
		return width, height
	}
	rows, cols := c.Layout()
	return Min(p.Float(KeyFigureWidthCm)*float64(cols), width), Min(p.Float(KeyFigureHeightCm)*float64(rows), height)
}

// applyStyle runs the styler once per canvas.
func (c *Canvas) applyStyle() {
	if c.Style == nil || c.styled {
		return
	}
	c.Style.Apply(c)
	c.styled = true
}

type seriesKey struct {
	id    string
	index int
}

// dataBlocks writes every valid series as an inline data block and returns
// the indices of the valid series of each panel.
func (c *Canvas) dataBlocks(b *strings.Builder) map[string][]int {
	valid := make(map[string][]int, len(c.ids))
	for _, id := range c.ids {
		f := c.panels[id]
		name := blockName(id)
		for i, s := range f.Series {
			x, y, z, err := s.data()
			if err != nil {
				c.logger.WithFields(logrus.Fields{
					"panel":  id,
					"series": i,
					"title":  s.Title,
				}).WithError(err).Warn("skipping invalid series")
				continue
			}
			valid[id] = append(valid[id], i)

			fmt.Fprintf(b, "$%s_%d << EOD\n", name, i)
			for j := range y {
				if z != nil {
					fmt.Fprintf(b, "%s %s %s\n", formatFloat(x[j]), formatFloat(y[j]), formatFloat(z[j]))
				} else {
					fmt.Fprintf(b, "%s %s\n", formatFloat(x[j]), formatFloat(y[j]))
				}
			}
			b.WriteString("EOD\n")
		}
	}
	return valid
}

// Script renders the body of the gnuplot script: everything but the
// terminal and output lines.
func (c *Canvas) Script() string {
	for _, id := range c.ids {
		c.panels[id].attach(c)
	}

	p := c.params()
	var b strings.Builder

	rows, cols := c.Layout()
	margins := strings.Join([]string{
		p.String(KeyCanvasLMargin),
		p.String(KeyCanvasRMargin),
		p.String(KeyCanvasTMargin),
		p.String(KeyCanvasBMargin),
	}, ",")
	fmt.Fprintf(&b, "set multiplot layout %d, %d margins screen %s spacing %s\n",
		rows, cols, margins, p.String(KeySpacing))
	fmt.Fprintf(&b, "set border %d lw %s\n", p.Int(KeyBorder), p.String(KeyBorderLineWidth))

	valid := c.dataBlocks(&b)

	for _, id := range c.ids {
		f := c.panels[id]
		b.WriteString("\n")
		if r, ok := f.XRange(); ok {
			fmt.Fprintf(&b, "set xrange [%.4g: %.4g]\n", *r.Min, *r.Max)
		}
		if r, ok := f.YRange(); ok {
			fmt.Fprintf(&b, "set yrange [%.4g: %.4g]\n", *r.Min, *r.Max)
		}
		b.WriteString(f.PreText())

		entries := f.plotEntries(blockName(id), valid[id])
		if len(entries) == 0 {
			c.logger.WithField("panel", id).Warn("panel has no valid series, leaving it empty")
			b.WriteString("set multiplot next\n")
		} else {
			b.WriteString("plot ")
			b.WriteString(strings.Join(entries, ", "))
			b.WriteString("\n")
		}

		b.WriteString(f.PostText())
	}

	b.WriteString("\nunset multiplot\n")
	return b.String()
}

// blockName turns a panel id into a valid gnuplot data block name.
func blockName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.':
			b.WriteRune('_')
		}
	}
	name := b.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "p" + name
	}
	return name
}
