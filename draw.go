package gnuplotter

import (
	"fmt"

	"github.com/aclements/go-gg/table"
	"github.com/sirupsen/logrus"
)

// FieldProperties are the presentation hints attached to one table column.
// The X hints apply when the column is drawn on the x axis, the Y hints
// when it is the first y column.
type FieldProperties struct {
	XLabel string `yaml:"x_label,omitempty"`
	YLabel string `yaml:"y_label,omitempty"`
	XRange *Range `yaml:"x_range,omitempty"`
	YRange *Range `yaml:"y_range,omitempty"`
}

// PlotProperties maps column names to their presentation hints.
type PlotProperties map[string]FieldProperties

// Insert merges the non-zero hints of props into those of field.
func (p PlotProperties) Insert(field string, props FieldProperties) PlotProperties {
	cur := p[field]
	if props.XLabel != "" {
		cur.XLabel = props.XLabel
	}
	if props.YLabel != "" {
		cur.YLabel = props.YLabel
	}
	if props.XRange != nil {
		cur.XRange = props.XRange
	}
	if props.YRange != nil {
		cur.YRange = props.YRange
	}
	p[field] = cur
	return p
}

func (p PlotProperties) label(axis Axis, field string) string {
	props, ok := p[field]
	if !ok {
		return ""
	}
	if axis == AxisX {
		return props.XLabel
	}
	return props.YLabel
}

func (p PlotProperties) bounds(axis Axis, field string) *Range {
	props, ok := p[field]
	if !ok {
		return nil
	}
	if axis == AxisX {
		return props.XRange
	}
	return props.YRange
}

// Props bundles the properties of a data set with an optional display
// name used for its legend entries.
type Props struct {
	Name       string
	Properties PlotProperties
}

// DrawOptions controls how Draw adds series to a figure.
type DrawOptions struct {
	// Figure to draw into. A new figure is created when nil.
	Figure *Figure
	// With is the plot mode of every added series.
	With string
	// Z names an optional color column.
	Z string
	// Name overrides the legend entry of every added series.
	Name         string
	LegendPrefix string
	Props        *Props
	Filename     string
}

// Draw adds one series per y column of data to a figure, labeling and
// ranging the axes from the column properties. A column that cannot be
// read as numbers still yields a series; it is marked invalid and skipped
// when the script is rendered.
func Draw(data *table.Table, x string, ys []string, opts DrawOptions) *Figure {
	logger := logrus.WithField("tag", "Draw")

	f := opts.Figure
	if f == nil {
		f = NewFigure()
		f.Filename = opts.Filename
	}
	props := opts.Props
	if props == nil {
		props = &Props{}
	}
	if props.Properties == nil {
		props.Properties = PlotProperties{}
	}

	column := func(name string) Column {
		col, err := TableColumn(data, name)
		if err != nil {
			logger.WithError(err).Warn("unusable column")
			return Values(nil)
		}
		return col
	}

	xCol := column(x)
	var zCol Column
	if opts.Z != "" {
		zCol = column(opts.Z)
	}

	for _, y := range ys {
		name := y
		if opts.Name != "" {
			name = opts.Name
		} else if props.Name != "" {
			name = props.Name
		}

		f.Add(Series{
			X:     xCol,
			Y:     column(y),
			Z:     zCol,
			Title: opts.LegendPrefix + name,
			Style: SeriesStyle{With: opts.With},
		})
	}

	if len(ys) == 0 {
		return f
	}
	for axis, field := range map[Axis]string{AxisX: x, AxisY: ys[0]} {
		label := f.XLabel
		bounds := &f.XBounds
		if axis == AxisY {
			label = f.YLabel
			bounds = &f.YBounds
		}
		if l := props.Properties.label(axis, field); l != "" {
			label.Name = l
		}
		if r := props.Properties.bounds(axis, field); r != nil {
			*bounds = *r
		}
	}
	return f
}

// DrawColumns is Draw for data that is already in memory as named columns.
// All columns used must have the same length.
func DrawColumns(columns map[string][]float64, x string, ys []string, opts DrawOptions) (*Figure, error) {
	names := append([]string{x}, ys...)
	if opts.Z != "" {
		names = append(names, opts.Z)
	}

	b := new(table.Builder)
	added := make(map[string]bool)
	length := -1
	for _, name := range names {
		if added[name] {
			continue
		}
		col, ok := columns[name]
		if !ok {
			return nil, fmt.Errorf("no column %q", name)
		}
		if length >= 0 && len(col) != length {
			return nil, fmt.Errorf("column %q has %d values, want %d", name, len(col), length)
		}
		length = len(col)
		b.Add(name, col)
		added[name] = true
	}
	return Draw(b.Done(), x, ys, opts), nil
}
