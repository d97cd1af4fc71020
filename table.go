package gnuplotter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/aclements/go-gg/generic/slice"
	"github.com/aclements/go-gg/table"
	"github.com/sirupsen/logrus"
)

// ReadTable reads every line of r into a table of float64 columns. With
// header set, the first line names the columns; otherwise they are named
// c0, c1, .... Lines that do not parse, or that have the wrong number of
// fields, are logged and skipped.
func ReadTable(ctx context.Context, r StringReader, header bool) (*table.Table, error) {
	logger := logrus.WithField("tag", "ReadTable")

	var names []string
	var columns [][]float64
	lineNum := 0

	for {
		fields, err := r.Read(ctx)
		if err == io.EOF {
			break
		} else if errors.Is(err, errSkipLine) {
			continue
		} else if err != nil {
			return nil, err
		}
		lineNum++

		if names == nil {
			if header {
				names = make([]string, len(fields))
				for i, f := range fields {
					names[i] = strings.TrimSpace(f)
				}
				columns = make([][]float64, len(names))
				continue
			}
			names = make([]string, len(fields))
			for i := range fields {
				names[i] = fmt.Sprintf("c%d", i)
			}
			columns = make([][]float64, len(names))
		}

		if len(fields) != len(names) {
			logger.WithFields(logrus.Fields{
				"lineNum": lineNum,
				"fields":  len(fields),
				"columns": len(names),
			}).Warn("wrong number of fields, ignoring...")
			continue
		}

		row, err := parseFloats(fields)
		if err != nil {
			logger.WithField("lineNum", lineNum).WithField("line", fields).Warn("cannot parse float, ignoring...")
			continue
		}
		for i, v := range row {
			columns[i] = append(columns[i], v)
		}
	}

	b := new(table.Builder)
	for i, name := range names {
		if columns[i] == nil {
			columns[i] = []float64{}
		}
		b.Add(name, columns[i])
	}
	return b.Done(), nil
}

// TableFromRows turns streamed rows into a table with an "x" column and
// one column per name. Missing Ys are filled with NaN, which gnuplot
// treats as missing data.
func TableFromRows(names []string, rows []DataRow) *table.Table {
	xs := make([]float64, len(rows))
	ys := make([][]float64, len(names))
	for i := range ys {
		ys[i] = make([]float64, len(rows))
	}
	for r, row := range rows {
		xs[r] = row.X
		for i := range names {
			if i < len(row.Ys) {
				ys[i][r] = row.Ys[i]
			} else {
				ys[i][r] = math.NaN()
			}
		}
	}

	b := new(table.Builder).Add(xColumn, xs)
	for i, name := range names {
		b.Add(name, ys[i])
	}
	return b.Done()
}

// xColumn names the X column of tables built from DataRows.
const xColumn = "x"

// TableColumn returns the named column of t converted to float64.
func TableColumn(t *table.Table, name string) (col Values, err error) {
	data := t.Column(name)
	if data == nil {
		return nil, fmt.Errorf("no column %q", name)
	}
	if fs, ok := data.([]float64); ok {
		return fs, nil
	}

	// slice.Convert panics on element types it cannot convert.
	defer func() {
		if r := recover(); r != nil {
			col, err = nil, fmt.Errorf("column %q is not numeric: %v", name, r)
		}
	}()
	var fs []float64
	slice.Convert(&fs, data)
	return fs, nil
}
