package gnuplotter

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// errSkipLine is returned for a line that holds no data point. Callers
// drop it and read on.
var errSkipLine = errors.New("line skipped")

// StringReader yields the fields of one line per call and io.EOF at the end.
type StringReader interface {
	Read(context.Context) ([]string, error)
}

// DataRow is one sample of streamed input.
type DataRow struct {
	X  float64
	Ys []float64
}

// DataRowReader feeds samples to the live preview.
type DataRowReader interface {
	Read(context.Context) (DataRow, error)
	ColumnNames() []string
}

// CsvStringReader reads comma separated records. Lines starting with '#'
// are comments, and records need not share a length.
type CsvStringReader struct {
	records *csv.Reader
	log     *logrus.Entry
}

func NewCsvStringReader(input io.Reader) *CsvStringReader {
	records := csv.NewReader(input)
	records.Comment = '#'
	records.FieldsPerRecord = -1
	return &CsvStringReader{records: records, log: logrus.WithField("tag", "csv")}
}

func (r *CsvStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fields, err := r.records.Read()
	if err == nil || errors.Is(err, io.EOF) {
		return fields, err
	}

	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		r.log.WithError(err).WithField("line", parseErr.Line).Debug("malformed record skipped")
		return nil, errSkipLine
	}
	r.log.WithError(err).Error("reading input failed")
	return nil, err
}

// RelaxedStringReader reads gnuplot style data files: fields are separated
// by commas or runs of blanks, and blank lines and '#' comments are skipped.
type RelaxedStringReader struct {
	lines *bufio.Scanner
	log   *logrus.Entry
}

func NewRelaxedStringReader(input io.Reader) *RelaxedStringReader {
	return &RelaxedStringReader{lines: bufio.NewScanner(input), log: logrus.WithField("tag", "relaxed")}
}

func (r *RelaxedStringReader) Read(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if r.lines.Scan() {
		return splitRelaxed(r.lines.Text())
	}
	if err := r.lines.Err(); err != nil {
		r.log.WithError(err).Error("reading input failed")
		return nil, err
	}
	return nil, io.EOF
}

func splitRelaxed(line string) ([]string, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] == '#' {
		return nil, errSkipLine
	}
	return strings.FieldsFunc(line, func(c rune) bool {
		return c == ',' || c == ' ' || c == '\t'
	}), nil
}

// parseFloats converts every field or fails on the first one that is not
// a number.
func parseFloats(fields []string) ([]float64, error) {
	var values []float64
	for _, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, nil
}

// NowXGenerator stamps a row with the wall clock in seconds.
func NowXGenerator([]float64) float64 {
	return float64(time.Now().UnixMicro()) / 1e6
}

// TextToDataRowReader turns the fields read from Input into DataRows.
// Rows that do not parse are logged and reported as skipped.
type TextToDataRowReader struct {
	Input StringReader

	// XIndex is the field holding X; every other field is a Y. When it is
	// negative, XGenerator (NowXGenerator if nil) computes X from the Ys.
	XIndex     int
	XGenerator func([]float64) float64

	Columns []string

	// ExpectExactColumnCount skips rows whose Y count differs from Columns.
	ExpectExactColumnCount bool
}

func (r *TextToDataRowReader) Read(ctx context.Context) (DataRow, error) {
	fields, err := r.Input.Read(ctx)
	if err != nil {
		return DataRow{}, err
	}

	log := logrus.WithFields(logrus.Fields{"tag": "rows", "fields": fields})
	values, err := parseFloats(fields)
	if err != nil {
		log.WithError(err).Warn("row skipped")
		return DataRow{}, errSkipLine
	}

	row := r.row(values)
	if r.ExpectExactColumnCount && len(row.Ys) != len(r.Columns) {
		log.Warnf("row skipped: %d values for %d columns", len(row.Ys), len(r.Columns))
		return DataRow{}, errSkipLine
	}
	return row, nil
}

func (r *TextToDataRowReader) row(values []float64) DataRow {
	if r.XIndex < 0 {
		x := r.XGenerator
		if x == nil {
			x = NowXGenerator
		}
		return DataRow{X: x(values), Ys: values}
	}

	var row DataRow
	for i, v := range values {
		if i == r.XIndex {
			row.X = v
		} else {
			row.Ys = append(row.Ys, v)
		}
	}
	return row
}

func (r *TextToDataRowReader) ColumnNames() []string {
	return r.Columns
}
