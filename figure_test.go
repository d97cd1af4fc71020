package gnuplotter

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSeriesData(t *testing.T) {
	t.Run("Valid", func(t *testing.T) {
		s := Series{X: Values{1, 2, 3}, Y: Values{4, 5}}
		x, y, z, err := s.data()
		if err != nil {
			t.Fatalf("data() error = %v", err)
		}
		// Extra x values are dropped.
		if diff := cmp.Diff([]float64{1, 2}, x); diff != "" {
			t.Errorf("x mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]float64{4, 5}, y); diff != "" {
			t.Errorf("y mismatch (-want +got):\n%s", diff)
		}
		if z != nil {
			t.Errorf("z = %v, want nil", z)
		}
	})

	tests := []struct {
		name string
		s    Series
		want error
	}{
		{"NoY", Series{X: Values{1}}, errEmptySeries},
		{"EmptyY", Series{X: Values{1}, Y: Values{}}, errEmptySeries},
		{"ShortX", Series{X: Values{1}, Y: Values{1, 2}}, errLengthMismatch},
		{"NoX", Series{Y: Values{1}}, errLengthMismatch},
		{"ShortZ", Series{X: Values{1, 2}, Y: Values{1, 2}, Z: Values{1}}, errLengthMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, _, err := tt.s.data(); !errors.Is(err, tt.want) {
				t.Errorf("data() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFigureRanges(t *testing.T) {
	newFigure := func() *Figure {
		f := NewFigure()
		f.Add(Series{X: Values{1, 2, 3}, Y: Values{5, math.NaN(), -2}})
		f.Add(Series{X: Values{0, 10}, Y: Values{math.Inf(1), 1}})
		// Invalid series do not contribute.
		f.Add(Series{X: Values{100}, Y: Values{100, 200}})
		return f
	}

	t.Run("FromData", func(t *testing.T) {
		f := newFigure()
		xr, ok := f.XRange()
		if !ok || *xr.Min != 0 || *xr.Max != 10 {
			t.Errorf("XRange() = %s, %v; want [0: 10]", showRange(xr), ok)
		}
		yr, ok := f.YRange()
		if !ok || *yr.Min != -2 || *yr.Max != 5 {
			t.Errorf("YRange() = %s, %v; want [-2: 5]", showRange(yr), ok)
		}
	})

	t.Run("PartialOverride", func(t *testing.T) {
		f := newFigure()
		f.YBounds = Range{Max: ptr(3)}
		yr, ok := f.YRange()
		if !ok || *yr.Min != -2 || *yr.Max != 3 {
			t.Errorf("YRange() = %s, %v; want [-2: 3]", showRange(yr), ok)
		}
	})

	t.Run("Explicit", func(t *testing.T) {
		f := NewFigure()
		f.XBounds = Between(-1, 1)
		xr, ok := f.XRange()
		if !ok || *xr.Min != -1 || *xr.Max != 1 {
			t.Errorf("XRange() = %s, %v; want [-1: 1]", showRange(xr), ok)
		}
	})

	t.Run("NoData", func(t *testing.T) {
		f := NewFigure()
		f.YBounds = Range{Min: ptr(0)}
		if r, ok := f.YRange(); ok {
			t.Errorf("YRange() = %s, want no range", showRange(r))
		}
	})

	t.Run("Nice", func(t *testing.T) {
		f := NewFigure()
		f.Add(Series{X: Values{0.3, 9.7}, Y: Values{1, 2}})
		c := NewCanvas([]*Figure{f})
		c.Params.Set(KeyNiceRanges, true)

		xr, ok := f.XRange()
		if !ok {
			t.Fatal("XRange() reported no range")
		}
		lo, hi := *xr.Min, *xr.Max
		if lo > 0.3 || hi < 9.7 || lo != math.Trunc(lo) || hi != math.Trunc(hi) {
			t.Errorf("XRange() = [%v: %v], want whole bounds around [0.3: 9.7]", lo, hi)
		}
	})
}

func showRange(r Range) string {
	return "[" + showBound(r.Min) + ": " + showBound(r.Max) + "]"
}

func TestFigureText(t *testing.T) {
	f := NewFigure()
	f.Title = "it's"
	f.XLog = true
	f.XBounds = Between(0, 6)
	f.Set("grid", true)
	f.Unset("border", false)

	want := "set size ratio 1\n" +
		"set key top right\n" +
		"set xtics 2\n" +
		"set ytics autofreq\n" +
		"set format x \"%g\"\n" +
		"set xlabel \"\" offset screen 0, 0\n" +
		"set format y \"%g\"\n" +
		"set ylabel \"\" offset screen 0, 0\n" +
		"set title \"it's\"\n" +
		"set logscale x\n" +
		"set grid\n" +
		"unset border\n"
	if diff := cmp.Diff(want, f.PreText()); diff != "" {
		t.Errorf("PreText() mismatch (-want +got):\n%s", diff)
	}

	want = "unset grid\n" +
		"unset title\n" +
		"unset logscale x\n"
	if diff := cmp.Diff(want, f.PostText()); diff != "" {
		t.Errorf("PostText() mismatch (-want +got):\n%s", diff)
	}
}

func TestFigurePlotEntries(t *testing.T) {
	f := NewFigure()
	f.Add(Series{X: Values{1}, Y: Values{1}, Title: "a'b"})
	ys := make(Values, 25)
	f.Add(Series{X: make(Values, 25), Y: ys, Z: make(Values, 25)})

	got := f.plotEntries("i0", []int{0, 1})
	want := []string{
		"$i0_0 title 'a''b' w line lc rgb '#0072bd' lw 1 pt 1 dt 1 pi 0",
		"$i0_1 title '' w line palette lw 1 pt 2 dt 2 pi 2",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("plotEntries() mismatch (-want +got):\n%s", diff)
	}
}

func TestFigureScriptKeepsOwner(t *testing.T) {
	f := NewFigure()
	f.Add(Series{X: Values{1}, Y: Values{2}})
	c := NewCanvas([]*Figure{f})
	c.Params.Set(KeyXFormat, "%.2f")
	c.Params.Set(KeyColors, []string{"#112233"})

	// Rendered alone, the figure still reads the params of its canvas.
	if script := f.Script(); !strings.Contains(script, `set format x "%.2f"`) || !strings.Contains(script, "'#112233'") {
		t.Errorf("Script() ignores the owning canvas:\n%s", script)
	}
	if got, want := f.XLabel.Directive(), "set format x \"%.2f\"\nset xlabel \"\" offset screen 0, 0\n"; got != want {
		t.Errorf("after Script(): label = %q, want %q", got, want)
	}
	if got := f.Lines.Clause(0, false); !strings.Contains(got, "'#112233'") {
		t.Errorf("after Script(): clause = %q", got)
	}
	if f.canvas != c {
		t.Error("Script() detached the figure from its canvas")
	}
}
