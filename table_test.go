package gnuplotter

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/aclements/go-gg/table"
	"github.com/google/go-cmp/cmp"
)

func column(t *testing.T, tbl *table.Table, name string) []float64 {
	t.Helper()
	col, err := TableColumn(tbl, name)
	if err != nil {
		t.Fatalf("TableColumn(%q) error = %v", name, err)
	}
	return col
}

func TestReadTable(t *testing.T) {
	ctx := context.Background()

	t.Run("Header", func(t *testing.T) {
		input := "# latency run\ntime p50 p99\n0 1.5 3\n\n1, 2, 4\n2 oops 5\n3 4\n4 5 6\n"
		tbl, err := ReadTable(ctx, NewRelaxedStringReader(strings.NewReader(input)), true)
		if err != nil {
			t.Fatalf("ReadTable() error = %v", err)
		}
		if diff := cmp.Diff([]string{"time", "p50", "p99"}, tbl.Columns()); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
		// The unparsable and short rows are skipped.
		if diff := cmp.Diff([]float64{0, 1, 4}, column(t, tbl, "time")); diff != "" {
			t.Errorf("time mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]float64{3, 4, 6}, column(t, tbl, "p99")); diff != "" {
			t.Errorf("p99 mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("NoHeader", func(t *testing.T) {
		input := "1,2\n3,4\n"
		tbl, err := ReadTable(ctx, NewCsvStringReader(strings.NewReader(input)), false)
		if err != nil {
			t.Fatalf("ReadTable() error = %v", err)
		}
		if diff := cmp.Diff([]string{"c0", "c1"}, tbl.Columns()); diff != "" {
			t.Errorf("columns mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]float64{2, 4}, column(t, tbl, "c1")); diff != "" {
			t.Errorf("c1 mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("HeaderOnly", func(t *testing.T) {
		tbl, err := ReadTable(ctx, NewRelaxedStringReader(strings.NewReader("x y\n")), true)
		if err != nil {
			t.Fatalf("ReadTable() error = %v", err)
		}
		if got := column(t, tbl, "y"); len(got) != 0 {
			t.Errorf("y = %v, want empty", got)
		}
	})

	t.Run("CanceledContext", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := ReadTable(ctx, NewRelaxedStringReader(strings.NewReader("1 2\n")), false)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("ReadTable() error = %v, want context.Canceled", err)
		}
	})
}

func TestTableFromRows(t *testing.T) {
	tbl := TableFromRows([]string{"a", "b"}, []DataRow{
		{X: 1, Ys: []float64{10, 20}},
		{X: 2, Ys: []float64{11}},
	})

	if diff := cmp.Diff([]string{"x", "a", "b"}, tbl.Columns()); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{1, 2}, column(t, tbl, "x")); diff != "" {
		t.Errorf("x mismatch (-want +got):\n%s", diff)
	}
	b := column(t, tbl, "b")
	if len(b) != 2 || b[0] != 20 || !math.IsNaN(b[1]) {
		t.Errorf("b = %v, want [20 NaN]", b)
	}
}

func TestTableColumn(t *testing.T) {
	tbl := new(table.Builder).
		Add("f", []float64{1.5}).
		Add("i", []int64{2}).
		Add("s", []string{"3"}).
		Done()

	if got := column(t, tbl, "f"); got[0] != 1.5 {
		t.Errorf("f = %v", got)
	}
	if got := column(t, tbl, "i"); got[0] != 2 {
		t.Errorf("i = %v", got)
	}
	if _, err := TableColumn(tbl, "s"); err == nil {
		t.Error("TableColumn converted a string column")
	}
	if _, err := TableColumn(tbl, "nope"); err == nil {
		t.Error("TableColumn found a missing column")
	}
}
