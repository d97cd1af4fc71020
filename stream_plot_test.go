package gnuplotter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"
)

// testDataRowReader yields a sequence of DataRows or errors, then io.EOF.
type testDataRowReader struct {
	items   []interface{} // each item is either DataRow or error
	columns []string
	i       int
}

func newTestReaderFromRows(columns []string, rows ...DataRow) *testDataRowReader {
	items := make([]interface{}, len(rows))
	for i, r := range rows {
		items[i] = r
	}
	return &testDataRowReader{items: items, columns: columns}
}

func (r *testDataRowReader) Read(ctx context.Context) (DataRow, error) {
	if r.i >= len(r.items) {
		return DataRow{}, io.EOF
	}

	v := r.items[r.i]
	r.i++

	switch vv := v.(type) {
	case DataRow:
		return vv, nil
	case error:
		return DataRow{}, vv
	default:
		return DataRow{}, fmt.Errorf("invalid seq item")
	}
}

func (r *testDataRowReader) ColumnNames() []string { return r.columns }

// blockingDataRowReader blocks until the context is done.
type blockingDataRowReader struct{}

func (blockingDataRowReader) Read(ctx context.Context) (DataRow, error) {
	<-ctx.Done()
	return DataRow{}, ctx.Err()
}

func (blockingDataRowReader) ColumnNames() []string { return []string{"y"} }

// fakeRenderer records the scripts it was asked to render.
type fakeRenderer struct {
	mutex   sync.Mutex
	scripts []string
	err     error
}

func (r *fakeRenderer) RenderSVG(ctx context.Context, c *Canvas) ([]byte, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.err != nil {
		return nil, r.err
	}
	r.scripts = append(r.scripts, c.Script())
	return []byte(fmt.Sprintf("<svg id=%q/>", c.Panels()[0].Title)), nil
}

func (r *fakeRenderer) calls() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.scripts)
}

// drain collects frames from ch until the end frame arrives.
func drain(t *testing.T, ch <-chan Frame) (frames []Frame, end Frame) {
	t.Helper()
	for {
		f, ok := recvFrame(ch, 2*time.Second)
		if !ok {
			t.Fatalf("timed out after %d frames", len(frames))
		}
		if f.streamEnded {
			return frames, f
		}
		frames = append(frames, f)
	}
}

func TestStreamPlot(t *testing.T) {
	t.Run("FinalRenderAndEnd", func(t *testing.T) {
		ctx := context.Background()
		reader := newTestReaderFromRows([]string{"a"},
			DataRow{X: 1, Ys: []float64{10}},
			DataRow{X: 2, Ys: []float64{20}},
			DataRow{X: 3, Ys: []float64{30}},
		)
		renderer := &fakeRenderer{}
		b := NewFrameBroadcaster()
		ch := make(chan Frame, 10)
		b.RegisterChannel(ctx, ch)

		// A long interval leaves only the render on end of input.
		p := NewStreamPlot(reader, renderer, b, 2, time.Hour, PreviewOptions{Title: "live"})
		p.Start(ctx)
		p.Wait()

		frames, end := drain(t, ch)
		if end.streamErr != nil {
			t.Fatalf("end error = %v, want nil", end.streamErr)
		}
		if p.Err() != nil {
			t.Fatalf("Err() = %v, want nil", p.Err())
		}
		if len(frames) != 1 {
			t.Fatalf("got %d frames, want 1", len(frames))
		}

		f := frames[0]
		if f.Seq != 1 || string(f.SVG) != `<svg id="live"/>` {
			t.Errorf("frame = seq %d svg %q", f.Seq, f.SVG)
		}
		// Only the last two rows fit in the window.
		if !strings.Contains(f.Script, "$i0_0 << EOD\n2 20\n3 30\nEOD\n") {
			t.Errorf("script does not hold the window:\n%s", f.Script)
		}
		if !strings.Contains(f.Script, "title 'a'") {
			t.Errorf("script lacks the column legend:\n%s", f.Script)
		}
	})

	t.Run("ColumnsFromReader", func(t *testing.T) {
		reader := newTestReaderFromRows([]string{"p50", "p99"})
		p := NewStreamPlot(reader, &fakeRenderer{}, NewFrameBroadcaster(), 10, 0, PreviewOptions{})
		if got := p.options.Columns; len(got) != 2 || got[0] != "p50" || got[1] != "p99" {
			t.Fatalf("columns = %v", got)
		}
		if p.interval != DefaultRenderInterval {
			t.Fatalf("interval = %v, want %v", p.interval, DefaultRenderInterval)
		}
	})

	t.Run("RenderFailureIsNotFatal", func(t *testing.T) {
		ctx := context.Background()
		reader := newTestReaderFromRows([]string{"a"}, DataRow{X: 1, Ys: []float64{1}})
		renderer := &fakeRenderer{err: errors.New("gnuplot missing")}
		b := NewFrameBroadcaster()
		ch := make(chan Frame, 10)
		b.RegisterChannel(ctx, ch)

		p := NewStreamPlot(reader, renderer, b, 10, time.Hour, PreviewOptions{})
		p.Start(ctx)
		p.Wait()

		frames, end := drain(t, ch)
		if len(frames) != 0 {
			t.Fatalf("got %d frames, want none", len(frames))
		}
		if end.streamErr != nil {
			t.Fatalf("end error = %v, want nil", end.streamErr)
		}
		if _, ok := b.Latest(); ok {
			t.Fatal("a failed render was published")
		}
	})

	t.Run("InputErrorEndsStream", func(t *testing.T) {
		ctx := context.Background()
		boom := errors.New("boom")
		reader := newTestReaderFromRows([]string{"a"}, DataRow{X: 1, Ys: []float64{1}})
		reader.items = append(reader.items, errSkipLine, boom)
		renderer := &fakeRenderer{}
		b := NewFrameBroadcaster()
		ch := make(chan Frame, 10)
		b.RegisterChannel(ctx, ch)

		p := NewStreamPlot(reader, renderer, b, 10, time.Hour, PreviewOptions{})
		p.Start(ctx)
		p.Wait()

		frames, end := drain(t, ch)
		if len(frames) != 1 {
			t.Fatalf("got %d frames, want 1", len(frames))
		}
		if !errors.Is(end.streamErr, boom) {
			t.Fatalf("end error = %v, want %v", end.streamErr, boom)
		}
		if !errors.Is(p.Err(), boom) {
			t.Fatalf("Err() = %v, want %v", p.Err(), boom)
		}
	})

	t.Run("CancelEndsStream", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		b := NewFrameBroadcaster()
		ch := make(chan Frame, 10)
		b.RegisterChannel(ctx, ch)

		p := NewStreamPlot(blockingDataRowReader{}, &fakeRenderer{}, b, 10, 10*time.Millisecond, PreviewOptions{})
		p.Start(ctx)
		cancel()
		p.Wait()

		_, end := drain(t, ch)
		if !errors.Is(end.streamErr, context.Canceled) {
			t.Fatalf("end error = %v, want context.Canceled", end.streamErr)
		}
	})

	t.Run("NothingToRender", func(t *testing.T) {
		ctx := context.Background()
		renderer := &fakeRenderer{}
		p := NewStreamPlot(newTestReaderFromRows([]string{"a"}), renderer, NewFrameBroadcaster(), 10, time.Hour, PreviewOptions{})
		p.Start(ctx)
		p.Wait()

		if n := renderer.calls(); n != 0 {
			t.Fatalf("renderer called %d times for an empty stream", n)
		}
	})

	t.Run("CanvasFromOptions", func(t *testing.T) {
		ymin, ymax := -1.0, 1.0
		reader := newTestReaderFromRows([]string{"a", "b"})
		p := NewStreamPlot(reader, &fakeRenderer{}, NewFrameBroadcaster(), 10, time.Hour, PreviewOptions{
			Title:  "t",
			XLabel: "time",
			YLabel: "value",
			With:   WithPoints,
			YMin:   &ymin,
			YMax:   &ymax,
		})
		p.window.Push(DataRow{X: 1, Ys: []float64{2}})

		c := p.Canvas()
		if c.Len() != 1 {
			t.Fatalf("canvas has %d panels, want 1", c.Len())
		}
		f := c.Panels()[0]
		if f.Title != "t" || f.XLabel.Name != "time" || f.YLabel.Name != "value" {
			t.Errorf("figure = title %q xlabel %q ylabel %q", f.Title, f.XLabel.Name, f.YLabel.Name)
		}
		if len(f.Series) != 2 {
			t.Fatalf("got %d series, want 2", len(f.Series))
		}
		// The missing second value is NaN, not a shorter column.
		if got := f.Series[1].Y.Values(); len(got) != 1 || !math.IsNaN(got[0]) {
			t.Errorf("second series = %v, want [NaN]", got)
		}
		if r, ok := f.YRange(); !ok || *r.Min != -1 || *r.Max != 1 {
			t.Errorf("YRange() = %v, %v", r, ok)
		}
		if !strings.Contains(c.Script(), "w points") {
			t.Errorf("script ignores the plot mode:\n%s", c.Script())
		}
	})
}
