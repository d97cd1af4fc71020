package gnuplotter

import (
	"context"
	"errors"
	"io"
	"runtime/trace"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// SVGRenderer turns a canvas into an SVG document.
type SVGRenderer interface {
	RenderSVG(ctx context.Context, c *Canvas) ([]byte, error)
}

// RenderSVG lets a Gnuplot serve as the renderer of a StreamPlot.
func (g *Gnuplot) RenderSVG(ctx context.Context, c *Canvas) ([]byte, error) {
	return c.RenderSVG(ctx, g)
}

// DefaultRenderInterval bounds how often the preview invokes gnuplot.
const DefaultRenderInterval = 250 * time.Millisecond

// StreamPlot redraws a figure of streamed rows. Rows accumulate in a
// window of fixed size; every interval, if rows arrived, the window is
// rendered and published as a frame.
type StreamPlot struct {
	input       DataRowReader
	renderer    SVGRenderer
	broadcaster *FrameBroadcaster
	options     PreviewOptions
	params      *Params
	interval    time.Duration

	mutex  sync.Mutex
	window *ThreadUnsafeRing[DataRow]
	dirty  bool
	seq    uint32

	wg          sync.WaitGroup
	inputDone   chan struct{}
	streamEnded atomic.Bool
	err         error // Read only after streamEnded is true.

	logger logrus.FieldLogger
}

func NewStreamPlot(input DataRowReader, renderer SVGRenderer, broadcaster *FrameBroadcaster, windowSize int, interval time.Duration, options PreviewOptions) *StreamPlot {
	if options.Columns == nil {
		options.Columns = input.ColumnNames()
	}
	if windowSize < 1 {
		windowSize = 1
	}
	if interval <= 0 {
		interval = DefaultRenderInterval
	}
	return &StreamPlot{
		input:       input,
		renderer:    renderer,
		broadcaster: broadcaster,
		options:     options,
		params:      Defaults,
		interval:    interval,
		window:      NewRing[DataRow](windowSize),
		inputDone:   make(chan struct{}),
		logger:      logrus.WithField("tag", "StreamPlot"),
	}
}

// WithParams sets the layer the preview canvas params are stacked on.
func (s *StreamPlot) WithParams(p *Params) *StreamPlot {
	s.params = p
	return s
}

func (s *StreamPlot) Start(ctx context.Context) {
	s.wg.Add(2)

	go func() {
		defer s.wg.Done()
		defer close(s.inputDone)
		s.err = s.readLoop(ctx)
		s.streamEnded.Store(true)
	}()

	go func() {
		defer s.wg.Done()
		s.renderLoop(ctx)
	}()
}

func (s *StreamPlot) Wait() {
	s.wg.Wait()
}

// Err returns the error that ended the input, once it ended.
func (s *StreamPlot) Err() error {
	if !s.streamEnded.Load() {
		return nil
	}
	return s.err
}

func (s *StreamPlot) readLoop(ctx context.Context) error {
	for {
		row, err := s.input.Read(ctx)
		if errors.Is(err, errSkipLine) {
			continue
		} else if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}

		s.mutex.Lock()
		s.window.Push(row)
		s.dirty = true
		s.mutex.Unlock()
	}
}

func (s *StreamPlot) renderLoop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.renderIfDirty(ctx)
		case <-s.inputDone:
			s.renderIfDirty(ctx)
			s.broadcaster.End(ctx, s.err)
			return
		case <-ctx.Done():
			s.broadcaster.End(ctx, ctx.Err())
			return
		}
	}
}

// Canvas builds the preview canvas from the rows currently in the window.
func (s *StreamPlot) Canvas() *Canvas {
	s.mutex.Lock()
	rows := s.window.ReadAllOrdered()
	s.mutex.Unlock()

	return s.canvas(rows)
}

func (s *StreamPlot) canvas(rows []DataRow) *Canvas {
	data := TableFromRows(s.options.Columns, rows)
	f := Draw(data, xColumn, s.options.Columns, DrawOptions{With: s.options.With})
	f.Title = s.options.Title
	f.XLabel.Name = s.options.XLabel
	f.YLabel.Name = s.options.YLabel
	f.YBounds = Range{Min: s.options.YMin, Max: s.options.YMax}

	c := NewCanvas([]*Figure{f})
	c.Params = NewParams(s.params, nil)
	return c
}

// renderIfDirty renders the window when rows arrived since the last frame.
// A failed render is logged and the stream carries on.
func (s *StreamPlot) renderIfDirty(ctx context.Context) {
	s.mutex.Lock()
	if !s.dirty {
		s.mutex.Unlock()
		return
	}
	s.dirty = false
	rows := s.window.ReadAllOrdered()
	s.mutex.Unlock()

	traceCtx, task := trace.NewTask(ctx, "RenderFrame")
	defer task.End()

	c := s.canvas(rows)
	var svg []byte
	var err error
	trace.WithRegion(traceCtx, "Render", func() {
		svg, err = s.renderer.RenderSVG(traceCtx, c)
	})
	if err != nil {
		s.logger.WithError(err).WithField("rows", len(rows)).Warn("failed to render frame")
		return
	}

	s.seq++
	s.broadcaster.Publish(traceCtx, Frame{Seq: s.seq, SVG: svg, Script: c.Script()})
}
