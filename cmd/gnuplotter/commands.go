package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aclements/go-gg/table"
	"github.com/cactusdynamics/gnuplotter"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

func parseFormats(names []string) ([]gnuplotter.Format, error) {
	formats := make([]gnuplotter.Format, 0, len(names))
	for _, n := range names {
		f, err := gnuplotter.ParseFormat(n)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

func printPaths(w io.Writer, paths []string) {
	for _, p := range paths {
		fmt.Fprintln(w, p)
	}
}

type renderCommand struct {
	Output     string   `short:"o" long:"output" description:"output base name, overriding the scene"`
	Formats    []string `short:"f" long:"format" description:"output format (svg, eps, png); repeatable"`
	ScriptOnly bool     `long:"script-only" description:"write the script for the first format without running gnuplot"`
	Stdout     bool     `long:"stdout" description:"write the SVG rendering to stdout"`

	Args struct {
		Scene string `positional-arg-name:"scene" required:"yes"`
	} `positional-args:"yes"`
}

func (cmd *renderCommand) Execute(args []string) error {
	params, g, err := setup()
	if err != nil {
		return err
	}
	formats, err := parseFormats(cmd.Formats)
	if err != nil {
		return err
	}

	scene, err := gnuplotter.LoadSceneFile(cmd.Args.Scene)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	c, err := scene.Build(ctx, params)
	if err != nil {
		return err
	}
	if cmd.Output != "" {
		c.Filename = cmd.Output
	}

	switch {
	case cmd.Stdout:
		if term.IsTerminal(int(os.Stdout.Fd())) {
			return errors.New("refusing to write SVG to a terminal; redirect stdout")
		}
		svg, err := c.RenderSVG(ctx, g)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(svg)
		return err

	case cmd.ScriptOnly:
		if len(formats) == 0 {
			if formats, err = c.Formats(); err != nil {
				return err
			}
		}
		if len(formats) == 0 {
			formats = []gnuplotter.Format{gnuplotter.FormatSVG}
		}
		script, err := c.WriteScript(formats[0])
		if err != nil {
			return err
		}
		printPaths(os.Stdout, []string{script.Path()})
		return nil

	default:
		outputs, err := c.Export(ctx, g, formats...)
		printPaths(os.Stdout, outputs)
		return err
	}
}

type plotCommand struct {
	X         string   `short:"x" long:"x" description:"x column; defaults to the first column"`
	Y         []string `short:"y" long:"y" description:"y column; repeatable, defaults to every other column"`
	Z         string   `short:"z" long:"z" description:"column coloring the points through the palette"`
	With      string   `short:"w" long:"with" default:"line" description:"plot mode: line, points, linespoints, impulses, dots"`
	Title     string   `short:"t" long:"title" description:"figure title"`
	XLabel    string   `long:"xlabel" description:"x axis label; defaults to the x column"`
	YLabel    string   `long:"ylabel" description:"y axis label; defaults to the y column when there is one"`
	XLog      bool     `long:"xlog" description:"logarithmic x axis"`
	YLog      bool     `long:"ylog" description:"logarithmic y axis"`
	Output    string   `short:"o" long:"output" default:"plot" description:"output base name"`
	Formats   []string `short:"f" long:"format" description:"output format (svg, eps, png); repeatable"`
	Panels    bool     `long:"panels" description:"one panel per y column"`
	Flat      bool     `long:"flat" description:"stack the panels in a single column"`
	Transpose bool     `long:"transpose" description:"swap the rows and columns of the layout"`
	CSV       bool     `long:"csv" description:"parse the input as strict CSV"`
	NoHeader  bool     `long:"no-header" description:"the first line is data; columns are named c0, c1, ..."`

	Args struct {
		Data string `positional-arg-name:"data" description:"data file; stdin when omitted or -"`
	} `positional-args:"yes"`
}

func (cmd *plotCommand) input() (io.ReadCloser, error) {
	if cmd.Args.Data == "" || cmd.Args.Data == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	return os.Open(cmd.Args.Data)
}

func (cmd *plotCommand) Execute(args []string) error {
	params, g, err := setup()
	if err != nil {
		return err
	}
	formats, err := parseFormats(cmd.Formats)
	if err != nil {
		return err
	}

	in, err := cmd.input()
	if err != nil {
		return err
	}
	defer in.Close()

	var reader gnuplotter.StringReader = gnuplotter.NewRelaxedStringReader(in)
	if cmd.CSV {
		reader = gnuplotter.NewCsvStringReader(in)
	}

	ctx, cancel := commandContext()
	defer cancel()

	data, err := gnuplotter.ReadTable(ctx, reader, !cmd.NoHeader)
	if err != nil {
		return err
	}
	columns := data.Columns()
	if len(columns) == 0 {
		return errors.New("no columns in input")
	}

	x := cmd.X
	if x == "" {
		x = columns[0]
	}
	ys := cmd.Y
	if len(ys) == 0 {
		ys = gnuplotter.Filter(columns, func(c string) bool {
			return c != x && c != cmd.Z
		})
	}
	if len(ys) == 0 {
		return errors.New("no y columns to plot")
	}

	var figures []*gnuplotter.Figure
	if cmd.Panels {
		for _, y := range ys {
			figures = append(figures, cmd.figure(data, x, []string{y}))
		}
	} else {
		figures = append(figures, cmd.figure(data, x, ys))
	}

	c := gnuplotter.NewCanvas(figures).WithFilename(cmd.Output)
	c.Params = gnuplotter.NewParams(params, nil)
	c.Flattened = cmd.Flat
	c.Transposed = cmd.Transpose

	outputs, err := c.Export(ctx, g, formats...)
	printPaths(os.Stdout, outputs)
	return err
}

func (cmd *plotCommand) figure(data *table.Table, x string, ys []string) *gnuplotter.Figure {
	f := gnuplotter.Draw(data, x, ys, gnuplotter.DrawOptions{With: cmd.With, Z: cmd.Z})
	f.Title = cmd.Title
	f.XLog = cmd.XLog
	f.YLog = cmd.YLog

	f.XLabel.Name = x
	if cmd.XLabel != "" {
		f.XLabel.Name = cmd.XLabel
	}
	if len(ys) == 1 {
		f.YLabel.Name = ys[0]
	}
	if cmd.YLabel != "" {
		f.YLabel.Name = cmd.YLabel
	}
	return f
}

type serveCommand struct {
	Host     string        `long:"host" default:"localhost" description:"address to listen on"`
	Port     uint16        `long:"port" default:"5274" description:"port to listen on"`
	Columns  []string      `short:"c" long:"column" description:"name of a y column; repeatable"`
	XIndex   int           `long:"x-index" default:"-1" description:"column holding x; negative uses the arrival time"`
	Window   int           `long:"window" default:"1000" description:"number of rows kept in the plot"`
	Interval time.Duration `long:"interval" default:"250ms" description:"minimum time between renders"`
	CSV      bool          `long:"csv" description:"parse the input as strict CSV"`
	Title    string        `short:"t" long:"title" description:"figure title"`
	XLabel   string        `long:"xlabel" description:"x axis label"`
	YLabel   string        `long:"ylabel" description:"y axis label"`
	With     string        `short:"w" long:"with" default:"line" description:"plot mode"`
	YMin     *float64      `long:"ymin" description:"fixed lower y bound"`
	YMax     *float64      `long:"ymax" description:"fixed upper y bound"`
}

func (cmd *serveCommand) Execute(args []string) error {
	params, g, err := setup()
	if err != nil {
		return err
	}
	logger := logrus.WithField("tag", "serve")

	var input gnuplotter.StringReader = gnuplotter.NewRelaxedStringReader(os.Stdin)
	if cmd.CSV {
		input = gnuplotter.NewCsvStringReader(os.Stdin)
	}

	columns := cmd.Columns
	if len(columns) == 0 {
		columns = []string{"y"}
	}
	rows := &gnuplotter.TextToDataRowReader{
		Input:                  input,
		XIndex:                 cmd.XIndex,
		Columns:                columns,
		ExpectExactColumnCount: len(cmd.Columns) > 0,
	}

	options := gnuplotter.PreviewOptions{
		Title:   cmd.Title,
		Columns: columns,
		XLabel:  cmd.XLabel,
		YLabel:  cmd.YLabel,
		With:    cmd.With,
		YMin:    cmd.YMin,
		YMax:    cmd.YMax,
	}

	ctx, cancel := commandContext()
	defer cancel()

	broadcaster := gnuplotter.NewFrameBroadcaster()
	plot := gnuplotter.NewStreamPlot(rows, g, broadcaster, cmd.Window, cmd.Interval, options).WithParams(params)
	plot.Start(ctx)

	go func() {
		plot.Wait()
		if err := plot.Err(); err != nil {
			logger.WithError(err).Error("input failed")
			return
		}
		logger.Info("input ended, serving the last frame until interrupted")
	}()

	server := gnuplotter.NewHttpServer(broadcaster, cmd.Host, cmd.Port, gnuplotter.Metadata{
		WindowSize:     cmd.Window,
		IntervalMs:     cmd.Interval.Milliseconds(),
		PreviewOptions: options,
	})

	errc := make(chan error, 1)
	go func() {
		errc <- server.Run()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		return nil
	}
}

type paramsCommand struct{}

func (cmd *paramsCommand) Execute(args []string) error {
	params, _, err := setup()
	if err != nil {
		return err
	}
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(params.Flatten())
}
