package gnuplotter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aclements/go-gg/table"
	"gopkg.in/yaml.v3"
)

// Scene is the YAML description of a whole canvas.
//
//	output: plots/latency
//	formats: [svg, png]
//	params:
//	  spacing: 0.05
//	style:
//	  - clean: y_axis
//	    start: 1
//	panels:
//	  - data: latency.csv
//	    x: time
//	    y: [p50, p99]
//	    ylabel: latency (ms)
type Scene struct {
	Output     string         `yaml:"output"`
	Formats    []string       `yaml:"formats"`
	Transposed bool           `yaml:"transposed"`
	Flattened  bool           `yaml:"flattened"`
	Params     map[string]any `yaml:"params"`
	Style      []SceneStyle   `yaml:"style"`
	Panels     []ScenePanel   `yaml:"panels"`

	// dir resolves relative data and output paths.
	dir string
}

// SceneStyle selects a built-in styler and the panels it applies to.
type SceneStyle struct {
	Clean string `yaml:"clean"`
	Start int    `yaml:"start"`
	Stop  *int   `yaml:"stop"`
}

// ScenePanel describes one figure of the scene.
type ScenePanel struct {
	ID           string         `yaml:"id"`
	Data         string         `yaml:"data"`
	CSV          bool           `yaml:"csv"`
	NoHeader     bool           `yaml:"no_header"`
	X            string         `yaml:"x"`
	Y            []string       `yaml:"y"`
	Z            string         `yaml:"z"`
	With         string         `yaml:"with"`
	Name         string         `yaml:"name"`
	LegendPrefix string         `yaml:"legend_prefix"`
	Title        string         `yaml:"title"`
	XLabel       string         `yaml:"xlabel"`
	YLabel       string         `yaml:"ylabel"`
	XRange       *Range         `yaml:"xrange"`
	YRange       *Range         `yaml:"yrange"`
	XLog         bool           `yaml:"xlog"`
	YLog         bool           `yaml:"ylog"`
	Legend       *SceneLegend   `yaml:"legend"`
	Series       []SeriesStyle  `yaml:"series"`
	Properties   PlotProperties `yaml:"properties"`
	Set          []string       `yaml:"set"`
}

type SceneLegend struct {
	Visible  *bool    `yaml:"visible"`
	Position string   `yaml:"position"`
	Titles   []string `yaml:"titles"`
}

// LoadScene decodes a scene. Relative paths in it are resolved against dir.
func LoadScene(r io.Reader, dir string) (*Scene, error) {
	var s Scene
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scene: %w", err)
	}
	s.dir = dir
	return &s, nil
}

// LoadSceneFile decodes the scene stored at path.
func LoadSceneFile(path string) (*Scene, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadScene(f, filepath.Dir(path))
}

func (s *Scene) resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

// Build reads the data of every panel and assembles the canvas. params is
// the layer the scene params are stacked on; nil means Defaults.
func (s *Scene) Build(ctx context.Context, params *Params) (*Canvas, error) {
	if params == nil {
		params = Defaults
	}
	c := NewCanvas(nil)
	c.Params = NewParams(params, s.Params)
	if len(s.Formats) > 0 {
		c.Params.Set(KeyFormats, s.Formats)
	}
	c.Transposed = s.Transposed
	c.Flattened = s.Flattened
	c.Filename = s.resolve(s.Output)

	for _, st := range s.Style {
		styler, err := sceneStyler(st)
		if err != nil {
			return nil, err
		}
		if c.Style != nil {
			styler = c.Style.Then(styler)
		}
		c.Style = styler
	}

	tables := make(map[dataKey]*table.Table)
	for i, p := range s.Panels {
		id := p.ID
		if id == "" {
			id = fmt.Sprintf("i%d", i)
		}

		key := dataKey{path: p.Data, csv: p.CSV, noHeader: p.NoHeader}
		data, ok := tables[key]
		if !ok {
			var err error
			data, err = s.readData(ctx, p)
			if err != nil {
				return nil, fmt.Errorf("panel %s: %w", id, err)
			}
			tables[key] = data
		}

		f, err := p.figure(data)
		if err != nil {
			return nil, fmt.Errorf("panel %s: %w", id, err)
		}
		c.SetPanel(id, f)
	}
	return c, nil
}

// dataKey identifies a parsed data file. The same file read with other
// flags yields other columns.
type dataKey struct {
	path     string
	csv      bool
	noHeader bool
}

func (s *Scene) readData(ctx context.Context, p ScenePanel) (*table.Table, error) {
	if p.Data == "" {
		return nil, fmt.Errorf("no data file")
	}
	f, err := os.Open(s.resolve(p.Data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r StringReader = NewRelaxedStringReader(f)
	if p.CSV {
		r = NewCsvStringReader(f)
	}
	return ReadTable(ctx, r, !p.NoHeader)
}

func (p ScenePanel) figure(data *table.Table) (*Figure, error) {
	if p.X == "" || len(p.Y) == 0 {
		return nil, fmt.Errorf("x and y columns are required")
	}

	f := Draw(data, p.X, p.Y, DrawOptions{
		With:         p.With,
		Z:            p.Z,
		Name:         p.Name,
		LegendPrefix: p.LegendPrefix,
		Props:        &Props{Properties: p.Properties},
	})

	for i, st := range p.Series {
		if i >= len(f.Lines.Series) {
			break
		}
		if st.With == "" {
			st.With = f.Lines.Series[i].With
		}
		f.Lines.Series[i] = st
	}

	f.Title = p.Title
	if p.XLabel != "" {
		f.XLabel.Name = p.XLabel
	}
	if p.YLabel != "" {
		f.YLabel.Name = p.YLabel
	}
	if p.XRange != nil {
		f.XBounds = *p.XRange
	}
	if p.YRange != nil {
		f.YBounds = *p.YRange
	}
	f.XLog = p.XLog
	f.YLog = p.YLog
	if p.Legend != nil {
		if p.Legend.Visible != nil {
			f.Legend.Visible = *p.Legend.Visible
		}
		f.Legend.Position = p.Legend.Position
		for i, t := range p.Legend.Titles {
			if i < len(f.Legend.Titles) {
				f.Legend.Titles[i] = t
			}
		}
	}
	for _, opts := range p.Set {
		f.Set(opts, true)
	}
	return f, nil
}

func sceneStyler(st SceneStyle) (*Styler, error) {
	var s *Styler
	switch st.Clean {
	case "y_axis":
		s = CleanYAxis()
	case "x_axis":
		s = CleanXAxis()
	case "legend":
		s = CleanLegend()
	default:
		return nil, fmt.Errorf("unknown style %q", st.Clean)
	}
	if st.Stop != nil {
		return s.Select(st.Start, *st.Stop), nil
	}
	return s.From(st.Start), nil
}
