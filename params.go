package gnuplotter

import (
	"fmt"
	"io"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// Parameter keys understood by the script generator.
const (
	KeyColors             = "colors"
	KeyFigureWidthPx      = "figure_width_px"
	KeyFigureHeightPx     = "figure_height_px"
	KeyFigureWidthCm      = "figure_width_cm"
	KeyFigureHeightCm     = "figure_height_cm"
	KeyMaxCanvasWidthPx   = "max_canvas_width_px"
	KeyMaxCanvasHeightPx  = "max_canvas_height_px"
	KeyMaxCanvasWidthCm   = "max_canvas_width_cm"
	KeyMaxCanvasHeightCm  = "max_canvas_height_cm"
	KeySvgFont            = "svg_font"
	KeyPngFont            = "png_font"
	KeyBorder             = "border"
	KeyBorderLineWidth    = "lw"
	KeyCanvasLMargin      = "canvas_lmargin"
	KeyCanvasRMargin      = "canvas_rmargin"
	KeyCanvasTMargin      = "canvas_tmargin"
	KeyCanvasBMargin      = "canvas_bmargin"
	KeySpacing            = "spacing"
	KeyXLabelOffset       = "x_label_offset"
	KeyYLabelOffset       = "y_label_offset"
	KeyXFormat            = "xformat"
	KeyYFormat            = "yformat"
	KeyNumXTics           = "num_x_tics"
	KeyNumYTics           = "num_y_tics"
	KeyPlotSize           = "plot_size"
	KeyPlotRatio          = "plot_ratio"
	KeyEpsTerminalOptions = "eps_terminal_options"
	KeySvgTerminalOptions = "svg_terminal_options"
	KeyPngTerminalOptions = "png_terminal_options"
	KeyLegendPosition     = "legend_position"
	KeyLineWidth          = "line_width"
	KeyFitCanvas          = "fit_canvas"
	KeyNiceRanges         = "nice_ranges"
	KeyFormats            = "formats"
)

// Params is a layered parameter dictionary. Lookups that miss the local
// values are delegated to the parent, so a chain of Params always ends at
// Defaults.
type Params struct {
	parent *Params
	values map[string]any
}

// Defaults holds the process-wide parameters every chain falls back to.
// Modifying it affects every canvas that does not override the key.
var Defaults = NewParams(nil, map[string]any{
	KeyColors: []string{"#0072bd", "#d95319", "#edb120", "#7e2f8e", "#77ac30",
		"#4dbeee", "#a2142f"},
	KeyFigureWidthPx:      255,
	KeyFigureHeightPx:     255,
	KeyFigureWidthCm:      5.75,
	KeyFigureHeightCm:     5.75,
	KeyMaxCanvasWidthPx:   750,
	KeyMaxCanvasHeightPx:  250,
	KeyMaxCanvasWidthCm:   13.5,
	KeyMaxCanvasHeightCm:  5.4,
	KeySvgFont:            "Arial bold",
	KeyPngFont:            "Arial bold",
	KeyBorder:             31,
	KeyBorderLineWidth:    1,
	KeyCanvasLMargin:      0.2,
	KeyCanvasRMargin:      0.8,
	KeyCanvasTMargin:      1.0,
	KeyCanvasBMargin:      0.2,
	KeySpacing:            0.025,
	KeyXLabelOffset:       []float64{0, 0},
	KeyYLabelOffset:       []float64{0, 0},
	KeyXFormat:            "%g",
	KeyYFormat:            "%g",
	KeyNumXTics:           3,
	KeyNumYTics:           3,
	KeyPlotSize:           []float64{},
	KeyPlotRatio:          1.0,
	KeyEpsTerminalOptions: "color",
	KeySvgTerminalOptions: "",
	KeyPngTerminalOptions: "",
	KeyLegendPosition:     "top right",
	KeyLineWidth:          1,
	KeyFitCanvas:          false,
	KeyNiceRanges:         false,
	KeyFormats:            []string{"svg", "eps"},
})

// NewParams creates a parameter layer on top of parent. A nil parent makes
// this layer a root.
func NewParams(parent *Params, values map[string]any) *Params {
	if values == nil {
		values = make(map[string]any)
	}
	return &Params{parent: parent, values: values}
}

// LoadParams reads a YAML mapping of parameter overrides.
func LoadParams(r io.Reader, parent *Params) (*Params, error) {
	values := make(map[string]any)
	if err := yaml.NewDecoder(r).Decode(&values); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode params: %w", err)
	}
	return NewParams(parent, values), nil
}

func (p *Params) Parent() *Params {
	return p.parent
}

// Set stores a value in this layer only.
func (p *Params) Set(key string, value any) {
	p.values[key] = value
}

// Get walks the chain and returns the first value stored under key.
func (p *Params) Get(key string) (any, bool) {
	for layer := p; layer != nil; layer = layer.parent {
		if v, ok := layer.values[key]; ok {
			return v, true
		}
	}
	return nil, false
}

// Keys returns every key visible through this layer, sorted.
func (p *Params) Keys() []string {
	seen := make(map[string]struct{})
	for layer := p; layer != nil; layer = layer.parent {
		for _, k := range maps.Keys(layer.values) {
			seen[k] = struct{}{}
		}
	}
	keys := maps.Keys(seen)
	slices.Sort(keys)
	return keys
}

// Flatten resolves the chain into a single map, mostly for printing.
func (p *Params) Flatten() map[string]any {
	out := make(map[string]any)
	for _, k := range p.Keys() {
		out[k], _ = p.Get(k)
	}
	return out
}

func (p *Params) String(key string) string {
	v, ok := p.Get(key)
	if !ok {
		return ""
	}
	switch vv := v.(type) {
	case string:
		return vv
	case float64:
		return formatFloat(vv)
	default:
		return fmt.Sprint(vv)
	}
}

func (p *Params) Float(key string) float64 {
	v, _ := p.Get(key)
	f, _ := toFloat(v)
	return f
}

func (p *Params) Int(key string) int {
	v, _ := p.Get(key)
	f, _ := toFloat(v)
	return int(f)
}

func (p *Params) Bool(key string) bool {
	v, _ := p.Get(key)
	b, _ := v.(bool)
	return b
}

func (p *Params) Floats(key string) []float64 {
	v, _ := p.Get(key)
	switch vv := v.(type) {
	case []float64:
		return vv
	case []any:
		out := make([]float64, 0, len(vv))
		for _, e := range vv {
			f, ok := toFloat(e)
			if !ok {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

func (p *Params) Strings(key string) []string {
	v, _ := p.Get(key)
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, e := range vv {
			out = append(out, fmt.Sprint(e))
		}
		return out
	case string:
		return []string{vv}
	}
	return nil
}

// toFloat accepts the numeric types produced by Go literals and by the YAML
// decoder.
func toFloat(v any) (float64, bool) {
	switch vv := v.(type) {
	case float64:
		return vv, true
	case float32:
		return float64(vv), true
	case int:
		return float64(vv), true
	case int64:
		return float64(vv), true
	case uint64:
		return float64(vv), true
	}
	return 0, false
}
