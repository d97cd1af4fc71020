package gnuplotter

// PreviewOptions describe the figure drawn by the live preview.
type PreviewOptions struct {
	Title   string
	Columns []string
	XLabel  string
	YLabel  string
	With    string
	YMin    *float64 `json:",omitempty"`
	YMax    *float64 `json:",omitempty"`
}

// Metadata is served to preview clients before the first frame.
type Metadata struct {
	WindowSize     int
	IntervalMs     int64
	PreviewOptions PreviewOptions
}
