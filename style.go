package gnuplotter

// Styler applies a function to a selection of the panels of a canvas. A
// chain of stylers is built through Prev: the predecessor runs on the
// whole canvas first.
type Styler struct {
	Func func(*Figure)

	// Start and Stop select panels like a slice expression. Negative values
	// count from the end; a nil Stop means the end.
	Start int
	Stop  *int

	Prev *Styler
}

// NewStyler returns a styler applying fn to every panel.
func NewStyler(fn func(*Figure)) *Styler {
	return &Styler{Func: fn}
}

// Select restricts the styler to panels [start, stop).
func (s *Styler) Select(start, stop int) *Styler {
	s.Start = start
	s.Stop = &stop
	return s
}

// From restricts the styler to panels [start, end).
func (s *Styler) From(start int) *Styler {
	s.Start = start
	s.Stop = nil
	return s
}

// Then chains next after s and returns next.
func (s *Styler) Then(next *Styler) *Styler {
	next.Prev = s
	return next
}

func (s *Styler) Apply(c *Canvas) {
	if s.Prev != nil {
		s.Prev.Apply(c)
	}
	for _, f := range s.selection(c.Panels()) {
		s.Func(f)
	}
}

func (s *Styler) selection(panels []*Figure) []*Figure {
	n := len(panels)
	start := sliceIndex(s.Start, n)
	stop := n
	if s.Stop != nil {
		stop = sliceIndex(*s.Stop, n)
	}
	if start >= stop {
		return nil
	}
	return panels[start:stop]
}

func sliceIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// CleanYAxis hides the y label and tic labels of the selected panels.
func CleanYAxis() *Styler {
	return NewStyler(func(f *Figure) { f.YLabel.Visible = false })
}

// CleanXAxis hides the x label and tic labels of the selected panels.
func CleanXAxis() *Styler {
	return NewStyler(func(f *Figure) { f.XLabel.Visible = false })
}

// CleanLegend hides the key of the selected panels.
func CleanLegend() *Styler {
	return NewStyler(func(f *Figure) { f.Legend.Visible = false })
}
