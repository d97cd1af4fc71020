package gnuplotter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/sirupsen/logrus"
)

// DefaultCommand is the renderer command line used when none is given.
const DefaultCommand = "gnuplot"

var ErrEmptyCanvas = errors.New("canvas has no panels")

// Gnuplot runs scripts through the external gnuplot binary.
type Gnuplot struct {
	// Command is the program and leading arguments; the script file name is
	// appended.
	Command []string

	logger logrus.FieldLogger
}

// NewGnuplot parses a shell-quoted command line such as
// `gnuplot -d` or `"/opt/gnuplot 5/bin/gnuplot"`.
func NewGnuplot(command string) (*Gnuplot, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	args, err := shellquote.Split(command)
	if err != nil {
		return nil, fmt.Errorf("invalid gnuplot command %q: %w", command, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("invalid gnuplot command %q", command)
	}
	return &Gnuplot{
		Command: args,
		logger:  logrus.WithField("tag", "Gnuplot"),
	}, nil
}

// Run executes a script file from its own directory, so relative output
// names land next to it. Failures are logged and returned; nothing is
// retried.
func (g *Gnuplot) Run(ctx context.Context, scriptPath string) error {
	args := append(append([]string(nil), g.Command[1:]...), filepath.Base(scriptPath))
	cmd := exec.CommandContext(ctx, g.Command[0], args...)
	cmd.Dir = filepath.Dir(scriptPath)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger := g.logger.WithFields(logrus.Fields{
		"cmd": shellquote.Join(append([]string{g.Command[0]}, args...)...),
		"dir": cmd.Dir,
	})
	logger.Debug("running gnuplot")

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		logger.WithError(err).WithField("stderr", msg).Error("gnuplot failed")
		if msg != "" {
			return fmt.Errorf("gnuplot failed: %w: %s", err, msg)
		}
		return fmt.Errorf("gnuplot failed: %w", err)
	}

	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		// gnuplot reports warnings on stderr and still exits 0.
		logger.WithField("stderr", msg).Warn("gnuplot reported warnings")
	}
	return nil
}

// Formats returns the export formats configured in the canvas params.
func (c *Canvas) Formats() ([]Format, error) {
	names := c.params().Strings(KeyFormats)
	formats := make([]Format, 0, len(names))
	for _, n := range names {
		f, err := ParseFormat(n)
		if err != nil {
			return nil, err
		}
		formats = append(formats, f)
	}
	return formats, nil
}

// Export renders the canvas to every format in formats, or to the formats
// configured in the params when none are given. For each format the script
// is written to <Filename>.gp and run. The returned paths are the images
// that were produced.
func (c *Canvas) Export(ctx context.Context, g *Gnuplot, formats ...Format) ([]string, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCanvas
	}
	if len(formats) == 0 {
		var err error
		if formats, err = c.Formats(); err != nil {
			return nil, err
		}
	}

	script := c.newScript()

	outputs := make([]string, 0, len(formats))
	for _, format := range formats {
		header, err := c.Header(format, script.Filename)
		if err != nil {
			return outputs, err
		}
		if err := script.WriteScript(header); err != nil {
			return outputs, err
		}
		if err := g.Run(ctx, script.Path()); err != nil {
			return outputs, fmt.Errorf("failed to render %s: %w", format, err)
		}
		outputs = append(outputs, script.OutputPath(format))
	}
	return outputs, nil
}

// newScript styles the canvas and generates its body. An empty Filename is
// replaced by the generated one.
func (c *Canvas) newScript() *Script {
	c.applyStyle()
	script := NewScript(c.Script(), c.Filename)
	c.Filename = script.Filename
	return script
}

// WriteScript writes the complete script for format without running it.
func (c *Canvas) WriteScript(format Format) (*Script, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCanvas
	}
	script := c.newScript()
	header, err := c.Header(format, script.Filename)
	if err != nil {
		return nil, err
	}
	if err := script.WriteScript(header); err != nil {
		return nil, err
	}
	return script, nil
}

// RenderSVG renders the canvas in a scratch directory and returns the SVG
// document. The canvas filename is left untouched.
func (c *Canvas) RenderSVG(ctx context.Context, g *Gnuplot) ([]byte, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCanvas
	}
	dir, err := os.MkdirTemp("", "gnuplotter-")
	if err != nil {
		return nil, fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	c.applyStyle()
	script := NewScript(c.Script(), filepath.Join(dir, "figure"))
	header, err := c.Header(FormatSVG, script.Filename)
	if err != nil {
		return nil, err
	}
	if err := script.WriteScript(header); err != nil {
		return nil, err
	}
	if err := g.Run(ctx, script.Path()); err != nil {
		return nil, err
	}

	svg, err := os.ReadFile(script.OutputPath(FormatSVG))
	if err != nil {
		return nil, fmt.Errorf("gnuplot produced no svg: %w", err)
	}
	return svg, nil
}

// Export renders a single figure.
func (f *Figure) Export(ctx context.Context, g *Gnuplot, formats ...Format) ([]string, error) {
	c, restore := f.standalone()
	defer restore()
	return c.Export(ctx, g, formats...)
}

// Render runs a script that was already written to disk.
func (s *Script) Render(ctx context.Context, g *Gnuplot) error {
	return g.Run(ctx, s.Path())
}
