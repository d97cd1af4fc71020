package gnuplotter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Format is an output format, which doubles as the file extension.
type Format string

const (
	FormatSVG Format = "svg"
	FormatEPS Format = "eps"
	FormatPNG Format = "png"
)

var ErrNoOutput = errors.New("script has no output directive")

// ParseFormat accepts a format name with or without the leading dot.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.TrimPrefix(strings.ToLower(s), ".")); f {
	case FormatSVG, FormatEPS, FormatPNG:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported output format %q", s)
	}
}

// Header returns the terminal and output lines that turn the canvas body
// into a complete script writing base.<format>. Only the base name of the
// output is used; gnuplot runs in the script's directory.
func (c *Canvas) Header(format Format, base string) (string, error) {
	p := c.params()
	name := filepath.Base(base)

	switch format {
	case FormatSVG:
		w, h := c.SizePx()
		return fmt.Sprintf("set terminal svg enhanced size %d, %d%s fname %s\nset output %s\n",
			w, h, optionSuffix(p.String(KeySvgTerminalOptions)), quoteSingle(p.String(KeySvgFont)),
			quoteSingle(name+".svg")), nil
	case FormatEPS:
		w, h := c.SizeCm()
		return fmt.Sprintf("set terminal epslatex size %scm, %scm%s\nset out %s\n",
			formatFloat(w), formatFloat(h), optionSuffix(p.String(KeyEpsTerminalOptions)),
			quoteSingle(name+".eps")), nil
	case FormatPNG:
		w, h := c.SizePx()
		return fmt.Sprintf("set terminal pngcairo enhanced size %d, %d%s font %s\nset output %s\n",
			w, h, optionSuffix(p.String(KeyPngTerminalOptions)), quoteSingle(p.String(KeyPngFont)),
			quoteSingle(name+".png")), nil
	default:
		return "", fmt.Errorf("unsupported output format %q", format)
	}
}

func optionSuffix(opts string) string {
	opts = strings.TrimSpace(opts)
	if opts == "" {
		return ""
	}
	return " " + opts
}

// Script is a gnuplot script on its way to disk.
type Script struct {
	// Filename is the base path; the script is written to Filename + ".gp"
	// and the images next to it.
	Filename string
	Body     string
}

// NewScript creates a script. An empty filename picks one in the temporary
// directory.
func NewScript(body, filename string) *Script {
	if filename == "" {
		filename = generateFilename()
	}
	return &Script{Filename: filename, Body: body}
}

func generateFilename() string {
	return filepath.Join(os.TempDir(), fmt.Sprintf("gnuplotter-%d", time.Now().Unix()))
}

// Path is the path of the script file.
func (s *Script) Path() string {
	return s.Filename + ".gp"
}

// OutputPath is the path of the image gnuplot writes for format.
func (s *Script) OutputPath(format Format) string {
	return s.Filename + "." + string(format)
}

// WriteScript writes header followed by the body to Path, replacing any
// previous script.
func (s *Script) WriteScript(header string) error {
	if dir := filepath.Dir(s.Filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create script directory: %w", err)
		}
	}
	err := os.WriteFile(s.Path(), []byte(header+s.Body), 0o644)
	if err != nil {
		return fmt.Errorf("failed to write script: %w", err)
	}
	return nil
}

var (
	terminalLine = regexp.MustCompile(`(?m)^set terminal ([A-Za-z0-9.]+)(.*)$`)
	outputLine   = regexp.MustCompile(`(?m)^set (?:output|out)[ ]+'([^'\n]*?)(?:\.[A-Za-z0-9]+)?'$`)
)

// ChangeTerminal points a complete script at another terminal and output
// extension, keeping the output base name. Options only survive when the
// terminal stays the same; gnuplot terminals do not share option sets.
func (s *Script) ChangeTerminal(terminal string, ext string) error {
	m := outputLine.FindStringSubmatch(s.Body)
	if m == nil {
		return ErrNoOutput
	}
	s.Body = terminalLine.ReplaceAllStringFunc(s.Body, func(line string) string {
		sub := terminalLine.FindStringSubmatch(line)
		if sub[1] == terminal {
			return line
		}
		return "set terminal " + terminal
	})
	s.Body = outputLine.ReplaceAllLiteralString(s.Body,
		fmt.Sprintf("set output %s", quoteSingle(m[1]+"."+strings.TrimPrefix(ext, "."))))
	return nil
}

// FromScript wraps a complete script, naming it after its output file and
// writing it to the temporary directory.
func FromScript(body string) (*Script, error) {
	m := outputLine.FindStringSubmatch(body)
	if m == nil {
		return nil, ErrNoOutput
	}
	s := NewScript(body, filepath.Join(os.TempDir(), filepath.Base(m[1])))
	if err := s.WriteScript(""); err != nil {
		return nil, err
	}
	return s, nil
}

// quoteSingle quotes s for gnuplot. Single quoted strings take no escapes
// except a doubled quote.
func quoteSingle(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// quoteDouble quotes s for gnuplot with backslash escapes.
func quoteDouble(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)
	return `"` + r.Replace(s) + `"`
}
