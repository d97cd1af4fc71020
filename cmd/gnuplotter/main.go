package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/cactusdynamics/gnuplotter"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type globalOptions struct {
	Gnuplot string `long:"gnuplot" env:"GNUPLOTTER_GNUPLOT" default:"gnuplot" description:"gnuplot command line, shell quoted"`
	Params  string `short:"p" long:"params" description:"YAML file with parameter overrides"`
	Verbose bool   `short:"v" long:"verbose" description:"enable debug logging"`
}

var global globalOptions

// setup applies the global options and returns the params layer and the
// renderer every command works with.
func setup() (*gnuplotter.Params, *gnuplotter.Gnuplot, error) {
	if global.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	params := gnuplotter.Defaults
	if global.Params != "" {
		f, err := os.Open(global.Params)
		if err != nil {
			return nil, nil, err
		}
		defer f.Close()
		params, err = gnuplotter.LoadParams(f, gnuplotter.Defaults)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", global.Params, err)
		}
	}

	g, err := gnuplotter.NewGnuplot(global.Gnuplot)
	if err != nil {
		return nil, nil, err
	}
	return params, g, nil
}

// commandContext is canceled on interrupt.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func newParser() *flags.Parser {
	parser := flags.NewParser(&global, flags.Default)
	parser.AddCommand("render", "Render a scene file",
		"Builds the canvas described by a YAML scene file and renders it to every configured format.",
		&renderCommand{})
	parser.AddCommand("plot", "Plot columns of a data file",
		"Reads a whitespace or comma separated data file (or stdin) and plots the selected columns.",
		&plotCommand{})
	parser.AddCommand("serve", "Preview a live plot of stdin in the browser",
		"Reads rows from stdin and serves an SVG rendering of the latest window over HTTP.",
		&serveCommand{})
	parser.AddCommand("params", "Print the effective parameters",
		"Prints the defaults merged with the --params overrides as YAML.",
		&paramsCommand{})
	return parser
}

func main() {
	logrus.SetOutput(os.Stderr)

	// The parser prints errors, including the ones returned by commands.
	if _, err := newParser().Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
