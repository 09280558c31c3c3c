package main

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/scott-cotton/cli"
)

type MainConfig struct {
	Debug bool `cli:"name=debug desc='verbose output: all warnings, graph sizes'"`
	Color bool `cli:"name=color desc='force colored output'"`
	Quiet bool `cli:"name=q aliases=quiet desc='suppress warnings and summaries'"`

	Main *cli.Command
}

// colorize decides whether w gets colored output: forced by -color,
// otherwise on for terminals only.
func (cfg *MainConfig) colorize(w io.Writer) bool {
	if cfg.Color {
		return true
	}
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

type ParseConfig struct {
	*MainConfig
	JSON    bool `cli:"name=json desc='machine-readable output'"`
	Workers int  `cli:"name=workers desc='parallel parse workers (default 4)'"`

	Parse *cli.Command
}

type ReachConfig struct {
	*MainConfig
	From    string `cli:"name=from desc='source location: node[:iface][@point]'"`
	To      string `cli:"name=to desc='destination location: node[:iface][@point]'"`
	Filter  string `cli:"name=filter desc='source packet predicate'"`
	At      string `cli:"name=at desc='arrival packet predicate'"`
	JSON    bool   `cli:"name=json desc='machine-readable output'"`
	Workers int    `cli:"name=workers desc='parallel parse workers (default 4)'"`

	Reach *cli.Command
}

type FormatsConfig struct {
	*MainConfig

	Formats *cli.Command
}

type ServeConfig struct {
	*MainConfig
	Addr     string `cli:"name=addr desc='TCP listen address, empty for stdio'"`
	Snapshot string `cli:"name=snapshot desc='snapshot directory to serve'"`
	Workers  int    `cli:"name=workers desc='parallel parse workers (default 4)'"`

	Serve *cli.Command
}

func workerCount(n int) int {
	if n < 1 {
		return 4
	}
	return n
}
