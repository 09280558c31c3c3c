package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"

	"github.com/remora-net/remora/format"
)

func runFormats(cfg *FormatsConfig, cc *cli.Context, args []string) error {
	if _, err := cfg.Formats.Parse(cc, args); err != nil {
		return err
	}
	colored := cfg.colorize(cc.Out)
	tw := tabwriter.NewWriter(cc.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tSUPPORT")
	for _, f := range format.AllFormats() {
		switch {
		case f == format.UnknownFormat || f == format.EmptyFormat || f == format.IgnoredFormat:
			continue
		case f.Supported():
			fmt.Fprintf(tw, "%s\t%s\n", f, supportString(colored, true))
		default:
			fmt.Fprintf(tw, "%s\t%s\n", f, supportString(colored, false))
		}
	}
	return tw.Flush()
}

func supportString(colored, supported bool) string {
	switch {
	case supported && colored:
		return color.GreenString("extracted")
	case supported:
		return "extracted"
	case colored:
		return color.MagentaString("detected only")
	default:
		return "detected only"
	}
}
