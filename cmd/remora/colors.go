package main

import (
	"github.com/fatih/color"

	"github.com/remora-net/remora/parse"
)

var statusColors = map[parse.Status]func(string, ...any) string{
	parse.PassedStatus:        color.GreenString,
	parse.PartialStatus:       color.YellowString,
	parse.FailedStatus:        color.RedString,
	parse.WillNotCommitStatus: color.RedString,
	parse.UnsupportedStatus:   color.MagentaString,
	parse.IgnoredStatus:       color.BlueString,
	parse.EmptyStatus:         color.BlueString,
	parse.UnknownStatus:       color.YellowString,
}

func statusString(colored bool, s parse.Status) string {
	if !colored {
		return s.String()
	}
	f, ok := statusColors[s]
	if !ok {
		return s.String()
	}
	return f("%s", s.String())
}

func verdictString(colored, reachable bool) string {
	switch {
	case reachable && colored:
		return color.GreenString("reachable")
	case reachable:
		return "reachable"
	case colored:
		return color.RedString("unreachable")
	default:
		return "unreachable"
	}
}
