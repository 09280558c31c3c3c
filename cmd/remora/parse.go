package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/scott-cotton/cli"

	"github.com/remora-net/remora/parse"
	"github.com/remora-net/remora/snapshot"
)

func runParse(cfg *ParseConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Parse.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: parse requires one snapshot directory, got %d args", cli.ErrUsage, len(args))
	}
	results, summary, _, err := parseSnapshot(args[0], workerCount(cfg.Workers))
	if err != nil {
		return err
	}

	if cfg.JSON {
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(struct {
			Results []*parse.Result `json:"results"`
			Summary *parse.Summary  `json:"summary"`
		}{results, summary}); err != nil {
			return err
		}
	} else {
		printParseTable(cfg, cc, results, summary)
	}

	if summary.Counts[parse.FailedStatus] > 0 {
		return cli.ExitCodeErr(1)
	}
	return nil
}

// parseSnapshot is the shared front half of parse and reach: load the
// snapshot, run the jobs, summarize.
func parseSnapshot(dir string, workers int) ([]*parse.Result, *parse.Summary, *snapshot.Snapshot, error) {
	snap, err := snapshot.Load(dir)
	if err != nil {
		return nil, nil, nil, err
	}
	results := parse.Run(context.Background(), snap.Jobs(), workers)
	return results, parse.Summarize(results), snap, nil
}

func printParseTable(cfg *ParseConfig, cc *cli.Context, results []*parse.Result, summary *parse.Summary) {
	colored := cfg.colorize(cc.Out)
	tw := tabwriter.NewWriter(cc.Out, 2, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tFILE\tHOSTNAME\tFORMAT")
	for _, r := range results {
		files := make([]string, 0, len(r.FileStatus))
		for f := range r.FileStatus {
			files = append(files, f)
		}
		sort.Strings(files)
		for _, f := range files {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				statusString(colored, r.FileStatus[f]), f, r.Hostname, r.Format)
		}
	}
	tw.Flush()
	if cfg.Quiet {
		return
	}
	fmt.Fprintln(cc.Out)
	for _, st := range parse.AllStatuses() {
		if n := summary.Counts[st]; n > 0 {
			fmt.Fprintf(cc.Out, "%s: %d\n", statusString(colored, st), n)
		}
	}
	printWarnings(cfg.MainConfig, cc, results, summary)
}

func printWarnings(cfg *MainConfig, cc *cli.Context, results []*parse.Result, summary *parse.Summary) {
	for _, msg := range summary.Warnings.RedFlags {
		fmt.Fprintf(cc.Out, "warning: %s\n", msg)
	}
	for _, r := range results {
		if r.Warnings == nil {
			continue
		}
		for _, msg := range r.Warnings.RedFlags {
			fmt.Fprintf(cc.Out, "warning: %s\n", msg)
		}
		if !cfg.Debug {
			continue
		}
		for _, msg := range r.Warnings.Unimplemented {
			fmt.Fprintf(cc.Out, "unimplemented: %s\n", msg)
		}
		for _, msg := range r.Warnings.Pedantic {
			fmt.Fprintf(cc.Out, "pedantic: %s\n", msg)
		}
	}
}
