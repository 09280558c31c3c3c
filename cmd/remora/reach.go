package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dalzilio/rudd"
	"github.com/scott-cotton/cli"

	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/parse"
	"github.com/remora-net/remora/pred"
	"github.com/remora-net/remora/reach"
)

func runReach(cfg *ReachConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Reach.Parse(cc, args)
	if err != nil {
		return err
	}
	if len(args) != 1 {
		return fmt.Errorf("%w: reach requires one snapshot directory, got %d args", cli.ErrUsage, len(args))
	}
	if cfg.From == "" {
		return fmt.Errorf("%w: reach requires -from", cli.ErrUsage)
	}
	results, summary, _, err := parseSnapshot(args[0], workerCount(cfg.Workers))
	if err != nil {
		return err
	}
	var configs []*model.Config
	for _, r := range results {
		if r.Status.Usable() {
			configs = append(configs, r.Config)
		}
	}
	if len(configs) == 0 {
		return fmt.Errorf("no usable device configurations in %q (failed: %d)",
			args[0], summary.Counts[parse.FailedStatus])
	}
	pkt, err := packet.New()
	if err != nil {
		return err
	}
	g, err := reach.Build(pkt, configs)
	if err != nil {
		return err
	}
	src, err := parseLocation(cfg.From, reach.PreIn)
	if err != nil {
		return err
	}
	if cfg.To == "" {
		return reachAll(cfg, cc, g, src)
	}
	dst, err := parseLocation(cfg.To, reach.PostOut)
	if err != nil {
		return err
	}
	res, err := g.Query(reach.Query{
		Src: src, Dst: dst, SrcPred: cfg.Filter, DstPred: cfg.At,
	})
	if err != nil {
		return err
	}
	if cfg.JSON {
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	colored := cfg.colorize(cc.Out)
	fmt.Fprintf(cc.Out, "%s -> %s: %s\n", src, dst, verdictString(colored, res.Reachable))
	if res.Witness != nil {
		fmt.Fprintf(cc.Out, "witness: %s\n", res.Witness)
	}
	if len(res.Path) > 0 && !cfg.Quiet {
		parts := make([]string, len(res.Path))
		for i, l := range res.Path {
			parts[i] = l.String()
		}
		fmt.Fprintf(cc.Out, "path: %s\n", strings.Join(parts, " > "))
	}
	if !res.Reachable {
		return cli.ExitCodeErr(1)
	}
	return nil
}

// reachAll runs the forward fixpoint from src and lists every location the
// filtered packets can appear at, with one example packet each.
func reachAll(cfg *ReachConfig, cc *cli.Context, g *reach.Graph, src reach.Location) error {
	if !g.Has(src) {
		return fmt.Errorf("no such location %s", src)
	}
	init, err := pred.Compile(g.Packet(), cfg.Filter)
	if err != nil {
		return err
	}
	reached := g.Forward(map[reach.Location]rudd.Node{src: init})
	locs := make([]reach.Location, 0, len(reached))
	for l := range reached {
		locs = append(locs, l)
	}
	sort.Slice(locs, func(i, j int) bool { return locs[i].String() < locs[j].String() })
	if cfg.JSON {
		out := make([]map[string]any, 0, len(locs))
		for _, l := range locs {
			entry := map[string]any{"location": l}
			if w, ok := g.Packet().Example(reached[l]); ok {
				entry["example"] = w
			}
			out = append(out, entry)
		}
		enc := json.NewEncoder(cc.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	for _, l := range locs {
		if w, ok := g.Packet().Example(reached[l]); ok {
			fmt.Fprintf(cc.Out, "%s\t%s\n", l, w)
		} else {
			fmt.Fprintln(cc.Out, l)
		}
	}
	return nil
}

// parseLocation reads node[:iface][@point]. The point defaults to def, so
// "-from r1:eth0" means the wire side of eth0 and "-to r2:eth1" the far
// wire side.
func parseLocation(s string, def reach.Point) (reach.Location, error) {
	loc := reach.Location{Point: def}
	rest := s
	if i := strings.IndexByte(rest, '@'); i >= 0 {
		p, err := reach.ParsePoint(rest[i+1:])
		if err != nil {
			return loc, fmt.Errorf("%w: location %q", err, s)
		}
		loc.Point = p
		rest = rest[:i]
	}
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		loc.Iface = rest[i+1:]
		rest = rest[:i]
	}
	loc.Node = rest
	if loc.Node == "" {
		return loc, fmt.Errorf("%w: location %q has no node", cli.ErrUsage, s)
	}
	// Terminal and forwarding points are device-wide.
	if loc.Point == reach.PostIn || loc.Point.Terminal() {
		loc.Iface = ""
	}
	return loc, nil
}
