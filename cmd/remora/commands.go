package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/scott-cotton/cli"
)

const version = "0.1.0"

func MainCommand() *cli.Command {
	cfg := &MainConfig{}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	return cli.NewCommandAt(&cfg.Main, "remora").
		WithSynopsis("remora [opts] command [opts]").
		WithDescription("remora answers reachability questions about network configurations.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return remoraMain(cfg, cc, args)
		}).
		WithSubs(
			ParseCommand(cfg),
			ReachCommand(cfg),
			FormatsCommand(cfg),
			ServeCommand(cfg),
			VersionCommand(cfg))
}

func remoraMain(cfg *MainConfig, cc *cli.Context, args []string) error {
	args, err := cfg.Main.Parse(cc, args)
	if err != nil {
		return err
	}
	if cfg.Color {
		// fatih/color disables itself on pipes; -color overrides that.
		color.NoColor = false
	}
	if len(args) == 0 {
		return cli.ErrNoCommandProvided
	}
	sub := cfg.Main.FindSub(cc, args[0])
	if sub == nil {
		return fmt.Errorf("%w: %q not found", cli.ErrNoSuchCommand, args[0])
	}
	err = sub.Run(cc, args[1:])
	if errors.Is(err, cli.ErrUsage) {
		sub.Usage(cc, err)
		os.Exit(sub.Exit(cc, err))
	}
	return err
}

func ParseCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ParseConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("parse").
		WithAliases("p").
		WithSynopsis("parse [-json] [-workers n] <snapshot-dir>").
		WithDescription("Parse a snapshot and report per-file statuses.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return runParse(cfg, cc, args)
		})
	cfg.Parse = cmd
	return cmd
}

func ReachCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ReachConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("reach").
		WithAliases("r").
		WithSynopsis("reach -from node[:iface][@point] [-to node[:iface][@point]] [-filter pred] [-at pred] <snapshot-dir>").
		WithDescription("Decide what the packets matching -filter can reach.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return runReach(cfg, cc, args)
		})
	cfg.Reach = cmd
	return cmd
}

func FormatsCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &FormatsConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("formats").
		WithSynopsis("formats").
		WithDescription("List recognized configuration formats.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return runFormats(cfg, cc, args)
		})
	cfg.Formats = cmd
	return cmd
}

func ServeCommand(mainCfg *MainConfig) *cli.Command {
	cfg := &ServeConfig{MainConfig: mainCfg}
	opts, err := cli.StructOpts(cfg)
	if err != nil {
		panic(err)
	}
	cmd := cli.NewCommand("serve").
		WithSynopsis("serve [-addr :7641] [-snapshot dir]").
		WithDescription("Run the JSON-RPC analysis service.").
		WithOpts(opts...).
		WithRun(func(cc *cli.Context, args []string) error {
			return runServe(cfg, cc, args)
		})
	cfg.Serve = cmd
	return cmd
}

func VersionCommand(mainCfg *MainConfig) *cli.Command {
	return cli.NewCommand("version").
		WithSynopsis("version").
		WithDescription("Print the remora version.").
		WithRun(func(cc *cli.Context, args []string) error {
			fmt.Fprintf(cc.Out, "remora %s\n", version)
			return nil
		})
}
