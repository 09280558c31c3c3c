package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/scott-cotton/cli"

	"github.com/remora-net/remora/server"
)

func runServe(cfg *ServeConfig, cc *cli.Context, args []string) error {
	if _, err := cfg.Serve.Parse(cc, args); err != nil {
		return err
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Serve(ctx, &server.Spec{
		Addr:     cfg.Addr,
		Snapshot: cfg.Snapshot,
		Workers:  workerCount(cfg.Workers),
		Log:      log,
	})
}
