package server

import (
	"log/slog"
	"os"
)

// Spec holds the runtime specification for the analysis service. Addr is
// the TCP listen address; the empty string means serve a single session on
// stdio. Snapshot is the snapshot directory queries run against.
type Spec struct {
	Addr     string
	Snapshot string
	Workers  int
	Log      *slog.Logger
}

func slogLevel() slog.Level {
	if os.Getenv("DEBUG") != "" {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
