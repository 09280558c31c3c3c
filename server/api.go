package server

import (
	"github.com/remora-net/remora/parse"
	"github.com/remora-net/remora/reach"
)

// Method names of the analysis service.
const (
	MethodStatus  = "remora/status"
	MethodParse   = "remora/parse"
	MethodReach   = "remora/reach"
	MethodFormats = "remora/formats"
)

// StatusResult reports what the server has loaded.
type StatusResult struct {
	Snapshot string         `json:"snapshot"`
	Devices  int            `json:"devices"`
	Patched  []string       `json:"patched,omitempty"`
	Summary  *parse.Summary `json:"summary"`
}

// ParseParams selects the snapshot to parse. An empty Snapshot re-parses
// the one the server was started on.
type ParseParams struct {
	Snapshot string `json:"snapshot,omitempty"`
}

// ParseResult carries per-job outcomes plus the run summary.
type ParseResult struct {
	Results []*parse.Result `json:"results"`
	Summary *parse.Summary  `json:"summary"`
}

// ReachParams is a reachability query over the loaded snapshot.
type ReachParams struct {
	Query reach.Query `json:"query"`
}

// ReachResult is the verdict for one query.
type ReachResult struct {
	Result *reach.Result `json:"result"`
}

// FormatInfo describes one recognized configuration format.
type FormatInfo struct {
	Name      string `json:"name"`
	Supported bool   `json:"supported"`
}
