// Package server exposes the analysis pipeline as a JSON-RPC 2.0 service,
// over TCP or a single stdio session. The snapshot is parsed once at
// startup; queries run against the resulting transition graph. The graph
// and its BDD engine are a serialized resource: sessions share one analysis
// under a lock rather than one engine each.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"go.lsp.dev/jsonrpc2"

	"github.com/remora-net/remora/debug"
	"github.com/remora-net/remora/format"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/parse"
	"github.com/remora-net/remora/reach"
	"github.com/remora-net/remora/snapshot"
)

// Server answers analysis requests over one loaded snapshot.
type Server struct {
	Spec Spec

	mu       sync.Mutex
	analysis *analysis
}

// analysis is everything derived from one snapshot load.
type analysis struct {
	dir     string
	snap    *snapshot.Snapshot
	results []*parse.Result
	summary *parse.Summary
	graph   *reach.Graph
}

// New creates a server from spec, filling in defaults. It does not load
// the snapshot; Serve and the parse method do that.
func New(spec *Spec) *Server {
	if spec.Log == nil {
		spec.Log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slogLevel(),
		}))
	}
	if spec.Workers < 1 {
		spec.Workers = 4
	}
	return &Server{Spec: *spec}
}

// Load parses the snapshot at dir and builds the transition graph from the
// usable device models. It replaces any previously loaded analysis.
func (s *Server) Load(ctx context.Context, dir string) error {
	snap, err := snapshot.Load(dir)
	if err != nil {
		return err
	}
	results := parse.Run(ctx, snap.Jobs(), s.Spec.Workers)
	summary := parse.Summarize(results)
	var configs []*model.Config
	for _, r := range results {
		if r.Status.Usable() {
			configs = append(configs, r.Config)
		}
	}
	a := &analysis{dir: dir, snap: snap, results: results, summary: summary}
	if len(configs) > 0 {
		pkt, err := packet.New()
		if err != nil {
			return err
		}
		graph, err := reach.Build(pkt, configs)
		if err != nil {
			return err
		}
		a.graph = graph
	}
	s.mu.Lock()
	s.analysis = a
	s.mu.Unlock()
	s.Spec.Log.Info("snapshot loaded", "dir", dir,
		"devices", len(snap.Devices), "usable", len(configs))
	return nil
}

// Handler dispatches one session's requests.
func (s *Server) Handler() jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if debug.RPC() {
			debug.Logf("rpc: <- %s", req.Method())
		}
		result, err := s.dispatch(ctx, req)
		return reply(ctx, result, err)
	}
}

func (s *Server) dispatch(ctx context.Context, req jsonrpc2.Request) (any, error) {
	switch req.Method() {
	case MethodStatus:
		return s.status()
	case MethodParse:
		var params ParseParams
		if err := unmarshalParams(req.Params(), &params); err != nil {
			return nil, err
		}
		return s.parse(ctx, params)
	case MethodReach:
		var params ReachParams
		if err := unmarshalParams(req.Params(), &params); err != nil {
			return nil, err
		}
		return s.reach(params)
	case MethodFormats:
		return s.formats(), nil
	default:
		return nil, jsonrpc2.ErrMethodNotFound
	}
}

func unmarshalParams(d json.RawMessage, v any) error {
	if len(d) == 0 {
		return nil
	}
	if err := json.Unmarshal(d, v); err != nil {
		return jsonrpc2.Errorf(jsonrpc2.InvalidParams, "%v", err)
	}
	return nil
}

func (s *Server) status() (*StatusResult, error) {
	s.mu.Lock()
	a := s.analysis
	s.mu.Unlock()
	if a == nil {
		return nil, jsonrpc2.Errorf(jsonrpc2.InvalidRequest, "%v", ErrNoSnapshot)
	}
	return &StatusResult{
		Snapshot: a.dir,
		Devices:  len(a.snap.Devices),
		Patched:  a.snap.Patched,
		Summary:  a.summary,
	}, nil
}

func (s *Server) parse(ctx context.Context, params ParseParams) (*ParseResult, error) {
	dir := params.Snapshot
	if dir == "" {
		s.mu.Lock()
		if s.analysis != nil {
			dir = s.analysis.dir
		}
		s.mu.Unlock()
	}
	if dir == "" {
		return nil, jsonrpc2.Errorf(jsonrpc2.InvalidParams, "%v", ErrNoSnapshot)
	}
	if err := s.Load(ctx, dir); err != nil {
		return nil, jsonrpc2.Errorf(jsonrpc2.InternalError, "%v", err)
	}
	s.mu.Lock()
	a := s.analysis
	s.mu.Unlock()
	return &ParseResult{Results: a.results, Summary: a.summary}, nil
}

// reach holds the analysis lock for the whole query: the BDD engine under
// the graph is not safe for concurrent use.
func (s *Server) reach(params ReachParams) (*ReachResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.analysis == nil || s.analysis.graph == nil {
		return nil, jsonrpc2.Errorf(jsonrpc2.InvalidRequest, "%v",
			fmt.Errorf("%w: nothing to query", ErrNoSnapshot))
	}
	res, err := s.analysis.graph.Query(params.Query)
	if err != nil {
		return nil, jsonrpc2.Errorf(jsonrpc2.InvalidParams, "%v", err)
	}
	return &ReachResult{Result: res}, nil
}

func (s *Server) formats() []FormatInfo {
	all := format.AllFormats()
	out := make([]FormatInfo, 0, len(all))
	for _, f := range all {
		out = append(out, FormatInfo{Name: f.String(), Supported: f.Supported()})
	}
	return out
}
