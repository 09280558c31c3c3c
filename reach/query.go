package reach

import (
	"fmt"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/pred"
)

// Query asks whether packets can get from Src to Dst. The predicates
// constrain the packet set at each end and default to every packet; note
// that DstPred applies to the arrival form, after any rewrites on the way.
type Query struct {
	Src     Location `json:"src"`
	Dst     Location `json:"dst"`
	SrcPred string   `json:"srcPred,omitempty"`
	DstPred string   `json:"dstPred,omitempty"`
}

// Result answers a query. Set is the packets observed at Dst, Witness one
// of them, and Path one location sequence the witness can take.
type Result struct {
	Reachable bool        `json:"reachable"`
	Set       rudd.Node   `json:"-"`
	Witness   *model.Flow `json:"witness,omitempty"`
	Path      []Location  `json:"path,omitempty"`
}

// Query runs a forward fixpoint from Src and reports what arrives at Dst.
func (g *Graph) Query(q Query) (*Result, error) {
	if !g.seen[q.Src] {
		return nil, fmt.Errorf("%w: %s", ErrBadLocation, q.Src)
	}
	if !g.seen[q.Dst] {
		return nil, fmt.Errorf("%w: %s", ErrBadLocation, q.Dst)
	}
	srcSet, err := pred.Compile(g.pkt, q.SrcPred)
	if err != nil {
		return nil, err
	}
	dstSet, err := pred.Compile(g.pkt, q.DstPred)
	if err != nil {
		return nil, err
	}
	b := g.pkt.Space().BDD()
	reached := g.Forward(map[Location]rudd.Node{q.Src: srcSet})
	at, ok := reached[q.Dst]
	if !ok {
		return &Result{}, nil
	}
	at = b.Apply(at, dstSet, rudd.OPand)
	if b.Equal(at, b.False()) {
		return &Result{}, nil
	}
	// The arrival set is non-empty, so the verdict stands whether or not
	// a witness comes out of it.
	res := &Result{Reachable: true, Set: at}
	if w, ok := g.pkt.Example(at); ok {
		res.Witness = &w
		res.Path = g.path(q.Src, q.Dst, g.pkt.MatchFlow(w), reached)
	}
	return res, nil
}

// path recovers one location sequence for a witness by walking its arrival
// set backward through the reached sets. Best effort: a dead end or a cycle
// cuts the walk and yields the suffix recovered so far.
func (g *Graph) path(src, dst Location, witness rudd.Node, reached map[Location]rudd.Node) []Location {
	b := g.pkt.Space().BDD()
	path := []Location{dst}
	loc := dst
	want := b.Apply(witness, reached[dst], rudd.OPand)
	for loc != src && len(path) <= len(g.locs) {
		found := false
		for _, ei := range g.in[loc] {
			e := g.edges[ei]
			from, ok := reached[e.From]
			if !ok {
				continue
			}
			pre := b.Apply(e.T.TransitBackward(want), from, rudd.OPand)
			if b.Equal(pre, b.False()) {
				continue
			}
			loc = e.From
			want = pre
			path = append(path, loc)
			found = true
			break
		}
		if !found {
			break
		}
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}
