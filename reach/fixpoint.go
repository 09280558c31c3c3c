package reach

import (
	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/debug"
)

// Forward propagates the initial packet sets along the edges to the least
// fixpoint. The result maps each location reached to the packets that can
// appear there, in the form they have at that location. Terminates because
// the per-location sets only grow and the lattice of sets is finite.
func (g *Graph) Forward(init map[Location]rudd.Node) map[Location]rudd.Node {
	return g.fixpoint(init, g.out,
		func(e Edge, n rudd.Node) (Location, rudd.Node) {
			return e.To, e.T.TransitForward(n)
		})
}

// Backward propagates goal sets against the edges: the result maps each
// location to the packets that can still reach a goal set from there. It
// answers "which ingress packets arrive" without enumerating sources.
func (g *Graph) Backward(goal map[Location]rudd.Node) map[Location]rudd.Node {
	return g.fixpoint(goal, g.in,
		func(e Edge, n rudd.Node) (Location, rudd.Node) {
			return e.From, e.T.TransitBackward(n)
		})
}

func (g *Graph) fixpoint(init map[Location]rudd.Node, index map[Location][]int,
	step func(Edge, rudd.Node) (Location, rudd.Node)) map[Location]rudd.Node {

	b := g.pkt.Space().BDD()
	reached := make(map[Location]rudd.Node, len(init))
	var work []Location
	queued := map[Location]bool{}
	push := func(l Location) {
		if !queued[l] {
			queued[l] = true
			work = append(work, l)
		}
	}
	for _, l := range g.locs {
		if n, ok := init[l]; ok && !b.Equal(n, b.False()) {
			reached[l] = n
			push(l)
		}
	}
	updates := 0
	for len(work) > 0 {
		l := work[0]
		work = work[1:]
		queued[l] = false
		cur := reached[l]
		for _, ei := range index[l] {
			to, img := step(g.edges[ei], cur)
			if b.Equal(img, b.False()) {
				continue
			}
			if prev, ok := reached[to]; ok {
				img = b.Apply(prev, img, rudd.OPor)
				if b.Equal(img, prev) {
					continue
				}
			}
			reached[to] = img
			push(to)
			updates++
		}
	}
	if debug.Reach() {
		debug.Logf("reach: fixpoint: %d update(s), %d location(s)", updates, len(reached))
	}
	return reached
}
