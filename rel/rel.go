// Package rel models packet-state transitions as boolean relations over a
// shared variable space. A Transition maps packet sets to packet sets in two
// directions: TransitForward computes the image of a set through the
// relation, TransitBackward its preimage. The concrete transitions form a
// closed set; the Compose and Or combinators merge members through the
// Transform algebra where the algebra permits and fall back to generic
// containers where it does not.
package rel

import (
	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
)

// Transition maps packet sets through a hop stage. Implementations never
// mutate their inputs; applying a transition to a set outside its domain
// yields the empty set.
type Transition interface {
	// TransitForward returns the set of states reachable from p in one step.
	TransitForward(p rudd.Node) rudd.Node
	// TransitBackward returns the set of states that reach q in one step.
	TransitBackward(q rudd.Node) rudd.Node

	transition()
}

// Identity passes every packet set through unchanged.
type Identity struct{}

func (Identity) TransitForward(p rudd.Node) rudd.Node  { return p }
func (Identity) TransitBackward(q rudd.Node) rudd.Node { return q }
func (Identity) transition()                           {}
func (Identity) String() string                        { return "identity" }

// Zero drops everything: both directions produce the empty set.
type Zero struct {
	sp *bitvec.Space
}

func NewZero(sp *bitvec.Space) Zero { return Zero{sp: sp} }

func (z Zero) TransitForward(rudd.Node) rudd.Node  { return z.sp.False() }
func (z Zero) TransitBackward(rudd.Node) rudd.Node { return z.sp.False() }
func (z Zero) transition()                         {}
func (z Zero) String() string                      { return "zero" }

// Constraint intersects packet sets with a predicate in both directions. It
// is the transition of a pure filter: nothing is rewritten.
type Constraint struct {
	sp   *bitvec.Space
	pred rudd.Node
}

// Constrain builds the filter transition for pred, collapsing the constant
// predicates to Identity and Zero.
func Constrain(sp *bitvec.Space, pred rudd.Node) Transition {
	b := sp.BDD()
	if b.Equal(pred, b.True()) {
		return Identity{}
	}
	if b.Equal(pred, b.False()) {
		return NewZero(sp)
	}
	return Constraint{sp: sp, pred: pred}
}

func (c Constraint) Pred() rudd.Node { return c.pred }

func (c Constraint) TransitForward(p rudd.Node) rudd.Node {
	return c.sp.BDD().Apply(p, c.pred, rudd.OPand)
}

func (c Constraint) TransitBackward(q rudd.Node) rudd.Node {
	return c.sp.BDD().Apply(q, c.pred, rudd.OPand)
}

func (c Constraint) transition()    {}
func (c Constraint) String() string { return "constraint" }
