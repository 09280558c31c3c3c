package rel

import (
	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
)

// Transform is a transition given by an explicit relation between the value
// variables and the shadow variables of its pairing. Fields outside the
// pairing pass through untouched; fields inside it take whatever values the
// relation allows, independent of their previous value unless the relation
// says otherwise.
//
// A Transform is immutable. The zero Transform is only returned alongside
// ok == false and must not be used.
type Transform struct {
	sp       *bitvec.Space
	relation rudd.Node
	pairing  *bitvec.Pairing
}

// NewTransform builds the transform for relation under pairing. The relation
// may mention any value variable of the space but only the shadow variables
// covered by the pairing.
func NewTransform(relation rudd.Node, pairing *bitvec.Pairing) Transform {
	return Transform{sp: pairing.Space(), relation: relation, pairing: pairing}
}

func (t Transform) Relation() rudd.Node      { return t.relation }
func (t Transform) Pairing() *bitvec.Pairing { return t.pairing }

// TransitForward computes the image of p: conjoin with the relation,
// project out the rewritten fields' previous values, and move the shadow
// variables back onto the value variables.
func (t Transform) TransitForward(p rudd.Node) rudd.Node {
	b := t.sp.BDD()
	img := b.AppEx(p, t.relation, rudd.OPand, t.pairing.Domain())
	return t.pairing.ToValue(img)
}

// TransitBackward computes the preimage of q: move the rewritten fields of q
// onto the shadow variables, conjoin with the relation, and project the
// shadows out.
func (t Transform) TransitBackward(q rudd.Node) rudd.Node {
	b := t.sp.BDD()
	return b.AppEx(t.pairing.ToPrimed(q), t.relation, rudd.OPand, t.pairing.Codomain())
}

// Or unions two transforms over structurally equal pairings. An input inside
// both domains can take either branch's outputs. ok is false when the
// pairings differ; the transforms are then combined by the Or combinator
// instead.
func (t Transform) Or(o Transform) (Transform, bool) {
	if t.sp != o.sp || !t.pairing.Equal(o.pairing) {
		return Transform{}, false
	}
	b := t.sp.BDD()
	return Transform{
		sp:       t.sp,
		relation: b.Apply(t.relation, o.relation, rudd.OPor),
		pairing:  t.pairing,
	}, true
}

// Compose chains t then next when their pairings cover disjoint field sets.
// Constraints next places on a field t rewrites apply to the value after t,
// not before it. ok is false when the field sets overlap; the transforms are
// then chained by the Compose combinator instead.
func (t Transform) Compose(next Transform) (Transform, bool) {
	if t.sp != next.sp || t.pairing.Overlaps(next.pairing) {
		return Transform{}, false
	}
	union, err := t.pairing.Union(next.pairing)
	if err != nil {
		return Transform{}, false
	}
	b := t.sp.BDD()
	relation := b.Apply(t.relation, t.pairing.ToPrimed(next.relation), rudd.OPand)
	return Transform{sp: t.sp, relation: relation, pairing: union}, true
}

func (t Transform) transition() {}

func (t Transform) String() string { return "transform:" + t.pairing.String() }
