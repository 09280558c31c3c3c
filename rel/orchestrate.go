package rel

import (
	"strings"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
)

// Compose returns the sequential composition of ts, applied left to right.
// Identity members vanish, a Zero member collapses the whole chain, and
// adjacent members are merged through the Transform algebra whenever their
// pairings permit. What cannot merge is chained generically.
func Compose(ts ...Transition) Transition {
	var flat []Transition
	for _, t := range ts {
		switch v := t.(type) {
		case Identity:
		case sequence:
			flat = append(flat, v...)
		default:
			flat = append(flat, t)
		}
	}
	for _, t := range flat {
		if z, ok := t.(Zero); ok {
			return z
		}
	}
	var out []Transition
	for _, t := range flat {
		if len(out) > 0 {
			if m, ok := mergeSeq(out[len(out)-1], t); ok {
				if z, isZero := m.(Zero); isZero {
					return z
				}
				out[len(out)-1] = m
				continue
			}
		}
		out = append(out, t)
	}
	switch len(out) {
	case 0:
		return Identity{}
	case 1:
		return out[0]
	}
	return sequence(out)
}

// Or returns the union of ts: a packet takes every branch it satisfies.
// Zero members vanish, Identity absorbs plain filters, and members are
// merged through the Transform algebra whenever their pairings permit.
func Or(sp *bitvec.Space, ts ...Transition) Transition {
	var flat []Transition
	for _, t := range ts {
		switch v := t.(type) {
		case Zero:
		case branches:
			flat = append(flat, v.ts...)
		default:
			flat = append(flat, t)
		}
	}
	var out []Transition
	for _, t := range flat {
		merged := false
		for i, prev := range out {
			if m, ok := mergePar(prev, t); ok {
				out[i] = m
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, t)
		}
	}
	switch len(out) {
	case 0:
		return NewZero(sp)
	case 1:
		return out[0]
	}
	return branches{sp: sp, ts: out}
}

// mergeSeq merges two adjacent members of a sequential chain.
func mergeSeq(a, b Transition) (Transition, bool) {
	switch x := a.(type) {
	case Constraint:
		switch y := b.(type) {
		case Constraint:
			if x.sp == y.sp {
				return Constrain(x.sp, x.sp.BDD().Apply(x.pred, y.pred, rudd.OPand)), true
			}
		case Transform:
			if x.sp == y.sp {
				rel := x.sp.BDD().Apply(x.pred, y.relation, rudd.OPand)
				return NewTransform(rel, y.pairing), true
			}
		}
	case Transform:
		switch y := b.(type) {
		case Constraint:
			if x.sp == y.sp {
				rel := x.sp.BDD().Apply(x.relation, x.pairing.ToPrimed(y.pred), rudd.OPand)
				return NewTransform(rel, x.pairing), true
			}
		case Transform:
			if m, ok := x.Compose(y); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// mergePar merges two members of a union.
func mergePar(a, b Transition) (Transition, bool) {
	switch x := a.(type) {
	case Identity:
		switch b.(type) {
		case Identity, Constraint:
			return Identity{}, true
		}
	case Constraint:
		switch y := b.(type) {
		case Identity:
			return Identity{}, true
		case Constraint:
			if x.sp == y.sp {
				return Constrain(x.sp, x.sp.BDD().Apply(x.pred, y.pred, rudd.OPor)), true
			}
		}
	case Transform:
		if y, ok := b.(Transform); ok {
			if m, ok := x.Or(y); ok {
				return m, true
			}
		}
	}
	return nil, false
}

// sequence applies members in order going forward, in reverse going
// backward.
type sequence []Transition

func (s sequence) TransitForward(p rudd.Node) rudd.Node {
	for _, t := range s {
		p = t.TransitForward(p)
	}
	return p
}

func (s sequence) TransitBackward(q rudd.Node) rudd.Node {
	for i := len(s) - 1; i >= 0; i-- {
		q = s[i].TransitBackward(q)
	}
	return q
}

func (s sequence) transition() {}

func (s sequence) String() string {
	parts := make([]string, len(s))
	for i, t := range s {
		parts[i] = transitionString(t)
	}
	return "seq(" + strings.Join(parts, "; ") + ")"
}

// branches unions member results in both directions.
type branches struct {
	sp *bitvec.Space
	ts []Transition
}

func (o branches) TransitForward(p rudd.Node) rudd.Node {
	b := o.sp.BDD()
	acc := o.sp.False()
	for _, t := range o.ts {
		acc = b.Apply(acc, t.TransitForward(p), rudd.OPor)
	}
	return acc
}

func (o branches) TransitBackward(q rudd.Node) rudd.Node {
	b := o.sp.BDD()
	acc := o.sp.False()
	for _, t := range o.ts {
		acc = b.Apply(acc, t.TransitBackward(q), rudd.OPor)
	}
	return acc
}

func (o branches) transition() {}

func (o branches) String() string {
	parts := make([]string, len(o.ts))
	for i, t := range o.ts {
		parts[i] = transitionString(t)
	}
	return "or(" + strings.Join(parts, " | ") + ")"
}

func transitionString(t Transition) string {
	if s, ok := t.(interface{ String() string }); ok {
		return s.String()
	}
	return "transition"
}
