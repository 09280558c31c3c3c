package bitvec

import (
	"fmt"
	"math/bits"

	"github.com/dalzilio/rudd"
)

// Vec is a bit-vector view of a field: either its value bits or its primed
// shadow. The zero Vec produces the all-false node from every constructor.
type Vec struct {
	sp     *Space
	levels []int
}

// Vector returns the value-bit view of f.
func (s *Space) Vector(f *Field) Vec {
	if !s.owns(f) {
		s.fail(fmt.Errorf("%w: %s", ErrUnknownField, f.name))
		return Vec{sp: s}
	}
	return Vec{sp: s, levels: f.levels}
}

// PrimedVec returns the shadow-bit view of f. Asking for the shadow of a
// read-only field records a space error and yields the empty view.
func (s *Space) PrimedVec(f *Field) Vec {
	if !s.owns(f) {
		s.fail(fmt.Errorf("%w: %s", ErrUnknownField, f.name))
		return Vec{sp: s}
	}
	if f.primed == nil {
		s.fail(fmt.Errorf("%w: %s", ErrNotRewritable, f.name))
		return Vec{sp: s}
	}
	return Vec{sp: s, levels: f.primed}
}

func (v Vec) Width() int { return len(v.levels) }

// Bit returns the node for bit i, counting from the most significant bit.
func (v Vec) Bit(i int) rudd.Node {
	if i < 0 || i >= len(v.levels) {
		return v.sp.bdd.False()
	}
	return v.sp.bdd.Ithvar(v.levels[i])
}

// Value returns the predicate "vector == x". Constants that do not fit the
// width denote the empty set.
func (v Vec) Value(x uint64) rudd.Node {
	b := v.sp.bdd
	w := len(v.levels)
	if w == 0 || bits.Len64(x) > w {
		return b.False()
	}
	lits := make([]rudd.Node, w)
	for i, lv := range v.levels {
		if x>>(w-1-i)&1 == 1 {
			lits[i] = b.Ithvar(lv)
		} else {
			lits[i] = b.NIthvar(lv)
		}
	}
	return b.And(lits...)
}

// Range returns the predicate "lo <= vector <= hi". Bounds above the width's
// maximum clamp to it; an empty interval denotes the empty set.
func (v Vec) Range(lo, hi uint64) rudd.Node {
	b := v.sp.bdd
	w := len(v.levels)
	if w == 0 || lo > hi {
		return b.False()
	}
	if w < 64 {
		max := uint64(1)<<w - 1
		if lo > max {
			return b.False()
		}
		if hi > max {
			hi = max
		}
	}
	return b.Apply(v.atLeast(0, lo), v.atMost(0, hi), rudd.OPand)
}

// atMost builds "vector <= x" over bits i.., most significant first.
func (v Vec) atMost(i int, x uint64) rudd.Node {
	b := v.sp.bdd
	if i == len(v.levels) {
		return b.True()
	}
	rest := v.atMost(i+1, x)
	if x>>(len(v.levels)-1-i)&1 == 1 {
		return b.Ite(b.Ithvar(v.levels[i]), rest, b.True())
	}
	return b.Ite(b.Ithvar(v.levels[i]), b.False(), rest)
}

// atLeast builds "vector >= x" over bits i.., most significant first.
func (v Vec) atLeast(i int, x uint64) rudd.Node {
	b := v.sp.bdd
	if i == len(v.levels) {
		return b.True()
	}
	rest := v.atLeast(i+1, x)
	if x>>(len(v.levels)-1-i)&1 == 1 {
		return b.Ite(b.Ithvar(v.levels[i]), rest, b.False())
	}
	return b.Ite(b.Ithvar(v.levels[i]), b.True(), rest)
}

// Eq returns the bitwise equality of two vectors of the same width. It is
// how a kept field states an explicit identity between value and shadow.
func (v Vec) Eq(o Vec) rudd.Node {
	b := v.sp.bdd
	if len(v.levels) != len(o.levels) || len(v.levels) == 0 {
		v.sp.fail(fmt.Errorf("%w: %d vs %d", ErrWidthMismatch, len(v.levels), len(o.levels)))
		return b.False()
	}
	eq := b.True()
	for i := len(v.levels) - 1; i >= 0; i-- {
		bit := b.Equiv(b.Ithvar(v.levels[i]), b.Ithvar(o.levels[i]))
		eq = b.Apply(bit, eq, rudd.OPand)
	}
	return eq
}

// Decode reads the vector's value out of an assignment as produced by the
// engine's Allsat, treating don't-care bits as zero.
func (v Vec) Decode(assign []int) uint64 {
	var x uint64
	for _, lv := range v.levels {
		x <<= 1
		if lv < len(assign) && assign[lv] == 1 {
			x |= 1
		}
	}
	return x
}
