package rel

import (
	"testing"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
)

// The fixture mirrors a two-field space with two-bit fields x and y. The
// transforms under test: transformX0 maps x=0 to x=1 or x=2, transformX1
// maps x=1 to x=0, transformY maps y=2 to y=3.
type fixture struct {
	sp *bitvec.Space
	b  *rudd.BDD

	px, py *bitvec.Pairing

	zero, one rudd.Node

	x0, x1, x2 rudd.Node
	y2, y3     rudd.Node
	yPrime3    rudd.Node
	xPrime1    rudd.Node

	transformX0 Transform
	transformX1 Transform
	transformY  Transform
}

func setup(t *testing.T) *fixture {
	t.Helper()
	l := bitvec.NewLayout()
	x := l.Primed("x", 2)
	y := l.Primed("y", 2)
	sp, err := l.Build(bitvec.Nodesize(1<<12), bitvec.Cachesize(1<<10))
	if err != nil {
		t.Fatalf("build space: %v", err)
	}
	b := sp.BDD()

	px, err := sp.Pairing(x)
	if err != nil {
		t.Fatalf("pairing x: %v", err)
	}
	py, err := sp.Pairing(y)
	if err != nil {
		t.Fatalf("pairing y: %v", err)
	}

	vx, vxp := sp.Vector(x), sp.PrimedVec(x)
	vy, vyp := sp.Vector(y), sp.PrimedVec(y)

	f := &fixture{
		sp:   sp,
		b:    b,
		px:   px,
		py:   py,
		zero: b.False(),
		one:  b.True(),
		x0:   vx.Value(0),
		x1:   vx.Value(1),
		x2:   vx.Value(2),
		y2:   vy.Value(2),
		y3:   vy.Value(3),
	}
	f.yPrime3 = vyp.Value(3)
	f.xPrime1 = vxp.Value(1)

	f.transformX0 = NewTransform(b.And(f.x0, b.Or(vxp.Value(1), vxp.Value(2))), px)
	f.transformX1 = NewTransform(b.And(f.x1, vxp.Value(0)), px)
	f.transformY = NewTransform(b.And(f.y2, f.yPrime3), py)
	return f
}

func (f *fixture) equal(t *testing.T, want, got rudd.Node, msg string) {
	t.Helper()
	if !f.b.Equal(want, got) {
		t.Errorf("%s: nodes differ", msg)
	}
}

func TestTransformForwardBackward(t *testing.T) {
	f := setup(t)
	x12 := f.b.Or(f.x1, f.x2)

	// forward
	f.equal(t, x12, f.transformX0.TransitForward(f.x0), "forward from x=0")
	f.equal(t, f.zero, f.transformX0.TransitForward(f.x1), "forward from outside the domain")

	// backward
	f.equal(t, f.x0, f.transformX0.TransitBackward(f.x1), "backward from x=1")
	f.equal(t, f.x0, f.transformX0.TransitBackward(f.x2), "backward from x=2")
	f.equal(t, f.zero, f.transformX0.TransitBackward(f.x0), "backward from outside the codomain")
}

func TestTransformEmptyAndRepeated(t *testing.T) {
	f := setup(t)

	f.equal(t, f.zero, f.transformX0.TransitForward(f.zero), "forward of the empty set")
	f.equal(t, f.zero, f.transformX0.TransitBackward(f.zero), "backward of the empty set")

	empty := NewTransform(f.zero, f.px)
	f.equal(t, f.zero, empty.TransitForward(f.one), "forward through the empty relation")
	f.equal(t, f.zero, empty.TransitBackward(f.one), "backward through the empty relation")

	a := f.transformX0.TransitForward(f.x0)
	b := f.transformX0.TransitForward(f.x0)
	if !f.b.Equal(a, b) {
		t.Errorf("repeated evaluation should produce the shared node")
	}
	if err := f.sp.Err(); err != nil {
		t.Fatalf("space error: %v", err)
	}
}

func TestTransformOr(t *testing.T) {
	f := setup(t)
	x01 := f.b.Or(f.x0, f.x1)
	x12 := f.b.Or(f.x1, f.x2)
	x012 := f.b.Or(f.x0, x12)

	// transformX0 is only defined on x=0, but applies to any input set.
	f.equal(t, x12, f.transformX0.TransitForward(f.x0), "x0 forward from x=0")
	f.equal(t, x12, f.transformX0.TransitForward(x01), "x0 forward from x=0|1")

	// transformX1 is only defined on x=1.
	f.equal(t, f.x0, f.transformX1.TransitForward(f.x1), "x1 forward from x=1")
	f.equal(t, f.x0, f.transformX1.TransitForward(x01), "x1 forward from x=0|1")

	// merging unions outputs
	merged, ok := f.transformX0.Or(f.transformX1)
	if !ok {
		t.Fatalf("or over equal pairings should merge")
	}
	f.equal(t, x12, merged.TransitForward(f.x0), "merged forward from x=0")
	f.equal(t, f.x0, merged.TransitForward(f.x1), "merged forward from x=1")
	f.equal(t, x012, merged.TransitForward(x01), "merged forward from x=0|1")

	// backward
	f.equal(t, f.zero, f.transformX0.TransitBackward(f.x0), "x0 backward from x=0")
	f.equal(t, f.x1, f.transformX1.TransitBackward(f.x0), "x1 backward from x=0")
	f.equal(t, f.x1, merged.TransitBackward(f.x0), "merged backward from x=0")

	f.equal(t, f.x0, f.transformX0.TransitBackward(f.x1), "x0 backward from x=1")
	f.equal(t, f.zero, f.transformX1.TransitBackward(f.x1), "x1 backward from x=1")
	f.equal(t, f.x0, merged.TransitBackward(f.x1), "merged backward from x=1")

	f.equal(t, f.x0, f.transformX0.TransitBackward(f.x2), "x0 backward from x=2")
	f.equal(t, f.zero, f.transformX1.TransitBackward(f.x2), "x1 backward from x=2")
	f.equal(t, f.x0, merged.TransitBackward(f.x2), "merged backward from x=2")

	f.equal(t, f.x0, f.transformX0.TransitBackward(x012), "x0 backward from x=0|1|2")
	f.equal(t, f.x1, f.transformX1.TransitBackward(x012), "x1 backward from x=0|1|2")
	f.equal(t, x01, merged.TransitBackward(x012), "merged backward from x=0|1|2")
}

func TestTransformOrPairingMismatch(t *testing.T) {
	f := setup(t)
	if _, ok := f.transformX0.Or(f.transformY); ok {
		t.Fatalf("or across different pairings should not merge")
	}
}

func TestTransformCompose(t *testing.T) {
	f := setup(t)
	x12 := f.b.Or(f.x1, f.x2)

	f.equal(t, x12, f.transformX0.TransitForward(f.x0), "x0 forward")
	f.equal(t, x12, f.transformX0.TransitForward(f.one), "x0 forward from everything")

	f.equal(t, f.y3, f.transformY.TransitForward(f.y2), "y forward")
	f.equal(t, f.y3, f.transformY.TransitForward(f.one), "y forward from everything")

	f.equal(t, f.y2, f.transformY.TransitBackward(f.y3), "y backward")
	f.equal(t, f.y2, f.transformY.TransitBackward(f.one), "y backward from everything")

	composite, ok := f.transformX0.Compose(f.transformY)
	if !ok {
		t.Fatalf("compose over disjoint pairings should merge")
	}
	f.equal(t, f.b.And(x12, f.y3), composite.TransitForward(f.b.And(f.x0, f.y2)), "composite forward")
	f.equal(t, f.b.And(x12, f.y3), composite.TransitForward(f.one), "composite forward from everything")
}

// A constraint the second transform places on a field rewritten by the first
// applies to the value after the first rewrite, not before it.
func TestTransformComposeSequence(t *testing.T) {
	f := setup(t)
	x12 := f.b.Or(f.x1, f.x2)

	// x=2 is in the codomain of the transform on x
	f.equal(t, x12, f.transformX0.TransitForward(f.x0), "x0 forward")
	f.equal(t, x12, f.transformX0.TransitForward(f.one), "x0 forward from everything")

	// map y=2 to y=3, but require x=1
	transformY := NewTransform(f.b.And(f.x1, f.b.And(f.y2, f.yPrime3)), f.py)

	x0y2 := f.b.And(f.x0, f.y2)
	x1y3 := f.b.And(f.x1, f.y3)

	f.equal(t, x1y3, transformY.TransitForward(f.y2), "constrained y forward")
	f.equal(t, x1y3, transformY.TransitForward(f.one), "constrained y forward from everything")
	f.equal(t, f.zero, transformY.TransitForward(f.x2), "constrained y forward from x=2")

	f.equal(t, f.y2, f.transformY.TransitBackward(f.y3), "y backward")
	f.equal(t, f.y2, f.transformY.TransitBackward(f.one), "y backward from everything")

	// x=2 is not in the codomain of the composite transform
	composite, ok := f.transformX0.Compose(transformY)
	if !ok {
		t.Fatalf("compose over disjoint pairings should merge")
	}
	f.equal(t, x1y3, composite.TransitForward(x0y2), "composite forward")
	f.equal(t, x0y2, composite.TransitBackward(x1y3), "composite backward")

	f.equal(t, x1y3, composite.TransitForward(f.one), "composite forward from everything")
	f.equal(t, x0y2, composite.TransitBackward(f.one), "composite backward from everything")
}

func TestTransformComposeOverlap(t *testing.T) {
	f := setup(t)
	if _, ok := f.transformX0.Compose(f.transformX1); ok {
		t.Fatalf("compose over overlapping pairings should not merge")
	}
}
