package packet

import (
	"math/big"
	"net/netip"
	"testing"

	"github.com/remora-net/remora/model"
)

func newPacket(t *testing.T) *Packet {
	t.Helper()
	p, err := New()
	if err != nil {
		t.Fatalf("new packet space: %v", err)
	}
	return p
}

func TestSpaceShape(t *testing.T) {
	p := newPacket(t)
	if got, want := p.Space().VarNum(), 2*32+2*32+2*16+2*16+8; got != want {
		t.Errorf("varnum = %d, want %d", got, want)
	}
	for _, f := range []struct {
		name  string
		field interface{ Rewritable() bool }
		want  bool
	}{
		{"src-ip", p.SrcIP, true},
		{"dst-ip", p.DstIP, true},
		{"src-port", p.SrcPort, true},
		{"dst-port", p.DstPort, true},
		{"proto", p.Proto, false},
	} {
		if f.field.Rewritable() != f.want {
			t.Errorf("%s rewritable = %v, want %v", f.name, !f.want, f.want)
		}
	}
}

func TestMatchPrefix(t *testing.T) {
	p := newPacket(t)
	b := p.Space().BDD()

	got := p.MatchSrc(netip.MustParsePrefix("10.0.0.0/8"))
	want := p.Vec(p.SrcIP).Range(0x0a000000, 0x0affffff)
	if !b.Equal(got, want) {
		t.Errorf("prefix match does not equal its range encoding")
	}

	// fixing 8 bits leaves the rest of the space free
	free := uint(p.Space().VarNum() - 8)
	if sc := b.Satcount(got); sc.Cmp(new(big.Int).Lsh(big.NewInt(1), free)) != 0 {
		t.Errorf("satcount = %s, want 2^%d", sc, free)
	}

	if !b.Equal(p.MatchDst(netip.MustParsePrefix("0.0.0.0/0")), b.True()) {
		t.Errorf("the default route prefix should match everything")
	}
	if !b.Equal(p.MatchSrc(netip.MustParsePrefix("2001:db8::/32")), b.False()) {
		t.Errorf("an IPv6 prefix should match nothing")
	}
}

func TestMatchProtoAndPorts(t *testing.T) {
	p := newPacket(t)
	b := p.Space().BDD()

	if !b.Equal(p.MatchProto(model.TCP), p.Vec(p.Proto).Value(6)) {
		t.Errorf("tcp should pin the protocol field to 6")
	}
	if !b.Equal(p.MatchProto(model.AnyProtocol), b.True()) {
		t.Errorf("any protocol should not constrain")
	}

	r, err := model.Ports(80, 443)
	if err != nil {
		t.Fatalf("ports: %v", err)
	}
	got := p.MatchDstPort(r)
	want := p.Vec(p.DstPort).Range(80, 443)
	if !b.Equal(got, want) {
		t.Errorf("port match does not equal its range encoding")
	}
}

func TestExampleRoundTrip(t *testing.T) {
	p := newPacket(t)

	flow := model.Flow{
		SrcIP:   netip.MustParseAddr("10.1.2.3"),
		DstIP:   netip.MustParseAddr("192.0.2.9"),
		SrcPort: 49152,
		DstPort: 443,
		Proto:   model.TCP,
	}
	got, ok := p.Example(p.MatchFlow(flow))
	if !ok {
		t.Fatalf("point predicate should have a witness")
	}
	if got != flow {
		t.Errorf("witness = %v, want %v", got, flow)
	}

	if _, ok := p.Example(p.False()); ok {
		t.Errorf("the empty set should have no witness")
	}
}

func TestExampleEnumeratedSet(t *testing.T) {
	p := newPacket(t)
	b := p.Space().BDD()
	// A set whose enumeration visits many assignments: the witness must be
	// the first one latched, not depend on the walk aborting.
	set := b.And(
		p.MatchDst(netip.MustParsePrefix("10.0.2.0/24")),
		p.MatchProto(model.TCP),
	)
	flow, ok := p.Example(set)
	if !ok {
		t.Fatalf("Example returned ok=false for a non-empty set")
	}
	if !netip.MustParsePrefix("10.0.2.0/24").Contains(flow.DstIP) || flow.Proto != model.TCP {
		t.Errorf("witness %s outside the set", flow)
	}
	if b.Equal(b.And(set, p.MatchFlow(flow)), b.False()) {
		t.Errorf("witness %s is not a point of the set", flow)
	}
}

func TestExampleDefaultsUnconstrainedBits(t *testing.T) {
	p := newPacket(t)
	// src constrained to a /8, everything else free
	flow, ok := p.Example(p.MatchSrc(netip.MustParsePrefix("10.0.0.0/8")))
	if !ok {
		t.Fatalf("non-empty set should have a witness")
	}
	if flow.SrcIP.As4()[0] != 10 {
		t.Errorf("witness src = %s, want inside 10.0.0.0/8", flow.SrcIP)
	}
}
