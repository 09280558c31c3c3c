// Package packet declares the canonical packet-header variable space every
// analysis shares: source and destination address and port, which address
// translation may rewrite, and the IP protocol, which nothing rewrites.
package packet

import (
	"encoding/binary"
	"net/netip"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
	"github.com/remora-net/remora/model"
)

// Packet owns the variable space of one analysis and the standard pairings
// of its rewritable fields.
type Packet struct {
	sp *bitvec.Space

	SrcIP   *bitvec.Field
	DstIP   *bitvec.Field
	SrcPort *bitvec.Field
	DstPort *bitvec.Field
	Proto   *bitvec.Field

	pairs map[*bitvec.Field]*bitvec.Pairing
}

func New(opts ...bitvec.Option) (*Packet, error) {
	l := bitvec.NewLayout()
	p := &Packet{
		SrcIP:   l.Primed("src-ip", 32),
		DstIP:   l.Primed("dst-ip", 32),
		SrcPort: l.Primed("src-port", 16),
		DstPort: l.Primed("dst-port", 16),
		Proto:   l.Value("proto", 8),
	}
	sp, err := l.Build(opts...)
	if err != nil {
		return nil, err
	}
	p.sp = sp
	p.pairs = map[*bitvec.Field]*bitvec.Pairing{}
	for _, f := range []*bitvec.Field{p.SrcIP, p.DstIP, p.SrcPort, p.DstPort} {
		pr, err := sp.Pairing(f)
		if err != nil {
			return nil, err
		}
		p.pairs[f] = pr
	}
	return p, nil
}

func (p *Packet) Space() *bitvec.Space { return p.sp }

// Vec is the value-bit view of one of the packet's fields.
func (p *Packet) Vec(f *bitvec.Field) bitvec.Vec { return p.sp.Vector(f) }

// Primed is the shadow-bit view of one of the rewritable fields.
func (p *Packet) Primed(f *bitvec.Field) bitvec.Vec { return p.sp.PrimedVec(f) }

// Pair returns the single-field pairing of a rewritable field.
func (p *Packet) Pair(f *bitvec.Field) (*bitvec.Pairing, bool) {
	pr, ok := p.pairs[f]
	return pr, ok
}

func (p *Packet) True() rudd.Node  { return p.sp.True() }
func (p *Packet) False() rudd.Node { return p.sp.False() }

// MatchPrefix constrains an address field to an IPv4 prefix. Non-IPv4
// prefixes denote the empty set.
func (p *Packet) MatchPrefix(f *bitvec.Field, pfx netip.Prefix) rudd.Node {
	lo, hi, ok := prefixRange(pfx)
	if !ok {
		return p.sp.False()
	}
	return p.sp.Vector(f).Range(uint64(lo), uint64(hi))
}

func (p *Packet) MatchSrc(pfx netip.Prefix) rudd.Node { return p.MatchPrefix(p.SrcIP, pfx) }
func (p *Packet) MatchDst(pfx netip.Prefix) rudd.Node { return p.MatchPrefix(p.DstIP, pfx) }

// MatchPort constrains a port field to an inclusive range.
func (p *Packet) MatchPort(f *bitvec.Field, r model.PortRange) rudd.Node {
	return p.sp.Vector(f).Range(uint64(r.Lo), uint64(r.Hi))
}

func (p *Packet) MatchSrcPort(r model.PortRange) rudd.Node { return p.MatchPort(p.SrcPort, r) }
func (p *Packet) MatchDstPort(r model.PortRange) rudd.Node { return p.MatchPort(p.DstPort, r) }

// MatchProto constrains the protocol field. AnyProtocol does not constrain.
func (p *Packet) MatchProto(pr model.Protocol) rudd.Node {
	if pr == model.AnyProtocol {
		return p.sp.True()
	}
	return p.sp.Vector(p.Proto).Value(uint64(pr))
}

// MatchFlow is the point predicate of one concrete packet.
func (p *Packet) MatchFlow(f model.Flow) rudd.Node {
	b := p.sp.BDD()
	return b.And(
		p.MatchPrefix(p.SrcIP, netip.PrefixFrom(f.SrcIP, 32)),
		p.MatchPrefix(p.DstIP, netip.PrefixFrom(f.DstIP, 32)),
		p.MatchPort(p.SrcPort, model.Port(f.SrcPort)),
		p.MatchPort(p.DstPort, model.Port(f.DstPort)),
		p.MatchProto(f.Proto),
	)
}

// Example extracts one concrete packet from a non-empty set. Bits the set
// leaves unconstrained come out as zero. The enumerator ignores callback
// errors, so the first assignment is latched with a flag rather than by
// aborting the walk.
func (p *Packet) Example(n rudd.Node) (model.Flow, bool) {
	b := p.sp.BDD()
	var flow model.Flow
	found := false
	err := b.Allsat(func(assign []int) error {
		if found {
			return nil
		}
		flow = p.decode(assign)
		found = true
		return nil
	}, n)
	if err != nil {
		return model.Flow{}, false
	}
	return flow, found
}

func (p *Packet) decode(assign []int) model.Flow {
	return model.Flow{
		SrcIP:   addr4(uint32(p.sp.Vector(p.SrcIP).Decode(assign))),
		DstIP:   addr4(uint32(p.sp.Vector(p.DstIP).Decode(assign))),
		SrcPort: uint16(p.sp.Vector(p.SrcPort).Decode(assign)),
		DstPort: uint16(p.sp.Vector(p.DstPort).Decode(assign)),
		Proto:   model.Protocol(p.sp.Vector(p.Proto).Decode(assign)),
	}
}

func prefixRange(pfx netip.Prefix) (lo, hi uint32, ok bool) {
	if !pfx.IsValid() || !pfx.Addr().Is4() {
		return 0, 0, false
	}
	pfx = pfx.Masked()
	a := pfx.Addr().As4()
	lo = binary.BigEndian.Uint32(a[:])
	var mask uint32
	if b := pfx.Bits(); b > 0 {
		mask = ^uint32(0) << (32 - b)
	}
	return lo, lo | ^mask, true
}

func addr4(x uint32) netip.Addr {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], x)
	return netip.AddrFrom4(b)
}
