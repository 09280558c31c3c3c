package translate

import (
	"encoding/binary"
	"fmt"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/rel"
)

// NAT builds the translation stage rewriting field. Rules apply first-match:
// each rule's relation carries the negation of every earlier match, and a
// final rule keeps the field for packets nothing matched. All rules share
// the field's pairing, so the whole stage merges into a single transform.
func NAT(pkt *packet.Packet, cfg *model.Config, field model.NATField) (rel.Transition, error) {
	var rules []model.NATRule
	for _, r := range cfg.NAT {
		if r.Field() == field {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		return rel.Identity{}, nil
	}
	f := pkt.SrcIP
	if field == model.DstField {
		f = pkt.DstIP
	}
	pair, ok := pkt.Pair(f)
	if !ok {
		return nil, fmt.Errorf("%w: field %s is not rewritable", ErrBadNAT, field)
	}
	b := pkt.Space().BDD()
	var ts []rel.Transition
	seen := b.False()
	for _, r := range rules {
		match, rewrite, err := natRelation(pkt, cfg, f, r)
		if err != nil {
			return nil, err
		}
		ts = append(ts, rel.NewTransform(b.And(match, b.Not(seen), rewrite), pair))
		seen = b.Apply(seen, match, rudd.OPor)
	}
	keep := b.Apply(b.Not(seen), pkt.Vec(f).Eq(pkt.Primed(f)), rudd.OPand)
	ts = append(ts, rel.NewTransform(keep, pair))
	return rel.Or(pkt.Space(), ts...), nil
}

// natRelation splits one rule into its match on the value bits and its
// rewrite relation over the shadow bits.
func natRelation(pkt *packet.Packet, cfg *model.Config, f *bitvec.Field, rule model.NATRule) (match, rewrite rudd.Node, err error) {
	switch r := rule.(type) {
	case model.StaticNAT:
		return staticRelation(pkt, f, r)
	case model.PoolNAT:
		return poolRelation(pkt, cfg, f, r)
	}
	return nil, nil, fmt.Errorf("%w: %T", ErrBadNAT, rule)
}

// staticRelation swaps the network part of the field and carries the host
// bits through per-bit equalities.
func staticRelation(pkt *packet.Packet, f *bitvec.Field, r model.StaticNAT) (rudd.Node, rudd.Node, error) {
	if !r.Match.IsValid() || !r.Match.Addr().Is4() || !r.Rewrite.IsValid() || !r.Rewrite.Addr().Is4() {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadNAT, r)
	}
	if r.Match.Bits() != r.Rewrite.Bits() {
		return nil, nil, fmt.Errorf("%w: %s: prefix lengths differ", ErrBadNAT, r)
	}
	b := pkt.Space().BDD()
	v, pv := pkt.Vec(f), pkt.Primed(f)
	a := r.Rewrite.Masked().Addr().As4()
	x := binary.BigEndian.Uint32(a[:])
	plen := r.Match.Bits()
	rewrite := b.True()
	for i := 0; i < plen; i++ {
		lit := pv.Bit(i)
		if x>>(31-i)&1 == 0 {
			lit = b.Not(lit)
		}
		rewrite = b.Apply(rewrite, lit, rudd.OPand)
	}
	for i := plen; i < 32; i++ {
		rewrite = b.Apply(rewrite, b.Equiv(v.Bit(i), pv.Bit(i)), rudd.OPand)
	}
	return pkt.MatchPrefix(f, r.Match), rewrite, nil
}

// poolRelation matches the rule's filter and rewrites into the pool range.
// The new address does not depend on the old one.
func poolRelation(pkt *packet.Packet, cfg *model.Config, f *bitvec.Field, r model.PoolNAT) (rudd.Node, rudd.Node, error) {
	acl, ok := cfg.ACL(r.ACL)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownACL, r.ACL)
	}
	if !r.Lo.Is4() || !r.Hi.Is4() {
		return nil, nil, fmt.Errorf("%w: %s", ErrBadNAT, r)
	}
	loB, hiB := r.Lo.As4(), r.Hi.As4()
	lo := binary.BigEndian.Uint32(loB[:])
	hi := binary.BigEndian.Uint32(hiB[:])
	return permitSet(pkt, acl), pkt.Primed(f).Range(uint64(lo), uint64(hi)), nil
}
