package translate

import (
	"fmt"
	"net/netip"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/rel"
)

// ACL builds the transition of a filter: packets the filter permits pass
// unchanged, the rest drop.
func ACL(pkt *packet.Packet, acl *model.ACL) rel.Transition {
	return rel.Constrain(pkt.Space(), permitSet(pkt, acl))
}

// permitSet is the set of packets an ordered filter permits. Lines fold
// right to left into an if-then-else chain, so the first matching line
// decides and a packet matching no line is denied.
func permitSet(pkt *packet.Packet, acl *model.ACL) rudd.Node {
	b := pkt.Space().BDD()
	acc := b.False()
	for i := len(acl.Lines) - 1; i >= 0; i-- {
		ln := acl.Lines[i]
		if ln.Action == model.Permit {
			acc = b.Ite(matchLine(pkt, ln), b.True(), acc)
		} else {
			acc = b.Ite(matchLine(pkt, ln), b.False(), acc)
		}
	}
	return acc
}

func matchLine(pkt *packet.Packet, ln model.ACLLine) rudd.Node {
	b := pkt.Space().BDD()
	return b.And(
		pkt.MatchProto(ln.Protocol),
		prefixPred(pkt, pkt.SrcIP, ln.Src),
		prefixPred(pkt, pkt.DstIP, ln.Dst),
		portsPred(pkt, pkt.SrcPort, ln.SrcPorts),
		portsPred(pkt, pkt.DstPort, ln.DstPorts),
	)
}

// prefixPred treats the zero prefix as "any".
func prefixPred(pkt *packet.Packet, f *bitvec.Field, pfx netip.Prefix) rudd.Node {
	if !pfx.IsValid() {
		return pkt.True()
	}
	return pkt.MatchPrefix(f, pfx)
}

// portsPred treats an empty range list as "any".
func portsPred(pkt *packet.Packet, f *bitvec.Field, ranges []model.PortRange) rudd.Node {
	if len(ranges) == 0 {
		return pkt.True()
	}
	b := pkt.Space().BDD()
	acc := b.False()
	for _, r := range ranges {
		acc = b.Apply(acc, pkt.MatchPort(f, r), rudd.OPor)
	}
	return acc
}

// ifaceFilter resolves an interface's filter reference to its permit set.
// The empty name means no filter is attached and permits everything.
func ifaceFilter(pkt *packet.Packet, cfg *model.Config, name string) (rudd.Node, error) {
	if name == "" {
		return pkt.True(), nil
	}
	acl, ok := cfg.ACL(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownACL, name)
	}
	return permitSet(pkt, acl), nil
}
