// Package translate turns device models into packet-state transitions. Each
// configuration becomes a Hop: per-interface inbound and outbound stages in
// pipeline order (inbound filter, destination translation, forwarding,
// source translation, outbound filter) plus the local-delivery and drop
// sets, all expressed over one shared packet space.
package translate

import (
	"fmt"
	"net/netip"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/debug"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/rel"
)

// Hop is one device's slice of the transition graph, keyed by interface
// name. In runs a packet arriving on an interface through the inbound
// filter and destination translation; Fwd picks the outbound interface for
// packets the device does not deliver locally; Out applies source
// translation and the outbound filter. InDeny and OutDeny are the matching
// filter drops, Accept the locally delivered set, Drop the unroutable set.
// Shutdown interfaces have no entries.
type Hop struct {
	Name    string
	In      map[string]rel.Transition
	InDeny  map[string]rel.Transition
	Fwd     map[string]rel.Transition
	Out     map[string]rel.Transition
	OutDeny map[string]rel.Transition
	Accept  rel.Transition
	Drop    rel.Transition
}

// Device translates one parsed configuration into its hop.
func Device(pkt *packet.Packet, cfg *model.Config) (*Hop, error) {
	b := pkt.Space().BDD()
	sp := pkt.Space()
	dstNAT, err := NAT(pkt, cfg, model.DstField)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Hostname, err)
	}
	srcNAT, err := NAT(pkt, cfg, model.SrcField)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Hostname, err)
	}
	hop := &Hop{
		Name:    cfg.Hostname,
		In:      map[string]rel.Transition{},
		InDeny:  map[string]rel.Transition{},
		Fwd:     map[string]rel.Transition{},
		Out:     map[string]rel.Transition{},
		OutDeny: map[string]rel.Transition{},
	}
	accept := b.False()
	for _, ifc := range cfg.Interfaces {
		if ifc.Shutdown {
			continue
		}
		inPermit, err := ifaceFilter(pkt, cfg, ifc.InACL)
		if err != nil {
			return nil, fmt.Errorf("%s: %s in: %w", cfg.Hostname, ifc.Name, err)
		}
		outPermit, err := ifaceFilter(pkt, cfg, ifc.OutACL)
		if err != nil {
			return nil, fmt.Errorf("%s: %s out: %w", cfg.Hostname, ifc.Name, err)
		}
		hop.In[ifc.Name] = rel.Compose(rel.Constrain(sp, inPermit), dstNAT)
		hop.InDeny[ifc.Name] = rel.Constrain(sp, b.Not(inPermit))
		hop.Out[ifc.Name] = rel.Compose(srcNAT, rel.Constrain(sp, outPermit))
		hop.OutDeny[ifc.Name] = rel.Compose(srcNAT, rel.Constrain(sp, b.Not(outPermit)))
		if ifc.Addr.IsValid() && ifc.Addr.Addr().Is4() {
			own := pkt.MatchDst(netip.PrefixFrom(ifc.Addr.Addr(), 32))
			accept = b.Apply(accept, own, rudd.OPor)
		}
	}
	preds, routed := fib(pkt, cfg)
	for name, pred := range preds {
		hop.Fwd[name] = rel.Constrain(sp, b.And(pred, b.Not(accept)))
	}
	hop.Accept = rel.Constrain(sp, accept)
	hop.Drop = rel.Constrain(sp, b.And(b.Not(accept), b.Not(routed)))
	if debug.Translate() {
		debug.Logf("translate: %s: %d interface(s), %d outbound set(s)",
			cfg.Hostname, len(hop.In), len(preds))
	}
	return hop, nil
}
