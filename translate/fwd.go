package translate

import (
	"net/netip"
	"sort"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/rel"
)

// Forwarding builds the longest-prefix-match FIB as one filter per outbound
// interface. Connected subnets are installed at metric 0 next to the static
// routes; routes out shutdown or address-less interfaces are not installed.
// The per-interface sets are disjoint except under equal-cost ties, where a
// packet may leave by any tied interface. Packets addressed to the device
// itself are not excluded here; Device handles local delivery.
func Forwarding(pkt *packet.Packet, cfg *model.Config) map[string]rel.Transition {
	preds, _ := fib(pkt, cfg)
	out := make(map[string]rel.Transition, len(preds))
	for name, pred := range preds {
		out[name] = rel.Constrain(pkt.Space(), pred)
	}
	return out
}

type fibRoute struct {
	prefix netip.Prefix
	iface  string
	metric int
}

// fib computes the per-interface destination sets and their union. Prefixes
// are processed longest first; each one claims what no longer prefix has,
// and within a prefix only the lowest-metric routes install.
func fib(pkt *packet.Packet, cfg *model.Config) (map[string]rudd.Node, rudd.Node) {
	b := pkt.Space().BDD()
	up := map[string]bool{}
	var routes []fibRoute
	for _, ifc := range cfg.Interfaces {
		if ifc.Shutdown || !ifc.Addr.IsValid() {
			continue
		}
		up[ifc.Name] = true
		routes = append(routes, fibRoute{prefix: ifc.Addr.Masked(), iface: ifc.Name})
	}
	for _, r := range cfg.Routes {
		if up[r.Iface] && r.Prefix.IsValid() {
			routes = append(routes, fibRoute{prefix: r.Prefix.Masked(), iface: r.Iface, metric: r.Metric})
		}
	}
	groups := map[netip.Prefix][]fibRoute{}
	for _, r := range routes {
		groups[r.prefix] = append(groups[r.prefix], r)
	}
	prefixes := make([]netip.Prefix, 0, len(groups))
	for p := range groups {
		prefixes = append(prefixes, p)
	}
	sort.Slice(prefixes, func(i, j int) bool {
		if prefixes[i].Bits() != prefixes[j].Bits() {
			return prefixes[i].Bits() > prefixes[j].Bits()
		}
		return prefixes[i].Addr().Less(prefixes[j].Addr())
	})
	preds := map[string]rudd.Node{}
	matched := b.False()
	for _, pfx := range prefixes {
		group := groups[pfx]
		pred := b.Apply(pkt.MatchDst(pfx), b.Not(matched), rudd.OPand)
		matched = b.Apply(matched, pkt.MatchDst(pfx), rudd.OPor)
		best := group[0].metric
		for _, r := range group[1:] {
			if r.metric < best {
				best = r.metric
			}
		}
		for _, r := range group {
			if r.metric != best {
				continue
			}
			if prev, ok := preds[r.iface]; ok {
				preds[r.iface] = b.Apply(prev, pred, rudd.OPor)
			} else {
				preds[r.iface] = pred
			}
		}
	}
	return preds, matched
}
