// Package reach answers reachability questions over a snapshot: which
// packets can get from one location to another, what they look like when
// they arrive, and one path they can take. Devices become pipeline edges
// over a shared packet space, interfaces on a common subnet are joined, and
// packet sets are pushed to a fixpoint through the resulting graph.
package reach

import (
	"fmt"
	"net/netip"

	"github.com/remora-net/remora/debug"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/rel"
	"github.com/remora-net/remora/translate"
)

// Location is a vertex of the transition graph: a device, the pipeline
// point, and for wire-facing points the interface.
type Location struct {
	Node  string `json:"node"`
	Iface string `json:"iface,omitempty"`
	Point Point  `json:"point"`
}

func (l Location) String() string {
	if l.Iface == "" {
		return l.Node + "@" + l.Point.String()
	}
	return l.Node + "[" + l.Iface + "]@" + l.Point.String()
}

// Edge carries packet sets from From to To through T.
type Edge struct {
	From Location
	To   Location
	T    rel.Transition
}

// Graph is the transition graph of one snapshot. It is immutable after
// Build and confined to the goroutine owning the packet space.
type Graph struct {
	pkt   *packet.Packet
	edges []Edge
	out   map[Location][]int
	in    map[Location][]int
	locs  []Location
	seen  map[Location]bool
}

type endpoint struct {
	node, iface string
	subnet      netip.Prefix
}

// Build translates configs and wires their hops together: per-device
// pipeline edges, plus identity edges between interfaces sharing a subnet.
// Device names must be unique.
func Build(pkt *packet.Packet, configs []*model.Config) (*Graph, error) {
	g := &Graph{
		pkt:  pkt,
		out:  map[Location][]int{},
		in:   map[Location][]int{},
		seen: map[Location]bool{},
	}
	var ends []endpoint
	hosts := map[string]bool{}
	for _, cfg := range configs {
		if cfg.Hostname == "" {
			return nil, fmt.Errorf("%w: device without hostname", ErrGraph)
		}
		if hosts[cfg.Hostname] {
			return nil, fmt.Errorf("%w: duplicate device %q", ErrGraph, cfg.Hostname)
		}
		hosts[cfg.Hostname] = true
		hop, err := translate.Device(pkt, cfg)
		if err != nil {
			return nil, err
		}
		n := cfg.Hostname
		postIn := Location{Node: n, Point: PostIn}
		dropped := Location{Node: n, Point: Dropped}
		for _, ifc := range cfg.Interfaces {
			if ifc.Shutdown {
				continue
			}
			i := ifc.Name
			preIn := Location{Node: n, Iface: i, Point: PreIn}
			preOut := Location{Node: n, Iface: i, Point: PreOut}
			g.addEdge(preIn, postIn, hop.In[i])
			g.addEdge(preIn, dropped, hop.InDeny[i])
			if t, ok := hop.Fwd[i]; ok {
				g.addEdge(postIn, preOut, t)
			}
			g.addEdge(preOut, Location{Node: n, Iface: i, Point: PostOut}, hop.Out[i])
			g.addEdge(preOut, dropped, hop.OutDeny[i])
			if ifc.Addr.IsValid() && ifc.Addr.Addr().Is4() {
				ends = append(ends, endpoint{node: n, iface: i, subnet: ifc.Addr.Masked()})
			}
		}
		g.addEdge(postIn, Location{Node: n, Point: Accepted}, hop.Accept)
		g.addEdge(postIn, dropped, hop.Drop)
	}
	for i := 0; i < len(ends); i++ {
		for j := i + 1; j < len(ends); j++ {
			a, z := ends[i], ends[j]
			if a.node == z.node || a.subnet != z.subnet {
				continue
			}
			g.addEdge(Location{Node: a.node, Iface: a.iface, Point: PostOut},
				Location{Node: z.node, Iface: z.iface, Point: PreIn}, rel.Identity{})
			g.addEdge(Location{Node: z.node, Iface: z.iface, Point: PostOut},
				Location{Node: a.node, Iface: a.iface, Point: PreIn}, rel.Identity{})
		}
	}
	if debug.Reach() {
		debug.Logf("reach: graph: %d location(s), %d edge(s)", len(g.locs), len(g.edges))
	}
	return g, nil
}

// addEdge records an edge unless its transition drops everything anyway.
func (g *Graph) addEdge(from, to Location, t rel.Transition) {
	if _, ok := t.(rel.Zero); ok {
		return
	}
	idx := len(g.edges)
	g.edges = append(g.edges, Edge{From: from, To: to, T: t})
	g.out[from] = append(g.out[from], idx)
	g.in[to] = append(g.in[to], idx)
	g.addLoc(from)
	g.addLoc(to)
}

func (g *Graph) addLoc(l Location) {
	if !g.seen[l] {
		g.seen[l] = true
		g.locs = append(g.locs, l)
	}
}

// Packet returns the packet space the graph is built over.
func (g *Graph) Packet() *packet.Packet { return g.pkt }

// Has reports whether the location appears in the graph.
func (g *Graph) Has(l Location) bool { return g.seen[l] }

// Locations returns every location in first-wired order.
func (g *Graph) Locations() []Location {
	out := make([]Location, len(g.locs))
	copy(out, g.locs)
	return out
}

// Edges returns the wired edges in insertion order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}
