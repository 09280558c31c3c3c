package reach

import (
	"errors"
	"net/netip"
	"strings"
	"testing"

	"github.com/dalzilio/rudd"

	"github.com/remora-net/remora/bitvec"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
	"github.com/remora-net/remora/pred"
	"github.com/remora-net/remora/translate"
)

func newPkt(t *testing.T) *packet.Packet {
	t.Helper()
	pkt, err := packet.New(bitvec.Nodesize(1<<16), bitvec.Cachesize(1<<13))
	if err != nil {
		t.Fatal(err)
	}
	return pkt
}

func flow(src, dst string, sport, dport uint16, proto model.Protocol) model.Flow {
	return model.Flow{
		SrcIP:   netip.MustParseAddr(src),
		DstIP:   netip.MustParseAddr(dst),
		SrcPort: sport,
		DstPort: dport,
		Proto:   proto,
	}
}

func contains(pkt *packet.Packet, set rudd.Node, f model.Flow) bool {
	b := pkt.Space().BDD()
	return !b.Equal(b.Apply(set, pkt.MatchFlow(f), rudd.OPand), b.False())
}

func pathString(path []Location) string {
	parts := make([]string, len(path))
	for i, l := range path {
		parts[i] = l.String()
	}
	return strings.Join(parts, " > ")
}

// twoRouterConfigs is r1 and r2 joined by a /30, each with a host leg.
// r2 filters traffic arriving from the link down to web traffic.
func twoRouterConfigs() []*model.Config {
	r1 := model.NewConfig("r1")
	r1.Interfaces = []*model.Interface{
		{Name: "eth0", Addr: netip.MustParsePrefix("10.0.1.1/24")},
		{Name: "eth1", Addr: netip.MustParsePrefix("10.0.12.1/30")},
	}
	r1.Routes = []model.Route{
		{Prefix: netip.MustParsePrefix("10.0.2.0/24"), Iface: "eth1"},
	}
	r2 := model.NewConfig("r2")
	r2.Interfaces = []*model.Interface{
		{Name: "eth0", Addr: netip.MustParsePrefix("10.0.12.2/30"), InACL: "LINK"},
		{Name: "eth1", Addr: netip.MustParsePrefix("10.0.2.1/24")},
	}
	r2.EnsureACL("LINK").Lines = []model.ACLLine{
		{
			Action:   model.Permit,
			Protocol: model.TCP,
			Dst:      netip.MustParsePrefix("10.0.2.0/24"),
			DstPorts: []model.PortRange{model.Port(80)},
		},
	}
	r2.Routes = []model.Route{
		{Prefix: netip.MustParsePrefix("10.0.1.0/24"), Iface: "eth0"},
	}
	return []*model.Config{r1, r2}
}

func TestBuildShape(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	if got := len(g.Locations()); got != 18 {
		t.Errorf("locations: %d, want 18", got)
	}
	if got := len(g.Edges()); got != 19 {
		t.Errorf("edges: %d, want 19", got)
	}
	if !g.Has(Location{Node: "r2", Point: Dropped}) {
		t.Error("missing drop location on r2")
	}
}

func TestQueryAcrossLink(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Query(Query{
		Src:     Location{Node: "r1", Iface: "eth0", Point: PreIn},
		Dst:     Location{Node: "r2", Iface: "eth1", Point: PostOut},
		SrcPred: `dst.ip == "10.0.2.5" && proto == "tcp" && dst.port == 80`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reachable || res.Witness == nil {
		t.Fatalf("not reachable: %+v", res)
	}
	w := *res.Witness
	if w.DstIP != netip.MustParseAddr("10.0.2.5") || w.DstPort != 80 || w.Proto != model.TCP {
		t.Errorf("witness: %s", w)
	}
	want := "r1[eth0]@pre-in > r1@post-in > r1[eth1]@pre-out > r1[eth1]@post-out > " +
		"r2[eth0]@pre-in > r2@post-in > r2[eth1]@pre-out > r2[eth1]@post-out"
	if got := pathString(res.Path); got != want {
		t.Errorf("path:\n got %s\nwant %s", got, want)
	}
	if err := pkt.Space().Err(); err != nil {
		t.Fatal(err)
	}
}

func TestQueryUnfilteredArrival(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	// No predicates: the arrival set is everything LINK lets through, with
	// source bits free, so its enumeration has many assignments.
	res, err := g.Query(Query{
		Src: Location{Node: "r1", Iface: "eth0", Point: PreIn},
		Dst: Location{Node: "r2", Iface: "eth1", Point: PostOut},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reachable {
		t.Fatalf("reachable query reported unreachable: %+v", res)
	}
	b := pkt.Space().BDD()
	if res.Set == nil || b.Equal(res.Set, b.False()) {
		t.Fatal("reachable verdict with an empty arrival set")
	}
	if res.Witness == nil {
		t.Fatal("reachable verdict without a witness")
	}
	if !contains(pkt, res.Set, *res.Witness) {
		t.Errorf("witness %s not in the arrival set", res.Witness)
	}
}

func TestQueryFiltered(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	sshPred := `dst.ip == "10.0.2.5" && proto == "tcp" && dst.port == 22`
	res, err := g.Query(Query{
		Src:     Location{Node: "r1", Iface: "eth0", Point: PreIn},
		Dst:     Location{Node: "r2", Iface: "eth1", Point: PostOut},
		SrcPred: sshPred,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Reachable || res.Witness != nil || len(res.Path) != 0 {
		t.Fatalf("filtered flow got through: %+v", res)
	}

	res, err = g.Query(Query{
		Src:     Location{Node: "r1", Iface: "eth0", Point: PreIn},
		Dst:     Location{Node: "r2", Point: Dropped},
		SrcPred: sshPred,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reachable {
		t.Fatal("filtered flow not at the drop location")
	}
	if res.Witness.DstPort != 22 {
		t.Errorf("witness: %s", res.Witness)
	}
	want := "r1[eth0]@pre-in > r1@post-in > r1[eth1]@pre-out > r1[eth1]@post-out > " +
		"r2[eth0]@pre-in > r2@dropped"
	if got := pathString(res.Path); got != want {
		t.Errorf("path:\n got %s\nwant %s", got, want)
	}
}

func TestQueryReturnPath(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Query(Query{
		Src:     Location{Node: "r2", Iface: "eth1", Point: PreIn},
		Dst:     Location{Node: "r1", Iface: "eth0", Point: PostOut},
		SrcPred: `dst.ip == "10.0.1.7"`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reachable {
		t.Fatal("return direction not reachable")
	}
	if res.Witness.DstIP != netip.MustParseAddr("10.0.1.7") {
		t.Errorf("witness: %s", res.Witness)
	}
}

func TestBackward(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	goalSet, err := pred.Compile(pkt, `dst.ip == "10.0.2.5" && proto == "tcp"`)
	if err != nil {
		t.Fatal(err)
	}
	goal := Location{Node: "r2", Iface: "eth1", Point: PostOut}
	back := g.Backward(map[Location]rudd.Node{goal: goalSet})
	at, ok := back[Location{Node: "r1", Iface: "eth0", Point: PreIn}]
	if !ok {
		t.Fatal("goal not backward-reachable from r1")
	}
	if !contains(pkt, at, flow("10.0.1.9", "10.0.2.5", 40000, 80, model.TCP)) {
		t.Error("web flow missing from ingress set")
	}
	if contains(pkt, at, flow("10.0.1.9", "10.0.2.5", 40000, 22, model.TCP)) {
		t.Error("ssh flow in ingress set despite the link filter")
	}
	if contains(pkt, at, flow("10.0.1.9", "10.0.2.5", 40000, 80, model.UDP)) {
		t.Error("udp flow in ingress set despite the link filter")
	}
}

func TestQueryThroughNAT(t *testing.T) {
	pkt := newPkt(t)
	fw := model.NewConfig("fw")
	fw.Interfaces = []*model.Interface{
		{Name: "eth0", Addr: netip.MustParsePrefix("192.168.1.1/24")},
		{Name: "eth1", Addr: netip.MustParsePrefix("10.0.0.1/24")},
	}
	fw.NAT = []model.NATRule{
		model.StaticNAT{
			On:      model.DstField,
			Match:   netip.MustParsePrefix("203.0.113.100/32"),
			Rewrite: netip.MustParsePrefix("10.0.0.100/32"),
		},
	}
	srv := model.NewConfig("srv")
	srv.Interfaces = []*model.Interface{
		{Name: "eth0", Addr: netip.MustParsePrefix("10.0.0.100/24")},
	}
	g, err := Build(pkt, []*model.Config{fw, srv})
	if err != nil {
		t.Fatal(err)
	}
	res, err := g.Query(Query{
		Src:     Location{Node: "fw", Iface: "eth0", Point: PreIn},
		Dst:     Location{Node: "srv", Point: Accepted},
		SrcPred: `dst.ip == "203.0.113.100" && proto == "tcp" && dst.port == 443`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !res.Reachable {
		t.Fatal("published address not reachable")
	}
	w := *res.Witness
	if w.DstIP != netip.MustParseAddr("10.0.0.100") || w.DstPort != 443 {
		t.Errorf("witness not in arrival form: %s", w)
	}
	want := "fw[eth0]@pre-in > fw@post-in > fw[eth1]@pre-out > fw[eth1]@post-out > " +
		"srv[eth0]@pre-in > srv@post-in > srv@accepted"
	if got := pathString(res.Path); got != want {
		t.Errorf("path:\n got %s\nwant %s", got, want)
	}
}

func TestBuildErrors(t *testing.T) {
	pkt := newPkt(t)
	a1 := model.NewConfig("a")
	a2 := model.NewConfig("a")
	if _, err := Build(pkt, []*model.Config{a1, a2}); !errors.Is(err, ErrGraph) {
		t.Errorf("duplicate device: %v", err)
	}
	if _, err := Build(pkt, []*model.Config{model.NewConfig("")}); !errors.Is(err, ErrGraph) {
		t.Errorf("empty hostname: %v", err)
	}
	bad := model.NewConfig("b")
	bad.Interfaces = []*model.Interface{
		{Name: "eth0", Addr: netip.MustParsePrefix("10.0.0.1/24"), InACL: "GHOST"},
	}
	if _, err := Build(pkt, []*model.Config{bad}); !errors.Is(err, translate.ErrUnknownACL) {
		t.Errorf("unknown acl: %v", err)
	}
}

func TestQueryErrors(t *testing.T) {
	pkt := newPkt(t)
	g, err := Build(pkt, twoRouterConfigs())
	if err != nil {
		t.Fatal(err)
	}
	src := Location{Node: "r1", Iface: "eth0", Point: PreIn}
	dst := Location{Node: "r2", Iface: "eth1", Point: PostOut}
	if _, err := g.Query(Query{Src: Location{Node: "nope", Point: PreIn}, Dst: dst}); !errors.Is(err, ErrBadLocation) {
		t.Errorf("bad src: %v", err)
	}
	if _, err := g.Query(Query{Src: src, Dst: dst, SrcPred: "dst.ip == 7"}); !errors.Is(err, pred.ErrPredicate) {
		t.Errorf("bad predicate: %v", err)
	}
}

func TestPointRoundTrip(t *testing.T) {
	for _, p := range AllPoints() {
		got, err := ParsePoint(p.String())
		if err != nil || got != p {
			t.Errorf("round trip %s: %v %v", p, got, err)
		}
	}
	if _, err := ParsePoint("bogus"); !errors.Is(err, ErrBadPoint) {
		t.Error("expected error for bogus point")
	}
	if !Dropped.Terminal() || PreIn.Terminal() {
		t.Error("terminal points wrong")
	}
}
