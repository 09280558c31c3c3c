package parse

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/remora-net/remora/model"
)

// flatLine is one set-statement with the source line it came from. For
// hierarchical input the flattener preserves the original line numbers, so
// positions in warnings stay real either way.
type flatLine struct {
	text string
	line int
}

func flatLines(text string) []flatLine {
	var out []flatLine
	for i, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		out = append(out, flatLine{text: l, line: i + 1})
	}
	return out
}

// flattenJunos rewrites a hierarchical junos configuration into set-lines.
// Unbalanced braces mean the device itself would refuse the config, which
// reports as ErrWillNotCommit.
func flattenJunos(text string) ([]flatLine, error) {
	var stack [][]string
	var out []flatLine
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "/*") {
			continue
		}
		if j := strings.Index(line, "##"); j >= 0 {
			line = strings.TrimSpace(line[:j])
			if line == "" {
				continue
			}
		}
		no := i + 1
		switch {
		case line == "}" || line == "};":
			if len(stack) == 0 {
				return nil, fmt.Errorf("%w: unbalanced '}' at line %d", ErrWillNotCommit, no)
			}
			stack = stack[:len(stack)-1]
		case strings.HasSuffix(line, "{"):
			words := strings.Fields(strings.TrimSuffix(line, "{"))
			stack = append(stack, words)
		default:
			leaf := strings.Fields(strings.TrimSuffix(line, ";"))
			if len(leaf) == 0 {
				continue
			}
			var words []string
			words = append(words, "set")
			for _, grp := range stack {
				words = append(words, grp...)
			}
			for _, exp := range expandBrackets(leaf) {
				all := append(append([]string{}, words...), exp...)
				out = append(out, flatLine{text: strings.Join(all, " "), line: no})
			}
		}
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("%w: %d unclosed block(s) at end of file", ErrWillNotCommit, len(stack))
	}
	return out, nil
}

// expandBrackets turns "destination-port [ 80 443 ]" into one statement per
// bracketed value, the way the device CLI would list them.
func expandBrackets(words []string) [][]string {
	open := -1
	for i, w := range words {
		if w == "[" {
			open = i
			break
		}
	}
	if open < 0 {
		return [][]string{words}
	}
	var out [][]string
	head := words[:open]
	for _, w := range words[open+1:] {
		if w == "]" {
			break
		}
		one := append(append([]string{}, head...), w)
		out = append(out, one)
	}
	if len(out) == 0 {
		return [][]string{head}
	}
	return out
}

type junosTerm struct {
	filter string
	name   string
	proto  model.Protocol
	src    []netip.Prefix
	dst    []netip.Prefix
	srcPts []model.PortRange
	dstPts []model.PortRange
	action model.Action
	done   bool
	line   int
}

type junosRoute struct {
	prefix  netip.Prefix
	nexthop netip.Addr
	iface   string
	metric  int
	discard bool
	line    int
}

type junosState struct {
	file        string
	cfg         *model.Config
	w           *Warnings
	terms       []*junosTerm
	termByKey   map[string]*junosTerm
	routes      []*junosRoute
	routeByKey  map[string]*junosRoute
	protoWarned bool
	unrec       int
}

// extractFlatJunos builds a device model from junos set-lines.
func extractFlatJunos(file string, lines []flatLine, w *Warnings) (*model.Config, bool) {
	st := &junosState{
		file:       file,
		cfg:        model.NewConfig(""),
		w:          w,
		termByKey:  map[string]*junosTerm{},
		routeByKey: map[string]*junosRoute{},
	}
	for _, l := range lines {
		st.setLine(l)
	}
	st.buildACLs()
	st.buildRoutes()
	return st.cfg, st.unrec > 0
}

func (st *junosState) unknown(l flatLine) {
	st.w.RedFlagf("%s:%d: unrecognized statement: %s", st.file, l.line, l.text)
	st.unrec++
}

func (st *junosState) setLine(l flatLine) {
	f := strings.Fields(l.text)
	if len(f) < 2 || f[0] != "set" {
		st.unknown(l)
		return
	}
	switch f[1] {
	case "version":
	case "system":
		if len(f) >= 4 && f[2] == "host-name" {
			st.cfg.Hostname = f[3]
		}
	case "interfaces":
		st.ifaceLine(l, f)
	case "firewall":
		st.filterLine(l, f)
	case "routing-options":
		st.routeLine(l, f)
	case "protocols":
		if !st.protoWarned {
			st.w.Unimplementedf("%s:%d: dynamic routing is not modeled", st.file, l.line)
			st.protoWarned = true
		}
	case "policy-options", "security", "snmp", "chassis", "vlans", "applications", "groups", "apply-groups":
	default:
		st.unknown(l)
	}
}

func (st *junosState) ifaceLine(l flatLine, f []string) {
	if len(f) < 4 {
		st.unknown(l)
		return
	}
	ifc := st.cfg.EnsureInterface(f[2])
	rest := f[3:]
	switch rest[0] {
	case "disable":
		ifc.Shutdown = true
	case "description", "mtu", "speed", "vlan-tagging", "gigether-options":
	case "unit":
		if len(rest) < 2 {
			st.unknown(l)
			return
		}
		if rest[1] != "0" {
			st.w.Pedanticf("%s:%d: unit %s ignored, only unit 0 is modeled", st.file, l.line, rest[1])
			return
		}
		st.unitLine(l, ifc, rest[2:])
	default:
		st.unknown(l)
	}
}

func (st *junosState) unitLine(l flatLine, ifc *model.Interface, rest []string) {
	if len(rest) == 0 {
		return
	}
	if rest[0] == "description" {
		return
	}
	if len(rest) < 2 || rest[0] != "family" || rest[1] != "inet" {
		st.unknown(l)
		return
	}
	rest = rest[2:]
	if len(rest) == 0 {
		return
	}
	switch rest[0] {
	case "address":
		if len(rest) < 2 {
			st.unknown(l)
			return
		}
		p, err := netip.ParsePrefix(rest[1])
		if err != nil || !p.Addr().Is4() {
			st.unknown(l)
			return
		}
		ifc.Addr = p
	case "filter":
		if len(rest) < 3 {
			st.unknown(l)
			return
		}
		switch rest[1] {
		case "input":
			ifc.InACL = rest[2]
		case "output":
			ifc.OutACL = rest[2]
		default:
			st.unknown(l)
		}
	default:
		st.unknown(l)
	}
}

// filterLine accepts both "firewall filter NAME" and the
// "firewall family inet filter NAME" spelling.
func (st *junosState) filterLine(l flatLine, f []string) {
	rest := f[2:]
	if len(rest) >= 3 && rest[0] == "family" && rest[1] == "inet" {
		rest = rest[2:]
	}
	if len(rest) < 5 || rest[0] != "filter" || rest[2] != "term" {
		st.unknown(l)
		return
	}
	filter, termName := rest[1], rest[3]
	t := st.term(filter, termName, l.line)
	switch rest[4] {
	case "from":
		st.fromClause(l, t, rest[5:])
	case "then":
		st.thenClause(l, t, rest[5:])
	default:
		st.unknown(l)
	}
}

func (st *junosState) term(filter, name string, line int) *junosTerm {
	key := filter + "\x00" + name
	if t, ok := st.termByKey[key]; ok {
		return t
	}
	t := &junosTerm{filter: filter, name: name, proto: model.AnyProtocol, line: line}
	st.termByKey[key] = t
	st.terms = append(st.terms, t)
	return t
}

func (st *junosState) fromClause(l flatLine, t *junosTerm, rest []string) {
	if len(rest) < 2 {
		st.unknown(l)
		return
	}
	switch rest[0] {
	case "source-address", "destination-address":
		p, err := netip.ParsePrefix(rest[1])
		if err != nil || !p.Addr().Is4() {
			st.unknown(l)
			return
		}
		if rest[0] == "source-address" {
			t.src = append(t.src, p.Masked())
		} else {
			t.dst = append(t.dst, p.Masked())
		}
	case "protocol":
		proto, err := model.ParseProtocol(rest[1])
		if err != nil {
			st.unknown(l)
			return
		}
		t.proto = proto
	case "source-port", "destination-port":
		r, ok := junosPortRange(rest[1])
		if !ok {
			st.unknown(l)
			return
		}
		if rest[0] == "source-port" {
			t.srcPts = append(t.srcPts, r)
		} else {
			t.dstPts = append(t.dstPts, r)
		}
	default:
		st.unknown(l)
	}
}

func (st *junosState) thenClause(l flatLine, t *junosTerm, rest []string) {
	if len(rest) == 0 {
		st.unknown(l)
		return
	}
	switch rest[0] {
	case "accept":
		st.finishTerm(t, model.Permit)
	case "discard", "reject":
		st.finishTerm(t, model.Deny)
	case "count", "log", "syslog", "policer":
	case "next":
		st.w.Unimplementedf("%s:%d: 'then next term' is not modeled, term %s skipped", st.file, l.line, t.name)
	default:
		st.unknown(l)
	}
}

func (st *junosState) finishTerm(t *junosTerm, act model.Action) {
	if t.done {
		return
	}
	t.action = act
	t.done = true
}

// junosPortRange accepts "443", "http", or "1024-65535".
func junosPortRange(tok string) (model.PortRange, bool) {
	if lo, hi, ok := strings.Cut(tok, "-"); ok {
		l, okLo := servicePort(lo)
		h, okHi := servicePort(hi)
		if !okLo || !okHi || l > h {
			return model.PortRange{}, false
		}
		return model.PortRange{Lo: l, Hi: h}, true
	}
	p, ok := servicePort(tok)
	if !ok {
		return model.PortRange{}, false
	}
	return model.Port(p), true
}

// buildACLs expands finished terms into filter lines. A term with several
// addresses of the same side matches their union, so the expansion is the
// cartesian product of sources and destinations.
func (st *junosState) buildACLs() {
	for _, t := range st.terms {
		a := st.cfg.EnsureACL(t.filter)
		if !t.done {
			st.w.Pedanticf("%s: term %s in filter %s has no terminating action", st.file, t.name, t.filter)
			continue
		}
		srcs := t.src
		if len(srcs) == 0 {
			srcs = []netip.Prefix{anyPrefix()}
		}
		dsts := t.dst
		if len(dsts) == 0 {
			dsts = []netip.Prefix{anyPrefix()}
		}
		for _, s := range srcs {
			for _, d := range dsts {
				a.Lines = append(a.Lines, model.ACLLine{
					Action:   t.action,
					Protocol: t.proto,
					Src:      s,
					Dst:      d,
					SrcPorts: t.srcPts,
					DstPorts: t.dstPts,
					Text:     fmt.Sprintf("filter %s term %s", t.filter, t.name),
					Line:     t.line,
				})
			}
		}
	}
}

// routeLine accumulates static route attributes, which arrive one set-line
// at a time for the same prefix.
func (st *junosState) routeLine(l flatLine, f []string) {
	rest := f[2:]
	if len(rest) < 4 || rest[0] != "static" || rest[1] != "route" {
		st.unknown(l)
		return
	}
	p, err := netip.ParsePrefix(rest[2])
	if err != nil || !p.Addr().Is4() {
		st.unknown(l)
		return
	}
	r, ok := st.routeByKey[rest[2]]
	if !ok {
		r = &junosRoute{prefix: p.Masked(), line: l.line}
		st.routeByKey[rest[2]] = r
		st.routes = append(st.routes, r)
	}
	switch rest[3] {
	case "next-hop":
		if len(rest) < 5 {
			st.unknown(l)
			return
		}
		if nh, err := netip.ParseAddr(rest[4]); err == nil && nh.Is4() {
			r.nexthop = nh
			return
		}
		r.iface = rest[4]
	case "metric":
		if len(rest) < 5 {
			st.unknown(l)
			return
		}
		m, err := strconv.Atoi(rest[4])
		if err != nil {
			st.unknown(l)
			return
		}
		r.metric = m
	case "discard":
		r.discard = true
	case "no-readvertise":
	default:
		st.unknown(l)
	}
}

func (st *junosState) buildRoutes() {
	for _, r := range st.routes {
		switch {
		case r.discard:
			st.w.Pedanticf("%s:%d: discard route %s not modeled", st.file, r.line, r.prefix)
		case r.iface != "":
			st.cfg.Routes = append(st.cfg.Routes, model.Route{Prefix: r.prefix, Iface: r.iface, Metric: r.metric})
		case r.nexthop.IsValid():
			ifc, ok := connectedIface(st.cfg, r.nexthop)
			if !ok {
				st.w.RedFlagf("%s:%d: next hop %s is not on any connected subnet", st.file, r.line, r.nexthop)
				st.unrec++
				continue
			}
			st.cfg.Routes = append(st.cfg.Routes, model.Route{Prefix: r.prefix, Iface: ifc.Name, Metric: r.metric})
		default:
			st.w.Pedanticf("%s:%d: static route %s has no next hop", st.file, r.line, r.prefix)
		}
	}
}
