package parse

import (
	"encoding/binary"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"

	"github.com/remora-net/remora/model"
)

// servicePorts maps the service names vendors accept anywhere a port number
// goes. IOS spells web traffic www, junos spells it http; both are listed.
var servicePorts = map[string]uint16{
	"ftp-data": 20,
	"ftp":      21,
	"ssh":      22,
	"telnet":   23,
	"smtp":     25,
	"domain":   53,
	"tftp":     69,
	"www":      80,
	"http":     80,
	"pop3":     110,
	"ntp":      123,
	"snmp":     161,
	"bgp":      179,
	"https":    443,
	"isakmp":   500,
	"syslog":   514,
}

// iosBenign names top-level commands that carry nothing remora models and
// nothing worth warning about.
var iosBenign = map[string]bool{
	"version":       true,
	"boot":          true,
	"service":       true,
	"enable":        true,
	"username":      true,
	"aaa":           true,
	"clock":         true,
	"ntp":           true,
	"logging":       true,
	"snmp-server":   true,
	"spanning-tree": true,
	"end":           true,
	"exit":          true,
	"cdp":           true,
	"lldp":          true,
	"archive":       true,
	"no":            true,
}

// iosBlocks names top-level commands that open an indented block remora
// skips wholesale.
var iosBlocks = map[string]bool{
	"line":          true,
	"banner":        true,
	"vlan":          true,
	"crypto":        true,
	"policy-map":    true,
	"class-map":     true,
	"route-map":     true,
	"control-plane": true,
}

type iosPool struct {
	lo, hi netip.Addr
}

type nextHopRoute struct {
	prefix  netip.Prefix
	nexthop netip.Addr
	metric  int
	line    int
}

type iosState struct {
	file  string
	cfg   *model.Config
	w     *Warnings
	iface *model.Interface
	acl   *model.ACL
	skip  bool
	pools map[string]iosPool
	// next-hop routes resolve against interface subnets once all
	// interfaces are known.
	routes []nextHopRoute
	unrec  int
}

// extractIOS builds a device model from an IOS-style configuration. The
// second result reports whether any lines went unrecognized.
func extractIOS(file, text string, w *Warnings) (*model.Config, bool) {
	st := &iosState{
		file:  file,
		cfg:   model.NewConfig(""),
		w:     w,
		pools: map[string]iosPool{},
	}
	for i, raw := range strings.Split(text, "\n") {
		line := strings.TrimRight(raw, " \t\r")
		if line == "" {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(line), "!") {
			st.closeBlocks()
			continue
		}
		no := i + 1
		if line[0] == ' ' || line[0] == '\t' {
			st.subLine(no, line)
			continue
		}
		st.closeBlocks()
		st.topLine(no, line)
	}
	for _, r := range st.routes {
		ifc, ok := connectedIface(st.cfg, r.nexthop)
		if !ok {
			st.w.RedFlagf("%s:%d: next hop %s is not on any connected subnet", st.file, r.line, r.nexthop)
			st.unrec++
			continue
		}
		st.cfg.Routes = append(st.cfg.Routes, model.Route{Prefix: r.prefix, Iface: ifc.Name, Metric: r.metric})
	}
	return st.cfg, st.unrec > 0
}

func (st *iosState) closeBlocks() {
	st.iface, st.acl, st.skip = nil, nil, false
}

func (st *iosState) unknown(no int, line string) {
	st.w.RedFlagf("%s:%d: unrecognized line: %s", st.file, no, strings.TrimSpace(line))
	st.unrec++
}

// connectedIface finds the interface whose subnet contains the next hop.
func connectedIface(cfg *model.Config, nh netip.Addr) (*model.Interface, bool) {
	for _, ifc := range cfg.Interfaces {
		if ifc.Addr.IsValid() && ifc.Addr.Contains(nh) {
			return ifc, true
		}
	}
	return nil, false
}

func (st *iosState) topLine(no int, line string) {
	f := strings.Fields(line)
	switch f[0] {
	case "hostname":
		if len(f) > 1 {
			st.cfg.Hostname = f[1]
		}
	case "interface":
		if len(f) < 2 {
			st.unknown(no, line)
			return
		}
		st.iface = st.cfg.EnsureInterface(f[1])
	case "ip":
		st.ipLine(no, f, line)
	case "access-list":
		st.numberedACL(no, f, line)
	case "router":
		st.w.Unimplementedf("%s:%d: dynamic routing is not modeled: %s", st.file, no, strings.TrimSpace(line))
		st.skip = true
	default:
		if iosBenign[f[0]] {
			return
		}
		if iosBlocks[f[0]] {
			st.skip = true
			return
		}
		st.unknown(no, line)
	}
}

func (st *iosState) subLine(no int, line string) {
	switch {
	case st.skip:
	case st.iface != nil:
		st.ifaceLine(no, line)
	case st.acl != nil:
		f := strings.Fields(line)
		if f[0] == "remark" {
			return
		}
		st.aclEntry(st.acl, no, f, line)
	default:
		st.unknown(no, line)
	}
}

func (st *iosState) ifaceLine(no int, line string) {
	f := strings.Fields(line)
	switch f[0] {
	case "ip":
		if len(f) < 3 {
			st.unknown(no, line)
			return
		}
		switch f[1] {
		case "address":
			st.ifaceAddr(no, f, line)
		case "access-group":
			if len(f) < 4 {
				st.unknown(no, line)
				return
			}
			switch f[3] {
			case "in":
				st.iface.InACL = f[2]
			case "out":
				st.iface.OutACL = f[2]
			default:
				st.unknown(no, line)
			}
		default:
			st.unknown(no, line)
		}
	case "shutdown":
		st.iface.Shutdown = true
	case "no":
		if len(f) > 1 && f[1] == "shutdown" {
			st.iface.Shutdown = false
		}
	case "description", "duplex", "speed", "mtu", "bandwidth", "negotiation", "switchport", "encapsulation", "cdp":
	default:
		st.unknown(no, line)
	}
}

func (st *iosState) ifaceAddr(no int, f []string, line string) {
	if len(f) > 4 && f[4] == "secondary" {
		st.w.Pedanticf("%s:%d: secondary address ignored on %s", st.file, no, st.iface.Name)
		return
	}
	if strings.Contains(f[2], "/") {
		p, err := netip.ParsePrefix(f[2])
		if err != nil || !p.Addr().Is4() {
			st.unknown(no, line)
			return
		}
		st.iface.Addr = p
		return
	}
	if len(f) < 4 {
		st.unknown(no, line)
		return
	}
	p, ok := maskedPrefix(f[2], f[3])
	if !ok {
		st.unknown(no, line)
		return
	}
	st.iface.Addr = p
}

func (st *iosState) ipLine(no int, f []string, line string) {
	if len(f) < 2 {
		st.unknown(no, line)
		return
	}
	switch f[1] {
	case "access-list":
		if len(f) < 4 {
			st.unknown(no, line)
			return
		}
		switch f[2] {
		case "extended":
			st.acl = st.cfg.EnsureACL(f[3])
		case "standard":
			st.w.Unimplementedf("%s:%d: standard named filters are not modeled: %s", st.file, no, f[3])
			st.skip = true
		default:
			st.unknown(no, line)
		}
	case "route":
		st.routeLine(no, f, line)
	case "nat":
		st.natLine(no, f, line)
	case "domain", "domain-name", "name-server", "ssh", "http", "cef", "classless", "subnet-zero", "forward-protocol", "default-gateway":
	default:
		st.unknown(no, line)
	}
}

// routeLine handles both mask and CIDR spellings:
//
//	ip route 10.0.0.0 255.0.0.0 GigabitEthernet0/0
//	ip route 10.0.0.0/8 192.168.1.2 200
func (st *iosState) routeLine(no int, f []string, line string) {
	j := 2
	var prefix netip.Prefix
	switch {
	case j < len(f) && strings.Contains(f[j], "/"):
		p, err := netip.ParsePrefix(f[j])
		if err != nil || !p.Addr().Is4() {
			st.unknown(no, line)
			return
		}
		prefix = p.Masked()
		j++
	case j+1 < len(f):
		p, ok := maskedPrefix(f[j], f[j+1])
		if !ok {
			st.unknown(no, line)
			return
		}
		prefix = p.Masked()
		j += 2
	default:
		st.unknown(no, line)
		return
	}
	if j >= len(f) {
		st.unknown(no, line)
		return
	}
	next := f[j]
	j++
	metric := 0
	if j < len(f) {
		m, err := strconv.Atoi(f[j])
		if err != nil {
			st.unknown(no, line)
			return
		}
		metric = m
	}
	if nh, err := netip.ParseAddr(next); err == nil {
		st.routes = append(st.routes, nextHopRoute{prefix: prefix, nexthop: nh, metric: metric, line: no})
		return
	}
	st.cfg.Routes = append(st.cfg.Routes, model.Route{Prefix: prefix, Iface: next, Metric: metric})
}

func (st *iosState) natLine(no int, f []string, line string) {
	if len(f) < 4 {
		st.unknown(no, line)
		return
	}
	if f[2] == "pool" {
		// ip nat pool NAME LO HI [netmask M | prefix-length L]
		if len(f) < 6 {
			st.unknown(no, line)
			return
		}
		lo, errLo := netip.ParseAddr(f[4])
		hi, errHi := netip.ParseAddr(f[5])
		if errLo != nil || errHi != nil || !lo.Is4() || !hi.Is4() || hi.Less(lo) {
			st.unknown(no, line)
			return
		}
		st.pools[f[3]] = iosPool{lo: lo, hi: hi}
		return
	}
	field, err := model.ParseNATField(f[2])
	if err != nil {
		st.unknown(no, line)
		return
	}
	if f[3] != "source" {
		st.w.Unimplementedf("%s:%d: only source translation is modeled: %s", st.file, no, strings.TrimSpace(line))
		return
	}
	if len(f) < 5 {
		st.unknown(no, line)
		return
	}
	switch f[4] {
	case "static":
		st.staticNAT(no, field, f, line)
	case "list":
		// ip nat inside source list ACL pool NAME [overload]
		if len(f) < 8 || f[6] != "pool" {
			st.unknown(no, line)
			return
		}
		pool, ok := st.pools[f[7]]
		if !ok {
			st.w.RedFlagf("%s:%d: nat pool %q is not defined", st.file, no, f[7])
			st.unrec++
			return
		}
		st.cfg.NAT = append(st.cfg.NAT, model.PoolNAT{On: field, ACL: f[5], Lo: pool.lo, Hi: pool.hi})
	default:
		st.unknown(no, line)
	}
}

func (st *iosState) staticNAT(no int, field model.NATField, f []string, line string) {
	if f[5] == "network" {
		// ip nat inside source static network A B (MASK|/LEN)
		if len(f) < 9 {
			st.unknown(no, line)
			return
		}
		plen, ok := prefixLenArg(f[8])
		if !ok {
			st.unknown(no, line)
			return
		}
		match, errM := netip.ParseAddr(f[6])
		rewrite, errR := netip.ParseAddr(f[7])
		if errM != nil || errR != nil || !match.Is4() || !rewrite.Is4() {
			st.unknown(no, line)
			return
		}
		st.cfg.NAT = append(st.cfg.NAT, model.StaticNAT{
			On:      field,
			Match:   netip.PrefixFrom(match, plen).Masked(),
			Rewrite: netip.PrefixFrom(rewrite, plen).Masked(),
		})
		return
	}
	if len(f) < 7 {
		st.unknown(no, line)
		return
	}
	match, errM := netip.ParseAddr(f[5])
	rewrite, errR := netip.ParseAddr(f[6])
	if errM != nil || errR != nil || !match.Is4() || !rewrite.Is4() {
		st.unknown(no, line)
		return
	}
	st.cfg.NAT = append(st.cfg.NAT, model.StaticNAT{
		On:      field,
		Match:   netip.PrefixFrom(match, 32),
		Rewrite: netip.PrefixFrom(rewrite, 32),
	})
}

// numberedACL handles access-list N lines. Numbers below 100 are standard
// lists matching on source only; the rest parse as extended.
func (st *iosState) numberedACL(no int, f []string, line string) {
	if len(f) < 3 {
		st.unknown(no, line)
		return
	}
	n, err := strconv.Atoi(f[1])
	if err != nil {
		st.unknown(no, line)
		return
	}
	if f[2] == "remark" {
		return
	}
	a := st.cfg.EnsureACL(f[1])
	if n < 100 {
		st.standardEntry(a, no, f[2:], line)
		return
	}
	st.aclEntry(a, no, f[2:], line)
}

// standardEntry parses "permit 10.0.0.0 0.0.0.255" style source-only rules.
func (st *iosState) standardEntry(a *model.ACL, no int, f []string, line string) {
	if len(f) < 2 {
		st.unknown(no, line)
		return
	}
	act, err := model.ParseAction(f[0])
	if err != nil {
		st.unknown(no, line)
		return
	}
	src, _, ok := st.aclAddr(f, 1)
	if !ok {
		st.unknown(no, line)
		return
	}
	a.Lines = append(a.Lines, model.ACLLine{
		Action:   act,
		Protocol: model.AnyProtocol,
		Src:      src,
		Dst:      anyPrefix(),
		Text:     strings.TrimSpace(line),
		Line:     no,
	})
}

func (st *iosState) aclEntry(a *model.ACL, no int, f []string, line string) {
	if len(f) < 4 {
		st.unknown(no, line)
		return
	}
	act, err := model.ParseAction(f[0])
	if err != nil {
		st.unknown(no, line)
		return
	}
	proto, err := model.ParseProtocol(f[1])
	if err != nil {
		st.unknown(no, line)
		return
	}
	j := 2
	src, j, ok := st.aclAddr(f, j)
	if !ok {
		st.unknown(no, line)
		return
	}
	srcPorts, j, ok := st.aclPorts(f, j, proto)
	if !ok {
		st.unknown(no, line)
		return
	}
	dst, j, ok := st.aclAddr(f, j)
	if !ok {
		st.unknown(no, line)
		return
	}
	dstPorts, j, ok := st.aclPorts(f, j, proto)
	if !ok {
		st.unknown(no, line)
		return
	}
	for ; j < len(f); j++ {
		switch f[j] {
		case "established", "log", "log-input":
		default:
			st.w.Pedanticf("%s:%d: qualifier %q not modeled", st.file, no, f[j])
		}
	}
	a.Lines = append(a.Lines, model.ACLLine{
		Action:   act,
		Protocol: proto,
		Src:      src,
		Dst:      dst,
		SrcPorts: srcPorts,
		DstPorts: dstPorts,
		Text:     strings.TrimSpace(line),
		Line:     no,
	})
}

func (st *iosState) aclAddr(f []string, j int) (netip.Prefix, int, bool) {
	if j >= len(f) {
		return netip.Prefix{}, j, false
	}
	switch f[j] {
	case "any":
		return anyPrefix(), j + 1, true
	case "host":
		if j+1 >= len(f) {
			return netip.Prefix{}, j, false
		}
		a, err := netip.ParseAddr(f[j+1])
		if err != nil || !a.Is4() {
			return netip.Prefix{}, j, false
		}
		return netip.PrefixFrom(a, 32), j + 2, true
	}
	if strings.Contains(f[j], "/") {
		p, err := netip.ParsePrefix(f[j])
		if err != nil || !p.Addr().Is4() {
			return netip.Prefix{}, j, false
		}
		return p.Masked(), j + 1, true
	}
	if j+1 >= len(f) {
		return netip.Prefix{}, j, false
	}
	a, err := netip.ParseAddr(f[j])
	if err != nil || !a.Is4() {
		return netip.Prefix{}, j, false
	}
	w, err := netip.ParseAddr(f[j+1])
	if err != nil || !w.Is4() {
		return netip.Prefix{}, j, false
	}
	plen, ok := wildcardBits(w)
	if !ok {
		return netip.Prefix{}, j, false
	}
	return netip.PrefixFrom(a, plen).Masked(), j + 2, true
}

func (st *iosState) aclPorts(f []string, j int, proto model.Protocol) ([]model.PortRange, int, bool) {
	if proto != model.TCP && proto != model.UDP {
		return nil, j, true
	}
	if j >= len(f) {
		return nil, j, true
	}
	switch f[j] {
	case "eq":
		j++
		var out []model.PortRange
		for j < len(f) {
			p, ok := servicePort(f[j])
			if !ok {
				break
			}
			out = append(out, model.Port(p))
			j++
		}
		if len(out) == 0 {
			return nil, j, false
		}
		return out, j, true
	case "range":
		if j+2 >= len(f) {
			return nil, j, false
		}
		lo, okLo := servicePort(f[j+1])
		hi, okHi := servicePort(f[j+2])
		if !okLo || !okHi || lo > hi {
			return nil, j, false
		}
		return []model.PortRange{{Lo: lo, Hi: hi}}, j + 3, true
	case "gt":
		p, ok := portArg(f, j)
		if !ok || p == 65535 {
			return nil, j, false
		}
		return []model.PortRange{{Lo: p + 1, Hi: 65535}}, j + 2, true
	case "lt":
		p, ok := portArg(f, j)
		if !ok || p == 0 {
			return nil, j, false
		}
		return []model.PortRange{{Lo: 0, Hi: p - 1}}, j + 2, true
	case "neq":
		p, ok := portArg(f, j)
		if !ok {
			return nil, j, false
		}
		var out []model.PortRange
		if p > 0 {
			out = append(out, model.PortRange{Lo: 0, Hi: p - 1})
		}
		if p < 65535 {
			out = append(out, model.PortRange{Lo: p + 1, Hi: 65535})
		}
		return out, j + 2, true
	}
	return nil, j, true
}

func portArg(f []string, j int) (uint16, bool) {
	if j+1 >= len(f) {
		return 0, false
	}
	return servicePort(f[j+1])
}

func servicePort(tok string) (uint16, bool) {
	if p, ok := servicePorts[tok]; ok {
		return p, true
	}
	n, err := strconv.ParseUint(tok, 10, 16)
	if err != nil {
		return 0, false
	}
	return uint16(n), true
}

func anyPrefix() netip.Prefix {
	return netip.PrefixFrom(netip.IPv4Unspecified(), 0)
}

// maskedPrefix combines dotted address and netmask tokens, keeping the host
// bits of the address.
func maskedPrefix(addrTok, maskTok string) (netip.Prefix, bool) {
	a, errA := netip.ParseAddr(addrTok)
	m, errM := netip.ParseAddr(maskTok)
	if errA != nil || errM != nil || !a.Is4() || !m.Is4() {
		return netip.Prefix{}, false
	}
	plen, ok := maskBits(m)
	if !ok {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(a, plen), true
}

// prefixLenArg accepts "/24", "24", or a dotted netmask.
func prefixLenArg(tok string) (int, bool) {
	tok = strings.TrimPrefix(tok, "/")
	if n, err := strconv.Atoi(tok); err == nil {
		return n, n >= 0 && n <= 32
	}
	m, err := netip.ParseAddr(tok)
	if err != nil || !m.Is4() {
		return 0, false
	}
	return maskBits(m)
}

func maskBits(m netip.Addr) (int, bool) {
	v := binary.BigEndian.Uint32(m.AsSlice())
	n := bits.OnesCount32(v)
	return n, v == ^uint32(0)<<(32-n)
}

// wildcardBits converts an inverse mask like 0.0.0.255 to a prefix length.
func wildcardBits(w netip.Addr) (int, bool) {
	v := binary.BigEndian.Uint32(w.AsSlice())
	if v&(v+1) != 0 {
		return 0, false
	}
	return 32 - bits.Len32(v), true
}
