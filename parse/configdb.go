package parse

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/remora-net/remora/model"
)

// cdbScalar absorbs config_db values that dumps quote inconsistently:
// PRIORITY arrives as "10" from a redis export and as 10 from hand-written
// JSON.
type cdbScalar string

func (s *cdbScalar) UnmarshalYAML(b []byte) error {
	var v any
	if err := yaml.Unmarshal(b, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case nil:
		*s = ""
	case string:
		*s = cdbScalar(x)
	default:
		*s = cdbScalar(fmt.Sprint(x))
	}
	return nil
}

type cdbMetadata struct {
	Hostname cdbScalar `yaml:"hostname"`
}

type cdbACLTable struct {
	Stage   cdbScalar   `yaml:"stage"`
	Type    cdbScalar   `yaml:"type"`
	Ports   []cdbScalar `yaml:"ports"`
	PortsAt cdbScalar   `yaml:"ports@"`
}

type cdbACLRule struct {
	Priority     cdbScalar `yaml:"PRIORITY"`
	PacketAction cdbScalar `yaml:"PACKET_ACTION"`
	IPProtocol   cdbScalar `yaml:"IP_PROTOCOL"`
	SrcIP        cdbScalar `yaml:"SRC_IP"`
	DstIP        cdbScalar `yaml:"DST_IP"`
	L4SrcPort    cdbScalar `yaml:"L4_SRC_PORT"`
	L4DstPort    cdbScalar `yaml:"L4_DST_PORT"`
	L4SrcRange   cdbScalar `yaml:"L4_SRC_PORT_RANGE"`
	L4DstRange   cdbScalar `yaml:"L4_DST_PORT_RANGE"`
}

type cdbStaticRoute struct {
	NextHop cdbScalar `yaml:"nexthop"`
	IfName  cdbScalar `yaml:"ifname"`
}

// configDB is the subset of SONiC config_db tables remora models. The dump
// is JSON, which decodes fine as YAML.
type configDB struct {
	Metadata     map[string]cdbMetadata    `yaml:"DEVICE_METADATA"`
	Interfaces   map[string]any            `yaml:"INTERFACE"`
	ACLTables    map[string]cdbACLTable    `yaml:"ACL_TABLE"`
	ACLRules     map[string]cdbACLRule     `yaml:"ACL_RULE"`
	StaticRoutes map[string]cdbStaticRoute `yaml:"STATIC_ROUTE"`
}

var cdbKnownTables = map[string]bool{
	"DEVICE_METADATA": true,
	"INTERFACE":       true,
	"ACL_TABLE":       true,
	"ACL_RULE":        true,
	"STATIC_ROUTE":    true,
}

type cdbState struct {
	file    string
	cfg     *model.Config
	w       *Warnings
	partial bool
}

func extractConfigDB(file, text string, w *Warnings) (*model.Config, bool, error) {
	d := []byte(text)
	var db configDB
	if err := yaml.Unmarshal(d, &db); err != nil {
		return nil, false, fmt.Errorf("%w: %s: %v", ErrParse, file, err)
	}
	var tables map[string]any
	if err := yaml.Unmarshal(d, &tables); err == nil {
		var extra []string
		for name := range tables {
			if !cdbKnownTables[name] {
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			w.Pedanticf("%s: table %s not modeled", file, name)
		}
	}

	st := &cdbState{file: file, cfg: model.NewConfig(""), w: w}
	st.hostname(db.Metadata)
	st.interfaces(db.Interfaces)
	st.aclTables(db.ACLTables)
	st.aclRules(db.ACLRules)
	st.staticRoutes(db.StaticRoutes)
	return st.cfg, st.partial, nil
}

func (st *cdbState) hostname(meta map[string]cdbMetadata) {
	if m, ok := meta["localhost"]; ok && m.Hostname != "" {
		st.cfg.Hostname = string(m.Hostname)
		return
	}
	for _, k := range sortedKeys(meta) {
		if m := meta[k]; m.Hostname != "" {
			st.cfg.Hostname = string(m.Hostname)
			return
		}
	}
}

// interfaces handles both key shapes of the INTERFACE table: a bare port
// name declares the interface, "port|cidr" attaches an address.
func (st *cdbState) interfaces(table map[string]any) {
	for _, key := range sortedKeys(table) {
		name, cidr, ok := strings.Cut(key, "|")
		ifc := st.cfg.EnsureInterface(name)
		if !ok {
			continue
		}
		p, err := netip.ParsePrefix(cidr)
		if err != nil || !p.Addr().Is4() {
			st.w.Pedanticf("%s: interface address %q not modeled", st.file, key)
			continue
		}
		ifc.Addr = p
	}
}

func (st *cdbState) aclTables(tables map[string]cdbACLTable) {
	for _, name := range sortedKeys(tables) {
		t := tables[name]
		if t.Type != "" && !strings.EqualFold(string(t.Type), "L3") {
			st.w.Pedanticf("%s: acl table %s type %s not modeled", st.file, name, t.Type)
			continue
		}
		stage := strings.ToLower(string(t.Stage))
		if stage != "" && stage != "ingress" && stage != "egress" {
			st.w.Pedanticf("%s: acl table %s stage %s not modeled", st.file, name, t.Stage)
			continue
		}
		ports := make([]string, 0, len(t.Ports))
		for _, p := range t.Ports {
			ports = append(ports, string(p))
		}
		if len(ports) == 0 && t.PortsAt != "" {
			ports = splitList(t.PortsAt)
		}
		for _, p := range ports {
			if p == "" {
				continue
			}
			ifc := st.cfg.EnsureInterface(p)
			if stage == "egress" {
				ifc.OutACL = name
			} else {
				ifc.InACL = name
			}
		}
		st.cfg.EnsureACL(name)
	}
}

// aclRules orders rules the way the switch evaluates them: higher PRIORITY
// first, rule name breaking ties.
func (st *cdbState) aclRules(rules map[string]cdbACLRule) {
	type parsed struct {
		table, name string
		prio        int
		line        model.ACLLine
	}
	var out []parsed
	for _, key := range sortedKeys(rules) {
		table, name, ok := strings.Cut(key, "|")
		if !ok {
			st.w.RedFlagf("%s: acl rule key %q has no table part", st.file, key)
			st.partial = true
			continue
		}
		ln, prio, ok := st.rule(key, rules[key])
		if !ok {
			continue
		}
		out = append(out, parsed{table: table, name: name, prio: prio, line: ln})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].table != out[j].table {
			return out[i].table < out[j].table
		}
		if out[i].prio != out[j].prio {
			return out[i].prio > out[j].prio
		}
		return out[i].name < out[j].name
	})
	for _, r := range out {
		a := st.cfg.EnsureACL(r.table)
		a.Lines = append(a.Lines, r.line)
	}
}

func (st *cdbState) rule(key string, r cdbACLRule) (model.ACLLine, int, bool) {
	fail := func(f string, args ...any) (model.ACLLine, int, bool) {
		st.w.RedFlagf("%s: rule %s: %s", st.file, key, fmt.Sprintf(f, args...))
		st.partial = true
		return model.ACLLine{}, 0, false
	}
	prio := 0
	if r.Priority != "" {
		n, err := strconv.Atoi(string(r.Priority))
		if err != nil {
			return fail("bad priority %q", r.Priority)
		}
		prio = n
	}
	var act model.Action
	switch strings.ToUpper(string(r.PacketAction)) {
	case "FORWARD", "ACCEPT":
		act = model.Permit
	case "DROP", "DENY":
		act = model.Deny
	default:
		return fail("packet action %q", r.PacketAction)
	}
	proto := model.AnyProtocol
	if r.IPProtocol != "" {
		p, err := model.ParseProtocol(string(r.IPProtocol))
		if err != nil {
			return fail("bad protocol %q", r.IPProtocol)
		}
		proto = p
	}
	src, ok := st.rulePrefix(key, r.SrcIP)
	if !ok {
		return model.ACLLine{}, 0, false
	}
	dst, ok := st.rulePrefix(key, r.DstIP)
	if !ok {
		return model.ACLLine{}, 0, false
	}
	srcPorts, ok := st.rulePorts(key, r.L4SrcPort, r.L4SrcRange)
	if !ok {
		return model.ACLLine{}, 0, false
	}
	dstPorts, ok := st.rulePorts(key, r.L4DstPort, r.L4DstRange)
	if !ok {
		return model.ACLLine{}, 0, false
	}
	return model.ACLLine{
		Action:   act,
		Protocol: proto,
		Src:      src,
		Dst:      dst,
		SrcPorts: srcPorts,
		DstPorts: dstPorts,
		Text:     key,
	}, prio, true
}

func (st *cdbState) rulePrefix(key string, v cdbScalar) (netip.Prefix, bool) {
	if v == "" {
		return anyPrefix(), true
	}
	p, err := netip.ParsePrefix(string(v))
	if err != nil {
		if a, aerr := netip.ParseAddr(string(v)); aerr == nil && a.Is4() {
			return netip.PrefixFrom(a, 32), true
		}
		st.w.RedFlagf("%s: rule %s: bad prefix %q", st.file, key, v)
		st.partial = true
		return netip.Prefix{}, false
	}
	if !p.Addr().Is4() {
		st.w.Pedanticf("%s: rule %s: %s not modeled", st.file, key, v)
		return netip.Prefix{}, false
	}
	return p.Masked(), true
}

func (st *cdbState) rulePorts(key string, single, rng cdbScalar) ([]model.PortRange, bool) {
	var out []model.PortRange
	if single != "" {
		n, err := strconv.ParseUint(string(single), 10, 16)
		if err != nil {
			st.w.RedFlagf("%s: rule %s: bad port %q", st.file, key, single)
			st.partial = true
			return nil, false
		}
		out = append(out, model.Port(uint16(n)))
	}
	if rng != "" {
		loTok, hiTok, ok := strings.Cut(string(rng), "-")
		if !ok {
			st.w.RedFlagf("%s: rule %s: bad port range %q", st.file, key, rng)
			st.partial = true
			return nil, false
		}
		lo, errLo := strconv.ParseUint(loTok, 10, 16)
		hi, errHi := strconv.ParseUint(hiTok, 10, 16)
		if errLo != nil || errHi != nil || lo > hi {
			st.w.RedFlagf("%s: rule %s: bad port range %q", st.file, key, rng)
			st.partial = true
			return nil, false
		}
		out = append(out, model.PortRange{Lo: uint16(lo), Hi: uint16(hi)})
	}
	return out, true
}

// staticRoutes handles both key shapes of STATIC_ROUTE: "prefix" and
// "vrf|prefix". Non-default vrfs are out of scope.
func (st *cdbState) staticRoutes(routes map[string]cdbStaticRoute) {
	for _, key := range sortedKeys(routes) {
		r := routes[key]
		pfxTok := key
		if vrf, rest, ok := strings.Cut(key, "|"); ok {
			if vrf != "default" {
				st.w.Pedanticf("%s: route %s: vrf %s not modeled", st.file, key, vrf)
				continue
			}
			pfxTok = rest
		}
		p, err := netip.ParsePrefix(pfxTok)
		if err != nil || !p.Addr().Is4() {
			st.w.Pedanticf("%s: route %s not modeled", st.file, key)
			continue
		}
		prefix := p.Masked()
		ifnames := splitList(r.IfName)
		nexthops := splitList(r.NextHop)
		switch {
		case len(ifnames) > 0:
			for _, ifn := range ifnames {
				st.cfg.Routes = append(st.cfg.Routes, model.Route{Prefix: prefix, Iface: ifn})
			}
		case len(nexthops) > 0:
			for _, tok := range nexthops {
				nh, err := netip.ParseAddr(tok)
				if err != nil || !nh.Is4() {
					st.w.Pedanticf("%s: route %s: next hop %q not modeled", st.file, key, tok)
					continue
				}
				ifc, ok := connectedIface(st.cfg, nh)
				if !ok {
					st.w.RedFlagf("%s: route %s: next hop %s is not on any connected subnet", st.file, key, nh)
					st.partial = true
					continue
				}
				st.cfg.Routes = append(st.cfg.Routes, model.Route{Prefix: prefix, Iface: ifc.Name})
			}
		default:
			st.w.Pedanticf("%s: route %s has no next hop", st.file, key)
		}
	}
}

func splitList(v cdbScalar) []string {
	var out []string
	for _, p := range strings.Split(string(v), ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
