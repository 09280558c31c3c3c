// Package model is the vendor-neutral form of a device configuration:
// interfaces, filters, address translation, and static routes, with netip
// types throughout. Extractors in package parse produce it; package
// translate turns it into transitions.
package model

import (
	"fmt"
	"net/netip"

	"github.com/remora-net/remora/format"
)

// ACLLine is one filter rule. Empty port lists and the zero-length prefixes
// mean "any"; Text and Line echo the configuration source for diagnostics.
type ACLLine struct {
	Action   Action
	Protocol Protocol
	Src      netip.Prefix
	Dst      netip.Prefix
	SrcPorts []PortRange
	DstPorts []PortRange
	Text     string
	Line     int
}

// ACL is an ordered filter: the first matching line decides, and a packet
// matching no line is denied.
type ACL struct {
	Name  string
	Lines []ACLLine
}

type Interface struct {
	Name     string
	Addr     netip.Prefix
	InACL    string
	OutACL   string
	Shutdown bool
}

// Route sends a destination prefix out an interface. Lower metric wins among
// routes for the same prefix; longest prefix wins across prefixes.
type Route struct {
	Prefix netip.Prefix
	Iface  string
	Metric int
}

// Config is everything remora keeps about one device.
type Config struct {
	Hostname   string
	Filename   string
	Format     format.Format
	Interfaces []*Interface
	ACLs       map[string]*ACL
	NAT        []NATRule
	Routes     []Route
}

func NewConfig(hostname string) *Config {
	return &Config{
		Hostname: hostname,
		ACLs:     map[string]*ACL{},
	}
}

func (c *Config) Interface(name string) (*Interface, bool) {
	for _, ifc := range c.Interfaces {
		if ifc.Name == name {
			return ifc, true
		}
	}
	return nil, false
}

// EnsureInterface returns the named interface, adding it first if needed.
func (c *Config) EnsureInterface(name string) *Interface {
	if ifc, ok := c.Interface(name); ok {
		return ifc
	}
	ifc := &Interface{Name: name}
	c.Interfaces = append(c.Interfaces, ifc)
	return ifc
}

func (c *Config) ACL(name string) (*ACL, bool) {
	a, ok := c.ACLs[name]
	return a, ok
}

// EnsureACL returns the named ACL, adding an empty one first if needed.
func (c *Config) EnsureACL(name string) *ACL {
	if a, ok := c.ACLs[name]; ok {
		return a
	}
	a := &ACL{Name: name}
	c.ACLs[name] = a
	return a
}

// Flow is one concrete packet, used as the witness in query answers.
type Flow struct {
	SrcIP   netip.Addr `json:"srcIp"`
	DstIP   netip.Addr `json:"dstIp"`
	SrcPort uint16     `json:"srcPort"`
	DstPort uint16     `json:"dstPort"`
	Proto   Protocol   `json:"proto"`
}

func (f Flow) String() string {
	return fmt.Sprintf("%s %s:%d -> %s:%d", f.Proto, f.SrcIP, f.SrcPort, f.DstIP, f.DstPort)
}
