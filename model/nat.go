package model

import (
	"fmt"
	"net/netip"
)

// NATField names the packet field a NAT rule rewrites.
type NATField int

const (
	SrcField NATField = iota
	DstField
)

func ParseNATField(v string) (NATField, error) {
	switch v {
	case "src", "source", "inside":
		return SrcField, nil
	case "dst", "destination", "outside":
		return DstField, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadNATField, v)
}

func (f NATField) String() string {
	switch f {
	case SrcField:
		return "src"
	case DstField:
		return "dst"
	default:
		return fmt.Sprintf("<err: %d is not a nat field>", int(f))
	}
}

// NATRule is one address-translation rule. The rule kinds form a closed set;
// translation dispatches over it.
type NATRule interface {
	Field() NATField
	natRule()
}

// StaticNAT swaps the network part of an address, keeping the host bits.
// Match and Rewrite must have the same prefix length; a /32 pair is a plain
// one-to-one translation.
type StaticNAT struct {
	On      NATField
	Match   netip.Prefix
	Rewrite netip.Prefix
}

func (n StaticNAT) Field() NATField { return n.On }
func (n StaticNAT) natRule()        {}

func (n StaticNAT) String() string {
	return fmt.Sprintf("nat static %s %s -> %s", n.On, n.Match, n.Rewrite)
}

// PoolNAT rewrites the field of packets permitted by an ACL into an address
// pool. The new address does not depend on the old one.
type PoolNAT struct {
	On  NATField
	ACL string
	Lo  netip.Addr
	Hi  netip.Addr
}

func (n PoolNAT) Field() NATField { return n.On }
func (n PoolNAT) natRule()        {}

func (n PoolNAT) String() string {
	return fmt.Sprintf("nat pool %s acl %s %s-%s", n.On, n.ACL, n.Lo, n.Hi)
}
