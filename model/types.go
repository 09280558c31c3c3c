package model

import (
	"fmt"
	"strconv"
)

// Action is what a filter line does with a matching packet.
type Action int

const (
	Permit Action = iota
	Deny
)

func ParseAction(v string) (Action, error) {
	switch v {
	case "permit", "accept", "forward":
		return Permit, nil
	case "deny", "discard", "drop", "reject":
		return Deny, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadAction, v)
}

func (a Action) String() string {
	d, err := a.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func (a Action) MarshalText() ([]byte, error) {
	switch a {
	case Permit:
		return []byte("permit"), nil
	case Deny:
		return []byte("deny"), nil
	default:
		return nil, fmt.Errorf("<err: %d is not an action>", a)
	}
}

func (a *Action) UnmarshalText(d []byte) error {
	pa, err := ParseAction(string(d))
	if err != nil {
		return err
	}
	*a = pa
	return nil
}

// Protocol is an IP protocol number. AnyProtocol sits above the 8-bit range
// and means the rule does not constrain the protocol.
type Protocol uint16

const (
	ICMP Protocol = 1
	TCP  Protocol = 6
	UDP  Protocol = 17

	AnyProtocol Protocol = 256
)

func ParseProtocol(v string) (Protocol, error) {
	switch v {
	case "icmp":
		return ICMP, nil
	case "tcp":
		return TCP, nil
	case "udp":
		return UDP, nil
	case "ip", "any":
		return AnyProtocol, nil
	}
	n, err := strconv.ParseUint(v, 10, 8)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadProtocol, v)
	}
	return Protocol(n), nil
}

func (p Protocol) String() string {
	d, err := p.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func (p Protocol) MarshalText() ([]byte, error) {
	switch p {
	case ICMP:
		return []byte("icmp"), nil
	case TCP:
		return []byte("tcp"), nil
	case UDP:
		return []byte("udp"), nil
	case AnyProtocol:
		return []byte("any"), nil
	}
	if p > 255 {
		return nil, fmt.Errorf("<err: %d is not a protocol>", uint16(p))
	}
	return []byte(strconv.Itoa(int(p))), nil
}

func (p *Protocol) UnmarshalText(d []byte) error {
	pp, err := ParseProtocol(string(d))
	if err != nil {
		return err
	}
	*p = pp
	return nil
}

// PortRange is an inclusive transport-port interval.
type PortRange struct {
	Lo uint16 `json:"lo"`
	Hi uint16 `json:"hi"`
}

func Ports(lo, hi uint16) (PortRange, error) {
	if lo > hi {
		return PortRange{}, fmt.Errorf("%w: %d-%d", ErrBadPortRange, lo, hi)
	}
	return PortRange{Lo: lo, Hi: hi}, nil
}

func Port(p uint16) PortRange { return PortRange{Lo: p, Hi: p} }

func AllPorts() PortRange { return PortRange{Lo: 0, Hi: 65535} }

func (r PortRange) Contains(p uint16) bool { return r.Lo <= p && p <= r.Hi }

func (r PortRange) String() string {
	if r.Lo == r.Hi {
		return strconv.Itoa(int(r.Lo))
	}
	return fmt.Sprintf("%d-%d", r.Lo, r.Hi)
}
