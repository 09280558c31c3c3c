// Package pred compiles textual packet predicates into packet-set nodes.
// The grammar is the expr language restricted to the packet fields: src.ip,
// dst.ip, src.port, dst.port and proto, combined with &&, || and !.
// Addresses and prefixes are string literals ("10.0.0.3", "10.0.0.0/8"),
// ports are integers, ranges and lists ("dst.port in 80..443",
// "dst.port in [80, 443]"), protocols are names or numbers.
//
// An empty predicate denotes every packet.
package pred

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/dalzilio/rudd"
	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"

	"github.com/remora-net/remora/bitvec"
	"github.com/remora-net/remora/model"
	"github.com/remora-net/remora/packet"
)

var ErrPredicate = errors.New("bad predicate")

// Compile turns src into the set of packets it describes.
func Compile(pkt *packet.Packet, src string) (rudd.Node, error) {
	if strings.TrimSpace(src) == "" {
		return pkt.True(), nil
	}
	tree, err := parser.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredicate, err)
	}
	c := &compiler{pkt: pkt}
	return c.node(tree.Node)
}

type compiler struct {
	pkt *packet.Packet
}

func (c *compiler) node(n ast.Node) (rudd.Node, error) {
	b := c.pkt.Space().BDD()
	switch v := n.(type) {
	case *ast.BoolNode:
		return b.From(v.Value), nil
	case *ast.UnaryNode:
		if v.Operator != "!" && v.Operator != "not" {
			return nil, fmt.Errorf("%w: unsupported operator %q", ErrPredicate, v.Operator)
		}
		inner, err := c.node(v.Node)
		if err != nil {
			return nil, err
		}
		return b.Not(inner), nil
	case *ast.BinaryNode:
		return c.binary(v)
	default:
		return nil, fmt.Errorf("%w: unsupported expression %T", ErrPredicate, n)
	}
}

func (c *compiler) binary(v *ast.BinaryNode) (rudd.Node, error) {
	b := c.pkt.Space().BDD()
	switch v.Operator {
	case "&&", "and", "||", "or":
		left, err := c.node(v.Left)
		if err != nil {
			return nil, err
		}
		right, err := c.node(v.Right)
		if err != nil {
			return nil, err
		}
		op := rudd.OPand
		if v.Operator == "||" || v.Operator == "or" {
			op = rudd.OPor
		}
		return b.Apply(left, right, op), nil
	case "==", "!=", "in", "<", "<=", ">", ">=":
		f, ok := c.fieldRef(v.Left)
		if !ok {
			return nil, fmt.Errorf("%w: left of %q must be a packet field", ErrPredicate, v.Operator)
		}
		n, err := c.compare(f, v.Operator, v.Right)
		if err != nil {
			return nil, err
		}
		if v.Operator == "!=" {
			n = b.Not(n)
		}
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unsupported operator %q", ErrPredicate, v.Operator)
	}
}

// fieldRef resolves src.ip, dst.ip, src.port, dst.port and proto.
func (c *compiler) fieldRef(n ast.Node) (*bitvec.Field, bool) {
	switch v := n.(type) {
	case *ast.IdentifierNode:
		if v.Value == "proto" {
			return c.pkt.Proto, true
		}
	case *ast.MemberNode:
		id, ok := v.Node.(*ast.IdentifierNode)
		if !ok {
			return nil, false
		}
		prop, ok := v.Property.(*ast.StringNode)
		if !ok {
			return nil, false
		}
		switch id.Value + "." + prop.Value {
		case "src.ip":
			return c.pkt.SrcIP, true
		case "dst.ip":
			return c.pkt.DstIP, true
		case "src.port":
			return c.pkt.SrcPort, true
		case "dst.port":
			return c.pkt.DstPort, true
		}
	}
	return nil, false
}

func (c *compiler) compare(f *bitvec.Field, op string, rhs ast.Node) (rudd.Node, error) {
	switch f {
	case c.pkt.SrcIP, c.pkt.DstIP:
		return c.compareAddr(f, op, rhs)
	case c.pkt.SrcPort, c.pkt.DstPort:
		return c.comparePort(f, op, rhs)
	default:
		return c.compareProto(op, rhs)
	}
}

func (c *compiler) compareAddr(f *bitvec.Field, op string, rhs ast.Node) (rudd.Node, error) {
	if op != "==" && op != "!=" && op != "in" {
		return nil, fmt.Errorf("%w: operator %q not supported for addresses", ErrPredicate, op)
	}
	s, ok := rhs.(*ast.StringNode)
	if !ok {
		return nil, fmt.Errorf("%w: addresses are written as string literals", ErrPredicate)
	}
	if strings.Contains(s.Value, "/") {
		pfx, err := netip.ParsePrefix(s.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPredicate, err)
		}
		return c.pkt.MatchPrefix(f, pfx), nil
	}
	addr, err := netip.ParseAddr(s.Value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPredicate, err)
	}
	return c.pkt.MatchPrefix(f, netip.PrefixFrom(addr, addr.BitLen())), nil
}

func (c *compiler) comparePort(f *bitvec.Field, op string, rhs ast.Node) (rudd.Node, error) {
	b := c.pkt.Space().BDD()
	switch op {
	case "in":
		switch r := rhs.(type) {
		case *ast.BinaryNode:
			if r.Operator != ".." {
				return nil, fmt.Errorf("%w: %q needs a range or list", ErrPredicate, op)
			}
			lo, err := c.port(r.Left)
			if err != nil {
				return nil, err
			}
			hi, err := c.port(r.Right)
			if err != nil {
				return nil, err
			}
			return c.pkt.MatchPort(f, model.PortRange{Lo: lo, Hi: hi}), nil
		case *ast.ArrayNode:
			acc := c.pkt.False()
			for _, el := range r.Nodes {
				p, err := c.port(el)
				if err != nil {
					return nil, err
				}
				acc = b.Apply(acc, c.pkt.MatchPort(f, model.Port(p)), rudd.OPor)
			}
			return acc, nil
		default:
			return nil, fmt.Errorf("%w: %q needs a range or list", ErrPredicate, op)
		}
	case "==", "!=":
		p, err := c.port(rhs)
		if err != nil {
			return nil, err
		}
		return c.pkt.MatchPort(f, model.Port(p)), nil
	case "<", "<=", ">", ">=":
		p, err := c.port(rhs)
		if err != nil {
			return nil, err
		}
		switch op {
		case "<":
			if p == 0 {
				return c.pkt.False(), nil
			}
			return c.pkt.MatchPort(f, model.PortRange{Lo: 0, Hi: p - 1}), nil
		case "<=":
			return c.pkt.MatchPort(f, model.PortRange{Lo: 0, Hi: p}), nil
		case ">":
			if p == 65535 {
				return c.pkt.False(), nil
			}
			return c.pkt.MatchPort(f, model.PortRange{Lo: p + 1, Hi: 65535}), nil
		default:
			return c.pkt.MatchPort(f, model.PortRange{Lo: p, Hi: 65535}), nil
		}
	}
	return nil, fmt.Errorf("%w: operator %q not supported for ports", ErrPredicate, op)
}

func (c *compiler) compareProto(op string, rhs ast.Node) (rudd.Node, error) {
	if op != "==" && op != "!=" {
		return nil, fmt.Errorf("%w: operator %q not supported for proto", ErrPredicate, op)
	}
	switch r := rhs.(type) {
	case *ast.StringNode:
		p, err := model.ParseProtocol(r.Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPredicate, err)
		}
		return c.pkt.MatchProto(p), nil
	case *ast.IntegerNode:
		if r.Value < 0 || r.Value > 255 {
			return nil, fmt.Errorf("%w: protocol %d out of range", ErrPredicate, r.Value)
		}
		return c.pkt.MatchProto(model.Protocol(r.Value)), nil
	default:
		return nil, fmt.Errorf("%w: proto compares against a name or number", ErrPredicate)
	}
}

func (c *compiler) port(n ast.Node) (uint16, error) {
	i, ok := n.(*ast.IntegerNode)
	if !ok {
		return 0, fmt.Errorf("%w: ports are written as integers", ErrPredicate)
	}
	if i.Value < 0 || i.Value > 65535 {
		return 0, fmt.Errorf("%w: port %d out of range", ErrPredicate, i.Value)
	}
	return uint16(i.Value), nil
}
