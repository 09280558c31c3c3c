package bitvec

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dalzilio/rudd"
)

// Pairing is the bijection between the value bits and the shadow bits of a
// set of rewritable fields. It is plain data: two pairings are compatible
// exactly when their level pairs are structurally equal. Pairings over the
// same field set are cached on the Space and reference-shared, so the
// renamers and quantification cubes underneath are built once.
type Pairing struct {
	sp       *Space
	fields   []*Field
	key      string
	pairs    [][2]int
	domain   rudd.Node
	codomain rudd.Node
	toPrimed rudd.Replacer
	toValue  rudd.Replacer
}

// Pairing returns the pairing covering the given rewritable fields. The
// field list is deduplicated and ordered by position; requesting a pairing
// over a read-only field or a foreign field is an error.
func (s *Space) Pairing(fields ...*Field) (*Pairing, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}
	seen := map[string]bool{}
	fs := make([]*Field, 0, len(fields))
	for _, f := range fields {
		if !s.owns(f) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, f.name)
		}
		if f.primed == nil {
			return nil, fmt.Errorf("%w: %s", ErrNotRewritable, f.name)
		}
		if !seen[f.name] {
			seen[f.name] = true
			fs = append(fs, f)
		}
	}
	sort.Slice(fs, func(i, j int) bool { return fs[i].levels[0] < fs[j].levels[0] })
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.name
	}
	key := strings.Join(names, "\x00")
	if p, ok := s.pairings[key]; ok {
		return p, nil
	}
	p := &Pairing{sp: s, fields: fs, key: key}
	var values, primes []int
	for _, f := range fs {
		for i := range f.levels {
			p.pairs = append(p.pairs, [2]int{f.levels[i], f.primed[i]})
			values = append(values, f.levels[i])
			primes = append(primes, f.primed[i])
		}
	}
	p.domain = s.bdd.Makeset(values)
	p.codomain = s.bdd.Makeset(primes)
	var err error
	if p.toPrimed, err = s.bdd.NewReplacer(values, primes); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	if p.toValue, err = s.bdd.NewReplacer(primes, values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	s.pairings[key] = p
	return p, nil
}

// Space returns the variable space the pairing belongs to.
func (p *Pairing) Space() *Space { return p.sp }

// Fields returns the covered fields in position order.
func (p *Pairing) Fields() []*Field {
	out := make([]*Field, len(p.fields))
	copy(out, p.fields)
	return out
}

// Pairs returns the (value level, shadow level) pairs in position order.
func (p *Pairing) Pairs() [][2]int {
	out := make([][2]int, len(p.pairs))
	copy(out, p.pairs)
	return out
}

// Equal reports structural equality: same space, same covered fields.
func (p *Pairing) Equal(o *Pairing) bool {
	if p == nil || o == nil {
		return p == o
	}
	return p.sp == o.sp && p.key == o.key
}

// Overlaps reports whether the two pairings share a field.
func (p *Pairing) Overlaps(o *Pairing) bool {
	if p.sp != o.sp {
		return false
	}
	names := map[string]bool{}
	for _, f := range p.fields {
		names[f.name] = true
	}
	for _, f := range o.fields {
		if names[f.name] {
			return true
		}
	}
	return false
}

// Union returns the pairing covering both field sets.
func (p *Pairing) Union(o *Pairing) (*Pairing, error) {
	if p.sp != o.sp {
		return nil, fmt.Errorf("%w: union across spaces", ErrUnknownField)
	}
	return p.sp.Pairing(append(p.Fields(), o.fields...)...)
}

// Domain is the cube of the covered value levels, for forward
// quantification.
func (p *Pairing) Domain() rudd.Node { return p.domain }

// Codomain is the cube of the covered shadow levels, for backward
// quantification.
func (p *Pairing) Codomain() rudd.Node { return p.codomain }

// ToPrimed renames the covered value variables of n to their shadows.
func (p *Pairing) ToPrimed(n rudd.Node) rudd.Node {
	return p.sp.bdd.Replace(n, p.toPrimed)
}

// ToValue renames the covered shadow variables of n back to their values.
func (p *Pairing) ToValue(n rudd.Node) rudd.Node {
	return p.sp.bdd.Replace(n, p.toValue)
}

func (p *Pairing) String() string {
	names := make([]string, len(p.fields))
	for i, f := range p.fields {
		names[i] = f.name
	}
	return "pairing(" + strings.Join(names, ",") + ")"
}
