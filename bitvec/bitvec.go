// Package bitvec maps typed, fixed-width state fields onto the variables of
// a BDD engine and hands out the vectors and pairings the transition algebra
// is built from.
//
// A Layout declares fields before the engine exists; Build freezes the
// layout, allocates the engine with the final variable count, and returns a
// Space. Field widths and positions never change after Build. Rewritable
// fields carry a primed shadow run whose bits are interleaved with the value
// bits, so an equality relation between a field and its shadow stays linear
// in the field width.
//
// A Space and every node derived from it are confined to a single goroutine;
// the engine underneath is not safe for concurrent use. Errors in node
// construction follow the engine's sticky error model: misuse yields the
// all-false node and is reported by Err.
package bitvec

import (
	"fmt"

	"github.com/dalzilio/rudd"
)

// Field is a fixed-width run of engine variables encoding one state field.
// Fields are created through a Layout and are immutable once the Space is
// built.
type Field struct {
	name   string
	levels []int // value bit levels, most significant bit first
	primed []int // shadow bit levels, nil for read-only fields
}

func (f *Field) Name() string { return f.name }

func (f *Field) Width() int { return len(f.levels) }

// Rewritable reports whether the field has a primed shadow and can appear in
// a Pairing.
func (f *Field) Rewritable() bool { return f.primed != nil }

// Layout declares fields ahead of engine construction.
type Layout struct {
	fields []*Field
	byName map[string]*Field
	next   int
	frozen bool
	err    error
}

func NewLayout() *Layout {
	return &Layout{byName: map[string]*Field{}}
}

// Value declares a read-only field of the given width. The field occupies
// the next run of variable levels, most significant bit first.
func (l *Layout) Value(name string, width int) *Field {
	f := &Field{name: name}
	if !l.check(name, width) {
		return f
	}
	f.levels = make([]int, width)
	for i := range f.levels {
		f.levels[i] = l.next + i
	}
	l.next += width
	l.add(f)
	return f
}

// Primed declares a rewritable field of the given width. Value bit k sits at
// an even offset with its shadow bit immediately after it.
func (l *Layout) Primed(name string, width int) *Field {
	f := &Field{name: name}
	if !l.check(name, width) {
		return f
	}
	f.levels = make([]int, width)
	f.primed = make([]int, width)
	for i := 0; i < width; i++ {
		f.levels[i] = l.next + 2*i
		f.primed[i] = l.next + 2*i + 1
	}
	l.next += 2 * width
	l.add(f)
	return f
}

func (l *Layout) check(name string, width int) bool {
	if l.err != nil {
		return false
	}
	if l.frozen {
		l.err = ErrFrozen
		return false
	}
	if width <= 0 {
		l.err = fmt.Errorf("%w: %s has width %d", ErrBadWidth, name, width)
		return false
	}
	if _, ok := l.byName[name]; ok {
		l.err = fmt.Errorf("%w: %s", ErrFieldExists, name)
		return false
	}
	return true
}

func (l *Layout) add(f *Field) {
	l.fields = append(l.fields, f)
	l.byName[f.name] = f
}

// Build freezes the layout and allocates the engine. After Build the layout
// accepts no further declarations.
func (l *Layout) Build(opts ...Option) (*Space, error) {
	if l.err != nil {
		return nil, l.err
	}
	if len(l.fields) == 0 {
		return nil, ErrNoFields
	}
	l.frozen = true
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	bdd, err := rudd.New(l.next, rudd.Nodesize(cfg.nodesize), rudd.Cachesize(cfg.cachesize))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEngine, err)
	}
	sp := &Space{
		bdd:      bdd,
		fields:   l.fields,
		byName:   l.byName,
		varnum:   l.next,
		pairings: map[string]*Pairing{},
	}
	return sp, nil
}

// Option adjusts engine sizing at Build time.
type Option func(*config)

type config struct {
	nodesize  int
	cachesize int
}

func defaultConfig() config {
	return config{nodesize: 1 << 17, cachesize: 1 << 15}
}

// Nodesize sets the initial node table size of the engine.
func Nodesize(n int) Option {
	return func(c *config) { c.nodesize = n }
}

// Cachesize sets the operation cache size of the engine.
func Cachesize(n int) Option {
	return func(c *config) { c.cachesize = n }
}

// Space owns the engine and the frozen field table. It is the shared
// variable-space registry for one analysis: everything that builds or
// combines nodes goes through it.
type Space struct {
	bdd      *rudd.BDD
	fields   []*Field
	byName   map[string]*Field
	varnum   int
	pairings map[string]*Pairing
	err      error
}

// BDD exposes the engine for node construction and combination.
func (s *Space) BDD() *rudd.BDD { return s.bdd }

func (s *Space) VarNum() int { return s.varnum }

func (s *Space) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Fields returns the declared fields in declaration order.
func (s *Space) Fields() []*Field {
	out := make([]*Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// True and False are the constant nodes.
func (s *Space) True() rudd.Node  { return s.bdd.True() }
func (s *Space) False() rudd.Node { return s.bdd.False() }

// Err reports the first misuse recorded on the space or the engine's sticky
// error state. A non-nil result means every node produced since is suspect
// and the analysis must be abandoned.
func (s *Space) Err() error {
	if s.err != nil {
		return s.err
	}
	if msg := s.bdd.Error(); msg != "" {
		return fmt.Errorf("%w: %s", ErrEngine, msg)
	}
	return nil
}

func (s *Space) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func (s *Space) owns(f *Field) bool {
	got, ok := s.byName[f.name]
	return ok && got == f
}
