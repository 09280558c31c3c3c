package reach

import "fmt"

// Point is the pipeline stage a packet set is observed at. PreIn and
// PostOut face the wire, PostIn and PreOut sit around forwarding, Dropped
// and Accepted are terminal.
type Point int

const (
	PreIn Point = iota
	PostIn
	PreOut
	PostOut
	Dropped
	Accepted
)

func ParsePoint(v string) (Point, error) {
	p, ok := map[string]Point{
		"pre-in":   PreIn,
		"post-in":  PostIn,
		"pre-out":  PreOut,
		"post-out": PostOut,
		"dropped":  Dropped,
		"accepted": Accepted,
	}[v]
	if ok {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadPoint, v)
}

func (p Point) String() string {
	d, err := p.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func (p Point) MarshalText() ([]byte, error) {
	switch p {
	case PreIn:
		return []byte("pre-in"), nil
	case PostIn:
		return []byte("post-in"), nil
	case PreOut:
		return []byte("pre-out"), nil
	case PostOut:
		return []byte("post-out"), nil
	case Dropped:
		return []byte("dropped"), nil
	case Accepted:
		return []byte("accepted"), nil
	default:
		return nil, fmt.Errorf("<err: %d is not a point>", p)
	}
}

func (p *Point) UnmarshalText(d []byte) error {
	pp, err := ParsePoint(string(d))
	if err != nil {
		return err
	}
	*p = pp
	return nil
}

// Terminal reports whether packets stop at this point.
func (p Point) Terminal() bool {
	return p == Dropped || p == Accepted
}

// AllPoints returns the points in pipeline order.
func AllPoints() []Point {
	return []Point{PreIn, PostIn, PreOut, PostOut, Dropped, Accepted}
}
