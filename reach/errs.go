package reach

import (
	"errors"
	"fmt"
)

var (
	// ErrReach is the base of all reachability errors.
	ErrReach = errors.New("reach error")

	// ErrBadPoint marks an unknown pipeline point name.
	ErrBadPoint = fmt.Errorf("%w: bad point", ErrReach)

	// ErrGraph marks configurations the graph cannot be built from.
	ErrGraph = fmt.Errorf("%w: bad graph", ErrReach)

	// ErrBadLocation marks a query endpoint the graph does not contain.
	ErrBadLocation = fmt.Errorf("%w: no such location", ErrReach)
)
