package bitvec

import "errors"

var (
	ErrBadWidth      = errors.New("field width must be positive")
	ErrFieldExists   = errors.New("field already declared")
	ErrFrozen        = errors.New("layout is frozen")
	ErrNoFields      = errors.New("layout has no fields")
	ErrUnknownField  = errors.New("field not in this space")
	ErrNotRewritable = errors.New("field has no primed shadow")
	ErrWidthMismatch = errors.New("vector widths differ")
	ErrEngine        = errors.New("bdd engine error")
)
