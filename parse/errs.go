package parse

import (
	"errors"
	"fmt"
)

var (
	ErrParse         = errors.New("parse error")
	ErrUnsupported   = fmt.Errorf("%w: unsupported format", ErrParse)
	ErrWillNotCommit = fmt.Errorf("%w: configuration will not commit", ErrParse)
	ErrBadStatus     = errors.New("bad parse status")
)
