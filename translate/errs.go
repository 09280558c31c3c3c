package translate

import (
	"errors"
	"fmt"
)

var (
	// ErrTranslate is the base of all translation errors.
	ErrTranslate = errors.New("translate error")

	// ErrUnknownACL marks a reference to a filter the device never defines.
	ErrUnknownACL = fmt.Errorf("%w: unknown acl", ErrTranslate)

	// ErrBadNAT marks a translation rule the engine cannot express.
	ErrBadNAT = fmt.Errorf("%w: bad nat rule", ErrTranslate)
)
