package snapshot

import (
	"errors"
	"fmt"
)

var (
	// ErrSnapshot is the base of all snapshot loading errors.
	ErrSnapshot = errors.New("snapshot error")

	// ErrPatch marks a broken or misdirected patch overlay.
	ErrPatch = fmt.Errorf("%w: patch", ErrSnapshot)
)
