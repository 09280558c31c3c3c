// Package format enumerates the configuration syntax families remora can
// recognize. Detection lives in package parse; this package only names the
// outcomes.
package format

import (
	"errors"
	"fmt"
)

type Format int

const (
	UnknownFormat Format = iota
	EmptyFormat
	IgnoredFormat
	IOSFormat
	JunosFormat
	FlatJunosFormat
	ConfigDBFormat
	F5Format
	VyOSFormat
)

var ErrBadFormat = errors.New("bad format")

func ParseFormat(v string) (Format, error) {
	f, ok := map[string]Format{
		"unknown":    UnknownFormat,
		"empty":      EmptyFormat,
		"ignored":    IgnoredFormat,
		"ios":        IOSFormat,
		"junos":      JunosFormat,
		"junos-flat": FlatJunosFormat,
		"flat-junos": FlatJunosFormat,
		"configdb":   ConfigDBFormat,
		"f5":         F5Format,
		"vyos":       VyOSFormat,
	}[v]
	if ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadFormat, v)
}

func (f Format) String() string {
	d, err := f.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func (f Format) MarshalText() ([]byte, error) {
	switch f {
	case UnknownFormat:
		return []byte("unknown"), nil
	case EmptyFormat:
		return []byte("empty"), nil
	case IgnoredFormat:
		return []byte("ignored"), nil
	case IOSFormat:
		return []byte("ios"), nil
	case JunosFormat:
		return []byte("junos"), nil
	case FlatJunosFormat:
		return []byte("junos-flat"), nil
	case ConfigDBFormat:
		return []byte("configdb"), nil
	case F5Format:
		return []byte("f5"), nil
	case VyOSFormat:
		return []byte("vyos"), nil
	default:
		return nil, fmt.Errorf("<err: %d is not a format>", f)
	}
}

func (f *Format) UnmarshalText(d []byte) error {
	pf, err := ParseFormat(string(d))
	if err != nil {
		return err
	}
	*f = pf
	return nil
}

// Supported reports whether remora extracts a device model from this format.
// Recognized-but-unsupported formats still get detected so their files can
// be reported instead of silently skipped.
func (f Format) Supported() bool {
	switch f {
	case IOSFormat, JunosFormat, FlatJunosFormat, ConfigDBFormat:
		return true
	default:
		return false
	}
}

// AllFormats returns all formats in detection-report order.
func AllFormats() []Format {
	return []Format{
		UnknownFormat,
		EmptyFormat,
		IgnoredFormat,
		IOSFormat,
		JunosFormat,
		FlatJunosFormat,
		ConfigDBFormat,
		F5Format,
		VyOSFormat,
	}
}
