package parse

import "fmt"

// Status is the outcome of parsing one file or job. It is distinct from the
// detected format: a file can be recognized as junos and still fail.
type Status int

const (
	UnknownStatus Status = iota
	// EmptyStatus marks a file with no content beyond whitespace.
	EmptyStatus
	// IgnoredStatus marks a file carrying an explicit ignore marker.
	IgnoredStatus
	// UnsupportedStatus marks a recognized format remora does not extract.
	UnsupportedStatus
	// PartialStatus marks a config that produced a device model but had
	// unrecognized lines along the way.
	PartialStatus
	PassedStatus
	FailedStatus
	// WillNotCommitStatus marks a config a real device would refuse, such
	// as a junos file with unbalanced braces.
	WillNotCommitStatus
)

func ParseStatus(v string) (Status, error) {
	s, ok := map[string]Status{
		"unknown":         UnknownStatus,
		"empty":           EmptyStatus,
		"ignored":         IgnoredStatus,
		"unsupported":     UnsupportedStatus,
		"partial":         PartialStatus,
		"passed":          PassedStatus,
		"failed":          FailedStatus,
		"will-not-commit": WillNotCommitStatus,
	}[v]
	if ok {
		return s, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrBadStatus, v)
}

func (s Status) String() string {
	d, err := s.MarshalText()
	if err != nil {
		return err.Error()
	}
	return string(d)
}

func (s Status) MarshalText() ([]byte, error) {
	switch s {
	case UnknownStatus:
		return []byte("unknown"), nil
	case EmptyStatus:
		return []byte("empty"), nil
	case IgnoredStatus:
		return []byte("ignored"), nil
	case UnsupportedStatus:
		return []byte("unsupported"), nil
	case PartialStatus:
		return []byte("partial"), nil
	case PassedStatus:
		return []byte("passed"), nil
	case FailedStatus:
		return []byte("failed"), nil
	case WillNotCommitStatus:
		return []byte("will-not-commit"), nil
	default:
		return nil, fmt.Errorf("<err: %d is not a parse status>", s)
	}
}

func (s *Status) UnmarshalText(d []byte) error {
	ps, err := ParseStatus(string(d))
	if err != nil {
		return err
	}
	*s = ps
	return nil
}

// Usable reports whether the job produced a device model worth analyzing.
func (s Status) Usable() bool {
	return s == PassedStatus || s == PartialStatus
}

// AllStatuses returns all statuses in summary-report order.
func AllStatuses() []Status {
	return []Status{
		PassedStatus,
		PartialStatus,
		FailedStatus,
		WillNotCommitStatus,
		UnsupportedStatus,
		IgnoredStatus,
		EmptyStatus,
		UnknownStatus,
	}
}
