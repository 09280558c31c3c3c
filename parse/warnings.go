package parse

import "fmt"

// Warnings collects non-fatal extraction findings, split the way operators
// triage them: red flags need a look, unimplemented marks known feature gaps,
// pedantic is detail nobody reads until something else breaks.
type Warnings struct {
	RedFlags      []string `json:"redFlags,omitempty"`
	Unimplemented []string `json:"unimplemented,omitempty"`
	Pedantic      []string `json:"pedantic,omitempty"`
}

func (w *Warnings) RedFlagf(format string, args ...any) {
	w.RedFlags = append(w.RedFlags, fmt.Sprintf(format, args...))
}

func (w *Warnings) Unimplementedf(format string, args ...any) {
	w.Unimplemented = append(w.Unimplemented, fmt.Sprintf(format, args...))
}

func (w *Warnings) Pedanticf(format string, args ...any) {
	w.Pedantic = append(w.Pedantic, fmt.Sprintf(format, args...))
}

func (w *Warnings) Empty() bool {
	return len(w.RedFlags) == 0 && len(w.Unimplemented) == 0 && len(w.Pedantic) == 0
}

// Len counts all findings across severities.
func (w *Warnings) Len() int {
	return len(w.RedFlags) + len(w.Unimplemented) + len(w.Pedantic)
}
