package assemble

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DiagnosticKind classifies structural problems found during
// assembly.
type DiagnosticKind int

const (
	// UnexpectedSegment: a segment remained unconsumed after the
	// schema was exhausted.
	UnexpectedSegment DiagnosticKind = iota

	// MissingRequiredSegment: a mandatory node found no match.
	MissingRequiredSegment

	// MaxRepetitionsExceeded: a node matched more occurrences
	// than its cardinality cap.
	MaxRepetitionsExceeded

	// UnrecognizedQualifier: a segment's tag is known to the
	// grammar, but its qualifier value is not in any recognized
	// set.
	UnrecognizedQualifier
)

func (k DiagnosticKind) String() string {
	switch k {
	case UnexpectedSegment:
		return "UnexpectedSegment"
	case MissingRequiredSegment:
		return "MissingRequiredSegment"
	case MaxRepetitionsExceeded:
		return "MaxRepetitionsExceeded"
	case UnrecognizedQualifier:
		return "UnrecognizedQualifier"
	default:
		return fmt.Sprintf("DiagnosticKind(%d)", int(k))
	}
}

// MarshalJSON renders the kind by name rather than by number.
func (k DiagnosticKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Diagnostic is one structural finding.  Diagnostics are reported,
// never thrown, unless strict mode turns them into a StructuralError.
type Diagnostic struct {
	Kind DiagnosticKind `json:"kind"`

	// Tag is the wire tag of the segment (or expected segment)
	// involved.
	Tag string `json:"tag"`

	// Pos is the index in the input segment slice: for missing
	// segments, the position where the match was expected.
	Pos int `json:"pos"`

	Message string `json:"message,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s %s at %d: %s", d.Kind, d.Tag, d.Pos, d.Message)
}

// Diagnostics is an ordered list of findings.
type Diagnostics []Diagnostic

func (ds *Diagnostics) add(kind DiagnosticKind, tag string, pos int, format string, args ...interface{}) {
	*ds = append(*ds, Diagnostic{
		Kind:    kind,
		Tag:     tag,
		Pos:     pos,
		Message: fmt.Sprintf(format, args...),
	})
}

// StructuralError aggregates a message's diagnostics into a single
// error for strict-mode callers.
type StructuralError struct {
	Diagnostics Diagnostics
}

func (e *StructuralError) Error() string {
	acc := make([]string, len(e.Diagnostics))
	for i, d := range e.Diagnostics {
		acc[i] = d.String()
	}
	return fmt.Sprintf("%d structural problem(s): %s", len(e.Diagnostics), strings.Join(acc, "; "))
}
