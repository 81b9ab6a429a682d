// Package transform is the escape hatch for entity-specific mapping
// behavior that declarative field maps cannot express.
//
// Transforms are compiled once when mapping definitions are loaded
// and are immutable afterwards, so any number of concurrent mapping
// calls may share them.
package transform

import (
	"context"
	"errors"
)

var (
	// InterpreterNotFound occurs when a Source names an
	// interpreter that isn't in the given map.
	InterpreterNotFound = errors.New("transform interpreter not found")

	// DefaultInterpreters will be used in Source.Compile if given
	// nil interpreters.
	DefaultInterpreters = make(map[string]Interpreter)
)

// Transform rewrites one extracted value on its way into (Forward)
// or out of (Reverse) a business object.
type Transform interface {
	Forward(ctx context.Context, value interface{}) (interface{}, error)
	Reverse(ctx context.Context, value interface{}) (interface{}, error)
}

// Interpreter can compile transform code.
type Interpreter interface {
	// Compile turns forward/reverse code into a Transform.  The
	// reverse code may be nil for one-way transforms.
	Compile(ctx context.Context, forward, reverse interface{}) (Transform, error)
}

// Source declares a transform in mapping configuration.
type Source struct {
	Interpreter string      `json:"interpreter,omitempty" yaml:",omitempty"`
	Forward     interface{} `json:"forward"`
	Reverse     interface{} `json:"reverse,omitempty" yaml:",omitempty"`
}

// Compile attempts to compile the Source using the given
// interpreters, which defaults to DefaultInterpreters.
func (s *Source) Compile(ctx context.Context, interpreters map[string]Interpreter) (Transform, error) {
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}
	interpreter, have := interpreters[s.Interpreter]
	if !have {
		return nil, InterpreterNotFound
	}
	return interpreter.Compile(ctx, s.Forward, s.Reverse)
}

// Func is a Transform backed by plain Go functions.  A nil function
// means identity.
type Func struct {
	F func(ctx context.Context, value interface{}) (interface{}, error)
	R func(ctx context.Context, value interface{}) (interface{}, error)
}

func (f *Func) Forward(ctx context.Context, value interface{}) (interface{}, error) {
	if f.F == nil {
		return value, nil
	}
	return f.F(ctx, value)
}

func (f *Func) Reverse(ctx context.Context, value interface{}) (interface{}, error) {
	if f.R == nil {
		return value, nil
	}
	return f.R(ctx, value)
}
