package goja

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JoschaMetze/edifact-mapper-sub000/transform"

	"github.com/dop251/goja"
)

var (
	// InterruptedMessage is the string value of Interrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// Interrupted is returned by a transform if its execution is
	// interrupted.
	Interrupted = errors.New(InterruptedMessage)

	// DefaultTimeout limits one script execution.
	DefaultTimeout = time.Second
)

// init adds an Interpreter as one of the DefaultInterpreters.
func init() {
	transform.DefaultInterpreters["goja"] = NewInterpreter()
}

// Interpreter implements transform.Interpreter using Goja, a Go
// implementation of ECMAScript 5.1+.
//
// A script sees the value being mapped as `value` and returns its
// replacement.
type Interpreter struct {
	// Timeout limits one execution; DefaultTimeout if zero.
	Timeout time.Duration
}

// NewInterpreter makes a new Interpreter.
func NewInterpreter() *Interpreter {
	return &Interpreter{}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

func asSource(src interface{}) (string, error) {
	s, is := src.(string)
	if !is {
		return "", fmt.Errorf("bad Goja source (%T)", src)
	}
	if !strings.Contains(s, "return") {
		s = "return " + s + ";"
	}
	return s, nil
}

// Compile compiles both directions up front so that a bad script
// fails at load time, not mid-message.
func (i *Interpreter) Compile(ctx context.Context, forward, reverse interface{}) (transform.Transform, error) {
	fp, err := compileOne(forward)
	if err != nil {
		return nil, err
	}

	var rp *goja.Program
	if reverse != nil {
		if rp, err = compileOne(reverse); err != nil {
			return nil, err
		}
	}

	return &gojaTransform{i: i, forward: fp, reverse: rp}, nil
}

func compileOne(src interface{}) (*goja.Program, error) {
	code, err := asSource(src)
	if err != nil {
		return nil, err
	}
	code = wrapSrc(code)
	p, err := goja.Compile("", code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}
	return p, nil
}

type gojaTransform struct {
	i       *Interpreter
	forward *goja.Program
	reverse *goja.Program
}

func (t *gojaTransform) Forward(ctx context.Context, value interface{}) (interface{}, error) {
	return t.i.run(ctx, t.forward, value)
}

func (t *gojaTransform) Reverse(ctx context.Context, value interface{}) (interface{}, error) {
	if t.reverse == nil {
		return value, nil
	}
	return t.i.run(ctx, t.reverse, value)
}

func (i *Interpreter) run(ctx context.Context, p *goja.Program, value interface{}) (interface{}, error) {
	o := goja.New()
	o.Set("value", value)

	timeout := i.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	interrupted := false
	timer := time.AfterFunc(timeout, func() {
		interrupted = true
		o.Interrupt(InterruptedMessage)
	})
	defer timer.Stop()

	v, err := o.RunProgram(p)
	if err != nil {
		if interrupted {
			return nil, Interrupted
		}
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.Export(), nil
}
