package noop

import (
	"context"
	"log"

	"github.com/JoschaMetze/edifact-mapper-sub000/transform"
)

func init() {
	transform.DefaultInterpreters["noop"] = NewInterpreter()
}

// Interpreter is a transform.Interpreter whose transforms return
// values without modification.
type Interpreter struct {
	// Silent, if false, will suppress warning log messages.
	Silent bool
}

func NewInterpreter() *Interpreter {
	return &Interpreter{Silent: true}
}

func (i *Interpreter) Compile(ctx context.Context, forward, reverse interface{}) (transform.Transform, error) {
	if !i.Silent {
		log.Printf("warning: using noop transform interpreter")
	}
	return &transform.Func{}, nil
}
