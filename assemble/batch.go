package assemble

import (
	"sync"

	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

// Result is one message's outcome in a batch.
type Result struct {
	// Index is the message's position in the batch input.
	Index int

	Tree        *Tree
	Diagnostics Diagnostics

	// Err is non-nil only for strict assemblers.  One failing
	// message never aborts its siblings.
	Err error
}

// AssembleBatch assembles independent messages concurrently over the
// shared read-only grammar.  Each message gets its own cursor and
// output tree, so the only coordination is the fan-out itself.
// Results come back in input order.
//
// workers below 1 means one worker per message.
func (a *Assembler) AssembleBatch(msgs [][]*edi.Segment, m *schema.Message, workers int) []*Result {
	results := make([]*Result, len(msgs))
	if len(msgs) == 0 {
		return results
	}
	if workers < 1 || len(msgs) < workers {
		workers = len(msgs)
	}

	todo := make(chan int, len(msgs))
	for i := range msgs {
		todo <- i
	}
	close(todo)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range todo {
				t, ds, err := a.Assemble(msgs[i], m)
				results[i] = &Result{
					Index:       i,
					Tree:        t,
					Diagnostics: ds,
					Err:         err,
				}
			}
		}()
	}
	wg.Wait()

	return results
}
