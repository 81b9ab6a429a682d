package mapping

import (
	"context"
	"fmt"

	"github.com/JoschaMetze/edifact-mapper-sub000/assemble"
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
)

// TransactionsKey is the document key holding the per-transaction
// array produced by MapMessage and consumed by ReverseMessage.
const TransactionsKey = "transactions"

// MapMessage maps a whole assembled message: message-scoped entities
// once at the top level, then one object per transaction-group
// repetition under TransactionsKey.
func (e *Engine) MapMessage(ctx context.Context, t *assemble.Tree) (map[string]interface{}, error) {
	doc, err := e.Forward(ctx, t.Root)
	if err != nil {
		return nil, err
	}

	txs := make([]interface{}, 0, 8)
	for _, in := range t.Transactions() {
		obj, err := e.Forward(ctx, in)
		if err != nil {
			return nil, err
		}
		txs = append(txs, obj)
	}
	if err := setPath(doc, TransactionsKey, txs); err != nil {
		return nil, err
	}

	return doc, nil
}

// Resolver picks the engine for one message of an interchange based
// on its UNH segment.  Returning an error fails that message alone.
type Resolver func(unh *edi.Segment) (*Engine, error)

// MessageResult is the outcome for one message of an interchange.
// Err and Doc are exclusive; Diagnostics can accompany either.
type MessageResult struct {
	Index       int                    `json:"index"`
	Doc         map[string]interface{} `json:"doc,omitempty"`
	Diagnostics assemble.Diagnostics   `json:"diagnostics,omitempty"`

	// Err doesn't serialize; Error carries its string form.
	Err   error  `json:"-"`
	Error string `json:"error,omitempty"`
}

func (mr *MessageResult) fail(err error) {
	mr.Err = err
	mr.Error = err.Error()
}

// InterchangeResult carries the envelope alongside the per-message
// outcomes.
type InterchangeResult struct {
	ControlReference string
	Messages         []*MessageResult
}

// MapInterchange splits a tokenized interchange, assembles and maps
// each message independently, and never lets one bad message abort
// its siblings.
func MapInterchange(ctx context.Context, a *assemble.Assembler, segs []*edi.Segment, resolve Resolver) (*InterchangeResult, error) {
	sp := assemble.Split(segs)
	r := &InterchangeResult{
		ControlReference: sp.ControlReference(),
		Messages:         make([]*MessageResult, 0, len(sp.Messages)),
	}

	for i, msg := range sp.Messages {
		mr := &MessageResult{Index: i}
		r.Messages = append(r.Messages, mr)

		if len(msg) == 0 || msg[0].Tag != assemble.TagUNH {
			mr.fail(fmt.Errorf("message %d does not start with %s", i, assemble.TagUNH))
			continue
		}
		eng, err := resolve(msg[0])
		if err != nil {
			mr.fail(err)
			continue
		}

		t, diags, err := a.Assemble(msg, eng.Message)
		mr.Diagnostics = diags
		if err != nil {
			mr.fail(err)
			continue
		}

		doc, err := eng.MapMessage(ctx, t)
		if err != nil {
			mr.fail(err)
			continue
		}
		mr.Doc = doc
	}

	return r, nil
}
