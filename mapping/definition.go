// Package mapping projects assembled trees into BO4E-style business
// object documents and back, driven by declarative definitions.
//
// A Definition set is loaded and compiled once, validated against the
// grammar it will serve, and is immutable afterwards.  Compiled
// Engines are safe for concurrent use.
package mapping

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
	"github.com/JoschaMetze/edifact-mapper-sub000/transform"

	"github.com/jsccast/yaml"
)

// Definition scopes.
const (
	// MessageScope definitions map once per message, against the
	// message root.
	MessageScope = "message"

	// TransactionScope definitions map once per repetition of the
	// schema-declared transaction group.
	TransactionScope = "transaction"
)

// Definition binds one business entity to one place in the grammar.
type Definition struct {
	// Entity names the business entity ("Marktlokation", ...).
	Entity string `json:"entity" yaml:"entity"`

	// Type is the BO4E type tag written as "boTyp" into each
	// mapped object.  Optional.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`

	// Scope is MessageScope (default) or TransactionScope.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`

	// Target is the dot path of the entity within the output
	// document ("marktlokation", "zaehler.geraet", ...).
	Target string `json:"target" yaml:"target"`

	// Source is the node id of the group whose instances carry
	// the entity.  Empty means the scope root itself.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// Discriminator optionally restricts the source instances to
	// those carrying a fixed qualifier value, so several entities
	// can share one group ("NAD+MS" vs "NAD+MR").
	Discriminator *Discriminator `json:"discriminator,omitempty" yaml:"discriminator,omitempty"`

	// Fields bind wire positions to domain fields.
	Fields []*Field `json:"fields" yaml:"fields"`

	// Companions bind wire positions that have no home in the
	// domain model; they are kept apart from the domain fields.
	Companions []*Field `json:"companions,omitempty" yaml:"companions,omitempty"`

	// Transform optionally names entity-level custom behavior.
	Transform *transform.Source `json:"transform,omitempty" yaml:"transform,omitempty"`

	// Compiled state, filled by NewEngine.
	chain     []*schema.Node
	repeated  bool
	transform transform.Transform
	disc      *compiledDisc
}

// Discriminator is a Definition's instance filter: the segment (by
// node id), position, and required value.
type Discriminator struct {
	Segment   string `json:"segment" yaml:"segment"`
	Element   int    `json:"element" yaml:"element"`
	Component int    `json:"component" yaml:"component"`
	Value     string `json:"value" yaml:"value"`
}

// Field binds one wire position to one target path.
type Field struct {
	// From addresses the wire position as
	// "<segment node id>:<element>[:<component>]".
	From string `json:"from" yaml:"from"`

	// To is the dot path within the entity object.
	To string `json:"to" yaml:"to"`

	// Enum optionally translates wire values to domain values
	// (and back, by inversion).
	Enum map[string]string `json:"enum,omitempty" yaml:"enum,omitempty"`

	// Compiled state.
	ref     fieldRef
	inverse map[string]string
}

// fieldRef is a compiled From: the segment node, the instance chain
// from the definition source down to the segment's parent, and the
// element/component indexes.
type fieldRef struct {
	node  *schema.Node
	chain []*schema.Node
	elem  int
	comp  int
}

type compiledDisc struct {
	ref   fieldRef
	value string
}

type yamlDefinitions struct {
	Definitions []*Definition `json:"definitions" yaml:"definitions"`
}

// Load parses a YAML definition document.  The result still has to
// be compiled into an Engine before use.
func Load(bs []byte) ([]*Definition, error) {
	var doc yamlDefinitions
	if err := yaml.Unmarshal(bs, &doc); err != nil {
		return nil, err
	}
	if len(doc.Definitions) == 0 {
		return nil, fmt.Errorf("no definitions")
	}
	return doc.Definitions, nil
}

// DefinitionError is a load-time defect in a mapping definition.
// Always fatal: deferred detection would hide deployment defects.
type DefinitionError struct {
	Entity  string
	Problem string
}

func (e *DefinitionError) Error() string {
	return "bad mapping definition '" + e.Entity + "': " + e.Problem
}

// Engine is a compiled, immutable definition set bound to one
// grammar.
type Engine struct {
	Message *schema.Message

	messageDefs     []*Definition
	transactionDefs []*Definition
}

// NewEngine validates and compiles the definitions against the
// grammar.  Any reference to a non-existent node, any duplicate
// target, and any transform that fails to compile is fatal here.
func NewEngine(ctx context.Context, m *schema.Message, defs []*Definition, interpreters map[string]transform.Interpreter) (*Engine, error) {
	e := &Engine{Message: m}

	targets := make(map[string]bool, len(defs))

	for _, d := range defs {
		scopeNode := m.Root
		switch d.Scope {
		case "", MessageScope:
			d.Scope = MessageScope
		case TransactionScope:
			if scopeNode = m.TransactionGroup(); scopeNode == nil {
				return nil, &DefinitionError{d.Entity, "grammar declares no transaction group"}
			}
		default:
			return nil, &DefinitionError{d.Entity, "unknown scope '" + d.Scope + "'"}
		}

		if d.Target == "" {
			return nil, &DefinitionError{d.Entity, "no target"}
		}
		key := d.Scope + "|" + d.Target
		if targets[key] {
			return nil, &DefinitionError{d.Entity, "duplicate target '" + d.Target + "'"}
		}
		targets[key] = true

		if err := compileDefinition(ctx, m, d, scopeNode, interpreters); err != nil {
			return nil, err
		}

		switch d.Scope {
		case MessageScope:
			e.messageDefs = append(e.messageDefs, d)
		case TransactionScope:
			e.transactionDefs = append(e.transactionDefs, d)
		}
	}

	return e, nil
}

func compileDefinition(ctx context.Context, m *schema.Message, d *Definition, scopeNode *schema.Node, interpreters map[string]transform.Interpreter) error {
	source := scopeNode
	if d.Source != "" && d.Source != scopeNode.Id {
		source = m.NodeById(d.Source)
		if source == nil {
			return &DefinitionError{d.Entity, "unknown source '" + d.Source + "'"}
		}
		if source.Kind != schema.GroupKind {
			return &DefinitionError{d.Entity, "source '" + d.Source + "' is not a group"}
		}
		chain, repeated, err := descent(scopeNode, source)
		if err != nil {
			return &DefinitionError{d.Entity, err.Error()}
		}
		d.chain, d.repeated = chain, repeated
	}

	for _, f := range append(append([]*Field{}, d.Fields...), d.Companions...) {
		ref, err := compileRef(m, source, f.From)
		if err != nil {
			return &DefinitionError{d.Entity, err.Error()}
		}
		f.ref = ref

		if f.Enum != nil {
			f.inverse = make(map[string]string, len(f.Enum))
			for wire, domain := range f.Enum {
				if prev, dup := f.inverse[domain]; dup {
					return &DefinitionError{d.Entity,
						fmt.Sprintf("enum values '%s' and '%s' both map to '%s'", prev, wire, domain)}
				}
				f.inverse[domain] = wire
			}
		}
	}

	if d.Discriminator != nil {
		ref, err := compileRef(m, source,
			fmt.Sprintf("%s:%d:%d", d.Discriminator.Segment, d.Discriminator.Element, d.Discriminator.Component))
		if err != nil {
			return &DefinitionError{d.Entity, err.Error()}
		}
		d.disc = &compiledDisc{ref: ref, value: d.Discriminator.Value}
	}

	if d.Transform != nil {
		t, err := d.Transform.Compile(ctx, interpreters)
		if err != nil {
			return &DefinitionError{d.Entity, err.Error()}
		}
		d.transform = t
	}

	return nil
}

// compileRef parses "<node id>:<elem>[:<comp>]" and resolves it
// relative to the source group.
func compileRef(m *schema.Message, source *schema.Node, from string) (fieldRef, error) {
	var ref fieldRef

	parts := strings.Split(from, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return ref, fmt.Errorf("bad field address '%s'", from)
	}

	node := m.NodeById(parts[0])
	if node == nil {
		return ref, fmt.Errorf("unknown segment '%s'", parts[0])
	}
	if node.Kind != schema.SegmentKind {
		return ref, fmt.Errorf("'%s' is not a segment", parts[0])
	}

	var err error
	if ref.elem, err = strconv.Atoi(parts[1]); err != nil || ref.elem < 0 {
		return ref, fmt.Errorf("bad element index in '%s'", from)
	}
	if len(parts) == 3 {
		if ref.comp, err = strconv.Atoi(parts[2]); err != nil || ref.comp < 0 {
			return ref, fmt.Errorf("bad component index in '%s'", from)
		}
	}

	chain, repeated, err := descent(source, node.Parent)
	if err != nil {
		return ref, fmt.Errorf("segment '%s': %s", parts[0], err)
	}
	if repeated {
		return ref, fmt.Errorf("segment '%s' sits inside a repeating group below the source; give it its own definition", parts[0])
	}

	ref.node = node
	ref.chain = chain
	return ref, nil
}

// descent returns the group chain from 'from' (exclusive) down to
// 'to' (inclusive), and whether any link can repeat.
func descent(from, to *schema.Node) ([]*schema.Node, bool, error) {
	var chain []*schema.Node
	repeated := false

	for n := to; n != from; n = n.Parent {
		if n == nil {
			return nil, false, fmt.Errorf("'%s' is not inside '%s'", to.Id, from.Id)
		}
		if n.Max != 1 {
			repeated = true
		}
		chain = append([]*schema.Node{n}, chain...)
	}

	return chain, repeated, nil
}
