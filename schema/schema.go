// Package schema holds the in-memory MIG/AHB grammar model: a tree of
// segment and group nodes with cardinality bounds and qualifier
// discriminators, plus the code lists embedded in a MIG.
//
// A loaded Message is read-only.  Any number of concurrent assemble
// or map calls may share one Message without locking.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
)

// Kind says whether a Node stands for a segment or a segment group.
type Kind int

const (
	SegmentKind Kind = iota
	GroupKind
)

func (k Kind) String() string {
	switch k {
	case SegmentKind:
		return "segment"
	case GroupKind:
		return "group"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Unbounded as a Max means no repetition cap.
const Unbounded = 0

// Discriminator picks one of several structurally similar siblings by
// the value at a fixed element/component position.
type Discriminator struct {
	// Element and Component locate the qualifier within the
	// segment (both zero-based, tag excluded).
	Element   int
	Component int

	// Values is the recognized value set.
	Values []string
}

// Matches reports whether the segment carries one of the recognized
// qualifier values.
func (d *Discriminator) Matches(seg *edi.Segment) bool {
	got := seg.Component(d.Element, d.Component)
	for _, v := range d.Values {
		if v == got {
			return true
		}
	}
	return false
}

// Overlaps reports whether two discriminators share a recognized
// value at the same position.
func (d *Discriminator) Overlaps(o *Discriminator) bool {
	if d.Element != o.Element || d.Component != o.Component {
		return false
	}
	for _, a := range d.Values {
		for _, b := range o.Values {
			if a == b {
				return true
			}
		}
	}
	return false
}

// Node is one grammar position: a segment or a group of child nodes,
// in declaration order, with cardinality bounds.
type Node struct {
	// Id names the node uniquely within its Message ("BGM",
	// "SG4", "SG4.IDE", ...).
	Id string

	Kind Kind

	// Tag is the wire tag for a segment node; empty for groups.
	Tag string

	// Min and Max are the cardinality bounds.  Max of Unbounded
	// means no cap.
	Min int
	Max int

	// Disc, if non-nil, narrows matching to segments carrying one
	// of the recognized qualifier values.
	Disc *Discriminator

	// Children are the group members in declaration order; nil
	// for segment nodes.
	Children []*Node

	// Parent is nil for a Message root.
	Parent *Node `json:"-"`
}

// Mandatory reports whether at least one occurrence is required.
func (n *Node) Mandatory() bool {
	return 0 < n.Min
}

// EntrySegment returns the segment node whose match opens one
// occurrence of n: n itself for a segment, the first child segment
// (recursively) for a group.
func (n *Node) EntrySegment() *Node {
	if n.Kind == SegmentKind {
		return n
	}
	if len(n.Children) == 0 {
		return nil
	}
	return n.Children[0].EntrySegment()
}

// Enters reports whether the segment opens one occurrence of n.
func (n *Node) Enters(seg *edi.Segment) bool {
	entry := n.EntrySegment()
	if entry == nil || entry.Tag != seg.Tag {
		return false
	}
	if entry.Disc == nil {
		return true
	}
	return entry.Disc.Matches(seg)
}

// Walk calls f for n and all descendants, depth-first in declaration
// order.  Walking stops on the first error.
func (n *Node) Walk(f func(*Node) error) error {
	if err := f(n); err != nil {
		return err
	}
	for _, c := range n.Children {
		if err := c.Walk(f); err != nil {
			return err
		}
	}
	return nil
}

// CodeKey locates one coded position within a segment.
type CodeKey struct {
	Tag       string
	Element   int
	Component int
}

// Codes maps coded positions to their value->meaning lists.
type Codes map[CodeKey]map[string]string

// Meaning resolves a code at the given position.  The second result
// reports whether the position is code-typed at all; an unrecognized
// code at a code-typed position yields ("", true).
func (cs Codes) Meaning(tag string, elem, comp int, code string) (string, bool) {
	vs, have := cs[CodeKey{tag, elem, comp}]
	if !have {
		return "", false
	}
	return vs[code], true
}

// Coded reports whether the given position carries a code list.
func (cs Codes) Coded(tag string, elem, comp int) bool {
	_, have := cs[CodeKey{tag, elem, comp}]
	return have
}

func (k CodeKey) String() string {
	return fmt.Sprintf("%s:%d:%d", k.Tag, k.Element, k.Component)
}

// MarshalJSON renders the position keys as "TAG:elem:comp" strings,
// since JSON objects cannot have struct keys.
func (cs Codes) MarshalJSON() ([]byte, error) {
	m := make(map[string]map[string]string, len(cs))
	for k, vs := range cs {
		m[k.String()] = vs
	}
	return json.Marshal(m)
}

// Message is one loaded MIG grammar: the message-body tree (UNH
// through UNT) plus its code lists.
type Message struct {
	// Format is the message type ("UTILMD", "MSCONS", ...).
	Format string

	// Version is the format version ("S1.1", ...).
	Version string

	// Root is the message grammar.  Root itself is a group whose
	// children are the top-level segments and groups.
	Root *Node

	// Transaction is the id of the top-level repeating business
	// group whose occurrences the splitter scopes independently.
	Transaction string

	Codes Codes

	// byId and byTag index every node, filled during validation.
	byId  map[string]*Node
	byTag map[string][]*Node
}

// NodeById finds a node by id, or nil.
func (m *Message) NodeById(id string) *Node {
	return m.byId[id]
}

// SegmentsByTag returns the segment nodes carrying the given wire
// tag, in declaration order.
func (m *Message) SegmentsByTag(tag string) []*Node {
	return m.byTag[tag]
}

// TransactionGroup returns the transaction group node, or nil if the
// message has none.
func (m *Message) TransactionGroup() *Node {
	if m.Transaction != "" {
		return m.byId[m.Transaction]
	}
	// Fall back to the first repeating top-level group.
	for _, c := range m.Root.Children {
		if c.Kind == GroupKind && (c.Max == Unbounded || 1 < c.Max) {
			return c
		}
	}
	return nil
}

// SchemaError is a load-time defect in a MIG or AHB.  Schema defects
// are always fatal; deferred detection would hide deployment
// problems.
type SchemaError struct {
	Id      string
	Problem string
}

func (e *SchemaError) Error() string {
	return "schema error at '" + e.Id + "': " + e.Problem
}

// Validate checks structural sanity and indexes the tree.  It must be
// called (by the loader) before the Message is shared.
func (m *Message) Validate() error {
	if m.Root == nil {
		return &SchemaError{m.Format, "no root"}
	}
	m.byId = make(map[string]*Node, 64)
	m.byTag = make(map[string][]*Node, 64)

	err := m.Root.Walk(func(n *Node) error {
		if n.Id == "" {
			return &SchemaError{m.Format, "node without id"}
		}
		if _, dup := m.byId[n.Id]; dup {
			return &SchemaError{n.Id, "duplicate id"}
		}
		m.byId[n.Id] = n

		if n.Min < 0 {
			return &SchemaError{n.Id, "negative min"}
		}
		if n.Max != Unbounded && n.Max < n.Min {
			return &SchemaError{n.Id, fmt.Sprintf("max %d below min %d", n.Max, n.Min)}
		}
		switch n.Kind {
		case SegmentKind:
			if n.Tag == "" {
				return &SchemaError{n.Id, "segment without tag"}
			}
			if len(n.Children) != 0 {
				return &SchemaError{n.Id, "segment with children"}
			}
			m.byTag[n.Tag] = append(m.byTag[n.Tag], n)
		case GroupKind:
			if len(n.Children) == 0 {
				return &SchemaError{n.Id, "empty group"}
			}
			if n.EntrySegment() == nil {
				return &SchemaError{n.Id, "group without entry segment"}
			}
		}
		return checkSiblingOverlap(n)
	})
	if err != nil {
		return err
	}

	if m.Transaction != "" {
		tg, have := m.byId[m.Transaction]
		if !have {
			return &SchemaError{m.Transaction, "unknown transaction group"}
		}
		if tg.Kind != GroupKind {
			return &SchemaError{m.Transaction, "transaction node is not a group"}
		}
	}

	return nil
}

// checkSiblingOverlap flags siblings of n's children that share an
// entry tag without disjoint discriminators.  True overlap is a
// schema-authoring defect, not something to resolve at assembly time.
func checkSiblingOverlap(n *Node) error {
	for i, a := range n.Children {
		ea := a.EntrySegment()
		if ea == nil {
			continue
		}
		for _, b := range n.Children[i+1:] {
			eb := b.EntrySegment()
			if eb == nil || ea.Tag != eb.Tag {
				continue
			}
			if ea.Disc == nil || eb.Disc == nil {
				return &SchemaError{b.Id, "shares entry tag " + ea.Tag + " with '" + a.Id + "' without a discriminator"}
			}
			if ea.Disc.Overlaps(eb.Disc) {
				return &SchemaError{b.Id, "discriminator overlaps sibling '" + a.Id + "'"}
			}
		}
	}
	return nil
}
