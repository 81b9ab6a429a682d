// Package assemble converts a flat, tokenized segment list into the
// hierarchical tree shaped by a MIG grammar, and back byte-identically.
//
// Segment order never lives in the tree itself: the disassembler
// re-derives it from the schema's declared child order, which is what
// makes the roundtrip exact.
package assemble

import (
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

// Segment is one matched wire segment: the verbatim capture plus the
// grammar position that claimed it.
type Segment struct {
	// Node is the segment node that matched.
	Node *schema.Node

	// Seg is the captured wire segment, verbatim.
	Seg *edi.Segment

	// Pos is the segment's index in the input slice given to
	// Assemble.
	Pos int
}

// Instance is one repetition of a group: its own captured segments
// and its nested groups, both keyed by schema node id.
type Instance struct {
	// Node is the group node this instance belongs to.
	Node *schema.Node

	// Segments holds, per segment-node id, the occurrences in
	// wire order.
	Segments map[string][]*Segment

	// Groups holds the nested groups by group-node id.
	Groups map[string]*Group
}

// NewInstance makes an empty Instance for the given group node.
func NewInstance(node *schema.Node) *Instance {
	return &Instance{
		Node:     node,
		Segments: make(map[string][]*Segment, 8),
		Groups:   make(map[string]*Group, 4),
	}
}

// AddSegment appends one captured occurrence for the given segment
// node.
func (in *Instance) AddSegment(node *schema.Node, seg *edi.Segment, pos int) *Segment {
	s := &Segment{Node: node, Seg: seg, Pos: pos}
	in.Segments[node.Id] = append(in.Segments[node.Id], s)
	return s
}

// AddGroupInstance appends a fresh repetition to the given group
// node's Group, creating the Group on first use.
func (in *Instance) AddGroupInstance(node *schema.Node) *Instance {
	g, have := in.Groups[node.Id]
	if !have {
		g = &Group{Node: node}
		in.Groups[node.Id] = g
	}
	ni := NewInstance(node)
	g.Instances = append(g.Instances, ni)
	return ni
}

// AddInstance appends an already-built repetition (reverse mapping
// builds instances before deciding to keep them).
func (in *Instance) AddInstance(child *Instance) {
	g, have := in.Groups[child.Node.Id]
	if !have {
		g = &Group{Node: child.Node}
		in.Groups[child.Node.Id] = g
	}
	g.Instances = append(g.Instances, child)
}

// Segment returns the first occurrence for the given node id, or nil.
func (in *Instance) Segment(id string) *Segment {
	ss := in.Segments[id]
	if len(ss) == 0 {
		return nil
	}
	return ss[0]
}

// Group returns the group for the given node id, or nil.
func (in *Instance) Group(id string) *Group {
	return in.Groups[id]
}

// Empty reports whether the instance captured nothing at all.
func (in *Instance) Empty() bool {
	if 0 < len(in.Segments) {
		return false
	}
	for _, g := range in.Groups {
		for _, i := range g.Instances {
			if !i.Empty() {
				return false
			}
		}
	}
	return true
}

// Group is all repetitions of one group node, in original wire order.
type Group struct {
	Node      *schema.Node
	Instances []*Instance
}

// Tree is one message's (or one sub-scope's) parse result.
type Tree struct {
	// Message is the grammar the tree was assembled against.
	Message *schema.Message

	// Root is the top-level scope.  Root.Node is Message.Root.
	Root *Instance
}

// NewTree makes an empty Tree over the given grammar.
func NewTree(m *schema.Message) *Tree {
	return &Tree{
		Message: m,
		Root:    NewInstance(m.Root),
	}
}

// Transactions returns the instances of the schema-declared
// transaction group, one per repetition, in wire order.  Nil if the
// grammar declares no transaction group or the message has no
// repetitions.
func (t *Tree) Transactions() []*Instance {
	tg := t.Message.TransactionGroup()
	if tg == nil {
		return nil
	}
	g := t.Root.Group(tg.Id)
	if g == nil {
		return nil
	}
	return g.Instances
}
