package assemble

import (
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

// Assembler turns a flat segment list into a Tree, guided by a
// grammar.  The zero value is a permissive assembler.
//
// An Assembler holds no per-call state, so one Assembler may be used
// from any number of goroutines.
type Assembler struct {
	// Strict turns any diagnostic into a single aggregate
	// StructuralError.  Permissive assembly (the default) always
	// returns a tree plus whatever diagnostics were collected.
	Strict bool
}

// DefaultAssembler is a permissive Assembler.
var DefaultAssembler = &Assembler{}

// Assemble runs DefaultAssembler.Assemble.
func Assemble(segs []*edi.Segment, m *schema.Message) (*Tree, Diagnostics, error) {
	return DefaultAssembler.Assemble(segs, m)
}

// Assemble walks the grammar depth-first in declaration order while a
// single forward-only cursor walks the segments.  No segment and no
// schema node is visited twice, and there is no backtracking.
//
// Exceeding a repetition cap captures the excess occurrence anyway
// and flags it once; truncating would hide data from the caller.
func (a *Assembler) Assemble(segs []*edi.Segment, m *schema.Message) (*Tree, Diagnostics, error) {
	t := NewTree(m)
	c := &cursor{segs: segs}
	var ds Diagnostics

	a.group(c, m.Root, t.Root, &ds, false)

	// Whatever the schema walk did not consume is a finding,
	// never a silent drop.
	for ; c.i < len(c.segs); c.i++ {
		seg := c.segs[c.i]
		if kind := leftoverKind(m, seg); kind == UnrecognizedQualifier {
			ds.add(UnrecognizedQualifier, seg.Tag, c.i,
				"no recognized qualifier value for segment %s", seg.Tag)
		} else {
			ds.add(UnexpectedSegment, seg.Tag, c.i,
				"segment %s not allowed here", seg.Tag)
		}
	}

	if a.Strict && 0 < len(ds) {
		return t, ds, &StructuralError{ds}
	}
	return t, ds, nil
}

// cursor is the forward-only position in the input.
type cursor struct {
	segs []*edi.Segment
	i    int
}

func (c *cursor) peek() *edi.Segment {
	if len(c.segs) <= c.i {
		return nil
	}
	return c.segs[c.i]
}

// group assembles one instance of the given group node: its children
// are considered once each, in declaration order.  entered is true
// when the enclosing enter loop can open another repetition of node.
func (a *Assembler) group(c *cursor, node *schema.Node, inst *Instance, ds *Diagnostics, entered bool) {
	for _, child := range node.Children {
		switch child.Kind {
		case schema.SegmentKind:
			a.segment(c, child, inst, ds, entered && child == node.EntrySegment())
		case schema.GroupKind:
			a.enter(c, child, inst, ds)
		}
	}
}

// segment captures consecutive occurrences of one segment node.
//
// With reenter set the node is the entry of a repeatable group, and
// an occurrence beyond Max belongs to the next repetition: leave it
// for the enclosing enter loop instead of flagging it here.
func (a *Assembler) segment(c *cursor, node *schema.Node, inst *Instance, ds *Diagnostics, reenter bool) {
	count := 0
	flagged := false

	for {
		seg := c.peek()
		if seg == nil || seg.Tag != node.Tag {
			break
		}
		if node.Disc != nil && !node.Disc.Matches(seg) {
			break
		}
		if node.Max != schema.Unbounded && node.Max <= count {
			if reenter {
				break
			}
			if !flagged {
				ds.add(MaxRepetitionsExceeded, node.Tag, c.i,
					"segment '%s' allows %d occurrence(s)", node.Id, node.Max)
				flagged = true
			}
		}
		inst.AddSegment(node, seg, c.i)
		c.i++
		count++
	}

	if count == 0 && node.Mandatory() {
		ds.add(MissingRequiredSegment, node.Tag, c.i,
			"mandatory segment '%s' not found", node.Id)
	}
}

// enter assembles repetitions of one group node for as long as its
// entry discriminator keeps matching.
func (a *Assembler) enter(c *cursor, node *schema.Node, inst *Instance, ds *Diagnostics) {
	count := 0
	flagged := false

	for {
		seg := c.peek()
		if seg == nil || !node.Enters(seg) {
			break
		}
		if node.Max != schema.Unbounded && node.Max <= count && !flagged {
			ds.add(MaxRepetitionsExceeded, seg.Tag, c.i,
				"group '%s' allows %d repetition(s)", node.Id, node.Max)
			flagged = true
		}

		before := c.i
		gi := inst.AddGroupInstance(node)
		a.group(c, node, gi, ds, true)
		count++

		if c.i == before {
			break
		}
	}

	if count == 0 && node.Mandatory() {
		entry := node.EntrySegment()
		ds.add(MissingRequiredSegment, entry.Tag, c.i,
			"mandatory group '%s' not entered", node.Id)
	}
}

// leftoverKind decides whether an unconsumed segment is merely
// unexpected or a known tag with an unrecognized qualifier.
func leftoverKind(m *schema.Message, seg *edi.Segment) DiagnosticKind {
	nodes := m.SegmentsByTag(seg.Tag)
	if len(nodes) == 0 {
		return UnexpectedSegment
	}
	for _, n := range nodes {
		if n.Disc == nil || n.Disc.Matches(seg) {
			return UnexpectedSegment
		}
	}
	return UnrecognizedQualifier
}
