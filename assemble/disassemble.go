package assemble

import (
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

// Disassemble is the exact mirror of Assemble: it walks the same
// grammar in the same order and emits the captured segments.  Absent
// optional nodes produce nothing, and captured repetitions keep their
// original wire order.
//
// For any diagnostic-free assembly, Disassemble(Assemble(x)) == x.
func Disassemble(t *Tree) []*edi.Segment {
	acc := make([]*edi.Segment, 0, 64)
	emit(t.Root, &acc)
	return acc
}

// DisassembleInstance emits one instance's segments (the instance's
// own scope only).
func DisassembleInstance(in *Instance) []*edi.Segment {
	acc := make([]*edi.Segment, 0, 16)
	emit(in, &acc)
	return acc
}

func emit(in *Instance, acc *[]*edi.Segment) {
	for _, child := range in.Node.Children {
		switch child.Kind {
		case schema.SegmentKind:
			for _, s := range in.Segments[child.Id] {
				*acc = append(*acc, s.Seg)
			}
		case schema.GroupKind:
			g := in.Groups[child.Id]
			if g == nil {
				continue
			}
			for _, gi := range g.Instances {
				emit(gi, acc)
			}
		}
	}
}
