package assemble

import (
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
)

// Interchange envelope tags.
const (
	TagUNB = "UNB"
	TagUNH = "UNH"
	TagUNT = "UNT"
	TagUNZ = "UNZ"
)

// SplitInterchange is one interchange cut at message-envelope
// boundaries.  Messages within one interchange are independent and
// may carry different business subtypes, so each slice can be
// assembled against a different schema subset.
type SplitInterchange struct {
	// Head holds the interchange-level segments before the first
	// message (UNB and any service segments).
	Head []*edi.Segment

	// Messages holds each message's segments, UNH through UNT
	// inclusive, in interchange order.
	Messages [][]*edi.Segment

	// Offsets holds, per message, the index of its first segment
	// in the original slice, so per-message diagnostic positions
	// can be translated back.
	Offsets []int

	// Tail holds the segments after the last message (UNZ).
	Tail []*edi.Segment
}

// ControlReference returns the interchange control reference from the
// UNB header, or "".
func (s *SplitInterchange) ControlReference() string {
	for _, seg := range s.Head {
		if seg.Tag == TagUNB {
			return seg.Component(4, 0)
		}
	}
	return ""
}

// Split cuts one interchange's segment list into independent
// per-message slices.  A message runs from a UNH up to and including
// its UNT; a new UNH before a UNT (malformed input) starts the next
// message anyway, leaving the deficit for the per-message assembly to
// diagnose.
func Split(segs []*edi.Segment) *SplitInterchange {
	s := &SplitInterchange{}

	var (
		cur   []*edi.Segment
		start int
		in    bool
	)

	flush := func() {
		if !in {
			return
		}
		s.Messages = append(s.Messages, cur)
		s.Offsets = append(s.Offsets, start)
		cur = nil
		in = false
	}

	for i, seg := range segs {
		switch seg.Tag {
		case TagUNH:
			flush()
			in = true
			start = i
			cur = append(cur, seg)
		case TagUNT:
			if in {
				cur = append(cur, seg)
				flush()
			} else {
				s.Tail = append(s.Tail, seg)
			}
		default:
			switch {
			case in:
				cur = append(cur, seg)
			case len(s.Messages) == 0:
				s.Head = append(s.Head, seg)
			default:
				s.Tail = append(s.Tail, seg)
			}
		}
	}
	flush()

	return s
}
