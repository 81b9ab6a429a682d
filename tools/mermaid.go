package tools

import (
	"fmt"
	"io"
	"strings"

	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

type MermaidOpts struct {
	// ShowQualifiers will result in a node label that includes
	// the recognized qualifier values (if any).
	ShowQualifiers bool `json:"showQualifiers"`

	// GroupFill is the fill color for group nodes.
	GroupFill string `json:"groupFill,omitempty"`
}

// Mermaid makes a Mermaid (https://mermaidjs.github.io/) input file
// for the given grammar.
func Mermaid(m *schema.Message, w io.Writer, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{
			ShowQualifiers: true,
			GroupFill:      "#bcf2db",
		}
	}

	fmt.Fprintf(w, "graph TD\n")

	id := func(n *schema.Node) string {
		return strings.Replace(n.Id, ".", "_", -1)
	}

	var render func(parent string, n *schema.Node) error
	render = func(parent string, n *schema.Node) error {
		label := n.Id
		if n.Kind == schema.SegmentKind {
			label = n.Id + " " + n.Tag
		}
		label += " " + bounds(n)
		if opts.ShowQualifiers && n.Disc != nil {
			label += " [" + strings.Join(n.Disc.Values, ",") + "]"
		}

		fmt.Fprintf(w, "  %s(\"%s\")\n", id(n), label)
		if n.Kind == schema.GroupKind && opts.GroupFill != "" {
			fmt.Fprintf(w, "  style %s fill:%s\n", id(n), opts.GroupFill)
		}
		if parent != "" {
			fmt.Fprintf(w, "  %s --> %s\n", parent, id(n))
		}

		for _, c := range n.Children {
			if err := render(id(n), c); err != nil {
				return err
			}
		}
		return nil
	}

	for _, c := range m.Root.Children {
		if err := render("", c); err != nil {
			return err
		}
	}

	return nil
}
