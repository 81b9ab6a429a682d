package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"strings"

	"github.com/JoschaMetze/edifact-mapper-sub000/schema"

	"gopkg.in/yaml.v2"
)

// Dot writes a Graphviz dot file for the given message grammar.  A
// really ugly dot file.
//
// The optional mark can be a node id; if non-empty, that node is
// drawn in red.  Handy when staring at a diagnostic.
func Dot(m *schema.Message, w io.Writer, mark string) error {
	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	var render func(n *schema.Node) error
	render = func(n *schema.Node) error {
		label := n.Id
		if n.Kind == schema.SegmentKind {
			label = n.Id + `|` + n.Tag
		}
		label += fmt.Sprintf(`|%s`, bounds(n))

		if n.Disc != nil {
			bs, err := yaml.Marshal(n.Disc)
			if err != nil {
				return err
			}
			src := strings.Replace(string(bs), "\n", `\l`, -1)
			label += `|` + strings.Replace(src, `"`, `\"`, -1)
		}

		fillcolor := "#99ddc8"
		if n.Kind == schema.GroupKind {
			fillcolor = "#2d93ad"
		}
		color := "black"
		if n.Id == mark {
			color = "red"
		}

		fmt.Fprintf(w, "  \"%s\" [label=\"%s\" fillcolor=\"%s\" color=\"%s\"];\n",
			n.Id, label, fillcolor, color)

		for _, c := range n.Children {
			if err := render(c); err != nil {
				return err
			}
			fmt.Fprintf(w, "  \"%s\" -> \"%s\";\n", n.Id, c.Id)
		}
		return nil
	}

	for _, c := range m.Root.Children {
		if err := render(c); err != nil {
			return err
		}
		fmt.Fprintf(w, "  \"%s\" -> \"%s\";\n", m.Format, c.Id)
	}

	fmt.Fprintf(w, "}\n")
	return nil
}

func bounds(n *schema.Node) string {
	max := fmt.Sprintf("%d", n.Max)
	if n.Max == schema.Unbounded {
		max = "n"
	}
	return fmt.Sprintf("%d..%s", n.Min, max)
}
