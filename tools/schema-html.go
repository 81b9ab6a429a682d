package tools

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/JoschaMetze/edifact-mapper-sub000/schema"

	md "github.com/russross/blackfriday/v2"
)

// RenderSchemaHTML writes the message grammar as an HTML fragment.
// The doc string is rendered as Markdown above the node table.
func RenderSchemaHTML(m *schema.Message, doc string, out io.Writer) error {
	f := func(format string, args ...interface{}) {
		fmt.Fprintf(out, format+"\n", args...)
	}

	if doc != "" {
		f(`<div class="schemaDoc doc">%s</div>`, md.Run([]byte(doc)))
	}

	f(`<div class="nodes"><table>`)
	var fn func(n *schema.Node, depth int)
	fn = func(n *schema.Node, depth int) {
		indent := strings.Repeat("&nbsp;&nbsp;", depth)
		f(`<tr class="node"><td>%s<span id="%s" class="nodeName">%s</span></td><td>`, indent, n.Id, n.Id)

		if n.Kind == schema.SegmentKind {
			f(`<code>%s</code>`, n.Tag)
		}
		f(`<span class="bounds">%s</span>`, bounds(n))
		if n.Disc != nil {
			f(`<div class="qualifier">qualifier %d:%d in <code>%s</code></div>`,
				n.Disc.Element, n.Disc.Component, strings.Join(n.Disc.Values, " "))
		}
		f(`</td></tr>`)

		for _, c := range n.Children {
			fn(c, depth+1)
		}
	}
	for _, c := range m.Root.Children {
		fn(c, 0)
	}
	f(`</table></div>`)

	if 0 < len(m.Codes) {
		f(`<div class="codes"><table>`)
		for k, vs := range m.Codes {
			f(`<tr><td><code>%s</code></td><td>`, k)
			for code, meaning := range vs {
				f(`<span class="code">%s</span> %s<br/>`, code, meaning)
			}
			f(`</td></tr>`)
		}
		f(`</table></div>`)
	}

	return nil
}

// RenderSchemaPage writes a complete HTML page for the grammar,
// embedding it as JSON for client-side scripts.
func RenderSchemaPage(m *schema.Message, doc string, out io.Writer, cssFiles []string) error {
	if cssFiles == nil {
		cssFiles = []string{"/static/schema-html.css"}
	}

	js, err := json.Marshal(m)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, `<!DOCTYPE html>
<meta charset="utf-8">
<html>
  <head>
  <title>%s %s</title>
  <script>
  var thisSchema = %s;
  </script>
`, m.Format, m.Version, js)

	for _, cssFile := range cssFiles {
		fmt.Fprintf(out, `  <link rel="stylesheet" href="%s">`+"\n", cssFile)
	}
	fmt.Fprintf(out, "  </head>\n  <body>\n")

	if err = RenderSchemaHTML(m, doc, out); err != nil {
		return err
	}

	fmt.Fprintf(out, "  </body>\n</html>\n")
	return nil
}
