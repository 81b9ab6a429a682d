package schema

import (
	"encoding/xml"
	"io"
	"os"
)

// An AHB entry narrows one MIG to the subset legal for a single
// business-transaction-subtype (PID) and may tighten mandatoriness:
//
//	<ahb format="UTILMD" pid="55001">
//	  <use id="UNH"/>
//	  <use id="SG4" min="1"/>
//	</ahb>
//
// A node survives filtering only if its id is listed and all its
// ancestors are listed too.
type AHB struct {
	Format string
	PID    string
	Uses   map[string]Use
}

// Use is one AHB line: keep the node, optionally overriding its
// cardinality bounds.
type Use struct {
	Id  string
	Min string
	Max string
}

type xmlAHB struct {
	XMLName xml.Name `xml:"ahb"`
	Format  string   `xml:"format,attr"`
	PID     string   `xml:"pid,attr"`
	Uses    []xmlUse `xml:"use"`
}

type xmlUse struct {
	Id  string `xml:"id,attr"`
	Min string `xml:"min,attr"`
	Max string `xml:"max,attr"`
}

// LoadAHB reads one AHB document.
func LoadAHB(r io.Reader) (*AHB, error) {
	var doc xmlAHB
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}
	a := &AHB{
		Format: doc.Format,
		PID:    doc.PID,
		Uses:   make(map[string]Use, len(doc.Uses)),
	}
	for _, u := range doc.Uses {
		if u.Id == "" {
			return nil, &SchemaError{doc.PID, "use without id"}
		}
		if _, dup := a.Uses[u.Id]; dup {
			return nil, &SchemaError{u.Id, "duplicate use"}
		}
		a.Uses[u.Id] = Use{Id: u.Id, Min: u.Min, Max: u.Max}
	}
	return a, nil
}

// LoadAHBFile is LoadAHB on a file.
func LoadAHBFile(path string) (*AHB, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadAHB(f)
}

// Filter returns a new Message pruned to the AHB's subset.  The
// receiver is not modified.  The pruned tree is validated again, so a
// filter that (say) removes a group's entry segment fails loudly here
// rather than misassembling later.
func (m *Message) Filter(a *AHB) (*Message, error) {
	if a.Format != m.Format {
		return nil, &SchemaError{a.PID, "AHB for format " + a.Format + " applied to " + m.Format}
	}
	for id := range a.Uses {
		if m.NodeById(id) == nil {
			return nil, &SchemaError{id, "AHB references unknown node"}
		}
	}

	nm := &Message{
		Format:      m.Format,
		Version:     m.Version,
		Transaction: m.Transaction,
		Codes:       m.Codes,
		Root: &Node{
			Id:   m.Root.Id,
			Kind: GroupKind,
			Min:  1,
			Max:  1,
		},
	}

	var err error
	if nm.Root.Children, err = filterChildren(m.Root, nm.Root, a); err != nil {
		return nil, err
	}

	if err := nm.Validate(); err != nil {
		return nil, err
	}
	return nm, nil
}

func filterChildren(old, parent *Node, a *AHB) ([]*Node, error) {
	var acc []*Node
	for _, c := range old.Children {
		u, used := a.Uses[c.Id]
		if !used {
			continue
		}
		n := &Node{
			Id:     c.Id,
			Kind:   c.Kind,
			Tag:    c.Tag,
			Min:    c.Min,
			Max:    c.Max,
			Disc:   c.Disc,
			Parent: parent,
		}
		var err error
		if u.Min != "" {
			if n.Min, err = bound(u.Min, c.Min); err != nil {
				return nil, &SchemaError{c.Id, "bad AHB min '" + u.Min + "'"}
			}
		}
		if u.Max != "" {
			if n.Max, err = bound(u.Max, c.Max); err != nil {
				return nil, &SchemaError{c.Id, "bad AHB max '" + u.Max + "'"}
			}
		}
		if n.Children, err = filterChildren(c, n, a); err != nil {
			return nil, err
		}
		acc = append(acc, n)
	}
	return acc, nil
}
