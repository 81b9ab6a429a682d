package schema

import (
	"encoding/xml"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
)

// The MIG XML format is a direct rendition of the grammar tree:
//
//	<mig format="UTILMD" version="S1.1" transaction="SG4">
//	  <segment id="UNH" tag="UNH" min="1" max="1"/>
//	  <group id="SG2" min="0" max="99">
//	    <segment id="SG2.NAD" tag="NAD" min="1" max="1">
//	      <qualifier element="0" component="0" values="MS MR"/>
//	    </segment>
//	  </group>
//	  <codes segment="STS" element="2" component="0">
//	    <code value="Z15" meaning="Ja"/>
//	  </codes>
//	</mig>
//
// Child order in the document is declaration order in the grammar.

type xmlMIG struct {
	XMLName     xml.Name   `xml:"mig"`
	Format      string     `xml:"format,attr"`
	Version     string     `xml:"version,attr"`
	Transaction string     `xml:"transaction,attr"`
	Codes       []xmlCodes `xml:"codes"`
	Nodes       []xmlNode  `xml:",any"`
}

type xmlNode struct {
	XMLName   xml.Name
	Id        string        `xml:"id,attr"`
	Tag       string        `xml:"tag,attr"`
	Min       string        `xml:"min,attr"`
	Max       string        `xml:"max,attr"`
	Qualifier *xmlQualifier `xml:"qualifier"`
	Children  []xmlNode     `xml:",any"`
}

type xmlQualifier struct {
	Element   int    `xml:"element,attr"`
	Component int    `xml:"component,attr"`
	Values    string `xml:"values,attr"`
}

type xmlCodes struct {
	Segment   string    `xml:"segment,attr"`
	Element   int       `xml:"element,attr"`
	Component int       `xml:"component,attr"`
	Codes     []xmlCode `xml:"code"`
}

type xmlCode struct {
	Value   string `xml:"value,attr"`
	Meaning string `xml:"meaning,attr"`
}

// Load reads a MIG document and returns the validated Message.
func Load(r io.Reader) (*Message, error) {
	var doc xmlMIG
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, err
	}

	m := &Message{
		Format:      doc.Format,
		Version:     doc.Version,
		Transaction: doc.Transaction,
		Codes:       make(Codes, 16),
		Root: &Node{
			Id:   doc.Format,
			Kind: GroupKind,
			Min:  1,
			Max:  1,
		},
	}

	for _, x := range doc.Nodes {
		n, err := buildNode(x, m.Root)
		if err != nil {
			return nil, err
		}
		m.Root.Children = append(m.Root.Children, n)
	}

	for _, cs := range doc.Codes {
		key := CodeKey{cs.Segment, cs.Element, cs.Component}
		vs, have := m.Codes[key]
		if !have {
			vs = make(map[string]string, len(cs.Codes))
			m.Codes[key] = vs
		}
		for _, c := range cs.Codes {
			vs[c.Value] = c.Meaning
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFile is Load on a file.
func LoadFile(path string) (*Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func buildNode(x xmlNode, parent *Node) (*Node, error) {
	n := &Node{
		Id:     x.Id,
		Tag:    x.Tag,
		Parent: parent,
	}

	switch x.XMLName.Local {
	case "segment":
		n.Kind = SegmentKind
	case "group":
		n.Kind = GroupKind
	default:
		return nil, &SchemaError{x.Id, "unknown element '" + x.XMLName.Local + "'"}
	}

	var err error
	if n.Min, err = bound(x.Min, 0); err != nil {
		return nil, &SchemaError{x.Id, "bad min '" + x.Min + "'"}
	}
	if n.Max, err = bound(x.Max, 1); err != nil {
		return nil, &SchemaError{x.Id, "bad max '" + x.Max + "'"}
	}

	if x.Qualifier != nil {
		vs := strings.Fields(x.Qualifier.Values)
		if len(vs) == 0 {
			return nil, &SchemaError{x.Id, "qualifier without values"}
		}
		n.Disc = &Discriminator{
			Element:   x.Qualifier.Element,
			Component: x.Qualifier.Component,
			Values:    vs,
		}
	}

	for _, c := range x.Children {
		child, err := buildNode(c, n)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}

	return n, nil
}

func bound(s string, def int) (int, error) {
	switch s {
	case "":
		return def, nil
	case "unbounded":
		return Unbounded, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative bound")
	}
	return n, nil
}
