package mapping

import (
	"context"
	"fmt"
	"strconv"

	"github.com/JoschaMetze/edifact-mapper-sub000/assemble"
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

// synthesized marks segments created by reverse mapping, which have
// no wire position.
const synthesized = -1

// ReverseTransaction rebuilds one repetition of the transaction
// group from a value tree: first the process metadata bound at the
// transaction root, then the domain-entity groups, merged into one
// instance — the exact mirror of the forward split.
func (e *Engine) ReverseTransaction(ctx context.Context, doc map[string]interface{}) (*assemble.Instance, error) {
	tg := e.Message.TransactionGroup()
	if tg == nil {
		return nil, &DefinitionError{"", "grammar declares no transaction group"}
	}
	in := assemble.NewInstance(tg)

	for _, d := range e.transactionDefs {
		if len(d.chain) == 0 {
			if err := e.reverse(ctx, d, doc, in); err != nil {
				return nil, err
			}
		}
	}
	for _, d := range e.transactionDefs {
		if 0 < len(d.chain) {
			if err := e.reverse(ctx, d, doc, in); err != nil {
				return nil, err
			}
		}
	}

	e.ensureEntry(in, nil)
	return in, nil
}

// ReverseMessage rebuilds a whole message tree from a value tree.
// Fields absent from the input leave their wire positions unset, so
// partial input yields schema-legal minimal output.
func (e *Engine) ReverseMessage(ctx context.Context, doc map[string]interface{}) (*assemble.Tree, error) {
	t := assemble.NewTree(e.Message)

	for _, d := range e.messageDefs {
		if err := e.reverse(ctx, d, doc, t.Root); err != nil {
			return nil, err
		}
	}

	x, have := getPath(doc, TransactionsKey)
	if !have {
		return t, nil
	}
	arr, is := x.([]interface{})
	if !is {
		return nil, fmt.Errorf("'%s' is %T, not an array", TransactionsKey, x)
	}
	for i, el := range arr {
		obj, is := el.(map[string]interface{})
		if !is {
			return nil, fmt.Errorf("transaction %d is %T, not an object", i, el)
		}
		in, err := e.ReverseTransaction(ctx, obj)
		if err != nil {
			return nil, err
		}
		t.Root.AddInstance(in)
	}

	return t, nil
}

// reverse applies one definition backwards: value tree in, tree
// fragment out.
func (e *Engine) reverse(ctx context.Context, d *Definition, doc map[string]interface{}, scope *assemble.Instance) error {
	x, have := getPath(doc, d.Target)
	if !have {
		return nil
	}
	cx, _ := getPath(doc, d.Target+CompanionSuffix)

	if d.repeated {
		arr, is := x.([]interface{})
		if !is {
			return fmt.Errorf("target '%s' is %T, not an array", d.Target, x)
		}
		carr, _ := cx.([]interface{})
		for i, el := range arr {
			obj, is := el.(map[string]interface{})
			if !is {
				return fmt.Errorf("target '%s'[%d] is %T, not an object", d.Target, i, el)
			}
			var comp map[string]interface{}
			if i < len(carr) {
				comp, _ = carr[i].(map[string]interface{})
			}

			in := assemble.NewInstance(d.chain[len(d.chain)-1])
			if err := e.fill(ctx, d, obj, comp, in); err != nil {
				return err
			}
			if in.Empty() {
				continue
			}
			e.ensureEntry(in, d)
			e.attach(scope, d.chain, in)
		}
		return nil
	}

	obj, is := x.(map[string]interface{})
	if !is {
		return fmt.Errorf("target '%s' is %T, not an object", d.Target, x)
	}
	comp, _ := cx.(map[string]interface{})

	if len(d.chain) == 0 {
		return e.fill(ctx, d, obj, comp, scope)
	}

	in := assemble.NewInstance(d.chain[len(d.chain)-1])
	if err := e.fill(ctx, d, obj, comp, in); err != nil {
		return err
	}
	if in.Empty() {
		return nil
	}
	e.ensureEntry(in, d)
	e.attach(scope, d.chain, in)
	return nil
}

// fill writes one entity's fields into the given instance.
func (e *Engine) fill(ctx context.Context, d *Definition, obj, comp map[string]interface{}, in *assemble.Instance) error {
	if d.transform != nil {
		x, err := d.transform.Reverse(ctx, obj)
		if err != nil {
			return err
		}
		m, is := x.(map[string]interface{})
		if !is {
			return fmt.Errorf("reverse transform for '%s' returned %T, not an object", d.Entity, x)
		}
		obj = m
	}

	for _, f := range d.Fields {
		if err := e.insert(f, obj, in); err != nil {
			return err
		}
	}
	for _, f := range d.Companions {
		if comp == nil {
			break
		}
		if err := e.insert(f, comp, in); err != nil {
			return err
		}
	}

	// Qualifiers come from definition metadata, never from the
	// caller's object, so structural routing cannot be corrupted.
	e.enforceAll(d, in)

	return nil
}

func (e *Engine) enforceAll(d *Definition, in *assemble.Instance) {
	for _, ss := range in.Segments {
		for _, s := range ss {
			e.enforceQualifier(d, s)
		}
	}
	for _, g := range in.Groups {
		for _, gi := range g.Instances {
			e.enforceAll(d, gi)
		}
	}
}

// insert writes one field's value into its wire position.  An absent
// target path leaves the position unset rather than zero-filling it.
func (e *Engine) insert(f *Field, obj map[string]interface{}, in *assemble.Instance) error {
	x, have := getPath(obj, f.To)
	if !have || x == nil {
		return nil
	}

	// A code-typed value arrives either enriched or as a bare
	// string; both are accepted, deliberately.
	if m, is := x.(map[string]interface{}); is {
		code, have := m[CodeKey]
		if !have {
			return fmt.Errorf("field '%s': object value without '%s'", f.To, CodeKey)
		}
		x = code
	}

	v, err := stringify(x)
	if err != nil {
		return fmt.Errorf("field '%s': %s", f.To, err)
	}
	if v == "" {
		return nil
	}

	if f.inverse != nil {
		if wire, have := f.inverse[v]; have {
			v = wire
		}
	}

	target := in
	for _, g := range f.ref.chain {
		grp := target.Group(g.Id)
		if grp != nil && 0 < len(grp.Instances) {
			target = grp.Instances[0]
			continue
		}
		target = target.AddGroupInstance(g)
	}

	s := target.Segment(f.ref.node.Id)
	if s == nil {
		s = target.AddSegment(f.ref.node, &edi.Segment{Tag: f.ref.node.Tag}, synthesized)
	}
	setComponent(s.Seg, f.ref.elem, f.ref.comp, v)
	return nil
}

// enforceQualifier overwrites a segment's discriminator position with
// the fixed metadata value.
func (e *Engine) enforceQualifier(d *Definition, s *assemble.Segment) {
	n := s.Node
	if n.Disc == nil {
		return
	}
	if d != nil && d.disc != nil && d.disc.ref.node == n {
		setComponent(s.Seg, n.Disc.Element, n.Disc.Component, d.disc.value)
		return
	}
	// A value some earlier definition legitimately routed to stays.
	cur := s.Seg.Component(n.Disc.Element, n.Disc.Component)
	for _, v := range n.Disc.Values {
		if cur == v {
			return
		}
	}
	setComponent(s.Seg, n.Disc.Element, n.Disc.Component, n.Disc.Values[0])
}

// ensureEntry guarantees that the instance (and any nested instances
// it grew) carries its group's entry segment, qualified from
// metadata, so the fragment stays enterable on re-assembly.
func (e *Engine) ensureEntry(in *assemble.Instance, d *Definition) {
	node := in.Node
	if len(node.Children) == 0 {
		return
	}

	first := node.Children[0]
	switch first.Kind {
	case schema.SegmentKind:
		s := in.Segment(first.Id)
		if s == nil {
			s = in.AddSegment(first, &edi.Segment{Tag: first.Tag}, synthesized)
		}
		e.enforceQualifier(d, s)
	case schema.GroupKind:
		g := in.Group(first.Id)
		if g == nil || len(g.Instances) == 0 {
			in.AddGroupInstance(first)
		}
	}

	for _, g := range in.Groups {
		for _, gi := range g.Instances {
			e.ensureEntry(gi, d)
		}
	}
}

// attach descends from the scope through the chain's intermediate
// groups (creating single instances as needed) and appends the built
// repetition.
func (e *Engine) attach(scope *assemble.Instance, chain []*schema.Node, in *assemble.Instance) {
	target := scope
	for _, g := range chain[:len(chain)-1] {
		grp := target.Group(g.Id)
		if grp != nil && 0 < len(grp.Instances) {
			target = grp.Instances[0]
			continue
		}
		target = target.AddGroupInstance(g)
		e.ensureEntry(target, nil)
	}
	target.AddInstance(in)
}

// setComponent grows the segment as needed and writes the component.
func setComponent(seg *edi.Segment, elem, comp int, v string) {
	for len(seg.Elements) <= elem {
		seg.Elements = append(seg.Elements, []string{""})
	}
	for len(seg.Elements[elem]) <= comp {
		seg.Elements[elem] = append(seg.Elements[elem], "")
	}
	seg.Elements[elem][comp] = v
}

func stringify(x interface{}) (string, error) {
	switch v := x.(type) {
	case string:
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", fmt.Errorf("cannot render a %T", x)
	}
}
