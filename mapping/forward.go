package mapping

import (
	"context"
	"fmt"
	"strings"

	"github.com/JoschaMetze/edifact-mapper-sub000/assemble"
)

// CompanionSuffix names the sibling object that keeps companion
// fields apart from domain fields: for a target "widget", companions
// land at "widgetCompanion".
const CompanionSuffix = "Companion"

// BoTypKey is the output key carrying a Definition's Type tag.
const BoTypKey = "boTyp"

// Code/meaning keys for enriched code-typed values.
const (
	CodeKey    = "code"
	MeaningKey = "meaning"
)

// Forward maps one assembled scope with the given definitions into a
// value tree.  Pure: the scope is read, never written, and identical
// inputs yield identical output.
func (e *Engine) Forward(ctx context.Context, scope *assemble.Instance) (map[string]interface{}, error) {
	defs := e.messageDefs
	if tg := e.Message.TransactionGroup(); tg != nil && scope.Node == tg {
		defs = e.transactionDefs
	}

	out := make(map[string]interface{}, len(defs))
	for _, d := range defs {
		if err := e.forward(ctx, d, scope, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (e *Engine) forward(ctx context.Context, d *Definition, scope *assemble.Instance, out map[string]interface{}) error {
	instances := sourceInstances(scope, d)
	if d.disc != nil {
		instances = filterInstances(instances, d)
	}

	if d.repeated {
		objs := make([]interface{}, 0, len(instances))
		comps := make([]interface{}, 0, len(instances))
		any := false
		for _, in := range instances {
			obj, comp, err := e.entity(ctx, d, in)
			if err != nil {
				return err
			}
			objs = append(objs, obj)
			comps = append(comps, comp)
			if 0 < len(comp) {
				any = true
			}
		}
		if len(objs) == 0 {
			return nil
		}
		if err := setPath(out, d.Target, objs); err != nil {
			return err
		}
		if any {
			return setPath(out, d.Target+CompanionSuffix, comps)
		}
		return nil
	}

	if len(instances) == 0 {
		return nil
	}
	obj, comp, err := e.entity(ctx, d, instances[0])
	if err != nil {
		return err
	}
	if err := setPath(out, d.Target, obj); err != nil {
		return err
	}
	if 0 < len(comp) {
		return setPath(out, d.Target+CompanionSuffix, comp)
	}
	return nil
}

// entity builds one business object (and its companion sibling) from
// one source instance.
func (e *Engine) entity(ctx context.Context, d *Definition, in *assemble.Instance) (map[string]interface{}, map[string]interface{}, error) {
	obj := make(map[string]interface{}, len(d.Fields)+1)
	if d.Type != "" {
		obj[BoTypKey] = d.Type
	}

	for _, f := range d.Fields {
		v, have := e.extract(f, in)
		if !have {
			continue
		}
		if err := setPath(obj, f.To, v); err != nil {
			return nil, nil, err
		}
	}

	comp := make(map[string]interface{}, len(d.Companions))
	for _, f := range d.Companions {
		v, have := e.extract(f, in)
		if !have {
			continue
		}
		if err := setPath(comp, f.To, v); err != nil {
			return nil, nil, err
		}
	}

	if d.transform != nil {
		x, err := d.transform.Forward(ctx, obj)
		if err != nil {
			return nil, nil, err
		}
		m, is := x.(map[string]interface{})
		if !is {
			return nil, nil, fmt.Errorf("transform for '%s' returned %T, not an object", d.Entity, x)
		}
		obj = m
	}

	return obj, comp, nil
}

// extract reads one field's wire value.  An empty component counts as
// absent: EDIFACT omits, it does not zero-fill.
func (e *Engine) extract(f *Field, in *assemble.Instance) (interface{}, bool) {
	target := in
	for _, g := range f.ref.chain {
		grp := target.Group(g.Id)
		if grp == nil || len(grp.Instances) == 0 {
			return nil, false
		}
		target = grp.Instances[0]
	}

	s := target.Segment(f.ref.node.Id)
	if s == nil {
		return nil, false
	}
	raw := s.Seg.Component(f.ref.elem, f.ref.comp)
	if raw == "" {
		return nil, false
	}

	// Code-typed positions are enriched to {code, meaning}; an
	// unrecognized code keeps a null meaning rather than failing.
	if meaning, coded := e.Message.Codes.Meaning(f.ref.node.Tag, f.ref.elem, f.ref.comp, raw); coded {
		pair := map[string]interface{}{
			CodeKey:    raw,
			MeaningKey: nil,
		}
		if meaning != "" {
			pair[MeaningKey] = meaning
		}
		return pair, true
	}

	if f.Enum != nil {
		if domain, have := f.Enum[raw]; have {
			return domain, true
		}
	}
	return raw, true
}

// sourceInstances collects the instances of the definition's source
// group under the scope, flattened in tree order.
func sourceInstances(scope *assemble.Instance, d *Definition) []*assemble.Instance {
	acc := []*assemble.Instance{scope}
	for _, g := range d.chain {
		var next []*assemble.Instance
		for _, in := range acc {
			grp := in.Group(g.Id)
			if grp == nil {
				continue
			}
			next = append(next, grp.Instances...)
		}
		acc = next
	}
	return acc
}

func filterInstances(ins []*assemble.Instance, d *Definition) []*assemble.Instance {
	acc := make([]*assemble.Instance, 0, len(ins))
	for _, in := range ins {
		target := in
		ok := true
		for _, g := range d.disc.ref.chain {
			grp := target.Group(g.Id)
			if grp == nil || len(grp.Instances) == 0 {
				ok = false
				break
			}
			target = grp.Instances[0]
		}
		if !ok {
			continue
		}
		s := target.Segment(d.disc.ref.node.Id)
		if s == nil {
			continue
		}
		if s.Seg.Component(d.disc.ref.elem, d.disc.ref.comp) == d.disc.value {
			acc = append(acc, in)
		}
	}
	return acc
}

// setPath writes v at the dot-addressed path, creating intermediate
// objects as needed.
func setPath(m map[string]interface{}, path string, v interface{}) error {
	parts := strings.Split(path, ".")
	for i, p := range parts[:len(parts)-1] {
		x, have := m[p]
		if !have {
			nm := make(map[string]interface{}, 4)
			m[p] = nm
			m = nm
			continue
		}
		nm, is := x.(map[string]interface{})
		if !is {
			return fmt.Errorf("path '%s' collides at '%s'", path, strings.Join(parts[:i+1], "."))
		}
		m = nm
	}
	m[parts[len(parts)-1]] = v
	return nil
}

// getPath reads the dot-addressed path, reporting absence.
func getPath(m map[string]interface{}, path string) (interface{}, bool) {
	parts := strings.Split(path, ".")
	for _, p := range parts[:len(parts)-1] {
		x, have := m[p]
		if !have {
			return nil, false
		}
		nm, is := x.(map[string]interface{})
		if !is {
			return nil, false
		}
		m = nm
	}
	v, have := m[parts[len(parts)-1]]
	return v, have
}
