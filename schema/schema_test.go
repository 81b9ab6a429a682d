package schema

import (
	"strings"
	"testing"
)

var testMIG = `
<mig format="UTILMD" version="S1.1" transaction="SG4">
  <segment id="UNH" tag="UNH" min="1" max="1"/>
  <segment id="BGM" tag="BGM" min="1" max="1"/>
  <segment id="DTM" tag="DTM" min="0" max="9">
    <qualifier element="0" component="0" values="137"/>
  </segment>
  <group id="SG2" min="0" max="9">
    <segment id="SG2.NAD" tag="NAD" min="1" max="1">
      <qualifier element="0" component="0" values="MS MR"/>
    </segment>
  </group>
  <group id="SG4" min="1" max="unbounded">
    <segment id="SG4.IDE" tag="IDE" min="1" max="1">
      <qualifier element="0" component="0" values="24"/>
    </segment>
    <segment id="SG4.STS" tag="STS" min="0" max="1"/>
    <group id="SG4.SG8" min="0" max="99">
      <segment id="SG4.SG8.SEQ" tag="SEQ" min="1" max="1">
        <qualifier element="0" component="0" values="Z01"/>
      </segment>
      <segment id="SG4.SG8.RFF" tag="RFF" min="0" max="1"/>
    </group>
  </group>
  <segment id="UNT" tag="UNT" min="1" max="1"/>
  <codes segment="STS" element="2" component="0">
    <code value="Z15" meaning="Ja"/>
    <code value="Z16" meaning="Nein"/>
  </codes>
</mig>`

func loadTestMIG(t *testing.T) *Message {
	t.Helper()
	m, err := Load(strings.NewReader(testMIG))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestLoad(t *testing.T) {
	m := loadTestMIG(t)

	if m.Format != "UTILMD" || m.Version != "S1.1" {
		t.Fatalf("%s %s", m.Format, m.Version)
	}
	if got := len(m.Root.Children); got != 6 {
		t.Fatalf("got %d top-level nodes", got)
	}

	sg4 := m.NodeById("SG4")
	if sg4 == nil || sg4.Kind != GroupKind {
		t.Fatal("no SG4 group")
	}
	if sg4.Max != Unbounded || sg4.Min != 1 {
		t.Fatalf("SG4 bounds %d..%d", sg4.Min, sg4.Max)
	}
	if sg4.EntrySegment().Tag != "IDE" {
		t.Fatal(sg4.EntrySegment())
	}
	if sg4.Parent != m.Root {
		t.Fatal("SG4 parent")
	}

	rff := m.NodeById("SG4.SG8.RFF")
	if rff == nil || rff.Parent.Id != "SG4.SG8" {
		t.Fatal("nested parent link")
	}

	if tg := m.TransactionGroup(); tg == nil || tg.Id != "SG4" {
		t.Fatal("transaction group")
	}
}

func TestLoadOrder(t *testing.T) {
	m := loadTestMIG(t)
	var ids []string
	for _, c := range m.Root.Children {
		ids = append(ids, c.Id)
	}
	want := "UNH BGM DTM SG2 SG4 UNT"
	if got := strings.Join(ids, " "); got != want {
		t.Fatalf("got order %s", got)
	}
}

func TestCodes(t *testing.T) {
	m := loadTestMIG(t)
	if !m.Codes.Coded("STS", 2, 0) {
		t.Fatal("STS 2.0 should be coded")
	}
	if meaning, _ := m.Codes.Meaning("STS", 2, 0, "Z15"); meaning != "Ja" {
		t.Fatal(meaning)
	}
	if meaning, coded := m.Codes.Meaning("STS", 2, 0, "XXX"); !coded || meaning != "" {
		t.Fatalf("%q %v", meaning, coded)
	}
	if _, coded := m.Codes.Meaning("BGM", 0, 0, "Z15"); coded {
		t.Fatal("BGM 0.0 should not be coded")
	}
}

func TestValidateRejects(t *testing.T) {
	for _, test := range []struct {
		name string
		doc  string
	}{
		{
			"duplicate id",
			`<mig format="X"><segment id="A" tag="AAA"/><segment id="A" tag="BBB"/></mig>`,
		},
		{
			"empty group",
			`<mig format="X"><group id="G" min="0" max="1"/></mig>`,
		},
		{
			"max below min",
			`<mig format="X"><segment id="A" tag="AAA" min="2" max="1"/></mig>`,
		},
		{
			"segment without tag",
			`<mig format="X"><segment id="A"/></mig>`,
		},
		{
			"unknown transaction group",
			`<mig format="X" transaction="NOPE"><segment id="A" tag="AAA"/></mig>`,
		},
		{
			"overlapping discriminators",
			`<mig format="X">
			   <group id="G1" max="9"><segment id="G1.B" tag="BBB"><qualifier element="0" values="X Z"/></segment></group>
			   <group id="G2" max="9"><segment id="G2.B" tag="BBB"><qualifier element="0" values="Y Z"/></segment></group>
			 </mig>`,
		},
		{
			"shared tag without discriminator",
			`<mig format="X">
			   <group id="G1" max="9"><segment id="G1.B" tag="BBB"/></group>
			   <group id="G2" max="9"><segment id="G2.B" tag="BBB"><qualifier element="0" values="Y"/></segment></group>
			 </mig>`,
		},
	} {
		if _, err := Load(strings.NewReader(test.doc)); err == nil {
			t.Fatalf("%s: expected an error", test.name)
		}
	}
}

func TestFilter(t *testing.T) {
	m := loadTestMIG(t)

	ahb := `
<ahb format="UTILMD" pid="55001">
  <use id="UNH"/>
  <use id="BGM"/>
  <use id="SG4" max="99"/>
  <use id="SG4.IDE"/>
  <use id="SG4.STS" min="1"/>
  <use id="UNT"/>
</ahb>`
	a, err := LoadAHB(strings.NewReader(ahb))
	if err != nil {
		t.Fatal(err)
	}

	fm, err := m.Filter(a)
	if err != nil {
		t.Fatal(err)
	}

	if fm.NodeById("SG2") != nil {
		t.Fatal("SG2 should be pruned")
	}
	if fm.NodeById("DTM") != nil {
		t.Fatal("DTM should be pruned")
	}
	sg4 := fm.NodeById("SG4")
	if sg4 == nil || sg4.Max != 99 {
		t.Fatalf("%#v", sg4)
	}
	if sts := fm.NodeById("SG4.STS"); sts == nil || !sts.Mandatory() {
		t.Fatal("AHB should have tightened SG4.STS")
	}
	if len(sg4.Children) != 2 {
		t.Fatalf("got %d SG4 children", len(sg4.Children))
	}

	// The original is untouched.
	if m.NodeById("SG2") == nil || m.NodeById("SG4").Max != Unbounded {
		t.Fatal("filter mutated the original")
	}
}

func TestFilterRejects(t *testing.T) {
	m := loadTestMIG(t)

	if _, err := LoadAHB(strings.NewReader(`<ahb format="UTILMD" pid="1"><use id="A"/><use id="A"/></ahb>`)); err == nil {
		t.Fatal("duplicate use should fail")
	}

	a, err := LoadAHB(strings.NewReader(`<ahb format="MSCONS" pid="1"><use id="UNH"/></ahb>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Filter(a); err == nil {
		t.Fatal("format mismatch should fail")
	}

	a, err = LoadAHB(strings.NewReader(`<ahb format="UTILMD" pid="1"><use id="NOPE"/></ahb>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Filter(a); err == nil {
		t.Fatal("unknown id should fail")
	}

	// Keeping a group while pruning all of its members must fail
	// validation of the filtered tree.
	a, err = LoadAHB(strings.NewReader(`<ahb format="UTILMD" pid="1"><use id="UNH"/><use id="SG4"/></ahb>`))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.Filter(a); err == nil {
		t.Fatal("emptied group should fail")
	}
}
