package mapping

import (
	"bytes"
	"context"
	"reflect"
	"strings"
	"testing"

	"github.com/JoschaMetze/edifact-mapper-sub000/assemble"
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
	. "github.com/JoschaMetze/edifact-mapper-sub000/util/testutil"

	_ "github.com/JoschaMetze/edifact-mapper-sub000/transform/goja"
	_ "github.com/JoschaMetze/edifact-mapper-sub000/transform/noop"
)

// testMIG is a UTILMD-flavored grammar: document header, then a
// repeating transaction group SG4 with a status, repeating locations,
// and two market partners sharing one NAD group.
var testMIG = `
<mig format="UTILMD" version="S1.1" transaction="SG4">
  <segment id="UNH" tag="UNH" min="1" max="1"/>
  <segment id="BGM" tag="BGM" min="1" max="1"/>
  <group id="SG4" min="0" max="unbounded">
    <segment id="SG4.IDE" tag="IDE" min="1" max="1">
      <qualifier element="0" component="0" values="24"/>
    </segment>
    <segment id="SG4.STS" tag="STS" min="0" max="1"/>
    <group id="SG4.SG5" min="0" max="unbounded">
      <segment id="SG4.SG5.LOC" tag="LOC" min="1" max="1">
        <qualifier element="0" component="0" values="172"/>
      </segment>
    </group>
    <group id="SG4.SG12" min="0" max="9">
      <segment id="SG4.SG12.NAD" tag="NAD" min="1" max="1">
        <qualifier element="0" component="0" values="MS MR"/>
      </segment>
    </group>
  </group>
  <segment id="UNT" tag="UNT" min="1" max="1"/>
  <codes segment="STS" element="2" component="0">
    <code value="Z15" meaning="Ja"/>
    <code value="Z16" meaning="Nein"/>
  </codes>
</mig>`

var testDefs = `
definitions:
  - entity: Dokument
    type: Dokument
    target: dokument
    fields:
      - from: "UNH:0"
        to: nachrichtenreferenz
      - from: "BGM:1:0"
        to: dokumentennummer
      - from: "BGM:0:0"
        to: kategorie
        enum:
          E01: Anmeldung
          E02: Abmeldung
  - entity: Vorgang
    type: Vorgang
    scope: transaction
    target: vorgang
    fields:
      - from: "SG4.IDE:1:0"
        to: vorgangId
      - from: "SG4.STS:2:0"
        to: status
    companions:
      - from: "SG4.STS:0:0"
        to: kategorie
  - entity: Marktlokation
    type: Marktlokation
    scope: transaction
    target: marktlokationen
    source: SG4.SG5
    fields:
      - from: "SG4.SG5.LOC:1:0"
        to: marktlokationsId
  - entity: Absender
    type: Marktteilnehmer
    scope: transaction
    target: absender
    source: SG4.SG12
    discriminator:
      segment: SG4.SG12.NAD
      element: 0
      component: 0
      value: MS
    fields:
      - from: "SG4.SG12.NAD:1:0"
        to: partnerId
  - entity: Empfaenger
    type: Marktteilnehmer
    scope: transaction
    target: empfaenger
    source: SG4.SG12
    discriminator:
      segment: SG4.SG12.NAD
      element: 0
      component: 0
      value: MR
    fields:
      - from: "SG4.SG12.NAD:1:0"
        to: partnerId
`

const testWire = "UNH+1+UTILMD:D:11A:UN'" +
	"BGM+E01+DOC123'" +
	"IDE+24+TX1'" +
	"STS+7++Z15'" +
	"LOC+172+DE0001'" +
	"NAD+MS+9900123456789'" +
	"NAD+MR+9900987654321'" +
	"UNT+8+1'"

// testWireReverse is testWire restricted to the positions the
// definitions actually bind (plus the enforced qualifiers).
const testWireReverse = "UNH+1'" +
	"BGM+E01+DOC123'" +
	"IDE+24+TX1'" +
	"STS+7++Z15'" +
	"LOC+172+DE0001'" +
	"NAD+MS+9900123456789'" +
	"NAD+MR+9900987654321'"

func testEngine(t *testing.T, mig, defs string) *Engine {
	t.Helper()
	m, err := schema.Load(strings.NewReader(mig))
	if err != nil {
		t.Fatal(err)
	}
	ds, err := Load([]byte(defs))
	if err != nil {
		t.Fatal(err)
	}
	e, err := NewEngine(context.Background(), m, ds, nil)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func testTree(t *testing.T, e *Engine, wire string) *assemble.Tree {
	t.Helper()
	segs, _, err := edi.Tokenize([]byte(wire))
	if err != nil {
		t.Fatal(err)
	}
	tree, ds, err := assemble.Assemble(segs, e.Message)
	if err != nil {
		t.Fatal(err)
	}
	if 0 < len(ds) {
		t.Fatalf("unexpected diagnostics: %v", ds)
	}
	return tree
}

func TestLoadRejectsEmpty(t *testing.T) {
	if _, err := Load([]byte("definitions: []")); err == nil {
		t.Fatal("expected an error")
	}
}

func TestEngineRejects(t *testing.T) {
	m, err := schema.Load(strings.NewReader(testMIG))
	if err != nil {
		t.Fatal(err)
	}

	bad := []string{
		// Unknown source group.
		`
definitions:
  - entity: X
    target: x
    source: SG99
    fields:
      - {from: "BGM:0", to: a}`,
		// Duplicate target within one scope.
		`
definitions:
  - entity: X
    target: x
    fields:
      - {from: "BGM:0", to: a}
  - entity: Y
    target: x
    fields:
      - {from: "BGM:1", to: b}`,
		// Field address without an element index.
		`
definitions:
  - entity: X
    target: x
    fields:
      - {from: "BGM", to: a}`,
		// Field reaching through a repeating group.
		`
definitions:
  - entity: X
    scope: transaction
    target: x
    fields:
      - {from: "SG4.SG5.LOC:1:0", to: a}`,
		// Two enum codes mapping to one domain value.
		`
definitions:
  - entity: X
    target: x
    fields:
      - from: "BGM:0:0"
        to: a
        enum:
          E01: Anmeldung
          E03: Anmeldung`,
		// Unknown scope.
		`
definitions:
  - entity: X
    scope: interchange
    target: x
    fields:
      - {from: "BGM:0", to: a}`,
	}

	for i, doc := range bad {
		ds, err := Load([]byte(doc))
		if err != nil {
			t.Fatalf("case %d failed to parse: %v", i, err)
		}
		if _, err = NewEngine(context.Background(), m, ds, nil); err == nil {
			t.Fatalf("case %d compiled", i)
		}
	}
}

func TestMapMessage(t *testing.T) {
	e := testEngine(t, testMIG, testDefs)
	tree := testTree(t, e, testWire)

	doc, err := e.MapMessage(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}

	dok, is := doc["dokument"].(map[string]interface{})
	if !is {
		t.Fatalf("dokument: %#v", doc["dokument"])
	}
	if dok[BoTypKey] != "Dokument" || dok["dokumentennummer"] != "DOC123" {
		t.Fatalf("%#v", dok)
	}
	if dok["kategorie"] != "Anmeldung" {
		t.Fatalf("enum not translated: %#v", dok["kategorie"])
	}

	txs, is := doc[TransactionsKey].([]interface{})
	if !is || len(txs) != 1 {
		t.Fatalf("transactions: %#v", doc[TransactionsKey])
	}
	tx := txs[0].(map[string]interface{})

	vg := tx["vorgang"].(map[string]interface{})
	if vg["vorgangId"] != "TX1" {
		t.Fatalf("%#v", vg)
	}
	status, is := vg["status"].(map[string]interface{})
	if !is || status[CodeKey] != "Z15" || status[MeaningKey] != "Ja" {
		t.Fatalf("status not enriched: %#v", vg["status"])
	}

	comp, is := tx["vorgang"+CompanionSuffix].(map[string]interface{})
	if !is || comp["kategorie"] != "7" {
		t.Fatalf("companion: %#v", tx["vorgang"+CompanionSuffix])
	}
	if _, leaked := vg["kategorie"]; leaked {
		t.Fatal("companion leaked into the domain object")
	}

	locs, is := tx["marktlokationen"].([]interface{})
	if !is || len(locs) != 1 {
		t.Fatalf("marktlokationen: %#v", tx["marktlokationen"])
	}
	if locs[0].(map[string]interface{})["marktlokationsId"] != "DE0001" {
		t.Fatalf("%#v", locs[0])
	}

	abs := tx["absender"].([]interface{})
	emp := tx["empfaenger"].([]interface{})
	if len(abs) != 1 || len(emp) != 1 {
		t.Fatalf("partners: %#v / %#v", abs, emp)
	}
	if abs[0].(map[string]interface{})["partnerId"] != "9900123456789" {
		t.Fatalf("discriminator routed wrong: %#v", abs[0])
	}
	if emp[0].(map[string]interface{})["partnerId"] != "9900987654321" {
		t.Fatalf("discriminator routed wrong: %#v", emp[0])
	}

	// Mapping is pure; a second run yields the identical document.
	again, err := e.MapMessage(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, again) {
		t.Fatal("mapping is not deterministic")
	}
}

func TestUnrecognizedCodeKeepsNullMeaning(t *testing.T) {
	e := testEngine(t, testMIG, testDefs)
	tree := testTree(t, e, strings.Replace(testWire, "Z15", "Z99", 1))

	doc, err := e.MapMessage(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}
	tx := doc[TransactionsKey].([]interface{})[0].(map[string]interface{})
	status := tx["vorgang"].(map[string]interface{})["status"].(map[string]interface{})
	if status[CodeKey] != "Z99" {
		t.Fatalf("%#v", status)
	}
	if m, have := status[MeaningKey]; !have || m != nil {
		t.Fatalf("meaning should be present and null: %#v", status)
	}
}

func TestReverseRoundtrip(t *testing.T) {
	e := testEngine(t, testMIG, testDefs)
	tree := testTree(t, e, testWire)

	doc, err := e.MapMessage(context.Background(), tree)
	if err != nil {
		t.Fatal(err)
	}

	back, err := e.ReverseMessage(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	wire := edi.Render(assemble.Disassemble(back), edi.DefaultDelimiters)
	if !bytes.Equal(wire, []byte(testWireReverse)) {
		t.Fatalf("got %s", wire)
	}

	// Fixed point: mapping the rebuilt wire yields the same
	// document (UNT is gone, but nothing binds to it).
	segs, _, err := edi.Tokenize(wire)
	if err != nil {
		t.Fatal(err)
	}
	tree2, _, err := assemble.Assemble(segs, e.Message)
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := e.MapMessage(context.Background(), tree2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(doc, doc2) {
		t.Fatalf("not a fixed point:\n%#v\n%#v", doc, doc2)
	}
}

func TestReverseAcceptsBareCode(t *testing.T) {
	e := testEngine(t, testMIG, testDefs)

	doc := Dwimjs(`{"transactions":[{"vorgang":{"vorgangId":"T9","status":"Z16"}}]}`).(map[string]interface{})
	back, err := e.ReverseMessage(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	txs := back.Transactions()
	if len(txs) != 1 {
		t.Fatalf("%d transactions", len(txs))
	}
	sts := txs[0].Segment("SG4.STS")
	if sts == nil || sts.Seg.Component(2, 0) != "Z16" {
		t.Fatalf("%#v", sts)
	}
}

func TestReverseSkipsEmptyEntities(t *testing.T) {
	e := testEngine(t, testMIG, testDefs)

	// Objects with no bound fields yield no group instances at
	// all.
	doc := Dwimjs(`{"dokument":{"dokumentennummer":"D1"},
                        "transactions":[{"vorgang":{"vorgangId":"T1"},
                                         "marktlokationen":[{"unbound":"x"}]}]}`).(map[string]interface{})
	back, err := e.ReverseMessage(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	tx := back.Transactions()[0]
	if g := tx.Group("SG4.SG5"); g != nil && 0 < len(g.Instances) {
		t.Fatalf("empty entity materialized: %#v", g)
	}
	if g := tx.Group("SG4.SG12"); g != nil && 0 < len(g.Instances) {
		t.Fatalf("absent entity materialized: %#v", g)
	}
}

func TestMapInterchange(t *testing.T) {
	e := testEngine(t, testMIG, testDefs)

	wire := "UNB+UNOC:3+SENDER+RECEIVER+240101:1200+REF42'" +
		"UNH+1+UTILMD:D:11A:UN'BGM+E01+DOC1'IDE+24+T1'UNT+4+1'" +
		"UNH+2+UTILMD:D:11A:UN'BGM+E01+DOC2'IDE+24+T2'IDE+24+T3'UNT+5+2'" +
		"UNH+3+APERAK:D:07B:UN'UNT+2+3'" +
		"UNZ+3+REF42'"
	segs, _, err := edi.Tokenize([]byte(wire))
	if err != nil {
		t.Fatal(err)
	}

	resolve := func(unh *edi.Segment) (*Engine, error) {
		if unh.Component(1, 0) != "UTILMD" {
			return nil, &DefinitionError{"", "no engine for " + unh.Component(1, 0)}
		}
		return e, nil
	}

	r, err := MapInterchange(context.Background(), assemble.DefaultAssembler, segs, resolve)
	if err != nil {
		t.Fatal(err)
	}
	if r.ControlReference != "REF42" {
		t.Fatalf("control reference %q", r.ControlReference)
	}
	if len(r.Messages) != 3 {
		t.Fatalf("%d messages", len(r.Messages))
	}

	// Each message gets its own transaction array.
	for i, want := range []int{1, 2} {
		mr := r.Messages[i]
		if mr.Err != nil || mr.Doc == nil {
			t.Fatalf("message %d: %v", i, mr.Err)
		}
		txs := mr.Doc[TransactionsKey].([]interface{})
		if len(txs) != want {
			t.Fatalf("message %d has %d transactions", i, len(txs))
		}
	}
	if r.Messages[2].Err == nil {
		t.Fatal("message 2 should have failed resolution")
	}
	if r.Messages[0].Doc["dokument"] == nil {
		t.Fatal("sibling failure leaked into message 0")
	}
}

func TestEntityTransform(t *testing.T) {
	defs := `
definitions:
  - entity: Dokument
    target: dokument
    transform:
      interpreter: goja
      forward: "value.flag = 'on'; return value;"
      reverse: "delete value.flag; return value;"
    fields:
      - from: "BGM:1:0"
        to: dokumentennummer
`
	e := testEngine(t, testMIG, defs)
	tree := testTree(t, e, testWire)

	doc, err := e.Forward(context.Background(), tree.Root)
	if err != nil {
		t.Fatal(err)
	}
	dok := doc["dokument"].(map[string]interface{})
	if dok["flag"] != "on" || dok["dokumentennummer"] != "DOC123" {
		t.Fatalf("%#v", dok)
	}

	back, err := e.ReverseMessage(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	bgm := back.Root.Segment("BGM")
	if bgm == nil || bgm.Seg.Component(1, 0) != "DOC123" {
		t.Fatalf("%#v", bgm)
	}
}
