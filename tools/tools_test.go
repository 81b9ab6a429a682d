package tools

import (
	"bytes"
	"strings"
	"testing"

	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
)

var testMIG = `
<mig format="UTILMD" version="S1.1" transaction="SG4">
  <segment id="UNH" tag="UNH" min="1" max="1"/>
  <group id="SG4" min="0" max="unbounded">
    <segment id="SG4.IDE" tag="IDE" min="1" max="1">
      <qualifier element="0" component="0" values="24"/>
    </segment>
  </group>
  <codes segment="IDE" element="0" component="0">
    <code value="24" meaning="Vorgang"/>
  </codes>
</mig>`

func testMessage(t *testing.T) *schema.Message {
	t.Helper()
	m, err := schema.Load(strings.NewReader(testMIG))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestDot(t *testing.T) {
	var buf bytes.Buffer
	if err := Dot(testMessage(t), &buf, "SG4.IDE"); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"digraph G", `"SG4" -> "SG4.IDE"`, "color=\"red\""} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in %s", want, s)
		}
	}
}

func TestMermaid(t *testing.T) {
	var buf bytes.Buffer
	if err := Mermaid(testMessage(t), &buf, nil); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"graph TD", "SG4 --> SG4_IDE", "[24]"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in %s", want, s)
		}
	}
}

func TestRenderSchemaHTML(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSchemaHTML(testMessage(t), "# UTILMD\n\nAnmeldung.", &buf); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"<h1>", "SG4.IDE", "Vorgang"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in %s", want, s)
		}
	}
}

func TestRenderSchemaPage(t *testing.T) {
	var buf bytes.Buffer
	if err := RenderSchemaPage(testMessage(t), "", &buf, nil); err != nil {
		t.Fatal(err)
	}
	s := buf.String()
	for _, want := range []string{"<!DOCTYPE html", "thisSchema", "schema-html.css"} {
		if !strings.Contains(s, want) {
			t.Fatalf("missing %q in %s", want, s)
		}
	}
}
