package main

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
)

var testMIG = `
<mig format="UTILMD" version="S1.1" transaction="SG4">
  <segment id="UNH" tag="UNH" min="1" max="1"/>
  <segment id="BGM" tag="BGM" min="1" max="1"/>
  <group id="SG4" min="0" max="unbounded">
    <segment id="SG4.IDE" tag="IDE" min="1" max="1">
      <qualifier element="0" component="0" values="24"/>
    </segment>
  </group>
  <segment id="UNT" tag="UNT" min="1" max="1"/>
</mig>`

var testDefs = `
definitions:
  - entity: Dokument
    type: Dokument
    target: dokument
    fields:
      - from: "BGM:1:0"
        to: dokumentennummer
  - entity: Vorgang
    scope: transaction
    target: vorgang
    fields:
      - from: "SG4.IDE:1:0"
        to: vorgangId
`

const testWire = "UNB+UNOC:3+S+R+240101:1200+REF1'" +
	"UNH+1+UTILMD:D:11A:UN'BGM+E01+DOC1'IDE+24+T1'UNT+4+1'" +
	"UNZ+1+REF1'"

func testService(t *testing.T) *Service {
	t.Helper()
	dir := t.TempDir()

	write := func(name, content string) {
		if err := ioutil.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("utilmd.mig.xml", testMIG)
	write("utilmd.defs.yaml", testDefs)

	cfg := &Config{
		GrammarsDir: dir,
		ArchiveFile: filepath.Join(t.TempDir(), "archive.db"),
	}
	s, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		s.Close(context.Background())
	})
	return s
}

func TestConvert(t *testing.T) {
	ctx := context.Background()
	s := testService(t)

	c, err := s.Convert(ctx, "test", []byte(testWire))
	if err != nil {
		t.Fatal(err)
	}
	if c.ControlReference != "REF1" {
		t.Fatalf("control reference %q", c.ControlReference)
	}
	if len(c.Messages) != 1 || c.Messages[0].Err != nil {
		t.Fatalf("%#v", c.Messages)
	}
	doc := c.Messages[0].Doc
	dok, is := doc["dokument"].(map[string]interface{})
	if !is || dok["dokumentennummer"] != "DOC1" {
		t.Fatalf("%#v", doc)
	}

	// The conversion should land in the archive.
	rec, err := s.archive.Get(ctx, "REF1")
	if err != nil {
		t.Fatal(err)
	}
	if rec.Raw != testWire {
		t.Fatalf("%q", rec.Raw)
	}
	if rec.Conversion == nil || len(rec.Conversion.Messages) != 1 {
		t.Fatalf("%#v", rec.Conversion)
	}
}

func TestConvertUnknownType(t *testing.T) {
	ctx := context.Background()
	s := testService(t)

	wire := "UNB+UNOC:3+S+R+240101:1200+REF2'" +
		"UNH+1+APERAK:D:07B:UN'UNT+2+1'" +
		"UNZ+1+REF2'"
	c, err := s.Convert(ctx, "test", []byte(wire))
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Messages) != 1 || c.Messages[0].Err == nil {
		t.Fatalf("%#v", c.Messages)
	}
}

func TestConvertGarbage(t *testing.T) {
	s := testService(t)
	if _, err := s.Convert(context.Background(), "test", []byte("BGM+?")); err == nil {
		t.Fatal("expected a tokenize error")
	}
}
