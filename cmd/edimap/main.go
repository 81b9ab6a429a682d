// edimap converts EDIFACT interchanges to BO4E-style JSON documents
// and back, driven by a MIG grammar, an optional AHB overlay, and a
// mapping definition file.
//
// Forward (the default) reads EDIFACT on stdin and writes JSON.
// With -reverse, it reads JSON and writes EDIFACT.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io/ioutil"
	"log"
	"os"

	"github.com/JoschaMetze/edifact-mapper-sub000/assemble"
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/mapping"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
	"github.com/JoschaMetze/edifact-mapper-sub000/tools"
	"github.com/JoschaMetze/edifact-mapper-sub000/util"
	. "github.com/JoschaMetze/edifact-mapper-sub000/util/testutil"

	_ "github.com/JoschaMetze/edifact-mapper-sub000/transform/goja"
	_ "github.com/JoschaMetze/edifact-mapper-sub000/transform/noop"
)

func main() {
	var (
		migFile  = flag.String("m", "mig.xml", "MIG grammar filename")
		ahbFile  = flag.String("a", "", "optional AHB overlay filename")
		defsFile = flag.String("d", "", "mapping definitions filename")

		strict      = flag.Bool("strict", false, "fail on structural diagnostics")
		reverse     = flag.Bool("reverse", false, "JSON in, EDIFACT out")
		check       = flag.Bool("check", false, "report diagnostics only; no mapping")
		interchange = flag.Bool("i", false, "input is a full interchange (UNB..UNZ)")

		dot     = flag.Bool("dot", false, "emit the grammar as Graphviz dot and exit")
		mermaid = flag.Bool("mermaid", false, "emit the grammar as Mermaid and exit")
		html    = flag.Bool("html", false, "emit the grammar as HTML and exit")
	)

	flag.BoolVar(&util.Logging, "v", false, "log lots of wonderful things")

	flag.Parse()

	ctx := context.Background()

	m, err := loadGrammar(*migFile, *ahbFile)
	if err != nil {
		log.Fatal(err)
	}

	switch {
	case *dot:
		if err = tools.Dot(m, os.Stdout, ""); err != nil {
			log.Fatal(err)
		}
		return
	case *mermaid:
		if err = tools.Mermaid(m, os.Stdout, nil); err != nil {
			log.Fatal(err)
		}
		return
	case *html:
		if err = tools.RenderSchemaPage(m, "", os.Stdout, nil); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *check {
		in, err := ioutil.ReadAll(os.Stdin)
		if err != nil {
			log.Fatal(err)
		}
		if err = runCheck(m, in, *interchange); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *defsFile == "" {
		log.Fatal("need mapping definitions (-d)")
	}
	e, err := loadEngine(ctx, m, *defsFile)
	if err != nil {
		log.Fatal(err)
	}

	in, err := ioutil.ReadAll(os.Stdin)
	if err != nil {
		log.Fatal(err)
	}

	a := &assemble.Assembler{Strict: *strict}

	if *reverse {
		if err = runReverse(ctx, e, in); err != nil {
			log.Fatal(err)
		}
		return
	}
	if err = runForward(ctx, a, e, in, *interchange); err != nil {
		log.Fatal(err)
	}
}

func loadGrammar(migFile, ahbFile string) (*schema.Message, error) {
	m, err := schema.LoadFile(migFile)
	if err != nil {
		return nil, err
	}
	if ahbFile == "" {
		return m, nil
	}
	a, err := schema.LoadAHBFile(ahbFile)
	if err != nil {
		return nil, err
	}
	return m.Filter(a)
}

func loadEngine(ctx context.Context, m *schema.Message, defsFile string) (*mapping.Engine, error) {
	bs, err := ioutil.ReadFile(defsFile)
	if err != nil {
		return nil, err
	}
	defs, err := mapping.Load(bs)
	if err != nil {
		return nil, err
	}
	return mapping.NewEngine(ctx, m, defs, nil)
}

func runCheck(m *schema.Message, in []byte, interchange bool) error {
	segs, _, err := edi.Tokenize(in)
	if err != nil {
		return err
	}

	msgs := [][]*edi.Segment{segs}
	if interchange {
		msgs = assemble.Split(segs).Messages
	}

	bad := false
	for i, r := range assemble.DefaultAssembler.AssembleBatch(msgs, m, 0) {
		if r.Err != nil {
			return r.Err
		}
		for _, d := range r.Diagnostics {
			bad = true
			fmt.Printf("message %d: %s\n", i, d)
		}
	}
	if bad {
		os.Exit(1)
	}
	fmt.Println("ok")
	return nil
}

func runForward(ctx context.Context, a *assemble.Assembler, e *mapping.Engine, in []byte, interchange bool) error {
	segs, _, err := edi.Tokenize(in)
	if err != nil {
		return err
	}

	if interchange {
		resolve := func(unh *edi.Segment) (*mapping.Engine, error) {
			return e, nil
		}
		r, err := mapping.MapInterchange(ctx, a, segs, resolve)
		if err != nil {
			return err
		}
		for _, mr := range r.Messages {
			if mr.Err != nil {
				log.Printf("message %d: %s", mr.Index, mr.Err)
			}
			for _, d := range mr.Diagnostics {
				log.Printf("message %d: %s", mr.Index, d)
			}
		}
		return emit(r)
	}

	tree, ds, err := a.Assemble(segs, e.Message)
	if err != nil {
		return err
	}
	for _, d := range ds {
		log.Print(d.String())
	}
	doc, err := e.MapMessage(ctx, tree)
	if err != nil {
		return err
	}
	return emit(doc)
}

func runReverse(ctx context.Context, e *mapping.Engine, in []byte) error {
	var doc map[string]interface{}
	if err := json.Unmarshal(in, &doc); err != nil {
		return err
	}
	tree, err := e.ReverseMessage(ctx, doc)
	if err != nil {
		return err
	}
	segs := assemble.Disassemble(tree)
	util.Logf("rendering %d segments", len(segs))
	_, err = os.Stdout.Write(edi.Render(segs, edi.DefaultDelimiters))
	fmt.Println()
	return err
}

func emit(x interface{}) error {
	js, err := json.MarshalIndent(&x, "", "  ")
	if err != nil {
		log.Printf("emit fallback %s", JS(x))
		return err
	}
	fmt.Printf("%s\n", js)
	return nil
}
