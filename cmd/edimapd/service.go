package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"log"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JoschaMetze/edifact-mapper-sub000/assemble"
	"github.com/JoschaMetze/edifact-mapper-sub000/edi"
	"github.com/JoschaMetze/edifact-mapper-sub000/mapping"
	"github.com/JoschaMetze/edifact-mapper-sub000/schema"
	"github.com/JoschaMetze/edifact-mapper-sub000/tools"
	"github.com/JoschaMetze/edifact-mapper-sub000/util"
)

// Service converts inbound EDIFACT interchanges to JSON documents,
// archives them by control reference, and hands the results to the
// configured sinks (HTTP forwarder, MQTT).
type Service struct {
	Tracing bool

	assembler *assemble.Assembler
	archive   *Archive
	forwarder *Forwarder

	// engines maps a message type ("UTILMD") to its compiled
	// mapping engine.
	sync.RWMutex
	engines map[string]*mapping.Engine

	// Converted receives every successful conversion.
	Converted chan *Conversion

	// Errors receives conversion-level trouble.
	Errors chan error
}

// Conversion is one converted interchange on its way to the sinks.
type Conversion struct {
	ControlReference string                   `json:"controlReference"`
	Source           string                   `json:"source"`
	Messages         []*mapping.MessageResult `json:"messages"`
}

func NewService(ctx context.Context, cfg *Config) (*Service, error) {
	s := &Service{
		assembler: &assemble.Assembler{Strict: cfg.Strict},
		engines:   make(map[string]*mapping.Engine, 8),
		Converted: make(chan *Conversion, 8),
		Errors:    make(chan error, 8),
	}

	if cfg.GrammarsDir != "" {
		if err := s.LoadGrammars(ctx, cfg.GrammarsDir); err != nil {
			return nil, err
		}
	}

	if cfg.ArchiveFile != "" {
		a, err := NewArchive(cfg.ArchiveFile)
		if err != nil {
			return nil, err
		}
		if err = a.Open(); err != nil {
			return nil, err
		}
		s.archive = a
	}

	if cfg.ForwardURL != "" {
		f, err := NewForwarder(cfg.ForwardURL)
		if err != nil {
			return nil, err
		}
		s.forwarder = f
	}

	return s, nil
}

func (s *Service) Close(ctx context.Context) error {
	if s.archive != nil {
		return s.archive.Close()
	}
	return nil
}

// LoadGrammars reads every NAME.mig.xml (plus optional NAME.ahb.xml
// and NAME.defs.yaml) in the directory and compiles an engine per
// message type.
func (s *Service) LoadGrammars(ctx context.Context, dir string) error {
	migs, err := filepath.Glob(filepath.Join(dir, "*.mig.xml"))
	if err != nil {
		return err
	}
	if len(migs) == 0 {
		return fmt.Errorf("no grammars in %s", dir)
	}

	for _, migFile := range migs {
		name := strings.TrimSuffix(filepath.Base(migFile), ".mig.xml")

		m, err := schema.LoadFile(migFile)
		if err != nil {
			return err
		}

		ahbFile := filepath.Join(dir, name+".ahb.xml")
		if _, err := ioutil.ReadFile(ahbFile); err == nil {
			a, err := schema.LoadAHBFile(ahbFile)
			if err != nil {
				return err
			}
			if m, err = m.Filter(a); err != nil {
				return err
			}
		}

		defsFile := filepath.Join(dir, name+".defs.yaml")
		bs, err := ioutil.ReadFile(defsFile)
		if err != nil {
			return err
		}
		defs, err := mapping.Load(bs)
		if err != nil {
			return err
		}
		e, err := mapping.NewEngine(ctx, m, defs, nil)
		if err != nil {
			return err
		}

		s.Lock()
		s.engines[m.Format] = e
		s.Unlock()
		util.Logf("loaded %s (%s %s)", name, m.Format, m.Version)
	}

	return nil
}

// Resolve picks the engine for a message based on its UNH type.
func (s *Service) Resolve(unh *edi.Segment) (*mapping.Engine, error) {
	typ := unh.Component(1, 0)
	s.RLock()
	e, have := s.engines[typ]
	s.RUnlock()
	if !have {
		return nil, fmt.Errorf("no engine for message type '%s'", typ)
	}
	return e, nil
}

// Convert maps one raw interchange and pushes the result to the
// sinks.  Per-message trouble lands in the result, not in the error.
func (s *Service) Convert(ctx context.Context, source string, raw []byte) (*Conversion, error) {
	segs, _, err := edi.Tokenize(raw)
	if err != nil {
		return nil, err
	}

	r, err := mapping.MapInterchange(ctx, s.assembler, segs, s.Resolve)
	if err != nil {
		return nil, err
	}

	c := &Conversion{
		ControlReference: r.ControlReference,
		Source:           source,
		Messages:         r.Messages,
	}

	if s.Tracing {
		log.Printf("converted %s (%d messages) from %s",
			c.ControlReference, len(c.Messages), source)
	}

	if s.archive != nil {
		if err = s.archive.Put(ctx, c.ControlReference, raw, c); err != nil {
			s.report(err)
		}
	}
	if s.forwarder != nil {
		go func() {
			if err := s.forwarder.Forward(ctx, c); err != nil {
				s.report(err)
			}
		}()
	}

	select {
	case s.Converted <- c:
	default:
		util.Logf("Converted channel full; dropping %s", c.ControlReference)
	}

	return c, nil
}

func (s *Service) report(err error) {
	select {
	case s.Errors <- err:
	default:
		log.Printf("Errors channel full: %s", err)
	}
}

// HTTPService answers conversion requests and serves the archive.
func (s *Service) HTTPService(ctx context.Context, port string) error {
	mux := http.NewServeMux()

	mux.HandleFunc("/convert", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "POST an interchange", http.StatusMethodNotAllowed)
			return
		}
		raw, err := ioutil.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c, err := s.Convert(r.Context(), r.RemoteAddr, raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		respond(w, c)
	})

	mux.HandleFunc("/archive/", func(w http.ResponseWriter, r *http.Request) {
		if s.archive == nil {
			http.Error(w, "no archive", http.StatusNotFound)
			return
		}
		ref := strings.TrimPrefix(r.URL.Path, "/archive/")
		if ref == "" {
			refs, err := s.archive.List(r.Context())
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			respond(w, refs)
			return
		}
		rec, err := s.archive.Get(r.Context(), ref)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		respond(w, rec)
	})

	mux.HandleFunc("/grammars/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/grammars/"), ".html")
		s.RLock()
		e, have := s.engines[name]
		s.RUnlock()
		if !have {
			http.Error(w, "unknown grammar", http.StatusNotFound)
			return
		}
		if err := tools.RenderSchemaPage(e.Message, "", w, nil); err != nil {
			log.Printf("grammar render error %s", err)
		}
	})

	mux.HandleFunc("/api/ws", s.webSocket(ctx))

	srv := &http.Server{Addr: port, Handler: mux}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	log.Printf("HTTP service on %s", port)
	return srv.ListenAndServe()
}

func respond(w http.ResponseWriter, x interface{}) {
	w.Header().Set("Content-Type", "application/json")
	js, err := json.Marshal(&x)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Write(js)
}
