// edimapd is a little service that converts EDIFACT interchanges
// arriving over HTTP, WebSockets, MQTT, or a polled inbox directory,
// archives them by control reference, and forwards the converted
// documents downstream.
package main

import (
	"context"
	"flag"
	"io/ioutil"
	"log"

	"github.com/JoschaMetze/edifact-mapper-sub000/util"

	"github.com/jsccast/yaml"

	_ "github.com/JoschaMetze/edifact-mapper-sub000/transform/goja"
	_ "github.com/JoschaMetze/edifact-mapper-sub000/transform/noop"
)

// Config is the daemon's YAML configuration.
type Config struct {
	// GrammarsDir holds NAME.mig.xml, optional NAME.ahb.xml, and
	// NAME.defs.yaml per message type.
	GrammarsDir string `json:"grammars" yaml:"grammars"`

	ArchiveFile string `json:"archive,omitempty" yaml:"archive,omitempty"`
	ForwardURL  string `json:"forward,omitempty" yaml:"forward,omitempty"`

	Strict bool `json:"strict,omitempty" yaml:"strict,omitempty"`

	HTTPPort string `json:"httpPort,omitempty" yaml:"httpPort,omitempty"`

	MQTT  *MQTTBridge `json:"mqtt,omitempty" yaml:"mqtt,omitempty"`
	Inbox *Poller     `json:"inbox,omitempty" yaml:"inbox,omitempty"`
}

func main() {
	var (
		configFile = flag.String("c", "edimapd.yaml", "configuration filename")
		tracing    = flag.Bool("trace", false, "log each conversion")
	)

	flag.BoolVar(&util.Logging, "v", false, "log lots of wonderful things")

	flag.Parse()

	cfg, err := loadConfig(*configFile)
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s, err := NewService(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	s.Tracing = *tracing
	defer s.Close(ctx) // ToDo: Check error.

	go func() {
		for err := range s.Errors {
			log.Printf("error: %s", err)
		}
	}()

	if cfg.MQTT != nil {
		go func() {
			if err := cfg.MQTT.Run(ctx, s); err != nil {
				log.Fatalf("mqtt bridge: %s", err)
			}
		}()
	}

	if cfg.Inbox != nil {
		go func() {
			if err := cfg.Inbox.Run(ctx, s); err != nil && err != context.Canceled {
				log.Fatalf("inbox poller: %s", err)
			}
		}()
	}

	port := cfg.HTTPPort
	if port == "" {
		port = ":8080"
	}
	if err := s.HTTPService(ctx, port); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(filename string) (*Config, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err = yaml.Unmarshal(bs, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
