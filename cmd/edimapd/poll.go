package main

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JoschaMetze/edifact-mapper-sub000/util"

	"github.com/gorhill/cronexpr"
)

// Poller scans an inbox directory for .edi files on a cron schedule.
// Converted files move to inbox/done; files that fail to convert
// move to inbox/failed.
type Poller struct {
	Dir string `json:"dir" yaml:"dir"`

	// Schedule is a cron expression ("*/5 * * * *").
	Schedule string `json:"schedule" yaml:"schedule"`
}

func (p *Poller) Run(ctx context.Context, s *Service) error {
	expr, err := cronexpr.Parse(p.Schedule)
	if err != nil {
		return err
	}

	for _, sub := range []string{"done", "failed"} {
		if err := os.MkdirAll(filepath.Join(p.Dir, sub), 0755); err != nil {
			return err
		}
	}

	for {
		next := expr.Next(time.Now())
		if next.IsZero() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Until(next)):
		}
		p.sweep(ctx, s)
	}
}

func (p *Poller) sweep(ctx context.Context, s *Service) {
	fs, err := ioutil.ReadDir(p.Dir)
	if err != nil {
		s.report(err)
		return
	}

	for _, f := range fs {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".edi") {
			continue
		}
		name := filepath.Join(p.Dir, f.Name())
		raw, err := ioutil.ReadFile(name)
		if err != nil {
			s.report(err)
			continue
		}

		sub := "done"
		if _, err = s.Convert(ctx, "file:"+f.Name(), raw); err != nil {
			s.report(err)
			sub = "failed"
		}
		if err = os.Rename(name, filepath.Join(p.Dir, sub, f.Name())); err != nil {
			s.report(err)
		}
		util.Logf("inbox %s -> %s", f.Name(), sub)
	}
}
