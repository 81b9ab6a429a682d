package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/JoschaMetze/edifact-mapper-sub000/util"

	"golang.org/x/net/publicsuffix"
)

// Forwarder POSTs converted documents to a downstream consumer.  The
// client keeps a cookie jar so session-based receivers work.
type Forwarder struct {
	URL     string
	Timeout time.Duration

	client *http.Client
}

func NewForwarder(url string) (*Forwarder, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Forwarder{
		URL:     url,
		Timeout: 30 * time.Second,
		client:  &http.Client{Jar: jar},
	}, nil
}

func (f *Forwarder) Forward(ctx context.Context, c *Conversion) error {
	js, err := json.Marshal(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.URL, bytes.NewReader(js))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused.
	body, _ := ioutil.ReadAll(resp.Body)

	if 300 <= resp.StatusCode {
		return fmt.Errorf("forward of %s got %s: %s",
			c.ControlReference, resp.Status, body)
	}
	util.Logf("forwarded %s: %s", c.ControlReference, resp.Status)
	return nil
}
