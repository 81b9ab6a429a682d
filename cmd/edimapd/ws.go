package main

import (
	"context"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// webSocket makes a handler that accepts raw interchanges as text
// frames and streams every conversion (from any source) back to all
// connected clients.
//
// Warning: this firehose reports all conversions to ALL websocket
// clients.
func (s *Service) webSocket(ctx context.Context) http.HandlerFunc {
	var upgrader = websocket.Upgrader{} // use default options

	conns := sync.Map{}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case c := <-s.Converted:
				conns.Range(func(k, v interface{}) bool {
					ch := v.(chan *Conversion)
					select {
					case ch <- c:
					default:
						log.Printf("%v conversion stream blocked", k)
					}
					return true
				})
			}
		}
	}()

	return func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error", err)
			return
		}
		defer c.Close()

		stream := make(chan *Conversion, 32)
		defer close(stream)

		id := r.RemoteAddr
		conns.Store(id, stream)
		defer conns.Delete(id)

		go func() {
			for conv := range stream {
				if err := c.WriteJSON(conv); err != nil {
					log.Printf("%s write error %s", id, err)
					return
				}
			}
		}()

		for {
			_, raw, err := c.ReadMessage()
			if err != nil {
				log.Printf("%s read error %s", id, err)
				break
			}
			if len(raw) == 0 {
				continue
			}
			if _, err = s.Convert(ctx, "ws:"+id, raw); err != nil {
				if werr := c.WriteJSON(map[string]interface{}{"error": err.Error()}); werr != nil {
					log.Printf("%s error write error %s", id, werr)
					break
				}
			}
		}
	}
}
