package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	bolt "go.etcd.io/bbolt"
)

var archiveBucket = []byte("interchanges")

// Archive keeps raw interchanges and their converted documents,
// keyed by interchange control reference.
type Archive struct {
	Debug    bool
	filename string
	db       *bolt.DB
}

// Record is one archived interchange.
type Record struct {
	ControlReference string      `json:"controlReference"`
	ReceivedAt       time.Time   `json:"receivedAt"`
	Raw              string      `json:"raw"`
	Conversion       *Conversion `json:"conversion,omitempty"`
}

func NewArchive(filename string) (*Archive, error) {
	return &Archive{
		filename: filename,
	}, nil
}

func (a *Archive) Open() error {
	opts := &bolt.Options{
		Timeout: time.Second,
	}

	db, err := bolt.Open(a.filename, 0644, opts)
	if err != nil {
		return err
	}
	a.db = db

	return db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(archiveBucket)
		return err
	})
}

func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) logf(format string, args ...interface{}) {
	if a.Debug {
		log.Printf("Archive."+format, args...)
	}
}

func (a *Archive) Put(ctx context.Context, ref string, raw []byte, c *Conversion) error {
	a.logf("Put %s", ref)
	if ref == "" {
		return fmt.Errorf("no control reference")
	}

	rec := &Record{
		ControlReference: ref,
		ReceivedAt:       time.Now().UTC(),
		Raw:              string(raw),
		Conversion:       c,
	}
	js, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(archiveBucket).Put([]byte(ref), js)
	})
}

func (a *Archive) Get(ctx context.Context, ref string) (*Record, error) {
	a.logf("Get %s", ref)
	var rec *Record
	err := a.db.View(func(tx *bolt.Tx) error {
		bs := tx.Bucket(archiveBucket).Get([]byte(ref))
		if bs == nil {
			return fmt.Errorf("no interchange '%s'", ref)
		}
		rec = &Record{}
		return json.Unmarshal(bs, rec)
	})
	return rec, err
}

func (a *Archive) List(ctx context.Context) ([]string, error) {
	a.logf("List")
	refs := make([]string, 0, 32)
	err := a.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(archiveBucket).ForEach(func(k, v []byte) error {
			refs = append(refs, string(k))
			return nil
		})
	})
	return refs, err
}
