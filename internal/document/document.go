// Package document defines the searchable record type and the Catalog that
// holds the currently loaded collection. A collection is never mutated in
// place: loading a new one replaces the whole snapshot atomically.
package document

import (
	"sync/atomic"
	"time"
)

// Document is a single searchable record. Documents are immutable once
// they are part of a collection.
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags,omitempty"`
	Image     string    `json:"image,omitempty"`
}

// Collection is an immutable, versioned snapshot of loaded documents.
type Collection struct {
	Version  int64
	Docs     []Document
	LoadedAt time.Time
}

// Len returns the number of documents in the snapshot.
func (c *Collection) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Docs)
}

// Catalog owns the current Collection. Readers always observe a complete
// snapshot; Replace swaps the whole collection in one step.
type Catalog struct {
	current atomic.Pointer[Collection]
	version atomic.Int64
}

// NewCatalog returns a Catalog holding an empty collection at version 0.
func NewCatalog() *Catalog {
	c := &Catalog{}
	c.current.Store(&Collection{Docs: []Document{}})
	return c
}

// Replace installs docs as the new collection and returns the snapshot.
// The slice is copied so later changes by the caller are not observed.
func (c *Catalog) Replace(docs []Document) *Collection {
	owned := make([]Document, len(docs))
	copy(owned, docs)
	snap := &Collection{
		Version:  c.version.Add(1),
		Docs:     owned,
		LoadedAt: time.Now().UTC(),
	}
	c.current.Store(snap)
	return snap
}

// Snapshot returns the current collection.
func (c *Catalog) Snapshot() *Collection {
	return c.current.Load()
}

// Loaded reports whether at least one collection has been installed.
func (c *Catalog) Loaded() bool {
	return c.current.Load().Version > 0
}
