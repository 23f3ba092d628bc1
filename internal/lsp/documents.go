package lsp

import (
	"sync"

	"github.com/upm-tools/upmls/internal/jsontext"
)

// Document is one open manifest buffer plus its precomputed line index.
type Document struct {
	URI     string
	Version int32
	Text    string
	Index   *jsontext.Index
}

// DocumentStore tracks every open document by URI.
type DocumentStore struct {
	mu   sync.RWMutex
	docs map[string]*Document
}

// NewDocumentStore creates an empty store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{docs: make(map[string]*Document)}
}

// Open registers a document snapshot, replacing any prior one for the URI.
func (s *DocumentStore) Open(uri string, version int32, text string) *Document {
	doc := &Document{URI: uri, Version: version, Text: text, Index: jsontext.NewIndex(text)}
	s.mu.Lock()
	s.docs[uri] = doc
	s.mu.Unlock()
	return doc
}

// Update replaces the text and version of an open document. Updating an
// unopened URI opens it.
func (s *DocumentStore) Update(uri string, version int32, text string) *Document {
	return s.Open(uri, version, text)
}

// Get returns the current snapshot for uri.
func (s *DocumentStore) Get(uri string) (*Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[uri]
	return doc, ok
}

// Close forgets the document.
func (s *DocumentStore) Close(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, uri)
}
