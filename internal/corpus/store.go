// Package corpus loads the document records searched by the engine. A Store
// is immutable once loaded; a Holder publishes the current Store so that the
// corpus can be swapped atomically while queries are in flight.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/govdoc-search/pkg/errors"
)

// Document is one corpus record.
type Document struct {
	FileName string `json:"fileName"`
	Text     string `json:"text"`
	NumPages int    `json:"numPages,omitempty"`
}

// record mirrors the on-disk shape; pointers detect missing fields.
type record struct {
	FileName *string `json:"fileName"`
	Text     *string `json:"text"`
	NumPages *int    `json:"numPages"`
}

// Store is an ordered, read-only collection of documents.
type Store struct {
	dir      string
	docs     []Document
	skipped  []string
	loadedAt time.Time
}

type options struct {
	skipInvalid bool
	logger      *slog.Logger
}

// Option configures Load.
type Option func(*options)

// WithSkipInvalid logs and skips malformed files instead of failing the load.
func WithSkipInvalid(skip bool) Option {
	return func(o *options) { o.skipInvalid = skip }
}

// WithLogger sets the logger used during load.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Load reads every regular, non-hidden file in dir in file-name order and
// decodes it as a document record.
func Load(dir string, opts ...Option) (*Store, error) {
	o := options{logger: slog.Default().With("component", "corpus")}
	for _, opt := range opts {
		opt(&o)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading corpus directory %s: %w: %v", dir, apperrors.ErrCorpusUnavailable, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	s := &Store{
		dir:  dir,
		docs: make([]Document, 0, len(names)),
	}
	for _, name := range names {
		path := filepath.Join(dir, name)
		doc, err := readDocument(path)
		if err != nil {
			if !o.skipInvalid {
				return nil, err
			}
			o.logger.Warn("skipping unparseable document", "file", name, "error", err)
			s.skipped = append(s.skipped, name)
			continue
		}
		s.docs = append(s.docs, doc)
	}
	s.loadedAt = time.Now().UTC()
	o.logger.Info("corpus loaded",
		"dir", dir,
		"documents", len(s.docs),
		"skipped", len(s.skipped),
	)
	return s, nil
}

// New builds a Store from documents already in memory, preserving order.
func New(docs ...Document) *Store {
	cp := make([]Document, len(docs))
	copy(cp, docs)
	return &Store{docs: cp, loadedAt: time.Now().UTC()}
}

func readDocument(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	var rec record
	if err := dec.Decode(&rec); err != nil {
		return Document{}, fmt.Errorf("%s: %w: %v", path, apperrors.ErrMalformedDocument, err)
	}
	switch {
	case rec.FileName == nil:
		return Document{}, fmt.Errorf("%s: %w: missing fileName", path, apperrors.ErrMalformedDocument)
	case rec.Text == nil:
		return Document{}, fmt.Errorf("%s: %w: missing text", path, apperrors.ErrMalformedDocument)
	}
	doc := Document{FileName: *rec.FileName, Text: *rec.Text}
	if rec.NumPages != nil {
		doc.NumPages = *rec.NumPages
	}
	return doc, nil
}

// All returns the documents in load order. The returned slice is a copy.
func (s *Store) All() []Document {
	cp := make([]Document, len(s.docs))
	copy(cp, s.docs)
	return cp
}

// At returns the i-th document without copying the collection.
func (s *Store) At(i int) *Document {
	return &s.docs[i]
}

func (s *Store) Len() int { return len(s.docs) }

func (s *Store) Dir() string { return s.dir }

func (s *Store) LoadedAt() time.Time { return s.loadedAt }

// Skipped lists the files ignored under WithSkipInvalid.
func (s *Store) Skipped() []string {
	return append(make([]string, 0, len(s.skipped)), s.skipped...)
}
