package ontology

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/averros/semquery/internal/errors"
)

// conceptDocument is the on-disk shape of the flat-file backend: a single
// document with one concepts array, rewritten wholesale on every mutation.
type conceptDocument struct {
	Concepts []Concept `json:"concepts"`
}

// FlatFileBackend persists the concept graph as an indented UTF-8 JSON
// document, keeping it human-diffable.
type FlatFileBackend struct {
	path string
}

// NewFlatFileBackend creates a flat-file backend writing to the given path.
func NewFlatFileBackend(path string) *FlatFileBackend {
	return &FlatFileBackend{path: path}
}

// Name identifies the backend in logs and storage info.
func (f *FlatFileBackend) Name() string {
	return "flatfile"
}

// Path returns the document path.
func (f *FlatFileBackend) Path() string {
	return f.path
}

// Load reads the concepts document. A missing file loads as an empty set.
func (f *FlatFileBackend) Load() ([]Concept, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(fmt.Errorf("reading concepts file: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", f.path).
			Build()
	}

	var doc conceptDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(fmt.Errorf("parsing concepts file: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", f.path).
			Build()
	}
	return doc.Concepts, nil
}

// SaveAll rewrites the concepts document. The write goes through a temp file
// and rename so a crash never leaves a half-written document behind.
func (f *FlatFileBackend) SaveAll(concepts []Concept) error {
	if concepts == nil {
		concepts = []Concept{}
	}

	data, err := json.MarshalIndent(conceptDocument{Concepts: concepts}, "", "  ")
	if err != nil {
		return errors.New(fmt.Errorf("encoding concepts: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Build()
	}
	data = append(data, '\n')

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.New(fmt.Errorf("creating concepts directory: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}

	tmp, err := os.CreateTemp(dir, ".concepts-*.json")
	if err != nil {
		return errors.New(fmt.Errorf("creating temp concepts file: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", dir).
			Build()
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.New(fmt.Errorf("writing concepts file: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", tmpName).
			Build()
	}
	if err := tmp.Close(); err != nil {
		return errors.New(fmt.Errorf("closing concepts file: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", tmpName).
			Build()
	}

	if err := os.Rename(tmpName, f.path); err != nil {
		return errors.New(fmt.Errorf("replacing concepts file: %w", err)).
			Component("ontology").
			Category(errors.CategoryFileIO).
			Context("path", f.path).
			Build()
	}
	return nil
}

// Close is a no-op for the flat-file backend.
func (f *FlatFileBackend) Close() error {
	return nil
}
