package semdex

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/averros/semquery/internal/errors"
)

// corpusDocument is the on-disk corpus shape: a single verses array.
// Pre-computed vectors are optional; documents without one are embedded at
// index time.
type corpusDocument struct {
	Verses []Document `json:"verses"`
}

// LoadCorpus reads a verse corpus document. A missing file loads as an
// empty corpus so the service can start before a corpus is provisioned.
func LoadCorpus(path string) ([]Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.New(fmt.Errorf("reading corpus file: %w", err)).
			Component("semdex").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}

	var doc corpusDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.New(fmt.Errorf("parsing corpus file: %w", err)).
			Component("semdex").
			Category(errors.CategoryFileIO).
			Context("path", path).
			Build()
	}
	return doc.Verses, nil
}
