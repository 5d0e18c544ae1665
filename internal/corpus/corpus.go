// Package corpus loads and saves whole corpora as JSON documents keyed by name.
package corpus

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/ppiankov/relex/internal/model"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Load reads a corpus file. Missing relation lists become empty ones.
func Load(path string) (model.Corpus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read corpus: %w", err)
	}
	return Decode(data)
}

// Decode parses corpus JSON
func Decode(data []byte) (model.Corpus, error) {
	var c model.Corpus
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode corpus: %w", err)
	}
	if c == nil {
		c = model.Corpus{}
	}
	for name, doc := range c {
		if doc == nil {
			return nil, fmt.Errorf("decode corpus: document %s is null", name)
		}
		if doc.Relations == nil {
			doc.Relations = []model.Relation{}
		}
	}
	return c, nil
}

// Save writes a corpus file, replacing any existing one
func Save(path string, c model.Corpus) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode corpus: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write corpus: %w", err)
	}
	return nil
}
