package model

import (
	"encoding/json"
	"sort"
)

// Relation links two triggers. Gold relations carry no confidence;
// predicted relations carry the classifier probability of their class.
type Relation struct {
	Type       string  `json:"type"`
	Arg1       string  `json:"arg1"`
	Arg2       string  `json:"arg2"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Document is one corpus entry: ordered sentences, relations and opaque modifiers
type Document struct {
	Sentences []*Sentence       `json:"sentences"`
	Relations []Relation        `json:"relations"`
	Modifiers []json.RawMessage `json:"modifiers,omitempty"` // Passed through untouched
}

// Corpus maps document names to documents
type Corpus map[string]*Document

// Keys returns document names in sorted order.
// Every corpus walk goes through Keys so results are reproducible.
func (c Corpus) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// RelationCount returns the total number of relations over all documents
func (c Corpus) RelationCount() int {
	n := 0
	for _, doc := range c {
		n += len(doc.Relations)
	}
	return n
}
