package model

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// Location identifies a span inside a sentence by its ordered token offsets.
// It is only ever compared for equality and used as a map key.
type Location string

// NewLocation builds a location from token offsets
func NewLocation(offsets ...int) Location {
	parts := make([]string, len(offsets))
	for i, o := range offsets {
		parts[i] = strconv.Itoa(o)
	}
	return Location(strings.Join(parts, ","))
}

// Offsets returns the token offsets of the location
func (l Location) Offsets() []int {
	if l == "" {
		return nil
	}
	parts := strings.Split(string(l), ",")
	offsets := make([]int, 0, len(parts))
	for _, p := range parts {
		o, err := strconv.Atoi(p)
		if err != nil {
			continue
		}
		offsets = append(offsets, o)
	}
	return offsets
}

// MarshalJSON encodes the location as an array of offsets
func (l Location) MarshalJSON() ([]byte, error) {
	return []byte("[" + string(l) + "]"), nil
}

// UnmarshalJSON decodes an array of offsets
func (l *Location) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*l = ""
		return nil
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return fmt.Errorf("location must be an array of token offsets, got %s", s)
	}
	body := strings.TrimSpace(s[1 : len(s)-1])
	if body == "" {
		*l = ""
		return nil
	}
	fields := strings.Split(body, ",")
	offsets := make([]int, len(fields))
	for i, f := range fields {
		o, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return fmt.Errorf("parse location offset %q: %w", f, err)
		}
		offsets[i] = o
	}
	*l = NewLocation(offsets...)
	return nil
}

// Token is a single word of a parsed sentence
type Token struct {
	Word  string `json:"word"`
	Lemma string `json:"lemma,omitempty"`
	POS   string `json:"pos,omitempty"`
}

// Entity is a trigger registered on a sentence: a predicted event mention or a known entity mention
type Entity struct {
	ID   string   `json:"id"`
	Type string   `json:"type"`
	Locs Location `json:"locs"`
}

// Sentence holds the tokens of one sentence plus its two span registries.
// Lookups are served from an index built on first use and rebuilt after a registry changes.
type Sentence struct {
	Tokens    []Token  `json:"tokens"`
	Predicted []Entity `json:"predicted,omitempty"`
	Known     []Entity `json:"known,omitempty"`

	mu    sync.Mutex
	index *spanIndex
}

type spanIndex struct {
	predicted map[string]Entity
	known     map[string]Entity
	idByLoc   map[Location]string
	typeByLoc map[Location]string
}

// AddPredicted registers a predicted entity
func (s *Sentence) AddPredicted(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Predicted = append(s.Predicted, e)
	s.index = nil
}

// AddKnown registers a known entity
func (s *Sentence) AddKnown(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Known = append(s.Known, e)
	s.index = nil
}

// Invert builds the location-keyed views of both registries.
// Calling it again is a no-op until a registry changes.
func (s *Sentence) Invert() {
	s.lookup()
}

func (s *Sentence) lookup() *spanIndex {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index != nil {
		return s.index
	}

	idx := &spanIndex{
		predicted: make(map[string]Entity, len(s.Predicted)),
		known:     make(map[string]Entity, len(s.Known)),
		idByLoc:   make(map[Location]string, len(s.Predicted)+len(s.Known)),
		typeByLoc: make(map[Location]string, len(s.Predicted)+len(s.Known)),
	}

	// Predicted entries are inserted first and never overwritten
	for _, e := range s.Predicted {
		if _, dup := idx.predicted[e.ID]; !dup {
			idx.predicted[e.ID] = e
		}
		if _, dup := idx.idByLoc[e.Locs]; !dup {
			idx.idByLoc[e.Locs] = e.ID
			idx.typeByLoc[e.Locs] = e.Type
		}
	}
	for _, e := range s.Known {
		if _, dup := idx.known[e.ID]; !dup {
			idx.known[e.ID] = e
		}
		if _, dup := idx.idByLoc[e.Locs]; !dup {
			idx.idByLoc[e.Locs] = e.ID
			idx.typeByLoc[e.Locs] = e.Type
		}
	}

	s.index = idx
	return idx
}

// PredictedLocation returns the location of a predicted entity
func (s *Sentence) PredictedLocation(id string) (Location, bool) {
	e, ok := s.lookup().predicted[id]
	return e.Locs, ok
}

// KnownLocation returns the location of a known entity
func (s *Sentence) KnownLocation(id string) (Location, bool) {
	e, ok := s.lookup().known[id]
	return e.Locs, ok
}

// TypeAt returns the trigger type registered at a location
func (s *Sentence) TypeAt(loc Location) (string, bool) {
	t, ok := s.lookup().typeByLoc[loc]
	return t, ok
}

// TriggerAt returns the trigger ID registered at a location
func (s *Sentence) TriggerAt(loc Location) (string, bool) {
	id, ok := s.lookup().idByLoc[loc]
	return id, ok
}

// Spans returns predicted entities followed by known entities, in registration order
func (s *Sentence) Spans() []Entity {
	s.mu.Lock()
	defer s.mu.Unlock()
	spans := make([]Entity, 0, len(s.Predicted)+len(s.Known))
	spans = append(spans, s.Predicted...)
	spans = append(spans, s.Known...)
	return spans
}

// Words returns the token words covered by a location, skipping offsets outside the sentence
func (s *Sentence) Words(loc Location) []string {
	var words []string
	for _, o := range loc.Offsets() {
		if o >= 0 && o < len(s.Tokens) {
			words = append(words, s.Tokens[o].Word)
		}
	}
	return words
}
