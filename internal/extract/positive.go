package extract

import (
	"fmt"

	"github.com/ppiankov/relex/internal/model"
	"github.com/ppiankov/relex/internal/targets"
)

// Key identifies an ordered span pair within a document.
// Gold relations and generated candidates build it the same way: sentence
// index and location of the first argument, then of the second.
type Key struct {
	Sentence1 int
	Loc1      model.Location
	Sentence2 int
	Loc2      model.Location
}

// NewKey builds the key of an ordered position pair
func NewKey(arg1, arg2 Position) Key {
	return Key{Sentence1: arg1.Sentence, Loc1: arg1.Loc, Sentence2: arg2.Sentence, Loc2: arg2.Loc}
}

func (k Key) String() string {
	return fmt.Sprintf("(%d,[%s],%d,[%s])", k.Sentence1, k.Loc1, k.Sentence2, k.Loc2)
}

type positive struct {
	classID  int
	relation string
	types    targets.TypePair
	consumed bool
}

// PositiveIndex maps gold relation keys to class IDs and tracks which keys a
// candidate has matched
type PositiveIndex struct {
	entries map[Key]*positive
	order   []Key
}

// BuildPositiveIndex resolves both endpoints of every gold relation and indexes
// the relations whose name is in the target set. Relations with other names are
// dropped without a warning. An unresolvable endpoint is an error even when the
// relation would have been dropped.
func BuildPositiveIndex(sentences []*model.Sentence, gold []model.Relation, set *targets.Set) (*PositiveIndex, error) {
	idx := &PositiveIndex{entries: make(map[Key]*positive, len(gold))}

	for _, rel := range gold {
		arg1, err := Resolve(sentences, rel.Arg1, ScopeEither)
		if err != nil {
			return nil, err
		}
		arg2, err := Resolve(sentences, rel.Arg2, ScopeEither)
		if err != nil {
			return nil, err
		}

		classID, ok := set.ID(rel.Type)
		if !ok {
			continue
		}

		key := NewKey(arg1, arg2)
		if _, exists := idx.entries[key]; !exists {
			idx.order = append(idx.order, key)
		}
		// A later relation on the same span pair replaces the earlier one
		idx.entries[key] = &positive{
			classID:  classID,
			relation: rel.Type,
			types:    targets.TypePair{Type1: typeAt(sentences, arg1), Type2: typeAt(sentences, arg2)},
		}
	}

	return idx, nil
}

// Match returns the class ID for key and marks it consumed, or 0 if key is not a gold relation
func (p *PositiveIndex) Match(key Key) int {
	e, ok := p.entries[key]
	if !ok {
		return 0
	}
	e.consumed = true
	return e.classID
}

// Len returns the number of indexed gold relations
func (p *PositiveIndex) Len() int {
	return len(p.order)
}

// Unprocessed returns a warning for every indexed relation no candidate matched, in gold order
func (p *PositiveIndex) Unprocessed(document string) []Warning {
	var warnings []Warning
	for _, key := range p.order {
		e := p.entries[key]
		if e.consumed {
			continue
		}
		warnings = append(warnings, Warning{
			Document: document,
			Relation: e.relation,
			Types:    e.types,
			Key:      key,
		})
	}
	return warnings
}
