package extract

import (
	"errors"
	"fmt"

	"github.com/ppiankov/relex/internal/model"
)

// ErrTriggerNotFound marks a trigger ID that no sentence of a document registers
var ErrTriggerNotFound = errors.New("trigger not found")

// Scope selects which sentence registries a trigger lookup searches
type Scope int

const (
	ScopeEither    Scope = iota // Predicted registry first, then known
	ScopePredicted              // Predicted (event trigger) registry only
	ScopeKnown                  // Known (argument) registry only
)

func (s Scope) String() string {
	switch s {
	case ScopePredicted:
		return "event trigger"
	case ScopeKnown:
		return "argument trigger"
	default:
		return "trigger"
	}
}

// TriggerResolutionError reports a trigger ID absent from every sentence.
// It means annotations and sentences disagree, so the document cannot be processed.
type TriggerResolutionError struct {
	Document  string
	TriggerID string
	Scope     Scope
}

func (e *TriggerResolutionError) Error() string {
	msg := fmt.Sprintf("unable to find location of %s ID (%s) in sentences", e.Scope, e.TriggerID)
	if e.Document != "" {
		msg += " of document " + e.Document
	}
	return fmt.Sprintf("%s: %s", ErrTriggerNotFound, msg)
}

func (e *TriggerResolutionError) Unwrap() error { return ErrTriggerNotFound }

// Position is a span within a document: sentence index plus span location
type Position struct {
	Sentence int
	Loc      model.Location
}

func (p Position) String() string {
	return fmt.Sprintf("%d:[%s]", p.Sentence, p.Loc)
}

// Resolve scans sentences in order and returns the first position registering triggerID.
// With ScopeEither each sentence is checked predicted-first, then known.
func Resolve(sentences []*model.Sentence, triggerID string, scope Scope) (Position, error) {
	for i, s := range sentences {
		if scope == ScopeEither || scope == ScopePredicted {
			if loc, ok := s.PredictedLocation(triggerID); ok {
				return Position{Sentence: i, Loc: loc}, nil
			}
		}
		if scope == ScopeEither || scope == ScopeKnown {
			if loc, ok := s.KnownLocation(triggerID); ok {
				return Position{Sentence: i, Loc: loc}, nil
			}
		}
	}
	return Position{}, &TriggerResolutionError{TriggerID: triggerID, Scope: scope}
}

// typeAt returns the trigger type at a resolved position
func typeAt(sentences []*model.Sentence, p Position) string {
	t, _ := sentences[p.Sentence].TypeAt(p.Loc)
	return t
}
