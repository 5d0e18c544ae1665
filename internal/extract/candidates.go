package extract

import (
	"fmt"

	"github.com/ppiankov/relex/internal/model"
	"github.com/ppiankov/relex/internal/targets"
)

// Example is one ordered span pair of a document considered for relation classification
type Example struct {
	Document string
	Doc      *model.Document
	Arg1     Position
	Arg2     Position
}

// Key returns the matching key of the example
func (e Example) Key() Key {
	return NewKey(e.Arg1, e.Arg2)
}

// Sentence1 returns the sentence holding the first argument
func (e Example) Sentence1() *model.Sentence {
	return e.Doc.Sentences[e.Arg1.Sentence]
}

// Sentence2 returns the sentence holding the second argument
func (e Example) Sentence2() *model.Sentence {
	return e.Doc.Sentences[e.Arg2.Sentence]
}

func (e Example) String() string {
	return fmt.Sprintf("%s %s->%s", e.Document, e.Arg1, e.Arg2)
}

// Candidate is a labeled example. Label 0 means no relation.
type Candidate struct {
	Label   int
	Example Example
	Types   targets.TypePair
}

// Warning reports a gold relation no candidate matched, usually because its
// arguments lie outside the sentence window or their types are filtered out
type Warning struct {
	Document string
	Relation string
	Types    targets.TypePair
	Key      Key
}

func (w Warning) String() string {
	return fmt.Sprintf("unprocessed argument trigger found: %s (%s %s) in file: %s", w.Key, w.Relation, w.Types, w.Document)
}

// Options controls candidate generation
type Options struct {
	SentenceRange int  // Sentences on either side that may pair with a sentence
	DoFiltering   bool // Keep only type pairs allowed by the target set
	Workers       int  // Documents generated in parallel
}

// candidates enumerates every span pair of a document within the sentence window,
// labels each one against the positive index and marks matched keys consumed
func candidates(name string, doc *model.Document, idx *PositiveIndex, set *targets.Set, opts Options) []Candidate {
	var out []Candidate
	n := len(doc.Sentences)

	for i := 0; i < n; i++ {
		spans1 := doc.Sentences[i].Spans()
		lo := max(i-opts.SentenceRange, 0)
		hi := min(i+opts.SentenceRange, n-1)

		for j := lo; j <= hi; j++ {
			spans2 := doc.Sentences[j].Spans()

			for _, s1 := range spans1 {
				for _, s2 := range spans2 {
					// No self relations
					if i == j && s1.Locs == s2.Locs {
						continue
					}
					if opts.DoFiltering && !set.Allows(s1.Type, s2.Type) {
						continue
					}

					ex := Example{
						Document: name,
						Doc:      doc,
						Arg1:     Position{Sentence: i, Loc: s1.Locs},
						Arg2:     Position{Sentence: j, Loc: s2.Locs},
					}
					out = append(out, Candidate{
						Label:   idx.Match(ex.Key()),
						Example: ex,
						Types:   targets.TypePair{Type1: s1.Type, Type2: s2.Type},
					})
				}
			}
		}
	}

	return out
}
