package extract

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ppiankov/relex/internal/model"
	"github.com/ppiankov/relex/internal/targets"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loc(offsets ...int) model.Location {
	return model.NewLocation(offsets...)
}

// scenarioDoc has known span A (Gene) and predicted span B (Event) in
// sentence 0, and predicted span C (Event) in sentence 1
func scenarioDoc() *model.Document {
	return &model.Document{
		Sentences: []*model.Sentence{
			{
				Tokens:    []model.Token{{Word: "MDM2"}, {Word: "binds"}},
				Predicted: []model.Entity{{ID: "B", Type: "Event", Locs: loc(1)}},
				Known:     []model.Entity{{ID: "A", Type: "Gene", Locs: loc(0)}},
			},
			{
				Tokens:    []model.Token{{Word: "expression"}},
				Predicted: []model.Entity{{ID: "C", Type: "Event", Locs: loc(0)}},
			},
		},
		Relations: []model.Relation{{Type: "Binds", Arg1: "B", Arg2: "A"}},
	}
}

// chainDoc has n sentences with one Gene span each, IDs G0..G(n-1)
func chainDoc(n int) *model.Document {
	doc := &model.Document{}
	for i := 0; i < n; i++ {
		doc.Sentences = append(doc.Sentences, &model.Sentence{
			Tokens: []model.Token{{Word: fmt.Sprintf("gene%d", i)}},
			Known:  []model.Entity{{ID: fmt.Sprintf("G%d", i), Type: "Gene", Locs: loc(0)}},
		})
	}
	return doc
}

func pairIDs(t *testing.T, c Candidate) string {
	t.Helper()
	id1, ok := c.Example.Sentence1().TriggerAt(c.Example.Arg1.Loc)
	require.True(t, ok)
	id2, ok := c.Example.Sentence2().TriggerAt(c.Example.Arg2.Loc)
	require.True(t, ok)
	return id1 + "," + id2
}

func TestResolve_Scopes(t *testing.T) {
	doc := scenarioDoc()

	pos, err := Resolve(doc.Sentences, "C", ScopeEither)
	require.NoError(t, err)
	assert.Equal(t, Position{Sentence: 1, Loc: loc(0)}, pos)

	pos, err = Resolve(doc.Sentences, "A", ScopeKnown)
	require.NoError(t, err)
	assert.Equal(t, Position{Sentence: 0, Loc: loc(0)}, pos)

	_, err = Resolve(doc.Sentences, "A", ScopePredicted)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "event trigger")

	_, err = Resolve(doc.Sentences, "B", ScopeKnown)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "argument trigger")
}

func TestResolve_PredictedBeforeKnown(t *testing.T) {
	sentences := []*model.Sentence{
		{Known: []model.Entity{{ID: "X", Type: "Gene", Locs: loc(4)}}},
		{Predicted: []model.Entity{{ID: "Y", Type: "Event", Locs: loc(1)}}, Known: []model.Entity{{ID: "Y", Type: "Gene", Locs: loc(2)}}},
	}

	pos, err := Resolve(sentences, "Y", ScopeEither)
	require.NoError(t, err)
	assert.Equal(t, Position{Sentence: 1, Loc: loc(1)}, pos)

	// Earlier sentences win regardless of registry
	pos, err = Resolve(sentences, "X", ScopeEither)
	require.NoError(t, err)
	assert.Equal(t, 0, pos.Sentence)
}

func TestResolve_NotFound(t *testing.T) {
	_, err := Resolve(scenarioDoc().Sentences, "missing", ScopeEither)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTriggerNotFound))

	var rerr *TriggerResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "missing", rerr.TriggerID)
}

func TestGenerator_EndToEndScenario(t *testing.T) {
	set := targets.New([]string{"Binds"}, []targets.TypePair{{Type1: "Event", Type2: "Gene"}})
	gen := NewGenerator(set, Options{SentenceRange: 1, Workers: 1}, nil)

	cands, warnings, err := gen.Document("doc1", scenarioDoc())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	got := make(map[string]int)
	var order []string
	for _, c := range cands {
		ids := pairIDs(t, c)
		got[ids] = c.Label
		order = append(order, ids)
	}

	assert.Equal(t, map[string]int{
		"B,A": 1,
		"A,B": 0,
		"B,C": 0,
		"A,C": 0,
		"C,B": 0,
		"C,A": 0,
	}, got)
	assert.Equal(t, []string{"B,A", "A,B", "B,C", "A,C", "C,B", "C,A"}, order)

	assert.Equal(t, targets.TypePair{Type1: "Event", Type2: "Gene"}, cands[0].Types)
	assert.Equal(t, "doc1", cands[0].Example.Document)
}

func TestGenerator_SentenceRangeZeroSameSentenceOnly(t *testing.T) {
	set := targets.New([]string{"Binds"}, nil)
	gen := NewGenerator(set, Options{SentenceRange: 0}, nil)

	doc := scenarioDoc()
	cands, warnings, err := gen.Document("doc1", doc)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, cands, 2)
	for _, c := range cands {
		assert.Equal(t, c.Example.Arg1.Sentence, c.Example.Arg2.Sentence)
	}
}

func TestGenerator_WindowBounds(t *testing.T) {
	set := targets.New(nil, nil)

	for _, r := range []int{0, 1, 2, 10} {
		t.Run(fmt.Sprintf("range=%d", r), func(t *testing.T) {
			n := 5
			gen := NewGenerator(set, Options{SentenceRange: r}, nil)
			cands, _, err := gen.Document("chain", chainDoc(n))
			require.NoError(t, err)

			expected := 0
			for i := 0; i < n; i++ {
				lo, hi := max(0, i-r), min(n-1, i+r)
				expected += hi - lo // every sentence in the window except itself
			}
			assert.Len(t, cands, expected)

			for _, c := range cands {
				i, j := c.Example.Arg1.Sentence, c.Example.Arg2.Sentence
				assert.GreaterOrEqual(t, j, max(0, i-r))
				assert.LessOrEqual(t, j, min(n-1, i+r))
			}
		})
	}
}

func TestGenerator_NoSelfPairs(t *testing.T) {
	doc := &model.Document{
		Sentences: []*model.Sentence{{
			Predicted: []model.Entity{{ID: "E1", Type: "Event", Locs: loc(1)}, {ID: "E2", Type: "Event", Locs: loc(2, 3)}},
			Known:     []model.Entity{{ID: "T1", Type: "Gene", Locs: loc(0)}},
		}},
	}

	gen := NewGenerator(targets.New(nil, nil), Options{}, nil)
	cands, _, err := gen.Document("d", doc)
	require.NoError(t, err)

	assert.Len(t, cands, 6)
	for _, c := range cands {
		k := c.Example.Key()
		assert.False(t, k.Sentence1 == k.Sentence2 && k.Loc1 == k.Loc2, "self pair generated: %s", k)
	}
}

func TestGenerator_Filtering(t *testing.T) {
	allowed := []targets.TypePair{{Type1: "Event", Type2: "Gene"}}
	set := targets.New([]string{"Binds"}, allowed)
	gen := NewGenerator(set, Options{SentenceRange: 1, DoFiltering: true}, nil)

	cands, warnings, err := gen.Document("doc1", scenarioDoc())
	require.NoError(t, err)
	assert.Empty(t, warnings)

	require.Len(t, cands, 2)
	assert.Equal(t, "B,A", pairIDs(t, cands[0]))
	assert.Equal(t, 1, cands[0].Label)
	assert.Equal(t, "C,A", pairIDs(t, cands[1]))
	assert.Equal(t, 0, cands[1].Label)
	for _, c := range cands {
		assert.True(t, set.Allows(c.Types.Type1, c.Types.Type2))
	}
}

func TestGenerator_FilteredGoldRelationWarns(t *testing.T) {
	set := targets.New([]string{"Binds"}, []targets.TypePair{{Type1: "Gene", Type2: "Event"}})
	gen := NewGenerator(set, Options{SentenceRange: 1, DoFiltering: true}, nil)

	cands, warnings, err := gen.Document("doc1", scenarioDoc())
	require.NoError(t, err)

	for _, c := range cands {
		assert.Zero(t, c.Label)
	}
	require.Len(t, warnings, 1)
	assert.Equal(t, "Binds", warnings[0].Relation)
}

func TestGenerator_OutOfWindowGoldRelationWarns(t *testing.T) {
	doc := chainDoc(3)
	doc.Relations = []model.Relation{{Type: "Regulates", Arg1: "G0", Arg2: "G2"}}
	set := targets.New([]string{"Regulates"}, nil)

	gen := NewGenerator(set, Options{SentenceRange: 1}, nil)
	cands, warnings, err := gen.Document("chain", doc)
	require.NoError(t, err)

	for _, c := range cands {
		assert.Zero(t, c.Label)
	}
	require.Len(t, warnings, 1)
	w := warnings[0]
	assert.Equal(t, "chain", w.Document)
	assert.Equal(t, Key{Sentence1: 0, Loc1: loc(0), Sentence2: 2, Loc2: loc(0)}, w.Key)
	assert.Equal(t, targets.TypePair{Type1: "Gene", Type2: "Gene"}, w.Types)
	assert.Contains(t, w.String(), "chain")

	// Widening the window recovers the relation
	gen = NewGenerator(set, Options{SentenceRange: 2}, nil)
	cands, warnings, err = gen.Document("chain", doc)
	require.NoError(t, err)
	assert.Empty(t, warnings)

	positives := 0
	for _, c := range cands {
		if c.Label != 0 {
			positives++
			assert.Equal(t, 1, c.Label)
		}
	}
	assert.Equal(t, 1, positives)
}

func TestGenerator_RelationOutsideTargetsIsNegative(t *testing.T) {
	doc := scenarioDoc()
	doc.Relations = []model.Relation{{Type: "Inhibits", Arg1: "B", Arg2: "A"}}

	gen := NewGenerator(targets.New([]string{"Binds"}, nil), Options{}, nil)
	cands, warnings, err := gen.Document("doc1", doc)
	require.NoError(t, err)

	assert.Empty(t, warnings)
	require.NotEmpty(t, cands)
	for _, c := range cands {
		assert.Zero(t, c.Label)
	}
}

func TestGenerator_UnresolvableTriggerFails(t *testing.T) {
	doc := scenarioDoc()
	doc.Relations = append(doc.Relations, model.Relation{Type: "Inhibits", Arg1: "B", Arg2: "T99"})

	gen := NewGenerator(targets.New([]string{"Binds"}, nil), Options{}, nil)
	_, _, err := gen.Document("broken.txt", doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTriggerNotFound))

	var rerr *TriggerResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "broken.txt", rerr.Document)
	assert.Equal(t, "T99", rerr.TriggerID)
}

func TestGenerator_EmptyDocument(t *testing.T) {
	gen := NewGenerator(targets.New([]string{"Binds"}, nil), Options{SentenceRange: 3}, nil)

	cands, warnings, err := gen.Document("empty", &model.Document{})
	require.NoError(t, err)
	assert.Empty(t, cands)
	assert.Empty(t, warnings)

	cands, _, err = gen.Document("nospans", &model.Document{Sentences: []*model.Sentence{{}, {}}})
	require.NoError(t, err)
	assert.Empty(t, cands)
}

func testCorpus() model.Corpus {
	corpus := model.Corpus{}
	for i := 0; i < 6; i++ {
		doc := scenarioDoc()
		if i%2 == 1 {
			doc = chainDoc(4)
			doc.Relations = []model.Relation{{Type: "Binds", Arg1: "G0", Arg2: "G3"}}
		}
		corpus[fmt.Sprintf("doc%02d", i)] = doc
	}
	return corpus
}

func TestGenerator_RunDeterministicAcrossWorkers(t *testing.T) {
	set := targets.New([]string{"Binds"}, nil)

	seq, err := NewGenerator(set, Options{SentenceRange: 1, Workers: 1}, nil).Run(context.Background(), testCorpus())
	require.NoError(t, err)

	corpus := testCorpus()
	par, err := NewGenerator(set, Options{SentenceRange: 1, Workers: 4}, nil).Run(context.Background(), corpus)
	require.NoError(t, err)

	require.Equal(t, len(seq.Candidates), len(par.Candidates))
	for i := range seq.Candidates {
		a, b := seq.Candidates[i], par.Candidates[i]
		assert.Equal(t, a.Label, b.Label)
		assert.Equal(t, a.Example.Document, b.Example.Document)
		assert.Equal(t, a.Example.Key(), b.Example.Key())
	}
	assert.Equal(t, seq.Warnings, par.Warnings)

	// Documents appear in sorted key order
	assert.Equal(t, "doc00", par.Candidates[0].Example.Document)
	assert.Len(t, par.Warnings, 3, "each chain document loses its out-of-window relation")
}

func TestGenerator_RunLabels(t *testing.T) {
	set := targets.New([]string{"Binds"}, nil)
	res, err := NewGenerator(set, Options{SentenceRange: 1, Workers: 2}, nil).Run(context.Background(), model.Corpus{"a": scenarioDoc()})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 0, 0, 0, 0, 0}, res.Labels())
	assert.Len(t, res.Examples(), 6)
	assert.Equal(t, map[int]int{0: 5, 1: 1}, res.LabelCounts())
}

func TestGenerator_RunAbortsOnResolutionError(t *testing.T) {
	corpus := testCorpus()
	corpus["doc03"].Relations = append(corpus["doc03"].Relations, model.Relation{Type: "Binds", Arg1: "nope", Arg2: "G0"})

	_, err := NewGenerator(targets.New([]string{"Binds"}, nil), Options{Workers: 3}, nil).Run(context.Background(), corpus)
	require.Error(t, err)

	var rerr *TriggerResolutionError
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "doc03", rerr.Document)
}

func TestObservedRelations(t *testing.T) {
	corpus := model.Corpus{"a": scenarioDoc(), "b": scenarioDoc()}
	corpus["b"].Relations = append(corpus["b"].Relations, model.Relation{Type: "Affects", Arg1: "C", Arg2: "A"})

	obs, err := ObservedRelations(corpus)
	require.NoError(t, err)
	assert.Equal(t, []Observed{
		{Relation: "Affects", Types: targets.TypePair{Type1: "Event", Type2: "Gene"}},
		{Relation: "Binds", Types: targets.TypePair{Type1: "Event", Type2: "Gene"}},
	}, obs)
}

func TestPositiveIndex_MatchConsumes(t *testing.T) {
	doc := scenarioDoc()
	idx, err := BuildPositiveIndex(doc.Sentences, doc.Relations, targets.New([]string{"Binds"}, nil))
	require.NoError(t, err)
	require.Equal(t, 1, idx.Len())

	key := Key{Sentence1: 0, Loc1: loc(1), Sentence2: 0, Loc2: loc(0)}
	assert.Len(t, idx.Unprocessed("doc1"), 1)

	assert.Equal(t, 0, idx.Match(Key{Sentence1: 0, Loc1: loc(0), Sentence2: 0, Loc2: loc(1)}))
	assert.Equal(t, 1, idx.Match(key))
	assert.Empty(t, idx.Unprocessed("doc1"))
}
