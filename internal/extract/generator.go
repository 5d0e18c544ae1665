package extract

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ppiankov/relex/internal/metrics"
	"github.com/ppiankov/relex/internal/model"
	"github.com/ppiankov/relex/internal/targets"
	"github.com/ppiankov/relex/internal/worker"
	"go.uber.org/zap"
)

// Generator turns a corpus into labeled candidate examples
type Generator struct {
	targets *targets.Set
	opts    Options
	logger  *zap.Logger
}

// NewGenerator creates a generator for the given target set
func NewGenerator(set *targets.Set, opts Options, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		targets: set,
		opts:    opts,
		logger:  logger,
	}
}

// Result is the flat output of a generation pass
type Result struct {
	Candidates []Candidate
	Warnings   []Warning
}

// Labels returns the label of every candidate
func (r *Result) Labels() []int {
	labels := make([]int, len(r.Candidates))
	for i, c := range r.Candidates {
		labels[i] = c.Label
	}
	return labels
}

// Examples returns the example of every candidate
func (r *Result) Examples() []Example {
	examples := make([]Example, len(r.Candidates))
	for i, c := range r.Candidates {
		examples[i] = c.Example
	}
	return examples
}

// LabelCounts returns the number of candidates per label
func (r *Result) LabelCounts() map[int]int {
	counts := make(map[int]int)
	for _, c := range r.Candidates {
		counts[c.Label]++
	}
	return counts
}

// Document generates the candidates of a single document and reports the
// gold relations none of them matched
func (g *Generator) Document(name string, doc *model.Document) ([]Candidate, []Warning, error) {
	idx, err := BuildPositiveIndex(doc.Sentences, doc.Relations, g.targets)
	if err != nil {
		return nil, nil, fmt.Errorf("build positive index: %w", withDocument(err, name))
	}

	cands := candidates(name, doc, idx, g.targets, g.opts)
	warnings := idx.Unprocessed(name)

	metrics.GenerationDocuments.Inc()
	for _, c := range cands {
		metrics.ObserveExample(c.Label)
	}
	metrics.GenerationWarnings.Add(float64(len(warnings)))

	g.logger.Debug("generated candidates",
		zap.String("document", name),
		zap.Int("sentences", len(doc.Sentences)),
		zap.Int("gold", idx.Len()),
		zap.Int("candidates", len(cands)),
		zap.Int("warnings", len(warnings)))

	return cands, warnings, nil
}

// documentJob generates one document inside the worker pool
type documentJob struct {
	gen  *Generator
	name string
	doc  *model.Document
}

type documentResult struct {
	candidates []Candidate
	warnings   []Warning
	err        error
}

func (r *documentResult) GetError() error {
	return r.err
}

func (j *documentJob) Execute(ctx context.Context) worker.Result {
	cands, warnings, err := j.gen.Document(j.name, j.doc)
	return &documentResult{candidates: cands, warnings: warnings, err: err}
}

// Run generates candidates for every document of the corpus. Documents are
// visited in sorted key order and the output is identical whatever the
// number of workers. The first document that fails to resolve aborts the run.
func (g *Generator) Run(ctx context.Context, corpus model.Corpus) (*Result, error) {
	keys := corpus.Keys()

	jobs := make([]worker.Job, len(keys))
	for i, k := range keys {
		jobs[i] = &documentJob{gen: g, name: k, doc: corpus[k]}
	}

	results := worker.RunOrdered(ctx, g.opts.Workers, jobs)
	if err := worker.FirstError(ctx, results); err != nil {
		return nil, err
	}

	out := &Result{}
	for _, r := range results {
		dr := r.(*documentResult)
		out.Candidates = append(out.Candidates, dr.candidates...)
		out.Warnings = append(out.Warnings, dr.warnings...)
	}

	for _, w := range out.Warnings {
		g.logger.Warn("unprocessed gold relation",
			zap.String("document", w.Document),
			zap.String("relation", w.Relation),
			zap.String("key", w.Key.String()))
	}

	return out, nil
}

// Observed is a relation name seen in gold data together with its argument types
type Observed struct {
	Relation string
	Types    targets.TypePair
}

// ObservedRelations lists every distinct (relation, type1, type2) among the
// gold relations of a corpus, sorted
func ObservedRelations(corpus model.Corpus) ([]Observed, error) {
	seen := make(map[Observed]bool)
	var out []Observed

	for _, name := range corpus.Keys() {
		doc := corpus[name]
		for _, rel := range doc.Relations {
			arg1, err := Resolve(doc.Sentences, rel.Arg1, ScopeEither)
			if err != nil {
				return nil, withDocument(err, name)
			}
			arg2, err := Resolve(doc.Sentences, rel.Arg2, ScopeEither)
			if err != nil {
				return nil, withDocument(err, name)
			}

			o := Observed{
				Relation: rel.Type,
				Types:    targets.TypePair{Type1: typeAt(doc.Sentences, arg1), Type2: typeAt(doc.Sentences, arg2)},
			}
			if !seen[o] {
				seen[o] = true
				out = append(out, o)
			}
		}
	}

	sortObserved(out)
	return out, nil
}

func withDocument(err error, name string) error {
	var rerr *TriggerResolutionError
	if errors.As(err, &rerr) {
		rerr.Document = name
	}
	return err
}

func sortObserved(obs []Observed) {
	sort.Slice(obs, func(i, j int) bool {
		a, b := obs[i], obs[j]
		if a.Relation != b.Relation {
			return a.Relation < b.Relation
		}
		if a.Types.Type1 != b.Types.Type1 {
			return a.Types.Type1 < b.Types.Type1
		}
		return a.Types.Type2 < b.Types.Type2
	})
}
