package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/relex/internal/cache"
	"github.com/ppiankov/relex/internal/classify"
	"github.com/ppiankov/relex/internal/extract"
	"github.com/ppiankov/relex/internal/features"
	"github.com/ppiankov/relex/internal/matrix"
	"github.com/ppiankov/relex/internal/metrics"
	"github.com/ppiankov/relex/internal/model"
	"github.com/ppiankov/relex/internal/targets"
	"go.uber.org/zap"
)

// ErrConfiguration marks a training set no classifier can be fitted on
var ErrConfiguration = errors.New("invalid training configuration")

// ConfigurationError reports a label set without a negative or without a positive class
type ConfigurationError struct {
	Negatives int
	Positives int
}

func (e *ConfigurationError) Error() string {
	switch {
	case e.Negatives == 0 && e.Positives == 0:
		return fmt.Sprintf("%s: no training examples", ErrConfiguration)
	case e.Negatives == 0:
		return fmt.Sprintf("%s: all %d examples are positive, need at least one negative", ErrConfiguration, e.Positives)
	default:
		return fmt.Sprintf("%s: all %d examples are negative, need at least one positive", ErrConfiguration, e.Negatives)
	}
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// CheckLabels fails unless labels hold at least one zero and one nonzero label
func CheckLabels(labels []int) error {
	var neg, pos int
	for _, l := range labels {
		if l == 0 {
			neg++
		} else {
			pos++
		}
	}
	if neg == 0 || pos == 0 {
		return &ConfigurationError{Negatives: neg, Positives: pos}
	}
	return nil
}

// Model bundles everything fitted at training time. Prediction reuses it unchanged.
type Model struct {
	Relations  []string             `json:"relations"` // Relation names by class ID - 1
	Vectorizer *features.Vectorizer `json:"vectorizer"`
	Selector   *features.Selector   `json:"selector,omitempty"`
	Classifier *classify.Model      `json:"classifier"`
}

// Transform maps examples onto the fitted feature space
func (m *Model) Transform(examples []extract.Example) *matrix.COO {
	x := m.Vectorizer.Transform(examples)
	if m.Selector != nil {
		x = m.Selector.Transform(x)
	}
	return x
}

// RelationName returns the relation predicted by a nonzero class
func (m *Model) RelationName(class int) (string, bool) {
	if class < 1 || class > len(m.Relations) {
		return "", false
	}
	return m.Relations[class-1], true
}

// Pipeline trains a relation classifier and applies it to new corpora
type Pipeline struct {
	config    *model.Config
	targets   *targets.Set
	generator *extract.Generator
	cache     cache.Cache
	cacheKey  string
	logger    *zap.Logger
}

// New creates a pipeline for the given targets
func New(cfg *model.Config, set *targets.Set, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := extract.Options{
		SentenceRange: cfg.Generation.SentenceRange,
		DoFiltering:   cfg.Generation.DoFiltering,
		Workers:       cfg.Generation.Workers,
	}
	return &Pipeline{
		config:    cfg,
		targets:   set,
		generator: extract.NewGenerator(set, opts, logger),
		logger:    logger,
	}
}

// UseCache makes Train look up and store fitted models under key
func (p *Pipeline) UseCache(c cache.Cache, key string) {
	p.cache = c
	p.cacheKey = key
}

// Generate runs candidate generation over a corpus
func (p *Pipeline) Generate(ctx context.Context, corpus model.Corpus) (*extract.Result, error) {
	return p.generator.Run(ctx, corpus)
}

// TrainResult is the outcome of Train
type TrainResult struct {
	Model      *Model
	Generation *extract.Result
	Cached     bool
}

// Train generates labeled examples from a corpus and fits a model on them.
// The label precondition is checked before anything is vectorized.
func (p *Pipeline) Train(ctx context.Context, corpus model.Corpus) (*TrainResult, error) {
	gen, err := p.Generate(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("generate training examples: %w", err)
	}

	labels := gen.Labels()
	if err := CheckLabels(labels); err != nil {
		return nil, err
	}

	if p.cache != nil {
		var m Model
		if cache.GetJSON(p.cache, p.cacheKey, &m) && m.Classifier != nil && m.Vectorizer != nil {
			p.logger.Info("using cached model", zap.String("key", p.cacheKey))
			return &TrainResult{Model: &m, Generation: gen, Cached: true}, nil
		}
	}

	m, err := p.Fit(gen.Examples(), labels)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := cache.SetJSON(p.cache, p.cacheKey, m, 0); err != nil {
			p.logger.Warn("failed to cache model", zap.Error(err))
		}
	}

	return &TrainResult{Model: m, Generation: gen}, nil
}

// Fit vectorizes examples, fits the feature selector and trains the classifier
func (p *Pipeline) Fit(examples []extract.Example, labels []int) (*Model, error) {
	if err := CheckLabels(labels); err != nil {
		return nil, err
	}

	start := time.Now()
	vec := features.NewVectorizer(p.config.Features)
	x := vec.Fit(examples)

	m := &Model{
		Relations:  p.targets.Relations(),
		Vectorizer: vec,
	}
	if p.config.Features.MinCount > 1 {
		m.Selector = features.FitSelector(x, p.config.Features.MinCount)
		x = m.Selector.Transform(x)
	}

	clf, err := classify.Train(x, labels, p.config.Classifier)
	if err != nil {
		return nil, fmt.Errorf("train classifier: %w", err)
	}
	m.Classifier = clf

	_, dim := x.Dims()
	p.logger.Info("trained classifier",
		zap.Int("examples", len(examples)),
		zap.Int("vocabulary", vec.Dim()),
		zap.Int("features", dim),
		zap.Ints("classes", clf.Classes),
		zap.Duration("took", time.Since(start)))

	return m, nil
}

// PredictResult is the outcome of Predict
type PredictResult struct {
	Candidates int
	Relations  int
}

// Predict clears the relations of every document, classifies all candidates
// and attaches the nonzero predictions as relations
func (p *Pipeline) Predict(ctx context.Context, m *Model, corpus model.Corpus) (*PredictResult, error) {
	ResetRelations(corpus)

	gen, err := p.Generate(ctx, corpus)
	if err != nil {
		return nil, fmt.Errorf("generate test examples: %w", err)
	}

	examples := gen.Examples()
	out := &PredictResult{Candidates: len(examples)}
	if len(examples) == 0 {
		return out, nil
	}

	x := m.Transform(examples)
	probs, err := m.Classifier.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}
	preds, err := m.Classifier.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("predict: %w", err)
	}

	for i, class := range preds {
		if class == 0 {
			continue
		}
		col, _ := m.Classifier.Column(class)
		rel, err := reconstruct(m, examples[i], class, probs.At(i, col))
		if err != nil {
			return nil, err
		}

		examples[i].Doc.Relations = append(examples[i].Doc.Relations, rel)
		metrics.PredictionRelations.WithLabelValues(rel.Type).Inc()
		out.Relations++
	}

	p.logger.Info("predicted relations",
		zap.Int("candidates", out.Candidates),
		zap.Int("relations", out.Relations))

	return out, nil
}

// reconstruct turns a classified example back into a relation between trigger IDs
func reconstruct(m *Model, ex extract.Example, class int, confidence float64) (model.Relation, error) {
	name, ok := m.RelationName(class)
	if !ok {
		return model.Relation{}, fmt.Errorf("class %d has no relation name", class)
	}

	s1, s2 := ex.Sentence1(), ex.Sentence2()
	s1.Invert()
	s2.Invert()

	arg1, ok := s1.TriggerAt(ex.Arg1.Loc)
	if !ok {
		return model.Relation{}, fmt.Errorf("no trigger at %s in document %s", ex.Arg1, ex.Document)
	}
	arg2, ok := s2.TriggerAt(ex.Arg2.Loc)
	if !ok {
		return model.Relation{}, fmt.Errorf("no trigger at %s in document %s", ex.Arg2, ex.Document)
	}

	return model.Relation{Type: name, Arg1: arg1, Arg2: arg2, Confidence: confidence}, nil
}

// ResetRelations drops every relation of every document
func ResetRelations(corpus model.Corpus) {
	for _, doc := range corpus {
		doc.Relations = []model.Relation{}
	}
}
