package cli

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/ppiankov/relex/internal/cache"
	"github.com/ppiankov/relex/internal/corpus"
	"github.com/ppiankov/relex/internal/extract"
	"github.com/ppiankov/relex/internal/metrics"
	"github.com/ppiankov/relex/internal/model"
	"github.com/ppiankov/relex/internal/pipeline"
	"github.com/ppiankov/relex/internal/store"
	"github.com/ppiankov/relex/internal/targets"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var (
	trainingFile         string
	testingFile          string
	relationDescriptions string
	parameters           string
	outFile              string
	noCache              bool
	metricsFile          string
	dbPath               string
	workers              int
	runTimeout           time.Duration
)

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&trainingFile, "trainingFile", "", "training corpus (JSON)")
	flags.StringVar(&testingFile, "testingFile", "", "corpus to predict relations for (JSON)")
	flags.StringVar(&relationDescriptions, "relationDescriptions", "", "relation description file")
	flags.StringVar(&parameters, "parameters", "", `run parameters, e.g. "sentenceRange:1;doFiltering:True"`)
	flags.StringVar(&outFile, "outFile", "", "where to write the predicted corpus (default: overwrite --testingFile)")
	flags.BoolVar(&noCache, "no-cache", false, "disable the trained model cache")
	flags.StringVar(&metricsFile, "metricsFile", "", "write prometheus metrics to this file")
	flags.StringVar(&dbPath, "db", "", "also export predicted relations to this SQLite database")
	flags.IntVar(&workers, "workers", runtime.NumCPU(), "documents generated in parallel")
	flags.DurationVar(&runTimeout, "timeout", time.Hour, "overall run timeout")

	for _, name := range []string{"trainingFile", "testingFile", "relationDescriptions"} {
		_ = rootCmd.MarkFlagRequired(name)
	}
}

// resolveConfig applies, in increasing priority, the loaded config, the
// flags set on cmd and the parameters string
func resolveConfig(cmd *cobra.Command, paramString string) (*model.Config, model.Parameters, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("workers") {
		cfg.Generation.Workers = workers
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	if flags.Changed("metricsFile") {
		cfg.Output.MetricsFile = metricsFile
	}
	if flags.Changed("db") {
		cfg.Output.DBPath = dbPath
	}
	if verbose {
		cfg.Output.Verbose = true
	}

	params, err := model.ParseParameters(paramString)
	if err != nil {
		return nil, nil, err
	}
	if err := params.Apply(cfg); err != nil {
		return nil, nil, err
	}
	return cfg, params, nil
}

func runRelex(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	cfg, params, err := resolveConfig(cmd, parameters)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	for _, name := range params.Unknown() {
		v, _ := params.Get(name)
		logger.Debug("parameter passed through", zap.String("name", name), zap.String("value", v))
	}

	out := outFile
	if out == "" {
		out = testingFile
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Relex\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Training:       %s\n", trainingFile)
	fmt.Fprintf(os.Stderr, "  Testing:        %s\n", testingFile)
	fmt.Fprintf(os.Stderr, "  Relations:      %s\n", relationDescriptions)
	fmt.Fprintf(os.Stderr, "  Output:         %s\n", out)
	fmt.Fprintf(os.Stderr, "  Sentence range: %d\n", cfg.Generation.SentenceRange)
	fmt.Fprintf(os.Stderr, "  Filtering:      %v\n", cfg.Generation.DoFiltering)
	fmt.Fprintf(os.Stderr, "  Workers:        %d\n", cfg.Generation.Workers)
	fmt.Fprintf(os.Stderr, "\n")

	relData, err := os.ReadFile(relationDescriptions)
	if err != nil {
		return fmt.Errorf("read relation descriptions: %w", err)
	}
	set, err := targets.Parse(bytes.NewReader(relData))
	if err != nil {
		return fmt.Errorf("parse relation descriptions: %w", err)
	}

	trainData, err := os.ReadFile(trainingFile)
	if err != nil {
		return fmt.Errorf("read training corpus: %w", err)
	}
	train, err := corpus.Decode(trainData)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Loaded %d training documents\n", len(train))

	observed, err := extract.ObservedRelations(train)
	if err != nil {
		return fmt.Errorf("survey training relations: %w", err)
	}

	p := pipeline.New(cfg, set, logger)
	if cfg.Cache.Enabled {
		key, err := modelCacheKey(cfg, trainData, relData)
		if err != nil {
			return err
		}
		p.UseCache(cache.NewLayeredCache(cfg.Cache.MemoryTTL, cfg.Cache.Dir, cfg.Cache.DiskTTL, logger), key)
	}

	fmt.Fprintf(os.Stderr, "⚙️  Training classifier...\n")
	trained, err := p.Train(ctx, train)
	if err != nil {
		return fmt.Errorf("training failed: %w", err)
	}
	if trained.Cached {
		fmt.Fprintf(os.Stderr, "✓ Reused cached model\n")
	} else {
		fmt.Fprintf(os.Stderr, "✓ Trained on %d examples\n", len(trained.Generation.Candidates))
	}

	test, err := corpus.Load(testingFile)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "⚙️  Predicting relations for %d documents...\n", len(test))
	predicted, err := p.Predict(ctx, trained.Model, test)
	if err != nil {
		return fmt.Errorf("prediction failed: %w", err)
	}

	if err := corpus.Save(out, test); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "✓ Wrote predictions: %s\n", out)

	if cfg.Output.DBPath != "" {
		if err := exportDB(ctx, cfg.Output.DBPath, test); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "✓ Exported relations: %s\n", cfg.Output.DBPath)
	}

	if cfg.Output.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.Output.MetricsFile); err != nil {
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "\n")

	renderSummary(cmd.OutOrStdout(), summary{
		Targets:    set,
		Observed:   observed,
		Generation: trained.Generation,
		Prediction: predicted,
	})
	return nil
}

// modelCacheKey hashes the inputs that decide the fitted model
func modelCacheKey(cfg *model.Config, trainData, relData []byte) (string, error) {
	fitted := struct {
		SentenceRange int                    `yaml:"sentence_range"`
		DoFiltering   bool                   `yaml:"do_filtering"`
		Features      model.FeatureConfig    `yaml:"features"`
		Classifier    model.ClassifierConfig `yaml:"classifier"`
	}{cfg.Generation.SentenceRange, cfg.Generation.DoFiltering, cfg.Features, cfg.Classifier}

	params, err := yaml.Marshal(fitted)
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	return cache.Key(trainData, relData, params), nil
}

func exportDB(ctx context.Context, path string, c model.Corpus) error {
	s, err := store.NewSQLiteStoreWithDSN(path)
	if err != nil {
		return err
	}
	defer s.Close()
	return s.SavePredictions(ctx, c)
}
