package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ppiankov/relex/internal/corpus"
	"github.com/ppiankov/relex/internal/features"
	"github.com/ppiankov/relex/internal/matrix"
	"github.com/ppiankov/relex/internal/pipeline"
	"github.com/ppiankov/relex/internal/targets"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/mat"
)

var (
	examplesCorpus    string
	examplesRelations string
	examplesParams    string
	featuresOut       string
	labelsOut         string
)

var examplesCmd = &cobra.Command{
	Use:   "examples",
	Short: "Write the candidate feature matrix and labels of a corpus",
	Long: `Examples generates every labeled candidate of a corpus and writes
its feature matrix (%sparse) and label vector (%dense) so they can be
inspected or fed to another learner.

Example:
  relex examples --corpus train.json --relationDescriptions relations.tsv \
                 --features train.features --labels train.labels`,
	RunE: runExamples,
}

func init() {
	rootCmd.AddCommand(examplesCmd)

	examplesCmd.Flags().StringVar(&examplesCorpus, "corpus", "", "corpus to generate candidates for (JSON)")
	examplesCmd.Flags().StringVar(&examplesRelations, "relationDescriptions", "", "relation description file")
	examplesCmd.Flags().StringVar(&examplesParams, "parameters", "", "run parameters")
	examplesCmd.Flags().StringVar(&featuresOut, "features", "features.txt", "feature matrix output path")
	examplesCmd.Flags().StringVar(&labelsOut, "labels", "labels.txt", "label vector output path")
	_ = examplesCmd.MarkFlagRequired("corpus")
	_ = examplesCmd.MarkFlagRequired("relationDescriptions")
}

func runExamples(cmd *cobra.Command, args []string) error {
	cfg, _, err := resolveConfig(cmd, examplesParams)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Output.Verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	set, err := targets.Load(examplesRelations)
	if err != nil {
		return err
	}
	c, err := corpus.Load(examplesCorpus)
	if err != nil {
		return err
	}

	gen, err := pipeline.New(cfg, set, logger).Generate(context.Background(), c)
	if err != nil {
		return fmt.Errorf("generate examples: %w", err)
	}
	if len(gen.Candidates) == 0 {
		return fmt.Errorf("no candidates generated from %s", examplesCorpus)
	}

	x := features.NewVectorizer(cfg.Features).Fit(gen.Examples())

	labels := gen.Labels()
	y := mat.NewDense(len(labels), 1, nil)
	for i, l := range labels {
		y.Set(i, 0, float64(l))
	}

	if err := matrix.Save(featuresOut, x); err != nil {
		return err
	}
	if err := matrix.Save(labelsOut, y); err != nil {
		return err
	}

	rows, cols := x.Dims()
	fmt.Fprintf(os.Stderr, "✓ Wrote %dx%d feature matrix: %s\n", rows, cols, featuresOut)
	fmt.Fprintf(os.Stderr, "✓ Wrote %d labels: %s\n", len(labels), labelsOut)
	if len(gen.Warnings) > 0 {
		fmt.Fprintf(os.Stderr, "⚠ %d gold relations matched no candidate\n", len(gen.Warnings))
	}
	return nil
}
