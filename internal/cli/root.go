package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/relex/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const version = "relex v0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd trains on one corpus and predicts relations on another
var rootCmd = &cobra.Command{
	Use:   "relex",
	Short: "Relex - trigger pair relation extraction",
	Long: `Relex learns binary relations between annotated triggers.

It enumerates every pair of predicted and known trigger spans within a
sentence window, labels the pairs against the gold relations of a training
corpus, trains a linear classifier on them, and writes the relations it
predicts for a test corpus.

Example:
  relex --trainingFile train.json --testingFile test.json \
        --relationDescriptions relations.tsv --parameters "sentenceRange:1;doFiltering:True"`,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runRelex,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.relex/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".relex"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// RELEX_GENERATION_SENTENCE_RANGE overrides generation.sentence_range
	viper.SetEnvPrefix("RELEX")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// setDefaults registers every config key so env variables can reach it
func setDefaults(cfg *model.Config) {
	viper.SetDefault("generation.sentence_range", cfg.Generation.SentenceRange)
	viper.SetDefault("generation.do_filtering", cfg.Generation.DoFiltering)
	viper.SetDefault("generation.workers", cfg.Generation.Workers)
	viper.SetDefault("features.min_count", cfg.Features.MinCount)
	viper.SetDefault("features.skip_stopwords", cfg.Features.SkipStopwords)
	viper.SetDefault("features.between_window", cfg.Features.BetweenWindow)
	viper.SetDefault("features.lowercase_words", cfg.Features.LowercaseWords)
	viper.SetDefault("classifier.epochs", cfg.Classifier.Epochs)
	viper.SetDefault("classifier.learning_rate", cfg.Classifier.LearningRate)
	viper.SetDefault("classifier.l2", cfg.Classifier.L2)
	viper.SetDefault("classifier.seed", cfg.Classifier.Seed)
	viper.SetDefault("cache.enabled", cfg.Cache.Enabled)
	viper.SetDefault("cache.dir", cfg.Cache.Dir)
	viper.SetDefault("cache.memory_ttl", cfg.Cache.MemoryTTL)
	viper.SetDefault("cache.disk_ttl", cfg.Cache.DiskTTL)
	viper.SetDefault("output.verbose", cfg.Output.Verbose)
	viper.SetDefault("output.metrics_file", cfg.Output.MetricsFile)
	viper.SetDefault("output.db_path", cfg.Output.DBPath)
}

// loadConfig merges defaults, the config file and the environment
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// newLogger builds a development logger in verbose mode and a warn-level
// production logger otherwise. Both write to stderr.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	cfg.Encoding = "console"
	return cfg.Build()
}
