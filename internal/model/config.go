package model

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable of a relex run
type Config struct {
	Generation GenerationConfig `yaml:"generation" mapstructure:"generation"`
	Features   FeatureConfig    `yaml:"features" mapstructure:"features"`
	Classifier ClassifierConfig `yaml:"classifier" mapstructure:"classifier"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
}

// GenerationConfig controls candidate generation
type GenerationConfig struct {
	SentenceRange int  `yaml:"sentence_range" mapstructure:"sentence_range"` // 0 = same sentence only
	DoFiltering   bool `yaml:"do_filtering" mapstructure:"do_filtering"`     // Restrict to target type pairs
	Workers       int  `yaml:"workers" mapstructure:"workers"`               // 1 = sequential
}

// FeatureConfig controls vectorization and feature selection
type FeatureConfig struct {
	MinCount       int  `yaml:"min_count" mapstructure:"min_count"`             // Drop features seen fewer times in training
	SkipStopwords  bool `yaml:"skip_stopwords" mapstructure:"skip_stopwords"`   // Drop English stopwords from bag-of-words
	BetweenWindow  int  `yaml:"between_window" mapstructure:"between_window"`   // Max words between arguments used as features
	LowercaseWords bool `yaml:"lowercase_words" mapstructure:"lowercase_words"` // Lowercase word features
}

// ClassifierConfig controls the linear classifier
type ClassifierConfig struct {
	Epochs       int     `yaml:"epochs" mapstructure:"epochs"`
	LearningRate float64 `yaml:"learning_rate" mapstructure:"learning_rate"`
	L2           float64 `yaml:"l2" mapstructure:"l2"`
	Seed         uint64  `yaml:"seed" mapstructure:"seed"`
}

// CacheConfig controls the trained model cache
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled" mapstructure:"enabled"`
	Dir       string        `yaml:"dir" mapstructure:"dir"`
	MemoryTTL time.Duration `yaml:"memory_ttl" mapstructure:"memory_ttl"`
	DiskTTL   time.Duration `yaml:"disk_ttl" mapstructure:"disk_ttl"`
}

// OutputConfig controls reporting
type OutputConfig struct {
	Verbose     bool   `yaml:"verbose" mapstructure:"verbose"`
	MetricsFile string `yaml:"metrics_file" mapstructure:"metrics_file"`
	DBPath      string `yaml:"db_path" mapstructure:"db_path"`
}

// DefaultConfig returns the configuration used when nothing overrides it
func DefaultConfig() *Config {
	return &Config{
		Generation: GenerationConfig{
			SentenceRange: 0,
			DoFiltering:   false,
			Workers:       runtime.NumCPU(),
		},
		Features: FeatureConfig{
			MinCount:       1,
			SkipStopwords:  true,
			BetweenWindow:  10,
			LowercaseWords: true,
		},
		Classifier: ClassifierConfig{
			Epochs:       20,
			LearningRate: 0.1,
			L2:           1e-4,
			Seed:         1,
		},
		Cache: CacheConfig{
			Enabled:   true,
			Dir:       ".relex-cache",
			MemoryTTL: time.Hour,
			DiskTTL:   7 * 24 * time.Hour,
		},
	}
}

// ErrParameter marks a malformed parameters string
var ErrParameter = errors.New("invalid parameter")

// ParameterError reports a parameter that could not be parsed
type ParameterError struct {
	Name  string
	Value string
	Msg   string
}

func (e *ParameterError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("%s: %s", ErrParameter, e.Msg)
	}
	return fmt.Sprintf("%s %q=%q: %s", ErrParameter, e.Name, e.Value, e.Msg)
}

func (e *ParameterError) Unwrap() error { return ErrParameter }

// Parameters is the parsed form of a "name:value;name:value" string.
// Keys relex does not know are kept for the vectorizer and classifier.
type Parameters map[string]string

// ParseParameters parses a semicolon separated list of name:value pairs
func ParseParameters(s string) (Parameters, error) {
	params := Parameters{}
	if strings.TrimSpace(s) == "" {
		return params, nil
	}

	for _, pair := range strings.Split(s, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		name, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, &ParameterError{Msg: fmt.Sprintf("expected name:value, got %q", pair)}
		}
		params[strings.TrimSpace(name)] = strings.TrimSpace(value)
	}

	return params, nil
}

var knownParameters = map[string]bool{
	"sentenceRange":   true,
	"doFiltering":     true,
	"workers":         true,
	"minFeatureCount": true,
	"epochs":          true,
	"learningRate":    true,
	"l2":              true,
	"seed":            true,
}

// Unknown returns the parameter names Apply ignores, sorted
func (p Parameters) Unknown() []string {
	var out []string
	for name := range p {
		if !knownParameters[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Get returns a raw parameter value
func (p Parameters) Get(name string) (string, bool) {
	v, ok := p[name]
	return v, ok
}

// Apply overlays recognized parameters onto cfg
func (p Parameters) Apply(cfg *Config) error {
	if v, ok := p["sentenceRange"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return &ParameterError{Name: "sentenceRange", Value: v, Msg: "expected a non-negative integer"}
		}
		cfg.Generation.SentenceRange = n
	}
	if v, ok := p["doFiltering"]; ok {
		// Only the literal True enables filtering
		cfg.Generation.DoFiltering = v == "True"
	}
	if v, ok := p["workers"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ParameterError{Name: "workers", Value: v, Msg: "expected an integer"}
		}
		cfg.Generation.Workers = n
	}
	if v, ok := p["minFeatureCount"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ParameterError{Name: "minFeatureCount", Value: v, Msg: "expected an integer"}
		}
		cfg.Features.MinCount = n
	}
	if v, ok := p["epochs"]; ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return &ParameterError{Name: "epochs", Value: v, Msg: "expected a positive integer"}
		}
		cfg.Classifier.Epochs = n
	}
	if v, ok := p["learningRate"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return &ParameterError{Name: "learningRate", Value: v, Msg: "expected a positive number"}
		}
		cfg.Classifier.LearningRate = f
	}
	if v, ok := p["l2"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 {
			return &ParameterError{Name: "l2", Value: v, Msg: "expected a non-negative number"}
		}
		cfg.Classifier.L2 = f
	}
	if v, ok := p["seed"]; ok {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return &ParameterError{Name: "seed", Value: v, Msg: "expected an unsigned integer"}
		}
		cfg.Classifier.Seed = n
	}
	return nil
}
