// Package metrics holds the prometheus counters of a relex run.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	GenerationDocuments = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relex",
			Subsystem: "generation",
			Name:      "documents_total",
			Help:      "The total number of documents candidates were generated for.",
		},
	)
	GenerationExamples = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relex",
			Subsystem: "generation",
			Name:      "examples_total",
			Help:      "The total number of candidate examples generated.",
		},
		[]string{"label"},
	)
	GenerationWarnings = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "relex",
			Subsystem: "generation",
			Name:      "warnings_total",
			Help:      "The total number of gold relations no candidate matched.",
		},
	)
	PredictionRelations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relex",
			Subsystem: "prediction",
			Name:      "relations_total",
			Help:      "The total number of relations predicted.",
		},
		[]string{"type"},
	)
)

// Registry holds every relex collector
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		GenerationDocuments,
		GenerationExamples,
		GenerationWarnings,
		PredictionRelations,
	)
}

// ObserveExample counts one generated candidate
func ObserveExample(label int) {
	if label == 0 {
		GenerationExamples.WithLabelValues("negative").Inc()
		return
	}
	GenerationExamples.WithLabelValues("positive").Inc()
}

// WriteTextfile writes the current metric values in text exposition format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
