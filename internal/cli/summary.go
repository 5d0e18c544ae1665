package cli

import (
	"fmt"
	"io"
	"sort"

	"github.com/ppiankov/relex/internal/extract"
	"github.com/ppiankov/relex/internal/pipeline"
	"github.com/ppiankov/relex/internal/targets"
)

type summary struct {
	Targets    *targets.Set
	Observed   []extract.Observed
	Generation *extract.Result
	Prediction *pipeline.PredictResult
}

// renderSummary prints the diagnostic summary of a run
func renderSummary(w io.Writer, s summary) {
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(w, "  Summary\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════════════════\n\n")

	if len(s.Observed) > 0 {
		fmt.Fprintf(w, "Relations in training data:\n")
		for _, o := range s.Observed {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", o.Relation, o.Types.Type1, o.Types.Type2)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Target relations:\n")
	for i, name := range s.Targets.Relations() {
		fmt.Fprintf(w, "  %d\t%s\n", i+1, name)
	}
	fmt.Fprintln(w)

	if args := s.Targets.Arguments(); len(args) > 0 {
		fmt.Fprintf(w, "Target arguments:\n")
		for _, a := range args {
			fmt.Fprintf(w, "  %s\n", a)
		}
		fmt.Fprintln(w)
	}

	if s.Generation != nil {
		counts := s.Generation.LabelCounts()
		labels := make([]int, 0, len(counts))
		for l := range counts {
			labels = append(labels, l)
		}
		sort.Ints(labels)

		fmt.Fprintf(w, "Training examples per class:\n")
		for _, l := range labels {
			name := "none"
			if n, ok := s.Targets.Name(l); ok {
				name = n
			}
			fmt.Fprintf(w, "  %d\t%-20s %d\n", l, name, counts[l])
		}
		fmt.Fprintf(w, "Unprocessed gold relations: %d\n", len(s.Generation.Warnings))
	}

	if s.Prediction != nil {
		fmt.Fprintf(w, "Test candidates:            %d\n", s.Prediction.Candidates)
		fmt.Fprintf(w, "Predicted relations:        %d\n", s.Prediction.Relations)
	}

	fmt.Fprintf(w, "\nComplete.\n")
}
