package metrics

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveExample(t *testing.T) {
	neg := testutil.ToFloat64(GenerationExamples.WithLabelValues("negative"))
	pos := testutil.ToFloat64(GenerationExamples.WithLabelValues("positive"))

	ObserveExample(0)
	ObserveExample(0)
	ObserveExample(3)

	assert.Equal(t, neg+2, testutil.ToFloat64(GenerationExamples.WithLabelValues("negative")))
	assert.Equal(t, pos+1, testutil.ToFloat64(GenerationExamples.WithLabelValues("positive")))
}

func TestWriteTextfile(t *testing.T) {
	GenerationDocuments.Inc()

	path := filepath.Join(t.TempDir(), "relex.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "relex_generation_documents_total")
}
