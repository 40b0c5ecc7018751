package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/detector"
)

func sampleEvaluation() *classifier.Evaluation {
	return &classifier.Evaluation{
		Accuracy:  0.75,
		Labels:    []string{"A", "B"},
		Confusion: mat.NewDense(2, 2, []float64{3, 1, 0, 4}),
		Classes: []classifier.ClassReport{
			{Label: "A", Precision: 1, Recall: 0.75, F1: 0.857, Support: 4},
			{Label: "B", Precision: 0.8, Recall: 1, F1: 0.889, Support: 4},
		},
	}
}

func isPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestConfusionPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plots", "confusion_matrix.png")
	require.NoError(t, ConfusionPNG(sampleEvaluation(), path))
	isPNG(t, path)
}

func TestConfusionPNGAllZero(t *testing.T) {
	ev := sampleEvaluation()
	ev.Confusion = mat.NewDense(2, 2, nil)

	path := filepath.Join(t.TempDir(), "zero.png")
	require.NoError(t, ConfusionPNG(ev, path))
	isPNG(t, path)
}

func TestConfusionPNGNoEvaluation(t *testing.T) {
	assert.Error(t, ConfusionPNG(nil, filepath.Join(t.TempDir(), "x.png")))
}

func TestImportancesPNG(t *testing.T) {
	imp := make([]float64, detector.FeatureSize)
	for i := range imp {
		imp[i] = 1 / float64(detector.FeatureSize)
	}
	path := filepath.Join(t.TempDir(), "importances.png")
	require.NoError(t, ImportancesPNG(imp, path))
	isPNG(t, path)

	assert.Error(t, ImportancesPNG(nil, path))
}

func TestWriteHTML(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, Page{
		Title:       "asl_a_to_f_model.json",
		Subtitle:    "test set",
		Evaluation:  sampleEvaluation(),
		Importances: make([]float64, detector.FeatureSize),
	})
	require.NoError(t, err)

	html := buf.String()
	assert.Contains(t, html, "<html")
	assert.Contains(t, html, "asl_a_to_f_model.json")
	assert.Contains(t, html, "Per-class F1")
	assert.Contains(t, html, "Feature importances")

	assert.Error(t, WriteHTML(&buf, Page{}))
}

func TestLandmarkNames(t *testing.T) {
	names := landmarkNames()
	require.Len(t, names, detector.FeatureSize)
	assert.Equal(t, "0.x", names[0])
	assert.Equal(t, "20.z", names[62])
}
