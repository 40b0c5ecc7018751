// Package report renders evaluation artifacts: confusion matrix and feature
// importance plots as PNG, and an HTML page served by the API.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ahmedibraahiim/asl/internal/classifier"
	"github.com/ahmedibraahiim/asl/internal/detector"
)

// confusionGrid adapts a confusion matrix to plotter.GridXYZ: columns are
// predicted classes, rows true classes.
type confusionGrid struct {
	m *mat.Dense
}

func (g confusionGrid) Dims() (c, r int) {
	r, c = g.m.Dims()
	return c, r
}

func (g confusionGrid) Z(c, r int) float64 { return g.m.At(r, c) }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

// ConfusionPNG writes the confusion matrix of ev as a heat map image.
func ConfusionPNG(ev *classifier.Evaluation, path string) error {
	if ev == nil || ev.Confusion == nil {
		return fmt.Errorf("no confusion matrix")
	}
	n, _ := ev.Confusion.Dims()

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Confusion matrix (accuracy %.3f)", ev.Accuracy)
	p.X.Label.Text = "Predicted"
	p.Y.Label.Text = "True"

	h := plotter.NewHeatMap(confusionGrid{ev.Confusion}, palette.Heat(12, 1))
	h.Min = 0
	h.Max = mat.Max(ev.Confusion)
	if h.Max <= h.Min {
		h.Max = h.Min + 1
	}
	p.Add(h)

	var cells plotter.XYLabels
	for r := 0; r < n; r++ {
		for c := 0; c < n; c++ {
			v := ev.Confusion.At(r, c)
			if v == 0 {
				continue
			}
			cells.XYs = append(cells.XYs, plotter.XY{X: float64(c), Y: float64(r)})
			cells.Labels = append(cells.Labels, fmt.Sprintf("%.0f", v))
		}
	}
	if len(cells.Labels) > 0 {
		counts, err := plotter.NewLabels(cells)
		if err != nil {
			return fmt.Errorf("confusion labels: %w", err)
		}
		p.Add(counts)
	}

	p.NominalX(ev.Labels...)
	p.NominalY(ev.Labels...)

	size := vg.Length(n)*0.5*vg.Inch + 2*vg.Inch
	return save(p, size, size, path)
}

// ImportancesPNG writes a bar chart of the per-coordinate feature
// importances. Bars are labeled by landmark index.
func ImportancesPNG(importances []float64, path string) error {
	if len(importances) == 0 {
		return fmt.Errorf("no feature importances")
	}

	p := plot.New()
	p.Title.Text = "Feature importances"
	p.X.Label.Text = "Landmark coordinate"
	p.Y.Label.Text = "Mean impurity decrease"

	bars, err := plotter.NewBarChart(plotter.Values(importances), vg.Points(4))
	if err != nil {
		return fmt.Errorf("importance bars: %w", err)
	}
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)

	names := make([]string, len(importances))
	for i := range names {
		if i%3 == 0 {
			names[i] = fmt.Sprint(i / 3)
		}
	}
	p.NominalX(names...)

	return save(p, 14*vg.Inch, 5*vg.Inch, path)
}

func save(p *plot.Plot, w, h vg.Length, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("save %s: %w", filepath.Base(path), err)
	}
	return nil
}

// landmarkNames labels the 63 feature coordinates as "<index>.<axis>".
func landmarkNames() []string {
	out := make([]string, 0, detector.FeatureSize)
	for i := 0; i < detector.NumLandmarks; i++ {
		for _, axis := range []string{"x", "y", "z"} {
			out = append(out, fmt.Sprintf("%d.%s", i, axis))
		}
	}
	return out
}
