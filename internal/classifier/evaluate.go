package classifier

import (
	"encoding/json"
	"fmt"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/ahmedibraahiim/asl/internal/forest"
	"github.com/ahmedibraahiim/asl/internal/labels"
)

// ClassReport holds per-class scores.
type ClassReport struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// Evaluation is the result of scoring a model on labeled samples.
// Confusion rows are true classes and columns predicted classes, both in
// mapping index order.
type Evaluation struct {
	Accuracy  float64
	Labels    []string
	Confusion *mat.Dense
	Classes   []ClassReport
}

func evaluate(model *forest.Forest, mapping *labels.Mapping, x [][]float64, y []int) (*Evaluation, error) {
	k := mapping.Len()
	confusion := mat.NewDense(k, k, nil)
	correct := 0
	for i, row := range x {
		pred := model.Predict(row)
		if !mapping.Contains(pred) {
			return nil, &labels.UnknownKeyError{Key: fmt.Sprint(pred)}
		}
		confusion.Set(y[i], pred, confusion.At(y[i], pred)+1)
		if pred == y[i] {
			correct++
		}
	}

	return &Evaluation{
		Accuracy:  float64(correct) / float64(len(x)),
		Labels:    mapping.Names(),
		Confusion: confusion,
		Classes:   classReports(confusion, mapping.Names()),
	}, nil
}

func classReports(confusion *mat.Dense, names []string) []ClassReport {
	k, _ := confusion.Dims()
	out := make([]ClassReport, k)
	for c := 0; c < k; c++ {
		tp := confusion.At(c, c)
		support := mat.Sum(confusion.RowView(c))
		predicted := mat.Sum(confusion.ColView(c))

		r := ClassReport{Label: names[c], Support: int(support)}
		if predicted > 0 {
			r.Precision = tp / predicted
		}
		if support > 0 {
			r.Recall = tp / support
		}
		if r.Precision+r.Recall > 0 {
			r.F1 = 2 * r.Precision * r.Recall / (r.Precision + r.Recall)
		}
		out[c] = r
	}
	return out
}

// MacroF1 returns the unweighted mean F1 over classes with support.
func (e *Evaluation) MacroF1() float64 {
	var sum float64
	n := 0
	for _, c := range e.Classes {
		if c.Support > 0 {
			sum += c.F1
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// String renders a plain-text classification report.
func (e *Evaluation) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s %9s %9s %9s %9s\n", "", "precision", "recall", "f1-score", "support")
	total := 0
	for _, c := range e.Classes {
		fmt.Fprintf(&b, "%-10s %9.2f %9.2f %9.2f %9d\n", c.Label, c.Precision, c.Recall, c.F1, c.Support)
		total += c.Support
	}
	fmt.Fprintf(&b, "\n%-10s %29.2f %9d\n", "accuracy", e.Accuracy, total)
	fmt.Fprintf(&b, "%-10s %29.2f %9d\n", "macro f1", e.MacroF1(), total)
	return b.String()
}

type evaluationJSON struct {
	Accuracy  float64       `json:"accuracy"`
	Labels    []string      `json:"labels"`
	Confusion [][]float64   `json:"confusion"`
	Classes   []ClassReport `json:"classes"`
}

// MarshalJSON encodes the confusion matrix as nested rows.
func (e *Evaluation) MarshalJSON() ([]byte, error) {
	out := evaluationJSON{
		Accuracy: e.Accuracy,
		Labels:   e.Labels,
		Classes:  e.Classes,
	}
	if e.Confusion != nil {
		r, _ := e.Confusion.Dims()
		for i := 0; i < r; i++ {
			out.Confusion = append(out.Confusion, mat.Row(nil, i, e.Confusion))
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (e *Evaluation) UnmarshalJSON(data []byte) error {
	var in evaluationJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	k := len(in.Labels)
	if len(in.Confusion) != k {
		return fmt.Errorf("confusion matrix has %d rows for %d labels", len(in.Confusion), k)
	}
	var confusion *mat.Dense
	if k > 0 {
		confusion = mat.NewDense(k, k, nil)
		for i, row := range in.Confusion {
			if len(row) != k {
				return fmt.Errorf("confusion row %d has %d columns, want %d", i, len(row), k)
			}
			confusion.SetRow(i, row)
		}
	}
	*e = Evaluation{
		Accuracy:  in.Accuracy,
		Labels:    in.Labels,
		Confusion: confusion,
		Classes:   in.Classes,
	}
	return nil
}
