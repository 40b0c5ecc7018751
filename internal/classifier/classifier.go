// Package classifier trains and serves the random forest that maps
// normalized hand landmarks to sign labels.
package classifier

import (
	"fmt"
	"math"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/ahmedibraahiim/asl/internal/detector"
	"github.com/ahmedibraahiim/asl/internal/forest"
	"github.com/ahmedibraahiim/asl/internal/labels"
	"github.com/ahmedibraahiim/asl/internal/monitoring"
)

const (
	// SplitSeed seeds the train/validation split and the CV folds.
	SplitSeed = 42
	// ValidationFraction is the share of each class held out for validation.
	ValidationFraction = 0.2
)

// Prediction is the classifier output for one feature vector.
type Prediction struct {
	Label         string
	Index         int
	Confidence    float64 // probability of the predicted class
	Probabilities []float64
}

// TrainReport summarizes a training run.
type TrainReport struct {
	Params         forest.Params
	Tuned          bool
	CVAccuracy     float64 // mean k-fold accuracy of Params, only when Tuned
	TrainSize      int
	ValidationSize int
	Validation     *Evaluation // nil when no sample could be held out
	Duration       time.Duration
}

// Classifier is safe for concurrent use: Train and Load take the write
// lock, everything else the read lock.
type Classifier struct {
	mu        sync.RWMutex
	params    forest.Params
	grid      Grid
	folds     int
	model     *forest.Forest
	mapping   *labels.Mapping
	trainedAt time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithParams sets the forest parameters used when not tuning.
func WithParams(p forest.Params) Option {
	return func(c *Classifier) { c.params = p }
}

// WithGrid replaces the hyperparameter search grid.
func WithGrid(g Grid) Option {
	return func(c *Classifier) { c.grid = g }
}

// WithFolds sets the number of cross-validation folds used when tuning.
func WithFolds(k int) Option {
	return func(c *Classifier) { c.folds = k }
}

// New returns an untrained classifier.
func New(opts ...Option) *Classifier {
	c := &Classifier{
		params: forest.DefaultParams(),
		grid:   DefaultGrid(),
		folds:  5,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Trained reports whether the classifier can predict.
func (c *Classifier) Trained() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model != nil
}

// Mapping returns the label mapping of the trained model, or nil.
func (c *Classifier) Mapping() *labels.Mapping {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mapping
}

// Params returns the parameters of the trained model, or the configured
// defaults when untrained.
func (c *Classifier) Params() forest.Params {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.model != nil {
		return c.model.Params
	}
	return c.params
}

// Train fits the classifier on features and class indices of mapping.
// One fifth of every class is held out for validation. With tune set the
// forest parameters are chosen by k-fold grid search on the remainder.
func (c *Classifier) Train(features []detector.FeatureVector, labelIdx []int, mapping *labels.Mapping, tune bool) (*TrainReport, error) {
	start := time.Now()
	if mapping == nil {
		return nil, fmt.Errorf("train: label mapping is required")
	}
	x, err := checkInput(features, labelIdx, mapping)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}

	trainIdx, valIdx := stratifiedSplit(labelIdx, ValidationFraction, SplitSeed)
	xTrain, yTrain := subset(x, labelIdx, trainIdx)

	report := &TrainReport{
		Params:         c.params,
		Tuned:          tune,
		TrainSize:      len(trainIdx),
		ValidationSize: len(valIdx),
	}

	if tune {
		best, score, err := search(xTrain, yTrain, mapping.Len(), c.grid, c.folds, c.params)
		if err != nil {
			return nil, fmt.Errorf("tune: %w", err)
		}
		monitoring.Logf("best parameters: trees=%d max_depth=%d min_samples_split=%d (cv accuracy %.4f)",
			best.Trees, best.MaxDepth, best.MinSamplesSplit, score)
		report.Params = best
		report.CVAccuracy = score
	}

	model, err := forest.Fit(xTrain, yTrain, mapping.Len(), report.Params)
	if err != nil {
		return nil, fmt.Errorf("fit forest: %w", err)
	}

	if len(valIdx) > 0 {
		xVal, yVal := subset(x, labelIdx, valIdx)
		eval, err := evaluate(model, mapping, xVal, yVal)
		if err != nil {
			return nil, err
		}
		report.Validation = eval
		monitoring.Logf("validation accuracy: %.4f", eval.Accuracy)
	}

	c.mu.Lock()
	c.model = model
	c.mapping = mapping
	c.trainedAt = time.Now()
	c.mu.Unlock()

	report.Duration = time.Since(start)
	return report, nil
}

// Predict classifies one normalized feature vector.
func (c *Classifier) Predict(feature detector.FeatureVector) (Prediction, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return Prediction{}, ErrNotTrained
	}
	if len(feature) != detector.FeatureSize {
		return Prediction{}, &detector.MalformedInputError{
			What: "feature vector",
			Got:  fmt.Sprintf("length %d, want %d", len(feature), detector.FeatureSize),
		}
	}

	if j, ok := nonFinite(feature); ok {
		return Prediction{}, &detector.MalformedInputError{
			What: "feature vector",
			Got:  fmt.Sprintf("non-finite value %v at %d", feature[j], j),
		}
	}

	proba := c.model.PredictProba(feature)
	idx := floats.MaxIdx(proba)
	name, err := c.mapping.ToName(idx)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Label:         name,
		Index:         idx,
		Confidence:    proba[idx],
		Probabilities: proba,
	}, nil
}

// Evaluate scores the classifier on a labeled test set.
func (c *Classifier) Evaluate(features []detector.FeatureVector, labelIdx []int) (*Evaluation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return nil, ErrNotTrained
	}
	x, err := checkInput(features, labelIdx, c.mapping)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	return evaluate(c.model, c.mapping, x, labelIdx)
}

// FeatureImportances returns the mean impurity decrease of each of the 63
// landmark coordinates, summing to 1.
func (c *Classifier) FeatureImportances() ([]float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.model == nil {
		return nil, ErrNotTrained
	}
	out := make([]float64, len(c.model.Importances))
	copy(out, c.model.Importances)
	return out, nil
}

func checkInput(features []detector.FeatureVector, labelIdx []int, mapping *labels.Mapping) ([][]float64, error) {
	if len(features) == 0 {
		return nil, &detector.MalformedInputError{What: "dataset", Got: "no samples"}
	}
	if len(features) != len(labelIdx) {
		return nil, &detector.MalformedInputError{
			What: "dataset",
			Got:  fmt.Sprintf("%d feature vectors but %d labels", len(features), len(labelIdx)),
		}
	}
	x := make([][]float64, len(features))
	for i, fv := range features {
		if len(fv) != detector.FeatureSize {
			return nil, &detector.MalformedInputError{
				What: "feature vector",
				Got:  fmt.Sprintf("sample %d has length %d, want %d", i, len(fv), detector.FeatureSize),
			}
		}
		if j, ok := nonFinite(fv); ok {
			return nil, &detector.MalformedInputError{
				What: "feature vector",
				Got:  fmt.Sprintf("sample %d has non-finite value %v at %d", i, fv[j], j),
			}
		}
		if _, err := mapping.ToName(labelIdx[i]); err != nil {
			return nil, err
		}
		x[i] = fv
	}
	return x, nil
}

// nonFinite returns the position of the first NaN or infinite value.
func nonFinite(fv detector.FeatureVector) (int, bool) {
	for j, v := range fv {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return j, true
		}
	}
	return 0, false
}

func subset(x [][]float64, y []int, idx []int) ([][]float64, []int) {
	xs := make([][]float64, len(idx))
	ys := make([]int, len(idx))
	for i, j := range idx {
		xs[i] = x[j]
		ys[i] = y[j]
	}
	return xs, ys
}
