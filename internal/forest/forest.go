// Package forest implements a random forest of CART classification trees.
//
// Training is reproducible: every tree draws from its own RNG seeded from
// Params.Seed, so the fitted model does not depend on goroutine scheduling.
package forest

import (
	"math"
	"math/rand"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
)

// Params controls forest training.
type Params struct {
	Trees           int   `json:"trees"`
	MaxDepth        int   `json:"max_depth"`         // 0 means unbounded
	MinSamplesSplit int   `json:"min_samples_split"` // nodes smaller than this become leaves
	MaxFeatures     int   `json:"max_features"`      // 0 means sqrt(features)
	Seed            int64 `json:"seed"`
}

// DefaultParams returns 100 unbounded trees with min split 2 and seed 42.
func DefaultParams() Params {
	return Params{Trees: 100, MinSamplesSplit: 2, Seed: 42}
}

// Forest is a fitted ensemble.
type Forest struct {
	Params      Params    `json:"params"`
	Classes     int       `json:"classes"`
	Features    int       `json:"features"`
	Trees       []*Node   `json:"trees"`
	Importances []float64 `json:"importances"`
}

// Fit trains a forest on rows x with class labels y in [0, classes).
func Fit(x [][]float64, y []int, classes int, p Params) (*Forest, error) {
	if len(x) == 0 {
		return nil, errors.New("no training samples")
	}
	if len(x) != len(y) {
		return nil, errors.Errorf("%d samples but %d labels", len(x), len(y))
	}
	if classes < 1 {
		return nil, errors.Errorf("invalid class count %d", classes)
	}
	if p.Trees < 1 {
		return nil, errors.Errorf("invalid tree count %d", p.Trees)
	}
	if p.MaxDepth < 0 {
		return nil, errors.Errorf("invalid max depth %d", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		p.MinSamplesSplit = 2
	}
	width := len(x[0])
	if width == 0 {
		return nil, errors.New("samples have no features")
	}
	for i, row := range x {
		if len(row) != width {
			return nil, errors.Errorf("sample %d has %d features, want %d", i, len(row), width)
		}
		if y[i] < 0 || y[i] >= classes {
			return nil, errors.Errorf("sample %d has label %d outside [0,%d)", i, y[i], classes)
		}
	}

	maxFeatures := p.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(width)))
	}
	if maxFeatures < 1 {
		maxFeatures = 1
	}
	if maxFeatures > width {
		maxFeatures = width
	}

	seeds := make([]int64, p.Trees)
	rng := rand.New(rand.NewSource(p.Seed))
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	f := &Forest{
		Params:   p,
		Classes:  classes,
		Features: width,
		Trees:    make([]*Node, p.Trees),
	}
	importances := make([][]float64, p.Trees)

	jobs := make(chan int)
	var wg sync.WaitGroup
	workers := runtime.GOMAXPROCS(0)
	if workers > p.Trees {
		workers = p.Trees
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				b := &builder{
					x:           x,
					y:           y,
					classes:     classes,
					params:      p,
					maxFeatures: maxFeatures,
					rng:         rand.New(rand.NewSource(seeds[i])),
					importance:  make([]float64, width),
				}
				f.Trees[i] = b.grow(b.bootstrap(), 0)
				importances[i] = b.importance
			}
		}()
	}
	for i := 0; i < p.Trees; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	f.Importances = make([]float64, width)
	for _, imp := range importances {
		if total := floats.Sum(imp); total > 0 {
			floats.AddScaled(f.Importances, 1/total, imp)
		}
	}
	floats.Scale(1/float64(p.Trees), f.Importances)

	return f, nil
}

// PredictProba returns the mean leaf class distribution across all trees.
func (f *Forest) PredictProba(x []float64) []float64 {
	proba := make([]float64, f.Classes)
	for _, t := range f.Trees {
		floats.Add(proba, t.leaf(x).Dist)
	}
	floats.Scale(1/float64(len(f.Trees)), proba)
	return proba
}

// Predict returns the most probable class. Ties go to the lowest index.
func (f *Forest) Predict(x []float64) int {
	return floats.MaxIdx(f.PredictProba(x))
}

// Validate checks the structural integrity of a decoded forest.
func (f *Forest) Validate() error {
	if f.Classes < 1 {
		return errors.Errorf("invalid class count %d", f.Classes)
	}
	if f.Features < 1 {
		return errors.Errorf("invalid feature count %d", f.Features)
	}
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	for i, t := range f.Trees {
		if err := t.validate(f.Classes, f.Features); err != nil {
			return errors.Wrapf(err, "tree %d", i)
		}
	}
	return nil
}
