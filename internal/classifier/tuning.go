package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/ahmedibraahiim/asl/internal/forest"
)

// Grid is the hyperparameter search space. MaxDepth 0 means unbounded.
type Grid struct {
	Trees           []int
	MaxDepth        []int
	MinSamplesSplit []int
}

// DefaultGrid returns trees {50,100,200} x depth {unbounded,10,20,30} x
// min split {2,5,10}.
func DefaultGrid() Grid {
	return Grid{
		Trees:           []int{50, 100, 200},
		MaxDepth:        []int{0, 10, 20, 30},
		MinSamplesSplit: []int{2, 5, 10},
	}
}

// Candidates expands the grid over base, which supplies the fields the
// grid does not vary (seed, features per split). Depth varies slowest and
// tree count fastest; search keeps the first candidate among equal scores.
func (g Grid) Candidates(base forest.Params) []forest.Params {
	var out []forest.Params
	for _, depth := range g.MaxDepth {
		for _, split := range g.MinSamplesSplit {
			for _, trees := range g.Trees {
				p := base
				p.Trees, p.MaxDepth, p.MinSamplesSplit = trees, depth, split
				out = append(out, p)
			}
		}
	}
	return out
}

// search returns the candidate with the best mean k-fold accuracy.
func search(x [][]float64, y []int, classes int, g Grid, k int, base forest.Params) (forest.Params, float64, error) {
	candidates := g.Candidates(base)
	if len(candidates) == 0 {
		return forest.Params{}, 0, fmt.Errorf("empty hyperparameter grid")
	}
	if k < 2 {
		return forest.Params{}, 0, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	if len(x) < k {
		return forest.Params{}, 0, fmt.Errorf("need at least %d samples for %d-fold cross-validation, got %d", k, k, len(x))
	}

	folds := stratifiedFolds(y, k, SplitSeed)

	var best forest.Params
	bestScore := -1.0
	for _, p := range candidates {
		score, err := crossValidate(x, y, classes, p, folds)
		if err != nil {
			return forest.Params{}, 0, err
		}
		if score > bestScore {
			best, bestScore = p, score
		}
	}
	return best, bestScore, nil
}

// crossValidate returns the mean held-out accuracy of p over folds.
func crossValidate(x [][]float64, y []int, classes int, p forest.Params, folds [][]int) (float64, error) {
	var scores []float64
	for _, held := range folds {
		if len(held) == 0 || len(held) == len(x) {
			continue
		}
		xTrain, yTrain := subset(x, y, complement(len(x), held))
		xTest, yTest := subset(x, y, held)

		model, err := forest.Fit(xTrain, yTrain, classes, p)
		if err != nil {
			return 0, fmt.Errorf("fit fold: %w", err)
		}
		correct := 0
		for i, row := range xTest {
			if model.Predict(row) == yTest[i] {
				correct++
			}
		}
		scores = append(scores, float64(correct)/float64(len(xTest)))
	}
	if len(scores) == 0 {
		return 0, fmt.Errorf("no usable cross-validation folds")
	}
	return stat.Mean(scores, nil), nil
}
