package classifier

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func repeatLabels(counts ...int) []int {
	var y []int
	for c, n := range counts {
		for i := 0; i < n; i++ {
			y = append(y, c)
		}
	}
	return y
}

func countClasses(y []int, idx []int) map[int]int {
	out := make(map[int]int)
	for _, i := range idx {
		out[y[i]]++
	}
	return out
}

func TestStratifiedSplit(t *testing.T) {
	y := repeatLabels(10, 20, 5, 1)
	train, test := stratifiedSplit(y, 0.2, 42)

	assert.Equal(t, len(y), len(train)+len(test))
	assert.Equal(t, map[int]int{0: 2, 1: 4, 2: 1}, countClasses(y, test))
	assert.Equal(t, map[int]int{0: 8, 1: 16, 2: 4, 3: 1}, countClasses(y, train))

	seen := append(append([]int{}, train...), test...)
	sort.Ints(seen)
	for i, v := range seen {
		if v != i {
			t.Fatalf("expected every sample exactly once, got %v", seen)
		}
	}

	train2, test2 := stratifiedSplit(y, 0.2, 42)
	assert.Empty(t, cmp.Diff(train, train2))
	assert.Empty(t, cmp.Diff(test, test2))
}

func TestStratifiedSplitKeepsTrainingSample(t *testing.T) {
	y := repeatLabels(2, 2)
	train, _ := stratifiedSplit(y, 0.9, 1)
	assert.Equal(t, map[int]int{0: 1, 1: 1}, countClasses(y, train))
}

func TestStratifiedFolds(t *testing.T) {
	y := repeatLabels(10, 5, 3)
	folds := stratifiedFolds(y, 5, 42)
	assert.Len(t, folds, 5)

	total := 0
	for _, f := range folds {
		total += len(f)
		assert.True(t, sort.IntsAreSorted(f))
		counts := countClasses(y, f)
		assert.Equal(t, 2, counts[0], "class 0 spreads evenly")
		assert.Equal(t, 1, counts[1], "class 1 spreads evenly")
	}
	assert.Equal(t, len(y), total)
}

func TestComplement(t *testing.T) {
	assert.Empty(t, cmp.Diff([]int{0, 2, 4}, complement(5, []int{1, 3})))
	assert.Empty(t, cmp.Diff([]int{}, complement(2, []int{0, 1})))
}
