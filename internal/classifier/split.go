package classifier

import (
	"math"
	"math/rand"
	"sort"
)

// byClass groups sample positions by label, classes in ascending order.
func byClass(labels []int) (classes []int, groups map[int][]int) {
	groups = make(map[int][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	for c := range groups {
		classes = append(classes, c)
	}
	sort.Ints(classes)
	return classes, groups
}

// stratifiedSplit holds out about testFraction of every class. Classes with
// a single sample stay entirely in the training part, and every class keeps
// at least one training sample.
func stratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	rng := rand.New(rand.NewSource(seed))
	classes, groups := byClass(labels)
	for _, c := range classes {
		members := groups[c]
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		nTest := int(math.Round(float64(len(members)) * testFraction))
		if nTest >= len(members) {
			nTest = len(members) - 1
		}
		test = append(test, members[:nTest]...)
		train = append(train, members[nTest:]...)
	}
	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// stratifiedFolds deals the samples of every class round-robin into k folds
// after a seeded shuffle, and returns the held-out positions of each fold.
func stratifiedFolds(labels []int, k int, seed int64) [][]int {
	rng := rand.New(rand.NewSource(seed))
	folds := make([][]int, k)
	classes, groups := byClass(labels)
	next := 0
	for _, c := range classes {
		members := groups[c]
		rng.Shuffle(len(members), func(i, j int) {
			members[i], members[j] = members[j], members[i]
		})
		for _, m := range members {
			folds[next%k] = append(folds[next%k], m)
			next++
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds
}

// complement returns the positions in [0,n) not present in the sorted slice held.
func complement(n int, held []int) []int {
	out := make([]int, 0, n-len(held))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(held) && held[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}
