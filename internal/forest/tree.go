package forest

import (
	"math"
	"math/rand"
	"sort"

	"github.com/pkg/errors"
)

// Node is a decision tree node. Leaves carry Dist, the class distribution of
// the training samples that reached them; internal nodes send samples with
// x[Feature] <= Threshold to Left.
type Node struct {
	Feature   int       `json:"f,omitempty"`
	Threshold float64   `json:"t,omitempty"`
	Left      *Node     `json:"l,omitempty"`
	Right     *Node     `json:"r,omitempty"`
	Dist      []float64 `json:"d,omitempty"`
}

func (n *Node) isLeaf() bool {
	return n.Left == nil && n.Right == nil
}

func (n *Node) leaf(x []float64) *Node {
	for !n.isLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n
}

// Depth returns the length of the longest root-to-leaf path.
func (n *Node) Depth() int {
	if n.isLeaf() {
		return 0
	}
	l, r := n.Left.Depth(), n.Right.Depth()
	if l > r {
		return l + 1
	}
	return r + 1
}

func (n *Node) validate(classes, features int) error {
	if n == nil {
		return errors.New("missing node")
	}
	if n.isLeaf() {
		if len(n.Dist) != classes {
			return errors.Errorf("leaf has %d class weights, want %d", len(n.Dist), classes)
		}
		return nil
	}
	if n.Left == nil || n.Right == nil {
		return errors.New("split node with one child")
	}
	if n.Feature < 0 || n.Feature >= features {
		return errors.Errorf("split on feature %d outside [0,%d)", n.Feature, features)
	}
	if err := n.Left.validate(classes, features); err != nil {
		return err
	}
	return n.Right.validate(classes, features)
}

type builder struct {
	x           [][]float64
	y           []int
	classes     int
	params      Params
	maxFeatures int
	rng         *rand.Rand
	importance  []float64
}

// bootstrap draws len(x) sample indices with replacement.
func (b *builder) bootstrap() []int {
	idx := make([]int, len(b.x))
	for i := range idx {
		idx[i] = b.rng.Intn(len(b.x))
	}
	return idx
}

func (b *builder) counts(idx []int) []float64 {
	c := make([]float64, b.classes)
	for _, i := range idx {
		c[b.y[i]]++
	}
	return c
}

func gini(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	g := 1.0
	for _, c := range counts {
		p := c / n
		g -= p * p
	}
	return g
}

func (b *builder) grow(idx []int, depth int) *Node {
	counts := b.counts(idx)
	n := float64(len(idx))
	impurity := gini(counts, n)

	if len(idx) < b.params.MinSamplesSplit ||
		impurity == 0 ||
		(b.params.MaxDepth > 0 && depth >= b.params.MaxDepth) {
		return b.newLeaf(counts, n)
	}

	feature, threshold, childImpurity, ok := b.bestSplit(idx)
	if !ok || childImpurity >= impurity {
		return b.newLeaf(counts, n)
	}

	b.importance[feature] += n / float64(len(b.x)) * (impurity - childImpurity)

	var left, right []int
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return b.newLeaf(counts, n)
	}

	return &Node{
		Feature:   feature,
		Threshold: threshold,
		Left:      b.grow(left, depth+1),
		Right:     b.grow(right, depth+1),
	}
}

func (b *builder) newLeaf(counts []float64, n float64) *Node {
	dist := make([]float64, len(counts))
	for i, c := range counts {
		dist[i] = c / n
	}
	return &Node{Dist: dist}
}

// bestSplit searches a random subset of features for the threshold with the
// lowest weighted child Gini impurity.
func (b *builder) bestSplit(idx []int) (feature int, threshold, impurity float64, ok bool) {
	width := len(b.x[0])
	candidates := b.rng.Perm(width)[:b.maxFeatures]

	sorted := make([]int, len(idx))
	n := float64(len(idx))
	total := b.counts(idx)
	left := make([]float64, b.classes)
	right := make([]float64, b.classes)

	for _, f := range candidates {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, c int) bool {
			return b.x[sorted[a]][f] < b.x[sorted[c]][f]
		})

		for k := range left {
			left[k] = 0
		}
		copy(right, total)

		for i := 0; i < len(sorted)-1; i++ {
			cls := b.y[sorted[i]]
			left[cls]++
			right[cls]--

			lo, hi := b.x[sorted[i]][f], b.x[sorted[i+1]][f]
			if lo == hi {
				continue
			}
			nl := float64(i + 1)
			nr := n - nl
			g := (nl*gini(left, nl) + nr*gini(right, nr)) / n
			if !ok || g < impurity {
				// Infinite or NaN neighbours make the midpoint NaN or
				// out of range; splitting at lo still separates them.
				t := lo + (hi-lo)/2
				if math.IsNaN(t) || t < lo || t >= hi {
					t = lo
				}
				feature, threshold, impurity, ok = f, t, g, true
			}
		}
	}
	return feature, threshold, impurity, ok
}
