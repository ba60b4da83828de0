package model

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// Tree is a regression tree with a flat node layout. Children are indexed
// into the Nodes slice so the whole tree serializes as a single JSON array.
type Tree struct {
	Nodes []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	IsLeaf     bool    `json:"is_leaf"`
}

// TreeConfig controls tree growth.
type TreeConfig struct {
	MaxDepth int
	MinLeaf  int
	// FeatureSample limits each split to a random subset of columns.
	// Zero means consider every column; forests set this for decorrelation.
	FeatureSample int
}

func (c *TreeConfig) normalize() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 10
	}
	if c.MinLeaf <= 0 {
		c.MinLeaf = 1
	}
}

// Fit grows the tree on the given samples using variance-reduction splits.
func (t *Tree) Fit(features [][]float64, targets []float64, cfg TreeConfig, rng *rand.Rand) error {
	if len(features) == 0 || len(targets) == 0 {
		return errors.New("model: empty training data")
	}
	if len(features) != len(targets) {
		return fmt.Errorf("model: %d feature rows vs %d targets", len(features), len(targets))
	}
	cfg.normalize()
	if rng == nil {
		rng = rand.New(rand.NewSource(0))
	}

	t.Nodes = buildNode(features, targets, 0, cfg, rng)
	return nil
}

func (t *Tree) Predict(features []float64) (float64, error) {
	if len(t.Nodes) == 0 {
		return 0, ErrNotTrained
	}
	idx := 0
	for {
		node := t.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, fmt.Errorf("model: split feature %d out of range for %d columns", node.FeatureIdx, len(features))
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(t.Nodes) {
			return 0, errors.New("model: invalid tree state")
		}
	}
}

func (t *Tree) Kind() string { return KindTree }

func buildNode(features [][]float64, targets []float64, depth int, cfg TreeConfig, rng *rand.Rand) []TreeNode {
	value := meanOf(targets)
	leaf := []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      value,
		IsLeaf:     true,
	}}

	if depth >= cfg.MaxDepth || len(targets) < 2*cfg.MinLeaf {
		return leaf
	}

	bestFeature, threshold, ok := findBestSplit(features, targets, cfg, rng)
	if !ok {
		return leaf
	}

	leftF, leftT, rightF, rightT := partition(features, targets, bestFeature, threshold)
	if len(leftT) < cfg.MinLeaf || len(rightT) < cfg.MinLeaf {
		return leaf
	}

	leftNodes := buildNode(leftF, leftT, depth+1, cfg, rng)
	rightNodes := buildNode(rightF, rightT, depth+1, cfg, rng)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      value,
		IsLeaf:     false,
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, leftNodes...)
	nodes = append(nodes, rightNodes...)
	return nodes
}

// findBestSplit evaluates quartile thresholds per candidate column and keeps
// the split with the lowest weighted sum of squared errors.
func findBestSplit(features [][]float64, targets []float64, cfg TreeConfig, rng *rand.Rand) (int, float64, bool) {
	cols := len(features[0])
	candidates := splitCandidates(cols, cfg.FeatureSample, rng)

	bestFeature := -1
	bestThreshold := 0.0
	bestScore := math.MaxFloat64

	values := make([]float64, len(features))
	for _, c := range candidates {
		for i := range features {
			values[i] = features[i][c]
		}
		for _, q := range []float64{0.25, 0.5, 0.75} {
			threshold := quantile(values, q)
			score, ok := splitScore(features, targets, c, threshold)
			if ok && score < bestScore {
				bestScore = score
				bestFeature = c
				bestThreshold = threshold
			}
		}
	}

	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func splitCandidates(cols, sample int, rng *rand.Rand) []int {
	all := rng.Perm(cols)
	if sample <= 0 || sample >= cols {
		return all
	}
	return all[:sample]
}

// splitScore returns the weighted SSE of the two sides, or false when the
// threshold does not separate the samples.
func splitScore(features [][]float64, targets []float64, featureIdx int, threshold float64) (float64, bool) {
	var leftSum, leftSq, rightSum, rightSq float64
	var leftN, rightN int

	for i, row := range features {
		y := targets[i]
		if row[featureIdx] <= threshold {
			leftSum += y
			leftSq += y * y
			leftN++
		} else {
			rightSum += y
			rightSq += y * y
			rightN++
		}
	}
	if leftN == 0 || rightN == 0 {
		return 0, false
	}

	// SSE = sum(y^2) - n*mean^2 per side.
	leftSSE := leftSq - leftSum*leftSum/float64(leftN)
	rightSSE := rightSq - rightSum*rightSum/float64(rightN)
	return leftSSE + rightSSE, true
}

func partition(features [][]float64, targets []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftF, rightF [][]float64
	var leftT, rightT []float64
	for i, row := range features {
		if row[featureIdx] <= threshold {
			leftF = append(leftF, row)
			leftT = append(leftT, targets[i])
		} else {
			rightF = append(rightF, row)
			rightT = append(rightT, targets[i])
		}
	}
	return leftF, leftT, rightF, rightT
}

func quantile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
