package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// DecisionTree is a CART regression tree stored as a flattened node list in
// pre-order. LeftChild and RightChild are absolute indices into Nodes.
type DecisionTree struct {
	MaxDepth       int        `json:"max_depth"`
	MinSamplesLeaf int        `json:"min_samples_leaf"`
	Nodes          []TreeNode `json:"nodes"`
}

type TreeNode struct {
	FeatureIdx int     `json:"feature_idx"`
	Threshold  float64 `json:"threshold"`
	LeftChild  int     `json:"left_child"`
	RightChild int     `json:"right_child"`
	Value      float64 `json:"value"`
	Samples    int     `json:"samples"`
	IsLeaf     bool    `json:"is_leaf"`
}

// splitCandidates bounds the thresholds tried per feature.
const splitCandidates = 16

func NewDecisionTree(maxDepth, minSamplesLeaf int) *DecisionTree {
	return &DecisionTree{MaxDepth: maxDepth, MinSamplesLeaf: minSamplesLeaf}
}

func (dt *DecisionTree) Name() string { return "decision_tree" }

func (dt *DecisionTree) Fit(X mat.Matrix, y []float64) error {
	r, _ := X.Dims()
	if r == 0 || len(y) == 0 {
		return errors.New("features or targets empty")
	}
	if r != len(y) {
		return errors.New("features and targets size mismatch")
	}
	if dt.MaxDepth <= 0 {
		dt.MaxDepth = 8
	}
	if dt.MinSamplesLeaf <= 0 {
		dt.MinSamplesLeaf = 1
	}

	features := rowsOf(X)
	dt.Nodes = dt.buildNode(features, append([]float64(nil), y...), 0)
	return nil
}

func (dt *DecisionTree) Predict(X mat.Matrix) ([]float64, error) {
	if len(dt.Nodes) == 0 {
		return nil, errors.New("model not trained")
	}
	rows := rowsOf(X)
	out := make([]float64, len(rows))
	for i, row := range rows {
		v, err := dt.predictRow(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

func (dt *DecisionTree) predictRow(features []float64) (float64, error) {
	idx := 0
	for {
		node := dt.Nodes[idx]
		if node.IsLeaf {
			return node.Value, nil
		}
		if node.FeatureIdx < 0 || node.FeatureIdx >= len(features) {
			return 0, errors.New("feature index out of range")
		}
		if features[node.FeatureIdx] <= node.Threshold {
			idx = node.LeftChild
		} else {
			idx = node.RightChild
		}
		if idx < 0 || idx >= len(dt.Nodes) {
			return 0, errors.New("invalid tree state")
		}
	}
}

func leaf(targets []float64) []TreeNode {
	return []TreeNode{{
		FeatureIdx: -1,
		LeftChild:  -1,
		RightChild: -1,
		Value:      stat.Mean(targets, nil),
		Samples:    len(targets),
		IsLeaf:     true,
	}}
}

// buildNode returns the subtree rooted at this node with child indices
// relative to the returned slice.
func (dt *DecisionTree) buildNode(features [][]float64, targets []float64, depth int) []TreeNode {
	if depth >= dt.MaxDepth || len(targets) < 2*dt.MinSamplesLeaf || isConstant(targets) {
		return leaf(targets)
	}

	bestFeature, threshold, ok := dt.findBestSplit(features, targets)
	if !ok {
		return leaf(targets)
	}

	leftFeatures, leftTargets, rightFeatures, rightTargets := splitData(features, targets, bestFeature, threshold)
	if len(leftTargets) == 0 || len(rightTargets) == 0 {
		return leaf(targets)
	}

	leftNodes := dt.buildNode(leftFeatures, leftTargets, depth+1)
	rightNodes := dt.buildNode(rightFeatures, rightTargets, depth+1)

	root := TreeNode{
		FeatureIdx: bestFeature,
		Threshold:  threshold,
		LeftChild:  1,
		RightChild: 1 + len(leftNodes),
		Value:      stat.Mean(targets, nil),
		Samples:    len(targets),
	}

	nodes := make([]TreeNode, 0, 1+len(leftNodes)+len(rightNodes))
	nodes = append(nodes, root)
	nodes = append(nodes, shift(leftNodes, 1)...)
	nodes = append(nodes, shift(rightNodes, 1+len(leftNodes))...)
	return nodes
}

func shift(nodes []TreeNode, offset int) []TreeNode {
	for i := range nodes {
		if !nodes[i].IsLeaf {
			nodes[i].LeftChild += offset
			nodes[i].RightChild += offset
		}
	}
	return nodes
}

// findBestSplit picks the feature and threshold with the lowest weighted
// child variance. Thresholds are midpoints between distinct quantiles.
func (dt *DecisionTree) findBestSplit(features [][]float64, targets []float64) (int, float64, bool) {
	featureCount := len(features[0])
	bestFeature := -1
	bestThreshold := 0.0
	bestImpurity := math.MaxFloat64

	values := make([]float64, len(features))
	for featureIdx := 0; featureIdx < featureCount; featureIdx++ {
		for i := range features {
			values[i] = features[i][featureIdx]
		}
		for _, threshold := range candidateThresholds(values) {
			left, right := splitTargets(features, targets, featureIdx, threshold)
			if len(left) < dt.MinSamplesLeaf || len(right) < dt.MinSamplesLeaf {
				continue
			}
			impurity := weightedVariance(left, right)
			if impurity < bestImpurity {
				bestImpurity = impurity
				bestFeature = featureIdx
				bestThreshold = threshold
			}
		}
	}
	if bestFeature == -1 {
		return -1, 0, false
	}
	return bestFeature, bestThreshold, true
}

func candidateThresholds(values []float64) []float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	distinct := sorted[:1]
	for _, v := range sorted[1:] {
		if v != distinct[len(distinct)-1] {
			distinct = append(distinct, v)
		}
	}
	if len(distinct) < 2 {
		return nil
	}

	step := 1
	if len(distinct)-1 > splitCandidates {
		step = (len(distinct) - 1) / splitCandidates
	}
	thresholds := make([]float64, 0, splitCandidates+1)
	for i := 0; i+1 < len(distinct); i += step {
		thresholds = append(thresholds, (distinct[i]+distinct[i+1])/2)
	}
	return thresholds
}

func splitData(features [][]float64, targets []float64, featureIdx int, threshold float64) ([][]float64, []float64, [][]float64, []float64) {
	var leftFeatures, rightFeatures [][]float64
	var leftTargets, rightTargets []float64
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			leftFeatures = append(leftFeatures, feature)
			leftTargets = append(leftTargets, targets[i])
		} else {
			rightFeatures = append(rightFeatures, feature)
			rightTargets = append(rightTargets, targets[i])
		}
	}
	return leftFeatures, leftTargets, rightFeatures, rightTargets
}

func splitTargets(features [][]float64, targets []float64, featureIdx int, threshold float64) ([]float64, []float64) {
	var left, right []float64
	for i, feature := range features {
		if feature[featureIdx] <= threshold {
			left = append(left, targets[i])
		} else {
			right = append(right, targets[i])
		}
	}
	return left, right
}

func weightedVariance(left, right []float64) float64 {
	leftWeight := float64(len(left))
	rightWeight := float64(len(right))
	total := leftWeight + rightWeight
	return (leftWeight/total)*popVariance(left) + (rightWeight/total)*popVariance(right)
}

func popVariance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	_, variance := stat.PopMeanVariance(values, nil)
	return variance
}

func isConstant(targets []float64) bool {
	for _, v := range targets[1:] {
		if v != targets[0] {
			return false
		}
	}
	return true
}

// validate checks the pre-order layout: every split points at two later
// nodes, so traversal always terminates.
func (dt *DecisionTree) validate() error {
	if len(dt.Nodes) == 0 {
		return errors.New("tree has no nodes")
	}
	for i, node := range dt.Nodes {
		if node.IsLeaf {
			if !finite(node.Value) {
				return fmt.Errorf("leaf %d value %v is not finite", i, node.Value)
			}
			continue
		}
		if node.FeatureIdx < 0 {
			return fmt.Errorf("node %d has negative feature index", i)
		}
		for _, child := range []int{node.LeftChild, node.RightChild} {
			if child <= i || child >= len(dt.Nodes) {
				return fmt.Errorf("node %d has invalid child %d", i, child)
			}
		}
	}
	return nil
}
