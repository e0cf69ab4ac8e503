package model

import (
	"errors"
	"fmt"
	"math"
)

// ---------------------------
// Types
// ---------------------------

// treeNode is one node of a RegressionTree. Leaves have Left == -1.
// Fields are exported for gob.
type treeNode struct {
	Feature   int
	Threshold float64 // x <= Threshold => left
	Left      int
	Right     int
	Value     float64 // leaf output
	Count     int     // training rows that reached the node
}

// RegressionTree is a binary tree stored as a flat node slice; node 0 is the root.
type RegressionTree struct {
	Nodes []treeNode
}

// Predict walks x down the tree. NaN goes right.
func (t *RegressionTree) Predict(x []float64) float64 {
	i := 0
	for {
		n := &t.Nodes[i]
		if n.Left < 0 {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

func (t *RegressionTree) NumLeaves() int {
	c := 0
	for _, n := range t.Nodes {
		if n.Left < 0 {
			c++
		}
	}
	return c
}

// validate checks a decoded tree: children come after their parent, so a
// valid tree has no cycles and Predict always terminates.
func (t *RegressionTree) validate(numFeatures int) error {
	if len(t.Nodes) == 0 {
		return errors.New("empty tree")
	}
	for i, n := range t.Nodes {
		if n.Left < 0 {
			continue
		}
		if n.Left <= i || n.Right <= i || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
			return fmt.Errorf("node %d: bad children %d/%d", i, n.Left, n.Right)
		}
		if n.Feature < 0 || n.Feature >= numFeatures {
			return fmt.Errorf("node %d: feature %d out of range", i, n.Feature)
		}
	}
	return nil
}

// treeParams are the growth limits shared by both ensembles.
type treeParams struct {
	maxLeaves      int
	minDataPerLeaf int
	minSumHessian  float64
	lambda         float64 // L2 on leaf values
	shrinkage      float64 // multiplies leaf values
}

// splitCandidate is the best split found for one leaf.
type splitCandidate struct {
	valid   bool
	gain    float64
	feature int
	bin     uint16
	leftG   float64
	leftH   float64
	leftN   int
}

// growLeaf is a leaf still eligible for splitting.
type growLeaf struct {
	node       int
	rows       []int
	sumG, sumH float64
	best       splitCandidate
}

// treeGrower builds one tree leaf-wise from gradient/hessian histograms.
type treeGrower struct {
	params   treeParams
	mapper   *binMapper
	bins     [][]uint16
	grad     []float64
	hess     []float64
	features []int // candidate features, ascending
}

// ---------------------------
// Growth
// ---------------------------

// grow builds a tree over rows. leafOf, when non-nil, receives the leaf
// value for every row in rows, which boosting uses to update its scores
// without re-walking the tree.
func (g *treeGrower) grow(rows []int, leafOf func(row int, value float64)) RegressionTree {
	var sumG, sumH float64
	for _, r := range rows {
		sumG += g.grad[r]
		sumH += g.hess[r]
	}
	tree := RegressionTree{Nodes: []treeNode{{Left: -1, Right: -1, Count: len(rows)}}}
	root := &growLeaf{node: 0, rows: rows, sumG: sumG, sumH: sumH}
	root.best = g.findBestSplit(root)
	leaves := []*growLeaf{root}

	for len(leaves) < g.params.maxLeaves {
		pick := -1
		for i, l := range leaves {
			if !l.best.valid {
				continue
			}
			if pick < 0 || l.best.gain > leaves[pick].best.gain {
				pick = i
			}
		}
		if pick < 0 {
			break
		}
		left, right := g.split(&tree, leaves[pick])
		leaves[pick] = left
		leaves = append(leaves, right)
	}

	for _, l := range leaves {
		v := g.leafValue(l.sumG, l.sumH)
		tree.Nodes[l.node].Value = v
		if leafOf != nil {
			for _, r := range l.rows {
				leafOf(r, v)
			}
		}
	}
	return tree
}

func (g *treeGrower) leafValue(sumG, sumH float64) float64 {
	if sumH+g.params.lambda <= 0 {
		return 0
	}
	return -sumG / (sumH + g.params.lambda) * g.params.shrinkage
}

func (g *treeGrower) split(tree *RegressionTree, l *growLeaf) (*growLeaf, *growLeaf) {
	b := l.best
	col := g.bins[b.feature]
	leftRows := make([]int, 0, b.leftN)
	rightRows := make([]int, 0, len(l.rows)-b.leftN)
	for _, r := range l.rows {
		if col[r] <= b.bin {
			leftRows = append(leftRows, r)
		} else {
			rightRows = append(rightRows, r)
		}
	}

	li := len(tree.Nodes)
	ri := li + 1
	tree.Nodes = append(tree.Nodes,
		treeNode{Left: -1, Right: -1, Count: len(leftRows)},
		treeNode{Left: -1, Right: -1, Count: len(rightRows)},
	)
	n := &tree.Nodes[l.node]
	n.Feature = b.feature
	n.Threshold = g.mapper.uppers[b.feature][b.bin]
	n.Left = li
	n.Right = ri

	left := &growLeaf{node: li, rows: leftRows, sumG: b.leftG, sumH: b.leftH}
	right := &growLeaf{node: ri, rows: rightRows, sumG: l.sumG - b.leftG, sumH: l.sumH - b.leftH}
	left.best = g.findBestSplit(left)
	right.best = g.findBestSplit(right)
	return left, right
}

// findBestSplit searches every candidate feature in parallel. Each feature
// writes its own slot and the reduction runs in feature order, so ties go to
// the lowest feature index and the result does not depend on scheduling.
func (g *treeGrower) findBestSplit(l *growLeaf) splitCandidate {
	if len(l.rows) < 2*g.params.minDataPerLeaf {
		return splitCandidate{}
	}
	results := make([]splitCandidate, len(g.features))
	parallelFor(len(g.features), func(k int) {
		results[k] = g.bestSplitForFeature(l, g.features[k])
	})
	var best splitCandidate
	for _, r := range results {
		if r.valid && (!best.valid || r.gain > best.gain) {
			best = r
		}
	}
	return best
}

func (g *treeGrower) bestSplitForFeature(l *growLeaf, f int) splitCandidate {
	nb := g.mapper.numBins(f)
	if nb < 2 {
		return splitCandidate{}
	}
	histG := make([]float64, nb)
	histH := make([]float64, nb)
	histN := make([]int, nb)
	col := g.bins[f]
	for _, r := range l.rows {
		b := col[r]
		histG[b] += g.grad[r]
		histH[b] += g.hess[r]
		histN[b]++
	}

	parent := l.sumG * l.sumG / (l.sumH + g.params.lambda)
	total := len(l.rows)
	minN := g.params.minDataPerLeaf
	var (
		best       splitCandidate
		accG, accH float64
		accN       int
	)
	for b := 0; b < nb-1; b++ {
		accG += histG[b]
		accH += histH[b]
		accN += histN[b]
		if histN[b] == 0 || accN < minN {
			continue
		}
		if total-accN < minN {
			break
		}
		rightH := l.sumH - accH
		if accH < g.params.minSumHessian || rightH < g.params.minSumHessian {
			continue
		}
		rightG := l.sumG - accG
		gain := accG*accG/(accH+g.params.lambda) + rightG*rightG/(rightH+g.params.lambda) - parent
		if math.IsNaN(gain) || gain <= 1e-12 {
			continue
		}
		if !best.valid || gain > best.gain {
			best = splitCandidate{valid: true, gain: gain, feature: f, bin: uint16(b), leftG: accG, leftH: accH, leftN: accN}
		}
	}
	return best
}
