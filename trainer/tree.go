package trainer

import (
	"context"
	"math"
	"math/rand"
	"sort"
)

// CART 决策树。分类用基尼不纯度，回归用方差缩减。
// 叶子最少 2 个样本，分裂点取相邻取值的中点。

type treeNode struct {
	feature int
	thresh  float64
	left    *treeNode
	right   *treeNode
	leaf    bool
	value   float64 // 分类时是多数类，回归时是均值
}

const minLeafSize = 2

func buildTree(X [][]float64, y []float64, depth, maxDepth int, classify bool) *treeNode {
	if depth >= maxDepth || len(y) < minLeafSize*2 || pure(y) {
		return &treeNode{leaf: true, value: leafValue(y, classify)}
	}

	bestFeature, bestThresh, bestScore := -1, 0.0, math.Inf(1)
	d := len(X[0])
	for j := 0; j < d; j++ {
		values := make([]float64, len(X))
		for i, row := range X {
			values[i] = row[j]
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		for i := 1; i < len(sorted); i++ {
			if sorted[i] == sorted[i-1] {
				continue
			}
			thresh := (sorted[i] + sorted[i-1]) / 2
			score := splitScore(X, y, j, thresh, classify)
			if score < bestScore {
				bestFeature, bestThresh, bestScore = j, thresh, score
			}
		}
	}
	if bestFeature < 0 {
		return &treeNode{leaf: true, value: leafValue(y, classify)}
	}

	var lx, rx [][]float64
	var ly, ry []float64
	for i, row := range X {
		if row[bestFeature] <= bestThresh {
			lx = append(lx, row)
			ly = append(ly, y[i])
		} else {
			rx = append(rx, row)
			ry = append(ry, y[i])
		}
	}
	if len(ly) < minLeafSize || len(ry) < minLeafSize {
		return &treeNode{leaf: true, value: leafValue(y, classify)}
	}

	return &treeNode{
		feature: bestFeature,
		thresh:  bestThresh,
		left:    buildTree(lx, ly, depth+1, maxDepth, classify),
		right:   buildTree(rx, ry, depth+1, maxDepth, classify),
	}
}

func (n *treeNode) predict(row []float64) float64 {
	for !n.leaf {
		if n.feature < len(row) && row[n.feature] <= n.thresh {
			n = n.left
		} else {
			n = n.right
		}
	}
	return n.value
}

func pure(y []float64) bool {
	for i := 1; i < len(y); i++ {
		if y[i] != y[0] {
			return false
		}
	}
	return true
}

func leafValue(y []float64, classify bool) float64 {
	if len(y) == 0 {
		return 0
	}
	if !classify {
		var sum float64
		for _, v := range y {
			sum += v
		}
		return sum / float64(len(y))
	}
	votes := make(map[float64]int)
	for _, v := range y {
		votes[v]++
	}
	best, bestCount := y[0], -1
	for class, count := range votes {
		if count > bestCount || (count == bestCount && class < best) {
			best, bestCount = class, count
		}
	}
	return best
}

// splitScore 左右子集的加权不纯度，越小越好。
func splitScore(X [][]float64, y []float64, feature int, thresh float64, classify bool) float64 {
	var left, right []float64
	for i, row := range X {
		if row[feature] <= thresh {
			left = append(left, y[i])
		} else {
			right = append(right, y[i])
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return math.Inf(1)
	}
	total := float64(len(y))
	if classify {
		return float64(len(left))/total*gini(left) + float64(len(right))/total*gini(right)
	}
	return float64(len(left))/total*variance(left) + float64(len(right))/total*variance(right)
}

func gini(y []float64) float64 {
	counts := make(map[float64]int)
	for _, v := range y {
		counts[v]++
	}
	g := 1.0
	for _, c := range counts {
		p := float64(c) / float64(len(y))
		g -= p * p
	}
	return g
}

func variance(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	var sum float64
	for _, v := range y {
		sum += v
	}
	m := sum / float64(len(y))
	var sq float64
	for _, v := range y {
		d := v - m
		sq += d * d
	}
	return sq / float64(len(y))
}

func treeClassify(ctx context.Context, data *Dataset, maxDepth int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := buildTree(data.XTrain, data.YTrain, 0, maxDepth, true)
	return predictAll(root, data.XTest), nil
}

func treeRegress(ctx context.Context, data *Dataset, maxDepth int) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := buildTree(data.XTrain, data.YTrain, 0, maxDepth, false)
	return predictAll(root, data.XTest), nil
}

func predictAll(root *treeNode, X [][]float64) []float64 {
	preds := make([]float64, len(X))
	for i, row := range X {
		preds[i] = root.predict(row)
	}
	return preds
}

// forestClassify 自助采样 + 多数表决。种子固定，结果可复现。
func forestClassify(ctx context.Context, data *Dataset, nTrees, maxDepth int) ([]float64, error) {
	trees, err := growForest(ctx, data, nTrees, maxDepth, true)
	if err != nil {
		return nil, err
	}
	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		votes := make(map[float64]int)
		for _, t := range trees {
			votes[t.predict(row)]++
		}
		best, bestCount := 0.0, -1
		for class, count := range votes {
			if count > bestCount || (count == bestCount && class < best) {
				best, bestCount = class, count
			}
		}
		preds[i] = best
	}
	return preds, nil
}

// forestRegress 自助采样 + 均值聚合。
func forestRegress(ctx context.Context, data *Dataset, nTrees, maxDepth int) ([]float64, error) {
	trees, err := growForest(ctx, data, nTrees, maxDepth, false)
	if err != nil {
		return nil, err
	}
	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		var sum float64
		for _, t := range trees {
			sum += t.predict(row)
		}
		preds[i] = sum / float64(len(trees))
	}
	return preds, nil
}

func growForest(ctx context.Context, data *Dataset, nTrees, maxDepth int, classify bool) ([]*treeNode, error) {
	if nTrees <= 0 {
		nTrees = 25
	}
	rng := rand.New(rand.NewSource(42))
	n := len(data.XTrain)
	trees := make([]*treeNode, 0, nTrees)
	for t := 0; t < nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		bx := make([][]float64, n)
		by := make([]float64, n)
		for i := 0; i < n; i++ {
			idx := rng.Intn(n)
			bx[i] = data.XTrain[idx]
			by[i] = data.YTrain[idx]
		}
		trees = append(trees, buildTree(bx, by, 0, maxDepth, classify))
	}
	return trees, nil
}

// boostRegress 梯度提升回归：浅树逐轮拟合残差。
func boostRegress(ctx context.Context, data *Dataset, nTrees int, lr float64) ([]float64, error) {
	if nTrees <= 0 {
		nTrees = 25
	}
	if lr <= 0 {
		lr = 0.1
	}

	var base float64
	for _, v := range data.YTrain {
		base += v
	}
	base /= float64(len(data.YTrain))

	current := make([]float64, len(data.YTrain))
	for i := range current {
		current[i] = base
	}

	var trees []*treeNode
	for t := 0; t < nTrees; t++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		residuals := make([]float64, len(data.YTrain))
		for i := range residuals {
			residuals[i] = data.YTrain[i] - current[i]
		}
		tree := buildTree(data.XTrain, residuals, 0, 3, false)
		trees = append(trees, tree)
		for i, row := range data.XTrain {
			current[i] += lr * tree.predict(row)
		}
	}

	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		p := base
		for _, tree := range trees {
			p += lr * tree.predict(row)
		}
		preds[i] = p
	}
	return preds, nil
}

// boostClassify 一对多：每个类别对 0/1 指示目标做回归提升，预测取得分最高的类。
func boostClassify(ctx context.Context, data *Dataset, nTrees int, lr float64) ([]float64, error) {
	classes := distinctLabels(data.YTrain)
	scores := make([][]float64, len(classes))

	for ci, class := range classes {
		indicator := make([]float64, len(data.YTrain))
		for i, y := range data.YTrain {
			if y == class {
				indicator[i] = 1
			}
		}
		sub := &Dataset{
			XTrain: data.XTrain,
			YTrain: indicator,
			XTest:  data.XTest,
			YTest:  make([]float64, len(data.XTest)),
		}
		pred, err := boostRegress(ctx, sub, nTrees, lr)
		if err != nil {
			return nil, err
		}
		scores[ci] = pred
	}

	preds := make([]float64, len(data.XTest))
	for i := range data.XTest {
		bestClass := classes[0]
		bestScore := math.Inf(-1)
		for ci, class := range classes {
			if scores[ci][i] > bestScore {
				bestScore = scores[ci][i]
				bestClass = class
			}
		}
		preds[i] = bestClass
	}
	return preds, nil
}
