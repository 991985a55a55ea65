package trainer

import (
	"context"
	"math"
	"sort"
)

// knnClassify k 近邻分类，多数表决，距离用欧氏距离。
func knnClassify(ctx context.Context, data *Dataset, k int) ([]float64, error) {
	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		neighbors := nearest(data.XTrain, row, k)
		votes := make(map[float64]int)
		for _, idx := range neighbors {
			votes[data.YTrain[idx]]++
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

// knnRegress k 近邻回归，取邻居均值。
func knnRegress(ctx context.Context, data *Dataset, k int) ([]float64, error) {
	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		if i%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		neighbors := nearest(data.XTrain, row, k)
		var sum float64
		for _, idx := range neighbors {
			sum += data.YTrain[idx]
		}
		preds[i] = sum / float64(len(neighbors))
	}
	return preds, nil
}

func nearest(X [][]float64, query []float64, k int) []int {
	if k <= 0 {
		k = 5
	}
	if k > len(X) {
		k = len(X)
	}
	type scored struct {
		idx  int
		dist float64
	}
	dists := make([]scored, len(X))
	for i, row := range X {
		dists[i] = scored{i, euclidean(row, query)}
	}
	sort.Slice(dists, func(a, b int) bool {
		if dists[a].dist != dists[b].dist {
			return dists[a].dist < dists[b].dist
		}
		return dists[a].idx < dists[b].idx
	})
	out := make([]int, k)
	for i := 0; i < k; i++ {
		out[i] = dists[i].idx
	}
	return out
}

func euclidean(a, b []float64) float64 {
	var sum float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}
