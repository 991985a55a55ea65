package trainer

import (
	"context"
	"math"
)

// linearGD 梯度下降线性回归，alpha > 0 时等价于 ridge。
// 训练前对特征和目标做标准化，预测时还原，学习率对量纲不敏感。
func linearGD(ctx context.Context, data *Dataset, alpha, lr float64, iters int) ([]float64, error) {
	n := len(data.XTrain)
	d := len(data.XTrain[0])

	xMean, xStd := columnStats(data.XTrain)
	yMean, yStd := scalarStats(data.YTrain)

	w := make([]float64, d)
	b := 0.0

	for it := 0; it < iters; it++ {
		if it%50 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		gw := make([]float64, d)
		gb := 0.0
		for i := 0; i < n; i++ {
			pred := b
			for j := 0; j < d; j++ {
				pred += w[j] * standardize(data.XTrain[i][j], xMean[j], xStd[j])
			}
			diff := pred - standardize(data.YTrain[i], yMean, yStd)
			for j := 0; j < d; j++ {
				gw[j] += diff * standardize(data.XTrain[i][j], xMean[j], xStd[j])
			}
			gb += diff
		}
		for j := 0; j < d; j++ {
			w[j] -= lr * (gw[j]/float64(n) + alpha*w[j]/float64(n))
		}
		b -= lr * gb / float64(n)
	}

	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		pred := b
		for j := 0; j < d && j < len(row); j++ {
			pred += w[j] * standardize(row[j], xMean[j], xStd[j])
		}
		preds[i] = pred*yStd + yMean
	}
	return preds, nil
}

// logisticOVR 一对多逻辑回归。每个类别训练一个二分类器，预测取概率最大的类。
func logisticOVR(ctx context.Context, data *Dataset, lr float64, iters int) ([]float64, error) {
	classes := distinctLabels(data.YTrain)
	d := len(data.XTrain[0])
	n := len(data.XTrain)

	xMean, xStd := columnStats(data.XTrain)

	weights := make([][]float64, len(classes))
	biases := make([]float64, len(classes))

	for ci, class := range classes {
		w := make([]float64, d)
		b := 0.0
		for it := 0; it < iters; it++ {
			if it%50 == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			gw := make([]float64, d)
			gb := 0.0
			for i := 0; i < n; i++ {
				z := b
				for j := 0; j < d; j++ {
					z += w[j] * standardize(data.XTrain[i][j], xMean[j], xStd[j])
				}
				p := sigmoid(z)
				y := 0.0
				if data.YTrain[i] == class {
					y = 1.0
				}
				diff := p - y
				for j := 0; j < d; j++ {
					gw[j] += diff * standardize(data.XTrain[i][j], xMean[j], xStd[j])
				}
				gb += diff
			}
			for j := 0; j < d; j++ {
				w[j] -= lr * gw[j] / float64(n)
			}
			b -= lr * gb / float64(n)
		}
		weights[ci] = w
		biases[ci] = b
	}

	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		bestClass := classes[0]
		bestScore := math.Inf(-1)
		for ci, class := range classes {
			z := biases[ci]
			for j := 0; j < d && j < len(row); j++ {
				z += weights[ci][j] * standardize(row[j], xMean[j], xStd[j])
			}
			if z > bestScore {
				bestScore = z
				bestClass = class
			}
		}
		preds[i] = bestClass
	}
	return preds, nil
}

// gaussianNB 高斯朴素贝叶斯。
func gaussianNB(ctx context.Context, data *Dataset) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	classes := distinctLabels(data.YTrain)
	d := len(data.XTrain[0])

	type classStat struct {
		prior float64
		mean  []float64
		vari  []float64
	}
	stats := make(map[float64]*classStat, len(classes))

	for _, class := range classes {
		var rows [][]float64
		for i, y := range data.YTrain {
			if y == class {
				rows = append(rows, data.XTrain[i])
			}
		}
		cs := &classStat{
			prior: float64(len(rows)) / float64(len(data.XTrain)),
			mean:  make([]float64, d),
			vari:  make([]float64, d),
		}
		for j := 0; j < d; j++ {
			var sum float64
			for _, row := range rows {
				sum += row[j]
			}
			cs.mean[j] = sum / float64(len(rows))
			var sq float64
			for _, row := range rows {
				diff := row[j] - cs.mean[j]
				sq += diff * diff
			}
			cs.vari[j] = sq/float64(len(rows)) + 1e-9
		}
		stats[class] = cs
	}

	preds := make([]float64, len(data.XTest))
	for i, row := range data.XTest {
		bestClass := classes[0]
		bestLog := math.Inf(-1)
		for _, class := range classes {
			cs := stats[class]
			logProb := math.Log(cs.prior)
			for j := 0; j < d && j < len(row); j++ {
				diff := row[j] - cs.mean[j]
				logProb += -0.5*math.Log(2*math.Pi*cs.vari[j]) - diff*diff/(2*cs.vari[j])
			}
			if logProb > bestLog {
				bestLog = logProb
				bestClass = class
			}
		}
		preds[i] = bestClass
	}
	return preds, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func standardize(v, mean, std float64) float64 {
	if std == 0 {
		return 0
	}
	return (v - mean) / std
}

func columnStats(X [][]float64) (means, stds []float64) {
	d := len(X[0])
	means = make([]float64, d)
	stds = make([]float64, d)
	for j := 0; j < d; j++ {
		var sum float64
		for _, row := range X {
			sum += row[j]
		}
		means[j] = sum / float64(len(X))
		var sq float64
		for _, row := range X {
			diff := row[j] - means[j]
			sq += diff * diff
		}
		stds[j] = math.Sqrt(sq / float64(len(X)))
	}
	return means, stds
}

func scalarStats(y []float64) (mean, std float64) {
	var sum float64
	for _, v := range y {
		sum += v
	}
	mean = sum / float64(len(y))
	var sq float64
	for _, v := range y {
		diff := v - mean
		sq += diff * diff
	}
	std = math.Sqrt(sq / float64(len(y)))
	if std == 0 {
		std = 1
	}
	return mean, std
}

func distinctLabels(y []float64) []float64 {
	seen := make(map[float64]bool)
	var classes []float64
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	return classes
}
